// Package rest speaks the sharing protocol's REST surface: catalog listing,
// table metadata, snapshot queries, and change-data-feed queries. Responses
// that carry table actions are NDJSON streams; everything else is plain JSON.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lakeshare/lakeshare/internal/config"
	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

const (
	userAgent          = "lakeshare-go/0.1.0"
	headerTableVersion = "Delta-Table-Version"
	headerRequestID    = "X-Request-Id"

	// maxRetryDelay caps exponential backoff between attempts.
	maxRetryDelay = 10 * time.Second
)

// Client calls a single sharing server on behalf of one profile.
type Client struct {
	endpoint   string
	httpClient *http.Client
	auth       tokenSource
	limiter    *rate.Limiter // nil means no client-side throttle
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger
}

var (
	_ sharing.MetadataClient = (*Client)(nil)
	_ sharing.CatalogClient  = (*Client)(nil)
)

// New builds a client for the server named in the profile.
func New(p *profile.Profile, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	auth, err := newTokenSource(p, httpClient, logger)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return &Client{
		endpoint:   p.Endpoint,
		httpClient: httpClient,
		auth:       auth,
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
		logger:     logger,
	}, nil
}

// Endpoint returns the normalized server base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ListShares returns one page of shares granted to the recipient.
func (c *Client) ListShares(ctx context.Context, maxResults int, pageToken string) ([]sharing.Share, string, error) {
	var page struct {
		Items         []sharing.Share `json:"items"`
		NextPageToken string          `json:"nextPageToken"`
	}
	if err := c.getJSON(ctx, "/shares", pageQuery(maxResults, pageToken), &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextPageToken, nil
}

// GetShare returns a single share by name.
func (c *Client) GetShare(ctx context.Context, name string) (sharing.Share, error) {
	var resp struct {
		Share sharing.Share `json:"share"`
	}
	if err := c.getJSON(ctx, "/shares/"+url.PathEscape(name), nil, &resp); err != nil {
		return sharing.Share{}, err
	}
	return resp.Share, nil
}

// ListSchemas returns one page of schemas in a share.
func (c *Client) ListSchemas(ctx context.Context, share string, maxResults int, pageToken string) ([]sharing.Schema, string, error) {
	var page struct {
		Items         []sharing.Schema `json:"items"`
		NextPageToken string           `json:"nextPageToken"`
	}
	path := "/shares/" + url.PathEscape(share) + "/schemas"
	if err := c.getJSON(ctx, path, pageQuery(maxResults, pageToken), &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextPageToken, nil
}

// ListTables returns one page of tables in a schema.
func (c *Client) ListTables(ctx context.Context, share, schema string, maxResults int, pageToken string) ([]sharing.Table, string, error) {
	var page struct {
		Items         []sharing.Table `json:"items"`
		NextPageToken string          `json:"nextPageToken"`
	}
	path := "/shares/" + url.PathEscape(share) + "/schemas/" + url.PathEscape(schema) + "/tables"
	if err := c.getJSON(ctx, path, pageQuery(maxResults, pageToken), &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextPageToken, nil
}

// ListAllTables returns one page of tables across every schema of a share.
func (c *Client) ListAllTables(ctx context.Context, share string, maxResults int, pageToken string) ([]sharing.Table, string, error) {
	var page struct {
		Items         []sharing.Table `json:"items"`
		NextPageToken string          `json:"nextPageToken"`
	}
	path := "/shares/" + url.PathEscape(share) + "/all-tables"
	if err := c.getJSON(ctx, path, pageQuery(maxResults, pageToken), &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextPageToken, nil
}

// GetTableVersion returns the table's current version, or its earliest
// version at or after startingTimestamp when one is given.
func (c *Client) GetTableVersion(ctx context.Context, table sharing.Table, startingTimestamp string) (int64, error) {
	if err := table.Validate(); err != nil {
		return 0, err
	}
	query := url.Values{}
	if startingTimestamp != "" {
		query.Set("startingTimestamp", startingTimestamp)
	}
	resp, err := c.do(ctx, http.MethodGet, c.tablePath(table)+"/version", query, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()               //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused
	return parseVersionHeader(resp, table.String())
}

// GetMetadata returns the table's metadata, optionally pinned to a historical
// version or timestamp.
func (c *Client) GetMetadata(ctx context.Context, table sharing.Table, version sharing.VersionSelector) (*sharing.TableMetadata, error) {
	_, metadata, err := c.metadata(ctx, table, version)
	return metadata, err
}

// GetProtocol returns the reader requirements the server states for a table.
func (c *Client) GetProtocol(ctx context.Context, table sharing.Table) (sharing.Protocol, error) {
	protocol, _, err := c.metadata(ctx, table, sharing.VersionSelector{})
	return protocol, err
}

func (c *Client) metadata(ctx context.Context, table sharing.Table, version sharing.VersionSelector) (sharing.Protocol, *sharing.TableMetadata, error) {
	if err := table.Validate(); err != nil {
		return sharing.Protocol{}, nil, err
	}
	if err := version.Validate(); err != nil {
		return sharing.Protocol{}, nil, err
	}
	query := url.Values{}
	if version.Version != nil {
		query.Set("version", strconv.FormatInt(*version.Version, 10))
	}
	if version.Timestamp != "" {
		query.Set("timestamp", version.Timestamp)
	}
	resp, err := c.do(ctx, http.MethodGet, c.tablePath(table)+"/metadata", query, nil)
	if err != nil {
		return sharing.Protocol{}, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	stream, err := parseActions(resp.Body)
	if err != nil {
		return sharing.Protocol{}, nil, fmt.Errorf("metadata for %s: %w", table, err)
	}
	metadata := stream.toMetadata()
	if metadata == nil {
		return sharing.Protocol{}, nil, fmt.Errorf("metadata for %s: server returned no metaData action", table)
	}
	if metadata.Version == 0 {
		if v, err := parseVersionHeader(resp, table.String()); err == nil {
			metadata.Version = v
		}
	}
	return stream.toProtocol(), metadata, nil
}

// queryRequest is the POST body of a snapshot file query.
type queryRequest struct {
	JSONPredicateHints string `json:"jsonPredicateHints,omitempty"`
	LimitHint          *int64 `json:"limitHint,omitempty"`
	Version            *int64 `json:"version,omitempty"`
	Timestamp          string `json:"timestamp,omitempty"`
	RefreshToken       string `json:"refreshToken,omitempty"`
}

// ListFiles queries the table's data files at the selected version. The
// predicate hints and limit are best-effort server-side pruning; callers must
// still filter.
func (c *Client) ListFiles(ctx context.Context, table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector) (*sharing.FileListing, error) {
	return c.listFiles(ctx, table, predicateHints, limit, version, "")
}

func (c *Client) listFiles(ctx context.Context, table sharing.Table, predicateHints string, limit *int64, version sharing.VersionSelector, refreshToken string) (*sharing.FileListing, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}
	body := queryRequest{
		JSONPredicateHints: predicateHints,
		LimitHint:          limit,
		Version:            version.Version,
		Timestamp:          version.Timestamp,
		RefreshToken:       refreshToken,
	}
	resp, err := c.do(ctx, http.MethodPost, c.tablePath(table)+"/query", nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	stream, err := parseActions(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	listing := &sharing.FileListing{
		Protocol:     stream.toProtocol(),
		Metadata:     stream.toMetadata(),
		Files:        filesToDomain(stream.files),
		RefreshToken: stream.refreshToken,
	}
	if v, err := parseVersionHeader(resp, table.String()); err == nil {
		listing.Version = v
	} else if listing.Metadata != nil {
		listing.Version = listing.Metadata.Version
	}
	return listing, nil
}

// ListChangeFiles queries the table's change data feed over a version or
// timestamp range.
func (c *Client) ListChangeFiles(ctx context.Context, table sharing.Table, rng sharing.ChangeRange, includeHistoricalMetadata bool) (*sharing.ChangeListing, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	if rng.StartingVersion != nil {
		query.Set("startingVersion", strconv.FormatInt(*rng.StartingVersion, 10))
	}
	if rng.StartingTimestamp != "" {
		query.Set("startingTimestamp", rng.StartingTimestamp)
	}
	if rng.EndingVersion != nil {
		query.Set("endingVersion", strconv.FormatInt(*rng.EndingVersion, 10))
	}
	if rng.EndingTimestamp != "" {
		query.Set("endingTimestamp", rng.EndingTimestamp)
	}
	if includeHistoricalMetadata {
		query.Set("includeHistoricalMetadata", "true")
	}
	resp, err := c.do(ctx, http.MethodGet, c.tablePath(table)+"/changes", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	stream, err := parseActions(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("querying changes for %s: %w", table, err)
	}
	return &sharing.ChangeListing{
		Protocol:           stream.toProtocol(),
		Metadata:           stream.toMetadata(),
		AddFiles:           filesToDomain(stream.adds),
		RemoveFiles:        filesToDomain(stream.removes),
		CDCFiles:           filesToDomain(stream.cdfs),
		HistoricalMetadata: metadataListToDomain(stream.historicalMetadata),
	}, nil
}

func (c *Client) tablePath(table sharing.Table) string {
	return "/shares/" + url.PathEscape(table.Share) +
		"/schemas/" + url.PathEscape(table.Schema) +
		"/tables/" + url.PathEscape(table.Name)
}

// getJSON performs a GET and decodes a plain JSON response body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do sends one request with auth, throttling, and retry on throttled or
// failed responses. On success the caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", path, err)
		}
	}
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			c.logger.Debug("retrying request", "method", method, "path", path, "attempt", attempt)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return nil, fmt.Errorf("building %s %s: %w", method, path, err)
		}
		if err := c.auth.authorize(ctx, req); err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set(headerRequestID, uuid.New().String())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := parseAPIError(resp)
		if resp.StatusCode == http.StatusNotFound {
			if apiErr.Message != "" {
				return nil, sharing.ErrNotFound("%s", apiErr.Message)
			}
			return nil, sharing.ErrNotFound("resource not found: %s", path)
		}
		if !apiErr.Retriable() {
			return nil, apiErr
		}
		lastErr = apiErr
		c.logger.Warn("request failed, will retry",
			"method", method, "path", path, "status", apiErr.StatusCode, "attempt", attempt)
	}
	return nil, lastErr
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryBase << (attempt - 1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pageQuery(maxResults int, pageToken string) url.Values {
	query := url.Values{}
	if maxResults > 0 {
		query.Set("maxResults", strconv.Itoa(maxResults))
	}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	return query
}

func parseVersionHeader(resp *http.Response, table string) (int64, error) {
	raw := resp.Header.Get(headerTableVersion)
	if raw == "" {
		return 0, fmt.Errorf("response for %s is missing the %s header", table, headerTableVersion)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("response for %s carries a malformed %s header %q", table, headerTableVersion, raw)
	}
	return version, nil
}
