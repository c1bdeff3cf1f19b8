package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

// tokenExpirySlack is how early a cached OAuth token is considered stale, so
// a request never goes out with a token about to expire mid-flight.
const tokenExpirySlack = time.Minute

// defaultTokenTTL is assumed when the token endpoint states no lifetime and
// the token itself carries no exp claim.
const defaultTokenTTL = time.Hour

// tokenSource injects per-request authorization.
type tokenSource interface {
	authorize(ctx context.Context, req *http.Request) error
}

// newTokenSource builds the token source matching the profile type.
func newTokenSource(p *profile.Profile, httpClient *http.Client, logger *slog.Logger) (tokenSource, error) {
	switch p.Type {
	case profile.TypeBearerToken:
		exp, _ := p.ExpiresAt()
		return &staticBearer{token: p.BearerToken, expiresAt: exp}, nil
	case profile.TypeOAuthClientCredentials:
		return &oauthClientCredentials{
			httpClient:   httpClient,
			tokenURL:     p.TokenEndpoint,
			clientID:     p.ClientID,
			clientSecret: p.ClientSecret,
			scope:        p.Scope,
			logger:       logger,
		}, nil
	default:
		return nil, sharing.ErrValidation("profile type %q has no token source", p.Type)
	}
}

// staticBearer sends the long-lived token from the profile verbatim.
type staticBearer struct {
	token     string
	expiresAt time.Time // zero when the profile states no expiration
}

func (s *staticBearer) authorize(_ context.Context, req *http.Request) error {
	if !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt) {
		return sharing.ErrCredentialUnavailable(nil,
			"profile bearer token expired at %s; obtain a new profile from the provider", s.expiresAt.Format(time.RFC3339))
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	return nil
}

// oauthClientCredentials exchanges a client id and secret for short-lived
// access tokens and caches each token until shortly before it expires.
type oauthClientCredentials struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func (o *oauthClientCredentials) authorize(ctx context.Context, req *http.Request) error {
	token, err := o.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (o *oauthClientCredentials) token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.accessToken != "" && time.Now().Add(tokenExpirySlack).Before(o.expiresAt) {
		return o.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	if o.scope != "" {
		form.Set("scope", o.scope)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", sharing.ErrCredentialUnavailable(err, "building token request for %s", o.tokenURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(o.clientID, o.clientSecret)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", sharing.ErrCredentialUnavailable(err, "requesting access token from %s", o.tokenURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", sharing.ErrCredentialUnavailable(nil,
			"token endpoint %s returned %d: %s", o.tokenURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", sharing.ErrCredentialUnavailable(err, "decoding token response from %s", o.tokenURL)
	}
	if tr.AccessToken == "" {
		return "", sharing.ErrCredentialUnavailable(nil, "token endpoint %s returned no access_token", o.tokenURL)
	}

	o.accessToken = tr.AccessToken
	tokenExp, hasTokenExp := profile.TokenExpiry(tr.AccessToken)
	switch {
	case tr.ExpiresIn > 0:
		o.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		// A JWT exp claim earlier than the stated lifetime wins.
		if hasTokenExp && tokenExp.Before(o.expiresAt) {
			o.expiresAt = tokenExp
		}
	case hasTokenExp:
		o.expiresAt = tokenExp
	default:
		o.expiresAt = time.Now().Add(defaultTokenTTL)
	}
	o.logger.Debug("obtained access token", "token_endpoint", o.tokenURL, "expires_at", o.expiresAt)
	return o.accessToken, nil
}
