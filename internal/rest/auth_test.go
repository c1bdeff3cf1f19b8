package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/internal/config"
	"github.com/lakeshare/lakeshare/internal/testkit"
	"github.com/lakeshare/lakeshare/profile"
	"github.com/lakeshare/lakeshare/sharing"
)

// makeJWT builds an unsigned JWT carrying only an exp claim.
func makeJWT(t *testing.T, exp int64) string {
	t.Helper()
	encode := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := encode(map[string]string{"alg": "none", "typ": "JWT"})
	claims := encode(map[string]int64{"exp": exp})
	return header + "." + claims + "."
}

func TestOAuthClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "shares:read", r.FormValue("scope"))
		id, secret, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-1", id)
		assert.Equal(t, "hunter2", secret)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	srv := testkit.NewServer("at-1")
	defer srv.Close()
	srv.AddTable(eventsFixture())

	p := &profile.Profile{
		Version:       2,
		Type:          profile.TypeOAuthClientCredentials,
		Endpoint:      srv.URL,
		TokenEndpoint: tokenSrv.URL,
		ClientID:      "client-1",
		ClientSecret:  "hunter2",
		Scope:         "shares:read",
	}
	c, err := New(p, testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	_, _, err = c.ListShares(context.Background(), 0, "")
	require.NoError(t, err)
	_, _, err = c.ListShares(context.Background(), 0, "")
	require.NoError(t, err)

	// The token outlives both requests, so it is fetched exactly once.
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, 2, srv.Requests())
}

func TestOAuthClientCredentials_TokenEndpointFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer tokenSrv.Close()

	srv := testkit.NewServer("whatever")
	defer srv.Close()

	p := &profile.Profile{
		Version:       2,
		Type:          profile.TypeOAuthClientCredentials,
		Endpoint:      srv.URL,
		TokenEndpoint: tokenSrv.URL,
		ClientID:      "client-1",
		ClientSecret:  "hunter2",
	}
	c, err := New(p, testConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	_, _, err = c.ListShares(context.Background(), 0, "")
	var unavailable *sharing.CredentialUnavailableError
	require.ErrorAs(t, err, &unavailable)
	// The sharing server was never reached.
	assert.Equal(t, 0, srv.Requests())
}

func TestOAuthTokenExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// No expires_in: the client must read exp out of the token itself.
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer"}`, makeJWT(t, exp))
	}))
	defer tokenSrv.Close()

	source := &oauthClientCredentials{
		httpClient: tokenSrv.Client(),
		tokenURL:   tokenSrv.URL,
		clientID:   "client-1",
		logger:     slog.New(slog.DiscardHandler),
	}
	_, err := source.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(exp, 0), source.expiresAt)

	_, err = source.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestNewTokenSource(t *testing.T) {
	httpClient := &http.Client{}
	logger := slog.New(slog.DiscardHandler)

	t.Run("bearer", func(t *testing.T) {
		src, err := newTokenSource(&profile.Profile{Type: profile.TypeBearerToken, BearerToken: "tok"}, httpClient, logger)
		require.NoError(t, err)
		_, ok := src.(*staticBearer)
		assert.True(t, ok)
	})

	t.Run("oauth", func(t *testing.T) {
		src, err := newTokenSource(&profile.Profile{
			Type: profile.TypeOAuthClientCredentials, TokenEndpoint: "https://idp/token",
			ClientID: "a", ClientSecret: "b",
		}, httpClient, logger)
		require.NoError(t, err)
		_, ok := src.(*oauthClientCredentials)
		assert.True(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := newTokenSource(&profile.Profile{Type: "kerberos"}, httpClient, logger)
		var verr *sharing.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestConfigWithoutRateLimitDisablesLimiter(t *testing.T) {
	cfg := config.Default()
	require.Zero(t, cfg.RateLimitRPS)

	srv := testkit.NewServer("")
	defer srv.Close()
	p := &profile.Profile{Version: 1, Type: profile.TypeBearerToken, Endpoint: srv.URL, BearerToken: "x"}
	c, err := New(p, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Nil(t, c.limiter)

	cfg2 := config.Default()
	cfg2.RateLimitRPS = 50
	c2, err := New(p, cfg2, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.NotNil(t, c2.limiter)
}
