package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/sharing"
)

func TestParse_BearerToken(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Profile
		wantErr string
	}{
		{
			name: "minimal_v1",
			raw:  `{"shareCredentialsVersion":1,"endpoint":"https://sharing.example.com/delta-sharing","bearerToken":"token123"}`,
			want: &Profile{
				Version:     1,
				Type:        TypeBearerToken,
				Endpoint:    "https://sharing.example.com/delta-sharing",
				BearerToken: "token123",
			},
		},
		{
			name: "with_expiration_time",
			raw:  `{"shareCredentialsVersion":1,"endpoint":"https://sharing.example.com","bearerToken":"token123","expirationTime":"2021-11-12T00:12:29.0Z"}`,
			want: &Profile{
				Version:        1,
				Type:           TypeBearerToken,
				Endpoint:       "https://sharing.example.com",
				BearerToken:    "token123",
				ExpirationTime: "2021-11-12T00:12:29.0Z",
			},
		},
		{
			name: "explicit_type_tag",
			raw:  `{"shareCredentialsVersion":1,"type":"bearer_token","endpoint":"https://e.example.com","bearerToken":"t"}`,
			want: &Profile{
				Version:     1,
				Type:        TypeBearerToken,
				Endpoint:    "https://e.example.com",
				BearerToken: "t",
			},
		},
		{
			name: "trailing_slash_trimmed",
			raw:  `{"shareCredentialsVersion":1,"endpoint":"https://e.example.com/api/","bearerToken":"t"}`,
			want: &Profile{
				Version:     1,
				Type:        TypeBearerToken,
				Endpoint:    "https://e.example.com/api",
				BearerToken: "t",
			},
		},
		{
			name: "unknown_fields_ignored",
			raw:  `{"shareCredentialsVersion":1,"endpoint":"https://e.example.com","bearerToken":"t","comment":"hi","nested":{"a":1}}`,
			want: &Profile{
				Version:     1,
				Type:        TypeBearerToken,
				Endpoint:    "https://e.example.com",
				BearerToken: "t",
			},
		},
		{
			name:    "missing_endpoint",
			raw:     `{"shareCredentialsVersion":1,"bearerToken":"t"}`,
			wantErr: "missing endpoint",
		},
		{
			name:    "missing_bearer_token",
			raw:     `{"shareCredentialsVersion":1,"endpoint":"https://e.example.com"}`,
			wantErr: "missing bearerToken",
		},
		{
			name:    "null_bearer_token",
			raw:     `{"shareCredentialsVersion":1,"endpoint":"https://e.example.com","bearerToken":null}`,
			wantErr: "missing bearerToken",
		},
		{
			name:    "wrong_type_for_v1",
			raw:     `{"shareCredentialsVersion":1,"type":"oauth_client_credentials","endpoint":"https://e.example.com","bearerToken":"t"}`,
			wantErr: `supports only type "bearer_token"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.IsType(t, &sharing.ValidationError{}, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_OAuthClientCredentials(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Profile
		wantErr string
	}{
		{
			name: "minimal_v2",
			raw: `{"shareCredentialsVersion":2,"type":"oauth_client_credentials",` +
				`"endpoint":"https://sharing.example.com","tokenEndpoint":"https://login.example.com/token",` +
				`"clientId":"abc","clientSecret":"xyz"}`,
			want: &Profile{
				Version:       2,
				Type:          TypeOAuthClientCredentials,
				Endpoint:      "https://sharing.example.com",
				TokenEndpoint: "https://login.example.com/token",
				ClientID:      "abc",
				ClientSecret:  "xyz",
			},
		},
		{
			name: "with_scope",
			raw: `{"shareCredentialsVersion":2,"type":"oauth_client_credentials",` +
				`"endpoint":"https://e.example.com","tokenEndpoint":"https://login.example.com/token",` +
				`"clientId":"abc","clientSecret":"xyz","scope":"sharing.read"}`,
			want: &Profile{
				Version:       2,
				Type:          TypeOAuthClientCredentials,
				Endpoint:      "https://e.example.com",
				TokenEndpoint: "https://login.example.com/token",
				ClientID:      "abc",
				ClientSecret:  "xyz",
				Scope:         "sharing.read",
			},
		},
		{
			name:    "missing_type",
			raw:     `{"shareCredentialsVersion":2,"endpoint":"https://e.example.com"}`,
			wantErr: "requires an explicit type",
		},
		{
			name:    "unknown_type",
			raw:     `{"shareCredentialsVersion":2,"type":"kerberos","endpoint":"https://e.example.com"}`,
			wantErr: `unknown profile type "kerberos"`,
		},
		{
			name: "first_missing_field_reported",
			raw: `{"shareCredentialsVersion":2,"type":"oauth_client_credentials",` +
				`"endpoint":"https://e.example.com","clientId":"abc"}`,
			wantErr: "missing tokenEndpoint",
		},
		{
			name: "missing_client_secret",
			raw: `{"shareCredentialsVersion":2,"type":"oauth_client_credentials",` +
				`"endpoint":"https://e.example.com","tokenEndpoint":"https://login.example.com/token","clientId":"abc"}`,
			wantErr: "missing clientSecret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.IsType(t, &sharing.ValidationError{}, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Version(t *testing.T) {
	t.Run("missing_version", func(t *testing.T) {
		_, err := Parse([]byte(`{"endpoint":"https://e.example.com","bearerToken":"t"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing shareCredentialsVersion")
	})

	t.Run("too_new_names_offending_value", func(t *testing.T) {
		_, err := Parse([]byte(`{"shareCredentialsVersion":3,"endpoint":"https://e.example.com","bearerToken":"t"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 is too new")
	})

	t.Run("zero_version", func(t *testing.T) {
		_, err := Parse([]byte(`{"shareCredentialsVersion":0,"endpoint":"https://e.example.com","bearerToken":"t"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported shareCredentialsVersion 0")
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, err := Parse([]byte(`{not json`))
		require.Error(t, err)
		assert.IsType(t, &sharing.ValidationError{}, err)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.share")
	raw := `{"shareCredentialsVersion":1,"endpoint":"https://e.example.com","bearerToken":"t"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t", p.BearerToken)

	_, err = LoadFile(filepath.Join(dir, "absent.share"))
	require.Error(t, err)
	assert.IsType(t, &sharing.ValidationError{}, err)
}

func TestProfile_Expiry(t *testing.T) {
	p := &Profile{ExpirationTime: "2021-11-12T00:12:29Z"}

	at, ok := p.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 11, 12, 0, 12, 29, 0, time.UTC), at.UTC())

	assert.False(t, p.Expired(time.Date(2021, 11, 11, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Expired(time.Date(2021, 11, 13, 0, 0, 0, 0, time.UTC)))

	noExpiry := &Profile{}
	_, ok = noExpiry.ExpiresAt()
	assert.False(t, ok)
	assert.False(t, noExpiry.Expired(time.Now()))

	bad := &Profile{ExpirationTime: "next tuesday"}
	_, ok = bad.ExpiresAt()
	assert.False(t, ok)
}

func TestProfile_ExpiryFromJWTBearer(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signedJWT(t, jwt.MapClaims{"exp": exp.Unix()})

	p := &Profile{Type: TypeBearerToken, BearerToken: token}
	at, ok := p.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, exp.Unix(), at.Unix())

	// An explicit expirationTime takes precedence over the token's claim.
	p.ExpirationTime = "2021-11-12T00:12:29Z"
	at, ok = p.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, int64(1636675949), at.Unix())

	// Opaque tokens yield no expiry.
	opaque := &Profile{Type: TypeBearerToken, BearerToken: "dapi-opaque-token"}
	_, ok = opaque.ExpiresAt()
	assert.False(t, ok)
}

func TestTokenExpiry(t *testing.T) {
	t.Run("exp_claim", func(t *testing.T) {
		at, ok := TokenExpiry(signedJWT(t, jwt.MapClaims{"exp": int64(1893456000)}))
		require.True(t, ok)
		assert.Equal(t, time.Unix(1893456000, 0).UTC(), at.UTC())
	})

	t.Run("no_exp_claim", func(t *testing.T) {
		_, ok := TokenExpiry(signedJWT(t, jwt.MapClaims{"sub": "recipient"}))
		assert.False(t, ok)
	})

	t.Run("opaque_token", func(t *testing.T) {
		_, ok := TokenExpiry("not-a-jwt")
		assert.False(t, ok)
	})
}

func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}
