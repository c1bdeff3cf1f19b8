// Package profile parses and validates the credential profiles a recipient
// is configured with. A profile is a small JSON document naming the sharing
// endpoint and one authentication scheme; it is parsed once at session start
// and immutable afterwards.
package profile

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lakeshare/lakeshare/sharing"
)

// Type tags the authentication scheme a profile carries.
type Type string

const (
	// TypeBearerToken is a long-lived static token, the only scheme of
	// version 1 profiles and their implicit default.
	TypeBearerToken Type = "bearer_token"
	// TypeOAuthClientCredentials is the OAuth2 client-credentials flow
	// introduced by version 2 profiles.
	TypeOAuthClientCredentials Type = "oauth_client_credentials"
)

// CurrentVersion is the highest shareCredentialsVersion this client
// understands. Profiles declaring a newer version are rejected so a stale
// client never half-reads a format it does not know.
const CurrentVersion = 2

// Profile is a parsed credential profile. Exactly the fields of the declared
// Type are populated; downstream dispatch switches on Type exhaustively.
type Profile struct {
	Version  int
	Type     Type
	Endpoint string

	// Bearer-token fields.
	BearerToken string
	// ExpirationTime is the optional token expiry, RFC 3339, empty when
	// the provider did not state one.
	ExpirationTime string

	// OAuth client-credentials fields.
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string
}

// profileFile mirrors the JSON document. Mandatory fields are pointers so a
// missing or null field is distinguishable; unknown fields are dropped for
// forward compatibility.
type profileFile struct {
	ShareCredentialsVersion *int    `json:"shareCredentialsVersion"`
	Type                    string  `json:"type"`
	Endpoint                *string `json:"endpoint"`
	BearerToken             *string `json:"bearerToken"`
	ExpirationTime          *string `json:"expirationTime"`
	TokenEndpoint           *string `json:"tokenEndpoint"`
	ClientID                *string `json:"clientId"`
	ClientSecret            *string `json:"clientSecret"`
	Scope                   *string `json:"scope"`
}

// Parse parses and validates a raw profile document.
func Parse(raw []byte) (*Profile, error) {
	var f profileFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, sharing.ErrValidation("malformed profile JSON: %v", err)
	}
	if f.ShareCredentialsVersion == nil {
		return nil, sharing.ErrValidation("profile is missing shareCredentialsVersion")
	}
	version := *f.ShareCredentialsVersion
	if version > CurrentVersion {
		return nil, sharing.ErrValidation(
			"profile shareCredentialsVersion %d is too new; this client supports up to version %d",
			version, CurrentVersion)
	}
	if version < 1 {
		return nil, sharing.ErrValidation("unsupported shareCredentialsVersion %d", version)
	}

	switch version {
	case 1:
		// Version 1 predates the type tag; bearer_token is its implicit
		// and only scheme.
		if f.Type != "" && Type(f.Type) != TypeBearerToken {
			return nil, sharing.ErrValidation("profile version 1 supports only type %q, got %q", TypeBearerToken, f.Type)
		}
		return parseBearerToken(version, f)
	default:
		if f.Type == "" {
			return nil, sharing.ErrValidation("profile version %d requires an explicit type", version)
		}
		switch Type(f.Type) {
		case TypeOAuthClientCredentials:
			return parseOAuthClientCredentials(version, f)
		default:
			return nil, sharing.ErrValidation("unknown profile type %q", f.Type)
		}
	}
}

func parseBearerToken(version int, f profileFile) (*Profile, error) {
	endpoint, err := requireField("endpoint", f.Endpoint)
	if err != nil {
		return nil, err
	}
	token, err := requireField("bearerToken", f.BearerToken)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		Version:     version,
		Type:        TypeBearerToken,
		Endpoint:    normalizeEndpoint(endpoint),
		BearerToken: token,
	}
	if f.ExpirationTime != nil {
		p.ExpirationTime = *f.ExpirationTime
	}
	return p, nil
}

func parseOAuthClientCredentials(version int, f profileFile) (*Profile, error) {
	endpoint, err := requireField("endpoint", f.Endpoint)
	if err != nil {
		return nil, err
	}
	tokenEndpoint, err := requireField("tokenEndpoint", f.TokenEndpoint)
	if err != nil {
		return nil, err
	}
	clientID, err := requireField("clientId", f.ClientID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireField("clientSecret", f.ClientSecret)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		Version:       version,
		Type:          TypeOAuthClientCredentials,
		Endpoint:      normalizeEndpoint(endpoint),
		TokenEndpoint: tokenEndpoint,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
	}
	if f.Scope != nil {
		p.Scope = *f.Scope
	}
	return p, nil
}

// requireField reports the first missing mandatory field by name.
func requireField(name string, value *string) (string, error) {
	if value == nil || *value == "" {
		return "", sharing.ErrValidation("profile is missing %s", name)
	}
	return *value, nil
}

func normalizeEndpoint(endpoint string) string {
	return strings.TrimRight(endpoint, "/")
}

// LoadFile reads and parses a profile from disk.
func LoadFile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sharing.ErrValidation("cannot read profile %s: %v", path, err)
	}
	return Parse(raw)
}

// ExpiresAt resolves the profile's effective credential expiry: the explicit
// expirationTime when stated, otherwise the token's own exp claim for bearer
// tokens that are JWTs. The second return is false when neither source yields
// an expiry (opaque token, no expirationTime) or the stated timestamp is
// unparsable.
func (p *Profile) ExpiresAt() (time.Time, bool) {
	if p.ExpirationTime != "" {
		t, err := time.Parse(time.RFC3339Nano, p.ExpirationTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if p.Type == TypeBearerToken {
		return TokenExpiry(p.BearerToken)
	}
	return time.Time{}, false
}

// Expired reports whether the profile's bearer token is past its stated
// expiry at the given instant. Profiles without an expiry never expire.
func (p *Profile) Expired(now time.Time) bool {
	t, ok := p.ExpiresAt()
	return ok && !now.Before(t)
}

// TokenExpiry extracts the exp claim from a JWT without verifying its
// signature. Verification is the server's job; the client only needs the
// lifetime for expiry bookkeeping. Returns false for opaque tokens and for
// JWTs carrying no exp claim.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
