package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habedi/oidckit/pkg/autherr"
)

// Kind discriminates the two OIDC credential variants.
type Kind string

const (
	KindID     Kind = "id"
	KindAccess Kind = "access"
)

// Well-known storage keys for the two credential variants.
const (
	KeyIDToken     = "idToken"
	KeyAccessToken = "accessToken"
)

// Token is a tagged record for one issued credential. Kind is set
// explicitly at construction; nothing is inferred from field presence.
type Token struct {
	Kind      Kind          `json:"kind"`
	Raw       string        `json:"raw"`
	Scopes    []string      `json:"scopes"`
	ExpiresAt int64         `json:"expiresAt"` // epoch seconds, 0 allowed
	Claims    jwt.MapClaims `json:"claims,omitempty"`
}

// New builds a Token without decoding the raw value.
func New(kind Kind, raw string, scopes []string, expiresAt int64) Token {
	return Token{Kind: kind, Raw: raw, Scopes: scopes, ExpiresAt: expiresAt}
}

// FromRaw builds a Token by decoding the raw JWT's claims without
// verifying its signature. Verification belongs to the provider
// exchange, which happens before a token ever reaches this package.
func FromRaw(kind Kind, raw string, scopes []string) (Token, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return Token{}, autherr.New(autherr.Validation, fmt.Sprintf("failed to decode %s token claims", kind), err)
	}
	var expiresAt int64
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Unix()
	}
	return Token{Kind: kind, Raw: raw, Scopes: scopes, ExpiresAt: expiresAt, Claims: claims}, nil
}

// Validate enforces the token invariant: a known kind, a raw value and
// at least one scope. ExpiresAt may be 0 but is always present on the
// struct, so only the other fields can be violated by a caller.
func (t Token) Validate() error {
	switch t.Kind {
	case KindID, KindAccess:
	default:
		return autherr.New(autherr.Validation, fmt.Sprintf("unknown token kind: %q", t.Kind), nil)
	}
	if t.Raw == "" {
		return autherr.New(autherr.Validation, "token raw value cannot be empty", nil)
	}
	if len(t.Scopes) == 0 {
		return autherr.New(autherr.Validation, "token must carry at least one scope", nil)
	}
	return nil
}

// IsAccess reports whether the token is the access variant.
func (t Token) IsAccess() bool { return t.Kind == KindAccess }

// IsID reports whether the token is the id variant.
func (t Token) IsID() bool { return t.Kind == KindID }
