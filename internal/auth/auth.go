package auth

import (
	"errors"
	"fmt"

	"comanda/internal/domain"

	jwt "github.com/dgrijalva/jwt-go"
)

// ErrInvalidToken is returned for a missing, malformed, expired, or
// wrongly-signed credential.
var ErrInvalidToken = errors.New("invalid_token")

// Identity is the verified {user, role} tuple the core consumes. Raw
// credentials never travel past this package.
type Identity struct {
	UserID   string
	UserName string
	Role     domain.Role
}

// claims is the JWT claim set issued by the auth collaborator.
type claims struct {
	UserID   string `json:"user_id"`
	UserName string `json:"name"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

// Verifier validates HS256 bearer tokens and extracts the identity.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the identity it
// carries. Tokens with an unknown role are rejected rather than mapped
// to an empty permission set.
func (v *Verifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.UserID == "" || !domain.ValidRoles[domain.Role(c.Role)] {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:   c.UserID,
		UserName: c.UserName,
		Role:     domain.Role(c.Role),
	}, nil
}

// Sign issues a token for an identity. Used by tests and local tooling;
// token issuance in production belongs to the auth collaborator.
func (v *Verifier) Sign(id Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID:   id.UserID,
		UserName: id.UserName,
		Role:     string(id.Role),
	})
	return token.SignedString(v.secret)
}
