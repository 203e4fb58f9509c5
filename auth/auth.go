/*
Package auth consumes identities issued by the external auth provider.

PURPOSE:
  Every ledger-touching request carries a bearer token whose claims hold
  the acting user's id, role, and permission set. This package validates
  the token, injects the identity into the request context, and guards
  routes by permission.

SCOPE:
  Token ISSUANCE (login, passwords, refresh) belongs to the identity
  provider and is out of scope here; this package only verifies and
  reads what the provider signed.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// =============================================================================
// PERMISSIONS - Names follow the provider's catalog
// =============================================================================

const (
	PermManageItems           = "manage_items"
	PermReadItems             = "read_items"
	PermCreateTransaction     = "create_transaction"
	PermCreateSaleTransaction = "create_sale_transaction"
	PermReadTransactions      = "read_transactions"
	PermVerifyLedger          = "verify_ledger"
	PermViewReports           = "view_reports"
	PermExportReports         = "export_reports"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the acting user as asserted by the auth provider.
type Identity struct {
	UserID      string
	Role        string
	Permissions []string
}

// Can reports whether the identity holds a permission.
func (id Identity) Can(permission string) bool {
	for _, p := range id.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Claims is the JWT payload the provider signs.
type Claims struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// =============================================================================
// TOKEN VERIFICATION
// =============================================================================

// Verifier validates provider tokens with a shared HS256 secret.
type Verifier struct {
	Secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{Secret: []byte(secret)}
}

// Parse validates tokenString and returns the identity it asserts.
func (v *Verifier) Parse(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:      claims.UserID,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

// Sign issues a token for an identity. Exists for tests and local
// development; production tokens come from the auth provider.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:      id.UserID,
		Role:        id.Role,
		Permissions: id.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.Secret)
}

// FromAuthorizationHeader extracts and validates a "Bearer ..." header.
func (v *Verifier) FromAuthorizationHeader(header string) (Identity, error) {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, ErrMissingToken
	}
	return v.Parse(strings.TrimPrefix(header, "Bearer "))
}

// =============================================================================
// CONTEXT PLUMBING
// =============================================================================

type contextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
