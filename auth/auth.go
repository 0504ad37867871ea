// Package auth verifies session tokens and carries the session principal through
// request contexts. Tokens are HS256 JWTs read from the "session" cookie or an
// Authorization: Bearer header; issuing them belongs to the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	sessionCookieName = "session"
	principalCtxKey   = ctxKey("principal")
)

// Principal is the authenticated user behind a request.
type Principal struct {
	ID      string
	Email   string
	Name    string
	IsAdmin bool
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool { return p.ID == "" }

// Claims is the JWT payload of a session token.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid session token")

// AdminResolver decides admin status from the principal, e.g. against a configured
// e-mail list. It is consulted in addition to the token's is_admin claim.
type AdminResolver func(p Principal) bool

// Verifier validates session tokens signed with a shared secret.
type Verifier struct {
	secret  []byte
	isAdmin AdminResolver
}

// NewVerifier creates a verifier. isAdmin may be nil.
func NewVerifier(secret string, isAdmin AdminResolver) *Verifier {
	return &Verifier{secret: []byte(secret), isAdmin: isAdmin}
}

// IssueToken signs a session token for p. Used by tooling and tests.
func (v *Verifier) IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   p.Email,
		Name:    p.Name,
		IsAdmin: p.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseToken validates signature and expiry and returns the principal.
func (v *Verifier) ParseToken(token string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	p := Principal{ID: claims.Subject, Email: claims.Email, Name: claims.Name, IsAdmin: claims.IsAdmin}
	if !p.IsAdmin && v.isAdmin != nil {
		p.IsAdmin = v.isAdmin(p)
	}
	return p, nil
}

// ParseRequest reads the token from the session cookie, then the Bearer header.
func (v *Verifier) ParseRequest(r *http.Request) (Principal, bool) {
	token := ""
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		token = c.Value
	} else if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		token = strings.TrimSpace(h[7:])
	}
	if token == "" {
		return Principal{}, false
	}
	p, err := v.ParseToken(token)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}

// WithPrincipal stores p in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext extracts the principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, false
	}
	return p, true
}

// Middleware attaches the principal to the request context if a valid token is present.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := v.ParseRequest(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 JSON when no principal is attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"unauthorized"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin answers 403 JSON unless the principal is an admin. Chain after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); !ok || !p.IsAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":"Access denied. Admin privileges required."}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}
