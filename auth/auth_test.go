package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	v := NewVerifier("secret", nil)
	tok, err := v.IssueToken(Principal{ID: "u1", Email: "u1@x.com", Name: "Una"}, time.Hour)
	require.NoError(t, err)

	p, err := v.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: "u1", Email: "u1@x.com", Name: "Una"}, p)
}

func TestParseToken_Rejects(t *testing.T) {
	v := NewVerifier("secret", nil)

	expired, err := v.IssueToken(Principal{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	other, err := NewVerifier("other", nil).IssueToken(Principal{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	noSub, err := v.IssueToken(Principal{}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{"expired": expired, "wrong secret": other, "no subject": noSub, "alg none": none, "garbage": "a.b.c"} {
		_, err := v.ParseToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestParseToken_AdminResolver(t *testing.T) {
	v := NewVerifier("secret", func(p Principal) bool { return p.Email == "boss@x.com" })

	tok, _ := v.IssueToken(Principal{ID: "u1", Email: "boss@x.com"}, time.Hour)
	p, err := v.ParseToken(tok)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	tok, _ = v.IssueToken(Principal{ID: "u2", Email: "staff@x.com"}, time.Hour)
	p, err = v.ParseToken(tok)
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)

	tok, _ = v.IssueToken(Principal{ID: "u3", IsAdmin: true}, time.Hour)
	p, err = v.ParseToken(tok)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
}

func TestMiddleware_CookieAndBearer(t *testing.T) {
	v := NewVerifier("secret", nil)
	tok, err := v.IssueToken(Principal{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	var seen Principal
	h := v.Middleware(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", seen.ID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAuth_Unauthorized(t *testing.T) {
	v := NewVerifier("secret", nil)
	h := v.Middleware(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	for _, header := range []string{"", "Bearer nope", "Basic abc"} {
		req := httptest.NewRequest(http.MethodPost, "/interventions", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAdmin(ok)

	req := httptest.NewRequest(http.MethodGet, "/admin/records", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{ID: "u1"}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "Admin privileges required"))

	req = req.WithContext(WithPrincipal(req.Context(), Principal{ID: "u1", IsAdmin: true}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := PrincipalFromContext(req.Context())
	assert.False(t, ok)
	_, ok = PrincipalFromContext(WithPrincipal(req.Context(), Principal{}))
	assert.False(t, ok)
}
