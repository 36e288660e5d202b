package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/infra/security"
)

type stubParser struct {
	claims *security.SessionClaims
	err    error
	seen   string
}

func (p *stubParser) ParseSessionToken(raw string) (*security.SessionClaims, error) {
	p.seen = raw
	return p.claims, p.err
}

func newAuthRouter(parser SessionTokenParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", RequireAuth(parser), func(c *gin.Context) {
		id, _ := GetAuthenticatedUserID(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       id,
			"username": GetAuthenticatedUsername(c),
			"ctx":      GetRequestContext(c).UserID,
		})
	})
	return router
}

func TestRequireAuthRejectsBadHeaders(t *testing.T) {
	parser := &stubParser{claims: &security.SessionClaims{UserID: "u-1", Username: "alice"}}
	router := newAuthRouter(parser)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing", header: "", message: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", message: "invalid authorization format: expected 'Bearer <token>'"},
		{name: "no separator", header: "Bearer", message: "invalid authorization format: expected 'Bearer <token>'"},
		{name: "blank token", header: "Bearer   ", message: "missing session token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			var body ErrorEnvelope
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success || body.Message != tt.message {
				t.Fatalf("unexpected envelope %+v", body)
			}
		})
	}
}

func TestRequireAuthDistinguishesExpiredTokens(t *testing.T) {
	cases := map[string]error{
		"session token expired": security.ErrSessionTokenExpired,
		"invalid session token": fmt.Errorf("%w: bad signature", security.ErrSessionTokenInvalid),
	}

	for message, parseErr := range cases {
		router := newAuthRouter(&stubParser{err: parseErr})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var body ErrorEnvelope
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if rr.Code != http.StatusUnauthorized || body.Message != message {
			t.Fatalf("expected 401 %q, got %d %q", message, rr.Code, body.Message)
		}
	}
}

func TestRequireAuthStoresClaims(t *testing.T) {
	parser := &stubParser{claims: &security.SessionClaims{UserID: "u-1", Username: "alice"}}
	router := newAuthRouter(parser)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer  tok-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if parser.seen != "tok-123" {
		t.Fatalf("expected trimmed token, got %q", parser.seen)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "u-1" || body["username"] != "alice" || body["ctx"] != "u-1" {
		t.Fatalf("unexpected identity %v", body)
	}
}
