package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireUser())
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	r := newIdentityRouter()

	testCases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "blank header", header: "   "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("X-User-ID", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRequireUserPassesIdentity(t *testing.T) {
	r := newIdentityRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "u1" {
		t.Errorf("body = %q, want u1", w.Body.String())
	}
}

func TestIsOriginAllowed(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}

	if !IsOriginAllowed("https://app.example.com", cfg) {
		t.Error("configured origin rejected")
	}
	if IsOriginAllowed("https://evil.example.com", cfg) {
		t.Error("foreign origin accepted")
	}
	if !IsOriginAllowed("https://anything.example.com", CORSConfig{AllowAllOrigins: true}) {
		t.Error("wildcard config rejected an origin")
	}
}
