package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/catalogsync/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"one", "two"}}
	h := APIKeyAuth(cfg)(okHandler)

	tests := []struct {
		name string
		key  string
		want int
		code string
	}{
		{"missing", "", http.StatusUnauthorized, "AUTH_MISSING_KEY"},
		{"wrong", "three", http.StatusForbidden, "AUTH_INVALID_KEY"},
		{"first key", "one", http.StatusNoContent, ""},
		{"second key", "two", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{})(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-an-ip"})

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"untrusted keeps socket", "203.0.113.9:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:4000"},
		{"trusted cidr real ip", "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted bare address", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.1.1"}, "5.6.7.8"},
		{"real ip wins", "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4", "X-Forwarded-For": "5.6.7.8"}, "1.2.3.4"},
		{"garbage header ignored", "10.1.2.3:4000", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3:4000"},
		{"no headers", "10.1.2.3:4000", nil, "10.1.2.3:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelError, levelFor("/api/sync", 502))
	assert.Equal(t, slog.LevelWarn, levelFor("/api/sync", 401))
	assert.Equal(t, slog.LevelDebug, levelFor("/healthz", 200))
	assert.Equal(t, slog.LevelInfo, levelFor("/api/catalog", 200))
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
