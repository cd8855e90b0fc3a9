// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/notesbot/internal/core"
)

type fakeVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(_ context.Context, _ string) (*AccessTokenClaims, error) {
	return f.claims, f.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Subject", GetSubject(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, ExtractToken(req), tt.header)
	}
}

func TestAuthenticator(t *testing.T) {
	admin := fakeVerifier{claims: &AccessTokenClaims{Subject: "ops", Role: "admin"}}

	rec := serve(Authenticator(admin)(okHandler()), bearer(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(Authenticator(admin)(okHandler()), bearer("good"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ops", rec.Header().Get("X-Subject"))

	expired := fakeVerifier{err: core.ErrTokenExpired}
	rec = serve(Authenticator(expired)(okHandler()), bearer("old"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")

	invalid := fakeVerifier{err: core.ErrTokenInvalid}
	rec = serve(Authenticator(invalid)(okHandler()), bearer("junk"))
	assert.Contains(t, rec.Body.String(), "TOKEN_INVALID")
}

func TestRequireAdmin(t *testing.T) {
	chain := func(role string) http.Handler {
		v := fakeVerifier{claims: &AccessTokenClaims{Subject: "ops", Role: role}}
		return Authenticator(v)(RequireAdmin(okHandler()))
	}

	assert.Equal(t, http.StatusNoContent, serve(chain("admin"), bearer("t")).Code)
	assert.Equal(t, http.StatusForbidden, serve(chain("priest"), bearer("t")).Code)

	rec := serve(RequireAdmin(okHandler()), bearer(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := serve(h, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	serve(h, req)
	assert.Len(t, seen, 36)
}

func TestLoggerAndRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestID(Logger(logger)(Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"msg":"http handler panic"`)
	assert.Contains(t, out, `"msg":"http request"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"path":"/webhook"`)
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_FallsBackToLocalLimiter(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Name:     "payment",
		Limit:    PerMinute(2, 2),
		FailOpen: true,
	})
	h := rl.Handler(okHandler())

	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/yookassa-webhook", nil)
		r.RemoteAddr = "203.0.113.9:5000"
		return serve(h, r)
	}

	require.Equal(t, http.StatusNoContent, req().Code)
	first := req()
	require.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))

	limited := req()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMITED")

	other := httptest.NewRequest(http.MethodPost, "/yookassa-webhook", nil)
	other.RemoteAddr = "203.0.113.10:5000"
	assert.Equal(t, http.StatusNoContent, serve(h, other).Code)
}

func TestRateLimiterKeys(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{Name: "telegram", Limit: PerMinute(1, 1)})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.1:443"
	assert.Equal(t, "ratelimit:telegram:ip:198.51.100.1", rl.key(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 192.0.2.7")
	assert.Equal(t, "ip:192.0.2.7", KeyByIP(req))

	ctx := context.WithValue(req.Context(), SubjectKey, "ops")
	assert.Equal(t, "sub:ops", KeyBySubject(req.WithContext(ctx)))
}

func TestPer(t *testing.T) {
	l := Per(10, 5, 0)
	assert.Equal(t, time.Minute, l.Period)
	assert.Equal(t, 10, l.Rate)
	assert.Equal(t, 5, l.Burst)
}

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Run()
}
