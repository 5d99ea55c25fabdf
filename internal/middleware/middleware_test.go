package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/imagiseum/gallery/internal/config"
	"github.com/imagiseum/gallery/internal/service"
)

type stubAuth struct {
	id  service.Identity
	err error
	got string
}

func (s *stubAuth) Authenticate(_ context.Context, authorization string) (service.Identity, error) {
	s.got = authorization
	return s.id, s.err
}

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_SetsIdentity(t *testing.T) {
	auth := &stubAuth{id: service.Identity{ID: 9, Name: "Ada", Email: "ada@example.com"}}
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, id.Email)
	}, Authenticate(auth))

	rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer abc"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", rec.Body.String())
	assert.Equal(t, "Bearer abc", auth.got)
}

func TestAuthenticate_PassesErrorThrough(t *testing.T) {
	auth := &stubAuth{err: service.ErrUnauthenticated}
	e := echo.New()
	var seen error
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		seen = err
		_ = c.NoContent(http.StatusUnauthorized)
	}
	called := false
	e.GET("/me", func(c echo.Context) error { called = true; return nil }, Authenticate(auth))

	rec := serve(e, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.True(t, errors.Is(seen, service.ErrUnauthenticated))
}

func TestIdentityFrom_Public(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := IdentityFrom(c)
	assert.False(t, ok)
	assert.Equal(t, "anon", userKey(c))

	SetIdentity(c, service.Identity{ID: 42})
	assert.Equal(t, "42", userKey(c))
}

func TestRateLimiter_LocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "test",
	}
	rl := NewRateLimiter(cfg, nil, slog.Default())
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, rl.Middleware())

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", nil).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", nil).Code)

	rec := serve(e, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := serve(e, http.MethodPost, "/login", map[string]string{"X-Real-IP": "10.0.0.2"})
	assert.Equal(t, http.StatusOK, other.Code, "a different client has its own bucket")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: false, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour}, nil, nil)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, rl.Middleware())
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", nil).Code)
	}
}

func TestKeyedLimiter_Refills(t *testing.T) {
	k := newKeyedLimiter(rate.Every(time.Second), 1, time.Minute)
	t0 := time.Unix(1_700_000_000, 0)

	ok, _, _, _ := k.take("a", t0)
	assert.True(t, ok)
	ok, _, retry, _ := k.take("a", t0)
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)
	ok, _, _, _ = k.take("a", t0.Add(time.Second))
	assert.True(t, ok)

	k.take("b", t0)
	k.take("a", t0.Add(2*time.Minute))
	assert.NotContains(t, k.entries, "b", "idle keys are evicted")
}

func TestResponseCache_PassThroughWithoutRedis(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil)
	e := echo.New()
	e.GET("/api/tags", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, rc.Middleware())

	rec := serve(e, http.MethodGet, "/api/tags", nil)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, rc.Invalidate(context.Background()))
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"success":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	serve(e, http.MethodGet, "/healthz", nil)
	assert.Contains(t, buf.String(), "msg=request")
	assert.Contains(t, buf.String(), "uri=/healthz")
	assert.Contains(t, buf.String(), "status=200")
}
