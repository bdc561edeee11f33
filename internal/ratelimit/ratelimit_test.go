package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/toko-fees/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestFixedLimiterMiddleware(t *testing.T) {
	fixed, err := NewFixed(memory.NewStore(), "2-M")
	require.NoError(t, err)
	h := Handler{Limiter: fixed, Key: func(*http.Request) string { return "static" }}.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/destination", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/destination", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestFixedLimiterRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "limiter")
	require.NoError(t, err)
	fixed, err := NewFixed(store, "1-H")
	require.NoError(t, err)

	d, err := fixed.Take(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = fixed.Take(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestRate(t *testing.T) {
	window, n, err := Rate("120-M")
	require.NoError(t, err)
	require.Equal(t, time.Minute, window)
	require.Equal(t, 120, n)

	_, err = NewFixed(memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "x"}), "lots")
	require.Error(t, err)
}

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := Sliding{Client: client, Prefix: "test:", Window: 2 * time.Second, Max: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Take(ctx, "key")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 2-(i+1), d.Remaining)
	}
	d, err := l.Take(ctx, "key")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)

	mr.FastForward(2 * time.Second)
	d, err = l.Take(ctx, "key")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestMiddlewarePassesThroughOnError(t *testing.T) {
	var seen error
	h := Handler{Limiter: failingLimiter{}, Key: KeyByIP, OnError: func(err error) { seen = err }}.Middleware(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Error(t, seen)
}

func TestKeyByUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Contains(t, KeyByUser(req), "ip:")
	req = req.WithContext(common.WithUserID(req.Context(), "u-1"))
	require.Equal(t, "user:u-1", KeyByUser(req))
}
