package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (Window, error) {
	return Window{}, errors.New("connection refused")
}

func newTestInterceptor(store Store, clock *stepClock, reg prometheus.Registerer) http.Handler {
	limiter := NewLimiter(store, time.Minute, 60, WithClock(clock.Now))
	interceptor := NewInterceptor(limiter, InterceptorConfig{
		Guarded:    []string{"/auth/", "/user/", "/role/"},
		Exempt:     []string{"/healthz", "/metrics", "/docs/", "/swagger/"},
		Registerer: reg,
	})
	return interceptor.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func doRequest(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestInterceptorWindowScenario(t *testing.T) {
	clock := &stepClock{now: epoch}
	reg := prometheus.NewRegistry()
	interceptor := NewInterceptor(NewLimiter(NewMemoryStore(), time.Minute, 60, WithClock(clock.Now)), InterceptorConfig{
		Guarded:    []string{"/auth/"},
		Registerer: reg,
	})
	h := interceptor.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 60; i++ {
		rr := doRequest(h, "/auth/access-token", "192.0.2.1:4000")
		require.Equal(t, http.StatusNoContent, rr.Code, "request %d", i+1)
		clock.Advance(500 * time.Millisecond)
	}

	rr := doRequest(h, "/auth/access-token", "192.0.2.1:4000")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Rate limit exceeded. Please try again later."}, body)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, float64(1), testutil.ToFloat64(interceptor.rejected))

	clock.Advance(time.Minute)
	rr = doRequest(h, "/auth/access-token", "192.0.2.1:4000")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "59", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestInterceptorKeysByClientAndPath(t *testing.T) {
	clock := &stepClock{now: epoch}
	h := newTestInterceptor(NewMemoryStore(), clock, nil)

	for i := 0; i < 60; i++ {
		require.Equal(t, http.StatusNoContent, doRequest(h, "/auth/access-token", "192.0.2.1:4000").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "/auth/access-token", "192.0.2.1:4000").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(h, "/auth/refresh-token", "192.0.2.1:4000").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(h, "/auth/access-token", "192.0.2.2:4000").Code)
}

func TestInterceptorSkipsUnguardedAndExemptPaths(t *testing.T) {
	clock := &stepClock{now: epoch}
	limiter := NewLimiter(NewMemoryStore(), time.Minute, 1, WithClock(clock.Now))
	interceptor := NewInterceptor(limiter, InterceptorConfig{
		Guarded: []string{"/"},
		Exempt:  []string{"/healthz", "/swagger/"},
	})
	h := interceptor.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "/healthz", "192.0.2.1:1").Code)
		assert.Equal(t, http.StatusOK, doRequest(h, "/swagger/index.html", "192.0.2.1:1").Code)
	}
	assert.Empty(t, doRequest(h, "/healthz", "192.0.2.1:1").Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusOK, doRequest(h, "/user/list", "192.0.2.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "/user/list", "192.0.2.1:1").Code)
}

func TestInterceptorFailsOpenOnStoreError(t *testing.T) {
	h := newTestInterceptor(failingStore{}, &stepClock{now: epoch}, nil)
	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusNoContent, doRequest(h, "/role/list", "192.0.2.1:1").Code)
	}
}

func TestInterceptorConcurrentFirstRequests(t *testing.T) {
	clock := &stepClock{now: epoch}
	h := newTestInterceptor(NewMemoryStore(), clock, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := doRequest(h, "/auth/access-token", "192.0.2.9:1").Code
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 60, codes[http.StatusNoContent])
	assert.Equal(t, 40, codes[http.StatusTooManyRequests])
}

func TestInterceptorWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	clock := &stepClock{now: epoch}
	h := newTestInterceptor(store, clock, nil)

	for i := 0; i < 60; i++ {
		require.Equal(t, http.StatusNoContent, doRequest(h, "/user/list", "192.0.2.1:1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "/user/list", "192.0.2.1:1").Code)

	clock.Advance(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, doRequest(h, "/user/list", "192.0.2.1:1").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.1"}, "192.0.2.1:80", "203.0.113.5"},
		{"forwarded beats real ip", map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "198.51.100.7"}, "192.0.2.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "192.0.2.1:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:80", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
