package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/scoopshop-backend/pkg/redis"
	"github.com/angelmondragon/scoopshop-backend/pkg/redis/redistest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func rateLimited(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
		t.Fatalf("unexpected code: %s", payload.Error.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	store := pkgredis.NewWithCmdable(redistest.NewFake())
	policy := NewRateLimitPolicy("session", time.Minute, 2, 0)
	handler := RateLimit(policy, store, logger.Nop())(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_IPLimitTriggers(t *testing.T) {
	fake := redistest.NewFake()
	store := pkgredis.NewWithCmdable(fake)
	policy := NewRateLimitPolicy("session", time.Minute, 1, 0)
	handler := RateLimit(policy, store, logger.Nop())(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 {
			rateLimited(t, rec)
		}
	}

	key := store.RateLimitKey("session", "ip", "5.6.7.8")
	if fake.TTL(key) != time.Minute {
		t.Fatalf("expected window ttl on %s, got %v", key, fake.TTL(key))
	}

	// another client keeps its own budget
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other ip to pass, got %d", rec.Code)
	}
}

func TestRateLimit_ForwardedForWins(t *testing.T) {
	store := pkgredis.NewWithCmdable(redistest.NewFake())
	policy := NewRateLimitPolicy("session", time.Minute, 1, 0)
	handler := RateLimit(policy, store, logger.Nop())(okHandler())

	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
		req.RemoteAddr = addr
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if i == 1 {
			rateLimited(t, rec)
		}
	}
}

func TestRateLimit_SessionLimitTriggers(t *testing.T) {
	store := pkgredis.NewWithCmdable(redistest.NewFake())
	policy := NewRateLimitPolicy("cart_items", time.Minute, 0, 2)
	handler := RateLimit(policy, store, logger.Nop())(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
		req = req.WithContext(WithSessionID(req.Context(), "sess-1"))
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2:
			rateLimited(t, rec)
		}
	}
}

func TestRateLimit_DisabledPolicyAndNilStorePassThrough(t *testing.T) {
	fake := redistest.NewFake()
	handlers := []http.Handler{
		RateLimit(NewRateLimitPolicy("session", 0, 1, 0), pkgredis.NewWithCmdable(fake), logger.Nop())(okHandler()),
		RateLimit(NewRateLimitPolicy("session", time.Minute, 1, 0), nil, logger.Nop())(okHandler()),
	}
	for _, handler := range handlers {
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected pass-through, got %d", rec.Code)
			}
		}
	}
	if fake.Keys() != 0 {
		t.Fatalf("disabled policy should not count, got %d keys", fake.Keys())
	}
}

func TestRateLimit_StoreFailureIsDependencyError(t *testing.T) {
	fake := redistest.NewFake()
	fake.Err = redistest.ErrUnavailable
	handler := RateLimit(NewRateLimitPolicy("session", time.Minute, 1, 0), pkgredis.NewWithCmdable(fake), logger.Nop())(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
