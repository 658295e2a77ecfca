package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/scoopshop-backend/api/validators"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/scoopshop-backend/pkg/redis"
	"github.com/angelmondragon/scoopshop-backend/pkg/redis/redistest"
)

const cartItemsPath = "/api/v1/cart/items"

func newIdempotencyStore() (*pkgredis.Client, *redistest.Fake) {
	fake := redistest.NewFake()
	return pkgredis.NewWithCmdable(fake), fake
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(WithSessionID(ctx, "session-1"))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"add item", http.MethodPost, cartItemsPath, defaultIdempotencyTTL, true},
		{"update item", http.MethodPatch, cartItemsPath, 0, false},
		{"clear cart", http.MethodDelete, "/api/v1/cart", 0, false},
		{"trailing slash", http.MethodPost, cartItemsPath + "/", defaultIdempotencyTTL, true},
		{"empty pattern", http.MethodPost, "", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store, _ := newIdempotencyStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{"product_id":"p"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	store, _ := newIdempotencyStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with an oversized key")
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", strings.Repeat("k", maxIdempotencyKeyLen+1))
	resp := httptest.NewRecorder()
	Idempotency(store, nil)(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareRejectsOversizedBody(t *testing.T) {
	store, fake := newIdempotencyStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with an oversized body")
	})

	body := `{"product_id":"` + strings.Repeat("a", validators.MaxBodyBytes) + `"}`
	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "big-body")
	resp := httptest.NewRecorder()
	Idempotency(store, nil)(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "request body too large") {
		t.Fatalf("expected size error, got %s", resp.Body.String())
	}
	if fake.Keys() != 0 {
		t.Fatalf("expected nothing stored, got %d keys", fake.Keys())
	}
}

func TestIdempotencyMiddlewareSkipsWithoutStore(t *testing.T) {
	mw := Idempotency(nil, nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{}`))
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatalf("expected handler to run when no store is configured")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store, fake := newIdempotencyStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{"product_id":"p"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	key := store.IdempotencyKey("session-1|POST|"+cartItemsPath, "abc")
	if ttl := fake.TTL(key); ttl != defaultIdempotencyTTL {
		t.Fatalf("expected record ttl %v got %v", defaultIdempotencyTTL, ttl)
	}

	replay := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{"product_id":"p"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store, _ := newIdempotencyStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{"product_id":"a"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{"product_id":"b"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store, fake := newIdempotencyStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if fake.Keys() != 0 {
		t.Fatalf("expected no stored records, found %d", fake.Keys())
	}
}

func TestIdempotencyMiddlewareDependencyFailure(t *testing.T) {
	store, fake := newIdempotencyStore()
	fake.Err = redistest.ErrUnavailable
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run when the store is down")
	})

	req := requestWithPattern(http.MethodPost, cartItemsPath, cartItemsPath, strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "k")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
