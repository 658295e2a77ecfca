package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/scoopshop-backend/api/middleware"
	cartsvc "github.com/angelmondragon/scoopshop-backend/internal/cart"
	"github.com/angelmondragon/scoopshop-backend/pkg/enums"
	"github.com/angelmondragon/scoopshop-backend/pkg/events"
)

func TestCartEventsStreamsSnapshotAndSessionEvents(t *testing.T) {
	svc, bus := newTestCartService(t)
	if _, err := svc.Add(context.Background(), testSession, cartsvc.LineKey{ProductID: "vanilla"}, 2); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/events", nil).WithContext(middleware.WithSessionID(ctx, testSession))
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		CartEvents(svc, bus, nil, time.Hour).ServeHTTP(resp, req)
	}()

	waitFor(t, func() bool { return bus.Subscribers() == 1 })

	bus.Publish(events.Event{
		Type:      enums.CartEventTypeOrdersUpdated,
		SessionID: "someone-else",
		Data:      cartsvc.OrdersUpdatedPayload{SessionID: "someone-else"},
	})
	bus.Publish(events.Event{
		ID:        "evt-1",
		Type:      enums.CartEventTypeOrdersUpdated,
		SessionID: testSession,
		Data:      cartsvc.OrdersUpdatedPayload{SessionID: testSession},
	})

	// the stream drains its channel before the cancel lands
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := resp.Body.String()
	if !strings.HasPrefix(body, "event: cart.updated\ndata: ") {
		t.Fatalf("expected snapshot frame first, got %q", body)
	}
	if !strings.Contains(body, `"count":2`) {
		t.Fatalf("expected snapshot count, got %q", body)
	}
	if !strings.Contains(body, "id: evt-1\nevent: orders.updated\ndata: {\"session_id\":\"session-1\"}\n\n") {
		t.Fatalf("expected session event frame, got %q", body)
	}
	if strings.Contains(body, "someone-else") {
		t.Fatalf("stream leaked another session's event: %q", body)
	}
	if bus.Subscribers() != 0 {
		t.Fatalf("expected stream to unsubscribe on exit")
	}
}

func TestCartEventsEndsWhenBusCloses(t *testing.T) {
	bus := events.NewBus(4, nil)
	svc, err := cartsvc.NewService(cartsvc.NewMemoryStore(), bus, nil, nil, cartsvc.Options{DebounceWindow: time.Hour})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/events", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), testSession))
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		CartEvents(svc, bus, nil, time.Hour).ServeHTTP(resp, req)
	}()

	waitFor(t, func() bool { return bus.Subscribers() == 1 })
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not end after bus close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
