package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/scoopshop-backend/api/responses"
	cartsvc "github.com/angelmondragon/scoopshop-backend/internal/cart"
	"github.com/angelmondragon/scoopshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/events"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
)

const defaultHeartbeat = 25 * time.Second

// EventSubscriber is the part of the event bus the stream needs.
type EventSubscriber interface {
	Subscribe(filter events.Filter) <-chan events.Event
	Unsubscribe(ch <-chan events.Event)
}

// CartEvents streams the session's cart.updated and orders.updated events as
// server-sent events. The first frame is the current cart so badges render
// without waiting for a mutation.
func CartEvents(svc cartsvc.Service, bus EventSubscriber, logg *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}
		if bus == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event stream unavailable"))
			return
		}

		// subscribe first so nothing published after the snapshot is missed
		ch := bus.Subscribe(events.ForSession(sessionID))
		defer bus.Unsubscribe(ch)

		snapshot, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rc := http.NewResponseController(w)
		// streams outlive the server write timeout
		_ = rc.SetWriteDeadline(time.Time{})
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		initial := events.Event{
			Type:       enums.CartEventTypeCartUpdated,
			SessionID:  sessionID,
			OccurredAt: time.Now().UTC(),
		}
		if err := writeEvent(w, initial, newSnapshotResponse(snapshot)); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			logError(r, logg, "flush event stream", err)
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-ch:
				if !open {
					return
				}
				if err := writeEvent(w, event, eventData(event)); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func eventData(event events.Event) any {
	switch payload := event.Data.(type) {
	case cartsvc.CartUpdatedPayload:
		return newCartResponse(payload.SessionID, payload.Items)
	case cartsvc.OrdersUpdatedPayload:
		return ordersUpdatedResponse{SessionID: payload.SessionID}
	}
	return event.Data
}

func writeEvent(w io.Writer, event events.Event, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type.String(), body)
	return err
}

func logError(r *http.Request, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(r.Context(), msg, err)
}
