package controllers

import (
	"net/http"

	"github.com/angelmondragon/scoopshop-backend/api/middleware"
	"github.com/angelmondragon/scoopshop-backend/api/responses"
	"github.com/angelmondragon/scoopshop-backend/api/validators"
	cartsvc "github.com/angelmondragon/scoopshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
)

// cartSession returns the session id resolved by the CartSession middleware,
// writing the error response itself when the service or session is missing.
func cartSession(svc cartsvc.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request) (string, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return "", false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session missing"))
		return "", false
	}
	return sessionID, true
}

// CartFetch returns the session's lines and unit count.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}
		snapshot, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// CartCount returns the badge count.
func CartCount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}
		count, err := svc.Count(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, countResponse{Count: count})
	}
}

// CartAddItem merges the line into an existing identical line or appends it.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := payload.toKey()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Add(r.Context(), sessionID, key, payload.quantity())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSnapshotResponse(snapshot))
	}
}

// CartUpdateQuantity sets a line's quantity; zero or less removes it.
func CartUpdateQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := payload.toKey()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.UpdateQuantity(r.Context(), sessionID, key, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// CartRemoveItem drops the identified line. Removing an absent line is not an error.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}

		var payload removeItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key, err := payload.toKey()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Remove(r.Context(), sessionID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// CartClear empties the cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}
		snapshot, err := svc.Clear(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// CartQuote prices the cart against caller-supplied catalog prices.
func CartQuote(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := cartSession(svc, logg, w, r)
		if !ok {
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		catalog, err := payload.toCatalog()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), sessionID, catalog)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}
