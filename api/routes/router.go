package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/scoopshop-backend/api/controllers"
	"github.com/angelmondragon/scoopshop-backend/api/middleware"
	"github.com/angelmondragon/scoopshop-backend/api/responses"
	"github.com/angelmondragon/scoopshop-backend/internal/cart"
	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
	"github.com/angelmondragon/scoopshop-backend/pkg/redis"
)

// NewRouter wires the cart API. A nil idempotency store disables replay
// protection, a nil rate limit store disables throttling and a nil gatherer
// leaves /metrics unmounted.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	rateLimitStore redis.RateLimitStore,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	cartEvents controllers.EventSubscriber,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "method not allowed"))
	})

	sessionPolicy := middleware.NewRateLimitPolicy(
		"session",
		cfg.RateLimit.SessionWindow,
		cfg.RateLimit.SessionIPLimit,
		0,
	)
	itemsPolicy := middleware.NewRateLimitPolicy(
		"cart_items",
		cfg.RateLimit.ItemsWindow,
		cfg.RateLimit.ItemsIPLimit,
		cfg.RateLimit.ItemsSessionLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.With(middleware.RateLimit(sessionPolicy, rateLimitStore, logg)).Post("/api/v1/session", controllers.SessionCreate(cfg.JWT, logg))

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartSession(cfg.JWT, logg))

		r.Get("/", controllers.CartFetch(cartService, logg))
		r.Delete("/", controllers.CartClear(cartService, logg))
		r.Get("/count", controllers.CartCount(cartService, logg))
		r.Get("/events", controllers.CartEvents(cartService, cartEvents, logg, 0))
		r.Post("/quote", controllers.CartQuote(cartService, logg))

		r.Route("/items", func(r chi.Router) {
			r.Use(
				middleware.RateLimit(itemsPolicy, rateLimitStore, logg),
				middleware.Idempotency(idempotencyStore, logg),
			)
			r.Post("/", controllers.CartAddItem(cartService, logg))
			r.Patch("/", controllers.CartUpdateQuantity(cartService, logg))
			r.Delete("/", controllers.CartRemoveItem(cartService, logg))
		})
	})

	return r
}
