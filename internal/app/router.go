package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/livecart"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/security"
)

// RouterOptions toggles the cross-cutting middleware.
type RouterOptions struct {
	Limiter *limiter.Limiter
	Metrics *obs.HTTPMetrics
	Tracing bool
	// Extra mounts operational endpoints such as /metrics.
	Extra func(r chi.Router)
}

// NewRouter mounts the API under /api/v1.
func NewRouter(d *Dependencies, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.Tracing("toko-pos"))
		r.Use(obs.RouteSpanMiddleware)
	}
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.Config.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", common.RegisterHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Extra != nil {
		opts.Extra(r)
	}

	healthHandler := health.Handler{Probes: d.Probes()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	inventoryHandler := inventory.NewHandler(d.Inventory)
	checkoutHandler := checkout.NewHandler(checkout.HandlerConfig{
		Processor: d.Processor,
		Catalog:   d.Inventory,
		Locker:    d.Locker,
		LockTTL:   d.Config.CheckoutLockTTL,
		Display:   d.LiveCart,
		Logger:    d.component("checkout"),
	})
	liveCartHandler := livecart.NewHandler(d.LiveCart)

	r.Route("/api/v1", func(v chi.Router) {
		if opts.Limiter != nil {
			v.Use(stdlib.NewMiddleware(opts.Limiter,
				stdlib.WithKeyGetter(registerKey),
				stdlib.WithLimitReachedHandler(limitReached),
			).Handler)
		}
		v.Use(security.BodyLimit{}.Middleware)

		inventoryHandler.Routes(v)
		checkoutHandler.Routes(v, d.Idem.Middleware)
		liveCartHandler.Routes(v)
	})
	return r
}

// registerKey rate-limits per register, falling back to the client address.
func registerKey(r *http.Request) string {
	if id := common.RegisterID(r); id != "" {
		return "register:" + id
	}
	return "ip:" + common.ClientIP(r)
}

func limitReached(w http.ResponseWriter, _ *http.Request) {
	common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
