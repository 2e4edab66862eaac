package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"finitefield.org/toolskit/internal/i18n"
	"finitefield.org/toolskit/internal/platform/httpx"
	"finitefield.org/toolskit/internal/platform/observability"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	api  []RouteRegistrar
	site []RouteRegistrar
	blog RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 30 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the API, site and blog groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, reg := range cfg.api {
			if reg != nil {
				reg(api)
			}
		}
	})

	if cfg.blog != nil {
		r.Route("/blog", func(group chi.Router) {
			cfg.blog(group)
		})
	}

	for _, reg := range cfg.site {
		if reg != nil {
			reg(r)
		}
	}

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// ServiceMiddlewares is the request chain the server installs, outermost first.
// The locale is negotiated before the request logger runs so it can log it.
func ServiceMiddlewares(logger *zap.Logger, locale language.Tag) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger),
		i18n.Middleware(locale),
		observability.RequestLoggerMiddleware(),
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithAPIRoutes adds registrars mounted beneath the API prefix.
func WithAPIRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.api = append(cfg.api, regs...)
	}
}

// WithSiteRoutes adds registrars mounted at the root, e.g. content pages.
func WithSiteRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.site = append(cfg.site, regs...)
	}
}

// WithBlogRoutes mounts reg beneath /blog. A nil registrar leaves /blog unrouted.
func WithBlogRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.blog = reg
	}
}
