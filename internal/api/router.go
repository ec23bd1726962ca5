package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Router wires the API handlers into a chi router
type Router struct {
	handler *Handler
	config  *config.Config
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewRouter creates a new API router. m may be nil.
func NewRouter(handler *Handler, config *config.Config, m *metrics.Metrics, logger *logger.Logger) *Router {
	return &Router{
		handler: handler,
		config:  config,
		metrics: m,
		logger:  logger.Named("api-router"),
	}
}

// Routes returns the HTTP handler with all routes registered
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.corsMiddleware)
	if rt.metrics != nil {
		r.Use(rt.metricsMiddleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)

		r.Route("/transcriptions", func(r chi.Router) {
			r.Post("/", rt.handler.CreateTranscription)
			r.Get("/", rt.handler.GetAllTranscriptions)
			r.Get("/{id}", rt.handler.GetTranscription)
			r.Delete("/{id}", rt.handler.DeleteTranscription)
		})

		r.Route("/realtime/sessions", func(r chi.Router) {
			r.Post("/", rt.handler.StartRealtimeSession)
			r.Get("/", rt.handler.ListRealtimeSessions)
			r.Get("/{id}", rt.handler.GetRealtimeSession)
			r.Post("/{id}/stop", rt.handler.StopRealtimeSession)
			r.Post("/{id}/save", rt.handler.SaveRealtimeSession)
		})

		r.Get("/ws", rt.handler.HandleWebSocket)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// corsMiddleware applies the configured CORS policy
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, allowed := range rt.config.Server.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// metricsMiddleware records request counts and latency per route
func (rt *Router) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}

		rt.metrics.RecordHTTPRequest(
			r.Method,
			endpoint,
			strconv.Itoa(ww.Status()),
			time.Since(start).Seconds(),
		)
	})
}
