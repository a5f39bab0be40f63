package server

import (
	"log/slog"
	"net/http"

	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/handlers"
	"liquor-dashboard/internal/rings"
	"liquor-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// Options carry the request defaults the handlers fall back to.
type Options struct {
	DefaultPeriod rings.PeriodScheme
	Forecast      forecast.Params
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers, opts Options) *Server {
	if opts.DefaultPeriod == "" {
		opts.DefaultPeriod = rings.PeriodWeek
	}
	if opts.Forecast.Months == 0 {
		opts.Forecast = forecast.DefaultParams()
	}

	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, opts.DefaultPeriod, opts.Forecast),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, opts.DefaultPeriod, opts.Forecast),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("GET /api/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/rings", s.apiHandlers.HandleRings)
	s.mux.HandleFunc("GET /api/rings/{key}", s.apiHandlers.HandlePublishedRings)
	s.mux.HandleFunc("GET /api/breakdown", s.apiHandlers.HandleBreakdown)
	s.mux.HandleFunc("GET /api/forecast", s.apiHandlers.HandleForecast)
	s.mux.HandleFunc("GET /api/stores", s.apiHandlers.HandleStores)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/rings", s.sseHandlers.HandleRings)
	s.mux.HandleFunc("GET /sse/breakdown", s.sseHandlers.HandleBreakdown)
	s.mux.HandleFunc("GET /sse/forecast", s.sseHandlers.HandleForecast)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
