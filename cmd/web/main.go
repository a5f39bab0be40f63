package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"liquor-dashboard/internal/config"
	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/holidays"
	"liquor-dashboard/internal/middleware"
	"liquor-dashboard/internal/observability"
	"liquor-dashboard/internal/rings"
	"liquor-dashboard/internal/server"
	"liquor-dashboard/internal/services"
	"liquor-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 2 * time.Minute
	storeTimeout   = 5 * time.Second
	cacheMaxAge    = "public, max-age=300"
)

// dashboardHandler serves the page shell seeded with the filter choices and
// the full date range of the loaded data.
func dashboardHandler(analytics *services.Analytics, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		opts := analytics.Options()
		fp := forecastDefaults(cfg)
		signals := templates.ShellSignals{
			LiquorType: "Both",
			Period:     cfg.Rings.DefaultPeriod,
			GroupBy:    "county",
			Measure:    "sale_dollars",
			Limit:      20,
			Months:     fp.Months,
			Interval:   fp.IntervalWidth,
			Weekly:     fp.WeeklySeasonality,
			Monthly:    fp.MonthlySeasonality,
			Yearly:     fp.YearlySeasonality,
		}
		if !opts.MinDate.IsZero() {
			signals.Start = opts.MinDate.String()
			signals.End = opts.MaxDate.String()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(opts, signals).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// newRingStore opens the hand-off backend named by cfg. A nil store disables
// publishing.
func newRingStore(ctx context.Context, cfg *config.Config) (rings.Store, error) {
	switch cfg.Rings.Handoff {
	case config.HandoffMemory:
		return rings.NewMemoryStore(), nil
	case config.HandoffFile:
		return rings.NewFileStore(cfg.Rings.HandoffDir)
	case config.HandoffRedis:
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		return rings.NewRedisStore(ctx, rings.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Rings.HandoffTTL,
		})
	case config.HandoffNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ring hand-off %q", cfg.Rings.Handoff)
	}
}

func forecastDefaults(cfg *config.Config) forecast.Params {
	p := forecast.DefaultParams()
	p.Months = cfg.Forecast.Months
	p.IntervalWidth = cfg.Forecast.IntervalWidth
	return p
}

func newHandler(srv http.Handler, cfg *config.Config, logger *slog.Logger, rateLimiter *middleware.RateLimiter) http.Handler {
	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.CSRF(cfg.Security, "/sse/", logger),
		middleware.RateLimit(rateLimiter, logger),
	)
	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}
	logger.Info("application stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calendar := holidays.Default()
	if cfg.Data.HolidaysFile != "" {
		loaded, err := holidays.Load(cfg.Data.HolidaysFile)
		if err != nil {
			return fmt.Errorf("load holidays: %w", err)
		}
		calendar = loaded
		logger.Info("holidays loaded", "file", cfg.Data.HolidaysFile, "count", calendar.Len())
	}

	store, err := newRingStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open ring hand-off: %w", err)
	}
	logger.Info("ring hand-off ready", "backend", cfg.Rings.Handoff)

	analytics := services.NewAnalytics(services.Config{
		Logger:   logger,
		Holidays: calendar,
		Store:    store,
		CacheDir: cfg.Data.CacheDir,
	})

	loadCtx, loadCancel := context.WithTimeout(ctx, csvLoadTimeout)
	start := time.Now()
	err = analytics.LoadFromCSV(loadCtx, cfg.Data.CSVFile)
	loadCancel()
	if err != nil {
		return fmt.Errorf("load CSV data: %w", err)
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics, cfg),
	}
	period, _ := rings.ParsePeriodScheme(cfg.Rings.DefaultPeriod)
	srv := server.NewServer(analytics, logger, templateHandlers, server.Options{
		DefaultPeriod: period,
		Forecast:      forecastDefaults(cfg),
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(srv, cfg, logger, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(context.Context) error {
		cancel()
		return nil
	})
	if store != nil {
		gracefulServer.RegisterShutdownHook("ring-handoff", func(context.Context) error {
			logger.Info("closing ring hand-off", "backend", cfg.Rings.Handoff)
			return store.Close()
		})
	}

	return gracefulServer.ListenAndServe(ctx)
}
