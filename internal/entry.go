// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/typikon/internal/api"
	"github.com/starford/typikon/internal/cache"
	"github.com/starford/typikon/internal/calendar"
	"github.com/starford/typikon/internal/dataset"
	"github.com/starford/typikon/internal/mcpserver"
	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/reconcile"
	"github.com/starford/typikon/internal/scripture"
	"github.com/starford/typikon/internal/sequencer"
	"github.com/starford/typikon/internal/sse"
)

// components are the pieces shared by the HTTP and MCP entry points.
type components struct {
	logger *slog.Logger
	loc    *time.Location
	data   *dataset.Store
	db     *cache.DB
	events *cache.Source
	svc    *readingservice.Service
}

func (c *components) Close() {
	if err := c.db.Close(); err != nil {
		c.logger.Warn("cache close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup initializes logging, the dataset, the remote source with its cache
// and the reading service.
func (a *application) setup() (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("version", a.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("dataset_path", cfg.Dataset.Path),
		slog.String("calendar_provider", cfg.Calendar.Provider),
		slog.String("timezone", loc.String()),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	data, err := dataset.Open(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("init dataset: %w", err)
	}
	logger.Info("Dataset loaded", slog.Int("dates", data.Table().Len()))

	remote, err := newRemoteSource(cfg, loc, logger)
	if err != nil {
		return nil, fmt.Errorf("init calendar: %w", err)
	}

	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	events := cache.NewSource(db, remote,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLocation(loc),
		cache.WithLogger(logger),
	)

	svcOpts := []readingservice.Option{
		readingservice.WithLocation(loc),
		readingservice.WithLogger(logger),
	}
	if cfg.Scripture.Enabled() {
		client := scripture.NewClient(cfg.Scripture.BaseURL, cfg.Scripture.Translation, cfg.Scripture.Timeout, logger)
		svcOpts = append(svcOpts, readingservice.WithScripture(client))
	}
	svc := readingservice.NewService(data, events, reconcile.New(cfg.Reconcile.SimilarityThreshold), svcOpts...)

	return &components{
		logger: logger,
		loc:    loc,
		data:   data,
		db:     db,
		events: events,
		svc:    svc,
	}, nil
}

func newRemoteSource(cfg *Config, loc *time.Location, logger *slog.Logger) (calendar.Source, error) {
	client := &http.Client{Timeout: cfg.Calendar.Timeout}
	switch cfg.Calendar.Provider {
	case ProviderICS:
		return calendar.NewICS(cfg.Calendar.ICS.URL, loc, client, logger)
	default:
		return calendar.NewGoogle(cfg.Calendar.Google.CalendarID, cfg.Calendar.Google.APIKey, loc,
			calendar.WithGoogleBaseURL(cfg.Calendar.Google.BaseURL),
			calendar.WithHTTPClient(client),
		)
	}
}

// Run starts the HTTP server, the dataset watcher and the prefetch
// scheduler, and blocks until a shutdown signal or ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.setup()
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	// SSE broker.
	broker := sse.NewBroker(sse.WithThrottle(2 * time.Second))
	defer broker.Close()

	var prefetcher *cache.Prefetcher
	if cfg.Prefetch.Enabled {
		prefetcher, err = cache.NewPrefetcher(c.events, cfg.Prefetch.Schedule, cfg.Prefetch.DaysAhead, c.loc, logger,
			broker.PublishDayRefresh, cache.WithRetention(cfg.Cache.KeepDays))
		if err != nil {
			return fmt.Errorf("init prefetch: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Load sequencer; every applied transition is pushed to SSE clients.
	seq := sequencer.New(sequencer.LoaderFunc(c.svc.Readings),
		sequencer.WithLogger(logger),
		sequencer.WithContext(gCtx),
		sequencer.WithObserver(func(kind string, st sequencer.State) {
			broker.Publish(sse.Event{Type: kind, Date: st.Date, Data: st})
		}),
	)
	defer seq.Wait()

	apiRouter := api.NewRouter(c.svc, seq, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// SSE streams end when the broker closes, so Shutdown is not held up by them.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Dataset hot reload.
	if cfg.Dataset.Watch {
		g.Go(func() error {
			return c.data.Watch(gCtx, logger, func(t *dataset.Table) {
				broker.Publish(sse.Event{
					Type: sse.TypeDatasetReloaded,
					Data: map[string]any{"dates": t.Len(), "checksum": t.Checksum()},
				})
			})
		})
	}

	// Scheduled cache warm-up.
	if prefetcher != nil {
		g.Go(func() error {
			return prefetcher.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		var reason error
		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			reason = errShutdown
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Returning an error cancels gCtx, which stops the watcher and the scheduler.
		return reason
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.setup()
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting", slog.String("transport", "stdio"))
	srv := mcpserver.New(c.svc, app.version)
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
