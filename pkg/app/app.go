// Package app wires configuration, storage, the click pipeline and the HTTP
// router into runnable processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/wadjakorntonsri/trimrr/pkg/adapters/assets"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/cache"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/geo"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/handler"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/queue"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/trimrr/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/trimrr/pkg/config"
	"github.com/wadjakorntonsri/trimrr/pkg/core/clicks"
	"github.com/wadjakorntonsri/trimrr/pkg/core/codegen"
	"github.com/wadjakorntonsri/trimrr/pkg/core/services"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const (
	sentryFlushTimeout = 2 * time.Second
	sentryMWTimeout    = 2 * time.Second
)

type App struct {
	cfg    *config.Config
	logger *slog.Logger
	router http.Handler

	repo       *sqlstore.Store
	dispatcher *clicks.Dispatcher
	closers    []io.Closer // Released in reverse order after the dispatcher drains
}

// NewLogger builds the process-wide JSON logger at the configured level.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.release()
		}
	}()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.AppEnv}); err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
	}

	a.repo, err = OpenRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.repo)

	locator, err := a.geoLocator()
	if err != nil {
		return nil, err
	}

	var linkCache ports.LinkCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		linkCache = cache.NewRedisCache(client, cfg.CacheTTL)
	}

	opts := []services.Option{services.WithLogger(logger)}
	if linkCache != nil {
		opts = append(opts, services.WithCache(linkCache))
	}
	if cfg.AssetDir != "" {
		store, err := assets.NewFileStore(cfg.AssetDir, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithAssets(store))
	}

	recorder := clicks.NewRecorder(a.repo, locator,
		clicks.WithGeoTimeout(cfg.GeoTimeout),
		clicks.WithSalt(cfg.ClientIDSalt),
		clicks.WithLogger(logger),
	)

	var sink ports.ClickSink = recorder
	if cfg.NATSURL != "" {
		broker, err := queue.Connect(queue.Config{URL: cfg.NATSURL, Stream: cfg.ClickStream, Subject: cfg.ClickSubject})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, broker)
		sink = queue.NewPublisher(broker)
		logger.Info("clicks published to nats", slog.String("subject", cfg.ClickSubject))
	}

	a.dispatcher = clicks.NewDispatcher(sink, clicks.DispatcherConfig{
		Workers:   cfg.ClickWorkers,
		QueueSize: cfg.ClickQueueSize,
		Timeout:   cfg.ClickTimeout,
	}, logger)

	linkService := services.NewLinkService(a.repo, codegen.New(cfg.CodeLength, cfg.CodeAttempts), opts...)
	resolver := services.NewResolver(a.repo, linkCache, a.dispatcher, logger)

	a.router = a.newRouter(linkService, resolver)
	return a, nil
}

func (a *App) newRouter(links ports.LinkService, resolver ports.Resolver) http.Handler {
	cfg := a.cfg

	plugins := []handler.EnginePlugin{handler.RequestIDPlugin()}
	switch cfg.AppEnv {
	case "test":
		gin.SetMode(gin.TestMode)
	case "local":
		gin.SetMode(gin.DebugMode)
		plugins = append(plugins, handler.LoggerPlugin(a.logger))
	default:
		gin.SetMode(gin.ReleaseMode)
		plugins = append(plugins, handler.LoggerPlugin(a.logger))
	}
	plugins = append(plugins, handler.RecoveryPlugin())
	if cfg.SentryDSN != "" {
		plugins = append(plugins, handler.SentryPlugin(sentryMWTimeout))
	}
	plugins = append(plugins, handler.TimeoutPlugin(cfg.HTTPWriteTimeout))

	deps := handler.RouterDeps{
		Links:     links,
		Resolver:  resolver,
		BaseURL:   cfg.BaseURL,
		JWTSecret: cfg.JWTSecret,
		AssetDir:  cfg.AssetDir,
		Logger:    a.logger,
	}
	if cfg.GoogleClientID != "" {
		deps.Auth = handler.NewAuthHandler(cfg, a.logger)
	}

	r := handler.NewEngine(plugins...)
	handler.RegisterRoutes(r, deps)
	return r
}

func (a *App) geoLocator() (ports.GeoLocator, error) {
	switch a.cfg.GeoProvider {
	case config.GeoHTTP:
		return geo.NewIPAPI(a.cfg.GeoEndpoint, a.cfg.GeoTimeout), nil
	case config.GeoMaxMind:
		db, err := geo.OpenMaxMind(a.cfg.GeoDBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	default:
		return geo.None{}, nil
	}
}

// OpenRepository picks the storage backend from the DATABASE_URL scheme and
// migrates it.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	if cfg.IsPostgres() {
		return postgres.NewRepository(ctx, postgres.OpenConfig{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, logger)
	}
	return sqlite.NewSQLiteRepository(ctx, cfg.DatabaseURL, logger)
}

// Handler is the fully wired router, for embedding in another server.
func (a *App) Handler() http.Handler { return a.router }

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: a.cfg.HTTPReadTimeout,
		ReadTimeout:       a.cfg.HTTPReadTimeout,
		WriteTimeout:      a.cfg.HTTPWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	a.logger.Info("server started", slog.String("addr", srv.Addr), slog.String("env", a.cfg.AppEnv))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server: %w", err)

	case <-ctx.Done():
		return gracefulShutdown(ctx, srv, a.cfg.HTTPShutdownTimeout, errCh)
	}
}

// Close drains queued click jobs, then releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.release())

	if a.cfg.SentryDSN != "" {
		sentry.Flush(sentryFlushTimeout)
	}

	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func gracefulShutdown(ctx context.Context, srv *http.Server, timeout time.Duration, errCh <-chan error) error {
	srv.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("http shutdown timed out; forced close: %w", err)
		}

		return fmt.Errorf("http shutdown failed; forced close: %w", err)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server stopped with error: %w", err)
	default:
		return nil
	}
}
