// Package server wires the PassShare reference backend: it picks storage,
// blob and notification backends from the configuration, starts the STOMP
// broker and serves the HTTP API until the context ends.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/server/blob"
	"github.com/dmitrijs2005/passshare/internal/server/broker"
	"github.com/dmitrijs2005/passshare/internal/server/config"
	"github.com/dmitrijs2005/passshare/internal/server/httpapi"
	"github.com/dmitrijs2005/passshare/internal/server/notify"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passshare/internal/server/services"
	"github.com/redis/go-redis/v9"
)

// Backend constructors, replaceable in tests.
var (
	openPostgres   = repomanager.OpenPostgres
	newS3Store     = blob.NewS3Store
	newRedisClient = notify.NewRedisClient
)

type App struct {
	config *config.Config
	logger logging.Logger

	db     *sql.DB
	redis  *redis.Client
	broker *broker.Broker
	server *http.Server
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	app := &App{config: c, logger: logger}

	m, err := app.initRepositories(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	blobs, err := app.initBlobs(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	hub, err := app.initHub(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	sessions := services.NewSessionService(app.db, m, blobs, hub, logger)
	app.broker = broker.New(hub, broker.Options{Logger: logger})
	handler := httpapi.NewHandler(sessions, app.broker, logger, c.MaxUploadBytes)

	app.server = &http.Server{
		Addr:    c.EndpointAddr,
		Handler: handler.Routes(),
	}
	return app, nil
}

func (app *App) initRepositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, sessions are kept in memory")
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := openPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func (app *App) initBlobs(ctx context.Context) (blob.Store, error) {
	if app.config.S3BaseEndpoint == "" {
		app.logger.Warn(ctx, "no object storage configured, file content is kept in memory")
		return blob.NewMemoryStore(), nil
	}

	s, err := newS3Store(ctx, blob.S3Config{
		User:         app.config.S3RootUser,
		Password:     app.config.S3RootPassword,
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("s3 bucket: %w", err)
	}
	return s, nil
}

func (app *App) initHub(ctx context.Context) (notify.Hub, error) {
	if app.config.RedisAddr == "" {
		return notify.NewLocalHub(app.logger), nil
	}

	client, err := newRedisClient(ctx, app.config.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.redis = client
	return notify.NewRedisHub(client, app.logger), nil
}

// Handler exposes the routed API.
func (app *App) Handler() http.Handler {
	return app.server.Handler
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "listening", "addr", app.server.Addr)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight requests for at most ShutdownTimeout.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.broker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "http shutdown", "error", err)
	}

	wg.Wait()
	app.Close()
}

// Close releases the database and redis connections.
func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
		app.db = nil
	}
	if app.redis != nil {
		_ = app.redis.Close()
		app.redis = nil
	}
}
