// Package server initializes and runs the kitchensink API server. It opens
// the store, applies migrations and startup steps, and serves HTTP until
// the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/config"
	"github.com/dmitrijs2005/kitchensink/internal/server/httpapi"
	"github.com/dmitrijs2005/kitchensink/internal/server/metrics"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/ratelimit"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/memory"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/kitchensink/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"
)

// MemoryDSN selects the in-process store instead of PostgreSQL. Data is lost
// on exit.
const MemoryDSN = "memory"

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []io.Closer
	server  *httpapi.HTTPServer
}

// NewApp wires every component from c. It fails before serving anything if
// the signing secret is too weak, the store is unreachable or a startup
// step fails.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	tokens, err := auth.NewTokenManager([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("token manager init error (set -s to at least %d bytes): %w", auth.MinSecretLength, err)
	}
	hasher, err := auth.NewPasswordHasher(c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	db, rm, err := openStore(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, err
	}

	if err := services.NewBootstrap(db, rm, c.BootstrapAdmins, logger).Run(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap error: %w", err)
	}

	limiter, err := app.newLimiter(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	defaultRoles := models.ParseRoles(c.DefaultRoles)
	if !slices.Contains(defaultRoles, models.RoleAdmin) {
		logger.Warn(ctx, "new accounts are not granted ADMIN; use -roles USER,ADMIN to restore the legacy default",
			"default_roles", models.RoleNames(defaultRoles))
	}

	refresh := services.NewRefreshTokenService(db, rm, c.RefreshTokenValidityDuration)
	authService := services.NewAuthService(db, rm, tokens, hasher, refresh, defaultRoles, logger)
	memberService := services.NewMemberService(db, rm, logger)

	app.server = httpapi.NewHTTPServer(httpapi.Options{
		Address:         c.EndpointAddrHTTP,
		CORSOrigin:      c.CORSOrigin,
		ShutdownTimeout: c.ShutdownTimeout,
		Auth:            authService,
		Members:         memberService,
		Policy:          auth.DefaultPolicy(),
		Limiter:         limiter,
		Metrics:         metrics.NewMetrics(prometheus.NewRegistry()),
		Health:          db.PingContext,
		Logger:          logger,
	})

	return app, nil
}

func openStore(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	if dsn == MemoryDSN {
		// sqlite only hosts the transactions bootstrap opens; rows live
		// in the memory manager.
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(1)
		return db, memory.NewManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, repomanager.NewPostgresRepositoryManager(), nil
}

func (app *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if app.config.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(app.config.LoginAttempts, app.config.LoginWindow), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, app.config.RedisAddr)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client)
	app.logger.Info(ctx, "login throttling backed by redis", "addr", app.config.RedisAddr)
	return ratelimit.NewRedisLimiter(client, app.config.LoginAttempts, app.config.LoginWindow), nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (app *App) Handler() http.Handler {
	return app.server.Handler()
}

// Close releases the store and redis connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process receives SIGINT,
// SIGTERM or SIGQUIT, then closes the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}
