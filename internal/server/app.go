// Package server initializes and runs the session service: it connects the
// backing stores, applies migrations, wires the service and HTTP layers, and
// handles graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tbsky/session/internal/config"
	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/httpapi"
	"github.com/tbsky/session/internal/server/repositories/blacklist"
	"github.com/tbsky/session/internal/server/repositories/repomanager"
	"github.com/tbsky/session/internal/server/services"
	"github.com/tbsky/session/internal/server/token"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	cache  *redis.Client
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON()

	db, err := repomanager.Open(ctx, cfg.Database.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return newAppWithDB(ctx, cfg, logger, db)
}

// newAppWithDB wires the remaining collaborators around an open database
// handle. On failure the handle (and the cache connection, once opened) is
// closed before returning.
func newAppWithDB(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	cache, err := repomanager.OpenRedis(cfg.Database.RedisDSN)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	tokens, err := token.New(cfg.Security)
	if err != nil {
		_ = db.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("token tool init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	bl := blacklist.NewRedisRepository(cache, logger)
	security := services.NewSecurityService(db, repos, bl, tokens, logger, cfg)
	server := httpapi.NewServer(cfg.Server.Addr(), logger, security)

	return &App{config: cfg, logger: logger, db: db, cache: cache, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)

	if closeErr := app.db.Close(); closeErr != nil {
		app.logger.Error(ctx, "error closing db", "error", closeErr.Error())
	}
	if closeErr := app.cache.Close(); closeErr != nil {
		app.logger.Error(ctx, "error closing redis", "error", closeErr.Error())
	}

	return err
}
