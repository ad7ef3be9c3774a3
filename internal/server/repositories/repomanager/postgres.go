// Package repomanager wires repository constructors to their backing stores
// and handles connection bootstrap: goose migrations for PostgreSQL and DSN
// parsing for Redis.
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/tbsky/session/internal/dbx"
	"github.com/tbsky/session/internal/server/migrations"
	"github.com/tbsky/session/internal/server/repositories/users"
)

// pgTooManyConnections is the SQLSTATE Postgres reports when the connection
// limit is exhausted. Only this condition is retried during bootstrap.
const pgTooManyConnections = "53300"

const (
	connectAttempts = 100
	connectBackoff  = 5 * time.Second
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// Open connects to PostgreSQL and verifies the connection. When Postgres
// reports connection exhaustion the ping is retried with a fixed backoff and
// a bounded number of attempts; any other failure is returned immediately.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewConstant(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgTooManyConnections {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// OpenRedis parses the DSN and returns a Redis client.
func OpenRedis(dsn string) (*redis.Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("redis dsn error: %w", err)
	}
	return redis.NewClient(opts), nil
}

var _ RepositoryManager = (*PostgresRepositoryManager)(nil)
