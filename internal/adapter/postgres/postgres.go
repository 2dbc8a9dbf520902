package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Connect opens the users database pool and pings it. tracer may be nil.
func Connect(ctx context.Context, databaseURL string, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if tracer != nil {
		poolCfg.ConnConfig.Tracer = tracer
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.InfoContext(ctx, "Database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"tls", poolCfg.ConnConfig.TLSConfig != nil,
		"max_conns", poolCfg.MaxConns)
	return pool, nil
}

const (
	// migrationLockID is "taodiv" in ASCII hex.
	migrationLockID             = 0x74616f646976
	migrationLockReleaseTimeout = 5 * time.Second
	schemaVersionTable          = "public.schema_version"
)

// MigrationResult reports the schema version before and after a run.
type MigrationResult struct {
	From int32 `json:"from"`
	To   int32 `json:"to"`
}

// Applied is the number of migrations the run applied.
func (r MigrationResult) Applied() int32 {
	return r.To - r.From
}

// RunMigrationsWithLock brings the users schema up to date while holding an
// advisory lock, so replicas starting together migrate once.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) (MigrationResult, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	unlock, err := migrationLock(ctx, conn.Conn())
	if err != nil {
		return MigrationResult{}, err
	}
	defer unlock()

	return runMigrations(ctx, conn.Conn())
}

func runMigrations(ctx context.Context, conn *pgx.Conn) (MigrationResult, error) {
	var res MigrationResult

	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return res, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, schemaVersionTable)
	if err != nil {
		return res, fmt.Errorf("failed to create migrator: %w", err)
	}
	migrator.OnStart = func(seq int32, name, direction, _ string) {
		slog.InfoContext(ctx, "Applying migration", "sequence", seq, "name", name, "direction", direction)
	}

	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return res, fmt.Errorf("failed to load migrations: %w", err)
	}

	if res.From, err = migrator.GetCurrentVersion(ctx); err != nil {
		return res, fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return res, fmt.Errorf("failed to migrate database: %w", err)
	}

	res.To = int32(len(migrator.Migrations))
	slog.InfoContext(ctx, "Database schema up to date", "from", res.From, "to", res.To)
	return res, nil
}

// migrationLock blocks until the advisory lock is held. The returned unlock
// runs on a fresh context so a cancelled caller still releases the lock.
func migrationLock(ctx context.Context, conn *pgx.Conn) (unlock func(), err error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), migrationLockReleaseTimeout)
		defer cancel()

		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.ErrorContext(ctx, "Failed to release migration lock", "error", err)
		}
	}, nil
}
