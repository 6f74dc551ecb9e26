// Package migrations embeds the ledger schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var files embed.FS

// Source exposes the embedded migration files.
func Source() (source.Driver, error) {
	return iofs.New(files, "sql")
}

// Direction selects which way Run moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Run applies migrations against dsn. Steps of zero means all of them. It reports the
// schema version after the run.
func Run(dsn string, dir Direction, steps int, logger *slog.Logger) (uint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("migrations: open: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close migration connection", slog.Any("error", cerr))
		}
	}()
	if err := conn.Ping(); err != nil {
		return 0, fmt.Errorf("migrations: ping: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("migrations: driver: %w", err)
	}
	src, err := Source()
	if err != nil {
		return 0, fmt.Errorf("migrations: source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("migrations: init: %w", err)
	}

	switch {
	case dir == Down && steps > 0:
		err = m.Steps(-steps)
	case dir == Down:
		err = m.Down()
	case steps > 0:
		err = m.Steps(steps)
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrations: %s: %w", dir, err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("migrations: schema version %d is dirty", version)
	}
	logger.Info("migrations applied", slog.String("direction", string(dir)), slog.Uint64("version", uint64(version)))
	return version, nil
}
