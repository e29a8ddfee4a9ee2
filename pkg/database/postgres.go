package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/uptrace/bun/driver/pgdriver"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// NewPostgres opens a Postgres pool from a DSN and applies pending
// migrations.
func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}

	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
	applied, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	slog.Info("database ready", "migrationsApplied", applied)

	return db, nil
}

// NewReadOnlyPostgres opens a pool without touching the schema, for
// secondary databases the bot only queries.
func NewReadOnlyPostgres(dsn string) (*sql.DB, error) {
	return open(dsn)
}

func open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	db := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}
