package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/turnkey/turnkey/migrations"
)

// Migrator applies the embedded schema migrations.
type Migrator struct {
	db *sql.DB
}

// OpenMigrator opens a database/sql handle through the pgx driver.
func OpenMigrator(dsn string) (*Migrator, error) {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: open: %w", err)
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Migrator{db: db}, nil
}

// Close releases the database handle.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// Run executes a goose command: up, down, status, version or redo.
func (m *Migrator) Run(ctx context.Context, command string) error {
	switch command {
	case "up":
		return goose.UpContext(ctx, m.db, ".")
	case "down":
		return goose.DownContext(ctx, m.db, ".")
	case "redo":
		return goose.RedoContext(ctx, m.db, ".")
	case "status":
		return goose.StatusContext(ctx, m.db, ".")
	case "version":
		return goose.VersionContext(ctx, m.db, ".")
	default:
		return fmt.Errorf("migrate: unknown command %q", command)
	}
}
