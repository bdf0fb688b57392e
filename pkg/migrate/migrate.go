package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/consultly-backend/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

const (
	DialectPostgres = string(goose.DialectPostgres)
	DialectSQLite   = string(goose.DialectSQLite3)
)

// DialectFor returns the goose dialect matching the configured database.
// The migrations avoid postgres-only syntax so both dialects apply them.
func DialectFor(cfg *config.Config) string {
	if cfg != nil && cfg.FeatureFlags.UseSQLite {
		return DialectSQLite
	}
	return DialectPostgres
}

// Run forwards a goose CLI command (up, down, redo, status, ...). goose
// prints its own report to stdout.
func Run(ctx context.Context, db *sql.DB, dialect, dir, command string, args ...string) error {
	if err := checkTarget(db, dir); err != nil {
		return err
	}
	if dialect == "" {
		dialect = DialectPostgres
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits exactly at
// version, a YYYYMMDDHHMMSS migration stamp.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, dir, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || len(version) != len(versionLayout) {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	p, err := newProvider(db, dialect, dir)
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}

	switch {
	case current < target:
		_, err = p.UpTo(ctx, target)
	case current > target:
		_, err = p.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// newProvider reads migrations straight from dir. The provider does not
// own db; callers close it.
func newProvider(db *sql.DB, dialect, dir string) (*goose.Provider, error) {
	if err := checkTarget(db, dir); err != nil {
		return nil, err
	}
	if dialect == "" {
		dialect = DialectPostgres
	}
	p, err := goose.NewProvider(goose.Dialect(dialect), db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	return p, nil
}

func checkTarget(db *sql.DB, dir string) error {
	switch {
	case db == nil:
		return errors.New("db is required")
	case dir == "":
		return errors.New("migrations dir is required")
	}
	return nil
}
