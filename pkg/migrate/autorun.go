package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot when CONSULTLY_AUTO_MIGRATE
// is set in the dev environment. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := DialectFor(cfg)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "dialect": dialect})
	return autoRun(ctx, logg, sqlDB, dialect, DefaultDir)
}

// autoRun refuses a migration set that fails ValidateDir before touching the
// database, then applies everything pending and logs each version.
func autoRun(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB, dialect, dir string) error {
	if err := ValidateDir(dir); err != nil {
		return fmt.Errorf("validate migrations: %w", err)
	}
	p, err := newProvider(sqlDB, dialect, dir)
	if err != nil {
		return err
	}

	applied, err := p.Up(ctx)
	for _, res := range applied {
		logg.Debug(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if len(applied) == 0 {
		logg.Debug(ctx, "schema up to date")
		return nil
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"applied":    len(applied),
		"to_version": applied[len(applied)-1].Source.Version,
	}), "dev auto-migrate applied")
	return nil
}
