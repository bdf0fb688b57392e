package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

// online commands run against the configured database. Every one of them
// validates the directory first so a broken file never half-applies.
var online = map[string]func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error{
	"up":      gooseCommand("up"),
	"down":    gooseCommand("down"),
	"redo":    gooseCommand("redo"),
	"status":  gooseCommand("status"),
	"version": migrateToVersion,
}

func migrateToVersion(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
	if opts.version == "" {
		return fmt.Errorf("missing -version for version command")
	}
	return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
}

func gooseCommand(name string) func(context.Context, *sql.DB, string, options) error {
	return func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, name)
	}
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := offline[opts.cmd]; ok {
		if err := run(opts); err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}
	run, ok := online[opts.cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", opts.cmd)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"env": cfg.App.Env},
	})

	dialect := migrate.DialectFor(cfg)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd":     opts.cmd,
		"dir":     opts.dir,
		"dialect": dialect,
	})
	if err := execute(ctx, cfg, logg, dialect, opts, run); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate finished")
}

func execute(ctx context.Context, cfg *config.Config, logg *logger.Logger, dialect string, opts options, run func(context.Context, *sql.DB, string, options) error) error {
	if err := migrate.ValidateDir(opts.dir); err != nil {
		return fmt.Errorf("validate %s: %w", opts.dir, err)
	}
	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return run(ctx, sqlDB, dialect, opts)
}
