package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:migrate-%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestMigrationsApplyAndRollBackOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, Run(ctx, db, DialectSQLite, "migrations", "up"))

	for _, table := range []string{"schedules", "rule_values", "segments", "assigns", "assigned", "attribute_values", "outbox_dlq", "notifications"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	require.NoError(t, MigrateToVersion(ctx, db, DialectSQLite, "migrations", "20260301090100"))
	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'issues'").Scan(&count))
	require.Zero(t, count)
}

func TestRuleValueCheckRejectsTwoColumns(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, Run(ctx, db, DialectSQLite, "migrations", "up"))

	schedule, term, rule := uuid.NewString(), uuid.NewString(), uuid.NewString()
	_, err := db.ExecContext(ctx, "INSERT INTO schedules (id, provider_id, label) VALUES (?, ?, 'week')", schedule, uuid.NewString())
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO schedule_terms (id, schedule_id, dtstart, frequency) VALUES (?, ?, '2026-03-02 09:00:00', 'WEEKLY')", term, schedule)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO rules (id, term_id, mode, identifier, direction, value_type) VALUES (?, ?, 'inclusion', 'byweekday', 'recurrence', 'varchar')", rule, term)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO rule_values (id, rule_id, varchar_value) VALUES (?, ?, 'MO')", uuid.NewString(), rule)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO rule_values (id, rule_id, varchar_value, integer_value) VALUES (?, ?, 'TU', 2)", uuid.NewString(), rule)
	require.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	require.Equal(t, DialectPostgres, DialectFor(&config.Config{}))
	cfg := &config.Config{}
	cfg.FeatureFlags.UseSQLite = true
	require.Equal(t, DialectSQLite, DialectFor(cfg))
	require.Equal(t, DialectPostgres, DialectFor(nil))
}

func TestValidateDirAcceptsMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestAutoRunMigratesAndIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, autoRun(ctx, logger.Nop(), db, DialectSQLite, "migrations"))
	var version int64
	require.NoError(t, db.QueryRowContext(ctx, "SELECT max(version_id) FROM goose_db_version").Scan(&version))
	require.Positive(t, version)

	require.NoError(t, autoRun(ctx, logger.Nop(), db, DialectSQLite, "migrations"))
}

func TestAutoRunRefusesInvalidDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("SELECT 1;"), 0o644))

	err := autoRun(context.Background(), logger.Nop(), openSQLite(t), DialectSQLite, dir)
	require.ErrorContains(t, err, "validate migrations")
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "prod"
	cfg.FeatureFlags.AutoMigrate = true
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
	require.NoError(t, MaybeRunDev(context.Background(), nil, logger.Nop(), nil))
}
