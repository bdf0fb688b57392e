package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true, Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countModels(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))
	assert.EqualValues(t, 1, countModels(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&testModel{Name: "rolled"}).Error)
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countModels(t, conn))

	assert.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "panicked"})
			panic("boom")
		})
	})
	assert.EqualValues(t, 1, countModels(t, conn))
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	client.backoff = time.Millisecond

	calls := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("reserve: %w", &pgconn.PgError{Code: pgSerializationFailure})
		}
		return tx.Create(&testModel{Name: "third time"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.EqualValues(t, 1, countModels(t, conn))

	calls = 0
	err = client.WithTx(context.Background(), func(*gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: pgDeadlockDetected}
	})
	assert.True(t, IsRetryableTx(err))
	assert.Equal(t, defaultTxAttempts, calls)

	calls = 0
	_ = client.WithTx(context.Background(), func(*gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: pgUniqueViolation}
	})
	assert.Equal(t, 1, calls)
}

func TestNewSQLiteOpensAndPings(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	client, err := NewSQLite(context.Background(), config.DBConfig{SQLitePath: "file:open_test?mode=memory&cache=shared", TxAttempts: 5}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 5, client.txAttempts)
	assert.Contains(t, buf.String(), `"dialect":"sqlite"`)

	_, err = New(context.Background(), config.DBConfig{}, logg)
	assert.Error(t, err)
}

func TestGormLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json", Level: logger.ParseLevel("debug")})
	gl := newGormLogger(logg, 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), sql, nil)
	assert.Empty(t, buf.String())

	gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "slow statement")
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	gl.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), sql, errors.New("x"))
	assert.Empty(t, buf.String())
	assert.Equal(t, gormlogger.Discard, newGormLogger(nil, 0))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_test?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	type uniqueModel struct {
		ID   int
		Code string `gorm:"uniqueIndex:ux_unique_models_code"`
	}
	require.NoError(t, conn.AutoMigrate(&uniqueModel{}))
	require.NoError(t, conn.Create(&uniqueModel{Code: "a"}).Error)

	err = conn.Create(&uniqueModel{Code: "a"}).Error
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "code"))
	assert.True(t, pkgerrors.IsCode(MapError(err, "insert"), pkgerrors.CodeConflict))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))
	assert.False(t, IsRetryableTx(err))
}

func TestMapError(t *testing.T) {
	assert.True(t, pkgerrors.IsCode(MapError(gorm.ErrRecordNotFound, "lookup"), pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(MapError(errors.New("conn reset"), "lookup"), pkgerrors.CodeDependency))
	typed := pkgerrors.New(pkgerrors.CodeStateConflict, "frozen")
	assert.Same(t, typed, MapError(typed, "ignored"))
	assert.NoError(t, MapError(nil, "noop"))
}

func TestForUpdateIsNoopOnSQLite(t *testing.T) {
	conn := newTestDB(t)
	require.True(t, IsSQLite(conn))
	var rows []testModel
	assert.NoError(t, ForUpdate(conn.Model(&testModel{})).Find(&rows).Error)
}

func TestAdvisoryXactLockIsNoopOnSQLite(t *testing.T) {
	conn := newTestDB(t)
	err := conn.Transaction(func(tx *gorm.DB) error {
		return AdvisoryXactLock(tx, LockScopeProviderSchedules, uuid.New())
	})
	assert.NoError(t, err)
}

func TestAdvisoryKeySeparatesScopes(t *testing.T) {
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	assert.Equal(t, "provider-schedules:f47ac10b-58cc-4372-a567-0e02b2c3d479", advisoryKey(LockScopeProviderSchedules, id))
	assert.NotEqual(t, advisoryKey(LockScopeProviderSchedules, id), advisoryKey(LockScopeScheduleBookings, id))
}
