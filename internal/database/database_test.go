package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"postdesk/internal/config"
	"postdesk/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func memoryConfig(mode string) *config.Config {
	return &config.Config{
		Env:          "test",
		DBDriver:     config.DriverSQLite,
		DBSQLitePath: ":memory:",
		DBSchemaMode: mode,
	}
}

func TestConnect_SQLiteMemory(t *testing.T) {
	db, err := Connect(memoryConfig(config.SchemaModeSQL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.NoError(t, Ping(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_TimestampsAtMicrosecondPrecision(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	post := &models.Post{
		Title:    "Launch",
		Brand:    "Acme",
		Platform: "Instagram",
		DueDate:  models.NewDate(2025, time.March, 10),
		Payment:  models.NewMoney(decimal.RequireFromString("100.50")),
		Status:   models.PostStatusPending,
	}
	require.NoError(t, db.Create(post).Error)

	assert.Equal(t, time.UTC, post.CreatedAt.Location())
	assert.Zero(t, post.CreatedAt.Nanosecond()%int(time.Microsecond))
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.True(t, stored.CreatedAt.Equal(post.CreatedAt), "stored %s, returned %s", stored.CreatedAt, post.CreatedAt)
	assert.True(t, stored.UpdatedAt.Equal(post.UpdatedAt))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestConfigurePool(t *testing.T) {
	db, err := Connect(&config.Config{
		DBDriver:                 config.DriverSQLite,
		DBSQLitePath:             t.TempDir() + "/pool.db",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsUndefinedTable(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUndefinedTable(errors.New("no such table: migration_logs")))
	assert.False(t, IsUndefinedTable(errors.New("connection refused")))
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query error")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, buf.String())

	l.LogMode(logger.Info).Trace(ctx, time.Now(), sql, nil)
	assert.Contains(t, buf.String(), "GORM query")
}
