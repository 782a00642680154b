package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"postdesk/internal/middleware"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MigrationStore defines the interface for tracking and applying migrations.
type MigrationStore interface {
	GetAppliedMigrations(ctx context.Context) ([]int, error)
	ApplyMigration(ctx context.Context, version int, name, sql string) error
	RemoveMigration(ctx context.Context, version int, sql string) error
}

type migrationStore struct {
	db *gorm.DB
}

// MigrationLog represents a record of an applied migration in the database.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// NewMigrationStore creates a new MigrationStore instance.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	var versions []int
	if err := s.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || IsUndefinedTable(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return versions, nil
}

// undefinedTableCode is the PostgreSQL SQLSTATE for a missing relation.
const undefinedTableCode = "42P01"

// IsUndefinedTable reports whether err says the queried table does not exist.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTableCode
	}
	return strings.Contains(err.Error(), "no such table")
}

// ApplyMigration runs sql and records version in one transaction.
func (s *migrationStore) ApplyMigration(ctx context.Context, version int, name, sql string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", version, name, err)
		}
		if err := tx.Create(&MigrationLog{Version: version, Name: name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("Migration applied", slog.Int("version", version), slog.String("name", name))
	return nil
}

// RemoveMigration runs the down sql and drops the version record in one transaction.
func (s *migrationStore) RemoveMigration(ctx context.Context, version int, sql string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to run rollback SQL for migration %d: %w", version, err)
		}
		if err := tx.Where("version = ?", version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.Int("version", version))
	return nil
}

const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_migration_logs_applied_at ON migration_logs (applied_at);`

// PendingMigrations returns the applied versions and the registered
// migrations for db's dialect that have not run yet, in version order. A
// missing ledger table counts as nothing applied.
func PendingMigrations(ctx context.Context, db *gorm.DB) ([]int, []Migration, error) {
	registered := GetMigrations(db.Dialector.Name())
	if len(registered) == 0 {
		return nil, nil, fmt.Errorf("no migrations registered for dialect %q", db.Dialector.Name())
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := validateAppliedVersions(applied, registered); err != nil {
		return nil, nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var pending []Migration
	for _, m := range registered {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

// RunMigrations ensures the migration log table exists and applies every
// pending migration for the connection's dialect.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(ensureMigrationLogTableSQL).Error; err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	_, pending, err := PendingMigrations(ctx, db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		middleware.Logger.Debug("Posts schema is up to date")
		return nil
	}

	store := NewMigrationStore(db)
	for _, m := range pending {
		middleware.Logger.Info("Applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := store.ApplyMigration(ctx, m.Version, m.Name, m.UpScript); err != nil {
			return err
		}
	}
	return nil
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	if len(applied) == 0 {
		return nil
	}
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}

	var unknown []int
	for _, version := range applied {
		if _, ok := known[version]; !ok {
			unknown = append(unknown, version)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	parts := make([]string, 0, len(unknown))
	for _, version := range unknown {
		parts = append(parts, fmt.Sprintf("%06d", version))
	}
	return fmt.Errorf(
		"migration_logs contains unknown versions not present in code: %s",
		strings.Join(parts, ", "),
	)
}

// RollbackMigration reverts a specific migration by version number.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	store := NewMigrationStore(db)
	m := GetMigrationByVersion(db.Dialector.Name(), version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, v := range applied {
		if v == version {
			found = true
			break
		}
	}

	if !found {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return store.RemoveMigration(ctx, version, m.DownScript)
}

// RollbackLatest reverts the most recently applied migration. It returns the
// reverted version, or 0 when nothing is applied.
func RollbackLatest(ctx context.Context, db *gorm.DB) (int, error) {
	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	latest := applied[len(applied)-1]
	return latest, RollbackMigration(ctx, db, latest)
}
