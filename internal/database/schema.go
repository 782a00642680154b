package database

import (
	"context"
	"fmt"
	"log/slog"

	"postdesk/internal/config"
	"postdesk/internal/middleware"

	"gorm.io/gorm"
)

// protectedEnvs never get gorm AutoMigrate: the posts table there is only
// changed by reviewed SQL migrations.
var protectedEnvs = map[string]bool{
	"production": true,
	"prod":       true,
	"staging":    true,
	"stage":      true,
}

// SchemaPlan is the set of schema steps a configuration asks for.
//
//	sql     embedded migrations only
//	auto    AutoMigrate of PersistentModels only, refused in protected envs
//	hybrid  migrations, then AutoMigrate outside protected envs (default)
type SchemaPlan struct {
	Mode        string
	Env         string
	SQL         bool
	AutoMigrate bool
}

// PlanSchema resolves cfg.DBSchemaMode for cfg.Env.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: cfg.DBSchemaMode, Env: cfg.Env}
	if plan.Mode == "" {
		plan.Mode = config.SchemaModeHybrid
	}
	protected := protectedEnvs[plan.Env]

	switch plan.Mode {
	case config.SchemaModeSQL:
		plan.SQL = true
	case config.SchemaModeHybrid:
		plan.SQL, plan.AutoMigrate = true, !protected
	case config.SchemaModeAuto:
		if protected {
			return SchemaPlan{}, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q; use sql", plan.Env)
		}
		plan.AutoMigrate = true
	default:
		return SchemaPlan{}, fmt.Errorf("unknown DB_SCHEMA_MODE %q (want hybrid, sql or auto)", plan.Mode)
	}
	return plan, nil
}

// Apply runs the planned steps against db, migrations first.
func (p SchemaPlan) Apply(ctx context.Context, db *gorm.DB) error {
	if p.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if p.AutoMigrate {
		middleware.Logger.InfoContext(ctx, "Auto-migrating posts schema",
			slog.String("mode", p.Mode), slog.String("env", p.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// ApplySchema brings the posts schema up to date as cfg describes.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	return plan.Apply(ctx, db)
}

// SchemaStatus reports a plan together with the migration ledger. Applied and
// Pending are only filled when the plan runs SQL migrations.
type SchemaStatus struct {
	SchemaPlan
	Dialect string
	Applied []int
	Pending []Migration
}

// GetSchemaStatus describes what ApplySchema would do for cfg on db.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{SchemaPlan: plan, Dialect: db.Dialector.Name()}
	if plan.SQL {
		if status.Applied, status.Pending, err = PendingMigrations(ctx, db); err != nil {
			return nil, err
		}
	}
	return status, nil
}
