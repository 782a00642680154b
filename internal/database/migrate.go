package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"postdesk/internal/middleware"
)

type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// migrations holds the registered scripts per gorm dialect name.
var migrations = map[string][]Migration{}

func init() {
	for _, dialect := range []string{"postgres", "sqlite"} {
		if err := RegisterMigrations(migrationFS, dialect); err != nil {
			fmt.Printf("failed to register internal migrations: %v\n", err)
		}
	}
}

// RegisterMigrations loads the NNNNNN_name.up.sql / .down.sql pairs under
// migrations/<dialect> of efs.
func RegisterMigrations(efs fs.FS, dialect string) error {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(efs, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}

	var set []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			middleware.Logger.Warn("Skipping migration with invalid naming", slog.String("file", name))
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			middleware.Logger.Warn("Skipping migration with invalid version", slog.String("file", name))
			continue
		}

		upBytes, err := fs.ReadFile(efs, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read up migration %s: %w", name, err)
		}

		downName := base + ".down.sql"
		downBytes, err := fs.ReadFile(efs, path.Join(dir, downName))
		if err != nil {
			return fmt.Errorf("failed to read down migration %s: %w", downName, err)
		}

		set = append(set, Migration{
			Version:    version,
			Name:       parts[1],
			UpScript:   string(upBytes),
			DownScript: string(downBytes),
		})
	}

	sort.Slice(set, func(i, j int) bool {
		return set[i].Version < set[j].Version
	})
	migrations[dialect] = set

	return nil
}

// GetMigrations returns the migrations registered for dialect, oldest first.
func GetMigrations(dialect string) []Migration {
	return migrations[dialect]
}

func GetMigrationByVersion(dialect string, version int) *Migration {
	for _, m := range migrations[dialect] {
		if m.Version == version {
			return &m
		}
	}
	return nil
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}
