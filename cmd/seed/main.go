// Command seed fills the database with generated posts.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"postdesk/internal/config"
	"postdesk/internal/database"
	"postdesk/internal/middleware"
	"postdesk/internal/seed"
)

func main() {
	count := flag.Int("count", 50, "Number of posts to create")
	clean := flag.Bool("clean", false, "Delete existing posts before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	flag.Parse()

	if err := run(*count, *clean, *seedValue); err != nil {
		middleware.Logger.Error("Seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(count int, clean bool, seedValue int64) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}

	middleware.Logger.Info("Database seeder",
		slog.Int("count", count), slog.Bool("clean", clean), slog.String("driver", cfg.DBDriver))

	s := seed.NewSeeder(db, seedValue)
	if clean {
		if err := s.ClearAll(ctx); err != nil {
			return err
		}
	}

	if _, err := s.SeedPosts(ctx, count); err != nil {
		return err
	}

	middleware.Logger.Info("All done")
	return nil
}
