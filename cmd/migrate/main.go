package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"jvc-treasury/config"
	"jvc-treasury/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file")
		migrationsDir = flag.String("dir", "migrations", "path to migration files")
		down          = flag.Bool("down", false, "roll back one migration instead of applying all")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	dir, err := filepath.Abs(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve migrations dir")
	}

	sourceURL := "file://" + filepath.ToSlash(dir)
	databaseURL := "pgx5://" + cfg.Database.User + ":" + cfg.Database.Password +
		fmt.Sprintf("@%s:%d/%s?sslmode=%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, cfg.Database.SSLMode)

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize migrator")
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No migrations to apply")
			return
		}
		log.Fatal().Err(err).Msg("Migration run failed")
	}
	log.Info().Msg("Migrations applied")
}
