package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"

	"firmdocs/internal/config"
	"firmdocs/internal/logging"
)

const usage = "Usage: migrate [--path dir] [up|down|steps N|version]"

func main() {
	path := pflag.String("path", "db/migrations", "directory holding the migration files")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log)

	args := pflag.Args()
	if len(args) < 1 {
		fmt.Println(usage)
		os.Exit(1)
	}

	m, err := migrate.New("file://"+*path, cfg.DB.DSN())
	if err != nil {
		logger.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := apply(m, args, logger); err != nil {
		logger.Error("migration failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func apply(m *migrate.Migrate, args []string, logger *slog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logger.Info("migrations applied successfully")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logger.Info("migrations reverted successfully")

	case "steps":
		if len(args) < 2 {
			return errors.New("steps requires a number argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid steps argument: %w", err)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logger.Info("applied migration steps", "steps", n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)

	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	return nil
}
