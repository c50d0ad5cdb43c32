// Package bootstrap holds the startup steps every binary shares.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/migrate"
)

// Load reads an optional .env, then the environment, and builds the logger for service.
// The returned logger is usable even when err is non-nil.
func Load(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "bootstrap.dotenv_unreadable")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// MustLoad is Load for main packages.
func MustLoad(service string) (*config.Config, *logger.Logger) {
	cfg, logg, err := Load(service)
	if err != nil {
		Exit(logg, "failed to load config", err)
	}
	return cfg, logg
}

// MustDB opens the database and, in dev with auto-migrate on, applies pending migrations.
func MustDB(ctx context.Context, cfg *config.Config, logg *logger.Logger) *db.Client {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		Exit(logg, "failed to bootstrap database", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		_ = client.Close()
		Exit(logg, "failed to run dev migrations", err)
	}
	return client
}

// Exit logs err and stops the process with status 1.
func Exit(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

// Closer logs a failed Close on shutdown. Use with defer.
func Closer(logg *logger.Logger, name string, close func() error) func() {
	return func() {
		if err := close(); err != nil {
			logg.Error(context.Background(), "error closing "+name, err)
		}
	}
}
