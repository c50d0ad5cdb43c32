package migrate

import (
	"context"
	"fmt"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

// MaybeRunDev applies pending migrations on startup, only in dev with DRIPLO_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	migrator, err := New(sqlDB, nil)
	if err != nil {
		return err
	}

	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"file":        step.File,
			"duration_ms": step.Millis,
		}), "migrate.applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migrate.dev_autorun_complete")
	return nil
}
