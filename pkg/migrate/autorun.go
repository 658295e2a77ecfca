package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	"github.com/angelmondragon/scoopshop-backend/pkg/db"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
)

// MaybeRun applies the embedded migrations on boot when the SQL cart store is
// selected and either auto-migrate is enabled or the app runs in dev mode.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.Cart.UsesSQL() {
		return nil
	}
	if !cfg.FeatureFlags.AutoMigrate && !cfg.App.IsDev() {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "running goose migrations")

	if err := Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
