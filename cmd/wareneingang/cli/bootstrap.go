package cli

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/wareneingang/internal/app"
)

// Bootstrap loads configuration from the environment and envFile, builds the container and reads persisted state.
func Bootstrap(ctx context.Context, envFile string) (*app.Container, *app.Config, error) {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)
	container, err := app.NewContainer(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		logger.Error("build container", slog.Any("error", err))
		return nil, nil, err
	}
	if err := container.Load(ctx); err != nil {
		container.Close()
		logger.Error("load state", slog.Any("error", err))
		return nil, nil, err
	}
	return container, cfg, nil
}
