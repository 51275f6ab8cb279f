package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// MonitorMode runs the risk sweep loop until the context is cancelled.
// Auto top-up runs inside the loop when enabled and a signer is configured.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Bool("auto_top_up", a.cfg.Monitor.AutoTopUpEnabled),
		slog.Duration("check_interval", a.cfg.Monitor.CheckInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Monitor.Run(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// OneshotMode performs a single sweep over all active positions and exits.
// It is meant for cron-style deployments where the scheduler owns the
// cadence.
func (a *App) OneshotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting oneshot sweep")
	deps.Monitor.RunSweep(ctx)
	return ctx.Err()
}
