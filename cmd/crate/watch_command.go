package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crate_ledger/internal/cache"
	"crate_ledger/internal/scheduler"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run sync on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			lock, err := cache.AcquireLock(cfg.Cache.LockPath)
			if err != nil {
				if errors.Is(err, cache.ErrLocked) {
					return fmt.Errorf("another sync holds %s", cfg.Cache.LockPath)
				}
				return err
			}
			defer lock.Release()

			svc, cleanup, err := buildSyncService(cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctx.logger.Info("starting collection watcher",
				"username", cfg.Discogs.Username,
				"interval", cfg.Sync.Interval,
				"max_pages", cfg.Sync.MaxPages,
			)

			sched := scheduler.NewScheduler(svc, cfg.Sync.Interval, cfg.Sync.Timeout, ctx.logger)
			if err := sched.Start(runCtx); err != nil && runCtx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
