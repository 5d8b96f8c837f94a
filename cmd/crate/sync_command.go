package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crate_ledger/internal/cache"
	"crate_ledger/internal/domain"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch instances added since the last run and update the cache",
		Long: "Fetch instances added since the last run and update the cache.\n\n" +
			"With --full the whole folder is read again and replaces the cache, which\n" +
			"picks up edits to instances that are already cached.",
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
			if cfg.Sync.Timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, cfg.Sync.Timeout)
				defer cancel()
			}

			run := svc.Sync
			if full {
				run = svc.Refresh
			}
			result, err := run(runCtx)
			if result != nil {
				printSyncResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Re-read the whole folder and replace the cache")
	return cmd
}

func printSyncResult(w io.Writer, result *domain.SyncResult) {
	fmt.Fprintf(w, "%d new, %d cached (stopped: %s, pages: %d)\n",
		len(result.New), len(result.Items), result.Stats.StopReason, result.Stats.Pages)
	for _, item := range result.New {
		artists := ""
		if item.Artists != nil {
			artists = *item.Artists
		}
		fmt.Fprintf(w, "  + %d  %s - %s\n", item.InstanceID, artists, item.Title)
	}
}
