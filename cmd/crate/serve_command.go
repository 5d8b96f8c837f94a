package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"crate_ledger/internal/dashboard"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API over the cached collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Dashboard.Addr
			}

			gin.SetMode(gin.ReleaseMode)
			handler := dashboard.NewHandler(newCacheStore(cfg, ctx.logger), dashboard.Config{
				TopStyles:    cfg.Dashboard.TopStyles,
				PreviewLimit: cfg.Dashboard.PreviewLimit,
			}, ctx.logger.With("component", "dashboard"))

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           dashboard.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				ctx.logger.Info("dashboard listening", "addr", addr, "cache", cfg.Cache.Path)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-runCtx.Done():
				ctx.logger.Info("shutting down dashboard")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to dashboard.addr)")
	return cmd
}
