package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shapedtime/cloudlib/internal/metrics"
	"github.com/shapedtime/cloudlib/internal/scheduler"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run periodic scans and serve metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var metricsServer *metrics.Server
			if a.cfg.Metrics.Enabled {
				metricsServer = metrics.NewServer(a.cfg.Metrics.Port, a.registry)
				go func() {
					if err := metricsServer.Start(); err != nil {
						stop()
					}
				}()
			}

			var auto *scheduler.AutoScan
			if interval := a.cfg.Scan.Interval(); interval > 0 {
				auto = scheduler.NewAutoScan(a.orchestrator, a.store.Sync, scheduler.Options{
					Interval: interval,
				})
				auto.Start()
			} else {
				slog.Info("Automatic scans disabled")
			}

			slog.Info("cloudlib is ready", "storage_root", a.cfg.Storage.Root)

			<-sigCtx.Done()
			slog.Info("Shutting down")

			if auto != nil {
				auto.Stop()
			}
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					slog.Error("Metrics server shutdown error", "error", err)
				}
			}

			slog.Info("cloudlib stopped")
			return nil
		},
	}
}
