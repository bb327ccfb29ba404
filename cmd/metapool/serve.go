// cmd/metapool/serve.go
package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/metapool/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the ledger open and export pool metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRunner(cmd, func(ctx context.Context, r *app.Runner) error {
				if r.Config().MetricsAddr == "" {
					return errors.New("serve needs metrics_addr (--metrics-addr)")
				}
				if interval <= 0 {
					return errors.New("--interval must be positive")
				}
				if err := r.ServeMetrics(); err != nil {
					return err
				}

				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := r.PublishPoolTotals(); err != nil {
						r.Logger().LogError("Failed to refresh pool metrics", err)
					}
					select {
					case <-ctx.Done():
						r.Logger().Info("Serve stopped", zap.Error(context.Cause(ctx)))
						return nil
					case <-ticker.C:
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "pool metrics refresh interval")
	return cmd
}
