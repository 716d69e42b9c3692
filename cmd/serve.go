package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/schedule"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the dashboard server and, if enabled, the daily schedule",
		Long: `Serves the run-history dashboard and health endpoints. When
schedule.enabled is set, also fires the edition run every day at the
configured time.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()
			logger := a.Logger()
			ctx := cmd.Context()

			if cfg.Schedule.Enabled {
				sched, err := schedule.New(cfg.Schedule.At, cfg.Schedule.Timezone,
					func(ctx context.Context, date time.Time) error {
						_, err := a.Runner().Run(ctx, date, false, false)
						return err
					}, logger)
				if err != nil {
					return fmt.Errorf("build schedule: %w", err)
				}
				go func() {
					if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("scheduler stopped", zap.Error(err))
					}
				}()
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           a.Server().Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("dashboard listening", zap.Int("port", cfg.Server.Port))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("serve dashboard: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown dashboard: %w", err)
			}
			logger.Info("dashboard stopped")
			return nil
		},
	}
}
