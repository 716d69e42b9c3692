package cmd

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probes the configured services and reports what works",
		Long: `Checks that the configuration loads, the archive storage answers,
the run history answers, and the SMTP endpoint accepts connections.
Exits non-zero if any probe fails.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := a.Logger()
			cfg := a.Config()
			ctx := cmd.Context()

			// Reaching this point means config loaded and every provider
			// constructor succeeded.
			logger.Info("config ok", zap.String("site", cfg.Site.BaseURL))

			failed := false

			if _, err := a.Storage().List(ctx, cfg.Storage.Prefix); err != nil {
				logger.Error("storage probe failed", zap.Error(err))
				failed = true
			} else {
				logger.Info("storage ok", zap.String("provider", a.Storage().Name()))
			}

			if _, err := a.History().Recent(ctx, 1, time.Now()); err != nil {
				logger.Error("history probe failed", zap.Error(err))
				failed = true
			} else {
				logger.Info("history ok", zap.String("provider", cfg.DB.Provider))
			}

			if cfg.Email.Enabled {
				addr := net.JoinHostPort(cfg.Email.SMTPHost, strconv.Itoa(cfg.Email.SMTPPort))
				conn, err := net.DialTimeout("tcp", addr, probeTimeout)
				if err != nil {
					logger.Error("smtp probe failed", zap.String("addr", addr), zap.Error(err))
					failed = true
				} else {
					_ = conn.Close()
					logger.Info("smtp ok", zap.String("addr", addr))
				}
			} else {
				logger.Info("email disabled, skipping smtp probe")
			}

			if failed {
				return errors.New("one or more health probes failed")
			}
			logger.Info("all probes passed")
			return nil
		},
	}
}
