// Package cmd defines the CLI commands for the paperboy executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/api"
	"github.com/paperboydev/paperboy/internal/app"
	"github.com/paperboydev/paperboy/internal/config"
	"github.com/paperboydev/paperboy/internal/history"
	"github.com/paperboydev/paperboy/internal/pipeline"
	"github.com/paperboydev/paperboy/internal/storage"
)

var cfgFile string

type appKeyType struct{}

var appKey appKeyType

// App is the slice of app.App the commands use. An interface so tests can
// inject a fake container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Runner() *pipeline.Runner
	Server() *api.Server
	Storage() storage.Provider
	History() history.Store
}

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context) (App, error) {
	// Secrets (site password, SMTP, bucket keys) usually arrive through a
	// .env file in development. A missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func resolveApp(ctx context.Context) (App, error) {
	a, ok := ctx.Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paperboy",
		Short: "Fetches, archives, and delivers a daily newspaper edition",
		Long: `paperboy logs in to a newspaper site every morning, downloads the
daily edition, archives it, and emails the subscriber a link with a
front-page preview. When the plain HTTP path fails it escalates to a
headless browser.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/paperboy, $HOME/.paperboy)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}

// Execute is the entry point. It wires SIGINT/SIGTERM into the command
// context so a fetch in flight can stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
