package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
)

func newFetchCmd() *cobra.Command {
	var (
		dateFlag string
		force    bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Runs one edition acquisition end to end",
		Long: `Fetches the edition for the given date (default today), archives it,
and delivers the daily email. With --dry-run the edition is downloaded and
validated but nothing is archived, delivered, or recorded.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			date := time.Now().UTC()
			if dateFlag != "" {
				date, err = time.Parse(edition.DateLayout, dateFlag)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			record, err := a.Runner().Run(cmd.Context(), date, force, dryRun)
			if err != nil {
				if errors.Is(err, cmd.Context().Err()) {
					a.Logger().Warn("fetch interrupted")
					return nil
				}
				return fmt.Errorf("fetch edition: %w", err)
			}

			a.Logger().Info("edition fetched",
				zap.String("date", record.Date),
				zap.String("strategy", string(record.Strategy)),
				zap.String("artifact", record.ArtifactURI))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "edition date, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&force, "force", false, "re-download even if a valid artifact exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and validate only, skip archive and delivery")

	return cmd
}
