package main

import (
	"fmt"
	"time"

	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/telemetry"
	"github.com/spf13/cobra"
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List the most recent exports stored in the SQLite archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			archive, err := telemetry.Open(cfg.TelemetryConfig(), logger.Default())
			if err != nil {
				return err
			}
			defer archive.Close()

			records, err := archive.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range records {
				fmt.Fprintf(out, "%d\t%s\t%s\t%d bytes\n", r.ID, r.ExportedAt.UTC().Format(time.RFC3339), r.Format, len(r.Payload))
			}

			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "Number of records to list")

	return cmd
}
