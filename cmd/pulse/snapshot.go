package main

import (
	"fmt"

	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one collection cycle and print the export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			format := cfg.ExportFormat()
			if name, _ := cmd.Flags().GetString("format"); name != "" {
				if format, err = export.ParseFormat(name); err != nil {
					return err
				}
			}

			e, err := newEngine(cfg, logger.Default())
			if err != nil {
				return err
			}
			defer e.close()

			out, err := e.collector.ExportAll(cmd.Context(), format)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().String("format", "", "Export format, overriding export.format")

	return cmd
}
