package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/pulse/internal/config"
	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/pid"
	"codeberg.org/mutker/pulse/internal/telemetry"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collector and scheduled exports until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			pidPath, err := cmd.Flags().GetString("pid-file")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handleSignals(ctx, cancel)

			return run(ctx, cfg, pidPath)
		},
	}

	cmd.Flags().String("pid-file", pid.DefaultPath(), "PID file guarding against concurrent daemons")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, pidPath string) error {
	log := logger.Default()

	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	e, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	defer e.close()

	if cfg.EnableResources {
		if err := e.sampler.Start(cfg.SamplerInterval); err != nil {
			return err
		}
		defer e.sampler.Stop()
	}

	var archive *telemetry.Archive
	if cfg.Export.Interval > 0 {
		sink := export.WriterSink(os.Stdout)
		if cfg.Export.Sink == config.SinkSQLite {
			archive, err = telemetry.Open(cfg.TelemetryConfig(), log)
			if err != nil {
				return err
			}
			sink = archive
		}

		if _, err := e.collector.ScheduleExport(cfg.Export.Interval, cfg.ExportFormat(), sink); err != nil {
			closeArchive(archive, log)
			return err
		}
	}

	e.collector.Start()
	log.Info().Str("service", cfg.ServiceName).Msg("Pulse started")

	<-ctx.Done()

	// Stop the collector before closing the archive so no export races Close.
	e.collector.Stop()
	closeArchive(archive, log)
	log.Info().Msg("Exiting...")

	return nil
}

func closeArchive(archive *telemetry.Archive, log logger.Logger) {
	if archive == nil {
		return
	}
	if err := archive.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close telemetry archive")
	}
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
