package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autotest/internal/recorder"
	"autotest/pkg/vnc"
)

var recordInterval time.Duration

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Connect to the configured VNC endpoint and periodically capture screenshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Console.VNC.Enable {
			return fmt.Errorf("record requires console.vnc to be enabled in config")
		}

		ctx := context.Background()
		session, err := vnc.Connect(ctx, vnc.Endpoint{
			Host:     cfg.Console.VNC.Host,
			Port:     cfg.Console.VNC.Port,
			Password: cfg.Console.VNC.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to VNC endpoint: %w", err)
		}
		worker := vnc.NewWorker(session)
		defer worker.Close()

		screenDir := filepath.Join(cfg.LogDir, "screen")
		rec := recorder.New(worker, screenDir)

		ticker := time.NewTicker(recordInterval)
		defer ticker.Stop()

		log.Info().Dur("interval", recordInterval).Str("dir", screenDir).Msg("record: capturing")
		for range ticker.C {
			path, err := rec.Capture(ctx)
			if err != nil {
				log.Error().Err(err).Msg("record: capture failed")
				continue
			}
			log.Info().Str("path", path).Msg("record: captured frame")
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordInterval, "interval", 5*time.Second, "capture interval")
}
