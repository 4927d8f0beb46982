package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autotest/pkg/driver"
	"autotest/pkg/screen"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Start the driver and run a named built-in scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarioName := args[0]
		scenario, ok := driver.Scenarios[scenarioName]
		if !ok {
			return fmt.Errorf("unknown scenario %q (available: %v)", scenarioName, scenarioNames())
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d := driver.New(cfg)
		if cfg.Console.VNC.Enable {
			ocr := screen.NewTesseractOCR()
			defer ocr.Close()
			d.SetOCR(ocr)
		}

		ctx := context.Background()
		if err := d.Start(ctx); err != nil {
			return fmt.Errorf("failed to start driver: %w", err)
		}

		scenarioErr := scenario(ctx, d)

		if err := d.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("failed to stop driver cleanly")
		}
		if err := d.DumpLog(ctx); err != nil {
			log.Error().Err(err).Msg("failed to dump logs")
		}

		if scenarioErr != nil {
			return fmt.Errorf("scenario %q failed: %w", scenarioName, scenarioErr)
		}
		log.Info().Str("scenario", scenarioName).Msg("scenario completed successfully")
		return nil
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(driver.Scenarios))
	for name := range driver.Scenarios {
		names = append(names, name)
	}
	return names
}
