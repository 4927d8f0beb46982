package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autotest/pkg/vnc"
)

var (
	vncDoKey     string
	vncDoType    string
	vncDoClick   bool
	vncDoRefresh bool
)

var vncDoCmd = &cobra.Command{
	Use:   "vnc-do",
	Short: "Connect to the configured VNC endpoint and perform one ad-hoc input action",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Console.VNC.Enable {
			return fmt.Errorf("vnc-do requires console.vnc to be enabled in config")
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

		switch {
		case vncDoType != "":
			if err := worker.TypeString(ctx, vncDoType); err != nil {
				return err
			}
		case vncDoKey != "":
			if err := worker.SendKey(ctx, vncDoKey); err != nil {
				return err
			}
		case vncDoClick:
			if err := worker.MouseClick(ctx); err != nil {
				return err
			}
		case vncDoRefresh:
			if err := worker.Refresh(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("vnc-do requires one of --type, --key, --click, --refresh")
		}

		log.Info().Msg("vnc-do: action completed")
		return nil
	},
}

func init() {
	vncDoCmd.Flags().StringVar(&vncDoType, "type", "", "type a literal string")
	vncDoCmd.Flags().StringVar(&vncDoKey, "key", "", "send a single named key")
	vncDoCmd.Flags().BoolVar(&vncDoClick, "click", false, "left mouse click")
	vncDoCmd.Flags().BoolVar(&vncDoRefresh, "refresh", false, "force a full-screen refresh")
}
