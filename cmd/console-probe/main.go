// Command console-probe is a standalone diagnostic client for testing
// serial or SSH console connectivity, independent of a full driver
// config. Mirrors vnc-probe's role for the byte-stream transports.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autotest/pkg/console"
)

var (
	serialDevice string
	baudRate     int

	sshHost     string
	sshPort     int
	sshUsername string
	sshPassword string

	runCmdStr string
	timeout   time.Duration
	debug     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "console-probe",
	Short: "Test serial or SSH console connectivity and optionally run one command",
	Example: `  console-probe --serial /dev/ttyUSB0 --run "uname -a"
  console-probe --ssh-host 192.168.1.50 --ssh-user root --ssh-password secret --run whoami`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var worker *console.Worker

		switch {
		case serialDevice != "":
			t, err := console.OpenSerial(ctx, console.SerialConfig{Device: serialDevice, BaudRate: baudRate})
			if err != nil {
				return fmt.Errorf("console-probe: failed to open serial device: %w", err)
			}
			worker = console.NewWorker(t, console.GeneralTerm, false)
		case sshHost != "":
			t, err := console.DialSSH(ctx, console.SSHConfig{Host: sshHost, Port: sshPort, Username: sshUsername, Password: sshPassword})
			if err != nil {
				return fmt.Errorf("console-probe: failed to dial ssh: %w", err)
			}
			worker = console.NewWorker(t, console.GeneralTerm, false)
		default:
			return fmt.Errorf("console-probe: one of --serial or --ssh-host is required")
		}
		defer worker.Close()

		log.Info().Msg("console-probe: session established")

		if runCmdStr != "" {
			result, err := worker.RunCommand(ctx, runCmdStr, timeout)
			if err != nil {
				return fmt.Errorf("console-probe: command failed: %w", err)
			}
			log.Info().Int("exit_code", result.ExitCode).Msg("console-probe: command completed")
			fmt.Println(result.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&serialDevice, "serial", "", "serial device path")
	rootCmd.Flags().IntVar(&baudRate, "baud", 115200, "serial baud rate")
	rootCmd.Flags().StringVar(&sshHost, "ssh-host", "", "SSH host")
	rootCmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	rootCmd.Flags().StringVar(&sshUsername, "ssh-user", "", "SSH username")
	rootCmd.Flags().StringVar(&sshPassword, "ssh-password", "", "SSH password")
	rootCmd.Flags().StringVar(&runCmdStr, "run", "", "command to run once connected")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}
