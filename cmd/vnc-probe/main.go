// Command vnc-probe is a standalone diagnostic client for testing VNC
// connectivity to a system under test, independent of a full driver
// config. Grounded on the teacher's vnc-connect diagnostic tool.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"autotest/pkg/vnc"
)

var (
	host     string
	port     int
	password string
	timeout  time.Duration
	debug    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vnc-probe",
	Short: "Test VNC connectivity to a system under test",
	Example: `  vnc-probe --host 192.168.1.100 --port 5900 --password secret
  vnc-probe --host 192.168.1.100 --debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		session, err := vnc.Connect(ctx, vnc.Endpoint{Host: host, Port: port, Password: password})
		if err != nil {
			return fmt.Errorf("vnc-probe: connection failed: %w", err)
		}
		defer session.Close()

		width, height := session.Framebuffer().Size()
		log.Info().
			Str("host", host).
			Int("port", port).
			Int("width", width).
			Int("height", height).
			Msg("vnc-probe: connected and received initial framebuffer")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "", "VNC server host")
	rootCmd.Flags().IntVar(&port, "port", 5900, "VNC server port")
	rootCmd.Flags().StringVar(&password, "password", "", "VNC password (if required)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connection timeout")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.MarkFlagRequired("host")
}
