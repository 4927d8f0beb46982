// Command autotest drives a system-under-test through its serial, SSH,
// and VNC consoles according to a TOML configuration file, following the
// teacher's cobra-based CLI structure.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"autotest/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "autotest",
	Short: "Drive a system under test through serial, SSH, and VNC consoles",
	Long: `autotest is an automation harness that drives a system-under-test through
its operator-facing consoles (serial, SSH, VNC) and runs named scenarios
against the resulting driver session.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(vncDoCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func main() {
	Execute()
}
