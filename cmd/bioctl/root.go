package main

import (
	"fmt"
	"os"

	"github.com/caffeineduck/browserinterop/config"
	"github.com/caffeineduck/browserinterop/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "bioctl",
	Short: "Host interop tooling for PLM web clients",
	Long: `bioctl - Run and inspect the browser interop protocol between a PLM web
client and its hosting application.

It can relay rooms of remote clients and hosts, host a client bundle
compiled to WebAssembly, or join a relay room as an interactive console.
Settings come from --config, a .env file and BIO_* variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfg    *config.Config
	logger = zap.NewNop()
	level  = zap.NewAtomicLevel()
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console, json")
}

// setup loads configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		loaded.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		loaded.Log.Format = v
	}

	l, lvl, err := logging.New(logging.Options{Level: loaded.Log.Level, Format: loaded.Log.Format})
	if err != nil {
		return err
	}
	cfg, logger, level = loaded, l, lvl
	return nil
}

func fatal(err error) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
