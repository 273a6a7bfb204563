// Package main implements the otsim command-line tool.
//
// otsim runs liquid-handling protocols against a simulated robot, or
// against a real motion controller when a port is given, and keeps a
// record of every run.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	presetName string
	port       string
	force      bool
	logLevel   string
	dataDir    string
	save       bool
	envFile    string
)

// main is the entry point for the otsim CLI.
// It exits the process with status 1 if command execution returns an error.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "otsim PROTOCOL_FILE",
		Short:        "simulate liquid-handling protocols",
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv(envFile)
		},
		RunE: runProtocol,
	}
	rootCmd.SetVersionTemplate("otsim {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "robot configuration file (yaml)")
	pf.StringVar(&presetName, "preset", "", "hardware profile (see otsim presets)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&dataDir, "data", "", "run data directory")
	pf.StringVar(&envFile, "env", ".env", "environment file")

	rootCmd.Flags().StringVar(&port, "port", "", "motion controller port; simulate when empty")
	rootCmd.Flags().BoolVar(&force, "force", false, "take over a port locked by another process")
	rootCmd.Flags().BoolVar(&save, "save", false, "store the run and its trace")

	rootCmd.AddCommand(
		newRunsCmd(),
		newPlotCmd(),
		newExportCmd(),
		newBenchCmd(),
		newLiveCmd(),
		newPresetsCmd(),
		newTuneCmd(),
		newAnalyzeCmd(),
	)
	return rootCmd
}

// loadDotEnv loads environment variables from path. A missing file is
// ignored so .env stays optional.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
