package main

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cn3rd/bcsync/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	rootCmd := &cobra.Command{
		Use:           "bcsync",
		Short:         "Download your purchased Bandcamp collection",
		Long:          "bcsync enumerates the releases you purchased on Bandcamp, using an exported browser cookie file for authentication, and downloads them in your preferred audio format.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newSyncCommand(&configFlag, &verboseFlag))
	rootCmd.AddCommand(newListCommand(&configFlag, &verboseFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

// defaultConfigPath is where settings live when --config is not given.
func defaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "bcsync", "settings.json")
}

func loadSettings(configFlag string) (*config.Settings, string, error) {
	path := configFlag
	if path == "" {
		path = defaultConfigPath()
	}
	settings, err := config.Load(path)
	return settings, path, err
}

// newLogger builds the run logger: human-readable console output on a
// terminal, JSON lines otherwise.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
