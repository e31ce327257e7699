// Package commands implements the jfile CLI.
package commands

import (
	"github.com/marmos91/jfile/internal/logger"
	"github.com/marmos91/jfile/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jfile",
	Short: "Journaled atomic file writes",
	Long: `jfile manages the journals of files written through the jfile library.

The journal sits in a hidden directory next to each data file and makes
multi-range writes atomic and durable across crashes. This tool checks
and repairs those journals.

Examples:
  # Check and repair a file's journal
  jfile fsck /var/lib/app/data.db

  # Use a journal kept in a non-default location
  jfile fsck /var/lib/app/data.db --journal /var/lib/app/journal

  # Show version information
  jfile version`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/jfile/config.yaml)")

	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
