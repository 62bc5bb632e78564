// Package app implements the command line interface.
package app

import (
	"github.com/spf13/cobra"

	"github.com/libreviews/revdal/internal/config"
	"github.com/libreviews/revdal/internal/logger"
)

var (
	configPath string // directory holding main.toml
	devMode    bool

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "revdal",
		Short: "revdal manages the revisioned content store",
		Long: `revdal manages the storage of the review platform: it migrates the
schema and inspects the revision history of content entities.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error

			if cfg, err = config.ReadConfig(configPath); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
				cfg.Log.LogLevel = "debug"
			}

			return logger.Init(cfg.Log)
		},
	}
)

func init() { //nolint:gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "directory holding main.toml")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable dev mode (debug logging, SQL trace)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
