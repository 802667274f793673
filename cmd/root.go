// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mendbot",
	Short:   "Mendbot heals failing repositories: test, scan, fix, push, PR.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		loaded, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Fall back to a minimal logger so the error is at least visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "mendbot"})
			return err
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting mendbot", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MENDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
