// Package cfg provides configuration and command-line interface setup for
// Tidarr.
package cfg

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tidarr/internal/domain/keys"
	"tidarr/internal/utils/logging"
)

var rootCmd = &cobra.Command{
	Use:   "tidarr",
	Short: "Tidarr is a personal media retrieval client for a subscription streaming service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(os.Stderr, viper.GetInt(keys.DebugLevel))

		if configFile := viper.GetString(keys.ConfigFile); configFile != "" {
			info, err := os.Stat(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed check for config file path: %v\n", err)
				os.Exit(1)
			} else if info.IsDir() {
				fmt.Fprintln(os.Stderr, "config file entered is a directory, should be a file")
				os.Exit(1)
			}

			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "failed loading config file: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

// InitCommands initializes all commands and their flags.
func InitCommands() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := initProgramFlags(rootCmd); err != nil {
		return err
	}

	rootCmd.AddCommand(
		initLoginCmd(),
		initLogoutCmd(),
		initStatusCmd(),
		initGetCmd(),
	)
	return nil
}

// Execute runs the root command under the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
