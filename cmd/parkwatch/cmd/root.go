// Package cmd implements the CLI commands for parkwatch.
package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "parkwatch",
		Short: "Watch ski resort parking reservations for open spots",
		Long: "parkwatch polls the Palisades Tahoe parking reservation system for\n" +
			"the dates you care about and notifies you the moment a reservable\n" +
			"spot opens up, via desktop popup, ntfy push, email, or SMS.",
	}
)

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file path (optional)")

	rootCmd.AddCommand(versionCommand())
}

func initEnv() {
	// Credentials may live in a local .env file; absence is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix("PARKWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
