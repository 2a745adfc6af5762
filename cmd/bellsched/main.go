package main

import (
	"os"

	"github.com/spf13/cobra"

	appLog "bellsched/internal/log"
)

var version = "0.1.0-dev"

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "bellsched",
	Short: "Import a school calendar feed into daily bell schedules",
	Long: `bellsched reads the school's ICS calendar, resolves every school day to a
bell schedule (standard templates first, a language model for the rest) and
stores one schedule per date for the read API.
`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "/etc/bellsched/config.yaml", "Path to config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Optional .env file with secrets")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config if set)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(dayCmd())
	rootCmd.Version = version
}
