package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cbtrader/config"
	"cbtrader/exchange"
	"cbtrader/logger"
)

// Process exit codes.
const (
	exitOK     = 0
	exitConfig = 1
	exitAuth   = 2
)

var (
	configPath string
	envFile    string

	cfg *config.Config
)

func main() {
	log := logger.GetLogger()

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("cbtrader exited with error")
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

// exitCode maps a command error to the process exit status. Credentials
// rejected by the exchange exit with 2, anything else with 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case exchange.IsAuthError(err):
		return exitAuth
	default:
		return exitConfig
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cbtrader",
		Short: "Hourly moving-average crossover trader",
		Long: `cbtrader evaluates a short/long moving-average crossover on hourly
candles at every hour boundary and places a fixed-size market order in the
direction of the trend when the account holds the currency to spend.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file with exchange credentials")

	root.AddCommand(runCmd())
	root.AddCommand(signalCmd())
	root.AddCommand(balancesCmd())
	root.AddCommand(versionCmd())
	return root
}

// setup loads the environment file, the configuration and configures the
// logger before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Error loading .env file")
	}

	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := log.Configure(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.Output, loaded.Logging.MaxAge); err != nil {
		return err
	}
	cfg = loaded
	return nil
}
