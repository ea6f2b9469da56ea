package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/username/steuerfolio/src/config"
	"github.com/username/steuerfolio/src/logger"
)

var rootCmd = &cobra.Command{
	Use:   "steuerfolio",
	Short: "FIFO capital gains and investment income from broker exports",
	Long: `steuerfolio turns a year of brokerage activity exports into the
realized gains, investment income and withholding tax figures needed for a
German capital gains declaration. Amounts are converted to the reporting
currency with ECB reference rates and matched against opening positions
using FIFO lot accounting.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadConfig()
		logger.InitLogger(config.Cfg.LogLevel)
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
