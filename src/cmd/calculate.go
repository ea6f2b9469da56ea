package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/classification"
	"github.com/username/steuerfolio/src/config"
	"github.com/username/steuerfolio/src/database"
	"github.com/username/steuerfolio/src/enrichment"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
	"github.com/username/steuerfolio/src/parsers"
	"github.com/username/steuerfolio/src/pipeline"
	"github.com/username/steuerfolio/src/rates"
	"github.com/username/steuerfolio/src/reporting"
)

var calculateFlags struct {
	broker           string
	trades           string
	cashTransactions string
	soyPositions     string
	eoyPositions     string
	corporateActions string
	taxYear          int
	interactive      bool
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Run the full pipeline over one tax year's export files",
	RunE:  runCalculate,
}

func init() {
	f := calculateCmd.Flags()
	f.StringVar(&calculateFlags.broker, "broker", "ibkr", "broker export format")
	f.StringVar(&calculateFlags.trades, "trades", "", "trades section CSV")
	f.StringVar(&calculateFlags.cashTransactions, "cash-transactions", "", "cash transactions section CSV")
	f.StringVar(&calculateFlags.soyPositions, "soy-positions", "", "start-of-year positions CSV")
	f.StringVar(&calculateFlags.eoyPositions, "eoy-positions", "", "end-of-year positions CSV")
	f.StringVar(&calculateFlags.corporateActions, "corporate-actions", "", "corporate actions section CSV")
	f.IntVar(&calculateFlags.taxYear, "tax-year", 0, "tax year, overrides TAX_YEAR")
	f.BoolVar(&calculateFlags.interactive, "interactive", false, "prompt for ambiguous asset classifications")
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, args []string) error {
	taxYear := config.Cfg.TaxYear
	if calculateFlags.taxYear != 0 {
		taxYear = calculateFlags.taxYear
	}
	interactive := config.Cfg.Interactive || calculateFlags.interactive

	logger.L.Info("Initializing database...", "path", config.Cfg.CacheDatabasePath)
	db, err := database.InitDB(config.Cfg.CacheDatabasePath)
	if err != nil {
		return fmt.Errorf("initializing cache database: %w", err)
	}
	defer db.Close()

	reader, err := parsers.GetReader(calculateFlags.broker)
	if err != nil {
		return err
	}

	logger.L.Info("Reading broker exports...", "broker", calculateFlags.broker)
	set, err := reader.Read(models.InputFiles{
		Trades:           calculateFlags.trades,
		CashTransactions: calculateFlags.cashTransactions,
		SOYPositions:     calculateFlags.soyPositions,
		EOYPositions:     calculateFlags.eoyPositions,
		CorporateActions: calculateFlags.corporateActions,
	})
	if err != nil {
		return fmt.Errorf("reading broker exports: %w", err)
	}

	mctx := money.NewContext(config.Cfg.DecimalPrecision)

	var oracle classification.Oracle
	if interactive {
		oracle = consoleOracle(os.Stdin, os.Stderr)
	}
	classCache := classification.NewCacheStore(db)
	classifier := classification.NewClassifier(classCache, oracle)

	rateStore := rates.NewStore(db)
	fetcher := rates.NewECBFetcher(config.Cfg.ECBRatesURL)
	provider := rates.NewProvider(config.Cfg.ReportingCurrency, rateStore, fetcher, config.Cfg.RateFallbackDays)
	enricher := enrichment.NewEnricher(config.Cfg.ReportingCurrency, provider, mctx)

	resolver := assets.NewResolver()
	p := pipeline.New(resolver, classifier, classCache, enricher, mctx, taxYear)

	logger.L.Info("Running pipeline...", "taxYear", taxYear)
	result, err := p.Run(set)
	if err != nil {
		return err
	}

	sink := reporting.NewConsoleSink(os.Stdout, resolver, taxYear)
	return sink.Write(result)
}
