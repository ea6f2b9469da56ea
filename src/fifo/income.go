package fifo

import (
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/utils"
)

// aggregateIncome groups dividend, distribution, interest, payment-in-lieu
// and capital-repayment amounts per year and source country.
func (e *Engine) aggregateIncome(ev *models.FinancialEvent) {
	if !ev.AmountEUR.Valid {
		logger.L.Warn("Income event skipped by aggregation, no converted amount",
			"transactionID", ev.TransactionID, "date", ev.Date)
		return
	}
	year, country, ok := e.incomeBucket(ev)
	if !ok {
		return
	}
	summary := e.result.Income[year][country]
	summary.GrossEUR = summary.GrossEUR.Add(ev.AmountEUR.Decimal)
	e.result.Income[year][country] = summary
}

// aggregateWithholding books a linked withholding-tax amount against its
// income event's bucket. Unlinked tax events were already surfaced by the
// linker diagnostics and are not guessed into a bucket.
func (e *Engine) aggregateWithholding(ev *models.FinancialEvent, arena *models.EventArena) {
	if ev.WithholdingTax == nil || ev.WithholdingTax.LinkedIncomeEventID == "" {
		return
	}
	income := arena.Get(ev.WithholdingTax.LinkedIncomeEventID)
	if income == nil {
		logger.L.Warn("Withholding back-reference resolves to no event",
			"transactionID", ev.TransactionID, "linkedID", ev.WithholdingTax.LinkedIncomeEventID)
		return
	}
	if !ev.AmountEUR.Valid {
		logger.L.Warn("Withholding event skipped by aggregation, no converted amount",
			"transactionID", ev.TransactionID)
		return
	}
	year, country, ok := e.incomeBucket(income)
	if !ok {
		return
	}
	summary := e.result.Income[year][country]
	summary.TaxedEUR = summary.TaxedEUR.Add(ev.AmountEUR.Decimal)
	e.result.Income[year][country] = summary
}

// incomeBucket resolves (year, country) for an income event and ensures the
// nested maps exist.
func (e *Engine) incomeBucket(ev *models.FinancialEvent) (int, string, bool) {
	day := utils.ParseDateOrZero(ev.Date)
	if day.IsZero() {
		logger.L.Warn("Income event has no parseable date, skipping aggregation",
			"transactionID", ev.TransactionID, "date", ev.Date)
		return 0, "", false
	}
	year := day.Year()

	country := ""
	if a := e.resolver.GetAssetByID(ev.AssetID); a != nil {
		country = utils.CountryNameFromISIN(a.ISIN)
	}
	if country == "" {
		country = "unknown"
	}

	if _, ok := e.result.Income[year]; !ok {
		e.result.Income[year] = make(map[string]models.IncomeSummary)
	}
	return year, country, true
}
