package enrichment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
	"github.com/username/steuerfolio/src/rates"
	"github.com/username/steuerfolio/src/utils"
)

// Enricher populates the reporting-currency counterpart of every
// foreign-currency monetary field exactly once per event, under the single
// fixed-precision decimal context of the run. Re-running is safe: fields
// already converted are skipped.
type Enricher struct {
	reportingCurrency string
	provider          *rates.Provider
	mctx              money.Context
}

func NewEnricher(reportingCurrency string, provider *rates.Provider, mctx money.Context) *Enricher {
	return &Enricher{
		reportingCurrency: strings.ToUpper(reportingCurrency),
		provider:          provider,
		mctx:              mctx,
	}
}

// EnrichAll converts every event in place. Conversion failures leave the
// field unset and are logged; a rate is never fabricated.
func (e *Enricher) EnrichAll(events []*models.FinancialEvent) {
	enriched, skipped := 0, 0
	for _, ev := range events {
		if e.enrich(ev) {
			enriched++
		} else {
			skipped++
		}
	}
	e.provider.Flush()
	logger.L.Info("Currency enrichment finished", "enriched", enriched, "skipped", skipped)
}

func (e *Enricher) enrich(ev *models.FinancialEvent) bool {
	day, err := utils.ParseDate(ev.Date)
	if err != nil {
		logger.L.Warn("Skipping enrichment for event with unparseable date",
			"eventID", ev.ID, "date", ev.Date, "transactionID", ev.TransactionID)
		return false
	}

	if ev.Trade != nil {
		e.enrichTrade(ev, day)
		return true
	}

	ev.AmountEUR = e.convertField(ev.AmountEUR, ev.Amount, ev.Currency, day, ev)
	if ev.CorporateAction != nil {
		ca := ev.CorporateAction
		ca.CashPerShareEUR = e.convertField(ca.CashPerShareEUR, ca.CashPerShare, ev.Currency, day, ev)
		ca.FMVPerShareEUR = e.convertField(ca.FMVPerShareEUR, ca.FMVPerShare, ev.Currency, day, ev)
	}
	return true
}

// enrichTrade handles gross, commission and the derived net figure.
func (e *Enricher) enrichTrade(ev *models.FinancialEvent, day time.Time) {
	t := ev.Trade

	// Gross was not derivable from the direct foreign-currency field: fall
	// back to quantity times price before converting.
	if ev.Amount.IsZero() && !t.Quantity.IsZero() && !t.Price.IsZero() {
		ev.Amount = e.mctx.Mul(t.Quantity.Abs(), t.Price)
	}

	ev.AmountEUR = e.convertField(ev.AmountEUR, ev.Amount, ev.Currency, day, ev)
	t.CommissionEUR = e.convertField(t.CommissionEUR, t.Commission, t.CommissionCurrency, day, ev)

	// Net cost or proceeds needs both components. A missing commission
	// conversion for a non-zero commission leaves net unset, never guessed.
	if t.NetAmountEUR.Valid {
		return
	}
	if !ev.AmountEUR.Valid {
		return
	}
	if !t.CommissionEUR.Valid && !t.Commission.IsZero() {
		return
	}
	commission := decimal.Zero
	if t.CommissionEUR.Valid {
		commission = t.CommissionEUR.Decimal
	}
	gross := ev.AmountEUR.Decimal.Abs()
	var net decimal.Decimal
	if ev.Kind.IsBuyDirection() {
		net = gross.Add(commission)
	} else {
		net = gross.Sub(commission)
	}
	t.NetAmountEUR = decimal.NewNullDecimal(e.mctx.Round(net))
}

// convertField applies the single-field conversion rules: idempotent skip,
// reporting-currency copy, zero short-circuit, then the rate lookup.
func (e *Enricher) convertField(existing decimal.NullDecimal, amount decimal.Decimal, currency string, day time.Time, ev *models.FinancialEvent) decimal.NullDecimal {
	if existing.Valid {
		return existing
	}
	if amount.IsZero() {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	if strings.EqualFold(currency, e.reportingCurrency) {
		return decimal.NewNullDecimal(e.mctx.Round(amount))
	}

	rate, ok := e.provider.GetRate(day, currency)
	if !ok || rate.IsZero() {
		logger.L.Warn("Leaving amount unconverted, no exchange rate",
			"eventID", ev.ID, "transactionID", ev.TransactionID,
			"currency", currency, "date", ev.Date)
		return existing
	}
	return decimal.NewNullDecimal(e.mctx.Convert(amount, rate))
}
