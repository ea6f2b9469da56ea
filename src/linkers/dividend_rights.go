package linkers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// parenthesizedISINPattern extracts the underlying stock's ISIN that rights
// issuance descriptions carry in parentheses, e.g. "(DE0005557508)".
var parenthesizedISINPattern = regexp.MustCompile(`\(([A-Z]{2}[A-Z0-9]{9}[0-9])\)`)

// DividendRightsProcessor reconciles DI/ED corporate-action pairs: dividend
// rights that were issued as a stock dividend and then expired unexercised
// must not count as received shares, and the cash paid for the expired
// rights belongs to the real underlying stock, not the rights instrument.
type DividendRightsProcessor struct {
	resolver *assets.Resolver
}

func NewDividendRightsProcessor(resolver *assets.Resolver) *DividendRightsProcessor {
	return &DividendRightsProcessor{resolver: resolver}
}

// Process handles every dividend-rights-expiry event, best effort: a failed
// match is logged, never fatal.
func (p *DividendRightsProcessor) Process(events []*models.FinancialEvent) {
	for _, ed := range events {
		if ed.Kind != models.KindRightsExpiry {
			continue
		}
		p.processExpiry(ed, events)
	}
}

func (p *DividendRightsProcessor) processExpiry(ed *models.FinancialEvent, events []*models.FinancialEvent) {
	// Step 1: zero out the stock dividend that issued the now-expired rights.
	sd := p.findRightsIssuingStockDividend(ed, events)
	if sd == nil {
		logger.L.Info("No stock-dividend match for dividend-rights expiry",
			"transactionID", ed.TransactionID, "description", ed.Description)
		return
	}
	if sd.CorporateAction != nil && !sd.CorporateAction.QuantityDelta.IsZero() {
		logger.L.Debug("Zeroing expired dividend-rights share count",
			"stockDividendTransactionID", sd.TransactionID,
			"shares", sd.CorporateAction.QuantityDelta)
		sd.CorporateAction.QuantityDelta = decimal.Zero
	}

	// Step 2: re-point the rights-expiry cash payment at the real underlying
	// stock so the income attributes to the correct holding.
	underlyingISIN := parenthesizedISINPattern.FindStringSubmatch(sd.Description)
	if underlyingISIN == nil {
		logger.L.Info("Stock dividend description carries no parenthesized underlying ISIN",
			"transactionID", sd.TransactionID, "description", sd.Description)
		return
	}
	underlying := p.resolver.FindByISIN(underlyingISIN[1])
	if underlying == nil {
		logger.L.Info("Underlying ISIN from rights description is unknown",
			"isin", underlyingISIN[1])
		return
	}

	cash := p.findRightsExpiryCashEvent(ed, events)
	if cash == nil {
		logger.L.Info("No cash event match for dividend-rights expiry",
			"transactionID", ed.TransactionID)
		return
	}
	logger.L.Debug("Re-pointing rights-expiry cash event to underlying stock",
		"cashTransactionID", cash.TransactionID,
		"from", cash.AssetID, "to", underlying.ID)
	cash.AssetID = underlying.ID
}

// findRightsIssuingStockDividend locates the stock-dividend event on the
// same rights instrument whose description denotes a rights issuance.
func (p *DividendRightsProcessor) findRightsIssuingStockDividend(ed *models.FinancialEvent, events []*models.FinancialEvent) *models.FinancialEvent {
	for _, ev := range events {
		if ev.Kind != models.KindStockDividend || ev.AssetID != ed.AssetID {
			continue
		}
		if denotesRightsIssuance(ev.Description) {
			return ev
		}
	}
	return nil
}

// findRightsExpiryCashEvent locates the dividend or capital-repayment cash
// event on the rights instrument whose description denotes rights expiry.
func (p *DividendRightsProcessor) findRightsExpiryCashEvent(ed *models.FinancialEvent, events []*models.FinancialEvent) *models.FinancialEvent {
	for _, ev := range events {
		if ev.AssetID != ed.AssetID {
			continue
		}
		if ev.Kind != models.KindDividend && ev.Kind != models.KindCapitalRepay {
			continue
		}
		if denotesRightsExpiry(ev.Description) {
			return ev
		}
	}
	return nil
}

func denotesRightsIssuance(description string) bool {
	d := strings.ToUpper(description)
	return strings.Contains(d, "RIGHTS") &&
		(strings.Contains(d, "ISSUE") || strings.Contains(d, "DIVIDEND RIGHT"))
}

func denotesRightsExpiry(description string) bool {
	d := strings.ToUpper(description)
	return strings.Contains(d, "RIGHT") &&
		(strings.Contains(d, "EXPIRE") || strings.Contains(d, "EXPIRY") || strings.Contains(d, "EXPIRED"))
}
