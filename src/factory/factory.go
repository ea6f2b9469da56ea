package factory

import (
	"strings"

	"github.com/google/uuid"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/utils"
)

// EventFactory converts raw broker records into the internal event taxonomy.
// Besides the full event list it returns the two candidate sub-lists the
// linking passes need: option-lifecycle events, and stock trades carrying
// the broker's exercise/assignment notation.
type EventFactory struct {
	resolver *assets.Resolver
}

func NewEventFactory(resolver *assets.Resolver) *EventFactory {
	return &EventFactory{resolver: resolver}
}

// BuildEvents runs the conversion over every raw record list.
func (f *EventFactory) BuildEvents(set *models.RawRecordSet) (events, optionLifecycle, exerciseTrades []*models.FinancialEvent) {
	for i := range set.Trades {
		ev := f.tradeEvent(&set.Trades[i])
		if ev == nil {
			continue
		}
		events = append(events, ev)
		if ev.Kind.IsOptionLifecycle() {
			optionLifecycle = append(optionLifecycle, ev)
		}
		if ev.Trade != nil && ev.Trade.ExerciseFlagged {
			exerciseTrades = append(exerciseTrades, ev)
		}
	}
	for i := range set.CashTransactions {
		if ev := f.cashEvent(&set.CashTransactions[i]); ev != nil {
			events = append(events, ev)
		}
	}
	for i := range set.CorporateActions {
		if ev := f.corporateActionEvent(&set.CorporateActions[i]); ev != nil {
			events = append(events, ev)
		}
	}
	logger.L.Info("Event factory finished",
		"events", len(events),
		"optionLifecycleCandidates", len(optionLifecycle),
		"exerciseFlaggedTrades", len(exerciseTrades))
	return events, optionLifecycle, exerciseTrades
}

// tradeEvent maps one raw trade row. Option trades carrying lifecycle
// notation become option-lifecycle events instead of plain trades; cash
// category trades are FX conversions.
func (f *EventFactory) tradeEvent(t *models.RawTrade) *models.FinancialEvent {
	asset := f.resolver.GetOrCreateAsset(t.ISIN, t.Conid, t.Symbol,
		t.AssetCategory, t.SubCategory, t.Description, t.Currency)

	if strings.EqualFold(t.AssetCategory, "CASH") {
		return f.currencyConversionEvent(t, asset)
	}

	if strings.EqualFold(t.AssetCategory, "OPT") {
		f.resolver.MergeDerivativeColumns(asset.ID, t.Multiplier, t.Strike, t.Expiry, t.PutCall)
		if kind, ok := optionLifecycleKind(t.Notes); ok {
			return &models.FinancialEvent{
				ID:            uuid.NewString(),
				AssetID:       asset.ID,
				Kind:          kind,
				Date:          t.TradeDate,
				Amount:        parseDecimal(t.Proceeds, "trade proceeds", t.TransactionID),
				Currency:      t.Currency,
				TransactionID: t.TransactionID,
				Description:   t.Description,
				OptionLifecycle: &models.OptionLifecycleDetails{
					Contracts: parseDecimal(t.Quantity, "contracts", t.TransactionID).Abs(),
				},
			}
		}
	}

	quantity := parseDecimal(t.Quantity, "trade quantity", t.TransactionID)
	kind := tradeKind(t.BuySell, t.OpenClose, quantity)
	if kind == "" {
		logger.L.Warn("Skipping trade with undeterminable direction",
			"transactionID", t.TransactionID, "buySell", t.BuySell, "quantity", t.Quantity)
		return nil
	}

	return &models.FinancialEvent{
		ID:            uuid.NewString(),
		AssetID:       asset.ID,
		Kind:          kind,
		Date:          t.TradeDate,
		Amount:        parseDecimal(t.Proceeds, "trade proceeds", t.TransactionID),
		Currency:      t.Currency,
		TransactionID: t.TransactionID,
		Description:   t.Description,
		Trade: &models.TradeDetails{
			Quantity:           quantity,
			Price:              parseDecimal(t.Price, "trade price", t.TransactionID),
			Commission:         parseDecimal(t.Commission, "commission", t.TransactionID).Abs(),
			CommissionCurrency: firstNonEmpty(t.CommissionCcy, t.Currency),
			ExerciseFlagged:    hasExerciseNotation(t.Notes),
		},
	}
}

// currencyConversionEvent maps an FX-pair trade row ("EUR.USD") into a
// conversion event with both legs.
func (f *EventFactory) currencyConversionEvent(t *models.RawTrade, asset *models.Asset) *models.FinancialEvent {
	base, quote, ok := splitFXPair(t.Symbol)
	if !ok {
		logger.L.Warn("Skipping cash-category trade with unrecognized symbol",
			"transactionID", t.TransactionID, "symbol", t.Symbol)
		return nil
	}

	quantity := parseDecimal(t.Quantity, "fx quantity", t.TransactionID)
	proceeds := parseDecimal(t.Proceeds, "fx proceeds", t.TransactionID)
	return &models.FinancialEvent{
		ID:            uuid.NewString(),
		AssetID:       asset.ID,
		Kind:          models.KindCurrencyConversion,
		Date:          t.TradeDate,
		Amount:        proceeds.Abs(),
		Currency:      quote,
		TransactionID: t.TransactionID,
		Description:   t.Description,
		CurrencyConversion: &models.CurrencyConversionDetails{
			FromAmount:   quantity.Abs(),
			FromCurrency: base,
			ToAmount:     proceeds.Abs(),
			ToCurrency:   quote,
			ReportedRate: parseDecimal(t.Price, "fx rate", t.TransactionID),
		},
	}
}

// cashEvent maps one raw cash-transaction row to an income, tax, or fee
// event. Pure cash-balance movements (deposits/withdrawals) carry no tax
// consequence and are dropped here.
func (f *EventFactory) cashEvent(c *models.RawCashTransaction) *models.FinancialEvent {
	kind, ok := cashKind(c.Type, c.Description)
	if !ok {
		logger.L.Debug("Ignoring cash transaction with no tax relevance",
			"type", c.Type, "transactionID", c.TransactionID)
		return nil
	}

	asset := f.DiscoverCashTransactionAsset(c)
	ev := &models.FinancialEvent{
		ID:            uuid.NewString(),
		AssetID:       asset.ID,
		Kind:          kind,
		Date:          c.Date,
		Amount:        parseDecimal(c.Amount, "cash amount", c.TransactionID),
		Currency:      c.Currency,
		TransactionID: c.TransactionID,
		Description:   c.Description,
	}
	if kind == models.KindWithholdingTax {
		ev.WithholdingTax = &models.WithholdingTaxDetails{
			CountryCode: utils.CountryCodeFromISIN(c.ISIN),
		}
	}
	return ev
}

// DiscoverCashTransactionAsset applies the cash-discovery disambiguation: a
// row with an ISIN or contract id, or whose symbol differs from its
// currency, belongs to a real instrument; everything else is a movement on
// the per-currency cash balance.
func (f *EventFactory) DiscoverCashTransactionAsset(c *models.RawCashTransaction) *models.Asset {
	instrumentSpecific := c.ISIN != "" || c.Conid != "" ||
		(c.Symbol != "" && !strings.EqualFold(c.Symbol, c.Currency))
	if instrumentSpecific {
		return f.resolver.GetOrCreateAsset(c.ISIN, c.Conid, c.Symbol,
			c.AssetCategory, "", c.Description, c.Currency)
	}
	// One synthetic cash-balance asset per currency, not per row.
	return f.resolver.GetOrCreateAsset("", "", strings.ToUpper(c.Currency),
		"CASH", "", "Cash balance "+strings.ToUpper(c.Currency), strings.ToUpper(c.Currency))
}

// corporateActionEvent maps one raw corporate-action row.
func (f *EventFactory) corporateActionEvent(ca *models.RawCorporateAction) *models.FinancialEvent {
	kind, ok := corporateActionKind(ca.Type, ca.Description)
	if !ok {
		logger.L.Warn("Skipping corporate action with unknown type",
			"type", ca.Type, "transactionID", ca.TransactionID)
		return nil
	}

	asset := f.resolver.GetOrCreateAsset(ca.ISIN, ca.Conid, ca.Symbol,
		ca.AssetCategory, "", ca.Description, ca.Currency)

	amount := parseDecimal(ca.Amount, "corporate action amount", ca.TransactionID)
	details := &models.CorporateActionDetails{
		QuantityDelta: parseDecimal(ca.Quantity, "corporate action quantity", ca.TransactionID),
		Ratio:         parseDecimal(ca.Ratio, "corporate action ratio", ca.TransactionID),
	}
	if !details.QuantityDelta.IsZero() && !amount.IsZero() {
		details.CashPerShare = amount.Div(details.QuantityDelta).Abs()
	}

	return &models.FinancialEvent{
		ID:              uuid.NewString(),
		AssetID:         asset.ID,
		Kind:            kind,
		Date:            ca.Date,
		Amount:          amount,
		Currency:        ca.Currency,
		TransactionID:   ca.TransactionID,
		Description:     ca.Description,
		CorporateAction: details,
	}
}
