package linkers

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// defaultOptionMultiplier applies when the option asset has no multiplier on
// record (standard equity options deliver 100 shares per contract).
var defaultOptionMultiplier = decimal.NewFromInt(100)

// OptionTradeLinker associates stock trades that resulted from option
// exercise or assignment with the option-lifecycle event that caused them,
// so realization can derive the stock's basis or proceeds from the option
// terms instead of treating it as an independent market trade.
type OptionTradeLinker struct {
	resolver *assets.Resolver
}

func NewOptionTradeLinker(resolver *assets.Resolver) *OptionTradeLinker {
	return &OptionTradeLinker{resolver: resolver}
}

// optionKey is (event date, underlying identifier, absolute expected share
// quantity as an exact decimal string).
type optionKey struct {
	date       string
	underlying string
	quantity   string
}

// LinkResult carries the diagnostics of one linking pass.
type LinkResult struct {
	Linked        int
	Unmatched     []*models.FinancialEvent
	DuplicateKeys int
}

// Link builds the lookup from exercise/assignment events and resolves every
// exercise-flagged stock trade against it. Unmatched candidates are logged
// with full context, never fatal. Duplicate lookup keys keep the last event
// written, with a warning; the dropped candidate count is surfaced in the
// result.
func (l *OptionTradeLinker) Link(optionEvents, candidateTrades []*models.FinancialEvent) LinkResult {
	var res LinkResult
	lookup := make(map[optionKey]*models.FinancialEvent)

	for _, ev := range optionEvents {
		if ev.Kind != models.KindOptionExercise && ev.Kind != models.KindOptionAssignment {
			continue
		}
		key, ok := l.keyForOptionEvent(ev)
		if !ok {
			continue
		}
		if prev, exists := lookup[key]; exists {
			// Last write wins. This silently drops the earlier candidate, so
			// it is both warned about and counted.
			logger.L.Warn("Duplicate option-linker lookup key, keeping later event",
				"date", key.date, "underlying", key.underlying, "quantity", key.quantity,
				"droppedEventID", prev.ID, "keptEventID", ev.ID)
			res.DuplicateKeys++
		}
		lookup[key] = ev
	}

	for _, trade := range candidateTrades {
		key, ok := l.keyForTrade(trade)
		if !ok {
			res.Unmatched = append(res.Unmatched, trade)
			continue
		}
		match, found := lookup[key]
		if !found {
			logger.L.Warn("No option event matches exercise-flagged stock trade",
				"transactionID", trade.TransactionID,
				"date", key.date, "underlying", key.underlying, "quantity", key.quantity,
				"sameDateKeys", l.sameDateKeys(lookup, key.date))
			res.Unmatched = append(res.Unmatched, trade)
			continue
		}
		trade.Trade.LinkedOptionEventID = match.ID
		res.Linked++
	}

	logger.L.Info("Option-trade linking finished",
		"linked", res.Linked, "unmatched", len(res.Unmatched), "duplicateKeys", res.DuplicateKeys)
	return res
}

// keyForOptionEvent derives the expected stock-trade key from an option
// lifecycle event: contracts times multiplier shares of the underlying on
// the same date.
func (l *OptionTradeLinker) keyForOptionEvent(ev *models.FinancialEvent) (optionKey, bool) {
	asset := l.resolver.GetAssetByID(ev.AssetID)
	if asset == nil || ev.OptionLifecycle == nil {
		return optionKey{}, false
	}
	multiplier := asset.Multiplier
	if multiplier.IsZero() {
		multiplier = defaultOptionMultiplier
	}
	expected := ev.OptionLifecycle.Contracts.Mul(multiplier).Abs()
	return optionKey{
		date:       ev.Date,
		underlying: l.resolver.UnderlyingIdentifier(asset),
		quantity:   expected.String(),
	}, true
}

// keyForTrade derives the candidate key from the stock trade itself.
func (l *OptionTradeLinker) keyForTrade(ev *models.FinancialEvent) (optionKey, bool) {
	asset := l.resolver.GetAssetByID(ev.AssetID)
	if asset == nil || ev.Trade == nil {
		return optionKey{}, false
	}
	return optionKey{
		date:       ev.Date,
		underlying: l.resolver.UnderlyingIdentifier(asset),
		quantity:   ev.Trade.Quantity.Abs().String(),
	}, true
}

// sameDateKeys renders every lookup key sharing a date, for the unmatched
// diagnostics.
func (l *OptionTradeLinker) sameDateKeys(lookup map[optionKey]*models.FinancialEvent, date string) []string {
	var keys []string
	for k := range lookup {
		if k.date == date {
			keys = append(keys, fmt.Sprintf("%s/%s", k.underlying, k.quantity))
		}
	}
	return keys
}
