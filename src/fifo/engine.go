package fifo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
	"github.com/username/steuerfolio/src/utils"
)

// Engine consumes the sorted, enriched event stream and each asset's SOY and
// EOY snapshots, maintaining one FIFO lot inventory per asset and emitting
// one realized-gain-loss record per lot consumed. At year end the computed
// running quantity of every non-cash asset is reconciled against the
// reported EOY quantity; mismatches are counted and surfaced, not fatal, so
// one bad asset never hides the rest of the report.
type Engine struct {
	resolver *assets.Resolver
	mctx     money.Context
	taxYear  int

	inventories map[int64]*inventory
	// handledLifecycle marks exercise/assignment events claimed by a linked
	// stock trade; the trade consumes the option lots, not the event itself.
	handledLifecycle map[string]bool

	result *models.Result
}

func NewEngine(resolver *assets.Resolver, mctx money.Context, taxYear int) *Engine {
	return &Engine{
		resolver:         resolver,
		mctx:             mctx,
		taxYear:          taxYear,
		inventories:      make(map[int64]*inventory),
		handledLifecycle: make(map[string]bool),
		result: &models.Result{
			Income:        make(models.IncomeByYearCountry),
			EndOfYearLots: make(map[int64][]models.Lot),
		},
	}
}

// Run executes the realization pass. The event slice must already be sorted
// and validated; the arena resolves linker back-references.
func (e *Engine) Run(events []*models.FinancialEvent, arena *models.EventArena) *models.Result {
	e.seedOpeningLots()

	// Claim lifecycle events up front: the linked stock trade may sort after
	// its exercise/assignment event, which must then not realize the option
	// premium on its own.
	for _, ev := range events {
		if ev.Trade != nil && ev.Trade.LinkedOptionEventID != "" {
			e.handledLifecycle[ev.Trade.LinkedOptionEventID] = true
		}
	}

	for _, ev := range events {
		switch {
		case ev.Kind.IsTrade():
			e.processTrade(ev, arena)
		case ev.Kind.IsOptionLifecycle():
			e.processOptionLifecycle(ev)
		case ev.Kind.IsIncome() || ev.Kind == models.KindCapitalRepay:
			e.aggregateIncome(ev)
		case ev.Kind == models.KindWithholdingTax:
			e.aggregateWithholding(ev, arena)
		case ev.Kind.IsCorporateAction():
			e.processCorporateAction(ev)
		}
		// Currency conversions and fees carry no lot consequence here.
	}

	e.reconcileEndOfYear()
	logger.L.Info("FIFO realization finished",
		"realizedRecords", len(e.result.RealizedGains),
		"eoyMismatches", e.result.EOYMismatches)
	return e.result
}

// seedOpeningLots turns every non-cash asset's SOY snapshot into one opening
// lot dated January 1 of the tax year.
func (e *Engine) seedOpeningLots() {
	openingDate := fmt.Sprintf("%04d-01-01", e.taxYear)
	for _, a := range e.resolver.All() {
		if a.IsCash() || !a.HasSOYQuantity || a.SOYQuantity.IsZero() {
			continue
		}
		unitCost := decimal.Zero
		if a.HasSOYCostBasis && !a.SOYQuantity.IsZero() {
			unitCost = e.mctx.Div(a.SOYCostBasis, a.SOYQuantity.Abs())
		}
		e.inventoryFor(a.ID).open(openingDate, a.SOYQuantity, unitCost)
		logger.L.Debug("Seeded opening lot from SOY snapshot",
			"asset", a.DisplayName(), "quantity", a.SOYQuantity, "unitCost", unitCost)
	}
}

func (e *Engine) inventoryFor(assetID int64) *inventory {
	inv, ok := e.inventories[assetID]
	if !ok {
		inv = &inventory{}
		e.inventories[assetID] = inv
	}
	return inv
}

// processTrade applies one trade to the asset's inventory. Buy-direction
// quantity covers short lots first, then opens long; sell-direction consumes
// long lots first, then opens short. One realized record is emitted per lot
// consumed.
func (e *Engine) processTrade(ev *models.FinancialEvent, arena *models.EventArena) {
	asset := e.resolver.GetAssetByID(ev.AssetID)
	if asset == nil || asset.IsCash() {
		return
	}
	t := ev.Trade
	if t.Quantity.IsZero() {
		return
	}

	netEUR, ok := e.tradeNetEUR(ev)
	if !ok {
		logger.L.Warn("Trade skipped by realization, no converted net amount",
			"transactionID", ev.TransactionID, "asset", asset.DisplayName())
		return
	}

	realization := models.RealizationSale
	if t.LinkedOptionEventID != "" {
		// The stock leg of an exercise/assignment: fold the consumed option
		// premium into the trade's money side.
		premium := e.linkedOptionPremium(t.LinkedOptionEventID, arena)
		if t.Quantity.IsPositive() {
			netEUR = netEUR.Sub(premium) // received premium reduces cost
		} else {
			netEUR = netEUR.Add(premium) // received premium adds to proceeds
		}
		realization = models.RealizationAssignment
	}

	qtyAbs := t.Quantity.Abs()
	unitEUR := e.mctx.Div(netEUR, qtyAbs)
	inv := e.inventoryFor(asset.ID)

	if t.Quantity.IsPositive() {
		e.applyBuy(ev, asset, inv, qtyAbs, unitEUR, realization)
	} else {
		e.applySell(ev, asset, inv, qtyAbs, unitEUR, realization)
	}
}

func (e *Engine) applyBuy(ev *models.FinancialEvent, asset *models.Asset, inv *inventory,
	qty, unitCost decimal.Decimal, realization models.RealizationType) {

	remaining := qty
	if inv.isShort() {
		// A plain buy covering a short is a short cover; a buy that is the
		// stock leg of an assignment keeps its assignment tag.
		if realization == models.RealizationSale {
			realization = models.RealizationShortCover
		}
		matches, covered := inv.consume(qty)
		for _, m := range matches {
			// Covering a short: gain is open proceeds minus cover cost.
			proceeds := m.costEUR
			cost := m.quantity.Mul(unitCost)
			e.emit(asset, m, ev.Date, cost, proceeds, realization)
		}
		remaining = remaining.Sub(covered)
	}
	inv.open(ev.Date, remaining, unitCost)
}

func (e *Engine) applySell(ev *models.FinancialEvent, asset *models.Asset, inv *inventory,
	qty, unitProceeds decimal.Decimal, realization models.RealizationType) {

	remaining := qty
	if inv.isLong() {
		matches, sold := inv.consume(qty)
		for _, m := range matches {
			proceeds := m.quantity.Mul(unitProceeds)
			e.emit(asset, m, ev.Date, m.costEUR, proceeds, realization)
		}
		remaining = remaining.Sub(sold)
	}
	// Leftover sell quantity opens a short position.
	inv.open(ev.Date, remaining.Neg(), unitProceeds)
}

// processOptionLifecycle closes option positions on expiry and on
// exercise/assignment events whose stock leg never linked.
func (e *Engine) processOptionLifecycle(ev *models.FinancialEvent) {
	if e.handledLifecycle[ev.ID] {
		return
	}
	asset := e.resolver.GetAssetByID(ev.AssetID)
	if asset == nil || ev.OptionLifecycle == nil {
		return
	}

	realization := models.RealizationOptionExpiry
	if ev.Kind != models.KindOptionExpiry {
		realization = models.RealizationAssignment
		logger.L.Warn("Option lifecycle event without linked stock trade, realizing premium directly",
			"transactionID", ev.TransactionID, "asset", asset.DisplayName(), "kind", ev.Kind)
	}

	inv := e.inventoryFor(asset.ID)
	wasShort := inv.isShort()
	matches, consumed := inv.consume(ev.OptionLifecycle.Contracts)
	if consumed.IsZero() {
		logger.L.Warn("Option lifecycle event found no open lots to close",
			"transactionID", ev.TransactionID, "asset", asset.DisplayName())
		return
	}

	for _, m := range matches {
		if wasShort {
			// A written option dying worthless: the collected premium is
			// realized in full, Stillhalter income.
			e.emit(asset, m, ev.Date, decimal.Zero, m.costEUR, realization)
			if realization == models.RealizationOptionExpiry {
				e.result.StillhalterIncomeEUR = e.result.StillhalterIncomeEUR.Add(m.costEUR)
			}
		} else {
			// A held option dying worthless: the premium paid is lost.
			e.emit(asset, m, ev.Date, m.costEUR, decimal.Zero, realization)
		}
	}
}

// linkedOptionPremium consumes the option lots behind a linked lifecycle
// event and returns the net premium: positive when the position was short
// (premium received), negative when long (premium paid).
func (e *Engine) linkedOptionPremium(lifecycleEventID string, arena *models.EventArena) decimal.Decimal {
	lifecycle := arena.Get(lifecycleEventID)
	if lifecycle == nil || lifecycle.OptionLifecycle == nil {
		return decimal.Zero
	}
	inv := e.inventoryFor(lifecycle.AssetID)
	wasShort := inv.isShort()
	matches, _ := inv.consume(lifecycle.OptionLifecycle.Contracts)

	premium := decimal.Zero
	for _, m := range matches {
		premium = premium.Add(m.costEUR)
	}
	if !wasShort {
		premium = premium.Neg()
	}
	return premium
}

// processCorporateAction adjusts inventories for non-cash share changes.
func (e *Engine) processCorporateAction(ev *models.FinancialEvent) {
	asset := e.resolver.GetAssetByID(ev.AssetID)
	if asset == nil || ev.CorporateAction == nil {
		return
	}
	ca := ev.CorporateAction
	inv := e.inventoryFor(asset.ID)

	switch ev.Kind {
	case models.KindSplit:
		inv.rescale(ca.Ratio, e.mctx.Precision)
	case models.KindStockDividend, models.KindRightsIssue:
		// Shares received without payment enter at zero cost; an expired
		// rights issue has had its delta zeroed by the post-processor.
		if !ca.QuantityDelta.IsZero() {
			inv.open(ev.Date, ca.QuantityDelta, decimal.Zero)
		}
	case models.KindMerger:
		if !ca.QuantityDelta.IsZero() {
			inv.open(ev.Date, ca.QuantityDelta, decimal.Zero)
			logger.L.Warn("Merger share delta applied at zero cost basis",
				"asset", asset.DisplayName(), "delta", ca.QuantityDelta,
				"transactionID", ev.TransactionID)
		}
	case models.KindRightsExpiry:
		// Position effect handled via the matched stock dividend.
	}
}

// tradeNetEUR picks the converted money side of a trade: the enriched net
// when available, the gross conversion otherwise.
func (e *Engine) tradeNetEUR(ev *models.FinancialEvent) (decimal.Decimal, bool) {
	if ev.Trade.NetAmountEUR.Valid {
		return ev.Trade.NetAmountEUR.Decimal, true
	}
	if ev.AmountEUR.Valid {
		return ev.AmountEUR.Decimal.Abs(), true
	}
	return decimal.Zero, false
}

func (e *Engine) emit(asset *models.Asset, m lotMatch, realizationDate string,
	costEUR, proceedsEUR decimal.Decimal, realization models.RealizationType) {

	holdingDays := 0
	acq := utils.ParseDateOrZero(m.acquisitionDate)
	realized := utils.ParseDateOrZero(realizationDate)
	if !acq.IsZero() && !realized.IsZero() {
		holdingDays = int(realized.Sub(acq).Hours() / 24)
	}

	unitCost := decimal.Zero
	unitProceeds := decimal.Zero
	if !m.quantity.IsZero() {
		unitCost = e.mctx.Div(costEUR, m.quantity)
		unitProceeds = e.mctx.Div(proceedsEUR, m.quantity)
	}

	e.result.RealizedGains = append(e.result.RealizedGains, models.RealizedGainLoss{
		AssetID:         asset.ID,
		AssetName:       asset.DisplayName(),
		AcquisitionDate: m.acquisitionDate,
		RealizationDate: realizationDate,
		HoldingDays:     holdingDays,
		Quantity:        m.quantity,
		CostBasisEUR:    e.mctx.Round(costEUR),
		ProceedsEUR:     e.mctx.Round(proceedsEUR),
		UnitCostEUR:     unitCost,
		UnitProceedsEUR: unitProceeds,
		GainEUR:         e.mctx.Round(proceedsEUR.Sub(costEUR)),
		TaxCategory:     taxCategoryFor(asset),
		Realization:     realization,
	})
}

// reconcileEndOfYear compares every non-cash asset's computed running
// quantity against the broker-reported EOY quantity; unreported assets are
// expected flat.
func (e *Engine) reconcileEndOfYear() {
	for _, a := range e.resolver.All() {
		if a.IsCash() {
			continue
		}
		inv := e.inventoryFor(a.ID)
		computed := inv.position()
		reported := decimal.Zero
		if a.HasEOYQuantity {
			reported = a.EOYQuantity
		}
		if !computed.Equal(reported) {
			e.result.EOYMismatches++
			logger.L.Error("End-of-year quantity mismatch",
				"asset", a.DisplayName(), "computed", computed, "reported", reported)
		}
		if len(inv.lots) > 0 {
			e.result.EndOfYearLots[a.ID] = append([]models.Lot(nil), inv.lots...)
		}
	}
}

func taxCategoryFor(a *models.Asset) models.TaxCategory {
	switch a.Category {
	case models.CategoryFund:
		return models.TaxCategoryFund
	case models.CategoryBond:
		return models.TaxCategoryBond
	case models.CategoryOption, models.CategoryCFD:
		return models.TaxCategoryDerivative
	case models.CategoryPrivateSale:
		return models.TaxCategoryPrivateSale
	}
	return models.TaxCategoryStock
}
