package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/classification"
	"github.com/username/steuerfolio/src/enrichment"
	"github.com/username/steuerfolio/src/factory"
	"github.com/username/steuerfolio/src/fifo"
	"github.com/username/steuerfolio/src/linkers"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
	"github.com/username/steuerfolio/src/sorting"
)

// Pipeline drives the multi-pass batch run in strict order: positions,
// discovery, derivative linking, classification, event construction, the
// three linking passes, currency enrichment, the global sort, and finally
// the FIFO realization engine. Each run is a full recomputation from the
// full-year record set.
type Pipeline struct {
	resolver       *assets.Resolver
	classifier     *classification.Classifier
	classCache     *classification.CacheStore
	eventFactory   *factory.EventFactory
	optionLinker   *linkers.OptionTradeLinker
	whtLinker      *linkers.WithholdingLinker
	rightsProc     *linkers.DividendRightsProcessor
	enricher       *enrichment.Enricher
	sorter         *sorting.Sorter
	mctx           money.Context
	taxYear        int
}

func New(resolver *assets.Resolver, classifier *classification.Classifier,
	classCache *classification.CacheStore, enricher *enrichment.Enricher,
	mctx money.Context, taxYear int) *Pipeline {

	return &Pipeline{
		resolver:     resolver,
		classifier:   classifier,
		classCache:   classCache,
		eventFactory: factory.NewEventFactory(resolver),
		optionLinker: linkers.NewOptionTradeLinker(resolver),
		whtLinker:    linkers.NewWithholdingLinker(),
		rightsProc:   linkers.NewDividendRightsProcessor(resolver),
		enricher:     enricher,
		sorter:       sorting.NewSorter(resolver),
		mctx:         mctx,
		taxYear:      taxYear,
	}
}

// Run executes the full pipeline over one raw record set. Only a sort-key
// integrity violation is fatal; every other problem is logged, counted and
// surfaced on the result.
func (p *Pipeline) Run(set *models.RawRecordSet) (*models.Result, error) {
	p.processSOYPositions(set.SOYPositions)
	p.processEOYPositions(set.EOYPositions)
	p.discoverAssets(set)
	p.resolver.LinkDerivatives()
	p.finalizeClassifications()
	p.backfillMissingSOY()

	events, optionCandidates, exerciseTrades := p.eventFactory.BuildEvents(set)

	optionRes := p.optionLinker.Link(optionCandidates, exerciseTrades)
	whtRes := p.whtLinker.Link(events)
	p.rightsProc.Process(events)

	p.enricher.EnrichAll(events)

	sorted, err := p.sorter.SortAndValidate(events)
	if err != nil {
		return nil, fmt.Errorf("pipeline aborted: %w", err)
	}

	arena := models.NewEventArena(events)
	engine := fifo.NewEngine(p.resolver, p.mctx, p.taxYear)
	result := engine.Run(sorted, arena)

	result.UnlinkedWithholding = whtRes.Unlinked
	result.UnlinkedOptionTrades = optionRes.Unmatched
	result.DuplicateOptionKeys = optionRes.DuplicateKeys
	return result, nil
}

// processSOYPositions populates each referenced asset's start-of-year
// snapshot. An asset with a non-zero quantity but no cost basis is coerced
// to zero cost basis with a warning, never left partially populated.
func (p *Pipeline) processSOYPositions(positions []models.RawPosition) {
	for i := range positions {
		pos := &positions[i]
		a := p.resolver.GetOrCreateAsset(pos.ISIN, pos.Conid, pos.Symbol,
			pos.AssetCategory, pos.SubCategory, pos.Description, pos.Currency)

		qty, qtyOK := parsePositionDecimal(pos.Quantity)
		if !qtyOK {
			logger.L.Warn("SOY position without parseable quantity, treating as zero",
				"asset", a.DisplayName(), "quantity", pos.Quantity)
			qty = decimal.Zero
		}
		a.SOYQuantity = qty
		a.HasSOYQuantity = true

		cost, costOK := parsePositionDecimal(pos.CostBasis)
		if !qty.IsZero() && !costOK {
			logger.L.Warn("SOY position has quantity but no cost basis, coercing to zero",
				"asset", a.DisplayName(), "quantity", qty)
			cost = decimal.Zero
		}
		a.SOYCostBasis = cost
		a.HasSOYCostBasis = true
	}
	logger.L.Info("SOY positions processed", "rows", len(positions))
}

// processEOYPositions populates the end-of-year market snapshot.
func (p *Pipeline) processEOYPositions(positions []models.RawPosition) {
	for i := range positions {
		pos := &positions[i]
		a := p.resolver.GetOrCreateAsset(pos.ISIN, pos.Conid, pos.Symbol,
			pos.AssetCategory, pos.SubCategory, pos.Description, pos.Currency)

		qty, ok := parsePositionDecimal(pos.Quantity)
		if !ok {
			logger.L.Warn("EOY position without parseable quantity, skipping",
				"asset", a.DisplayName(), "quantity", pos.Quantity)
			continue
		}
		a.EOYQuantity = qty
		a.HasEOYQuantity = true
		if price, ok := parsePositionDecimal(pos.MarkPrice); ok {
			a.EOYPrice = price
		}
		if value, ok := parsePositionDecimal(pos.PositionValue); ok {
			a.EOYValue = value
		}
	}
	logger.L.Info("EOY positions processed", "rows", len(positions))
}

// discoverAssets makes sure every instrument referenced by any raw record
// exists before derivative linking and classification run. Cash rows use
// the disambiguation rule so per-currency balances stay one asset each.
func (p *Pipeline) discoverAssets(set *models.RawRecordSet) {
	for i := range set.Trades {
		t := &set.Trades[i]
		p.resolver.GetOrCreateAsset(t.ISIN, t.Conid, t.Symbol,
			t.AssetCategory, t.SubCategory, t.Description, t.Currency)
	}
	for i := range set.CashTransactions {
		p.eventFactory.DiscoverCashTransactionAsset(&set.CashTransactions[i])
	}
	for i := range set.CorporateActions {
		ca := &set.CorporateActions[i]
		p.resolver.GetOrCreateAsset(ca.ISIN, ca.Conid, ca.Symbol,
			ca.AssetCategory, "", ca.Description, ca.Currency)
	}
	logger.L.Info("Asset discovery finished", "assets", len(p.resolver.All()))
}

// finalizeClassifications resolves every discovered asset's category, using
// the cache, auto-resolution or the interactive oracle, and applies type
// replacements where the final category differs from the preliminary one.
// The cache is flushed once after the pass.
func (p *Pipeline) finalizeClassifications() {
	for _, a := range p.resolver.All() {
		d := p.classifier.EnsureFinalClassification(a)
		if d.Category != a.Category || d.FundType != a.FundType {
			p.resolver.ReplaceAssetType(a.ID, d.Category, d.FundType, d.Notes)
		} else if d.Notes != "" && a.Notes == "" {
			a.Notes = d.Notes
		}
	}
	p.classCache.Flush()
	logger.L.Info("Classifications finalized", "cachedDecisions", p.classCache.Len())
}

// backfillMissingSOY gives every non-cash asset the SOY pass never touched
// an explicit zero-quantity snapshot.
func (p *Pipeline) backfillMissingSOY() {
	backfilled := 0
	for _, a := range p.resolver.All() {
		if a.IsCash() || a.HasSOYQuantity {
			continue
		}
		a.SOYQuantity = decimal.Zero
		a.HasSOYQuantity = true
		backfilled++
	}
	if backfilled > 0 {
		logger.L.Debug("Backfilled zero SOY quantity", "assets", backfilled)
	}
}

func parsePositionDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
