package fifo

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestEngine(t *testing.T) (*Engine, *assets.Resolver) {
	t.Helper()
	resolver := assets.NewResolver()
	return NewEngine(resolver, money.NewContext(10), 2023), resolver
}

func tradeEvent(assetID int64, kind models.EventKind, date string, qty, netEUR float64) *models.FinancialEvent {
	return &models.FinancialEvent{
		ID:      uuid.NewString(),
		AssetID: assetID,
		Kind:    kind,
		Date:    date,
		Trade: &models.TradeDetails{
			Quantity:     decimal.NewFromFloat(qty),
			NetAmountEUR: decimal.NewNullDecimal(decimal.NewFromFloat(netEUR)),
		},
	}
}

func TestPartialSellEmitsOneRecordPerLot(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	a.EOYQuantity = decimal.NewFromInt(6)
	a.HasEOYQuantity = true

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindBuyOpen, "2023-02-01", 10, 1000),
		tradeEvent(a.ID, models.KindSellClose, "2023-05-01", -4, 600),
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, "4", g.Quantity.String())
	assert.Equal(t, "400", g.CostBasisEUR.String())
	assert.Equal(t, "600", g.ProceedsEUR.String())
	assert.Equal(t, "200", g.GainEUR.String())
	assert.Equal(t, models.RealizationSale, g.Realization)
	assert.Equal(t, models.TaxCategoryStock, g.TaxCategory)
	assert.Equal(t, "2023-02-01", g.AcquisitionDate)
	assert.Equal(t, "2023-05-01", g.RealizationDate)
	assert.Equal(t, 89, g.HoldingDays)

	require.Len(t, res.EndOfYearLots[a.ID], 1)
	assert.Equal(t, "6", res.EndOfYearLots[a.ID][0].Quantity.String())
	assert.Equal(t, 0, res.EOYMismatches)
}

func TestOpeningLotsSeededFromSOYSnapshot(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	a.SOYQuantity = decimal.NewFromInt(5)
	a.HasSOYQuantity = true
	a.SOYCostBasis = decimal.NewFromInt(500)
	a.HasSOYCostBasis = true

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindSellClose, "2023-03-01", -5, 700),
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, "2023-01-01", g.AcquisitionDate)
	assert.Equal(t, "500", g.CostBasisEUR.String())
	assert.Equal(t, "200", g.GainEUR.String())
}

func TestSellAcrossTwoLotsEmitsTwoRecords(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindBuyOpen, "2023-02-01", 3, 300),
		tradeEvent(a.ID, models.KindBuyOpen, "2023-03-01", 3, 450),
		tradeEvent(a.ID, models.KindSellClose, "2023-06-01", -6, 900),
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 2)
	assert.Equal(t, "2023-02-01", res.RealizedGains[0].AcquisitionDate)
	assert.Equal(t, "150", res.RealizedGains[0].GainEUR.String()) // 450 - 300
	assert.Equal(t, "2023-03-01", res.RealizedGains[1].AcquisitionDate)
	assert.Equal(t, "0", res.RealizedGains[1].GainEUR.String()) // 450 - 450
}

func TestShortPositionCoveredByBuy(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindSellOpen, "2023-02-01", -3, 450),
		tradeEvent(a.ID, models.KindBuyClose, "2023-04-01", 3, 300),
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, models.RealizationShortCover, g.Realization)
	assert.Equal(t, "450", g.ProceedsEUR.String())
	assert.Equal(t, "300", g.CostBasisEUR.String())
	assert.Equal(t, "150", g.GainEUR.String())
	assert.Empty(t, res.EndOfYearLots[a.ID])
}

func TestShortOptionExpiryIsStillhalterIncome(t *testing.T) {
	e, resolver := newTestEngine(t)
	opt := resolver.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")

	sellOpen := tradeEvent(opt.ID, models.KindSellOpen, "2023-02-01", -2, 300)
	expiry := &models.FinancialEvent{
		ID:              uuid.NewString(),
		AssetID:         opt.ID,
		Kind:            models.KindOptionExpiry,
		Date:            "2023-06-16",
		OptionLifecycle: &models.OptionLifecycleDetails{Contracts: decimal.NewFromInt(2)},
	}
	events := []*models.FinancialEvent{sellOpen, expiry}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, models.RealizationOptionExpiry, g.Realization)
	assert.Equal(t, models.TaxCategoryDerivative, g.TaxCategory)
	assert.Equal(t, "0", g.CostBasisEUR.String())
	assert.Equal(t, "300", g.ProceedsEUR.String())
	assert.Equal(t, "300", res.StillhalterIncomeEUR.String())
}

func TestLongOptionExpiryRealizesLoss(t *testing.T) {
	e, resolver := newTestEngine(t)
	opt := resolver.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")

	events := []*models.FinancialEvent{
		tradeEvent(opt.ID, models.KindBuyOpen, "2023-02-01", 1, 150),
		{
			ID:              uuid.NewString(),
			AssetID:         opt.ID,
			Kind:            models.KindOptionExpiry,
			Date:            "2023-06-16",
			OptionLifecycle: &models.OptionLifecycleDetails{Contracts: decimal.NewFromInt(1)},
		},
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	assert.Equal(t, "-150", res.RealizedGains[0].GainEUR.String())
	assert.True(t, res.StillhalterIncomeEUR.IsZero())
}

func TestAssignmentFoldsPremiumIntoStockProceeds(t *testing.T) {
	e, resolver := newTestEngine(t)
	stock := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	opt := resolver.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")

	// Wrote 1 call for 200 premium; assigned, delivering 100 shares bought
	// earlier for 15000 and sold at the 17000 strike value.
	assignment := &models.FinancialEvent{
		ID:              uuid.NewString(),
		AssetID:         opt.ID,
		Kind:            models.KindOptionAssignment,
		Date:            "2023-06-16",
		OptionLifecycle: &models.OptionLifecycleDetails{Contracts: decimal.NewFromInt(1)},
	}
	stockSell := tradeEvent(stock.ID, models.KindSellClose, "2023-06-16", -100, 17000)
	stockSell.Trade.LinkedOptionEventID = assignment.ID

	events := []*models.FinancialEvent{
		tradeEvent(opt.ID, models.KindSellOpen, "2023-03-01", -1, 200),
		tradeEvent(stock.ID, models.KindBuyOpen, "2023-01-10", 100, 15000),
		assignment,
		stockSell,
	}
	res := e.Run(events, models.NewEventArena(events))

	var stockGain *models.RealizedGainLoss
	for i := range res.RealizedGains {
		if res.RealizedGains[i].AssetID == stock.ID {
			stockGain = &res.RealizedGains[i]
		}
	}
	require.NotNil(t, stockGain)
	assert.Equal(t, models.RealizationAssignment, stockGain.Realization)
	// Proceeds carry the collected premium: 17000 + 200 - 15000.
	assert.Equal(t, "2200", stockGain.GainEUR.String())

	// The assignment event itself must not double-realize the option lots.
	for _, g := range res.RealizedGains {
		if g.AssetID == opt.ID {
			t.Fatalf("option lots realized separately: %+v", g)
		}
	}
}

func TestAssignedBuyCoveringShortKeepsAssignmentTag(t *testing.T) {
	e, resolver := newTestEngine(t)
	stock := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	opt := resolver.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 P", "OPT", "", "AAPL PUT", "USD")

	// Short 100 shares; a written put is assigned and the delivered shares
	// cover the short. The cover must keep the assignment tag, with the
	// collected premium reducing the purchase cost: 17000 - (16000 - 300).
	assignment := &models.FinancialEvent{
		ID:              uuid.NewString(),
		AssetID:         opt.ID,
		Kind:            models.KindOptionAssignment,
		Date:            "2023-06-16",
		OptionLifecycle: &models.OptionLifecycleDetails{Contracts: decimal.NewFromInt(1)},
	}
	stockBuy := tradeEvent(stock.ID, models.KindBuyClose, "2023-06-16", 100, 16000)
	stockBuy.Trade.LinkedOptionEventID = assignment.ID

	events := []*models.FinancialEvent{
		tradeEvent(opt.ID, models.KindSellOpen, "2023-03-01", -1, 300),
		tradeEvent(stock.ID, models.KindSellOpen, "2023-01-10", -100, 17000),
		assignment,
		stockBuy,
	}
	res := e.Run(events, models.NewEventArena(events))

	var stockGain *models.RealizedGainLoss
	for i := range res.RealizedGains {
		if res.RealizedGains[i].AssetID == stock.ID {
			stockGain = &res.RealizedGains[i]
		}
	}
	require.NotNil(t, stockGain)
	assert.Equal(t, models.RealizationAssignment, stockGain.Realization)
	assert.Equal(t, "1300", stockGain.GainEUR.String())
}

func TestSplitRescalesOpenLots(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindBuyOpen, "2023-02-01", 10, 1000),
		{
			ID:              uuid.NewString(),
			AssetID:         a.ID,
			Kind:            models.KindSplit,
			Date:            "2023-04-01",
			CorporateAction: &models.CorporateActionDetails{Ratio: decimal.NewFromInt(2)},
		},
		tradeEvent(a.ID, models.KindSellClose, "2023-06-01", -20, 1500),
	}
	res := e.Run(events, models.NewEventArena(events))

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, "20", g.Quantity.String())
	assert.Equal(t, "1000", g.CostBasisEUR.String())
	assert.Equal(t, "500", g.GainEUR.String())
}

func TestEOYMismatchCountedNotFatal(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")
	a.EOYQuantity = decimal.NewFromInt(99)
	a.HasEOYQuantity = true

	events := []*models.FinancialEvent{
		tradeEvent(a.ID, models.KindBuyOpen, "2023-02-01", 10, 1000),
	}
	res := e.Run(events, models.NewEventArena(events))

	assert.Equal(t, 1, res.EOYMismatches)
}

func TestIncomeAggregatedByYearAndCountry(t *testing.T) {
	e, resolver := newTestEngine(t)
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")
	a.EOYQuantity = decimal.Zero
	a.HasEOYQuantity = true

	dividend := &models.FinancialEvent{
		ID:        uuid.NewString(),
		AssetID:   a.ID,
		Kind:      models.KindDividend,
		Date:      "2023-03-15",
		Amount:    decimal.NewFromFloat(206),
		Currency:  "USD",
		AmountEUR: decimal.NewNullDecimal(decimal.NewFromFloat(190)),
	}
	wht := &models.FinancialEvent{
		ID:        uuid.NewString(),
		AssetID:   a.ID,
		Kind:      models.KindWithholdingTax,
		Date:      "2023-03-15",
		Amount:    decimal.NewFromFloat(-30.9),
		Currency:  "USD",
		AmountEUR: decimal.NewNullDecimal(decimal.NewFromFloat(-28.5)),
		WithholdingTax: &models.WithholdingTaxDetails{
			LinkedIncomeEventID: dividend.ID,
		},
	}
	events := []*models.FinancialEvent{dividend, wht}
	res := e.Run(events, models.NewEventArena(events))

	country := "US - United States"
	require.Contains(t, res.Income, 2023)
	require.Contains(t, res.Income[2023], country)
	assert.Equal(t, "190", res.Income[2023][country].GrossEUR.String())
	assert.Equal(t, "-28.5", res.Income[2023][country].TaxedEUR.String())
}
