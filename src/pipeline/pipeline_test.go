package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/classification"
	"github.com/username/steuerfolio/src/database"
	"github.com/username/steuerfolio/src/enrichment"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/money"
	"github.com/username/steuerfolio/src/rates"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type eurOnlyFetcher struct{}

func (eurOnlyFetcher) FetchRate(_ context.Context, _ time.Time, _ string) (decimal.Decimal, error) {
	return decimal.Zero, rates.ErrNoRate
}

func newTestPipeline(t *testing.T) (*Pipeline, *assets.Resolver) {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := assets.NewResolver()
	mctx := money.NewContext(10)
	classCache := classification.NewCacheStore(db)
	classifier := classification.NewClassifier(classCache, nil)
	provider := rates.NewProvider("EUR", rates.NewStore(db), eurOnlyFetcher{}, 7)
	enricher := enrichment.NewEnricher("EUR", provider, mctx)

	return New(resolver, classifier, classCache, enricher, mctx, 2023), resolver
}

func TestSOYQuantityWithoutCostBasisCoercedToZero(t *testing.T) {
	p, resolver := newTestPipeline(t)

	p.processSOYPositions([]models.RawPosition{{
		AssetCategory: "STK",
		Symbol:        "AAPL",
		ISIN:          "US0378331005",
		Quantity:      "10",
		CostBasis:     "",
	}})

	a := resolver.FindByISIN("US0378331005")
	require.NotNil(t, a)
	assert.True(t, a.HasSOYQuantity)
	assert.Equal(t, "10", a.SOYQuantity.String())
	assert.True(t, a.HasSOYCostBasis)
	assert.True(t, a.SOYCostBasis.IsZero())
}

func TestAssetsUnseenInSOYBackfilledToZero(t *testing.T) {
	p, resolver := newTestPipeline(t)

	stock := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")
	cash := resolver.GetOrCreateAsset("", "", "EUR", "CASH", "", "", "EUR")

	p.backfillMissingSOY()

	assert.True(t, stock.HasSOYQuantity)
	assert.True(t, stock.SOYQuantity.IsZero())
	assert.False(t, cash.HasSOYQuantity, "cash balances are not lot-tracked")
}

func TestEOYPositionsPopulateMarketSnapshot(t *testing.T) {
	p, resolver := newTestPipeline(t)

	p.processEOYPositions([]models.RawPosition{{
		AssetCategory: "STK",
		Symbol:        "AAPL",
		ISIN:          "US0378331005",
		Quantity:      "6",
		MarkPrice:     "185.30",
		PositionValue: "1111.80",
	}})

	a := resolver.FindByISIN("US0378331005")
	require.NotNil(t, a)
	assert.True(t, a.HasEOYQuantity)
	assert.Equal(t, "6", a.EOYQuantity.String())
	assert.Equal(t, "185.3", a.EOYPrice.String())
	assert.Equal(t, "1111.8", a.EOYValue.String())
}

func TestRunEndToEndRealizesGain(t *testing.T) {
	p, resolver := newTestPipeline(t)

	set := &models.RawRecordSet{
		Trades: []models.RawTrade{
			{
				AssetCategory: "STK",
				Symbol:        "AAPL",
				ISIN:          "US0378331005",
				Conid:         "1234",
				Description:   "APPLE INC",
				Currency:      "EUR",
				TradeDate:     "2023-02-01",
				Quantity:      "10",
				Price:         "100",
				BuySell:       "BUY",
				OpenClose:     "O",
				TransactionID: "1",
			},
			{
				AssetCategory: "STK",
				Symbol:        "AAPL",
				ISIN:          "US0378331005",
				Conid:         "1234",
				Description:   "APPLE INC",
				Currency:      "EUR",
				TradeDate:     "2023-05-01",
				Quantity:      "-4",
				Price:         "150",
				BuySell:       "SELL",
				OpenClose:     "C",
				TransactionID: "2",
			},
		},
		EOYPositions: []models.RawPosition{{
			AssetCategory: "STK",
			Symbol:        "AAPL",
			ISIN:          "US0378331005",
			Conid:         "1234",
			Quantity:      "6",
		}},
	}

	res, err := p.Run(set)
	require.NoError(t, err)

	require.Len(t, res.RealizedGains, 1)
	g := res.RealizedGains[0]
	assert.Equal(t, "4", g.Quantity.String())
	assert.Equal(t, "400", g.CostBasisEUR.String())
	assert.Equal(t, "600", g.ProceedsEUR.String())
	assert.Equal(t, "200", g.GainEUR.String())
	assert.Equal(t, 0, res.EOYMismatches)

	a := resolver.FindByISIN("US0378331005")
	require.NotNil(t, a)
	require.Len(t, res.EndOfYearLots[a.ID], 1)
	assert.Equal(t, "6", res.EndOfYearLots[a.ID][0].Quantity.String())
}
