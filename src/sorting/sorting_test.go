package sorting

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
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func event(assetID int64, kind models.EventKind, date, txid string, amount float64) *models.FinancialEvent {
	return &models.FinancialEvent{
		ID:            uuid.NewString(),
		AssetID:       assetID,
		Kind:          kind,
		Date:          date,
		Amount:        decimal.NewFromFloat(amount),
		TransactionID: txid,
	}
}

func TestSameDayKindPriorityOrder(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")

	sell := event(a.ID, models.KindSellClose, "2023-03-15", "5", 500)
	wht := event(a.ID, models.KindWithholdingTax, "2023-03-15", "4", 30)
	dividend := event(a.ID, models.KindDividend, "2023-03-15", "3", 200)
	buy := event(a.ID, models.KindBuyOpen, "2023-03-15", "2", 400)
	conversion := event(a.ID, models.KindCurrencyConversion, "2023-03-15", "1", 1000)
	split := event(a.ID, models.KindSplit, "2023-03-15", "0", 0)

	sorted, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{sell, wht, dividend, buy, conversion, split})
	require.NoError(t, err)

	var kinds []models.EventKind
	for _, ev := range sorted {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []models.EventKind{
		models.KindCurrencyConversion,
		models.KindSplit,
		models.KindBuyOpen,
		models.KindDividend,
		models.KindWithholdingTax,
		models.KindSellClose,
	}, kinds)
}

func TestDateOrderDominatesKindPriority(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	laterBuy := event(a.ID, models.KindBuyOpen, "2023-04-01", "2", 100)
	earlierSell := event(a.ID, models.KindSellClose, "2023-03-01", "1", 100)

	sorted, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{laterBuy, earlierSell})
	require.NoError(t, err)
	assert.Equal(t, earlierSell.ID, sorted[0].ID)
	assert.Equal(t, laterBuy.ID, sorted[1].ID)
}

func TestDuplicateSortKeyAborts(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	// Identical date, kind, asset, amount and transaction id: no component
	// separates these two.
	first := event(a.ID, models.KindBuyOpen, "2023-03-15", "77", 100)
	second := event(a.ID, models.KindBuyOpen, "2023-03-15", "77", 100)

	_, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{first, second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sort key")
}

func TestTransactionIDBreaksAmountTie(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	first := event(a.ID, models.KindBuyOpen, "2023-03-15", "10", 100)
	second := event(a.ID, models.KindBuyOpen, "2023-03-15", "11", 100)

	sorted, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{second, first})
	require.NoError(t, err)
	assert.Equal(t, first.ID, sorted[0].ID)
}

func TestUnparseableDateSortsFirstWithWarning(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	bad := event(a.ID, models.KindBuyOpen, "not-a-date", "1", 100)
	good := event(a.ID, models.KindBuyOpen, "2023-03-15", "2", 100)

	sorted, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{good, bad})
	require.NoError(t, err)
	assert.Equal(t, bad.ID, sorted[0].ID)
	assert.True(t, sorted[0].ParsedDate.IsZero())
}

func TestBrokerDateFormatAccepted(t *testing.T) {
	resolver := assets.NewResolver()
	a := resolver.GetOrCreateAsset("US0378331005", "", "AAPL", "STK", "", "APPLE INC", "USD")

	flex := event(a.ID, models.KindBuyOpen, "20230315;093000", "1", 100)
	sorted, err := NewSorter(resolver).SortAndValidate(
		[]*models.FinancialEvent{flex})
	require.NoError(t, err)
	assert.Equal(t, "2023-03-15", sorted[0].ParsedDate.Format("2006-01-02"))
}
