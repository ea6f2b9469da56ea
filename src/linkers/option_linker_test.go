package linkers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/models"
)

func optionSetup(t *testing.T) (*assets.Resolver, *models.Asset, *models.Asset) {
	t.Helper()
	resolver := assets.NewResolver()
	stock := resolver.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	option := resolver.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")
	resolver.LinkDerivatives()
	require.Equal(t, stock.ID, option.UnderlyingID)
	return resolver, stock, option
}

func lifecycleEvent(assetID int64, kind models.EventKind, date string, contracts int64) *models.FinancialEvent {
	return &models.FinancialEvent{
		ID:              uuid.NewString(),
		AssetID:         assetID,
		Kind:            kind,
		Date:            date,
		OptionLifecycle: &models.OptionLifecycleDetails{Contracts: decimal.NewFromInt(contracts)},
	}
}

func candidateTrade(assetID int64, date string, qty int64) *models.FinancialEvent {
	return &models.FinancialEvent{
		ID:      uuid.NewString(),
		AssetID: assetID,
		Kind:    models.KindBuyClose,
		Date:    date,
		Trade: &models.TradeDetails{
			Quantity:        decimal.NewFromInt(qty),
			ExerciseFlagged: true,
		},
	}
}

func TestLinksTradeMatchingContractsTimesMultiplier(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	exercise := lifecycleEvent(option.ID, models.KindOptionExercise, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-16", 100)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{exercise}, []*models.FinancialEvent{trade})

	assert.Equal(t, 1, res.Linked)
	assert.Empty(t, res.Unmatched)
	assert.Equal(t, exercise.ID, trade.Trade.LinkedOptionEventID)
}

func TestQuantityMismatchStaysUnmatched(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	exercise := lifecycleEvent(option.ID, models.KindOptionExercise, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-16", 50)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{exercise}, []*models.FinancialEvent{trade})

	assert.Equal(t, 0, res.Linked)
	require.Len(t, res.Unmatched, 1)
	assert.Empty(t, trade.Trade.LinkedOptionEventID)
}

func TestDateMismatchStaysUnmatched(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	exercise := lifecycleEvent(option.ID, models.KindOptionExercise, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-17", 100)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{exercise}, []*models.FinancialEvent{trade})

	assert.Equal(t, 0, res.Linked)
	assert.Len(t, res.Unmatched, 1)
}

func TestDuplicateKeysKeepLastAndCount(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	first := lifecycleEvent(option.ID, models.KindOptionAssignment, "2023-06-16", 1)
	second := lifecycleEvent(option.ID, models.KindOptionAssignment, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-16", 100)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{first, second}, []*models.FinancialEvent{trade})

	assert.Equal(t, 1, res.DuplicateKeys)
	assert.Equal(t, second.ID, trade.Trade.LinkedOptionEventID)
}

func TestExpiryEventsNeverEnterTheLookup(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	expiry := lifecycleEvent(option.ID, models.KindOptionExpiry, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-16", 100)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{expiry}, []*models.FinancialEvent{trade})

	assert.Equal(t, 0, res.Linked)
	assert.Len(t, res.Unmatched, 1)
}

func TestExplicitMultiplierOverridesDefault(t *testing.T) {
	resolver, stock, option := optionSetup(t)
	option.Multiplier = decimal.NewFromInt(10)
	exercise := lifecycleEvent(option.ID, models.KindOptionExercise, "2023-06-16", 1)
	trade := candidateTrade(stock.ID, "2023-06-16", 10)

	res := NewOptionTradeLinker(resolver).Link(
		[]*models.FinancialEvent{exercise}, []*models.FinancialEvent{trade})

	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, exercise.ID, trade.Trade.LinkedOptionEventID)
}
