package assets

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestIdentifierSubsetsResolveToOneAsset(t *testing.T) {
	r := NewResolver()

	// Trades carry the full identifier set.
	a := r.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	// Cash rows carry only the ISIN.
	b := r.GetOrCreateAsset("US0378331005", "", "", "", "", "", "USD")
	// Position rows carry conid and symbol.
	c := r.GetOrCreateAsset("", "1234", "AAPL", "STK", "", "", "USD")

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.ID, c.ID)
	assert.Len(t, r.All(), 1)
}

func TestIdentifiersMergedOntoCanonicalRecord(t *testing.T) {
	r := NewResolver()

	a := r.GetOrCreateAsset("", "", "AAPL", "STK", "", "", "USD")
	assert.Empty(t, a.ISIN)

	b := r.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "US0378331005", a.ISIN)
	assert.Equal(t, "1234", a.Conid)
	assert.Equal(t, "APPLE INC", a.Description)

	// The merged ISIN is now authoritative for lookups.
	assert.Equal(t, a.ID, r.FindByISIN("us0378331005").ID)
}

func TestConflictingISINKeepsExisting(t *testing.T) {
	r := NewResolver()
	a := r.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "", "USD")
	r.GetOrCreateAsset("US9999999999", "1234", "AAPL", "STK", "", "", "USD")
	assert.Equal(t, "US0378331005", a.ISIN)
}

func TestAllReturnsAssetsInCreationOrder(t *testing.T) {
	r := NewResolver()
	r.GetOrCreateAsset("", "", "ZZZ", "STK", "", "", "USD")
	r.GetOrCreateAsset("", "", "AAA", "STK", "", "", "USD")

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "ZZZ", all[0].Symbol)
	assert.Equal(t, "AAA", all[1].Symbol)
}

func TestLinkDerivativesParsesOptionSymbol(t *testing.T) {
	r := NewResolver()
	stock := r.GetOrCreateAsset("US0378331005", "1234", "AAPL", "STK", "", "APPLE INC", "USD")
	option := r.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")

	r.LinkDerivatives()

	assert.Equal(t, stock.ID, option.UnderlyingID)
	assert.Equal(t, "16JUN23", option.Expiry)
	assert.Equal(t, "170", option.Strike.String())
	assert.Equal(t, models.PutCall("C"), option.PutCall)
	assert.Equal(t, "1234", r.UnderlyingIdentifier(option))
}

func TestLinkDerivativesCreatesMissingUnderlying(t *testing.T) {
	r := NewResolver()
	option := r.GetOrCreateAsset("", "5678", "TSLA 15SEP23 250 P", "OPT", "", "TSLA PUT", "USD")

	r.LinkDerivatives()

	require.NotZero(t, option.UnderlyingID)
	underlying := r.GetAssetByID(option.UnderlyingID)
	require.NotNil(t, underlying)
	assert.Equal(t, "TSLA", underlying.Symbol)
	assert.Equal(t, models.CategoryStock, underlying.Category)
}

func TestReplaceAssetTypeClearsDerivativeFields(t *testing.T) {
	r := NewResolver()
	option := r.GetOrCreateAsset("", "5678", "AAPL 16JUN23 170 C", "OPT", "", "AAPL CALL", "USD")
	r.LinkDerivatives()
	option.Multiplier = decimal.NewFromInt(100)

	r.ReplaceAssetType(option.ID, models.CategoryStock, models.FundTypeNone, "misclassified by broker")

	assert.Equal(t, models.CategoryStock, option.Category)
	assert.Zero(t, option.UnderlyingID)
	assert.True(t, option.Multiplier.IsZero())
	assert.Empty(t, option.Expiry)
	assert.Equal(t, "misclassified by broker", option.Notes)
}
