package rates

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/steuerfolio/src/database"
	"github.com/username/steuerfolio/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeFetcher serves scripted rates keyed "2006-01-02|CCY" and records every
// network-equivalent call.
type fakeFetcher struct {
	rates map[string]decimal.Decimal
	calls []string
}

func (f *fakeFetcher) FetchRate(_ context.Context, day time.Time, currency string) (decimal.Decimal, error) {
	key := day.Format("2006-01-02") + "|" + currency
	f.calls = append(f.calls, key)
	if r, ok := f.rates[key]; ok {
		return r, nil
	}
	return decimal.Zero, ErrNoRate
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "rates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestReportingCurrencyIsAlwaysOne(t *testing.T) {
	p := NewProvider("EUR", newTestStore(t), &fakeFetcher{}, 7)
	r, ok := p.GetRate(day("2023-03-15"), "eur")
	require.True(t, ok)
	assert.Equal(t, "1", r.String())
}

func TestWeekendFallsBackToPriorBusinessDay(t *testing.T) {
	fetcher := &fakeFetcher{rates: map[string]decimal.Decimal{
		"2023-03-17|USD": decimal.NewFromFloat(1.0623),
	}}
	p := NewProvider("EUR", newTestStore(t), fetcher, 7)

	// Sunday: no observation for the 19th or 18th, Friday the 17th has one.
	r, ok := p.GetRate(day("2023-03-19"), "USD")
	require.True(t, ok)
	assert.Equal(t, "1.0623", r.String())
	assert.Equal(t, []string{"2023-03-19|USD", "2023-03-18|USD", "2023-03-17|USD"}, fetcher.calls)
}

func TestMissesAreCachedAcrossLookups(t *testing.T) {
	fetcher := &fakeFetcher{rates: map[string]decimal.Decimal{
		"2023-03-17|USD": decimal.NewFromFloat(1.0623),
	}}
	p := NewProvider("EUR", newTestStore(t), fetcher, 7)

	p.GetRate(day("2023-03-19"), "USD")
	callsAfterFirst := len(fetcher.calls)
	p.GetRate(day("2023-03-19"), "USD")
	assert.Equal(t, callsAfterFirst, len(fetcher.calls), "second lookup must be served from cache")
}

func TestExhaustedFallbackWindowFails(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewProvider("EUR", newTestStore(t), fetcher, 2)

	_, ok := p.GetRate(day("2023-03-19"), "USD")
	assert.False(t, ok)
	assert.Len(t, fetcher.calls, 3) // the day itself plus two fallback days
}

func TestRatesPersistAcrossProviderInstances(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rates.db")
	db, err := database.InitDB(dbPath)
	require.NoError(t, err)

	fetcher := &fakeFetcher{rates: map[string]decimal.Decimal{
		"2023-03-17|USD": decimal.NewFromFloat(1.0623),
	}}
	p := NewProvider("EUR", NewStore(db), fetcher, 0)
	_, ok := p.GetRate(day("2023-03-17"), "USD")
	require.True(t, ok)
	p.Flush()
	require.NoError(t, db.Close())

	db2, err := database.InitDB(dbPath)
	require.NoError(t, err)
	defer db2.Close()

	// No fetcher: only the durable cache can answer.
	p2 := NewProvider("EUR", NewStore(db2), nil, 0)
	r, ok := p2.GetRate(day("2023-03-17"), "USD")
	require.True(t, ok)
	assert.Equal(t, "1.0623", r.String())
}

func TestEmptyCurrencyNeverResolves(t *testing.T) {
	p := NewProvider("EUR", newTestStore(t), &fakeFetcher{}, 7)
	_, ok := p.GetRate(day("2023-03-15"), "")
	assert.False(t, ok)
}
