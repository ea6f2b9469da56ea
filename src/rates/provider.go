package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
)

// Provider answers rate lookups for (date, currency) pairs, expressed as
// foreign-currency units per one reporting-currency unit. Lookup order is
// in-memory cache, durable cache, then the external fetcher, walking
// backward day-by-day up to fallbackDays before giving up. Both successes
// and definitive misses are cached at every layer.
type Provider struct {
	reportingCurrency string
	store             *Store
	mem               *gocache.Cache
	fetcher           Fetcher
	fallbackDays      int
}

func NewProvider(reportingCurrency string, store *Store, fetcher Fetcher, fallbackDays int) *Provider {
	if fallbackDays < 0 {
		fallbackDays = 0
	}
	return &Provider{
		reportingCurrency: strings.ToUpper(reportingCurrency),
		store:             store,
		mem:               gocache.New(gocache.NoExpiration, 0),
		fetcher:           fetcher,
		fallbackDays:      fallbackDays,
	}
}

// GetRate returns the rate for converting currency into the reporting
// currency on date, or false when no rate could be found within the
// fallback window. The reporting currency itself is always 1.
func (p *Provider) GetRate(date time.Time, currency string) (decimal.Decimal, bool) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return decimal.Zero, false
	}
	if currency == p.reportingCurrency {
		return decimal.NewFromInt(1), true
	}

	for i := 0; i <= p.fallbackDays; i++ {
		day := date.AddDate(0, 0, -i)
		if r, ok := p.rateForDay(day, currency); ok {
			return r, true
		}
	}
	logger.L.Warn("No exchange rate within fallback window",
		"currency", currency, "date", date.Format("2006-01-02"), "fallbackDays", p.fallbackDays)
	return decimal.Zero, false
}

func (p *Provider) rateForDay(day time.Time, currency string) (decimal.Decimal, bool) {
	dayStr := day.Format("2006-01-02")
	memKey := dayStr + "|" + currency

	if v, found := p.mem.Get(memKey); found {
		if r, ok := v.(decimal.Decimal); ok {
			return r, true
		}
		return decimal.Zero, false // cached miss
	}

	if r, found, isMiss := p.store.Get(dayStr, currency); found {
		if isMiss {
			p.mem.Set(memKey, nil, gocache.NoExpiration)
			return decimal.Zero, false
		}
		p.mem.Set(memKey, r, gocache.NoExpiration)
		return r, true
	}

	if p.fetcher == nil {
		return decimal.Zero, false
	}
	r, err := p.fetcher.FetchRate(context.Background(), day, currency)
	if err != nil {
		if errors.Is(err, ErrNoRate) {
			p.store.PutMiss(dayStr, currency)
			p.mem.Set(memKey, nil, gocache.NoExpiration)
			return decimal.Zero, false
		}
		// Transient failure: treated as no rate for this day, not cached, so
		// a later run can retry.
		logger.L.Warn("Rate fetch failed", "currency", currency, "day", dayStr, "error", err)
		return decimal.Zero, false
	}

	p.store.PutRate(dayStr, currency, r)
	p.mem.Set(memKey, r, gocache.NoExpiration)
	return r, true
}

// Flush persists the durable cache; called once after the enrichment pass.
func (p *Provider) Flush() {
	p.store.Flush()
}
