package rates

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
	"golang.org/x/time/rate"
)

// Fetcher retrieves one daily reference rate from an external source.
// Rates are foreign-currency units per one euro, ECB convention.
type Fetcher interface {
	FetchRate(ctx context.Context, day time.Time, currency string) (decimal.Decimal, error)
}

// ErrNoRate marks a day the source definitively has no observation for
// (weekends, TARGET holidays). The provider caches these as explicit misses.
var ErrNoRate = fmt.Errorf("no rate observation for requested day")

// ECBFetcher pulls daily reference rates from the ECB data portal's SDMX CSV
// endpoint. A rate limiter keeps the batch run polite: one request per 100ms.
type ECBFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	// urlTemplate carries one %s for the currency code, e.g.
	// https://data-api.ecb.europa.eu/service/data/EXR/D.%s.EUR.SP00.A
	urlTemplate string
}

func NewECBFetcher(urlTemplate string) *ECBFetcher {
	return &ECBFetcher{
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		urlTemplate: urlTemplate,
	}
}

func (f *ECBFetcher) FetchRate(ctx context.Context, day time.Time, currency string) (decimal.Decimal, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	dayStr := day.Format("2006-01-02")
	url := fmt.Sprintf(f.urlTemplate, strings.ToUpper(currency)) +
		fmt.Sprintf("?startPeriod=%s&endPeriod=%s&format=csvdata", dayStr, dayStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ecb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return decimal.Zero, ErrNoRate
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ecb returned status %d for %s %s", resp.StatusCode, currency, dayStr)
	}

	rateVal, err := parseECBCSV(resp.Body, dayStr)
	if err != nil {
		return decimal.Zero, err
	}
	logger.L.Debug("Fetched ECB rate", "currency", currency, "day", dayStr, "rate", rateVal)
	return rateVal, nil
}

// parseECBCSV extracts OBS_VALUE for the requested TIME_PERIOD from an SDMX
// csvdata response.
func parseECBCSV(r io.Reader, wantDay string) (decimal.Decimal, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return decimal.Zero, fmt.Errorf("ecb csv: missing header: %w", err)
	}

	timeIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.ToUpper(strings.TrimSpace(col)) {
		case "TIME_PERIOD":
			timeIdx = i
		case "OBS_VALUE":
			valueIdx = i
		}
	}
	if timeIdx < 0 || valueIdx < 0 {
		return decimal.Zero, fmt.Errorf("ecb csv: unexpected header %v", header)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("ecb csv: read failed: %w", err)
		}
		if len(record) <= timeIdx || len(record) <= valueIdx {
			continue
		}
		if record[timeIdx] != wantDay {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(record[valueIdx]))
		if err != nil {
			return decimal.Zero, fmt.Errorf("ecb csv: bad observation %q: %w", record[valueIdx], err)
		}
		return v, nil
	}
	return decimal.Zero, ErrNoRate
}
