package assets

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// optionSymbolPattern matches broker option symbols of the shape
// "AAPL 16JUN23 170 C": underlying, expiry, strike, put/call flag.
var optionSymbolPattern = regexp.MustCompile(`^([A-Z0-9.]+)\s+(\d{1,2}[A-Z]{3}\d{2})\s+([0-9.]+)\s+([PC])$`)

// LinkDerivatives resolves every option asset's underlying reference after
// discovery. Underlyings that were never traded directly are created as
// stock assets so exercise events always have a target.
func (r *Resolver) LinkDerivatives() {
	for _, a := range r.All() {
		if a.Category != models.CategoryOption || a.UnderlyingID != 0 {
			continue
		}
		m := optionSymbolPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(a.Symbol)))
		if m == nil {
			logger.L.Warn("Could not parse option symbol for derivative linking",
				"asset", a.DisplayName(), "symbol", a.Symbol)
			continue
		}

		underlyingSymbol := m[1]
		if a.Expiry == "" {
			a.Expiry = m[2]
		}
		if a.Strike.IsZero() {
			if strike, err := decimal.NewFromString(m[3]); err == nil {
				a.Strike = strike
			}
		}
		if a.PutCall == "" {
			a.PutCall = models.PutCall(m[4])
		}

		underlying := r.GetOrCreateAsset("", "", underlyingSymbol, "STK", "", "", a.Currency)
		a.UnderlyingID = underlying.ID
		logger.L.Debug("Linked option to underlying",
			"option", a.Symbol, "underlying", underlying.DisplayName())
	}
}

// UnderlyingIdentifier returns the identifier string the option linker keys
// on for an asset: the underlying's conid when known, otherwise its symbol.
// For non-derivative assets it is the asset's own identifier.
func (r *Resolver) UnderlyingIdentifier(a *models.Asset) string {
	target := a
	if a.UnderlyingID != 0 {
		if u := r.GetAssetByID(a.UnderlyingID); u != nil {
			target = u
		}
	}
	if target.Conid != "" {
		return target.Conid
	}
	return target.Symbol
}
