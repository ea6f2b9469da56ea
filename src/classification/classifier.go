package classification

import (
	"fmt"
	"strings"

	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// Decision is one finalized classification choice.
type Decision struct {
	Category models.AssetCategory
	FundType models.FundType
	Notes    string
}

// PendingReview is handed to the oracle when an asset needs human review.
type PendingReview struct {
	Asset     *models.Asset
	Suggested Decision
	Menu      []Decision
}

// Oracle resolves a pending review into a decision. The CLI wires a console
// prompt; tests and batch runs use a scripted oracle or none at all.
type Oracle func(PendingReview) (Decision, error)

// reviewMenu is the fixed set of category/fund-type combinations offered
// during interactive review.
var reviewMenu = []Decision{
	{Category: models.CategoryFund, FundType: models.FundTypeEquity},
	{Category: models.CategoryFund, FundType: models.FundTypeMixed},
	{Category: models.CategoryFund, FundType: models.FundTypeBond},
	{Category: models.CategoryFund, FundType: models.FundTypeRealEstate},
	{Category: models.CategoryFund, FundType: models.FundTypeOther},
	{Category: models.CategoryStock},
	{Category: models.CategoryBond},
	{Category: models.CategoryPrivateSale},
	{Category: models.CategoryCash},
	{Category: models.CategoryUnknown},
}

// Classifier finalizes asset classifications against the persistent cache,
// auto-resolution rules and the optional interactive oracle.
type Classifier struct {
	cache  *CacheStore
	oracle Oracle
}

func NewClassifier(cache *CacheStore, oracle Oracle) *Classifier {
	return &Classifier{cache: cache, oracle: oracle}
}

// EnsureFinalClassification resolves the asset's final category and fund
// type. Every decision, whatever path produced it, is written back to the
// cache under the asset's stable key. The caller applies the result to the
// asset (possibly replacing its concrete type through the resolver).
func (c *Classifier) EnsureFinalClassification(a *models.Asset) Decision {
	key := a.ClassificationKey()

	// 1. Cached decision, validated against the current identifier shape.
	if entry, ok := c.cache.Get(key); ok {
		d := Decision{Category: entry.Category, FundType: entry.FundType, Notes: entry.Notes}
		if d.Category == models.CategoryCash && looksLikeFXPair(a.Symbol) {
			logger.L.Warn("Cached classification says cash but symbol looks like an FX pair, overriding to unknown",
				"asset", a.DisplayName(), "symbol", a.Symbol)
			d.Category = models.CategoryUnknown
			d.FundType = models.FundTypeNone
			d.Notes = appendNote(d.Notes, "re-overridden: FX-pair symbol cannot be a cash balance")
		}
		c.cache.Put(key, CacheEntry{Category: d.Category, FundType: d.FundType, Notes: d.Notes})
		return d
	}

	// 2. Undecided category: auto-resolve without prompting.
	if a.Category == models.CategoryUnknown {
		d := c.autoResolve(a)
		c.cache.Put(key, CacheEntry{Category: d.Category, FundType: d.FundType, Notes: d.Notes})
		return d
	}

	// 3. Decided and not flagged for review: accept the preliminary result.
	if c.oracle == nil || !isPotentiallySpecial(a) || looksLikeFXPair(a.Symbol) {
		d := Decision{Category: a.Category, FundType: a.FundType, Notes: a.Notes}
		if d.Category == models.CategoryFund && d.FundType == models.FundTypeNone {
			d.FundType = models.FundTypeOther
		}
		c.cache.Put(key, CacheEntry{Category: d.Category, FundType: d.FundType, Notes: d.Notes})
		return d
	}

	d := c.review(a)
	c.cache.Put(key, CacheEntry{Category: d.Category, FundType: d.FundType, Notes: d.Notes})
	return d
}

// autoResolve settles an unknown-category asset without human input.
func (c *Classifier) autoResolve(a *models.Asset) Decision {
	if looksLikeFXPair(a.Symbol) {
		return Decision{
			Category: models.CategoryUnknown,
			Notes:    "FX trading instrument, excluded from cash-balance treatment",
		}
	}
	if strings.EqualFold(a.Symbol, a.Currency) {
		return Decision{Category: models.CategoryCash}
	}
	return Decision{
		Category: models.CategoryStock,
		Notes:    fmt.Sprintf("auto-defaulted to stock: no cached decision and no rule matched (raw category %q)", a.RawCategory),
	}
}

// review runs the interactive path through the oracle.
func (c *Classifier) review(a *models.Asset) Decision {
	suggested := Decision{Category: a.Category, FundType: a.FundType}
	if suggested.Category == models.CategoryFund && suggested.FundType == models.FundTypeNone {
		suggested.FundType = models.FundTypeOther
	}
	if isKnownPrivateSaleInstrument(a.ISIN, a.Symbol) {
		suggested = Decision{Category: models.CategoryPrivateSale}
	}

	d, err := c.oracle(PendingReview{Asset: a, Suggested: suggested, Menu: reviewMenu})
	if err != nil {
		logger.L.Warn("Interactive classification failed, keeping suggestion",
			"asset", a.DisplayName(), "error", err)
		return suggested
	}

	// A cash-balance choice for an FX-pair-shaped symbol would corrupt the
	// per-currency cash accounting; force unknown instead.
	if d.Category == models.CategoryCash && looksLikeFXPair(a.Symbol) {
		logger.L.Warn("Blocking cash-balance classification for FX-pair-shaped symbol",
			"asset", a.DisplayName(), "symbol", a.Symbol)
		d.Category = models.CategoryUnknown
		d.FundType = models.FundTypeNone
		d.Notes = appendNote(d.Notes, "cash choice blocked: symbol looks like an FX pair")
	}
	if d.Category == models.CategoryFund && d.FundType == models.FundTypeNone {
		d.FundType = models.FundTypeOther
	}
	return d
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
