package assets

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/classification"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// Resolver owns the canonical Asset records for a run. It cross-references
// ISIN, broker contract id and symbol so that the identifier subsets seen
// across different input files resolve to one Asset per instrument.
type Resolver struct {
	nextID  int64
	byID    map[int64]*models.Asset
	byISIN  map[string]int64
	byConid map[string]int64
	// Symbols are only authoritative when no stronger identifier exists, so
	// the symbol index may alias several raw spellings to one asset.
	bySymbol map[string]int64
}

func NewResolver() *Resolver {
	return &Resolver{
		nextID:   1,
		byID:     make(map[int64]*models.Asset),
		byISIN:   make(map[string]int64),
		byConid:  make(map[string]int64),
		bySymbol: make(map[string]int64),
	}
}

// GetOrCreateAsset resolves the identifier subset to an existing asset or
// creates a new one. Newly observed identifiers are merged onto the
// canonical record; conflicting identifiers are logged and the existing
// value kept.
func (r *Resolver) GetOrCreateAsset(isin, conid, symbol, rawCategory, rawSubCategory, description, currency string) *models.Asset {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	conid = strings.TrimSpace(conid)
	symbol = strings.TrimSpace(symbol)

	if a := r.lookup(isin, conid, symbol); a != nil {
		r.mergeIdentifiers(a, isin, conid, symbol, description)
		return a
	}

	prelimCat, prelimFund := classification.Preliminary(rawCategory, rawSubCategory, description, symbol, currency)
	a := &models.Asset{
		ID:             r.nextID,
		ISIN:           isin,
		Conid:          conid,
		Symbol:         symbol,
		Currency:       currency,
		Description:    description,
		RawCategory:    rawCategory,
		RawSubCategory: rawSubCategory,
		Category:       prelimCat,
		FundType:       prelimFund,
	}
	r.nextID++
	r.byID[a.ID] = a
	r.index(a)
	logger.L.Debug("Asset created", "id", a.ID, "name", a.DisplayName(), "category", a.Category)
	return a
}

func (r *Resolver) lookup(isin, conid, symbol string) *models.Asset {
	if conid != "" {
		if id, ok := r.byConid[conid]; ok {
			return r.byID[id]
		}
	}
	if isin != "" {
		if id, ok := r.byISIN[isin]; ok {
			return r.byID[id]
		}
	}
	if symbol != "" {
		if id, ok := r.bySymbol[symbol]; ok {
			return r.byID[id]
		}
	}
	return nil
}

func (r *Resolver) index(a *models.Asset) {
	if a.ISIN != "" {
		r.byISIN[a.ISIN] = a.ID
	}
	if a.Conid != "" {
		r.byConid[a.Conid] = a.ID
	}
	if a.Symbol != "" {
		r.bySymbol[a.Symbol] = a.ID
	}
}

// mergeIdentifiers fills identifier fields the canonical record is missing
// and warns when an input row disagrees with what is already known.
func (r *Resolver) mergeIdentifiers(a *models.Asset, isin, conid, symbol, description string) {
	if isin != "" {
		if a.ISIN == "" {
			a.ISIN = isin
		} else if a.ISIN != isin {
			logger.L.Warn("Conflicting ISIN for asset, keeping existing",
				"asset", a.DisplayName(), "existing", a.ISIN, "new", isin)
		}
	}
	if conid != "" {
		if a.Conid == "" {
			a.Conid = conid
		} else if a.Conid != conid {
			logger.L.Warn("Conflicting contract id for asset, keeping existing",
				"asset", a.DisplayName(), "existing", a.Conid, "new", conid)
		}
	}
	if symbol != "" && a.Symbol == "" {
		a.Symbol = symbol
	}
	if description != "" && a.Description == "" {
		a.Description = description
	}
	r.index(a)
}

// MergeDerivativeColumns fills the option fields the broker reports as
// dedicated trade columns. Reported columns win over symbol re-parsing;
// LinkDerivatives only fills what is still missing afterwards.
func (r *Resolver) MergeDerivativeColumns(id int64, multiplier, strike, expiry, putCall string) {
	a := r.byID[id]
	if a == nil {
		return
	}
	if a.Multiplier.IsZero() && strings.TrimSpace(multiplier) != "" {
		if m, err := decimal.NewFromString(strings.TrimSpace(multiplier)); err == nil && m.IsPositive() {
			a.Multiplier = m
		} else {
			logger.L.Warn("Unparseable option multiplier column, ignoring",
				"asset", a.DisplayName(), "multiplier", multiplier)
		}
	}
	if a.Strike.IsZero() && strings.TrimSpace(strike) != "" {
		if s, err := decimal.NewFromString(strings.TrimSpace(strike)); err == nil {
			a.Strike = s
		}
	}
	if a.Expiry == "" {
		a.Expiry = strings.ToUpper(strings.TrimSpace(expiry))
	}
	if a.PutCall == "" {
		a.PutCall = models.PutCall(strings.ToUpper(strings.TrimSpace(putCall)))
	}
}

// FindByISIN returns the asset carrying an ISIN, or nil.
func (r *Resolver) FindByISIN(isin string) *models.Asset {
	if id, ok := r.byISIN[strings.ToUpper(strings.TrimSpace(isin))]; ok {
		return r.byID[id]
	}
	return nil
}

// GetAssetByID returns the asset for an internal id, or nil.
func (r *Resolver) GetAssetByID(id int64) *models.Asset {
	return r.byID[id]
}

// All returns every asset ordered by internal id for deterministic passes.
func (r *Resolver) All() []*models.Asset {
	out := make([]*models.Asset, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplaceAssetType applies a final classification that implies a different
// concrete asset shape. A change away from option clears derivative fields;
// the identity and snapshots survive unchanged.
func (r *Resolver) ReplaceAssetType(id int64, category models.AssetCategory, fundType models.FundType, notes string) *models.Asset {
	a := r.byID[id]
	if a == nil {
		logger.L.Warn("ReplaceAssetType for unknown asset id", "id", id)
		return nil
	}
	if a.Category != category {
		logger.L.Debug("Replacing asset type", "asset", a.DisplayName(), "from", a.Category, "to", category)
		if a.Category == models.CategoryOption && category != models.CategoryOption {
			a.UnderlyingID = 0
			a.Multiplier = decimal.Zero
			a.Strike = decimal.Zero
			a.Expiry = ""
			a.PutCall = ""
		}
	}
	a.Category = category
	a.FundType = fundType
	if notes != "" {
		a.Notes = notes
	}
	return a
}
