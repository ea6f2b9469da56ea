package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AssetCategory is the resolved semantic category of an instrument.
type AssetCategory string

const (
	CategoryFund        AssetCategory = "FUND"
	CategoryStock       AssetCategory = "STOCK"
	CategoryBond        AssetCategory = "BOND"
	CategoryOption      AssetCategory = "OPTION"
	CategoryCFD         AssetCategory = "CFD"
	CategoryPrivateSale AssetCategory = "PRIVATE_SALE"
	CategoryCash        AssetCategory = "CASH"
	CategoryUnknown     AssetCategory = "UNKNOWN"
)

// ParseAssetCategory validates a persisted category name. Unknown names are
// an error so corrupted cache entries can be detected and discarded.
func ParseAssetCategory(s string) (AssetCategory, error) {
	c := AssetCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryFund, CategoryStock, CategoryBond, CategoryOption,
		CategoryCFD, CategoryPrivateSale, CategoryCash, CategoryUnknown:
		return c, nil
	}
	return CategoryUnknown, fmt.Errorf("invalid asset category %q", s)
}

// FundType is the sub-type of an investment fund, only meaningful when the
// category is CategoryFund. It drives the German Teilfreistellung buckets.
type FundType string

const (
	FundTypeEquity     FundType = "EQUITY_FUND"
	FundTypeMixed      FundType = "MIXED_FUND"
	FundTypeBond       FundType = "BOND_FUND"
	FundTypeRealEstate FundType = "REAL_ESTATE_FUND"
	FundTypeOther      FundType = "OTHER_FUND" // catch-all bucket
	FundTypeNone       FundType = ""
)

func ParseFundType(s string) (FundType, error) {
	f := FundType(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FundTypeEquity, FundTypeMixed, FundTypeBond, FundTypeRealEstate,
		FundTypeOther, FundTypeNone:
		return f, nil
	}
	return FundTypeNone, fmt.Errorf("invalid fund type %q", s)
}

// PutCall flags option direction.
type PutCall string

const (
	PutOption  PutCall = "P"
	CallOption PutCall = "C"
)

// Asset is the canonical record for one real-world instrument or one cash
// currency balance. Exactly one Asset exists per instrument for a run; the
// resolver cross-references ISIN, conid and symbol so the identifier
// combinations seen across input files all land on the same record.
type Asset struct {
	ID int64 // internal identifier, stable for the run

	ISIN        string
	Conid       string // broker contract id
	Symbol      string
	Currency    string
	Description string

	RawCategory    string
	RawSubCategory string

	Category AssetCategory
	FundType FundType

	// Derivative linkage, populated for options after LinkDerivatives.
	UnderlyingID int64 // 0 when not a derivative or unresolved
	Multiplier   decimal.Decimal
	Strike       decimal.Decimal
	Expiry       string
	PutCall      PutCall

	// Start-of-year snapshot. The Has flags distinguish "reported as zero"
	// from "not reported at all".
	SOYQuantity     decimal.Decimal
	HasSOYQuantity  bool
	SOYCostBasis    decimal.Decimal
	HasSOYCostBasis bool

	// End-of-year snapshot from the broker's open-positions report.
	EOYQuantity    decimal.Decimal
	HasEOYQuantity bool
	EOYPrice       decimal.Decimal
	EOYValue       decimal.Decimal

	Notes string
}

// ClassificationKey derives the stable cache key for an asset from its
// external identifiers, never the run-local ID.
func (a *Asset) ClassificationKey() string {
	return fmt.Sprintf("%s|%s|%s", a.ISIN, a.Conid, a.Symbol)
}

// DisplayName prefers the symbol for logs and reports.
func (a *Asset) DisplayName() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	if a.ISIN != "" {
		return a.ISIN
	}
	return a.Description
}

// SortIdentifier is the deterministic identity string used as a sort
// tiebreak: identifier content only, so it is stable across runs.
func (a *Asset) SortIdentifier() string {
	return a.ClassificationKey()
}

// IsCash reports whether this asset is a per-currency cash balance.
func (a *Asset) IsCash() bool {
	return a.Category == CategoryCash
}
