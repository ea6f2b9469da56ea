package classification

import (
	"regexp"
	"strings"

	"github.com/username/steuerfolio/src/models"
)

// fxPairPattern matches broker FX trading symbols like "EUR.USD". A symbol
// of this shape under a cash raw-category is an FX instrument, not a
// literal cash balance.
var fxPairPattern = regexp.MustCompile(`^[A-Z]{3}\.[A-Z]{3}$`)

// fundKeywords flag fund/ETF language in descriptions and symbols.
var fundKeywords = []string{
	"ETF", "FONDS", "FUND", "UCITS", "SICAV", "INDEX",
	"ISHARES", "VANGUARD", "XTRACKERS", "LYXOR", "AMUNDI",
	"WISDOMTREE", "INVESCO",
}

// physicalGoldIdentifiers are known gold ETCs that qualify as private-sale
// assets under German rules (physically backed, deliverable).
var physicalGoldIdentifiers = map[string]bool{
	"DE000A0S9GB0": true, // Xetra-Gold
	"DE000EWG2LD7": true, // EUWAX Gold II
	"JE00B1VS3770": true, // WisdomTree Physical Gold
	"CH0047533549": true, // ZKB Gold ETF
	"4GLD":         true,
	"EWG2":         true,
}

// cryptoETCIdentifiers are known crypto exchange-traded notes.
var cryptoETCIdentifiers = map[string]bool{
	"DE000A27Z304": true, // BTCetc Bitcoin Exchange Traded Crypto
	"DE000A28M8D0": true, // ETC Group Physical Ethereum
	"SE0007126024": true, // XBT Provider Bitcoin Tracker
	"BTCE":         true,
	"ZETH":         true,
}

func containsFundKeyword(s string) bool {
	u := strings.ToUpper(s)
	for _, kw := range fundKeywords {
		if strings.Contains(u, kw) {
			return true
		}
	}
	return false
}

func looksLikeFXPair(symbol string) bool {
	return fxPairPattern.MatchString(strings.ToUpper(symbol))
}

func isKnownPrivateSaleInstrument(isin, symbol string) bool {
	return physicalGoldIdentifiers[strings.ToUpper(isin)] ||
		physicalGoldIdentifiers[strings.ToUpper(symbol)] ||
		cryptoETCIdentifiers[strings.ToUpper(isin)] ||
		cryptoETCIdentifiers[strings.ToUpper(symbol)]
}

func isGenericCommodityETC(description string) bool {
	u := strings.ToUpper(description)
	return strings.Contains(u, "ETC") || strings.Contains(u, "COMMODIT")
}

// Preliminary produces the rule-based first-pass classification from raw
// instrument metadata. The result may be revised by the final-classification
// pass (cache, auto-resolve or interactive review).
func Preliminary(rawCategory, rawSubCategory, description, symbol, currency string) (models.AssetCategory, models.FundType) {
	switch strings.ToUpper(strings.TrimSpace(rawCategory)) {
	case "STK", "STOCK":
		if containsFundKeyword(description) || strings.EqualFold(rawSubCategory, "ETF") {
			return models.CategoryFund, fundTypeFromDescription(description)
		}
		return models.CategoryStock, models.FundTypeNone
	case "FUND", "FND":
		return models.CategoryFund, fundTypeFromDescription(description)
	case "BOND", "BND":
		return models.CategoryBond, models.FundTypeNone
	case "OPT", "OPTION":
		return models.CategoryOption, models.FundTypeNone
	case "CFD":
		return models.CategoryCFD, models.FundTypeNone
	case "CASH":
		// Disambiguate currency-pair instruments from literal cash balances.
		if looksLikeFXPair(symbol) {
			return models.CategoryUnknown, models.FundTypeNone
		}
		if strings.EqualFold(symbol, currency) {
			return models.CategoryCash, models.FundTypeNone
		}
		return models.CategoryUnknown, models.FundTypeNone
	}
	if containsFundKeyword(description) {
		return models.CategoryFund, fundTypeFromDescription(description)
	}
	return models.CategoryUnknown, models.FundTypeNone
}

// fundTypeFromDescription guesses the Teilfreistellung bucket from fund
// naming conventions; the catch-all bucket is used when nothing matches.
func fundTypeFromDescription(description string) models.FundType {
	u := strings.ToUpper(description)
	switch {
	case strings.Contains(u, "EQUITY") || strings.Contains(u, "AKTIEN") ||
		strings.Contains(u, "MSCI") || strings.Contains(u, "S&P") ||
		strings.Contains(u, "STOXX"):
		return models.FundTypeEquity
	case strings.Contains(u, "BOND") || strings.Contains(u, "RENTEN") ||
		strings.Contains(u, "GOVT") || strings.Contains(u, "CORP"):
		return models.FundTypeBond
	case strings.Contains(u, "REAL ESTATE") || strings.Contains(u, "IMMOBILIEN") ||
		strings.Contains(u, "REIT"):
		return models.FundTypeRealEstate
	case strings.Contains(u, "MIXED") || strings.Contains(u, "MISCH") ||
		strings.Contains(u, "BALANCED"):
		return models.FundTypeMixed
	}
	return models.FundTypeOther
}

// isPotentiallySpecial flags assets that need human review when interactive
// mode is enabled. Options, CFDs, bonds and already-typed stocks and cash
// balances never qualify.
func isPotentiallySpecial(a *models.Asset) bool {
	switch a.Category {
	case models.CategoryOption, models.CategoryCFD, models.CategoryBond:
		return false
	}
	if a.Category == models.CategoryFund {
		return true
	}
	if isKnownPrivateSaleInstrument(a.ISIN, a.Symbol) {
		return true
	}
	if isGenericCommodityETC(a.Description) {
		return true
	}
	if looksLikeFXPair(a.Symbol) && strings.EqualFold(a.RawCategory, "CASH") {
		return true
	}
	if a.Category == models.CategoryStock && containsFundKeyword(a.Description) {
		return true
	}
	return false
}
