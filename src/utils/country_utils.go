package utils

import "strings"

// countryNames maps ISIN alpha-2 prefixes to country names for the
// jurisdictions that actually show up in the supported broker exports.
// Unknown prefixes fall back to the bare prefix, never an error.
var countryNames = map[string]string{
	"AT": "Austria",
	"AU": "Australia",
	"BE": "Belgium",
	"BM": "Bermuda",
	"CA": "Canada",
	"CH": "Switzerland",
	"DE": "Germany",
	"DK": "Denmark",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"GB": "United Kingdom",
	"IE": "Ireland",
	"IT": "Italy",
	"JE": "Jersey",
	"JP": "Japan",
	"KY": "Cayman Islands",
	"LU": "Luxembourg",
	"NL": "Netherlands",
	"NO": "Norway",
	"PT": "Portugal",
	"SE": "Sweden",
	"US": "United States",
}

// CountryCodeFromISIN returns the alpha-2 country prefix of an ISIN, or ""
// when the ISIN is missing or too short to carry one.
func CountryCodeFromISIN(isin string) string {
	if len(isin) < 2 {
		return ""
	}
	return strings.ToUpper(isin[:2])
}

// CountryNameFromISIN resolves an ISIN prefix to a readable country name,
// falling back to the raw prefix for prefixes not in the table.
func CountryNameFromISIN(isin string) string {
	code := CountryCodeFromISIN(isin)
	if code == "" {
		return ""
	}
	if name, ok := countryNames[code]; ok {
		return code + " - " + name
	}
	return code
}
