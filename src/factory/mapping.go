package factory

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// tradeKind resolves the four directional trade kinds from the broker's
// buy/sell and open/close columns, falling back to the quantity sign when
// the buy/sell column is missing.
func tradeKind(buySell, openClose string, quantity decimal.Decimal) models.EventKind {
	bs := strings.ToUpper(strings.TrimSpace(buySell))
	oc := strings.ToUpper(strings.TrimSpace(openClose))
	if bs == "" {
		if quantity.IsPositive() {
			bs = "BUY"
		} else if quantity.IsNegative() {
			bs = "SELL"
		}
	}
	switch bs {
	case "BUY":
		if oc == "C" {
			return models.KindBuyClose
		}
		return models.KindBuyOpen
	case "SELL":
		if oc == "O" {
			return models.KindSellOpen
		}
		return models.KindSellClose
	}
	return ""
}

// optionLifecycleKind recognizes the broker notation codes on option trade
// rows: "A" assignment, "Ex" exercise, "Ep" expiry.
func optionLifecycleKind(notes string) (models.EventKind, bool) {
	for _, code := range splitNotes(notes) {
		switch code {
		case "A":
			return models.KindOptionAssignment, true
		case "EX":
			return models.KindOptionExercise, true
		case "EP":
			return models.KindOptionExpiry, true
		}
	}
	return "", false
}

// hasExerciseNotation flags stock trades produced by option exercise or
// assignment; these are the option-linker candidates.
func hasExerciseNotation(notes string) bool {
	for _, code := range splitNotes(notes) {
		if code == "A" || code == "EX" {
			return true
		}
	}
	return false
}

func splitNotes(notes string) []string {
	parts := strings.Split(strings.ToUpper(notes), ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// cashKind maps a broker cash-transaction type string to an event kind. The
// second return is false for rows with no tax relevance (deposits,
// withdrawals, internal transfers).
func cashKind(rawType, description string) (models.EventKind, bool) {
	t := strings.ToLower(strings.TrimSpace(rawType))
	switch {
	case strings.Contains(t, "withholding"):
		return models.KindWithholdingTax, true
	case strings.Contains(t, "payment in lieu"):
		return models.KindPaymentInLieu, true
	case strings.Contains(t, "dividend"):
		// Rows described as fund distributions are kept apart from plain
		// dividends for the fund tax treatment.
		if strings.Contains(strings.ToLower(description), "distribution") {
			return models.KindDistribution, true
		}
		return models.KindDividend, true
	case strings.Contains(t, "interest"):
		return models.KindInterest, true
	case strings.Contains(t, "fee"):
		return models.KindFee, true
	}
	return "", false
}

// corporateActionKind maps the broker's corporate-action code.
func corporateActionKind(rawType, description string) (models.EventKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(rawType)) {
	case "FS", "RS":
		return models.KindSplit, true
	case "TC", "MERGER":
		return models.KindMerger, true
	case "SD":
		return models.KindStockDividend, true
	case "DI":
		return models.KindRightsIssue, true
	case "ED":
		return models.KindRightsExpiry, true
	case "CP", "CD":
		return models.KindCapitalRepay, true
	}
	// A few exports only carry a description; recognize the common phrases.
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "split"):
		return models.KindSplit, true
	case strings.Contains(d, "merge"):
		return models.KindMerger, true
	case strings.Contains(d, "stock dividend"):
		return models.KindStockDividend, true
	}
	return "", false
}

// parseDecimal parses a numeric column, warning and returning zero on
// malformed input so a single bad field never kills the run.
func parseDecimal(s, field, transactionID string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		logger.L.Warn("Malformed numeric field, treating as zero",
			"field", field, "value", s, "transactionID", transactionID)
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// splitFXPair splits "EUR.USD" into its base and quote legs.
func splitFXPair(symbol string) (base, quote string, ok bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(symbol)), ".")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 3 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
