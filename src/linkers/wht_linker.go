package linkers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/utils"
)

// minAcceptConfidence is the floor below which a withholding-tax match is
// rejected outright.
const minAcceptConfidence = 50

// Amount-ratio windows per strategy. Ratio is always WHT gross over income
// gross; typical withholding sits between 5% and 50% of the income.
var (
	ratioMin = decimal.NewFromFloat(0.05)
	ratioMax = decimal.NewFromFloat(0.50)

	exactTolerance     = decimal.NewFromFloat(0.3)
	strongTolerance    = decimal.NewFromFloat(0.1)
	proximityTolerance = decimal.NewFromFloat(0.5)

	typicalRateMin = decimal.NewFromFloat(0.18)
	typicalRateMax = decimal.NewFromFloat(0.22)
)

// interestWHTPattern recognizes descriptions like
// "WITHHOLDING TAX @ 20% ON CREDIT INT FOR JUN-2023".
var interestWHTPattern = regexp.MustCompile(`(?i)WITHHOLDING(?:\s+TAX)?(?:\s*@\s*(\d+(?:\.\d+)?)%)?\s+ON\s+(?:CREDIT\s+)?INT`)

// periodTokenPattern extracts the month-year token ("JUN-2023") both the tax
// and interest descriptions carry for monthly interest postings.
var periodTokenPattern = regexp.MustCompile(`(?i)\b([A-Z]{3})-(\d{4})\b`)

// WithholdingLinker associates withholding-tax deduction events with the
// income events they taxed, using a multi-strategy confidence-scored
// matcher. Strategies are tried in order per candidate; the first success
// scores the candidate, and the highest-scoring candidate overall wins.
type WithholdingLinker struct{}

func NewWithholdingLinker() *WithholdingLinker {
	return &WithholdingLinker{}
}

// WHTLinkResult carries the linking diagnostics.
type WHTLinkResult struct {
	Linked   int
	Unlinked []*models.FinancialEvent
}

// Link matches every withholding-tax event against the income events.
// Unmatched tax events are returned for diagnostic reporting, never treated
// as a pipeline failure.
func (l *WithholdingLinker) Link(events []*models.FinancialEvent) WHTLinkResult {
	var res WHTLinkResult

	var whtEvents, incomeEvents []*models.FinancialEvent
	for _, ev := range events {
		switch {
		case ev.Kind == models.KindWithholdingTax:
			whtEvents = append(whtEvents, ev)
		case ev.Kind.IsIncome():
			incomeEvents = append(incomeEvents, ev)
		}
	}

	for _, wht := range whtEvents {
		best, bestScore, bestCriteria := (*models.FinancialEvent)(nil), 0, []string(nil)
		for _, income := range incomeEvents {
			score, criteria, ok := matchCandidate(wht, income)
			if !ok || score < minAcceptConfidence {
				continue
			}
			if score > bestScore {
				best, bestScore, bestCriteria = income, score, criteria
			}
		}

		if best == nil {
			logger.L.Warn("Withholding tax event could not be linked to an income event",
				"transactionID", wht.TransactionID, "date", wht.Date,
				"amount", wht.Amount, "currency", wht.Currency)
			res.Unlinked = append(res.Unlinked, wht)
			continue
		}

		wht.WithholdingTax.LinkedIncomeEventID = best.ID
		wht.WithholdingTax.Confidence = bestScore
		wht.WithholdingTax.MatchedCriteria = bestCriteria
		if rate, ok := amountRatio(wht, best); ok {
			wht.WithholdingTax.EffectiveRate = decimal.NewNullDecimal(rate)
		}
		res.Linked++
		logger.L.Debug("Linked withholding tax to income event",
			"whtTransactionID", wht.TransactionID, "incomeTransactionID", best.TransactionID,
			"confidence", bestScore, "criteria", strings.Join(bestCriteria, ","))
	}

	logger.L.Info("Withholding-tax linking finished",
		"linked", res.Linked, "unlinked", len(res.Unlinked))
	return res
}

// matchCandidate tries each strategy in order; the first that succeeds
// decides this candidate's confidence.
func matchCandidate(wht, income *models.FinancialEvent) (int, []string, bool) {
	if score, criteria, ok := matchExact(wht, income); ok {
		return score, criteria, true
	}
	if score, criteria, ok := matchStrong(wht, income); ok {
		return score, criteria, true
	}
	if score, criteria, ok := matchInterestPattern(wht, income); ok {
		return score, criteria, true
	}
	if score, criteria, ok := matchProximity(wht, income); ok {
		return score, criteria, true
	}
	return 0, nil, false
}

// matchExact: same date, asset and currency, sequential transaction ids and
// a plausible amount ratio under the widest same-day tolerance.
func matchExact(wht, income *models.FinancialEvent) (int, []string, bool) {
	if wht.Date != income.Date ||
		wht.AssetID != income.AssetID ||
		!sameCurrency(wht, income) ||
		!sequentialTransactionIDs(wht, income) ||
		!ratioWithin(wht, income, exactTolerance) {
		return 0, nil, false
	}
	return 100, []string{"same_date", "exact_asset", "exact_currency",
		"sequential_transaction_ids", "reasonable_amount_relationship"}, true
}

// matchStrong: exact triple match without the id sequence, tighter ratio
// tolerance.
func matchStrong(wht, income *models.FinancialEvent) (int, []string, bool) {
	if wht.Date != income.Date ||
		wht.AssetID != income.AssetID ||
		!sameCurrency(wht, income) ||
		!ratioWithin(wht, income, strongTolerance) {
		return 0, nil, false
	}
	return 80, []string{"same_date", "exact_asset", "exact_currency",
		"reasonable_amount_relationship"}, true
}

// matchInterestPattern: credit-interest withholding recognized from the tax
// description, needing at least three matched criteria in total.
func matchInterestPattern(wht, income *models.FinancialEvent) (int, []string, bool) {
	if income.Kind != models.KindInterest {
		return 0, nil, false
	}
	m := interestWHTPattern.FindStringSubmatch(wht.Description)
	if m == nil {
		return 0, nil, false
	}

	criteria := []string{"interest_withholding_pattern"}
	if wht.Date == income.Date {
		criteria = append(criteria, "same_date")
	}
	if sameCurrency(wht, income) {
		criteria = append(criteria, "exact_currency")
	}
	if token := periodTokenPattern.FindString(wht.Description); token != "" &&
		strings.EqualFold(token, periodTokenPattern.FindString(income.Description)) {
		criteria = append(criteria, "same_period_token")
	}
	if rate, ok := extractedOrEffectiveRate(m[1], wht, income); ok &&
		rate.GreaterThanOrEqual(typicalRateMin) && rate.LessThanOrEqual(typicalRateMax) {
		criteria = append(criteria, "typical_tax_rate")
	}

	if len(criteria) < 3 {
		return 0, nil, false
	}
	return 70, criteria, true
}

// matchProximity: same asset and currency, dates within three days, widest
// ratio tolerance.
func matchProximity(wht, income *models.FinancialEvent) (int, []string, bool) {
	if wht.AssetID != income.AssetID || !sameCurrency(wht, income) {
		return 0, nil, false
	}
	whtDay := utils.ParseDateOrZero(wht.Date)
	incomeDay := utils.ParseDateOrZero(income.Date)
	if whtDay.IsZero() || incomeDay.IsZero() {
		return 0, nil, false
	}
	days := whtDay.Sub(incomeDay).Hours() / 24
	if days < -3 || days > 3 {
		return 0, nil, false
	}
	if !ratioWithin(wht, income, proximityTolerance) {
		return 0, nil, false
	}
	return 60, []string{"exact_asset", "exact_currency", "close_dates",
		"reasonable_amount_relationship"}, true
}

func sameCurrency(a, b *models.FinancialEvent) bool {
	return strings.EqualFold(a.Currency, b.Currency)
}

// amountRatio divides the WHT gross amount by the income gross amount. A
// non-positive income amount invalidates any match.
func amountRatio(wht, income *models.FinancialEvent) (decimal.Decimal, bool) {
	if !income.Amount.IsPositive() {
		return decimal.Zero, false
	}
	return wht.Amount.Abs().DivRound(income.Amount, 6), true
}

// ratioWithin checks the ratio against [0.05, 0.50] widened by tolerance on
// both sides.
func ratioWithin(wht, income *models.FinancialEvent, tolerance decimal.Decimal) bool {
	ratio, ok := amountRatio(wht, income)
	if !ok {
		return false
	}
	return ratio.GreaterThanOrEqual(ratioMin.Sub(tolerance)) &&
		ratio.LessThanOrEqual(ratioMax.Add(tolerance))
}

// sequentialTransactionIDs requires both ids to parse as integers with the
// tax id 1 to 5 greater than the income id; non-numeric ids never qualify.
func sequentialTransactionIDs(wht, income *models.FinancialEvent) bool {
	whtID, err1 := strconv.ParseInt(strings.TrimSpace(wht.TransactionID), 10, 64)
	incomeID, err2 := strconv.ParseInt(strings.TrimSpace(income.TransactionID), 10, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	diff := whtID - incomeID
	return diff >= 1 && diff <= 5
}

// extractedOrEffectiveRate prefers the percentage the description announces,
// falling back to the observed WHT-to-income ratio.
func extractedOrEffectiveRate(announced string, wht, income *models.FinancialEvent) (decimal.Decimal, bool) {
	if announced != "" {
		if pct, err := decimal.NewFromString(announced); err == nil {
			return pct.Div(decimal.NewFromInt(100)), true
		}
	}
	return amountRatio(wht, income)
}
