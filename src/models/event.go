package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the closed discriminant of the financial event union.
type EventKind string

const (
	// Trades, four directional variants.
	KindBuyOpen   EventKind = "BUY_OPEN"
	KindBuyClose  EventKind = "BUY_CLOSE"
	KindSellOpen  EventKind = "SELL_OPEN"
	KindSellClose EventKind = "SELL_CLOSE"

	// Income.
	KindDividend       EventKind = "DIVIDEND"
	KindDistribution   EventKind = "DISTRIBUTION"
	KindInterest       EventKind = "INTEREST"
	KindPaymentInLieu  EventKind = "PAYMENT_IN_LIEU"
	KindWithholdingTax EventKind = "WITHHOLDING_TAX"

	// Corporate actions.
	KindSplit         EventKind = "SPLIT"
	KindMerger        EventKind = "MERGER"
	KindStockDividend EventKind = "STOCK_DIVIDEND"
	KindRightsIssue   EventKind = "DIVIDEND_RIGHTS_ISSUE"
	KindRightsExpiry  EventKind = "DIVIDEND_RIGHTS_EXPIRY"
	KindCapitalRepay  EventKind = "CAPITAL_REPAYMENT"

	// Option lifecycle.
	KindOptionExercise   EventKind = "OPTION_EXERCISE"
	KindOptionAssignment EventKind = "OPTION_ASSIGNMENT"
	KindOptionExpiry     EventKind = "OPTION_EXPIRY"

	KindCurrencyConversion EventKind = "CURRENCY_CONVERSION"
	KindFee                EventKind = "FEE"
)

// IsBuyDirection reports whether the kind adds to a position.
func (k EventKind) IsBuyDirection() bool {
	return k == KindBuyOpen || k == KindBuyClose
}

// IsSellDirection reports whether the kind reduces a position.
func (k EventKind) IsSellDirection() bool {
	return k == KindSellOpen || k == KindSellClose
}

// IsTrade reports whether the kind carries a Trade payload.
func (k EventKind) IsTrade() bool {
	return k.IsBuyDirection() || k.IsSellDirection()
}

// IsIncome reports whether the kind is taxable investment income that a
// withholding-tax event can link to.
func (k EventKind) IsIncome() bool {
	switch k {
	case KindDividend, KindDistribution, KindInterest, KindPaymentInLieu:
		return true
	}
	return false
}

// IsOptionLifecycle reports whether the kind carries an OptionLifecycle payload.
func (k EventKind) IsOptionLifecycle() bool {
	switch k {
	case KindOptionExercise, KindOptionAssignment, KindOptionExpiry:
		return true
	}
	return false
}

// IsCorporateAction reports whether the kind carries a CorporateAction payload.
func (k EventKind) IsCorporateAction() bool {
	switch k {
	case KindSplit, KindMerger, KindStockDividend, KindRightsIssue,
		KindRightsExpiry, KindCapitalRepay:
		return true
	}
	return false
}

// TradeDetails is the payload of the four trade kinds. Quantity is signed:
// positive for buy-direction, negative for sell-direction.
type TradeDetails struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal // per unit, original currency

	Commission         decimal.Decimal
	CommissionCurrency string
	CommissionEUR      decimal.NullDecimal

	// NetAmountEUR is gross ± commission in the reporting currency: cost for
	// buy-direction kinds, proceeds for sell-direction kinds. Left unset
	// until both components converted.
	NetAmountEUR decimal.NullDecimal

	// LinkedOptionEventID back-references the option-lifecycle event that
	// produced this trade ("" when the trade is an ordinary market trade).
	LinkedOptionEventID string

	// ExerciseFlagged marks trades carrying the broker's exercise/assignment
	// notation, earmarking them as linker candidates.
	ExerciseFlagged bool
}

// CorporateActionDetails is the payload of the corporate-action kinds.
type CorporateActionDetails struct {
	QuantityDelta decimal.Decimal // shares added/removed by the action
	Ratio         decimal.Decimal // split/merger ratio, zero when n/a

	CashPerShare    decimal.Decimal
	CashPerShareEUR decimal.NullDecimal
	FMVPerShare     decimal.Decimal // fair market value, stock dividends
	FMVPerShareEUR  decimal.NullDecimal
}

// OptionLifecycleDetails is the payload of exercise/assignment/expiry events.
type OptionLifecycleDetails struct {
	Contracts decimal.Decimal // number of contracts, always positive
}

// CurrencyConversionDetails carries both legs of an FX conversion.
type CurrencyConversionDetails struct {
	FromAmount   decimal.Decimal
	FromCurrency string
	ToAmount     decimal.Decimal
	ToCurrency   string
	ReportedRate decimal.Decimal
}

// WithholdingTaxDetails is the payload of a withholding-tax deduction.
type WithholdingTaxDetails struct {
	// LinkedIncomeEventID back-references the income event this tax was
	// deducted from; filled by the withholding-tax linker.
	LinkedIncomeEventID string
	Confidence          int // 0-100 matcher certainty
	MatchedCriteria     []string
	EffectiveRate       decimal.NullDecimal
	CountryCode         string
}

// FinancialEvent is the unit of the processing pipeline: one base record plus
// exactly one kind-consistent payload. Events are created once by the
// factory, mutated only by enrichment (converted amounts), the linkers
// (back-references) and the dividend-rights post-processor, and never deleted.
type FinancialEvent struct {
	ID      string // uuid, unique within the run
	AssetID int64

	Kind EventKind

	Date       string // raw date string from the source record
	ParsedDate time.Time

	Amount    decimal.Decimal // gross amount, original currency
	Currency  string
	AmountEUR decimal.NullDecimal // filled by enrichment

	TransactionID string // broker transaction id
	Description   string // free text, pattern-matched by the linkers

	Trade              *TradeDetails
	CorporateAction    *CorporateActionDetails
	OptionLifecycle    *OptionLifecycleDetails
	CurrencyConversion *CurrencyConversionDetails
	WithholdingTax     *WithholdingTaxDetails
}

// EventArena indexes events by id so back-references can be stored as plain
// ids and resolved without ownership cycles.
type EventArena struct {
	byID map[string]*FinancialEvent
}

func NewEventArena(events []*FinancialEvent) *EventArena {
	a := &EventArena{byID: make(map[string]*FinancialEvent, len(events))}
	for _, ev := range events {
		a.byID[ev.ID] = ev
	}
	return a
}

// Get resolves an event id, returning nil for unknown or empty ids.
func (a *EventArena) Get(id string) *FinancialEvent {
	if id == "" {
		return nil
	}
	return a.byID[id]
}
