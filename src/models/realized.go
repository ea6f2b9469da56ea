package models

import "github.com/shopspring/decimal"

// TaxCategory is the German reporting bucket a realized result falls into.
type TaxCategory string

const (
	TaxCategoryStock       TaxCategory = "STOCK"
	TaxCategoryFund        TaxCategory = "FUND"
	TaxCategoryDerivative  TaxCategory = "DERIVATIVE"
	TaxCategoryBond        TaxCategory = "BOND"
	TaxCategoryPrivateSale TaxCategory = "PRIVATE_SALE"
	TaxCategoryIncome      TaxCategory = "INCOME"
)

// RealizationType tags how a disposal came about.
type RealizationType string

const (
	RealizationSale         RealizationType = "SALE"
	RealizationOptionExpiry RealizationType = "OPTION_EXPIRY"
	RealizationAssignment   RealizationType = "ASSIGNMENT"
	RealizationShortCover   RealizationType = "SHORT_COVER"
)

// RealizedGainLoss is one disposal-to-lot match: a disposal touching several
// open lots emits one record per lot consumed, not one per disposal event.
type RealizedGainLoss struct {
	AssetID   int64
	AssetName string

	AcquisitionDate string
	RealizationDate string
	HoldingDays     int

	Quantity decimal.Decimal // always positive, in units of the asset

	CostBasisEUR    decimal.Decimal // total for the matched quantity
	ProceedsEUR     decimal.Decimal
	UnitCostEUR     decimal.Decimal
	UnitProceedsEUR decimal.Decimal

	GainEUR decimal.Decimal // proceeds - cost basis

	TaxCategory TaxCategory
	Realization RealizationType
}

// Lot is one open FIFO inventory entry. Quantity is negative for lots of a
// short position.
type Lot struct {
	AcquisitionDate string
	Quantity        decimal.Decimal
	UnitCostEUR     decimal.Decimal
	CostEUR         decimal.Decimal // Quantity * UnitCostEUR at acquisition rounding
}

// IncomeSummary aggregates investment income per year and source country.
type IncomeSummary struct {
	GrossEUR decimal.Decimal
	TaxedEUR decimal.Decimal // linked withholding tax, negative amounts
}

// IncomeByYearCountry is year -> country display string -> summary.
type IncomeByYearCountry map[int]map[string]IncomeSummary

// Result is what the pipeline hands to the reporting sink.
type Result struct {
	RealizedGains []RealizedGainLoss
	Income        IncomeByYearCountry

	// EndOfYearLots holds each non-cash asset's remaining open lots.
	EndOfYearLots map[int64][]Lot

	EOYMismatches        int
	UnlinkedWithholding  []*FinancialEvent
	UnlinkedOptionTrades []*FinancialEvent
	DuplicateOptionKeys  int
	StillhalterIncomeEUR decimal.Decimal
}
