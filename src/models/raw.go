package models

// Raw record types mirror the broker export columns one-to-one. The readers
// only validate and map; all interpretation happens in the event factory.

// RawTrade is a single row of the trades section.
type RawTrade struct {
	AssetCategory  string // e.g. STK, OPT, BOND, CFD, CASH
	SubCategory    string
	Symbol         string
	ISIN           string
	Conid          string
	Description    string
	TradeDate      string
	SettlementDate string
	Quantity       string // signed
	Price          string
	Proceeds       string
	Currency       string
	Commission     string
	CommissionCcy  string
	Multiplier     string
	PutCall        string
	Strike         string
	Expiry         string
	BuySell        string // BUY/SELL
	OpenClose      string // O/C when reported
	TransactionID  string
	Notes          string // broker notation, e.g. "A" assignment, "Ex" exercise
}

// RawCashTransaction is a single row of the cash-transactions section
// (dividends, interest, withholding tax, fees, FX conversions, transfers).
type RawCashTransaction struct {
	Type          string // broker type string, e.g. "Dividends", "Withholding Tax"
	AssetCategory string
	Symbol        string
	ISIN          string
	Conid         string
	Description   string
	Date          string
	Amount        string
	Currency      string
	TransactionID string
}

// RawPosition is one row of an open-positions report; the reader tags which
// report (start-of-year or end-of-year) it came from.
type RawPosition struct {
	AssetCategory string
	SubCategory   string
	Symbol        string
	ISIN          string
	Conid         string
	Description   string
	Currency      string
	Quantity      string
	CostBasis     string // total, original currency; may be empty
	MarkPrice     string
	PositionValue string
}

// RawCorporateAction is one row of the corporate-actions section.
type RawCorporateAction struct {
	Type          string // broker action code: SD, ED, FS, TC, DI, ...
	AssetCategory string
	Symbol        string
	ISIN          string
	Conid         string
	Description   string
	Date          string
	Quantity      string // share delta
	Amount        string // cash leg, if any
	Currency      string
	Ratio         string
	TransactionID string
}

// InputFiles names the per-section export files of one tax year. Empty
// paths mean the section was not exported and is treated as empty.
type InputFiles struct {
	Trades           string
	CashTransactions string
	SOYPositions     string
	EOYPositions     string
	CorporateActions string
}

// RawRecordSet bundles everything one run reads.
type RawRecordSet struct {
	Trades           []RawTrade
	CashTransactions []RawCashTransaction
	SOYPositions     []RawPosition
	EOYPositions     []RawPosition
	CorporateActions []RawCorporateAction
}
