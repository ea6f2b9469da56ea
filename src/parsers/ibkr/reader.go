package ibkr

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
)

// Reader maps IBKR Flex Query CSV exports (one file per section) into the
// raw record types. It is a pure validation/mapping layer: no
// interpretation, no classification.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Read loads every section that has a file path; missing sections stay
// empty. A file that cannot be opened is an error, a row that cannot be
// mapped is a logged skip.
func (r *Reader) Read(inputs models.InputFiles) (*models.RawRecordSet, error) {
	set := &models.RawRecordSet{}

	if err := readSection(inputs.Trades, "trades", func(row record) {
		set.Trades = append(set.Trades, models.RawTrade{
			AssetCategory:  row.get("AssetClass"),
			SubCategory:    row.get("SubCategory"),
			Symbol:         row.get("Symbol"),
			ISIN:           row.get("ISIN"),
			Conid:          row.get("Conid"),
			Description:    row.get("Description"),
			TradeDate:      row.get("TradeDate"),
			SettlementDate: row.get("SettleDateTarget"),
			Quantity:       row.get("Quantity"),
			Price:          row.get("TradePrice"),
			Proceeds:       row.get("Proceeds"),
			Currency:       row.get("CurrencyPrimary"),
			Commission:     row.get("IBCommission"),
			CommissionCcy:  row.get("IBCommissionCurrency"),
			Multiplier:     row.get("Multiplier"),
			PutCall:        row.get("Put/Call"),
			Strike:         row.get("Strike"),
			Expiry:         row.get("Expiry"),
			BuySell:        row.get("Buy/Sell"),
			OpenClose:      row.get("Open/CloseIndicator"),
			TransactionID:  row.get("TransactionID"),
			Notes:          row.get("Notes/Codes"),
		})
	}); err != nil {
		return nil, err
	}

	if err := readSection(inputs.CashTransactions, "cash transactions", func(row record) {
		set.CashTransactions = append(set.CashTransactions, models.RawCashTransaction{
			Type:          row.get("Type"),
			AssetCategory: row.get("AssetClass"),
			Symbol:        row.get("Symbol"),
			ISIN:          row.get("ISIN"),
			Conid:         row.get("Conid"),
			Description:   row.get("Description"),
			Date:          row.get("SettleDate"),
			Amount:        row.get("Amount"),
			Currency:      row.get("CurrencyPrimary"),
			TransactionID: row.get("TransactionID"),
		})
	}); err != nil {
		return nil, err
	}

	position := func(rows *[]models.RawPosition) func(record) {
		return func(row record) {
			*rows = append(*rows, models.RawPosition{
				AssetCategory: row.get("AssetClass"),
				SubCategory:   row.get("SubCategory"),
				Symbol:        row.get("Symbol"),
				ISIN:          row.get("ISIN"),
				Conid:         row.get("Conid"),
				Description:   row.get("Description"),
				Currency:      row.get("CurrencyPrimary"),
				Quantity:      row.get("Quantity"),
				CostBasis:     row.get("CostBasisMoney"),
				MarkPrice:     row.get("MarkPrice"),
				PositionValue: row.get("PositionValue"),
			})
		}
	}
	if err := readSection(inputs.SOYPositions, "start-of-year positions", position(&set.SOYPositions)); err != nil {
		return nil, err
	}
	if err := readSection(inputs.EOYPositions, "end-of-year positions", position(&set.EOYPositions)); err != nil {
		return nil, err
	}

	if err := readSection(inputs.CorporateActions, "corporate actions", func(row record) {
		set.CorporateActions = append(set.CorporateActions, models.RawCorporateAction{
			Type:          row.get("Type"),
			AssetCategory: row.get("AssetClass"),
			Symbol:        row.get("Symbol"),
			ISIN:          row.get("ISIN"),
			Conid:         row.get("Conid"),
			Description:   row.get("Description"),
			Date:          row.get("Date/Time"),
			Quantity:      row.get("Quantity"),
			Amount:        row.get("Amount"),
			Currency:      row.get("CurrencyPrimary"),
			Ratio:         row.get("Ratio"),
			TransactionID: row.get("TransactionID"),
		})
	}); err != nil {
		return nil, err
	}

	logger.L.Info("IBKR export read",
		"trades", len(set.Trades),
		"cashTransactions", len(set.CashTransactions),
		"soyPositions", len(set.SOYPositions),
		"eoyPositions", len(set.EOYPositions),
		"corporateActions", len(set.CorporateActions))
	return set, nil
}

// record is one CSV row with header-name access.
type record struct {
	header map[string]int
	fields []string
}

func (r record) get(column string) string {
	idx, ok := r.header[strings.ToLower(column)]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// readSection streams one CSV file through the row callback. Malformed rows
// are skipped with a diagnostic.
func readSection(path, section string, consume func(record)) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ibkr reader: opening %s file: %w", section, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		return fmt.Errorf("ibkr reader: %s file has no header: %w", section, err)
	}
	header := make(map[string]int, len(headerRow))
	for i, col := range headerRow {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}

	line := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.L.Warn("Skipping malformed row", "section", section, "line", line, "error", err)
			continue
		}
		consume(record{header: header, fields: fields})
	}
	return nil
}
