package reporting

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/models"
)

// RenderTable is the intermediate table model. Building the model separately
// from printing keeps the report content testable without parsing terminal
// output.
type RenderTable struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer []string
	Notes  []string
}

// Sink receives the final pipeline result.
type Sink interface {
	Write(res *models.Result) error
}

// ConsoleSink renders the declaration tables to a writer, normally stdout.
// Log output goes to stderr so the tables stay pipeable.
type ConsoleSink struct {
	out      io.Writer
	resolver *assets.Resolver
	taxYear  int
}

func NewConsoleSink(out io.Writer, resolver *assets.Resolver, taxYear int) *ConsoleSink {
	return &ConsoleSink{out: out, resolver: resolver, taxYear: taxYear}
}

func (s *ConsoleSink) Write(res *models.Result) error {
	tables := []*RenderTable{
		s.realizedGainsTable(res),
		s.categorySummaryTable(res),
		s.incomeTable(res),
		s.openLotsTable(res),
		s.diagnosticsTable(res),
	}
	for _, tbl := range tables {
		if tbl == nil {
			continue
		}
		printTable(s.out, tbl)
	}
	return nil
}

func (s *ConsoleSink) realizedGainsTable(res *models.Result) *RenderTable {
	if len(res.RealizedGains) == 0 {
		return nil
	}
	tbl := &RenderTable{
		Title: fmt.Sprintf("Realized gains and losses %d", s.taxYear),
		Header: []string{"Asset", "Category", "Type", "Acquired", "Realized",
			"Days", "Quantity", "Cost EUR", "Proceeds EUR", "Gain EUR"},
	}
	total := decimal.Zero
	for _, g := range res.RealizedGains {
		total = total.Add(g.GainEUR)
		tbl.Rows = append(tbl.Rows, []string{
			g.AssetName,
			string(g.TaxCategory),
			string(g.Realization),
			g.AcquisitionDate,
			g.RealizationDate,
			fmt.Sprintf("%d", g.HoldingDays),
			g.Quantity.String(),
			currStr(g.CostBasisEUR),
			currStr(g.ProceedsEUR),
			signedCurrStr(g.GainEUR),
		})
	}
	tbl.Footer = []string{"", "", "", "", "", "", "", "", "Total", signedCurrStr(total)}
	return tbl
}

func (s *ConsoleSink) categorySummaryTable(res *models.Result) *RenderTable {
	if len(res.RealizedGains) == 0 && res.StillhalterIncomeEUR.IsZero() {
		return nil
	}
	type bucket struct {
		count int
		gain  decimal.Decimal
	}
	byCategory := map[models.TaxCategory]*bucket{}
	for _, g := range res.RealizedGains {
		b := byCategory[g.TaxCategory]
		if b == nil {
			b = &bucket{}
			byCategory[g.TaxCategory] = b
		}
		b.count++
		b.gain = b.gain.Add(g.GainEUR)
	}

	categories := make([]models.TaxCategory, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	tbl := &RenderTable{
		Title:  "Gains by tax category",
		Header: []string{"Category", "Disposals", "Net Gain EUR"},
	}
	for _, c := range categories {
		b := byCategory[c]
		tbl.Rows = append(tbl.Rows, []string{
			string(c), fmt.Sprintf("%d", b.count), signedCurrStr(b.gain),
		})
	}
	if !res.StillhalterIncomeEUR.IsZero() {
		tbl.Rows = append(tbl.Rows, []string{
			"STILLHALTER", "", signedCurrStr(res.StillhalterIncomeEUR),
		})
		tbl.Notes = append(tbl.Notes,
			"Stillhalter = premiums from expired short options, taxed as other income")
	}
	return tbl
}

func (s *ConsoleSink) incomeTable(res *models.Result) *RenderTable {
	if len(res.Income) == 0 {
		return nil
	}
	tbl := &RenderTable{
		Title:  "Investment income by year and source country",
		Header: []string{"Year", "Country", "Gross EUR", "Withheld EUR"},
	}

	years := make([]int, 0, len(res.Income))
	for y := range res.Income {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		countries := make([]string, 0, len(res.Income[y]))
		for c := range res.Income[y] {
			countries = append(countries, c)
		}
		sort.Strings(countries)
		for _, c := range countries {
			sum := res.Income[y][c]
			tbl.Rows = append(tbl.Rows, []string{
				fmt.Sprintf("%d", y), c, currStr(sum.GrossEUR), currStr(sum.TaxedEUR),
			})
		}
	}
	return tbl
}

func (s *ConsoleSink) openLotsTable(res *models.Result) *RenderTable {
	if len(res.EndOfYearLots) == 0 {
		return nil
	}
	assetIDs := make([]int64, 0, len(res.EndOfYearLots))
	for id := range res.EndOfYearLots {
		assetIDs = append(assetIDs, id)
	}
	sort.Slice(assetIDs, func(i, j int) bool { return assetIDs[i] < assetIDs[j] })

	tbl := &RenderTable{
		Title:  fmt.Sprintf("Open positions at end of %d", s.taxYear),
		Header: []string{"Asset", "Acquired", "Quantity", "Unit Cost EUR", "Cost EUR"},
	}
	for _, id := range assetIDs {
		name := fmt.Sprintf("asset %d", id)
		if a := s.resolver.GetAssetByID(id); a != nil {
			name = a.DisplayName()
		}
		for _, lot := range res.EndOfYearLots[id] {
			tbl.Rows = append(tbl.Rows, []string{
				name,
				lot.AcquisitionDate,
				lot.Quantity.String(),
				currStr(lot.UnitCostEUR),
				currStr(lot.CostEUR),
			})
		}
	}
	return tbl
}

func (s *ConsoleSink) diagnosticsTable(res *models.Result) *RenderTable {
	tbl := &RenderTable{
		Title:  "Run diagnostics",
		Header: []string{"Check", "Count"},
		Rows: [][]string{
			{"End-of-year quantity mismatches", fmt.Sprintf("%d", res.EOYMismatches)},
			{"Unlinked withholding tax events", fmt.Sprintf("%d", len(res.UnlinkedWithholding))},
			{"Unmatched exercise trades", fmt.Sprintf("%d", len(res.UnlinkedOptionTrades))},
			{"Duplicate option lookup keys", fmt.Sprintf("%d", res.DuplicateOptionKeys)},
		},
	}
	for _, ev := range res.UnlinkedWithholding {
		tbl.Notes = append(tbl.Notes,
			fmt.Sprintf(" unlinked WHT: %s %s %s (%s)", ev.Date, ev.Amount, ev.Currency, ev.Description))
	}
	for _, ev := range res.UnlinkedOptionTrades {
		tbl.Notes = append(tbl.Notes,
			fmt.Sprintf(" unmatched exercise trade: %s tx=%s (%s)", ev.Date, ev.TransactionID, ev.Description))
	}
	return tbl
}

func printTable(w io.Writer, tbl *RenderTable) {
	if tbl.Title != "" {
		fmt.Fprintf(w, "\n%s\n", tbl.Title)
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader(tbl.Header)
	if len(tbl.Footer) > 0 {
		t.SetFooter(tbl.Footer)
	}
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	t.AppendBulk(tbl.Rows)
	t.Render()
	for _, note := range tbl.Notes {
		fmt.Fprintln(w, note)
	}
}

func currStr(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func signedCurrStr(d decimal.Decimal) string {
	if d.IsNegative() || d.IsZero() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
