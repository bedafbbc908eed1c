// Package report builds period stock reports and renders them as CSV or
// printable HTML.
package report

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"html/template"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"stockcheck/backend/internal/domain"
)

// Build summarises period line by line, ordered by ledger code then name.
func Build(period *domain.Period, generatedAt time.Time) *domain.PeriodReport {
	lines := make([]domain.PeriodReportLine, 0, len(period.Items))
	for _, item := range period.Items {
		line := domain.PeriodReportLine{
			OpeningStock:       item.OpeningStock,
			ContainersReceived: item.ContainersReceived(),
			ClosingStock:       item.ClosingStock,
			Sales:              item.Sales(),
			PurchasesTotal:     item.PurchasesTotal(),
			SalesEx:            item.SalesEx(),
			CostOfSales:        item.CostOfSales(),
			ActualGP:           item.ActualGP(),
		}
		if item.SalesItem != nil {
			line.LedgerCode = item.SalesItem.LedgerCode
			line.Name = item.SalesItem.Name
			line.IdealGP = item.SalesItem.IdealGP()
		} else {
			line.Name = item.SalesItemID
		}
		lines = append(lines, line)
	}
	slices.SortStableFunc(lines, func(a, b domain.PeriodReportLine) int {
		if c := cmp.Compare(a.LedgerCode, b.LedgerCode); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return &domain.PeriodReport{
		PeriodID:      period.ID,
		PeriodName:    period.PeriodName,
		StartOfPeriod: period.StartOfPeriod,
		EndOfPeriod:   period.EndOfPeriod,
		Lines:         lines,
		Totals:        period.Totals(),
		GeneratedAt:   generatedAt.UTC(),
	}
}

// Renderer formats reports for one locale. HTML output groups digits the way
// the locale does; CSV keeps plain decimals so spreadsheets can parse them.
type Renderer struct {
	printer *message.Printer
}

func NewRenderer(locale string) (*Renderer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, err
	}
	return &Renderer{printer: message.NewPrinter(tag)}, nil
}

// Money formats v to two decimal places.
func (r *Renderer) Money(v decimal.Decimal) string {
	return r.printer.Sprintf("%.2f", v.Round(2).InexactFloat64())
}

// Quantity formats a stock count to at most three decimal places.
func (r *Renderer) Quantity(v decimal.Decimal) string {
	return r.printer.Sprint(number.Decimal(v.Round(3).InexactFloat64(), number.MaxFractionDigits(3)))
}

// Percent formats a gross profit ratio such as 0.5 as "50.0%".
func (r *Renderer) Percent(v decimal.Decimal) string {
	return r.printer.Sprintf("%.1f%%", v.Shift(2).Round(1).InexactFloat64())
}

var csvHeader = []string{
	"ledger_code", "name", "opening_stock", "containers_received", "closing_stock",
	"sales_qty", "purchases", "sales_ex", "cost_of_sales", "ideal_gp", "actual_gp",
}

func (r *Renderer) CSV(w io.Writer, report *domain.PeriodReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, line := range report.Lines {
		if err := cw.Write([]string{
			strconv.Itoa(line.LedgerCode),
			line.Name,
			line.OpeningStock.String(),
			strconv.Itoa(line.ContainersReceived),
			line.ClosingStock.String(),
			line.Sales.String(),
			line.PurchasesTotal.StringFixed(2),
			line.SalesEx.StringFixed(2),
			line.CostOfSales.StringFixed(2),
			line.IdealGP.StringFixed(4),
			line.ActualGP.StringFixed(4),
		}); err != nil {
			return err
		}
	}
	totals := report.Totals
	if err := cw.Write([]string{
		"", "TOTAL", "", "", "", "",
		totals.PurchasesTotal.StringFixed(2),
		totals.SalesEx.StringFixed(2),
		totals.CostOfSales.StringFixed(2),
		"",
		totals.ActualGP.StringFixed(4),
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

var periodReportHTMLTmpl = template.Must(template.New("period-report").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2 Jan 2006") },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Stock Report {{.Report.PeriodName}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    tfoot td { font-weight: bold; }
  </style>
</head>
<body>
  <h2>Stock Report {{.Report.PeriodName}}</h2>
  <p>{{date .Report.StartOfPeriod}} to {{date .Report.EndOfPeriod}}</p>
  <table>
    <thead><tr><th>Code</th><th>Item</th><th>Opening</th><th>Received</th><th>Closing</th><th>Sales</th><th>Purchases</th><th>Sales Ex</th><th>Cost of Sales</th><th>Ideal GP</th><th>Actual GP</th></tr></thead>
    <tbody>{{range .Report.Lines}}<tr><td>{{.LedgerCode}}</td><td>{{.Name}}</td><td class="num">{{$.R.Quantity .OpeningStock}}</td><td class="num">{{.ContainersReceived}}</td><td class="num">{{$.R.Quantity .ClosingStock}}</td><td class="num">{{$.R.Quantity .Sales}}</td><td class="num">{{$.R.Money .PurchasesTotal}}</td><td class="num">{{$.R.Money .SalesEx}}</td><td class="num">{{$.R.Money .CostOfSales}}</td><td class="num">{{$.R.Percent .IdealGP}}</td><td class="num">{{$.R.Percent .ActualGP}}</td></tr>
    {{end}}</tbody>
    <tfoot><tr><td></td><td>Total</td><td class="num">{{.R.Money .Report.Totals.OpeningStockValue}}</td><td></td><td class="num">{{.R.Money .Report.Totals.ClosingStockValue}}</td><td></td><td class="num">{{.R.Money .Report.Totals.PurchasesTotal}}</td><td class="num">{{.R.Money .Report.Totals.SalesEx}}</td><td class="num">{{.R.Money .Report.Totals.CostOfSales}}</td><td></td><td class="num">{{.R.Percent .Report.Totals.ActualGP}}</td></tr></tfoot>
  </table>
</body>
</html>
`))

func (r *Renderer) HTML(w io.Writer, report *domain.PeriodReport) error {
	var buf bytes.Buffer
	if err := periodReportHTMLTmpl.Execute(&buf, struct {
		R      *Renderer
		Report *domain.PeriodReport
	}{R: r, Report: report}); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
