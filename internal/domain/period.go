package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is a date range over which stock is counted and reconciled.
type Period struct {
	ID            string        `json:"id,omitempty"`
	PeriodName    string        `json:"periodName"`
	StartOfPeriod time.Time     `json:"startOfPeriod"`
	EndOfPeriod   time.Time     `json:"endOfPeriod"`
	Items         []*PeriodItem `json:"items"`
}

func NewPeriod() *Period {
	return &Period{Items: make([]*PeriodItem, 0)}
}

// InitialiseFromClone opens the period following source, carrying every
// item forward.
func InitialiseFromClone(source *Period) *Period {
	period := initialiseFrom(source)
	for _, item := range source.Items {
		period.Items = append(period.Items, item.CopyForNextPeriod())
	}
	return period
}

// InitialiseWithoutZeroCarriedItems opens the period following source,
// dropping items that had no stock at either end of it.
func InitialiseWithoutZeroCarriedItems(source *Period) *Period {
	period := initialiseFrom(source)
	for _, item := range source.Items {
		if !item.CarriesStock() {
			continue
		}
		period.Items = append(period.Items, item.CopyForNextPeriod())
	}
	return period
}

func initialiseFrom(source *Period) *Period {
	period := NewPeriod()
	period.StartOfPeriod = source.EndOfPeriod.AddDate(0, 0, 1)
	return period
}

// Length is the span from start to end, zero for an unbounded period.
func (p *Period) Length() time.Duration {
	if p.EndOfPeriod.Before(p.StartOfPeriod) {
		return 0
	}
	return p.EndOfPeriod.Sub(p.StartOfPeriod)
}

// Contains compares calendar dates only; both ends are inclusive.
func (p *Period) Contains(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(p.StartOfPeriod)) && !d.After(truncateDay(p.EndOfPeriod))
}

func (p *Period) FindItem(salesItemID string) *PeriodItem {
	for _, item := range p.Items {
		if item.SalesItemID == salesItemID {
			return item
		}
	}
	return nil
}

// ItemFor returns the period item for salesItem, adding an empty one when the
// item is new to the period.
func (p *Period) ItemFor(salesItem *SalesItem) *PeriodItem {
	if item := p.FindItem(salesItem.ID); item != nil {
		if item.SalesItem == nil {
			item.SalesItem = salesItem
		}
		return item
	}
	item := NewPeriodItem(salesItem)
	p.Items = append(p.Items, item)
	return item
}

type PeriodTotals struct {
	ItemCount         int             `json:"itemCount"`
	OpeningStockValue decimal.Decimal `json:"openingStockValue"`
	ClosingStockValue decimal.Decimal `json:"closingStockValue"`
	PurchasesEx       decimal.Decimal `json:"purchasesEx"`
	PurchasesInc      decimal.Decimal `json:"purchasesInc"`
	PurchasesTotal    decimal.Decimal `json:"purchasesTotal"`
	SalesInc          decimal.Decimal `json:"salesInc"`
	SalesEx           decimal.Decimal `json:"salesEx"`
	CostOfSales       decimal.Decimal `json:"costOfSales"`
	ActualGP          decimal.Decimal `json:"actualGP"`
}

func (p *Period) Totals() PeriodTotals {
	totals := PeriodTotals{ItemCount: len(p.Items)}
	for _, item := range p.Items {
		totals.OpeningStockValue = totals.OpeningStockValue.Add(item.OpeningStockValue())
		totals.ClosingStockValue = totals.ClosingStockValue.Add(item.ClosingStockValue())
		totals.PurchasesEx = totals.PurchasesEx.Add(item.PurchasesEx())
		totals.PurchasesInc = totals.PurchasesInc.Add(item.PurchasesInc())
		totals.PurchasesTotal = totals.PurchasesTotal.Add(item.PurchasesTotal())
		totals.SalesInc = totals.SalesInc.Add(item.SalesInc())
		totals.SalesEx = totals.SalesEx.Add(item.SalesEx())
		totals.CostOfSales = totals.CostOfSales.Add(item.CostOfSales())
	}
	totals.ActualGP = grossProfit(totals.SalesEx, totals.CostOfSales)
	return totals
}

type PeriodView struct {
	ID            string           `json:"id,omitempty"`
	PeriodName    string           `json:"periodName"`
	StartOfPeriod time.Time        `json:"startOfPeriod"`
	EndOfPeriod   time.Time        `json:"endOfPeriod"`
	Items         []PeriodItemView `json:"items"`
	Totals        PeriodTotals     `json:"totals"`
}

func (p *Period) View() PeriodView {
	items := make([]PeriodItemView, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.View())
	}
	return PeriodView{
		ID:            p.ID,
		PeriodName:    p.PeriodName,
		StartOfPeriod: p.StartOfPeriod,
		EndOfPeriod:   p.EndOfPeriod,
		Items:         items,
		Totals:        p.Totals(),
	}
}

type PeriodSummary struct {
	ID            string       `json:"id"`
	PeriodName    string       `json:"periodName"`
	StartOfPeriod time.Time    `json:"startOfPeriod"`
	EndOfPeriod   time.Time    `json:"endOfPeriod"`
	Totals        PeriodTotals `json:"totals"`
}

func (p *Period) Summary() PeriodSummary {
	return PeriodSummary{
		ID:            p.ID,
		PeriodName:    p.PeriodName,
		StartOfPeriod: p.StartOfPeriod,
		EndOfPeriod:   p.EndOfPeriod,
		Totals:        p.Totals(),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
