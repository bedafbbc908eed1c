package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemReceived is one delivery line. It is never modified once recorded.
type ItemReceived struct {
	ID                string          `json:"id,omitempty"`
	InvoiceID         string          `json:"invoiceId,omitempty"`
	ReceivedDate      time.Time       `json:"receivedDate"`
	Quantity          int             `json:"quantity"`
	InvoicedAmountEx  decimal.Decimal `json:"invoicedAmountEx"`
	InvoicedAmountInc decimal.Decimal `json:"invoicedAmountInc"`
}

// PeriodItem is the stock ledger of one sales item within a period. The
// SalesItem is shared with the catalogue and with the same item in other
// periods; SalesItemID is the key used to resolve it after loading.
type PeriodItem struct {
	ID               string          `json:"id,omitempty"`
	SalesItemID      string          `json:"salesItemId"`
	SalesItem        *SalesItem      `json:"-"`
	OpeningStock     decimal.Decimal `json:"openingStock"`
	ClosingStock     decimal.Decimal `json:"closingStock"`
	ClosingStockExpr string          `json:"closingStockExpr,omitempty"`
	ItemsReceived    []ItemReceived  `json:"itemsReceived"`
}

func NewPeriodItem(salesItem *SalesItem) *PeriodItem {
	item := &PeriodItem{
		SalesItem:     salesItem,
		ItemsReceived: make([]ItemReceived, 0),
	}
	if salesItem != nil {
		item.SalesItemID = salesItem.ID
	}
	return item
}

func (p *PeriodItem) ReceiveItems(receivedDate time.Time, quantity int, invoicedAmountEx decimal.Decimal, invoicedAmountInc decimal.Decimal) {
	p.AddReceipt(ItemReceived{
		ReceivedDate:      receivedDate,
		Quantity:          quantity,
		InvoicedAmountEx:  invoicedAmountEx,
		InvoicedAmountInc: invoicedAmountInc,
	})
}

func (p *PeriodItem) AddReceipt(receipt ItemReceived) {
	if p.ItemsReceived == nil {
		p.ItemsReceived = make([]ItemReceived, 0, 1)
	}
	p.ItemsReceived = append(p.ItemsReceived, receipt)
}

// CopyForNextPeriod carries the closing count forward as the next opening
// count. Receipts stay with this period.
func (p *PeriodItem) CopyForNextPeriod() *PeriodItem {
	next := NewPeriodItem(p.SalesItem)
	next.SalesItemID = p.SalesItemID
	next.OpeningStock = p.ClosingStock
	return next
}

// CarriesStock reports whether the item had any stock at either end of the
// period.
func (p *PeriodItem) CarriesStock() bool {
	return !p.OpeningStock.IsZero() || !p.ClosingStock.IsZero()
}

func (p *PeriodItem) ContainersReceived() int {
	total := 0
	for _, r := range p.ItemsReceived {
		total += r.Quantity
	}
	return total
}

func (p *PeriodItem) PurchasesEx() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.ItemsReceived {
		total = total.Add(r.InvoicedAmountEx)
	}
	return total
}

func (p *PeriodItem) PurchasesInc() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.ItemsReceived {
		total = total.Add(r.InvoicedAmountInc)
	}
	return total
}

// PurchasesTotal is the ex-tax cost of goods received. Lines recorded only
// with a tax inclusive amount have the item's tax rate taken off.
func (p *PeriodItem) PurchasesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.ItemsReceived {
		if !r.InvoicedAmountEx.IsZero() {
			total = total.Add(r.InvoicedAmountEx)
			continue
		}
		if p.SalesItem != nil {
			total = total.Add(p.SalesItem.ExTax(r.InvoicedAmountInc))
		}
	}
	return total
}

// Sales is the quantity sold, in the container's measure.
func (p *PeriodItem) Sales() decimal.Decimal {
	received := decimal.Zero
	if p.SalesItem != nil {
		received = decimal.NewFromInt(int64(p.ContainersReceived())).Mul(p.SalesItem.ContainerSize)
	}
	return p.OpeningStock.Add(received).Sub(p.ClosingStock)
}

func (p *PeriodItem) SalesUnits() decimal.Decimal {
	if p.SalesItem == nil || p.SalesItem.UnitOfSale.IsZero() {
		return decimal.Zero
	}
	return p.Sales().Div(p.SalesItem.UnitOfSale)
}

func (p *PeriodItem) SalesInc() decimal.Decimal {
	if p.SalesItem == nil {
		return decimal.Zero
	}
	return p.SalesUnits().Mul(p.SalesItem.SalesPrice)
}

func (p *PeriodItem) SalesEx() decimal.Decimal {
	if p.SalesItem == nil {
		return decimal.Zero
	}
	return p.SalesItem.ExTax(p.SalesInc())
}

func (p *PeriodItem) CostOfSales() decimal.Decimal {
	if p.SalesItem == nil {
		return decimal.Zero
	}
	return p.SalesUnits().Mul(p.SalesItem.CostPerUnitOfSale())
}

func (p *PeriodItem) ActualGP() decimal.Decimal {
	return grossProfit(p.SalesEx(), p.CostOfSales())
}

func (p *PeriodItem) OpeningStockValue() decimal.Decimal {
	if p.SalesItem == nil {
		return decimal.Zero
	}
	return p.SalesItem.StockValue(p.OpeningStock)
}

func (p *PeriodItem) ClosingStockValue() decimal.Decimal {
	if p.SalesItem == nil {
		return decimal.Zero
	}
	return p.SalesItem.StockValue(p.ClosingStock)
}

func grossProfit(salesEx decimal.Decimal, costOfSales decimal.Decimal) decimal.Decimal {
	if salesEx.IsZero() {
		return decimal.Zero
	}
	return salesEx.Sub(costOfSales).Div(salesEx)
}

type PeriodItemView struct {
	PeriodItem
	SalesItemName       string          `json:"salesItemName"`
	SalesItemLedgerCode int             `json:"salesItemLedgerCode"`
	ContainerSize       decimal.Decimal `json:"container"`
	ContainersReceived  int             `json:"containersReceived"`
	PurchasesEx         decimal.Decimal `json:"purchasesEx"`
	PurchasesInc        decimal.Decimal `json:"purchasesInc"`
	PurchasesTotal      decimal.Decimal `json:"purchasesTotal"`
	Sales               decimal.Decimal `json:"salesQty"`
	SalesUnits          decimal.Decimal `json:"salesUnits"`
	SalesInc            decimal.Decimal `json:"salesInc"`
	SalesEx             decimal.Decimal `json:"salesEx"`
	CostOfSales         decimal.Decimal `json:"costOfSales"`
	ActualGP            decimal.Decimal `json:"actualGP"`
}

func (p *PeriodItem) View() PeriodItemView {
	view := PeriodItemView{
		PeriodItem:         *p,
		ContainersReceived: p.ContainersReceived(),
		PurchasesEx:        p.PurchasesEx(),
		PurchasesInc:       p.PurchasesInc(),
		PurchasesTotal:     p.PurchasesTotal(),
		Sales:              p.Sales(),
		SalesUnits:         p.SalesUnits(),
		SalesInc:           p.SalesInc(),
		SalesEx:            p.SalesEx(),
		CostOfSales:        p.CostOfSales(),
		ActualGP:           p.ActualGP(),
	}
	if p.SalesItem != nil {
		view.SalesItemName = p.SalesItem.Name
		view.SalesItemLedgerCode = p.SalesItem.LedgerCode
		view.ContainerSize = p.SalesItem.ContainerSize
	}
	return view
}
