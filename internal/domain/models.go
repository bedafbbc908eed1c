package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type SupplierCreateRequest struct {
	Name string `json:"name" binding:"required"`
}

type InvoiceLine struct {
	SalesItemID       string          `json:"salesItemId" binding:"required"`
	Quantity          int             `json:"quantity" binding:"gte=0"`
	InvoicedAmountEx  decimal.Decimal `json:"invoicedAmountEx"`
	InvoicedAmountInc decimal.Decimal `json:"invoicedAmountInc"`
}

type Invoice struct {
	ID            string        `json:"id"`
	Supplier      string        `json:"supplier"`
	InvoiceNumber string        `json:"invoiceNumber"`
	InvoiceDate   time.Time     `json:"invoiceDate"`
	DeliveryDate  time.Time     `json:"deliveryDate"`
	PeriodID      string        `json:"periodId,omitempty"`
	InvoiceLines  []InvoiceLine `json:"invoiceLines"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// TotalEx and TotalInc sum the lines as invoiced.
func (i Invoice) TotalEx() decimal.Decimal {
	total := decimal.Zero
	for _, line := range i.InvoiceLines {
		total = total.Add(line.InvoicedAmountEx)
	}
	return total
}

func (i Invoice) TotalInc() decimal.Decimal {
	total := decimal.Zero
	for _, line := range i.InvoiceLines {
		total = total.Add(line.InvoicedAmountInc)
	}
	return total
}

// MarshalJSON adds the invoice totals alongside the stored fields.
func (i Invoice) MarshalJSON() ([]byte, error) {
	type invoice Invoice
	return json.Marshal(struct {
		invoice
		TotalEx  decimal.Decimal `json:"totalEx"`
		TotalInc decimal.Decimal `json:"totalInc"`
	}{invoice(i), i.TotalEx(), i.TotalInc()})
}

type InvoiceCreateRequest struct {
	Supplier      string        `json:"supplier" binding:"required"`
	InvoiceNumber string        `json:"invoiceNumber"`
	InvoiceDate   time.Time     `json:"invoiceDate" binding:"required"`
	DeliveryDate  time.Time     `json:"deliveryDate"`
	InvoiceLines  []InvoiceLine `json:"invoiceLines" binding:"required,min=1,dive"`
}

type SalesItemRequest struct {
	Name               string           `json:"name" binding:"required"`
	LedgerCode         int              `json:"ledgerCode"`
	SalesUnitType      string           `json:"salesUnitType"`
	ContainerSize      decimal.Decimal  `json:"containerSize"`
	UnitOfSale         decimal.Decimal  `json:"unitOfSale"`
	CostPerContainer   decimal.Decimal  `json:"costPerContainer"`
	TaxRate            *decimal.Decimal `json:"taxRate,omitempty"`
	SalesPrice         decimal.Decimal  `json:"salesPrice"`
	UllagePerContainer int              `json:"ullagePerContainer"`
}

type PeriodItemRequest struct {
	SalesItemID      string          `json:"salesItemId" binding:"required"`
	OpeningStock     decimal.Decimal `json:"openingStock"`
	ClosingStock     decimal.Decimal `json:"closingStock"`
	ClosingStockExpr string          `json:"closingStockExpr"`
	ItemsReceived    []ItemReceived  `json:"itemsReceived"`
}

type PeriodRequest struct {
	PeriodName    string              `json:"periodName" binding:"required"`
	StartOfPeriod time.Time           `json:"startOfPeriod" binding:"required"`
	EndOfPeriod   time.Time           `json:"endOfPeriod" binding:"required"`
	Items         []PeriodItemRequest `json:"items" binding:"dive"`
}

type ReceiveItemsRequest struct {
	ReceivedDate      time.Time       `json:"receivedDate" binding:"required"`
	Quantity          int             `json:"quantity" binding:"gte=0"`
	InvoicedAmountEx  decimal.Decimal `json:"invoicedAmountEx"`
	InvoicedAmountInc decimal.Decimal `json:"invoicedAmountInc"`
}

// CarryMode selects which items a roll-forward takes into the next period.
type CarryMode string

const (
	CarryAll     CarryMode = "all"
	CarryStocked CarryMode = "stocked"
)

func ParseCarryMode(raw string) (CarryMode, bool) {
	switch CarryMode(raw) {
	case "":
		return CarryStocked, true
	case CarryAll, CarryStocked:
		return CarryMode(raw), true
	}
	return "", false
}

// NextPeriod rolls source forward according to mode.
func NextPeriod(source *Period, mode CarryMode) *Period {
	if mode == CarryAll {
		return InitialiseFromClone(source)
	}
	return InitialiseWithoutZeroCarriedItems(source)
}

type PeriodReportLine struct {
	LedgerCode         int             `json:"ledgerCode"`
	Name               string          `json:"name"`
	OpeningStock       decimal.Decimal `json:"openingStock"`
	ContainersReceived int             `json:"containersReceived"`
	ClosingStock       decimal.Decimal `json:"closingStock"`
	Sales              decimal.Decimal `json:"salesQty"`
	PurchasesTotal     decimal.Decimal `json:"purchasesTotal"`
	SalesEx            decimal.Decimal `json:"salesEx"`
	CostOfSales        decimal.Decimal `json:"costOfSales"`
	IdealGP            decimal.Decimal `json:"idealGP"`
	ActualGP           decimal.Decimal `json:"actualGP"`
}

type PeriodReport struct {
	PeriodID      string             `json:"periodId"`
	PeriodName    string             `json:"periodName"`
	StartOfPeriod time.Time          `json:"startOfPeriod"`
	EndOfPeriod   time.Time          `json:"endOfPeriod"`
	Lines         []PeriodReportLine `json:"lines"`
	Totals        PeriodTotals       `json:"totals"`
	GeneratedAt   time.Time          `json:"generatedAt"`
}
