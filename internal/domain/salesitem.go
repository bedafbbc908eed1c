package domain

import "github.com/shopspring/decimal"

// SalesItem is a catalogue entry: something bought by the container and sold
// by the unit of sale (a pint from an 11 gallon keg, a 35ml measure from a
// 0.7 litre bottle).
type SalesItem struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	LedgerCode         int             `json:"ledgerCode"`
	SalesUnitType      string          `json:"salesUnitType,omitempty"`
	ContainerSize      decimal.Decimal `json:"containerSize"`
	UnitOfSale         decimal.Decimal `json:"unitOfSale"`
	CostPerContainer   decimal.Decimal `json:"costPerContainer"`
	TaxRate            decimal.Decimal `json:"taxRate"`
	SalesPrice         decimal.Decimal `json:"salesPrice"`
	UllagePerContainer int             `json:"ullagePerContainer"`
}

// UnitsPerContainer is how many units of sale one container yields.
func (s *SalesItem) UnitsPerContainer() decimal.Decimal {
	if s.ContainerSize.IsZero() || s.UnitOfSale.IsZero() {
		return decimal.Zero
	}
	return s.ContainerSize.Div(s.UnitOfSale)
}

func (s *SalesItem) CostPerUnitOfSale() decimal.Decimal {
	if s.CostPerContainer.IsZero() {
		return decimal.Zero
	}
	units := s.UnitsPerContainer()
	if units.IsZero() {
		return decimal.Zero
	}
	return s.CostPerContainer.Div(units)
}

// IdealGP is the margin achieved if every unit of sale is sold at SalesPrice.
func (s *SalesItem) IdealGP() decimal.Decimal {
	if s.SalesPrice.IsZero() {
		return decimal.Zero
	}
	return s.SalesPrice.Sub(s.CostPerUnitOfSale()).Div(s.SalesPrice)
}

// ExTax removes this item's tax rate from a tax inclusive amount.
func (s *SalesItem) ExTax(amountInc decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(s.TaxRate)
	if divisor.IsZero() {
		return decimal.Zero
	}
	return amountInc.Div(divisor)
}

// StockValue prices a stock count (in the container's measure) at cost.
func (s *SalesItem) StockValue(count decimal.Decimal) decimal.Decimal {
	if s.ContainerSize.IsZero() {
		return decimal.Zero
	}
	return count.Div(s.ContainerSize).Mul(s.CostPerContainer)
}

type SalesItemView struct {
	SalesItem
	CostPerUnitOfSale decimal.Decimal `json:"costPerUnitOfSale"`
	IdealGP           decimal.Decimal `json:"idealGP"`
}

func (s *SalesItem) View() SalesItemView {
	return SalesItemView{
		SalesItem:         *s,
		CostPerUnitOfSale: s.CostPerUnitOfSale(),
		IdealGP:           s.IdealGP(),
	}
}

// SalesUnit is one of the standard measures a sales item can be sold in.
type SalesUnit struct {
	Name string          `json:"name"`
	Size decimal.Decimal `json:"size"`
}

const OtherSalesUnit = "Other"

// Draught measures are in gallons, spirits and wine in litres.
var SalesUnits = []SalesUnit{
	{Name: "Pint", Size: decimal.RequireFromString("0.125")},
	{Name: "Half", Size: decimal.RequireFromString("0.0625")},
	{Name: "Spirit 25ml", Size: decimal.RequireFromString("0.025")},
	{Name: "Spirit 35ml", Size: decimal.RequireFromString("0.035")},
	{Name: "Wine 125ml", Size: decimal.RequireFromString("0.125")},
	{Name: "Wine 175ml", Size: decimal.RequireFromString("0.175")},
	{Name: "Wine 250ml", Size: decimal.RequireFromString("0.25")},
	{Name: "Bottle", Size: decimal.NewFromInt(1)},
	{Name: OtherSalesUnit, Size: decimal.Zero},
}

// LookupSalesUnit finds a standard unit by name. "Other" is reported as not
// found since it carries no size.
func LookupSalesUnit(name string) (SalesUnit, bool) {
	for _, unit := range SalesUnits {
		if unit.Name == name && unit.Name != OtherSalesUnit {
			return unit, true
		}
	}
	return SalesUnit{}, false
}
