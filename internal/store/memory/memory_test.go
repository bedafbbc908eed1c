package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/store"
)

func TestSeededPeriodSharesSalesItemHandles(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	periods, err := s.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("expected 1 seeded period, got %d", len(periods))
	}
	period := periods[0]
	for _, item := range period.Items {
		if item.SalesItem == nil {
			t.Fatalf("expected sales item resolved for %s", item.SalesItemID)
		}
		if item.ItemsReceived == nil {
			t.Fatalf("expected receipts collection for %s", item.SalesItemID)
		}
	}

	// A second period holding the same sales item, loaded in one call, must
	// share the handle.
	next := domain.InitialiseFromClone(period)
	next.PeriodName = "next"
	next.EndOfPeriod = next.StartOfPeriod.AddDate(0, 1, -1)
	if _, err := s.CreatePeriod(ctx, next); err != nil {
		t.Fatalf("create period: %v", err)
	}
	periods, err = s.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	newer, older := periods[0], periods[1]
	if newer.PeriodName != "next" {
		t.Fatalf("expected newest period first, got %q", newer.PeriodName)
	}
	if newer.FindItem("si-bitter").SalesItem != older.FindItem("si-bitter").SalesItem {
		t.Fatalf("expected shared sales item handle across periods")
	}
}

func TestGetPeriodReturnsIsolatedCopies(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	first, err := s.GetPeriod(ctx, "period-seed")
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	first.Items[0].ClosingStock = decimal.NewFromInt(999)
	first.Items[0].ReceiveItems(time.Now(), 1, decimal.NewFromInt(1), decimal.Zero)

	second, err := s.GetPeriod(ctx, "period-seed")
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	if second.Items[0].ClosingStock.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected store state unaffected by caller mutation")
	}
	if len(second.Items[0].ItemsReceived) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(second.Items[0].ItemsReceived))
	}
}

func TestDeleteSalesItemReferencedByPeriodConflicts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.DeleteSalesItem(ctx, "si-bitter"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.DeleteSalesItem(ctx, "si-gin"); err != nil {
		t.Fatalf("expected unreferenced item delete to succeed, got %v", err)
	}
	if _, err := s.GetSalesItem(ctx, "si-gin"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeleteSalesItemOnInvoiceConflicts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	delivered := time.Date(2001, 1, 5, 0, 0, 0, 0, time.UTC)

	invoice, err := s.CreateInvoice(ctx, domain.Invoice{
		Supplier:     "Valley Brewery",
		InvoiceDate:  delivered,
		DeliveryDate: delivered,
		InvoiceLines: []domain.InvoiceLine{{SalesItemID: "si-gin", Quantity: 1, InvoicedAmountEx: decimal.RequireFromString("17.80")}},
	}, nil)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := s.DeleteSalesItem(ctx, "si-gin"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for invoiced item, got %v", err)
	}
	if _, err := s.GetSalesItem(ctx, "si-gin"); err != nil {
		t.Fatalf("expected invoiced item kept, got %v", err)
	}
	stored, err := s.GetInvoice(ctx, invoice.ID)
	if err != nil || stored.InvoiceLines[0].SalesItemID != "si-gin" {
		t.Fatalf("expected invoice untouched, got %v", err)
	}
}

func TestSupplierNamesAreUnique(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.CreateSupplier(ctx, domain.Supplier{Name: "  valley brewery "}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate supplier, got %v", err)
	}
	created, err := s.CreateSupplier(ctx, domain.Supplier{Name: "Wine Direct"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	found, err := s.FindSupplierByName(ctx, "WINE DIRECT")
	if err != nil {
		t.Fatalf("find supplier: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}
}

func TestFindPeriodContaining(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	seed, _ := s.GetPeriod(ctx, "period-seed")
	found, err := s.FindPeriodContaining(ctx, seed.StartOfPeriod.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("find containing: %v", err)
	}
	if found.ID != "period-seed" {
		t.Fatalf("expected seeded period, got %s", found.ID)
	}
	if _, err := s.FindPeriodContaining(ctx, seed.EndOfPeriod.AddDate(1, 0, 0)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateInvoiceSavesPeriod(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	period, _ := s.GetPeriod(ctx, "period-seed")
	gin, _ := s.GetSalesItem(ctx, "si-gin")
	period.ItemFor(gin).ReceiveItems(period.StartOfPeriod, 3, decimal.RequireFromString("53.40"), decimal.Zero)

	invoice, err := s.CreateInvoice(ctx, domain.Invoice{
		Supplier:     "Valley Brewery",
		InvoiceDate:  period.StartOfPeriod,
		DeliveryDate: period.StartOfPeriod,
		InvoiceLines: []domain.InvoiceLine{{SalesItemID: "si-gin", Quantity: 3, InvoicedAmountEx: decimal.RequireFromString("53.40")}},
	}, period)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if invoice.PeriodID != "period-seed" {
		t.Fatalf("expected invoice linked to period, got %q", invoice.PeriodID)
	}

	reloaded, _ := s.GetPeriod(ctx, "period-seed")
	item := reloaded.FindItem("si-gin")
	if item == nil || item.ContainersReceived() != 3 {
		t.Fatalf("expected gin receipt saved with the invoice")
	}

	invoices, err := s.ListInvoices(ctx, 10)
	if err != nil || len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d (%v)", len(invoices), err)
	}
}

func TestSavePeriodRejectsUnknownSalesItem(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	period, _ := s.GetPeriod(ctx, "period-seed")
	period.Items = append(period.Items, domain.NewPeriodItem(&domain.SalesItem{ID: "si-missing"}))

	if _, err := s.SavePeriod(ctx, period); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}
