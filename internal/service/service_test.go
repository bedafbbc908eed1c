package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/store"
	"stockcheck/backend/internal/store/memory"
)

type recordingCache struct {
	mu      sync.Mutex
	reports map[string]*domain.PeriodReport
	sets    int
	deletes []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{reports: make(map[string]*domain.PeriodReport)}
}

func (c *recordingCache) Get(_ context.Context, periodID string) (*domain.PeriodReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.reports[periodID]
	return report, ok, nil
}

func (c *recordingCache) Set(_ context.Context, periodID string, value *domain.PeriodReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.reports[periodID] = value
	return nil
}

func (c *recordingCache) Delete(_ context.Context, periodID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, periodID)
	delete(c.reports, periodID)
	return nil
}

func newTestService() (*Service, *recordingCache) {
	reports := newRecordingCache()
	svc := New(memory.NewSeeded(), reports, nil, Options{DefaultTaxRate: decimal.RequireFromString("0.2")})
	return svc, reports
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateSalesItemFillsDefaults(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.CreateSalesItem(context.Background(), domain.SalesItemRequest{
		Name:             "Guest Ale",
		LedgerCode:       1010,
		SalesUnitType:    "Pint",
		ContainerSize:    dec("11"),
		CostPerContainer: dec("110"),
		SalesPrice:       dec("3.00"),
	})
	if err != nil {
		t.Fatalf("create sales item: %v", err)
	}
	if !created.UnitOfSale.Equal(dec("0.125")) {
		t.Fatalf("expected pint unit of sale, got %s", created.UnitOfSale)
	}
	if !created.TaxRate.Equal(dec("0.2")) {
		t.Fatalf("expected default tax rate, got %s", created.TaxRate)
	}
	if !created.CostPerUnitOfSale.Equal(dec("1.25")) {
		t.Fatalf("expected cost per unit 1.25, got %s", created.CostPerUnitOfSale)
	}
}

func TestCreateSalesItemRejectsBadTaxRate(t *testing.T) {
	svc, _ := newTestService()
	rate := dec("1")

	_, err := svc.CreateSalesItem(context.Background(), domain.SalesItemRequest{Name: "Odd", TaxRate: &rate})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestDeleteReferencedSalesItemConflicts(t *testing.T) {
	svc, _ := newTestService()

	err := svc.DeleteSalesItem(context.Background(), "si-bitter")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreatePeriodEvaluatesClosingExpression(t *testing.T) {
	svc, _ := newTestService()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	view, err := svc.CreatePeriod(context.Background(), domain.PeriodRequest{
		PeriodName:    "January",
		StartOfPeriod: start,
		EndOfPeriod:   start.AddDate(0, 1, -1),
		Items: []domain.PeriodItemRequest{
			{SalesItemID: "si-bitter", OpeningStock: dec("10"), ClosingStockExpr: "3 + 7/8"},
		},
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.Items))
	}
	item := view.Items[0]
	if !item.ClosingStock.Equal(dec("3.875")) {
		t.Fatalf("expected closing 3.875, got %s", item.ClosingStock)
	}
	if item.ClosingStockExpr != "3 + 7/8" {
		t.Fatalf("expected expression kept, got %q", item.ClosingStockExpr)
	}
	if item.SalesItemName != "Best Bitter" {
		t.Fatalf("expected sales item resolved, got %q", item.SalesItemName)
	}
}

func TestCreatePeriodKeepsCountForUnfinishedExpression(t *testing.T) {
	svc, _ := newTestService()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	view, err := svc.CreatePeriod(context.Background(), domain.PeriodRequest{
		PeriodName:    "January",
		StartOfPeriod: start,
		EndOfPeriod:   start.AddDate(0, 1, -1),
		Items: []domain.PeriodItemRequest{
			{SalesItemID: "si-bitter", ClosingStock: dec("5"), ClosingStockExpr: "3 + "},
			{SalesItemID: "si-lager", ClosingStockExpr: "10/3"},
		},
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	bitter, lager := view.Items[0], view.Items[1]
	if !bitter.ClosingStock.Equal(dec("5")) || bitter.ClosingStockExpr != "3 +" {
		t.Fatalf("expected submitted count kept, got %s from %q", bitter.ClosingStock, bitter.ClosingStockExpr)
	}
	if !lager.ClosingStock.Equal(dec("3.333333")) {
		t.Fatalf("expected count rounded to 6 places, got %s", lager.ClosingStock)
	}
}

func TestCreatePeriodValidation(t *testing.T) {
	svc, _ := newTestService()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := func() domain.PeriodRequest {
		return domain.PeriodRequest{PeriodName: "January", StartOfPeriod: start, EndOfPeriod: start.AddDate(0, 1, -1)}
	}

	cases := map[string]func(*domain.PeriodRequest){
		"blank name":     func(r *domain.PeriodRequest) { r.PeriodName = "  " },
		"end before":     func(r *domain.PeriodRequest) { r.EndOfPeriod = start.AddDate(0, 0, -1) },
		"bad expression": func(r *domain.PeriodRequest) { r.Items = []domain.PeriodItemRequest{{SalesItemID: "si-bitter", ClosingStockExpr: "3 +"}} },
		"division by zero": func(r *domain.PeriodRequest) {
			r.Items = []domain.PeriodItemRequest{{SalesItemID: "si-bitter", ClosingStockExpr: "1/0"}}
		},
		"duplicate item": func(r *domain.PeriodRequest) {
			r.Items = []domain.PeriodItemRequest{{SalesItemID: "si-bitter"}, {SalesItemID: "si-bitter"}}
		},
		"unknown item": func(r *domain.PeriodRequest) { r.Items = []domain.PeriodItemRequest{{SalesItemID: "si-nope"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid()
			mutate(&req)
			if _, err := svc.CreatePeriod(context.Background(), req); !errors.Is(err, store.ErrInvalid) {
				t.Fatalf("expected invalid, got %v", err)
			}
		})
	}
}

func TestUpdatePeriodKeepsReceiptsWhenNotSupplied(t *testing.T) {
	svc, reports := newTestService()
	ctx := context.Background()

	seed, err := svc.GetPeriod(ctx, "period-seed")
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	req := domain.PeriodRequest{
		PeriodName:    seed.PeriodName,
		StartOfPeriod: seed.StartOfPeriod,
		EndOfPeriod:   seed.EndOfPeriod,
	}
	for _, item := range seed.Items {
		req.Items = append(req.Items, domain.PeriodItemRequest{
			SalesItemID:  item.SalesItemID,
			OpeningStock: item.OpeningStock,
			ClosingStock: dec("1"),
		})
	}

	updated, err := svc.UpdatePeriod(ctx, "period-seed", req)
	if err != nil {
		t.Fatalf("update period: %v", err)
	}
	var bitter *domain.PeriodItemView
	for i := range updated.Items {
		if updated.Items[i].SalesItemID == "si-bitter" {
			bitter = &updated.Items[i]
		}
	}
	if bitter == nil {
		t.Fatalf("expected bitter in updated period")
	}
	if bitter.ContainersReceived != 4 {
		t.Fatalf("expected receipts kept, got %d containers", bitter.ContainersReceived)
	}
	if !bitter.ClosingStock.Equal(dec("1")) {
		t.Fatalf("expected closing stock 1, got %s", bitter.ClosingStock)
	}
	if len(reports.deletes) != 1 || reports.deletes[0] != "period-seed" {
		t.Fatalf("expected report invalidated, got %v", reports.deletes)
	}
}

func TestDraftNextPeriodDropsZeroCarriedItems(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	seed, _ := svc.GetPeriod(ctx, "period-seed")

	draft, err := svc.DraftNextPeriod(ctx, "period-seed", domain.CarryStocked)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if len(draft.Items) != 3 {
		t.Fatalf("expected 3 stocked items, got %d", len(draft.Items))
	}
	if !draft.StartOfPeriod.Equal(seed.EndOfPeriod.AddDate(0, 0, 1)) {
		t.Fatalf("expected start the day after %s, got %s", seed.EndOfPeriod, draft.StartOfPeriod)
	}
	if draft.EndOfPeriod.Sub(draft.StartOfPeriod) != seed.EndOfPeriod.Sub(seed.StartOfPeriod) {
		t.Fatalf("expected draft to span as long as the source")
	}
	for _, item := range draft.Items {
		if len(item.ItemsReceived) != 0 {
			t.Fatalf("expected no receipts carried for %s", item.SalesItemID)
		}
		if item.SalesItemID == "si-bitter" && !item.OpeningStock.Equal(dec("14.5")) {
			t.Fatalf("expected opening = previous closing, got %s", item.OpeningStock)
		}
	}

	all, err := svc.DraftNextPeriod(ctx, "period-seed", domain.CarryAll)
	if err != nil {
		t.Fatalf("draft all: %v", err)
	}
	if len(all.Items) != 4 {
		t.Fatalf("expected all 4 items, got %d", len(all.Items))
	}

	periods, _ := svc.ListPeriods(ctx)
	if len(periods) != 1 {
		t.Fatalf("expected drafts unsaved, got %d periods", len(periods))
	}
}

func TestRollForwardConflictsWhenNextPeriodExists(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	next, err := svc.RollForward(ctx, "period-seed", domain.CarryStocked)
	if err != nil {
		t.Fatalf("roll forward: %v", err)
	}
	if next.ID == "" || len(next.Items) != 3 {
		t.Fatalf("unexpected next period: %+v", next)
	}
	if _, err := svc.RollForward(ctx, "period-seed", domain.CarryStocked); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRollOverDue(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 9, 0, 0, 0, time.UTC)

	svc := New(memory.NewSeeded(), nil, nil, Options{Now: func() time.Time { return firstOfMonth }})
	created, err := svc.RollOverDue(ctx, domain.CarryStocked)
	if err != nil {
		t.Fatalf("roll over: %v", err)
	}
	if created == nil {
		t.Fatalf("expected the ended seed period to roll over")
	}
	if created.PeriodName != created.StartOfPeriod.Format("2 January 2006") {
		t.Fatalf("expected period named after its start, got %q", created.PeriodName)
	}

	// The new period has not ended yet.
	again, err := svc.RollOverDue(ctx, domain.CarryStocked)
	if err != nil || again != nil {
		t.Fatalf("expected nothing due, got %v %v", again, err)
	}

	early := New(memory.NewSeeded(), nil, nil, Options{Now: func() time.Time { return firstOfMonth.AddDate(0, 0, -1) }})
	pending, err := early.RollOverDue(ctx, domain.CarryStocked)
	if err != nil || pending != nil {
		t.Fatalf("expected nothing due on the period's last day, got %v %v", pending, err)
	}
}

func TestReceiveItemsAddsItemNewToPeriod(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seed, _ := svc.GetPeriod(ctx, "period-seed")

	item, err := svc.ReceiveItems(ctx, "period-seed", "si-gin", domain.ReceiveItemsRequest{
		ReceivedDate:     seed.StartOfPeriod.AddDate(0, 0, 2),
		Quantity:         3,
		InvoicedAmountEx: dec("53.40"),
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if item.ContainersReceived != 3 || !item.PurchasesTotal.Equal(dec("53.40")) {
		t.Fatalf("unexpected item: containers %d purchases %s", item.ContainersReceived, item.PurchasesTotal)
	}

	if _, err := svc.ReceiveItems(ctx, "period-seed", "si-gin", domain.ReceiveItemsRequest{ReceivedDate: seed.StartOfPeriod, Quantity: -1}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid for negative quantity, got %v", err)
	}
}

func TestCreateInvoicePostsToPeriodCoveringDelivery(t *testing.T) {
	svc, reports := newTestService()
	ctx := context.Background()
	seed, _ := svc.GetPeriod(ctx, "period-seed")
	delivered := seed.StartOfPeriod.AddDate(0, 0, 9)

	invoice, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		Supplier:      "Wine Direct",
		InvoiceNumber: "WD-1001",
		InvoiceDate:   delivered.AddDate(0, 0, -1),
		DeliveryDate:  delivered,
		InvoiceLines: []domain.InvoiceLine{
			{SalesItemID: "si-gin", Quantity: 2},
			{SalesItemID: "si-red", Quantity: 0, InvoicedAmountEx: dec("9.99")},
			{SalesItemID: "si-bitter", Quantity: 1, InvoicedAmountInc: dec("120.00")},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if invoice.PeriodID != "period-seed" {
		t.Fatalf("expected posting to seed period, got %q", invoice.PeriodID)
	}
	if !invoice.InvoiceLines[0].InvoicedAmountEx.Equal(dec("35.60")) {
		t.Fatalf("expected gin priced at cost, got %s", invoice.InvoiceLines[0].InvoicedAmountEx)
	}
	if !invoice.InvoiceLines[1].InvoicedAmountEx.IsZero() {
		t.Fatalf("expected empty line worth nothing, got %s", invoice.InvoiceLines[1].InvoicedAmountEx)
	}
	if !invoice.InvoiceLines[2].InvoicedAmountEx.IsZero() {
		t.Fatalf("expected invoiced inc amount kept as is")
	}

	suppliers, _ := svc.ListSuppliers(ctx)
	if len(suppliers) != 2 {
		t.Fatalf("expected supplier created, got %d suppliers", len(suppliers))
	}

	period, _ := svc.GetPeriod(ctx, "period-seed")
	var gin, red, bitter *domain.PeriodItemView
	for i := range period.Items {
		switch period.Items[i].SalesItemID {
		case "si-gin":
			gin = &period.Items[i]
		case "si-red":
			red = &period.Items[i]
		case "si-bitter":
			bitter = &period.Items[i]
		}
	}
	if gin == nil || gin.ContainersReceived != 2 {
		t.Fatalf("expected gin received into the period")
	}
	if gin.ItemsReceived[0].InvoiceID != invoice.ID {
		t.Fatalf("expected receipt linked to invoice")
	}
	if red != nil {
		t.Fatalf("expected empty line not posted")
	}
	if bitter == nil || bitter.ContainersReceived != 5 {
		t.Fatalf("expected bitter receipt added to existing item")
	}
	if len(reports.deletes) != 1 || reports.deletes[0] != "period-seed" {
		t.Fatalf("expected seed report invalidated, got %v", reports.deletes)
	}
}

func TestCreateInvoiceOutsideAnyPeriodIsStoredUnposted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, domain.InvoiceCreateRequest{
		Supplier:     "valley brewery",
		InvoiceDate:  time.Date(2001, 1, 5, 0, 0, 0, 0, time.UTC),
		InvoiceLines: []domain.InvoiceLine{{SalesItemID: "si-bitter", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if invoice.PeriodID != "" {
		t.Fatalf("expected unposted invoice, got period %q", invoice.PeriodID)
	}
	if invoice.Supplier != "Valley Brewery" {
		t.Fatalf("expected existing supplier matched, got %q", invoice.Supplier)
	}
	if !invoice.DeliveryDate.Equal(invoice.InvoiceDate) {
		t.Fatalf("expected delivery date to default to invoice date")
	}

	stored, err := svc.GetInvoice(ctx, invoice.ID)
	if err != nil || stored.ID != invoice.ID {
		t.Fatalf("get invoice: %v", err)
	}
}

func TestCreateInvoiceRejectsUnknownSalesItem(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateInvoice(context.Background(), domain.InvoiceCreateRequest{
		Supplier:     "Valley Brewery",
		InvoiceDate:  time.Now(),
		InvoiceLines: []domain.InvoiceLine{{SalesItemID: "si-missing", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestPeriodReportIsCached(t *testing.T) {
	svc, reports := newTestService()
	ctx := context.Background()

	first, err := svc.PeriodReport(ctx, "period-seed")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(first.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(first.Lines))
	}
	second, err := svc.PeriodReport(ctx, "period-seed")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if second != first || reports.sets != 1 {
		t.Fatalf("expected cached report on second call, sets=%d", reports.sets)
	}

	if _, err := svc.PeriodReport(ctx, "period-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateSalesItemRefreshesCachedReports(t *testing.T) {
	svc, reports := newTestService()
	ctx := context.Background()

	if _, err := svc.PeriodReport(ctx, "period-seed"); err != nil {
		t.Fatalf("report: %v", err)
	}

	_, err := svc.UpdateSalesItem(ctx, "si-bitter", domain.SalesItemRequest{
		Name:             "Best Bitter",
		LedgerCode:       1001,
		SalesUnitType:    "Pint",
		ContainerSize:    dec("11"),
		CostPerContainer: dec("98.50"),
		SalesPrice:       dec("4.80"),
	})
	if err != nil {
		t.Fatalf("update sales item: %v", err)
	}
	if len(reports.deletes) != 1 || reports.deletes[0] != "period-seed" {
		t.Fatalf("expected seeded period report invalidated, got %v", reports.deletes)
	}

	refreshed, err := svc.PeriodReport(ctx, "period-seed")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, line := range refreshed.Lines {
		if line.Name != "Best Bitter" {
			continue
		}
		// 47.5 gallons sold is 380 pints at 4.80 inc.
		if !line.SalesEx.Equal(dec("1520")) {
			t.Fatalf("expected sales ex 1520 at the new price, got %s", line.SalesEx)
		}
		return
	}
	t.Fatalf("expected a Best Bitter line in the report")
}
