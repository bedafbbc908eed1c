package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockcheck/backend/internal/cache"
	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/report"
	"stockcheck/backend/internal/stockexpr"
	"stockcheck/backend/internal/store"
	"stockcheck/backend/internal/xid"
)

// stockScale matches the NUMERIC(18, 6) stock columns.
const stockScale = 6

type Options struct {
	DefaultTaxRate decimal.Decimal
	ReportCacheTTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type Service struct {
	repo           store.Repository
	reports        cache.ReportCache
	logger         *zap.Logger
	defaultTaxRate decimal.Decimal
	reportTTL      time.Duration
	now            func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, logger *zap.Logger, opts Options) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:           repo,
		reports:        reports,
		logger:         logger.Named("service"),
		defaultTaxRate: opts.DefaultTaxRate,
		reportTTL:      opts.ReportCacheTTL,
		now:            opts.Now,
	}
}

func (s *Service) SalesUnits() []domain.SalesUnit {
	return domain.SalesUnits
}

func (s *Service) ListSalesItems(ctx context.Context) ([]domain.SalesItemView, error) {
	items, err := s.repo.ListSalesItems(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.SalesItemView, 0, len(items))
	for i := range items {
		views = append(views, items[i].View())
	}
	return views, nil
}

func (s *Service) GetSalesItem(ctx context.Context, id string) (domain.SalesItemView, error) {
	item, err := s.repo.GetSalesItem(ctx, id)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	return item.View(), nil
}

func (s *Service) CreateSalesItem(ctx context.Context, req domain.SalesItemRequest) (domain.SalesItemView, error) {
	item, err := s.salesItemFromRequest(req)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	item.ID = xid.New("si")

	created, err := s.repo.CreateSalesItem(ctx, item)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	s.logger.Info("sales item created", zap.String("sales_item_id", created.ID), zap.String("name", created.Name))
	return created.View(), nil
}

func (s *Service) UpdateSalesItem(ctx context.Context, id string, req domain.SalesItemRequest) (domain.SalesItemView, error) {
	existing, err := s.repo.GetSalesItem(ctx, id)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	if req.TaxRate == nil {
		req.TaxRate = &existing.TaxRate
	}
	item, err := s.salesItemFromRequest(req)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	item.ID = existing.ID

	updated, err := s.repo.UpdateSalesItem(ctx, item)
	if err != nil {
		return domain.SalesItemView{}, err
	}
	s.invalidateReportsHolding(ctx, updated.ID)
	return updated.View(), nil
}

// invalidateReportsHolding drops the cached report of every period that
// counts the sales item.
func (s *Service) invalidateReportsHolding(ctx context.Context, salesItemID string) {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		s.logger.Warn("report cache invalidation skipped", zap.String("sales_item_id", salesItemID), zap.Error(err))
		return
	}
	for _, period := range periods {
		if period.FindItem(salesItemID) != nil {
			s.invalidateReport(ctx, period.ID)
		}
	}
}

func (s *Service) DeleteSalesItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteSalesItem(ctx, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("sales item %s is counted in a period or invoiced: %w", id, err)
		}
		return err
	}
	s.logger.Info("sales item deleted", zap.String("sales_item_id", id))
	return nil
}

func (s *Service) salesItemFromRequest(req domain.SalesItemRequest) (domain.SalesItem, error) {
	item := domain.SalesItem{
		Name:               strings.TrimSpace(req.Name),
		LedgerCode:         req.LedgerCode,
		SalesUnitType:      strings.TrimSpace(req.SalesUnitType),
		ContainerSize:      req.ContainerSize,
		UnitOfSale:         req.UnitOfSale,
		CostPerContainer:   req.CostPerContainer,
		TaxRate:            s.defaultTaxRate,
		SalesPrice:         req.SalesPrice,
		UllagePerContainer: req.UllagePerContainer,
	}
	if req.TaxRate != nil {
		item.TaxRate = *req.TaxRate
	}
	if item.UnitOfSale.IsZero() {
		if unit, ok := domain.LookupSalesUnit(item.SalesUnitType); ok {
			item.UnitOfSale = unit.Size
		}
	}

	if item.Name == "" {
		return domain.SalesItem{}, fmt.Errorf("sales item name is required: %w", store.ErrInvalid)
	}
	if item.ContainerSize.IsNegative() || item.UnitOfSale.IsNegative() || item.CostPerContainer.IsNegative() ||
		item.SalesPrice.IsNegative() || item.UllagePerContainer < 0 {
		return domain.SalesItem{}, fmt.Errorf("sales item amounts must not be negative: %w", store.ErrInvalid)
	}
	if item.TaxRate.IsNegative() || item.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return domain.SalesItem{}, fmt.Errorf("tax rate %s outside [0,1): %w", item.TaxRate, store.ErrInvalid)
	}
	return item, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("supplier name is required: %w", store.ErrInvalid)
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:        xid.New("sup"),
		Name:      req.Name,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logger.Info("supplier created", zap.String("supplier_id", saved.ID), zap.String("name", saved.Name))
	return *saved, nil
}

// supplierNamed returns the supplier called name, creating it when new.
func (s *Service) supplierNamed(ctx context.Context, name string) (*domain.Supplier, error) {
	found, err := s.repo.FindSupplierByName(ctx, name)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{ID: xid.New("sup"), Name: name, CreatedAt: s.now().UTC()})
	if errors.Is(err, store.ErrConflict) {
		return s.repo.FindSupplierByName(ctx, name)
	}
	return created, err
}

func (s *Service) ListPeriods(ctx context.Context) ([]domain.PeriodSummary, error) {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.PeriodSummary, 0, len(periods))
	for _, period := range periods {
		summaries = append(summaries, period.Summary())
	}
	return summaries, nil
}

func (s *Service) GetPeriod(ctx context.Context, id string) (domain.PeriodView, error) {
	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodView{}, err
	}
	return period.View(), nil
}

func (s *Service) CreatePeriod(ctx context.Context, req domain.PeriodRequest) (domain.PeriodView, error) {
	period, err := s.periodFromRequest(ctx, req, nil)
	if err != nil {
		return domain.PeriodView{}, err
	}
	period.ID = xid.New("period")

	created, err := s.repo.CreatePeriod(ctx, period)
	if err != nil {
		return domain.PeriodView{}, err
	}
	s.logger.Info("period created",
		zap.String("period_id", created.ID),
		zap.String("name", created.PeriodName),
		zap.Int("items", len(created.Items)),
	)
	return created.View(), nil
}

// UpdatePeriod replaces the period's name, dates and counts. Items keep their
// receipts unless the request supplies a new list.
func (s *Service) UpdatePeriod(ctx context.Context, id string, req domain.PeriodRequest) (domain.PeriodView, error) {
	existing, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodView{}, err
	}
	period, err := s.periodFromRequest(ctx, req, existing)
	if err != nil {
		return domain.PeriodView{}, err
	}
	period.ID = existing.ID

	saved, err := s.repo.SavePeriod(ctx, period)
	if err != nil {
		return domain.PeriodView{}, err
	}
	s.invalidateReport(ctx, saved.ID)
	return saved.View(), nil
}

func (s *Service) DeletePeriod(ctx context.Context, id string) error {
	if err := s.repo.DeletePeriod(ctx, id); err != nil {
		return err
	}
	s.invalidateReport(ctx, id)
	s.logger.Info("period deleted", zap.String("period_id", id))
	return nil
}

func (s *Service) periodFromRequest(ctx context.Context, req domain.PeriodRequest, existing *domain.Period) (*domain.Period, error) {
	name := strings.TrimSpace(req.PeriodName)
	if name == "" {
		return nil, fmt.Errorf("period name is required: %w", store.ErrInvalid)
	}
	start, end := dateOnly(req.StartOfPeriod), dateOnly(req.EndOfPeriod)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("period must end on or after its start: %w", store.ErrInvalid)
	}

	ids := make([]string, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.SalesItemID]; dup {
			return nil, fmt.Errorf("sales item %s appears twice: %w", item.SalesItemID, store.ErrInvalid)
		}
		seen[item.SalesItemID] = struct{}{}
		ids = append(ids, item.SalesItemID)
	}
	handles, err := s.repo.GetSalesItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	period := domain.NewPeriod()
	period.PeriodName = name
	period.StartOfPeriod = start
	period.EndOfPeriod = end
	for _, itemReq := range req.Items {
		handle, ok := handles[itemReq.SalesItemID]
		if !ok {
			return nil, fmt.Errorf("unknown sales item %s: %w", itemReq.SalesItemID, store.ErrInvalid)
		}
		item := domain.NewPeriodItem(handle)
		item.OpeningStock = itemReq.OpeningStock.Round(stockScale)
		item.ClosingStock = itemReq.ClosingStock.Round(stockScale)

		// An expression still ending in an operator keeps the submitted count.
		if expr := strings.TrimSpace(itemReq.ClosingStockExpr); expr != "" {
			if stockexpr.IsComplete(expr) {
				value, err := stockexpr.Evaluate(expr)
				if err != nil {
					return nil, fmt.Errorf("closing stock for %s: %v: %w", itemReq.SalesItemID, err, store.ErrInvalid)
				}
				item.ClosingStock = value.Round(stockScale)
			}
			item.ClosingStockExpr = expr
		}
		if item.OpeningStock.IsNegative() || item.ClosingStock.IsNegative() {
			return nil, fmt.Errorf("stock counts for %s must not be negative: %w", itemReq.SalesItemID, store.ErrInvalid)
		}

		var previous *domain.PeriodItem
		if existing != nil {
			previous = existing.FindItem(itemReq.SalesItemID)
		}
		if previous != nil {
			item.ID = previous.ID
		}
		switch {
		case itemReq.ItemsReceived != nil:
			for _, receipt := range itemReq.ItemsReceived {
				if receipt.Quantity < 0 {
					return nil, fmt.Errorf("received quantity for %s must not be negative: %w", itemReq.SalesItemID, store.ErrInvalid)
				}
				item.AddReceipt(receipt)
			}
		case previous != nil:
			item.ItemsReceived = append(item.ItemsReceived, previous.ItemsReceived...)
		}
		period.Items = append(period.Items, item)
	}
	return period, nil
}

// DraftNextPeriod builds, without saving, the period that follows id.
func (s *Service) DraftNextPeriod(ctx context.Context, id string, mode domain.CarryMode) (domain.PeriodView, error) {
	source, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodView{}, err
	}
	return s.draftFrom(source, mode).View(), nil
}

// RollForward saves the period that follows id.
func (s *Service) RollForward(ctx context.Context, id string, mode domain.CarryMode) (domain.PeriodView, error) {
	source, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodView{}, err
	}
	next, err := s.createNext(ctx, source, mode)
	if err != nil {
		return domain.PeriodView{}, err
	}
	return next.View(), nil
}

// RollOverDue creates the period following the latest one once that period
// has ended. It returns nil when nothing is due.
func (s *Service) RollOverDue(ctx context.Context, mode domain.CarryMode) (*domain.PeriodView, error) {
	latest, err := s.repo.LatestPeriod(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !dateOnly(latest.EndOfPeriod).Before(dateOnly(s.now())) {
		return nil, nil
	}
	next, err := s.createNext(ctx, latest, mode)
	if errors.Is(err, store.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := next.View()
	return &view, nil
}

func (s *Service) createNext(ctx context.Context, source *domain.Period, mode domain.CarryMode) (*domain.Period, error) {
	next := s.draftFrom(source, mode)
	if _, err := s.repo.FindPeriodContaining(ctx, next.StartOfPeriod); err == nil {
		return nil, fmt.Errorf("a period already covers %s: %w", next.StartOfPeriod.Format(time.DateOnly), store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	next.ID = xid.New("period")

	created, err := s.repo.CreatePeriod(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logger.Info("period rolled forward",
		zap.String("from_period_id", source.ID),
		zap.String("period_id", created.ID),
		zap.String("carry", string(mode)),
		zap.Int("items", len(created.Items)),
	)
	return created, nil
}

func (s *Service) draftFrom(source *domain.Period, mode domain.CarryMode) *domain.Period {
	next := domain.NextPeriod(source, mode)
	next.EndOfPeriod = next.StartOfPeriod.Add(source.Length())
	next.PeriodName = periodNameFor(next.StartOfPeriod)
	return next
}

// ReceiveItems records a delivery of salesItemID into the period.
func (s *Service) ReceiveItems(ctx context.Context, periodID string, salesItemID string, req domain.ReceiveItemsRequest) (domain.PeriodItemView, error) {
	if req.Quantity < 0 {
		return domain.PeriodItemView{}, fmt.Errorf("quantity must not be negative: %w", store.ErrInvalid)
	}
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return domain.PeriodItemView{}, err
	}
	salesItem, err := s.repo.GetSalesItem(ctx, salesItemID)
	if err != nil {
		return domain.PeriodItemView{}, err
	}

	period.ItemFor(salesItem).ReceiveItems(dateOnly(req.ReceivedDate), req.Quantity, req.InvoicedAmountEx, req.InvoicedAmountInc)
	saved, err := s.repo.SavePeriod(ctx, period)
	if err != nil {
		return domain.PeriodItemView{}, err
	}
	s.invalidateReport(ctx, saved.ID)
	return saved.FindItem(salesItemID).View(), nil
}

// CreateInvoice stores a supplier invoice and posts its lines as receipts into
// the period covering the delivery date, when there is one.
func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (domain.Invoice, error) {
	supplierName := strings.TrimSpace(req.Supplier)
	if supplierName == "" || len(req.InvoiceLines) == 0 {
		return domain.Invoice{}, fmt.Errorf("invoice needs a supplier and at least one line: %w", store.ErrInvalid)
	}
	if req.InvoiceDate.IsZero() {
		return domain.Invoice{}, fmt.Errorf("invoice date is required: %w", store.ErrInvalid)
	}
	invoiceDate := dateOnly(req.InvoiceDate)
	deliveryDate := invoiceDate
	if !req.DeliveryDate.IsZero() {
		deliveryDate = dateOnly(req.DeliveryDate)
	}

	ids := make([]string, 0, len(req.InvoiceLines))
	for _, line := range req.InvoiceLines {
		ids = append(ids, line.SalesItemID)
	}
	handles, err := s.repo.GetSalesItemsByIDs(ctx, ids)
	if err != nil {
		return domain.Invoice{}, err
	}
	lines := make([]domain.InvoiceLine, 0, len(req.InvoiceLines))
	for _, line := range req.InvoiceLines {
		handle, ok := handles[line.SalesItemID]
		if !ok {
			return domain.Invoice{}, fmt.Errorf("unknown sales item %s: %w", line.SalesItemID, store.ErrInvalid)
		}
		if line.Quantity < 0 {
			return domain.Invoice{}, fmt.Errorf("quantity for %s must not be negative: %w", line.SalesItemID, store.ErrInvalid)
		}
		lines = append(lines, fillLineAmounts(line, handle))
	}

	supplier, err := s.supplierNamed(ctx, supplierName)
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice := domain.Invoice{
		ID:            xid.New("inv"),
		Supplier:      supplier.Name,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:   invoiceDate,
		DeliveryDate:  deliveryDate,
		InvoiceLines:  lines,
		CreatedAt:     s.now().UTC(),
	}

	period, err := s.repo.FindPeriodContaining(ctx, deliveryDate)
	switch {
	case errors.Is(err, store.ErrNotFound):
		period = nil
	case err != nil:
		return domain.Invoice{}, err
	default:
		for _, line := range lines {
			if line.Quantity == 0 {
				continue
			}
			period.ItemFor(handles[line.SalesItemID]).AddReceipt(domain.ItemReceived{
				InvoiceID:         invoice.ID,
				ReceivedDate:      deliveryDate,
				Quantity:          line.Quantity,
				InvoicedAmountEx:  line.InvoicedAmountEx,
				InvoicedAmountInc: line.InvoicedAmountInc,
			})
		}
	}

	saved, err := s.repo.CreateInvoice(ctx, invoice, period)
	if err != nil {
		return domain.Invoice{}, err
	}
	if period != nil {
		s.invalidateReport(ctx, period.ID)
	} else {
		s.logger.Warn("invoice delivery date outside every period",
			zap.String("invoice_id", saved.ID),
			zap.Time("delivery_date", deliveryDate),
		)
	}
	s.logger.Info("invoice created",
		zap.String("invoice_id", saved.ID),
		zap.String("supplier", saved.Supplier),
		zap.String("period_id", saved.PeriodID),
		zap.Int("lines", len(saved.InvoiceLines)),
		zap.Stringer("total_ex", saved.TotalEx()),
	)
	return *saved, nil
}

// fillLineAmounts prices a line at the catalogue cost when neither amount was
// invoiced. Empty lines are worth nothing.
func fillLineAmounts(line domain.InvoiceLine, salesItem *domain.SalesItem) domain.InvoiceLine {
	if line.Quantity == 0 {
		line.InvoicedAmountEx = decimal.Zero
		return line
	}
	if line.InvoicedAmountEx.IsZero() && line.InvoicedAmountInc.IsZero() {
		line.InvoicedAmountEx = salesItem.CostPerContainer.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
	}
	return line
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, limit)
}

// PeriodReport serves the period's report from cache, building and caching it
// on a miss. Cache failures only cost the rebuild.
func (s *Service) PeriodReport(ctx context.Context, periodID string) (*domain.PeriodReport, error) {
	cached, ok, err := s.reports.Get(ctx, periodID)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("period_id", periodID), zap.Error(err))
	}
	if ok {
		return cached, nil
	}

	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	built := report.Build(period, s.now())
	if err := s.reports.Set(ctx, periodID, built, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("period_id", periodID), zap.Error(err))
	}
	return built, nil
}

func (s *Service) invalidateReport(ctx context.Context, periodID string) {
	if err := s.reports.Delete(ctx, periodID); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("period_id", periodID), zap.Error(err))
	}
}

func periodNameFor(start time.Time) string {
	return start.Format("2 January 2006")
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
