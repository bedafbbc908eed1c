package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/store"
	"stockcheck/backend/internal/xid"
)

type storedItem struct {
	id               string
	salesItemID      string
	openingStock     decimal.Decimal
	closingStock     decimal.Decimal
	closingStockExpr string
	receipts         []domain.ItemReceived
}

type storedPeriod struct {
	id    string
	name  string
	start time.Time
	end   time.Time
	items []storedItem
}

type Store struct {
	mu            sync.RWMutex
	salesItems    map[string]domain.SalesItem
	suppliersByID map[string]domain.Supplier
	periodsByID   map[string]storedPeriod
	invoicesByID  map[string]domain.Invoice
}

func New() *Store {
	return &Store{
		salesItems:    make(map[string]domain.SalesItem),
		suppliersByID: make(map[string]domain.Supplier),
		periodsByID:   make(map[string]storedPeriod),
		invoicesByID:  make(map[string]domain.Invoice),
	}
}

// NewSeeded returns a store holding a small bar catalogue and one counted
// period covering last calendar month, for demo and development use.
func NewSeeded() *Store {
	s := New()
	d := decimal.RequireFromString
	items := []domain.SalesItem{
		{ID: "si-bitter", Name: "Best Bitter", LedgerCode: 1001, SalesUnitType: "Pint", ContainerSize: d("11"), UnitOfSale: d("0.125"), CostPerContainer: d("98.50"), TaxRate: d("0.2"), SalesPrice: d("3.80")},
		{ID: "si-lager", Name: "Premium Lager", LedgerCode: 1002, SalesUnitType: "Pint", ContainerSize: d("11"), UnitOfSale: d("0.125"), CostPerContainer: d("126.00"), TaxRate: d("0.2"), SalesPrice: d("4.60")},
		{ID: "si-cider", Name: "Cloudy Cider", LedgerCode: 1003, SalesUnitType: "Pint", ContainerSize: d("11"), UnitOfSale: d("0.125"), CostPerContainer: d("112.00"), TaxRate: d("0.2"), SalesPrice: d("4.20")},
		{ID: "si-vodka", Name: "House Vodka", LedgerCode: 2001, SalesUnitType: "Spirit 25ml", ContainerSize: d("0.7"), UnitOfSale: d("0.025"), CostPerContainer: d("14.20"), TaxRate: d("0.2"), SalesPrice: d("3.10")},
		{ID: "si-gin", Name: "London Dry Gin", LedgerCode: 2002, SalesUnitType: "Spirit 25ml", ContainerSize: d("0.7"), UnitOfSale: d("0.025"), CostPerContainer: d("17.80"), TaxRate: d("0.2"), SalesPrice: d("3.50")},
		{ID: "si-red", Name: "House Red", LedgerCode: 3001, SalesUnitType: "Wine 175ml", ContainerSize: d("0.75"), UnitOfSale: d("0.175"), CostPerContainer: d("5.40"), TaxRate: d("0.2"), SalesPrice: d("5.25")},
	}
	for _, item := range items {
		s.salesItems[item.ID] = item
	}
	s.suppliersByID["sup-brewery"] = domain.Supplier{ID: "sup-brewery", Name: "Valley Brewery", CreatedAt: time.Now().UTC()}

	now := time.Now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := thisMonth.AddDate(0, -1, 0)
	s.periodsByID["period-seed"] = storedPeriod{
		id:    "period-seed",
		name:  start.Format("January 2006"),
		start: start,
		end:   thisMonth.AddDate(0, 0, -1),
		items: []storedItem{
			{id: "pi-seed-1", salesItemID: "si-bitter", openingStock: d("18"), closingStock: d("14.5"), receipts: []domain.ItemReceived{
				{ID: "rcv-seed-1", ReceivedDate: start.AddDate(0, 0, 6), Quantity: 4, InvoicedAmountEx: d("394.00"), InvoicedAmountInc: d("472.80")},
			}},
			{id: "pi-seed-2", salesItemID: "si-lager", openingStock: d("22"), closingStock: d("9.25"), receipts: []domain.ItemReceived{
				{ID: "rcv-seed-2", ReceivedDate: start.AddDate(0, 0, 6), Quantity: 6, InvoicedAmountEx: d("756.00"), InvoicedAmountInc: d("907.20")},
			}},
			{id: "pi-seed-3", salesItemID: "si-cider", openingStock: d("0"), closingStock: d("0"), receipts: []domain.ItemReceived{}},
			{id: "pi-seed-4", salesItemID: "si-vodka", openingStock: d("1.4"), closingStock: d("0.85"), receipts: []domain.ItemReceived{
				{ID: "rcv-seed-3", ReceivedDate: start.AddDate(0, 0, 13), Quantity: 2, InvoicedAmountInc: d("34.08")},
			}},
		},
	}
	return s
}

func (s *Store) ListSalesItems(_ context.Context) ([]domain.SalesItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SalesItem, 0, len(s.salesItems))
	for _, item := range s.salesItems {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.SalesItem) int {
		if c := cmp.Compare(a.LedgerCode, b.LedgerCode); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return a.ContainerSize.Cmp(b.ContainerSize)
	})
	return items, nil
}

func (s *Store) GetSalesItem(_ context.Context, id string) (*domain.SalesItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.salesItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetSalesItemsByIDs(_ context.Context, ids []string) (map[string]*domain.SalesItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.SalesItem, len(ids))
	for _, id := range ids {
		if item, ok := s.salesItems[id]; ok {
			result[id] = &item
		}
	}
	return result, nil
}

func (s *Store) CreateSalesItem(_ context.Context, item domain.SalesItem) (*domain.SalesItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalid
	}
	if item.ID == "" {
		item.ID = xid.New("si")
	}
	if _, exists := s.salesItems[item.ID]; exists {
		return nil, store.ErrConflict
	}
	s.salesItems[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateSalesItem(_ context.Context, item domain.SalesItem) (*domain.SalesItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalid
	}
	if _, ok := s.salesItems[item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.salesItems[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteSalesItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesItems[id]; !ok {
		return store.ErrNotFound
	}
	for _, period := range s.periodsByID {
		for _, item := range period.items {
			if item.salesItemID == id {
				return store.ErrConflict
			}
		}
	}
	for _, invoice := range s.invoicesByID {
		for _, line := range invoice.InvoiceLines {
			if line.SalesItemID == id {
				return store.ErrConflict
			}
		}
	}
	delete(s.salesItems, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return suppliers, nil
}

func (s *Store) FindSupplierByName(_ context.Context, name string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findSupplierLocked(name)
}

func (s *Store) findSupplierLocked(name string) (*domain.Supplier, error) {
	name = strings.TrimSpace(name)
	for _, supplier := range s.suppliersByID {
		if strings.EqualFold(supplier.Name, name) {
			found := supplier
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalid
	}
	if _, err := s.findSupplierLocked(supplier.Name); err == nil {
		return nil, store.ErrConflict
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListPeriods(_ context.Context) ([]*domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make(map[string]*domain.SalesItem)
	periods := make([]*domain.Period, 0, len(s.periodsByID))
	for _, stored := range s.periodsByID {
		periods = append(periods, s.hydrateLocked(stored, handles))
	}
	slices.SortFunc(periods, newestFirst)
	return periods, nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (*domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.periodsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.hydrateLocked(stored, make(map[string]*domain.SalesItem)), nil
}

func (s *Store) LatestPeriod(_ context.Context) (*domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storedPeriod
	for _, stored := range s.periodsByID {
		if latest == nil || stored.end.After(latest.end) {
			candidate := stored
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return s.hydrateLocked(*latest, make(map[string]*domain.SalesItem)), nil
}

func (s *Store) FindPeriodContaining(_ context.Context, date time.Time) (*domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make(map[string]*domain.SalesItem)
	var matches []*domain.Period
	for _, stored := range s.periodsByID {
		period := s.hydrateLocked(stored, handles)
		if period.Contains(date) {
			matches = append(matches, period)
		}
	}
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}
	slices.SortFunc(matches, newestFirst)
	return matches[0], nil
}

func (s *Store) CreatePeriod(_ context.Context, period *domain.Period) (*domain.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if period == nil || strings.TrimSpace(period.PeriodName) == "" {
		return nil, store.ErrInvalid
	}
	if period.ID == "" {
		period.ID = xid.New("period")
	}
	if _, exists := s.periodsByID[period.ID]; exists {
		return nil, store.ErrConflict
	}
	stored, err := s.dehydrateLocked(period)
	if err != nil {
		return nil, err
	}
	s.periodsByID[stored.id] = stored
	return s.hydrateLocked(stored, make(map[string]*domain.SalesItem)), nil
}

func (s *Store) SavePeriod(_ context.Context, period *domain.Period) (*domain.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if period == nil || strings.TrimSpace(period.PeriodName) == "" {
		return nil, store.ErrInvalid
	}
	if _, ok := s.periodsByID[period.ID]; !ok {
		return nil, store.ErrNotFound
	}
	stored, err := s.dehydrateLocked(period)
	if err != nil {
		return nil, err
	}
	s.periodsByID[stored.id] = stored
	return s.hydrateLocked(stored, make(map[string]*domain.SalesItem)), nil
}

func (s *Store) DeletePeriod(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.periodsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.periodsByID, id)
	return nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice, period *domain.Period) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(invoice.Supplier) == "" || len(invoice.InvoiceLines) == 0 {
		return nil, store.ErrInvalid
	}
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}

	var stored storedPeriod
	if period != nil {
		if _, ok := s.periodsByID[period.ID]; !ok {
			return nil, store.ErrNotFound
		}
		var err error
		stored, err = s.dehydrateLocked(period)
		if err != nil {
			return nil, err
		}
		invoice.PeriodID = period.ID
	}

	invoice.InvoiceLines = slices.Clone(invoice.InvoiceLines)
	s.invoicesByID[invoice.ID] = invoice
	if period != nil {
		s.periodsByID[stored.id] = stored
	}
	created := invoice
	created.InvoiceLines = slices.Clone(invoice.InvoiceLines)
	return &created, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	invoice.InvoiceLines = slices.Clone(invoice.InvoiceLines)
	return &invoice, nil
}

func (s *Store) ListInvoices(_ context.Context, limit int) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	invoices := make([]domain.Invoice, 0, len(s.invoicesByID))
	for _, invoice := range s.invoicesByID {
		invoice.InvoiceLines = slices.Clone(invoice.InvoiceLines)
		invoices = append(invoices, invoice)
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int {
		if c := b.InvoiceDate.Compare(a.InvoiceDate); c != 0 {
			return c
		}
		return a.DeliveryDate.Compare(b.DeliveryDate)
	})
	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}

// hydrateLocked rebuilds a domain period. handles caches sales items so that
// every period item of one sales item shares a single value.
func (s *Store) hydrateLocked(stored storedPeriod, handles map[string]*domain.SalesItem) *domain.Period {
	period := domain.NewPeriod()
	period.ID = stored.id
	period.PeriodName = stored.name
	period.StartOfPeriod = stored.start
	period.EndOfPeriod = stored.end
	for _, si := range stored.items {
		handle, ok := handles[si.salesItemID]
		if !ok {
			if catalogue, found := s.salesItems[si.salesItemID]; found {
				handle = &catalogue
				handles[si.salesItemID] = handle
			}
		}
		item := domain.NewPeriodItem(handle)
		item.ID = si.id
		item.SalesItemID = si.salesItemID
		item.OpeningStock = si.openingStock
		item.ClosingStock = si.closingStock
		item.ClosingStockExpr = si.closingStockExpr
		item.ItemsReceived = append(item.ItemsReceived, si.receipts...)
		period.Items = append(period.Items, item)
	}
	return period
}

func (s *Store) dehydrateLocked(period *domain.Period) (storedPeriod, error) {
	stored := storedPeriod{
		id:    period.ID,
		name:  strings.TrimSpace(period.PeriodName),
		start: period.StartOfPeriod,
		end:   period.EndOfPeriod,
		items: make([]storedItem, 0, len(period.Items)),
	}
	for _, item := range period.Items {
		if _, ok := s.salesItems[item.SalesItemID]; !ok {
			return storedPeriod{}, store.ErrInvalid
		}
		if item.ID == "" {
			item.ID = xid.New("pi")
		}
		receipts := make([]domain.ItemReceived, 0, len(item.ItemsReceived))
		for _, r := range item.ItemsReceived {
			if r.ID == "" {
				r.ID = xid.New("rcv")
			}
			receipts = append(receipts, r)
		}
		stored.items = append(stored.items, storedItem{
			id:               item.ID,
			salesItemID:      item.SalesItemID,
			openingStock:     item.OpeningStock,
			closingStock:     item.ClosingStock,
			closingStockExpr: item.ClosingStockExpr,
			receipts:         receipts,
		})
	}
	return stored, nil
}

func newestFirst(a, b *domain.Period) int {
	if c := b.StartOfPeriod.Compare(a.StartOfPeriod); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
