package store

import (
	"context"
	"errors"
	"time"

	"stockcheck/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("conflict")
)

// Repository persists the catalogue, periods and invoices. Periods come back
// with every item's SalesItem resolved; items of the same sales item loaded
// in one call share one SalesItem value.
type Repository interface {
	ListSalesItems(ctx context.Context) ([]domain.SalesItem, error)
	GetSalesItem(ctx context.Context, id string) (*domain.SalesItem, error)
	GetSalesItemsByIDs(ctx context.Context, ids []string) (map[string]*domain.SalesItem, error)
	CreateSalesItem(ctx context.Context, item domain.SalesItem) (*domain.SalesItem, error)
	UpdateSalesItem(ctx context.Context, item domain.SalesItem) (*domain.SalesItem, error)
	DeleteSalesItem(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	FindSupplierByName(ctx context.Context, name string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	ListPeriods(ctx context.Context) ([]*domain.Period, error)
	GetPeriod(ctx context.Context, id string) (*domain.Period, error)
	LatestPeriod(ctx context.Context) (*domain.Period, error)
	FindPeriodContaining(ctx context.Context, date time.Time) (*domain.Period, error)
	CreatePeriod(ctx context.Context, period *domain.Period) (*domain.Period, error)
	SavePeriod(ctx context.Context, period *domain.Period) (*domain.Period, error)
	DeletePeriod(ctx context.Context, id string) error

	// CreateInvoice stores the invoice and, when period is not nil, saves the
	// period the invoice was received into in the same unit of work.
	CreateInvoice(ctx context.Context, invoice domain.Invoice, period *domain.Period) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error)
}
