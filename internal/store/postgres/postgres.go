package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/store"
	"stockcheck/backend/internal/xid"
)

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("postgres")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type salesItemRow struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	LedgerCode         int             `db:"ledger_code"`
	SalesUnitType      string          `db:"sales_unit_type"`
	ContainerSize      decimal.Decimal `db:"container_size"`
	UnitOfSale         decimal.Decimal `db:"unit_of_sale"`
	CostPerContainer   decimal.Decimal `db:"cost_per_container"`
	TaxRate            decimal.Decimal `db:"tax_rate"`
	SalesPrice         decimal.Decimal `db:"sales_price"`
	UllagePerContainer int             `db:"ullage_per_container"`
}

func (r salesItemRow) toDomain() domain.SalesItem {
	return domain.SalesItem{
		ID:                 r.ID,
		Name:               r.Name,
		LedgerCode:         r.LedgerCode,
		SalesUnitType:      r.SalesUnitType,
		ContainerSize:      r.ContainerSize,
		UnitOfSale:         r.UnitOfSale,
		CostPerContainer:   r.CostPerContainer,
		TaxRate:            r.TaxRate,
		SalesPrice:         r.SalesPrice,
		UllagePerContainer: r.UllagePerContainer,
	}
}

type supplierRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type periodRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	StartOfPeriod time.Time `db:"start_of_period"`
	EndOfPeriod   time.Time `db:"end_of_period"`
}

type periodItemRow struct {
	ID               string          `db:"id"`
	PeriodID         string          `db:"period_id"`
	SalesItemID      string          `db:"sales_item_id"`
	OpeningStock     decimal.Decimal `db:"opening_stock"`
	ClosingStock     decimal.Decimal `db:"closing_stock"`
	ClosingStockExpr string          `db:"closing_stock_expr"`
}

type receiptRow struct {
	ID                string          `db:"id"`
	PeriodItemID      string          `db:"period_item_id"`
	InvoiceID         sql.NullString  `db:"invoice_id"`
	ReceivedDate      time.Time       `db:"received_date"`
	Quantity          int             `db:"quantity"`
	InvoicedAmountEx  decimal.Decimal `db:"invoiced_amount_ex"`
	InvoicedAmountInc decimal.Decimal `db:"invoiced_amount_inc"`
}

type invoiceRow struct {
	ID            string         `db:"id"`
	Supplier      string         `db:"supplier"`
	InvoiceNumber string         `db:"invoice_number"`
	InvoiceDate   time.Time      `db:"invoice_date"`
	DeliveryDate  time.Time      `db:"delivery_date"`
	PeriodID      sql.NullString `db:"period_id"`
	CreatedAt     time.Time      `db:"created_at"`
}

type invoiceLineRow struct {
	InvoiceID         string          `db:"invoice_id"`
	SalesItemID       string          `db:"sales_item_id"`
	Quantity          int             `db:"quantity"`
	InvoicedAmountEx  decimal.Decimal `db:"invoiced_amount_ex"`
	InvoicedAmountInc decimal.Decimal `db:"invoiced_amount_inc"`
}

const salesItemColumns = `id, name, ledger_code, sales_unit_type, container_size, unit_of_sale,
	cost_per_container, tax_rate, sales_price, ullage_per_container`

func (s *Store) ListSalesItems(ctx context.Context) ([]domain.SalesItem, error) {
	var rows []salesItemRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+salesItemColumns+`
		FROM sales_items
		ORDER BY ledger_code, name, container_size
	`); err != nil {
		return nil, err
	}
	items := make([]domain.SalesItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (s *Store) GetSalesItem(ctx context.Context, id string) (*domain.SalesItem, error) {
	var row salesItemRow
	err := s.db.GetContext(ctx, &row, `SELECT `+salesItemColumns+` FROM sales_items WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item := row.toDomain()
	return &item, nil
}

func (s *Store) GetSalesItemsByIDs(ctx context.Context, ids []string) (map[string]*domain.SalesItem, error) {
	return s.salesItemsByIDs(ctx, s.db, ids)
}

func (s *Store) salesItemsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []string) (map[string]*domain.SalesItem, error) {
	result := make(map[string]*domain.SalesItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+salesItemColumns+` FROM sales_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []salesItemRow
	if err := sqlx.SelectContext(ctx, q, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := row.toDomain()
		result[item.ID] = &item
	}
	return result, nil
}

func (s *Store) CreateSalesItem(ctx context.Context, item domain.SalesItem) (*domain.SalesItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, store.ErrInvalid
	}
	if item.ID == "" {
		item.ID = xid.New("si")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_items (`+salesItemColumns+`, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
	`, item.ID, item.Name, item.LedgerCode, item.SalesUnitType, item.ContainerSize, item.UnitOfSale,
		item.CostPerContainer, item.TaxRate, item.SalesPrice, item.UllagePerContainer)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateSalesItem(ctx context.Context, item domain.SalesItem) (*domain.SalesItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, store.ErrInvalid
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales_items
		SET name = $2, ledger_code = $3, sales_unit_type = $4, container_size = $5, unit_of_sale = $6,
			cost_per_container = $7, tax_rate = $8, sales_price = $9, ullage_per_container = $10, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Name, item.LedgerCode, item.SalesUnitType, item.ContainerSize, item.UnitOfSale,
		item.CostPerContainer, item.TaxRate, item.SalesPrice, item.UllagePerContainer)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteSalesItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales_items WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var rows []supplierRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, created_at
		FROM suppliers
		ORDER BY lower(name)
	`); err != nil {
		return nil, err
	}
	suppliers := make([]domain.Supplier, 0, len(rows))
	for _, row := range rows {
		suppliers = append(suppliers, domain.Supplier{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.UTC()})
	}
	return suppliers, nil
}

func (s *Store) FindSupplierByName(ctx context.Context, name string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, name, created_at
		FROM suppliers
		WHERE lower(name) = lower($1)
	`, strings.TrimSpace(name)).Scan(&supplier.ID, &supplier.Name, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	supplier.CreatedAt = supplier.CreatedAt.UTC()
	return &supplier, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalid
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, created_at)
		VALUES ($1,$2,$3)
	`, supplier.ID, supplier.Name, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := supplier
	return &saved, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]*domain.Period, error) {
	return s.loadPeriods(ctx, s.db, `ORDER BY start_of_period DESC, id`)
}

func (s *Store) GetPeriod(ctx context.Context, id string) (*domain.Period, error) {
	return s.loadPeriod(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Store) LatestPeriod(ctx context.Context) (*domain.Period, error) {
	return s.loadPeriod(ctx, s.db, `ORDER BY end_of_period DESC, id LIMIT 1`)
}

func (s *Store) FindPeriodContaining(ctx context.Context, date time.Time) (*domain.Period, error) {
	return s.loadPeriod(ctx, s.db, `
		WHERE start_of_period <= $1 AND end_of_period >= $1
		ORDER BY start_of_period DESC, id
		LIMIT 1
	`, dateUTC(date))
}

func (s *Store) CreatePeriod(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if period == nil || strings.TrimSpace(period.PeriodName) == "" {
		return nil, store.ErrInvalid
	}
	if period.ID == "" {
		period.ID = xid.New("period")
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO periods (id, name, start_of_period, end_of_period)
		VALUES ($1,$2,$3,$4)
	`, period.ID, strings.TrimSpace(period.PeriodName), dateUTC(period.StartOfPeriod), dateUTC(period.EndOfPeriod))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if err := writePeriodItems(ctx, tx, period); err != nil {
		return nil, err
	}
	saved, err := s.loadPeriod(ctx, tx, `WHERE id = $1`, period.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) SavePeriod(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if period == nil || strings.TrimSpace(period.PeriodName) == "" {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := savePeriodTx(ctx, tx, period); err != nil {
		return nil, err
	}
	saved, err := s.loadPeriod(ctx, tx, `WHERE id = $1`, period.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) DeletePeriod(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice, period *domain.Period) (*domain.Invoice, error) {
	invoice.Supplier = strings.TrimSpace(invoice.Supplier)
	if invoice.Supplier == "" || len(invoice.InvoiceLines) == 0 {
		return nil, store.ErrInvalid
	}
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	if period != nil {
		invoice.PeriodID = period.ID
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, supplier, invoice_number, invoice_date, delivery_date, period_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, invoice.ID, invoice.Supplier, invoice.InvoiceNumber, dateUTC(invoice.InvoiceDate),
		dateUTC(invoice.DeliveryDate), nullIfEmpty(invoice.PeriodID), invoice.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i, line := range invoice.InvoiceLines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, sales_item_id, quantity, invoiced_amount_ex, invoiced_amount_inc)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, invoice.ID, i+1, line.SalesItemID, line.Quantity, line.InvoicedAmountEx, line.InvoicedAmountInc)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrInvalid
			}
			return nil, err
		}
	}

	if period != nil {
		if err := savePeriodTx(ctx, tx, period); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger.Debug("invoice stored",
		zap.String("invoice_id", invoice.ID),
		zap.String("period_id", invoice.PeriodID),
		zap.Int("lines", len(invoice.InvoiceLines)),
	)
	saved := invoice
	return &saved, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	invoices, err := s.loadInvoices(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, store.ErrNotFound
	}
	return &invoices[0], nil
}

func (s *Store) ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	if limit < 1 {
		limit = 100
	}
	return s.loadInvoices(ctx, `ORDER BY invoice_date DESC, delivery_date ASC, id LIMIT $1`, limit)
}

func (s *Store) loadInvoices(ctx context.Context, clause string, args ...any) ([]domain.Invoice, error) {
	var rows []invoiceRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, supplier, invoice_number, invoice_date, delivery_date, period_id, created_at
		FROM invoices
	`+clause, args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Invoice{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, inArgs, err := sqlx.In(`
		SELECT invoice_id, sales_item_id, quantity, invoiced_amount_ex, invoiced_amount_inc
		FROM invoice_lines
		WHERE invoice_id IN (?)
		ORDER BY invoice_id, line_no
	`, ids)
	if err != nil {
		return nil, err
	}
	var lineRows []invoiceLineRow
	if err := s.db.SelectContext(ctx, &lineRows, s.db.Rebind(query), inArgs...); err != nil {
		return nil, err
	}
	linesByInvoice := make(map[string][]domain.InvoiceLine, len(rows))
	for _, line := range lineRows {
		linesByInvoice[line.InvoiceID] = append(linesByInvoice[line.InvoiceID], domain.InvoiceLine{
			SalesItemID:       line.SalesItemID,
			Quantity:          line.Quantity,
			InvoicedAmountEx:  line.InvoicedAmountEx,
			InvoicedAmountInc: line.InvoicedAmountInc,
		})
	}

	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		lines := linesByInvoice[row.ID]
		if lines == nil {
			lines = []domain.InvoiceLine{}
		}
		invoices = append(invoices, domain.Invoice{
			ID:            row.ID,
			Supplier:      row.Supplier,
			InvoiceNumber: row.InvoiceNumber,
			InvoiceDate:   row.InvoiceDate.UTC(),
			DeliveryDate:  row.DeliveryDate.UTC(),
			PeriodID:      row.PeriodID.String,
			InvoiceLines:  lines,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return invoices, nil
}

func (s *Store) loadPeriod(ctx context.Context, q sqlx.QueryerContext, clause string, args ...any) (*domain.Period, error) {
	periods, err := s.loadPeriods(ctx, q, clause, args...)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, store.ErrNotFound
	}
	return periods[0], nil
}

// loadPeriods reads the selected periods with their items and receipts. All
// items of one sales item across the result share a single SalesItem value.
func (s *Store) loadPeriods(ctx context.Context, q sqlx.QueryerContext, clause string, args ...any) ([]*domain.Period, error) {
	var periodRows []periodRow
	if err := sqlx.SelectContext(ctx, q, &periodRows, `
		SELECT id, name, start_of_period, end_of_period
		FROM periods
	`+clause, args...); err != nil {
		return nil, err
	}
	if len(periodRows) == 0 {
		return []*domain.Period{}, nil
	}

	periodIDs := make([]string, 0, len(periodRows))
	for _, row := range periodRows {
		periodIDs = append(periodIDs, row.ID)
	}
	query, inArgs, err := sqlx.In(`
		SELECT id, period_id, sales_item_id, opening_stock, closing_stock, closing_stock_expr
		FROM period_items
		WHERE period_id IN (?)
		ORDER BY period_id, position
	`, periodIDs)
	if err != nil {
		return nil, err
	}
	var itemRows []periodItemRow
	if err := sqlx.SelectContext(ctx, q, &itemRows, s.db.Rebind(query), inArgs...); err != nil {
		return nil, err
	}

	receiptsByItem := make(map[string][]domain.ItemReceived)
	salesItemIDs := make([]string, 0, len(itemRows))
	seen := make(map[string]struct{}, len(itemRows))
	if len(itemRows) > 0 {
		itemIDs := make([]string, 0, len(itemRows))
		for _, row := range itemRows {
			itemIDs = append(itemIDs, row.ID)
			if _, ok := seen[row.SalesItemID]; !ok {
				seen[row.SalesItemID] = struct{}{}
				salesItemIDs = append(salesItemIDs, row.SalesItemID)
			}
		}
		query, inArgs, err := sqlx.In(`
			SELECT id, period_item_id, invoice_id, received_date, quantity, invoiced_amount_ex, invoiced_amount_inc
			FROM items_received
			WHERE period_item_id IN (?)
			ORDER BY period_item_id, received_date, id
		`, itemIDs)
		if err != nil {
			return nil, err
		}
		var receiptRows []receiptRow
		if err := sqlx.SelectContext(ctx, q, &receiptRows, s.db.Rebind(query), inArgs...); err != nil {
			return nil, err
		}
		for _, row := range receiptRows {
			receiptsByItem[row.PeriodItemID] = append(receiptsByItem[row.PeriodItemID], domain.ItemReceived{
				ID:                row.ID,
				InvoiceID:         row.InvoiceID.String,
				ReceivedDate:      row.ReceivedDate.UTC(),
				Quantity:          row.Quantity,
				InvoicedAmountEx:  row.InvoicedAmountEx,
				InvoicedAmountInc: row.InvoicedAmountInc,
			})
		}
	}

	handles, err := s.salesItemsByIDs(ctx, q, salesItemIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Period, len(periodRows))
	periods := make([]*domain.Period, 0, len(periodRows))
	for _, row := range periodRows {
		period := domain.NewPeriod()
		period.ID = row.ID
		period.PeriodName = row.Name
		period.StartOfPeriod = row.StartOfPeriod.UTC()
		period.EndOfPeriod = row.EndOfPeriod.UTC()
		byID[row.ID] = period
		periods = append(periods, period)
	}
	for _, row := range itemRows {
		item := domain.NewPeriodItem(handles[row.SalesItemID])
		item.ID = row.ID
		item.SalesItemID = row.SalesItemID
		item.OpeningStock = row.OpeningStock
		item.ClosingStock = row.ClosingStock
		item.ClosingStockExpr = row.ClosingStockExpr
		item.ItemsReceived = append(item.ItemsReceived, receiptsByItem[row.ID]...)
		byID[row.PeriodID].Items = append(byID[row.PeriodID].Items, item)
	}
	return periods, nil
}

func savePeriodTx(ctx context.Context, tx *sqlx.Tx, period *domain.Period) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE periods
		SET name = $2, start_of_period = $3, end_of_period = $4
		WHERE id = $1
	`, period.ID, strings.TrimSpace(period.PeriodName), dateUTC(period.StartOfPeriod), dateUTC(period.EndOfPeriod))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM period_items WHERE period_id = $1`, period.ID); err != nil {
		return err
	}
	return writePeriodItems(ctx, tx, period)
}

// writePeriodItems inserts the period's items and receipts, assigning IDs to
// any that are new.
func writePeriodItems(ctx context.Context, tx *sqlx.Tx, period *domain.Period) error {
	for position, item := range period.Items {
		if item.ID == "" {
			item.ID = xid.New("pi")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO period_items (id, period_id, sales_item_id, position, opening_stock, closing_stock, closing_stock_expr)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, period.ID, item.SalesItemID, position, item.OpeningStock, item.ClosingStock, item.ClosingStockExpr)
		if err != nil {
			if isForeignKeyViolation(err) || isUniqueViolation(err) {
				return store.ErrInvalid
			}
			return err
		}
		for i := range item.ItemsReceived {
			receipt := &item.ItemsReceived[i]
			if receipt.ID == "" {
				receipt.ID = xid.New("rcv")
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO items_received (id, period_item_id, invoice_id, received_date, quantity, invoiced_amount_ex, invoiced_amount_inc)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, receipt.ID, item.ID, nullIfEmpty(receipt.InvoiceID), dateUTC(receipt.ReceivedDate),
				receipt.Quantity, receipt.InvoicedAmountEx, receipt.InvoicedAmountInc)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
