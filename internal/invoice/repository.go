package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/money"
)

const sourceOrderConstraint = "invoices_owner_source_order_key"

type Repository interface {
	Insert(ctx context.Context, q db.DBTX, inv *Invoice) error
	InsertItem(ctx context.Context, q db.DBTX, item *Item) error
	Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Invoice, error)
	Items(ctx context.Context, q db.DBTX, invoiceID int64) ([]Item, error)
	List(ctx context.Context, q db.DBTX, ownerID int64, limit int) ([]Invoice, error)
	FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error)
	BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c Customer) error
}

type postgresRepository struct {
	caps db.Capabilities
}

func NewRepository(caps db.Capabilities) Repository {
	return &postgresRepository{caps: caps}
}

// orderMarker tags invoices on schemas without source_order_id.
func orderMarker(orderID int64) string {
	return fmt.Sprintf("[order:%d]", orderID)
}

func (r *postgresRepository) Insert(ctx context.Context, q db.DBTX, inv *Invoice) error {
	detail := inv.Detail
	if inv.SourceOrderID != nil && !r.caps.SourceOrderLink {
		detail = strings.TrimSpace(detail + " " + orderMarker(*inv.SourceOrderID))
	}

	cols := []string{"owner_id", "customer_name", "customer_email", "customer_phone", "customer_address", "detail", "currency", "total_cents"}
	args := []any{inv.OwnerID, inv.Customer.Name, inv.Customer.Email, inv.Customer.Phone, inv.Customer.Address, detail, inv.Currency, inv.TotalCents}
	if r.caps.CustomerDNI {
		cols = append(cols, "customer_dni")
		args = append(args, inv.Customer.DNI)
	}
	if r.caps.SourceOrderLink {
		cols = append(cols, "source_order_id")
		args = append(args, inv.SourceOrderID)
	}

	query := `INSERT INTO invoices (` + strings.Join(cols, ", ") + `) VALUES (` + db.Placeholders(len(args)) + `)
		RETURNING id, created_at`

	if err := q.QueryRow(ctx, query, args...).Scan(&inv.ID, &inv.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == sourceOrderConstraint {
			return ErrDuplicateSourceOrder
		}
		return fmt.Errorf("repository: failed to insert invoice: %w", err)
	}
	inv.Detail = detail
	return nil
}

func (r *postgresRepository) InsertItem(ctx context.Context, q db.DBTX, item *Item) error {
	cols := []string{"invoice_id", "description", "quantity", "unit_price_cents", "line_total_cents"}
	args := []any{item.InvoiceID, item.Description, money.FixedQuantity(item.Quantity), item.UnitPriceCents, item.LineTotalCents}
	if r.caps.ItemUnit {
		cols = append(cols, "unit")
		args = append(args, db.NullIfEmpty(item.Unit))
	}
	if r.caps.StockLink {
		cols = append(cols, "stock_item_id")
		args = append(args, item.StockItemID)
	}

	query := `INSERT INTO invoice_items (` + strings.Join(cols, ", ") + `) VALUES (` + db.Placeholders(len(args)) + `)
		RETURNING id`

	if err := q.QueryRow(ctx, query, args...).Scan(&item.ID); err != nil {
		return fmt.Errorf("repository: failed to insert invoice item: %w", err)
	}
	return nil
}

func (r *postgresRepository) headerColumns() string {
	dni := "''"
	if r.caps.CustomerDNI {
		dni = "customer_dni"
	}
	source := "NULL::bigint"
	if r.caps.SourceOrderLink {
		source = "source_order_id"
	}
	return `id, owner_id, customer_name, customer_email, ` + dni + `, customer_phone, customer_address,
		detail, currency, total_cents, ` + source + `, created_at`
}

func (r *postgresRepository) Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Invoice, error) {
	query := `SELECT ` + r.headerColumns() + ` FROM invoices WHERE owner_id = $1 AND id = $2`

	inv, err := scanInvoice(q.QueryRow(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("repository: failed to get invoice: %w", err)
	}
	return inv, nil
}

func (r *postgresRepository) Items(ctx context.Context, q db.DBTX, invoiceID int64) ([]Item, error) {
	unit := "''"
	if r.caps.ItemUnit {
		unit = "COALESCE(unit, '')"
	}
	stockLink := "NULL::bigint"
	if r.caps.StockLink {
		stockLink = "stock_item_id"
	}

	query := `
		SELECT id, invoice_id, description, quantity::text, ` + unit + `, unit_price_cents, line_total_cents, ` + stockLink + `
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			item Item
			raw  string
		)
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &raw, &item.Unit,
			&item.UnitPriceCents, &item.LineTotalCents, &item.StockItemID); err != nil {
			return nil, fmt.Errorf("repository: failed to scan invoice item: %w", err)
		}
		if item.Quantity, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("repository: invalid stored quantity %q: %w", raw, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate invoice items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) List(ctx context.Context, q db.DBTX, ownerID int64, limit int) ([]Invoice, error) {
	query := `SELECT ` + r.headerColumns() + ` FROM invoices WHERE owner_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := q.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

func (r *postgresRepository) FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error) {
	var (
		query string
		arg   any
	)
	if r.caps.SourceOrderLink {
		query = `SELECT id FROM invoices WHERE owner_id = $1 AND source_order_id = $2 ORDER BY id LIMIT 1`
		arg = orderID
	} else {
		query = `SELECT id FROM invoices WHERE owner_id = $1 AND strpos(detail, $2) > 0 ORDER BY id LIMIT 1`
		arg = orderMarker(orderID)
	}

	var id int64
	if err := q.QueryRow(ctx, query, ownerID, arg).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInvoiceNotFound
		}
		return 0, fmt.Errorf("repository: failed to find invoice by order: %w", err)
	}
	return id, nil
}

// BackfillCustomer fills blank customer fields only; values already on the
// invoice are never overwritten. It must run inside a transaction.
func (r *postgresRepository) BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c Customer) error {
	type assignment struct {
		column string
		value  string
	}
	fields := []assignment{
		{"customer_name", c.Name},
		{"customer_email", c.Email},
		{"customer_phone", c.Phone},
		{"customer_address", c.Address},
	}
	if r.caps.CustomerDNI {
		fields = append(fields, assignment{"customer_dni", c.DNI})
	}

	args := []any{ownerID, id}
	sets := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		args = append(args, f.value)
		sets = append(sets, fmt.Sprintf("%[1]s = CASE WHEN btrim(%[1]s) = '' THEN $%[2]d ELSE %[1]s END", f.column, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE invoices SET ` + strings.Join(sets, ", ") + ` WHERE owner_id = $1 AND id = $2`
	return db.WithSavepoint(ctx, q, "invoice_backfill", func() error {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("repository: failed to backfill invoice customer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}
		return nil
	})
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Customer.Name, &inv.Customer.Email, &inv.Customer.DNI,
		&inv.Customer.Phone, &inv.Customer.Address, &inv.Detail, &inv.Currency, &inv.TotalCents,
		&inv.SourceOrderID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.Currency = strings.TrimSpace(inv.Currency)
	return &inv, nil
}
