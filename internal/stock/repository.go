package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/db"
)

type Repository interface {
	Create(ctx context.Context, q db.DBTX, item *Item) error
	Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Item, error)
	List(ctx context.Context, q db.DBTX, ownerID int64, search string, limit int) ([]Item, error)
	LockQuantity(ctx context.Context, q db.DBTX, ownerID, id int64) (decimal.Decimal, error)
	SetQuantity(ctx context.Context, q db.DBTX, ownerID, id int64, quantity decimal.Decimal) error
	AddMovement(ctx context.Context, q db.DBTX, m *Movement) error
	Movements(ctx context.Context, q db.DBTX, ownerID, id int64, limit int) ([]Movement, error)
	FindByDescription(ctx context.Context, q db.DBTX, ownerID int64, description string) (int64, bool, error)
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

const itemColumns = `id, owner_id, name, COALESCE(sku, ''), COALESCE(unit, ''), quantity::text, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, q db.DBTX, item *Item) error {
	query := `
		INSERT INTO stock_items (owner_id, name, sku, unit, quantity)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query, item.OwnerID, item.Name, item.SKU, item.Unit, item.Quantity.String()).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert stock item: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE owner_id = $1 AND id = $2`

	item, err := scanItem(q.QueryRow(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStockItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to get stock item: %w", err)
	}
	return item, nil
}

func (r *postgresRepository) List(ctx context.Context, q db.DBTX, ownerID int64, search string, limit int) ([]Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM stock_items
		WHERE owner_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
		ORDER BY name, id
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, ownerID, strings.TrimSpace(search), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list stock items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan stock item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate stock items: %w", err)
	}
	return items, nil
}

// LockQuantity must run inside a transaction; the row stays locked until it
// ends.
func (r *postgresRepository) LockQuantity(ctx context.Context, q db.DBTX, ownerID, id int64) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRow(ctx, `SELECT quantity::text FROM stock_items WHERE owner_id = $1 AND id = $2 FOR UPDATE`, ownerID, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrStockItemNotFound
		}
		return decimal.Zero, fmt.Errorf("repository: failed to lock stock item: %w", err)
	}

	quantity, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: invalid stored quantity %q: %w", raw, err)
	}
	return quantity, nil
}

func (r *postgresRepository) SetQuantity(ctx context.Context, q db.DBTX, ownerID, id int64, quantity decimal.Decimal) error {
	tag, err := q.Exec(ctx, `
		UPDATE stock_items SET quantity = $3, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id, quantity.String())
	if err != nil {
		if db.IsCheckViolation(err) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("repository: failed to update stock quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStockItemNotFound
	}
	return nil
}

func (r *postgresRepository) AddMovement(ctx context.Context, q db.DBTX, m *Movement) error {
	query := `
		INSERT INTO stock_movements (stock_item_id, owner_id, delta, quantity_after, reason, invoice_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query,
		m.StockItemID, m.OwnerID, m.Delta.String(), m.QuantityAfter.String(), string(m.Reason), m.InvoiceID,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert stock movement: %w", err)
	}
	return nil
}

func (r *postgresRepository) Movements(ctx context.Context, q db.DBTX, ownerID, id int64, limit int) ([]Movement, error) {
	query := `
		SELECT id, stock_item_id, owner_id, delta::text, quantity_after::text, reason, invoice_id, created_at
		FROM stock_movements
		WHERE owner_id = $1 AND stock_item_id = $2
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, ownerID, id, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]Movement, 0)
	for rows.Next() {
		var (
			m            Movement
			delta, after string
			reason       string
		)
		if err := rows.Scan(&m.ID, &m.StockItemID, &m.OwnerID, &delta, &after, &reason, &m.InvoiceID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan stock movement: %w", err)
		}
		if m.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("repository: invalid stored delta %q: %w", delta, err)
		}
		if m.QuantityAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("repository: invalid stored quantity %q: %w", after, err)
		}
		m.Reason = Reason(reason)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate stock movements: %w", err)
	}
	return movements, nil
}

// FindByDescription matches an unlinked line by name (case-insensitive) or
// exact SKU. The lowest id wins.
func (r *postgresRepository) FindByDescription(ctx context.Context, q db.DBTX, ownerID int64, description string) (int64, bool, error) {
	var id int64
	err := q.QueryRow(ctx, `
		SELECT id FROM stock_items
		WHERE owner_id = $1 AND (lower(name) = lower($2) OR sku = $2)
		ORDER BY id
		LIMIT 1
	`, ownerID, strings.TrimSpace(description)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("repository: failed to match stock item: %w", err)
	}
	return id, true, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var (
		item Item
		raw  string
	)
	if err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.SKU, &item.Unit, &raw, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	quantity, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", raw, err)
	}
	item.Quantity = quantity
	return &item, nil
}
