package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Repository interface {
	SalesByCurrency(ctx context.Context, ownerID int64, from, to time.Time) ([]SalesLine, error)
	LowStock(ctx context.Context, ownerID int64, threshold decimal.Decimal) ([]LowStockItem, error)
	OrderStatusCounts(ctx context.Context, ownerID int64) ([]StatusCount, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) SalesByCurrency(ctx context.Context, ownerID int64, from, to time.Time) ([]SalesLine, error) {
	query := `SELECT currency, count(*) AS invoices, COALESCE(sum(total_cents), 0) AS total_cents
		FROM invoices
		WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY currency
		ORDER BY currency`

	lines := []SalesLine{}
	if err := r.db.SelectContext(ctx, &lines, query, ownerID, from, to); err != nil {
		return nil, fmt.Errorf("repository: failed to summarize sales: %w", err)
	}
	return lines, nil
}

type lowStockRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	SKU      string `db:"sku"`
	Unit     string `db:"unit"`
	Quantity string `db:"quantity"`
}

func (r *sqlxRepository) LowStock(ctx context.Context, ownerID int64, threshold decimal.Decimal) ([]LowStockItem, error) {
	query := `SELECT id, name, COALESCE(sku, '') AS sku, COALESCE(unit, '') AS unit, quantity::text AS quantity
		FROM stock_items
		WHERE owner_id = $1 AND quantity <= $2::numeric
		ORDER BY quantity, name, id`

	var rows []lowStockRow
	if err := r.db.SelectContext(ctx, &rows, query, ownerID, threshold.String()); err != nil {
		return nil, fmt.Errorf("repository: failed to list low stock: %w", err)
	}

	items := make([]LowStockItem, 0, len(rows))
	for _, row := range rows {
		quantity, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to parse stock quantity %q: %w", row.Quantity, err)
		}
		items = append(items, LowStockItem{
			ID:       row.ID,
			Name:     row.Name,
			SKU:      row.SKU,
			Unit:     row.Unit,
			Quantity: quantity,
		})
	}
	return items, nil
}

func (r *sqlxRepository) OrderStatusCounts(ctx context.Context, ownerID int64) ([]StatusCount, error) {
	query := `SELECT status, count(*) AS count FROM orders WHERE owner_id = $1 GROUP BY status`

	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, ownerID); err != nil {
		return nil, fmt.Errorf("repository: failed to count orders by status: %w", err)
	}
	return counts, nil
}
