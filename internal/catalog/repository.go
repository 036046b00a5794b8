package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/backoffice/internal/db"
)

type Repository interface {
	Create(ctx context.Context, q db.DBTX, p *Product) error
	Update(ctx context.Context, q db.DBTX, p *Product) error
	Delete(ctx context.Context, q db.DBTX, ownerID, id int64) error
	Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Product, error)
	GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]Product, error)
	List(ctx context.Context, q db.DBTX, ownerID int64, search string, limit int) ([]Product, error)
	LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) (bool, error)
	StockItemExists(ctx context.Context, q db.DBTX, ownerID, stockItemID int64) (bool, error)
}

type postgresRepository struct {
	caps db.Capabilities
}

func NewRepository(caps db.Capabilities) Repository {
	return &postgresRepository{caps: caps}
}

func (r *postgresRepository) columns() string {
	unit := "''"
	if r.caps.ProductUnit {
		unit = "COALESCE(unit, '')"
	}
	stockLink := "NULL::bigint"
	if r.caps.StockLink {
		stockLink = "stock_item_id"
	}
	return `id, owner_id, name, price_cents, currency, ` + unit + `, COALESCE(description, ''), COALESCE(image_url, ''), ` +
		stockLink + `, created_at, updated_at`
}

func (r *postgresRepository) Create(ctx context.Context, q db.DBTX, p *Product) error {
	cols := []string{"owner_id", "name", "price_cents", "currency", "description", "image_url"}
	args := []any{p.OwnerID, p.Name, p.PriceCents, p.Currency, db.NullIfEmpty(p.Description), db.NullIfEmpty(p.ImageURL)}
	if r.caps.ProductUnit {
		cols = append(cols, "unit")
		args = append(args, db.NullIfEmpty(p.Unit))
	}
	if r.caps.StockLink {
		cols = append(cols, "stock_item_id")
		args = append(args, p.StockItemID)
	}

	query := `INSERT INTO products (` + strings.Join(cols, ", ") + `) VALUES (` + db.Placeholders(len(args)) + `)
		RETURNING id, created_at, updated_at`

	if err := q.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, q db.DBTX, p *Product) error {
	sets := []string{"name = $3", "price_cents = $4", "currency = $5", "description = $6", "image_url = $7"}
	args := []any{p.OwnerID, p.ID, p.Name, p.PriceCents, p.Currency, db.NullIfEmpty(p.Description), db.NullIfEmpty(p.ImageURL)}
	if r.caps.ProductUnit {
		args = append(args, db.NullIfEmpty(p.Unit))
		sets = append(sets, fmt.Sprintf("unit = $%d", len(args)))
	}
	if r.caps.StockLink {
		args = append(args, p.StockItemID)
		sets = append(sets, fmt.Sprintf("stock_item_id = $%d", len(args)))
	}

	query := `UPDATE products SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING created_at, updated_at`

	err := q.QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to update product: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, q db.DBTX, ownerID, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM products WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*Product, error) {
	query := `SELECT ` + r.columns() + ` FROM products WHERE owner_id = $1 AND id = $2`

	p, err := scanProduct(q.QueryRow(ctx, query, ownerID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to get product: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]Product, error) {
	products := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT ` + r.columns() + ` FROM products WHERE owner_id = $1 AND id = ANY($2)`
	rows, err := q.Query(ctx, query, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) List(ctx context.Context, q db.DBTX, ownerID int64, search string, limit int) ([]Product, error) {
	query := `
		SELECT ` + r.columns() + `
		FROM products
		WHERE owner_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name, id
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, ownerID, search, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate products: %w", err)
	}
	return products, nil
}

// LinkStockItem only fills an empty link; it reports whether a row changed.
func (r *postgresRepository) LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) (bool, error) {
	if !r.caps.StockLink {
		return false, nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE products SET stock_item_id = $3, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND stock_item_id IS NULL
	`, ownerID, productID, stockItemID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to link product to stock item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) StockItemExists(ctx context.Context, q db.DBTX, ownerID, stockItemID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_items WHERE owner_id = $1 AND id = $2)`, ownerID, stockItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check stock item: %w", err)
	}
	return exists, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.PriceCents, &p.Currency, &p.Unit,
		&p.Description, &p.ImageURL, &p.StockItemID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Currency = strings.TrimSpace(p.Currency)
	return &p, nil
}
