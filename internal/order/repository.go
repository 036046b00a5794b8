package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/db"
)

type Repository interface {
	CreateOrder(ctx context.Context, q db.DBTX, order *Order) error
	GetOrderByID(ctx context.Context, q db.DBTX, ownerID, id int64) (*Order, error)
	GetOrderByToken(ctx context.Context, q db.DBTX, ownerID int64, token uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, q db.DBTX, ownerID int64, status OrderStatus, limit int) ([]Order, error)
	LockOrderStatus(ctx context.Context, q db.DBTX, ownerID, id int64) (OrderStatus, error)
	UpdateOrderStatus(ctx context.Context, q db.DBTX, ownerID, id int64, status OrderStatus) error
}

type postgresRepository struct {
	caps db.Capabilities
}

func NewRepository(caps db.Capabilities) Repository {
	return &postgresRepository{caps: caps}
}

// CreateOrder writes the header and items; call it inside a transaction so
// both land together.
func (r *postgresRepository) CreateOrder(ctx context.Context, q db.DBTX, order *Order) error {
	cols := []string{"owner_id", "public_token", "customer_name", "customer_phone", "customer_email",
		"customer_address", "notes", "currency", "total_cents", "status"}
	args := []any{order.OwnerID, order.PublicToken, order.Customer.Name, order.Customer.Phone, order.Customer.Email,
		order.Customer.Address, order.Notes, order.Currency, order.TotalCents, order.Status.String()}
	if r.caps.CustomerDNI {
		cols = append(cols, "customer_dni")
		args = append(args, order.Customer.DNI)
	}

	queryOrder := `INSERT INTO orders (` + strings.Join(cols, ", ") + `) VALUES (` + db.Placeholders(len(args)) + `)
		RETURNING id, created_at, updated_at`

	if err := q.QueryRow(ctx, queryOrder, args...).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range order.OrderItems {
		item := &order.OrderItems[i]
		item.OrderID = order.ID

		itemCols := []string{"order_id", "product_id", "description", "quantity", "unit_price_cents", "line_total_cents"}
		itemArgs := []any{item.OrderID, item.ProductID, item.Description, item.Quantity.String(), item.UnitPriceCents, item.LineTotalCents}
		if r.caps.ItemUnit {
			itemCols = append(itemCols, "unit")
			itemArgs = append(itemArgs, db.NullIfEmpty(item.Unit))
		}
		if r.caps.StockLink {
			itemCols = append(itemCols, "stock_item_id")
			itemArgs = append(itemArgs, item.StockItemID)
		}

		queryItem := `INSERT INTO order_items (` + strings.Join(itemCols, ", ") + `) VALUES (` + db.Placeholders(len(itemArgs)) + `)
			RETURNING id`
		if err := q.QueryRow(ctx, queryItem, itemArgs...).Scan(&item.ID); err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %d: %w", order.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) headerColumns() string {
	dni := "''"
	if r.caps.CustomerDNI {
		dni = "customer_dni"
	}
	return `id, owner_id, public_token, customer_name, customer_phone, customer_email, ` + dni + `,
		customer_address, notes, currency, total_cents, status, created_at, updated_at`
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, q db.DBTX, ownerID, id int64) (*Order, error) {
	query := `SELECT ` + r.headerColumns() + ` FROM orders WHERE owner_id = $1 AND id = $2`
	return r.getOrder(ctx, q, query, ownerID, id)
}

func (r *postgresRepository) GetOrderByToken(ctx context.Context, q db.DBTX, ownerID int64, token uuid.UUID) (*Order, error) {
	query := `SELECT ` + r.headerColumns() + ` FROM orders WHERE owner_id = $1 AND public_token = $2`
	return r.getOrder(ctx, q, query, ownerID, token)
}

func (r *postgresRepository) getOrder(ctx context.Context, q db.DBTX, query string, args ...any) (*Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order: %w", err)
	}

	items, err := r.orderItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.OrderItems = items
	return order, nil
}

func (r *postgresRepository) orderItems(ctx context.Context, q db.DBTX, orderID int64) ([]OrderItem, error) {
	unit := "''"
	if r.caps.ItemUnit {
		unit = "COALESCE(unit, '')"
	}
	stockLink := "NULL::bigint"
	if r.caps.StockLink {
		stockLink = "stock_item_id"
	}

	query := `
		SELECT id, order_id, product_id, description, quantity::text, ` + unit + `, unit_price_cents, line_total_cents, ` + stockLink + `
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var (
			item OrderItem
			raw  string
		)
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Description, &raw, &item.Unit,
			&item.UnitPriceCents, &item.LineTotalCents, &item.StockItemID)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %d: %w", orderID, err)
		}
		if item.Quantity, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("repository: invalid stored quantity %q: %w", raw, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %d: %w", orderID, err)
	}
	return items, nil
}

// ListOrders returns headers only, newest first. An empty status means all.
func (r *postgresRepository) ListOrders(ctx context.Context, q db.DBTX, ownerID int64, status OrderStatus, limit int) ([]Order, error) {
	query := `
		SELECT ` + r.headerColumns() + `
		FROM orders
		WHERE owner_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, ownerID, status.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for owner %d: %w", ownerID, err)
		}
		order.OrderItems = make([]OrderItem, 0)
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for owner %d: %w", ownerID, err)
	}
	return orders, nil
}

// LockOrderStatus locks the order row until the surrounding transaction
// ends, serializing concurrent status changes of the same order.
func (r *postgresRepository) LockOrderStatus(ctx context.Context, q db.DBTX, ownerID, id int64) (OrderStatus, error) {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM orders WHERE owner_id = $1 AND id = $2 FOR UPDATE`, ownerID, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("repository: failed to lock order %d: %w", id, err)
	}
	return OrderStatus(status), nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, q db.DBTX, ownerID, id int64, status OrderStatus) error {
	cmdTag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id, status.String())
	if err != nil {
		log.Error().Err(err).Int64("order_id", id).Str("new_status", status.String()).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %d: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Int64("order_id", id).Str("new_status", status.String()).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order  Order
		status string
	)
	err := row.Scan(&order.ID, &order.OwnerID, &order.PublicToken, &order.Customer.Name, &order.Customer.Phone,
		&order.Customer.Email, &order.Customer.DNI, &order.Customer.Address, &order.Notes, &order.Currency,
		&order.TotalCents, &status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.Status = OrderStatus(status)
	order.Currency = strings.TrimSpace(order.Currency)
	return &order, nil
}
