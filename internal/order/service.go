package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/invoice"
	"github.com/vasiliy-maslov/backoffice/internal/money"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

// A status may always be re-applied; everything else must be listed here.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusNew: {
		StatusConfirmed: true,
		StatusFulfilled: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusFulfilled: true,
		StatusCancelled: true,
	},
	StatusFulfilled: {},
	StatusCancelled: {},
}

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrZeroPricedLine          = errors.New("order has a line with zero total")

	ErrInvalidStatus        = apperr.Invalid("status", "unknown order status")
	ErrCustomerNameRequired = apperr.Invalid("customer.name", "customer name is required and must be at most %d characters", maxNameLength)
	ErrPhoneRequired        = apperr.Invalid("customer.phone", "phone is required and must be at most %d characters", maxPhoneLength)
	ErrInvalidEmail         = apperr.Invalid("customer.email", "email is not valid")
	ErrFieldTooLong         = apperr.Invalid("customer", "customer field is too long")
	ErrNotesTooLong         = apperr.Invalid("notes", "notes must be at most %d characters", maxNotesLength)
	ErrEmptyCart            = apperr.Invalid("items", "cart is empty")
	ErrTooManyLines         = apperr.Invalid("items", "cart has more than %d lines", maxCartLines)
	ErrInvalidProductID     = apperr.Invalid("items.product_id", "product id must be positive")
	ErrInvalidQuantity      = apperr.Invalid("items.quantity", "quantity must be a positive number with at most 3 decimals")
	ErrQuantityTooLarge     = apperr.Invalid("items.quantity", "quantity must be at most %d", maxQuantity)
	ErrTotalTooLarge        = apperr.Invalid("items", "order total is too large")
)

const (
	maxNameLength    = 190
	maxPhoneLength   = 40
	maxAddressLength = 255
	maxDNILength     = 32
	maxNotesLength   = 1000
	maxCartLines     = 100
	maxQuantity      = 9999
	defaultListLimit = 50
	maxListLimit     = 500
)

var quantityPattern = regexp.MustCompile(`^\d+([.,]\d{1,3})?$`)

// ProductSource resolves cart lines against the live catalog.
type ProductSource interface {
	GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]catalog.Product, error)
}

// Invoicer is the part of the invoice engine fulfillment drives.
type Invoicer interface {
	CreateInvoiceTx(ctx context.Context, q db.DBTX, ownerID int64, in invoice.CreateInput) (int64, error)
	FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error)
	BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c invoice.Customer) error
}

type Service interface {
	CreateOrder(ctx context.Context, ownerID int64, in CreateInput) (*Receipt, error)
	GetOrderByID(ctx context.Context, ownerID, id int64) (*Order, error)
	GetOrderByToken(ctx context.Context, ownerID int64, token string) (*Order, error)
	ListOrders(ctx context.Context, ownerID int64, status string, limit int) ([]Order, error)
	// UpdateOrderStatus returns the invoice id when the change produced or
	// found one, otherwise 0.
	UpdateOrderStatus(ctx context.Context, ownerID, orderID int64, status string) (int64, error)
}

type service struct {
	store    db.Store
	repo     Repository
	products ProductSource
	invoices Invoicer
	validate *validator.Validate
}

func NewService(store db.Store, repo Repository, products ProductSource, invoices Invoicer) Service {
	return &service{
		store:    store,
		repo:     repo,
		products: products,
		invoices: invoices,
		validate: validator.New(),
	}
}

type cartLine struct {
	productID int64
	quantity  decimal.Decimal
}

func (s *service) CreateOrder(ctx context.Context, ownerID int64, in CreateInput) (*Receipt, error) {
	customer, err := s.validateCustomer(in.Customer)
	if err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return nil, ErrNotesTooLong
	}
	lines, err := mergeCart(in.Items)
	if err != nil {
		return nil, err
	}

	token, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order token: %w", err)
	}

	order := &Order{
		OwnerID:     ownerID,
		PublicToken: token,
		Customer:    customer,
		Notes:       notes,
		Status:      StatusNew,
	}

	err = s.store.WithinTx(ctx, func(q db.DBTX) error {
		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.productID
		}

		products, err := s.products.GetMany(ctx, q, ownerID, ids)
		if err != nil {
			return err
		}

		order.OrderItems = make([]OrderItem, 0, len(lines))
		for _, l := range lines {
			p, ok := products[l.productID]
			if !ok {
				log.Warn().Int64("owner_id", ownerID).Int64("product_id", l.productID).Msg("service: order references unknown product")
				return fmt.Errorf("product %d: %w", l.productID, ErrProductNotFound)
			}

			if order.Currency == "" {
				order.Currency = p.Currency
			} else if p.Currency != order.Currency {
				log.Warn().Int64("owner_id", ownerID).Str("order_currency", order.Currency).
					Str("product_currency", p.Currency).Int64("product_id", p.ID).
					Msg("service: cart mixes currencies, keeping the first")
			}

			total, err := money.ToCents(money.FromCents(p.PriceCents).Mul(l.quantity))
			if err != nil {
				return ErrTotalTooLarge
			}
			if order.TotalCents > math.MaxInt64-total {
				return ErrTotalTooLarge
			}
			order.TotalCents += total

			order.OrderItems = append(order.OrderItems, OrderItem{
				ProductID:      p.ID,
				Description:    p.Name,
				Quantity:       l.quantity,
				Unit:           p.Unit,
				UnitPriceCents: p.PriceCents,
				LineTotalCents: total,
				StockItemID:    p.StockItemID,
			})
		}

		return s.repo.CreateOrder(ctx, q, order)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) || apperr.IsValidation(err) {
			return nil, err
		}
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Int64("order_id", order.ID).Int64("owner_id", ownerID).Int64("total_cents", order.TotalCents).Msg("service: order created successfully")

	return &Receipt{
		OrderID:     order.ID,
		PublicToken: order.PublicToken,
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
	}, nil
}

func (s *service) GetOrderByID(ctx context.Context, ownerID, id int64) (*Order, error) {
	order, err := s.repo.GetOrderByID(ctx, s.store, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Int64("order_id", id).Int64("owner_id", ownerID).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return order, nil
}

func (s *service) GetOrderByToken(ctx context.Context, ownerID int64, token string) (*Order, error) {
	parsed, err := uuid.FromString(strings.TrimSpace(token))
	if err != nil || parsed == uuid.Nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.repo.GetOrderByToken(ctx, s.store, ownerID, parsed)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order by token: %w", err)
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, ownerID int64, status string, limit int) ([]Order, error) {
	var filter OrderStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = parsed
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	orders, err := s.repo.ListOrders(ctx, s.store, ownerID, filter, limit)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to fetch orders in repository")
		return nil, fmt.Errorf("service: failed to fetch orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, ownerID, orderID int64, status string) (int64, error) {
	newStatus, err := ParseStatus(status)
	if err != nil {
		return 0, err
	}

	var (
		invoiceID     int64
		currentStatus OrderStatus
	)
	err = s.store.WithinTx(ctx, func(q db.DBTX) error {
		current, err := s.repo.LockOrderStatus(ctx, q, ownerID, orderID)
		if err != nil {
			return err
		}
		currentStatus = current

		if current != newStatus && !allowedTransitions[current][newStatus] {
			return ErrInvalidStatusTransition
		}

		if newStatus == StatusFulfilled {
			invoiceID, err = s.fulfill(ctx, q, ownerID, orderID)
			if err != nil {
				return err
			}
		}

		return s.repo.UpdateOrderStatus(ctx, q, ownerID, orderID, newStatus)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			log.Warn().Int64("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return 0, ErrOrderNotFound
		case errors.Is(err, ErrInvalidStatusTransition):
			log.Warn().
				Int64("order_id", orderID).
				Stringer("current_status", currentStatus).
				Stringer("new_status", newStatus).
				Msg("service: invalid status transition attempt")
			return 0, fmt.Errorf("service: cannot move order from %s to %s: %w", currentStatus, newStatus, ErrInvalidStatusTransition)
		case isDomainError(err):
			log.Warn().Err(err).Int64("order_id", orderID).Msg("service: order fulfillment rejected")
			return 0, err
		}
		log.Error().Err(err).Int64("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status")
		return 0, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Int64("order_id", orderID).
		Stringer("old_status", currentStatus).
		Stringer("new_status", newStatus).
		Int64("invoice_id", invoiceID).
		Msg("service: order status updated successfully")
	return invoiceID, nil
}

// fulfill returns the order's invoice, creating it the first time. The order
// row is already locked, so two fulfillments of one order cannot race.
func (s *service) fulfill(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error) {
	order, err := s.repo.GetOrderByID(ctx, q, ownerID, orderID)
	if err != nil {
		return 0, err
	}

	invoiceID, err := s.invoices.FindBySourceOrder(ctx, q, ownerID, orderID)
	switch {
	case err == nil:
		log.Info().Int64("order_id", orderID).Int64("invoice_id", invoiceID).Msg("service: order already invoiced, reusing invoice")
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		invoiceID, err = s.createInvoice(ctx, q, order)
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	customer := invoice.Customer{
		Name:    order.Customer.Name,
		Email:   order.Customer.Email,
		DNI:     order.Customer.DNI,
		Phone:   order.Customer.Phone,
		Address: order.Customer.Address,
	}
	if err := s.invoices.BackfillCustomer(ctx, q, ownerID, invoiceID, customer); err != nil {
		log.Warn().Err(err).Int64("invoice_id", invoiceID).Msg("service: failed to backfill invoice customer")
	}

	return invoiceID, nil
}

func (s *service) createInvoice(ctx context.Context, q db.DBTX, order *Order) (int64, error) {
	ids := make([]int64, 0, len(order.OrderItems))
	for _, it := range order.OrderItems {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetMany(ctx, q, order.OwnerID, ids)
	if err != nil {
		return 0, err
	}

	items := make([]invoice.ItemInput, 0, len(order.OrderItems))
	for _, it := range order.OrderItems {
		if it.LineTotalCents <= 0 {
			return 0, fmt.Errorf("item %q: %w", it.Description, ErrZeroPricedLine)
		}

		unit := it.Unit
		var productID *int64
		if p, ok := products[it.ProductID]; ok {
			if p.Unit != "" {
				unit = p.Unit
			}
			id := p.ID
			productID = &id
		}

		items = append(items, invoice.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Unit:        unit,
			Price:       money.FromCents(it.LineTotalCents).StringFixed(2),
			ProductID:   productID,
			StockItemID: it.StockItemID,
		})
	}

	detail := fmt.Sprintf("Pedido #%d", order.ID)
	if order.Notes != "" {
		detail += "\n" + order.Notes
	}

	orderID := order.ID
	return s.invoices.CreateInvoiceTx(ctx, q, order.OwnerID, invoice.CreateInput{
		Customer: invoice.Customer{
			Name:    order.Customer.Name,
			Email:   order.Customer.Email,
			DNI:     order.Customer.DNI,
			Phone:   order.Customer.Phone,
			Address: order.Customer.Address,
		},
		Detail:        detail,
		Currency:      order.Currency,
		Items:         items,
		SourceOrderID: &orderID,
	})
}

func (s *service) validateCustomer(c Customer) (Customer, error) {
	c = Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		DNI:     strings.TrimSpace(c.DNI),
		Address: strings.TrimSpace(c.Address),
	}

	if c.Name == "" || utf8.RuneCountInString(c.Name) > maxNameLength {
		return Customer{}, ErrCustomerNameRequired
	}
	if c.Phone == "" || utf8.RuneCountInString(c.Phone) > maxPhoneLength {
		return Customer{}, ErrPhoneRequired
	}
	if c.Email != "" {
		if err := s.validate.Var(c.Email, "email,max=190"); err != nil {
			return Customer{}, ErrInvalidEmail
		}
	}
	if utf8.RuneCountInString(c.Address) > maxAddressLength {
		return Customer{}, fmt.Errorf("customer address must be at most %d characters: %w", maxAddressLength, ErrFieldTooLong)
	}
	if utf8.RuneCountInString(c.DNI) > maxDNILength {
		return Customer{}, fmt.Errorf("customer dni must be at most %d characters: %w", maxDNILength, ErrFieldTooLong)
	}
	return c, nil
}

// mergeCart validates quantities and sums repeated products, keeping the
// order in which products first appear.
func mergeCart(items []CartLine) ([]cartLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if len(items) > maxCartLines {
		return nil, ErrTooManyLines
	}

	limit := decimal.NewFromInt(maxQuantity)
	index := make(map[int64]int, len(items))
	lines := make([]cartLine, 0, len(items))

	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, ErrInvalidProductID
		}

		raw := strings.TrimSpace(it.Quantity)
		if !quantityPattern.MatchString(raw) {
			return nil, ErrInvalidQuantity
		}
		quantity, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
		if err != nil || !quantity.IsPositive() {
			return nil, ErrInvalidQuantity
		}
		if quantity.GreaterThan(limit) {
			return nil, ErrQuantityTooLarge
		}

		if i, ok := index[it.ProductID]; ok {
			lines[i].quantity = lines[i].quantity.Add(quantity)
			if lines[i].quantity.GreaterThan(limit) {
				return nil, ErrQuantityTooLarge
			}
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, cartLine{productID: it.ProductID, quantity: quantity})
	}
	return lines, nil
}

func isDomainError(err error) bool {
	return apperr.IsValidation(err) ||
		errors.Is(err, ErrZeroPricedLine) ||
		errors.Is(err, invoice.ErrDuplicateSourceOrder) ||
		errors.Is(err, stock.ErrInsufficientStock)
}
