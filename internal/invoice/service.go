package invoice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/money"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrDuplicateSourceOrder = errors.New("order already has an invoice")

	ErrCustomerNameRequired = apperr.Invalid("customer.name", "customer name is required and must be at most %d characters", maxNameLength)
	ErrInvalidEmail         = apperr.Invalid("customer.email", "a valid customer email is required")
	ErrFieldTooLong         = apperr.Invalid("customer", "customer field is too long")
	ErrNoItems              = apperr.Invalid("items", "invoice needs at least one item")
	ErrTooManyItems         = apperr.Invalid("items", "invoice has more than %d items", maxItems)
	ErrItemDescription      = apperr.Invalid("items.description", "item description is required and must be at most %d characters", maxNameLength)
	ErrTotalTooLarge        = apperr.Invalid("items", "invoice total is too large")
)

const (
	maxNameLength    = 190
	maxDNILength     = 32
	maxPhoneLength   = 40
	maxAddressLength = 255
	maxItems         = 200
	defaultListLimit = 50
	maxListLimit     = 500
)

// StockDebiter is the part of the stock ledger invoicing needs.
type StockDebiter interface {
	DebitForLine(ctx context.Context, q db.DBTX, ownerID int64, line stock.LineDebit) (stock.DebitResult, error)
}

// ProductLinker records a stock item found by the legacy name match on the
// product the line came from.
type ProductLinker interface {
	LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) error
}

type Service interface {
	CreateInvoice(ctx context.Context, ownerID int64, in CreateInput) (int64, error)
	// CreateInvoiceTx runs inside the caller's transaction.
	CreateInvoiceTx(ctx context.Context, q db.DBTX, ownerID int64, in CreateInput) (int64, error)
	Get(ctx context.Context, ownerID, id int64) (*Document, error)
	List(ctx context.Context, ownerID int64, limit int) ([]Invoice, error)
	FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error)
	BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c Customer) error
}

type service struct {
	store    db.Store
	repo     Repository
	stock    StockDebiter
	products ProductLinker
	validate *validator.Validate
}

func NewService(store db.Store, repo Repository, stock StockDebiter, products ProductLinker) Service {
	return &service{
		store:    store,
		repo:     repo,
		stock:    stock,
		products: products,
		validate: validator.New(),
	}
}

type pricedItem struct {
	input ItemInput
	line  money.Line
	desc  string
}

func (s *service) CreateInvoice(ctx context.Context, ownerID int64, in CreateInput) (int64, error) {
	var id int64
	err := s.store.WithinTx(ctx, func(q db.DBTX) error {
		var txErr error
		id, txErr = s.CreateInvoiceTx(ctx, q, ownerID, in)
		return txErr
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("owner_id", ownerID).Int64("invoice_id", id).Msg("service: invoice created")
	return id, nil
}

func (s *service) CreateInvoiceTx(ctx context.Context, q db.DBTX, ownerID int64, in CreateInput) (int64, error) {
	customer, err := s.validateCustomer(in.Customer, in.SourceOrderID != nil)
	if err != nil {
		return 0, err
	}
	currency, err := money.NormalizeCurrency(in.Currency)
	if err != nil {
		return 0, err
	}
	items, total, err := priceItems(in.Items)
	if err != nil {
		return 0, err
	}

	inv := &Invoice{
		OwnerID:       ownerID,
		Customer:      customer,
		Detail:        strings.TrimSpace(in.Detail),
		Currency:      currency,
		TotalCents:    total,
		SourceOrderID: in.SourceOrderID,
	}
	if err := s.repo.Insert(ctx, q, inv); err != nil {
		if errors.Is(err, ErrDuplicateSourceOrder) {
			log.Warn().Int64("owner_id", ownerID).Int64("order_id", *in.SourceOrderID).Msg("service: order already invoiced")
			return 0, ErrDuplicateSourceOrder
		}
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to insert invoice")
		return 0, fmt.Errorf("service: failed to insert invoice: %w", err)
	}

	for i, it := range items {
		debit, err := s.stock.DebitForLine(ctx, q, ownerID, stock.LineDebit{
			Description: it.desc,
			Quantity:    it.line.Quantity,
			StockItemID: it.input.StockItemID,
			InvoiceID:   inv.ID,
		})
		if err != nil {
			if errors.Is(err, stock.ErrInsufficientStock) {
				log.Warn().Int64("owner_id", ownerID).Str("item", it.desc).Msg("service: invoice rejected, insufficient stock")
				return 0, fmt.Errorf("item %d (%s): %w", i+1, it.desc, stock.ErrInsufficientStock)
			}
			return 0, fmt.Errorf("service: failed to debit stock: %w", err)
		}

		item := &Item{
			InvoiceID:      inv.ID,
			Description:    it.desc,
			Quantity:       it.line.Quantity,
			Unit:           it.line.Unit.String(),
			UnitPriceCents: it.line.UnitPriceCents,
			LineTotalCents: it.line.LineTotalCents,
		}
		if debit.Matched {
			stockID := debit.StockItemID
			item.StockItemID = &stockID
		}
		if err := s.repo.InsertItem(ctx, q, item); err != nil {
			log.Error().Err(err).Int64("invoice_id", inv.ID).Msg("service: failed to insert invoice item")
			return 0, fmt.Errorf("service: failed to insert invoice item: %w", err)
		}

		if debit.ByHeuristic && it.input.ProductID != nil {
			if err := s.products.LinkStockItem(ctx, q, ownerID, *it.input.ProductID, debit.StockItemID); err != nil {
				return 0, fmt.Errorf("service: failed to link product to stock: %w", err)
			}
		}
	}

	return inv.ID, nil
}

func (s *service) Get(ctx context.Context, ownerID, id int64) (*Document, error) {
	inv, err := s.repo.Get(ctx, s.store, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("service: failed to get invoice: %w", err)
	}

	items, err := s.repo.Items(ctx, s.store, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get invoice items: %w", err)
	}
	return &Document{Invoice: *inv, Items: items}, nil
}

func (s *service) List(ctx context.Context, ownerID int64, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	invoices, err := s.repo.List(ctx, s.store, ownerID, limit)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to list invoices")
		return nil, fmt.Errorf("service: failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (s *service) FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error) {
	id, err := s.repo.FindBySourceOrder(ctx, q, ownerID, orderID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return 0, ErrInvoiceNotFound
		}
		return 0, fmt.Errorf("service: failed to find invoice by order: %w", err)
	}
	return id, nil
}

func (s *service) BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c Customer) error {
	if err := s.repo.BackfillCustomer(ctx, q, ownerID, id, trimCustomer(c)); err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("service: failed to backfill invoice customer: %w", err)
	}
	return nil
}

// validateCustomer enforces the customer rules. Invoices generated from an
// order may lack an email because the storefront does not require one.
func (s *service) validateCustomer(c Customer, fromOrder bool) (Customer, error) {
	c = trimCustomer(c)

	if c.Name == "" || utf8.RuneCountInString(c.Name) > maxNameLength {
		return Customer{}, ErrCustomerNameRequired
	}
	if c.Email != "" || !fromOrder {
		if err := s.validate.Var(c.Email, "required,email,max=190"); err != nil {
			return Customer{}, ErrInvalidEmail
		}
	}

	limits := []struct {
		field string
		value string
		max   int
	}{
		{"dni", c.DNI, maxDNILength},
		{"phone", c.Phone, maxPhoneLength},
		{"address", c.Address, maxAddressLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return Customer{}, fmt.Errorf("customer %s must be at most %d characters: %w", l.field, l.max, ErrFieldTooLong)
		}
	}
	return c, nil
}

func trimCustomer(c Customer) Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		DNI:     strings.TrimSpace(c.DNI),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
}

// priceItems validates and prices every line before anything is written.
// Quantities are rounded to the stock ledger scale, so the invoiced quantity
// is exactly what gets debited.
func priceItems(inputs []ItemInput) ([]pricedItem, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, ErrNoItems
	}
	if len(inputs) > maxItems {
		return nil, 0, ErrTooManyItems
	}

	items := make([]pricedItem, 0, len(inputs))
	var total int64
	for i, in := range inputs {
		desc := strings.TrimSpace(in.Description)
		if desc == "" || utf8.RuneCountInString(desc) > maxNameLength {
			return nil, 0, fmt.Errorf("item %d: %w", i+1, ErrItemDescription)
		}

		quantity, err := money.ParseDecimal(in.Quantity)
		if err != nil {
			return nil, 0, fmt.Errorf("item %d: %w", i+1, money.ErrInvalidQuantity)
		}
		price, err := money.ParseDecimal(in.Price)
		if err != nil {
			return nil, 0, fmt.Errorf("item %d: %w", i+1, money.ErrInvalidPrice)
		}

		line, err := money.ComputeLine(money.NormalizeUnit(in.Unit), quantity.Round(money.QuantityScale), price)
		if err != nil {
			return nil, 0, fmt.Errorf("item %d: %w", i+1, err)
		}

		if total > math.MaxInt64-line.LineTotalCents {
			return nil, 0, ErrTotalTooLarge
		}
		total += line.LineTotalCents

		items = append(items, pricedItem{input: in, line: line, desc: desc})
	}
	return items, total, nil
}
