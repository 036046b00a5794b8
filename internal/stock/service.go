package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/money"
)

var (
	ErrStockItemNotFound = errors.New("stock item not found")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrZeroDelta         = apperr.Invalid("delta", "adjustment must not be zero")
	ErrInvalidName       = apperr.Invalid("name", "name is required and must be at most %d characters", maxNameLength)
	ErrInvalidSKU        = apperr.Invalid("sku", "sku must be at most %d characters", maxSKULength)
	ErrNegativeQuantity  = apperr.Invalid("quantity", "quantity must not be negative")
	ErrQuantityPrecision = apperr.Invalid("quantity", "quantity supports at most %d decimals", quantityScale)
	ErrQuantityTooLarge  = apperr.Invalid("quantity", "quantity is too large")
)

const (
	maxNameLength    = 190
	maxSKULength     = 64
	quantityScale    = 3
	defaultListLimit = 100
	maxListLimit     = 500
)

// NUMERIC(14,3) upper bound.
var maxQuantity = decimal.New(1, 11)

type Service interface {
	CreateItem(ctx context.Context, ownerID int64, in CreateItemInput) (*Item, error)
	List(ctx context.Context, ownerID int64, search string, limit int) ([]Item, error)
	Get(ctx context.Context, ownerID, id int64) (*Item, error)
	Adjust(ctx context.Context, ownerID, id int64, delta string) (*Item, error)
	Movements(ctx context.Context, ownerID, id int64, limit int) ([]Movement, error)
	DebitForLine(ctx context.Context, q db.DBTX, ownerID int64, line LineDebit) (DebitResult, error)
}

type service struct {
	store db.Store
	repo  Repository
}

func NewService(store db.Store, repo Repository) Service {
	return &service{store: store, repo: repo}
}

func (s *service) CreateItem(ctx context.Context, ownerID int64, in CreateItemInput) (*Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}
	sku := strings.TrimSpace(in.SKU)
	if utf8.RuneCountInString(sku) > maxSKULength {
		return nil, ErrInvalidSKU
	}

	quantity := decimal.Zero
	if strings.TrimSpace(in.Quantity) != "" {
		parsed, err := money.ParseDecimal(in.Quantity)
		if err != nil {
			return nil, err
		}
		if parsed.IsNegative() {
			return nil, ErrNegativeQuantity
		}
		if err := checkQuantity(parsed); err != nil {
			return nil, err
		}
		quantity = parsed
	}

	unit := ""
	if strings.TrimSpace(in.Unit) != "" {
		unit = money.NormalizeUnit(in.Unit).String()
	}

	item := &Item{
		OwnerID:  ownerID,
		Name:     name,
		SKU:      sku,
		Unit:     unit,
		Quantity: quantity,
	}
	if err := s.repo.Create(ctx, s.store, item); err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to create stock item")
		return nil, fmt.Errorf("service: failed to create stock item: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("stock_item_id", item.ID).Msg("service: stock item created")
	return item, nil
}

func (s *service) List(ctx context.Context, ownerID int64, search string, limit int) ([]Item, error) {
	items, err := s.repo.List(ctx, s.store, ownerID, search, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to list stock items")
		return nil, fmt.Errorf("service: failed to list stock items: %w", err)
	}
	return items, nil
}

func (s *service) Get(ctx context.Context, ownerID, id int64) (*Item, error) {
	item, err := s.repo.Get(ctx, s.store, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrStockItemNotFound) {
			return nil, ErrStockItemNotFound
		}
		return nil, fmt.Errorf("service: failed to get stock item: %w", err)
	}
	return item, nil
}

// Adjust applies a signed delta. A delta that would take the quantity below
// zero is rejected and nothing changes.
func (s *service) Adjust(ctx context.Context, ownerID, id int64, delta string) (*Item, error) {
	d, err := money.ParseDecimal(delta)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, ErrZeroDelta
	}
	if err := checkQuantity(d); err != nil {
		return nil, err
	}

	var item *Item
	err = s.store.WithinTx(ctx, func(q db.DBTX) error {
		if err := s.apply(ctx, q, ownerID, id, d, ReasonManual, nil); err != nil {
			return err
		}
		var getErr error
		item, getErr = s.repo.Get(ctx, q, ownerID, id)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrStockItemNotFound) || errors.Is(err, ErrInsufficientStock) {
			log.Warn().Err(err).Int64("owner_id", ownerID).Int64("stock_item_id", id).Str("delta", d.String()).Msg("service: stock adjustment rejected")
			return nil, err
		}
		log.Error().Err(err).Int64("stock_item_id", id).Msg("service: failed to adjust stock")
		return nil, fmt.Errorf("service: failed to adjust stock: %w", err)
	}

	return item, nil
}

func (s *service) Movements(ctx context.Context, ownerID, id int64, limit int) ([]Movement, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	movements, err := s.repo.Movements(ctx, s.store, ownerID, id, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("service: failed to list stock movements: %w", err)
	}
	return movements, nil
}

// DebitForLine subtracts an invoice line from stock inside the caller's
// transaction. Lines that match no stock item are left alone.
func (s *service) DebitForLine(ctx context.Context, q db.DBTX, ownerID int64, line LineDebit) (DebitResult, error) {
	if !line.Quantity.IsPositive() {
		return DebitResult{}, nil
	}

	result := DebitResult{}
	if line.StockItemID != nil {
		result.StockItemID = *line.StockItemID
		result.Matched = true
	} else {
		id, ok, err := s.repo.FindByDescription(ctx, q, ownerID, line.Description)
		if err != nil {
			return DebitResult{}, err
		}
		if !ok {
			return DebitResult{}, nil
		}
		result = DebitResult{StockItemID: id, Matched: true, ByHeuristic: true}
	}

	var invoiceID *int64
	if line.InvoiceID != 0 {
		invoiceID = &line.InvoiceID
	}

	err := s.apply(ctx, q, ownerID, result.StockItemID, line.Quantity.Neg(), ReasonInvoice, invoiceID)
	if errors.Is(err, ErrStockItemNotFound) && !result.ByHeuristic {
		// A stale link to another owner's item or a removed row.
		log.Warn().Int64("owner_id", ownerID).Int64("stock_item_id", result.StockItemID).Msg("service: linked stock item not found, line not debited")
		return DebitResult{}, nil
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			log.Warn().Int64("owner_id", ownerID).Int64("stock_item_id", result.StockItemID).
				Str("quantity", line.Quantity.String()).Msg("service: insufficient stock for invoice line")
		}
		return DebitResult{}, err
	}

	return result, nil
}

func (s *service) apply(ctx context.Context, q db.DBTX, ownerID, id int64, delta decimal.Decimal, reason Reason, invoiceID *int64) error {
	current, err := s.repo.LockQuantity(ctx, q, ownerID, id)
	if err != nil {
		return err
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return ErrInsufficientStock
	}
	if err := checkQuantity(next); err != nil {
		return err
	}

	if err := s.repo.SetQuantity(ctx, q, ownerID, id, next); err != nil {
		return err
	}

	return s.repo.AddMovement(ctx, q, &Movement{
		StockItemID:   id,
		OwnerID:       ownerID,
		Delta:         delta,
		QuantityAfter: next,
		Reason:        reason,
		InvoiceID:     invoiceID,
	})
}

func checkQuantity(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(quantityScale)) {
		return ErrQuantityPrecision
	}
	if d.Abs().GreaterThanOrEqual(maxQuantity) {
		return ErrQuantityTooLarge
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
