package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/money"
)

var (
	ErrProductNotFound = errors.New("product not found")

	ErrInvalidName        = apperr.Invalid("name", "name is required and must be at most %d characters", maxNameLength)
	ErrNegativePrice      = apperr.Invalid("price", "price must not be negative")
	ErrInvalidImageURL    = apperr.Invalid("image_url", "image_url must be an absolute URL")
	ErrDescriptionTooLong = apperr.Invalid("description", "description must be at most %d characters", maxDescriptionLength)
	ErrInvalidStockItem   = apperr.Invalid("stock_item_id", "stock item does not exist")
)

const (
	maxNameLength        = 190
	maxDescriptionLength = 2000
)

type Service interface {
	List(ctx context.Context, ownerID int64, search string, limit int) ([]Product, error)
	// ListPublic serves the storefront; identical concurrent lookups share
	// one query.
	ListPublic(ctx context.Context, ownerID int64, search string) ([]Product, error)
	Get(ctx context.Context, ownerID, id int64) (*Product, error)
	GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]Product, error)
	Create(ctx context.Context, ownerID int64, in Input) (*Product, error)
	Update(ctx context.Context, ownerID, id int64, in Input) (*Product, error)
	Delete(ctx context.Context, ownerID, id int64) error
	LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) error
}

type service struct {
	store    db.Store
	repo     Repository
	validate *validator.Validate
	maxList  int
	group    singleflight.Group
}

func NewService(store db.Store, repo Repository, maxList int) Service {
	return &service{
		store:    store,
		repo:     repo,
		validate: validator.New(),
		maxList:  maxList,
	}
}

func (s *service) List(ctx context.Context, ownerID int64, search string, limit int) ([]Product, error) {
	if limit <= 0 || limit > s.maxList {
		limit = s.maxList
	}

	products, err := s.repo.List(ctx, s.store, ownerID, strings.TrimSpace(search), limit)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) ListPublic(ctx context.Context, ownerID int64, search string) ([]Product, error) {
	search = strings.TrimSpace(search)
	key := strconv.FormatInt(ownerID, 10) + "\x00" + strings.ToLower(search)

	// The shared query must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, coalesced := s.group.Do(key, func() (any, error) {
		return s.List(shared, ownerID, search, s.maxList)
	})
	if err != nil {
		return nil, err
	}
	if coalesced {
		log.Debug().Int64("owner_id", ownerID).Msg("service: storefront listing shared")
	}

	// Callers may not mutate what other callers received.
	products := v.([]Product)
	out := make([]Product, len(products))
	copy(out, products)
	return out, nil
}

func (s *service) Get(ctx context.Context, ownerID, id int64) (*Product, error) {
	p, err := s.repo.Get(ctx, s.store, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			log.Warn().Int64("owner_id", ownerID).Int64("product_id", id).Msg("service: product not found")
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to get product: %w", err)
	}
	return p, nil
}

func (s *service) GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]Product, error) {
	products, err := s.repo.GetMany(ctx, q, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get products: %w", err)
	}
	return products, nil
}

func (s *service) Create(ctx context.Context, ownerID int64, in Input) (*Product, error) {
	p, err := s.build(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, s.store, p); err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("product_id", p.ID).Msg("service: product created")
	return p, nil
}

func (s *service) Update(ctx context.Context, ownerID, id int64, in Input) (*Product, error) {
	p, err := s.build(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}
	p.ID = id

	if err := s.repo.Update(ctx, s.store, p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			log.Warn().Int64("owner_id", ownerID).Int64("product_id", id).Msg("service: product not found, cannot update")
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.repo.Delete(ctx, s.store, ownerID, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("product_id", id).Msg("service: product deleted")
	return nil
}

func (s *service) LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) error {
	linked, err := s.repo.LinkStockItem(ctx, q, ownerID, productID, stockItemID)
	if err != nil {
		return fmt.Errorf("service: failed to link stock item: %w", err)
	}
	if linked {
		log.Info().Int64("product_id", productID).Int64("stock_item_id", stockItemID).Msg("service: product linked to stock item")
	}
	return nil
}

func (s *service) build(ctx context.Context, ownerID int64, in Input) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	price, err := money.ParseDecimal(in.Price)
	if err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	cents, err := money.ToCents(price)
	if err != nil {
		return nil, err
	}

	currency, err := money.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	p := &Product{
		OwnerID:     ownerID,
		Name:        name,
		PriceCents:  cents,
		Currency:    currency,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if strings.TrimSpace(in.Unit) != "" {
		p.Unit = money.NormalizeUnit(in.Unit).String()
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if p.ImageURL != "" {
		if err := s.validate.Var(p.ImageURL, "url"); err != nil {
			return nil, ErrInvalidImageURL
		}
	}

	if raw := strings.TrimSpace(in.StockItemID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, ErrInvalidStockItem
		}
		exists, err := s.repo.StockItemExists(ctx, s.store, ownerID, id)
		if err != nil {
			return nil, fmt.Errorf("service: failed to check stock item: %w", err)
		}
		if !exists {
			return nil, ErrInvalidStockItem
		}
		p.StockItemID = &id
	}

	return p, nil
}
