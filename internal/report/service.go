// Package report answers read-only questions about sales, stock and orders.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/money"
	"github.com/vasiliy-maslov/backoffice/internal/order"
)

var (
	ErrInvalidRange     = apperr.Invalid("range", "report range must end after it starts and span at most %d days", maxRangeDays)
	ErrInvalidThreshold = apperr.Invalid("threshold", "threshold must be a non-negative number")
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 366
)

var statuses = []order.OrderStatus{order.StatusNew, order.StatusConfirmed, order.StatusFulfilled, order.StatusCancelled}

type Service interface {
	// SalesSummary covers [from, to). A zero to means now; a zero from means
	// thirty days before to.
	SalesSummary(ctx context.Context, ownerID int64, from, to time.Time) (*SalesSummary, error)
	LowStock(ctx context.Context, ownerID int64, threshold string) ([]LowStockItem, error)
	// OrderStatusCounts always lists every status, zero counts included.
	OrderStatusCounts(ctx context.Context, ownerID int64) ([]StatusCount, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) SalesSummary(ctx context.Context, ownerID int64, from, to time.Time) (*SalesSummary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultRangeDays)
	}
	if !to.After(from) || to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, ErrInvalidRange
	}

	lines, err := s.repo.SalesByCurrency(ctx, ownerID, from, to)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to summarize sales in repository")
		return nil, fmt.Errorf("service: failed to summarize sales: %w", err)
	}
	for i := range lines {
		lines[i].Formatted = money.FormatCents(lines[i].TotalCents, lines[i].Currency)
	}

	return &SalesSummary{From: from, To: to, Lines: lines}, nil
}

func (s *service) LowStock(ctx context.Context, ownerID int64, threshold string) ([]LowStockItem, error) {
	limit := decimal.Zero
	if threshold != "" {
		parsed, err := money.ParseDecimal(threshold)
		if err != nil || parsed.IsNegative() {
			return nil, ErrInvalidThreshold
		}
		limit = parsed
	}

	items, err := s.repo.LowStock(ctx, ownerID, limit)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to list low stock in repository")
		return nil, fmt.Errorf("service: failed to list low stock: %w", err)
	}
	return items, nil
}

func (s *service) OrderStatusCounts(ctx context.Context, ownerID int64) ([]StatusCount, error) {
	rows, err := s.repo.OrderStatusCounts(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Int64("owner_id", ownerID).Msg("service: failed to count orders in repository")
		return nil, fmt.Errorf("service: failed to count orders: %w", err)
	}

	byStatus := make(map[string]int64, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = row.Count
	}

	counts := make([]StatusCount, 0, len(statuses))
	for _, st := range statuses {
		counts = append(counts, StatusCount{Status: st.String(), Count: byStatus[st.String()]})
	}
	return counts, nil
}
