package http_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/invoice"
	"github.com/vasiliy-maslov/backoffice/internal/order"
	"github.com/vasiliy-maslov/backoffice/internal/report"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) List(ctx context.Context, ownerID int64, search string, limit int) ([]catalog.Product, error) {
	args := m.Called(ctx, ownerID, search, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListPublic(ctx context.Context, ownerID int64, search string) ([]catalog.Product, error) {
	args := m.Called(ctx, ownerID, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Get(ctx context.Context, ownerID, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]catalog.Product, error) {
	args := m.Called(ctx, q, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Create(ctx context.Context, ownerID int64, in catalog.Input) (*catalog.Product, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Update(ctx context.Context, ownerID, id int64, in catalog.Input) (*catalog.Product, error) {
	args := m.Called(ctx, ownerID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Delete(ctx context.Context, ownerID, id int64) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockCatalogService) LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) error {
	args := m.Called(ctx, q, ownerID, productID, stockItemID)
	return args.Error(0)
}

type MockStockService struct {
	mock.Mock
}

func (m *MockStockService) CreateItem(ctx context.Context, ownerID int64, in stock.CreateItemInput) (*stock.Item, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Item), args.Error(1)
}

func (m *MockStockService) List(ctx context.Context, ownerID int64, search string, limit int) ([]stock.Item, error) {
	args := m.Called(ctx, ownerID, search, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.Item), args.Error(1)
}

func (m *MockStockService) Get(ctx context.Context, ownerID, id int64) (*stock.Item, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Item), args.Error(1)
}

func (m *MockStockService) Adjust(ctx context.Context, ownerID, id int64, delta string) (*stock.Item, error) {
	args := m.Called(ctx, ownerID, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Item), args.Error(1)
}

func (m *MockStockService) Movements(ctx context.Context, ownerID, id int64, limit int) ([]stock.Movement, error) {
	args := m.Called(ctx, ownerID, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.Movement), args.Error(1)
}

func (m *MockStockService) DebitForLine(ctx context.Context, q db.DBTX, ownerID int64, line stock.LineDebit) (stock.DebitResult, error) {
	args := m.Called(ctx, q, ownerID, line)
	return args.Get(0).(stock.DebitResult), args.Error(1)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, ownerID int64, in invoice.CreateInput) (int64, error) {
	args := m.Called(ctx, ownerID, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceService) CreateInvoiceTx(ctx context.Context, q db.DBTX, ownerID int64, in invoice.CreateInput) (int64, error) {
	args := m.Called(ctx, q, ownerID, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, ownerID, id int64) (*invoice.Document, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Document), args.Error(1)
}

func (m *MockInvoiceService) List(ctx context.Context, ownerID int64, limit int) ([]invoice.Invoice, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) FindBySourceOrder(ctx context.Context, q db.DBTX, ownerID, orderID int64) (int64, error) {
	args := m.Called(ctx, q, ownerID, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceService) BackfillCustomer(ctx context.Context, q db.DBTX, ownerID, id int64, c invoice.Customer) error {
	args := m.Called(ctx, q, ownerID, id, c)
	return args.Error(0)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, ownerID int64, in order.CreateInput) (*order.Receipt, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Receipt), args.Error(1)
}

func (m *MockOrderService) GetOrderByID(ctx context.Context, ownerID, id int64) (*order.Order, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderByToken(ctx context.Context, ownerID int64, token string) (*order.Order, error) {
	args := m.Called(ctx, ownerID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, ownerID int64, status string, limit int) ([]order.Order, error) {
	args := m.Called(ctx, ownerID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, ownerID, orderID int64, status string) (int64, error) {
	args := m.Called(ctx, ownerID, orderID, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) SalesSummary(ctx context.Context, ownerID int64, from, to time.Time) (*report.SalesSummary, error) {
	args := m.Called(ctx, ownerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.SalesSummary), args.Error(1)
}

func (m *MockReportService) LowStock(ctx context.Context, ownerID int64, threshold string) ([]report.LowStockItem, error) {
	args := m.Called(ctx, ownerID, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]report.LowStockItem), args.Error(1)
}

func (m *MockReportService) OrderStatusCounts(ctx context.Context, ownerID int64) ([]report.StatusCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]report.StatusCount), args.Error(1)
}
