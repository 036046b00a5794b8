package catalog_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/money"
	"github.com/vasiliy-maslov/backoffice/internal/testutil"
)

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, q db.DBTX, p *catalog.Product) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, q db.DBTX, p *catalog.Product) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, q db.DBTX, ownerID, id int64) error {
	args := m.Called(ctx, q, ownerID, id)
	return args.Error(0)
}

func (m *MockProductRepository) Get(ctx context.Context, q db.DBTX, ownerID, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, q, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) GetMany(ctx context.Context, q db.DBTX, ownerID int64, ids []int64) (map[int64]catalog.Product, error) {
	args := m.Called(ctx, q, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, q db.DBTX, ownerID int64, search string, limit int) ([]catalog.Product, error) {
	args := m.Called(ctx, q, ownerID, search, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) LinkStockItem(ctx context.Context, q db.DBTX, ownerID, productID, stockItemID int64) (bool, error) {
	args := m.Called(ctx, q, ownerID, productID, stockItemID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) StockItemExists(ctx context.Context, q db.DBTX, ownerID, stockItemID int64) (bool, error) {
	args := m.Called(ctx, q, ownerID, stockItemID)
	return args.Bool(0), args.Error(1)
}

const owner = int64(1)

func TestCatalogService_Create(t *testing.T) {
	stockID := int64(9)

	tests := []struct {
		name    string
		input   catalog.Input
		setup   func(repo *MockProductRepository)
		want    *catalog.Product
		wantErr error
	}{
		{
			name:  "normalizes_fields",
			input: catalog.Input{Name: "  Miel ", Price: "150,5", Currency: "usd", Unit: "Kilos", StockItemID: "9"},
			setup: func(repo *MockProductRepository) {
				repo.On("StockItemExists", mock.Anything, mock.Anything, owner, stockID).Return(true, nil).Once()
				repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*catalog.Product")).Return(nil).Once()
			},
			want: &catalog.Product{OwnerID: owner, Name: "Miel", PriceCents: 15050, Currency: "USD", Unit: "kg", StockItemID: &stockID},
		},
		{
			name:  "defaults_currency_and_allows_free_items",
			input: catalog.Input{Name: "Muestra", Price: "0"},
			setup: func(repo *MockProductRepository) {
				repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			want: &catalog.Product{OwnerID: owner, Name: "Muestra", PriceCents: 0, Currency: "ARS"},
		},
		{name: "blank_name", input: catalog.Input{Name: " ", Price: "1"}, wantErr: catalog.ErrInvalidName},
		{name: "name_too_long", input: catalog.Input{Name: string(make([]rune, 191)), Price: "1"}, wantErr: catalog.ErrInvalidName},
		{name: "negative_price", input: catalog.Input{Name: "Miel", Price: "-1"}, wantErr: catalog.ErrNegativePrice},
		{name: "price_not_a_number", input: catalog.Input{Name: "Miel", Price: "gratis"}, wantErr: money.ErrInvalidNumber},
		{name: "bad_currency", input: catalog.Input{Name: "Miel", Price: "1", Currency: "pesos"}, wantErr: money.ErrInvalidCurrency},
		{name: "bad_image_url", input: catalog.Input{Name: "Miel", Price: "1", ImageURL: "not a url"}, wantErr: catalog.ErrInvalidImageURL},
		{
			name:  "foreign_stock_item",
			input: catalog.Input{Name: "Miel", Price: "1", StockItemID: "9"},
			setup: func(repo *MockProductRepository) {
				repo.On("StockItemExists", mock.Anything, mock.Anything, owner, stockID).Return(false, nil).Once()
			},
			wantErr: catalog.ErrInvalidStockItem,
		},
		{name: "stock_item_not_numeric", input: catalog.Input{Name: "Miel", Price: "1", StockItemID: "x"}, wantErr: catalog.ErrInvalidStockItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc := catalog.NewService(testutil.NopStore{}, repo, 100)

			got, err := svc.Create(context.Background(), owner, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.True(t, apperr.IsValidation(err))
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(catalog.Product{}, "CreatedAt", "UpdatedAt")); diff != "" {
				t.Errorf("Create() mismatch (-want +got):\n%s", diff)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestCatalogService_UpdateAndDelete_NotFound(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("Update", mock.Anything, mock.Anything, mock.AnythingOfType("*catalog.Product")).Return(catalog.ErrProductNotFound).Once()
	repo.On("Delete", mock.Anything, mock.Anything, owner, int64(3)).Return(catalog.ErrProductNotFound).Once()
	svc := catalog.NewService(testutil.NopStore{}, repo, 100)

	_, err := svc.Update(context.Background(), owner, 3, catalog.Input{Name: "Miel", Price: "1"})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	err = svc.Delete(context.Background(), owner, 3)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	repo.AssertExpectations(t)
}

func TestCatalogService_List_LimitIsCapped(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "default", limit: 0, wantLimit: 50},
		{name: "within", limit: 10, wantLimit: 10},
		{name: "capped", limit: 5000, wantLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			repo.On("List", mock.Anything, mock.Anything, owner, "miel", tt.wantLimit).Return([]catalog.Product{}, nil).Once()
			svc := catalog.NewService(testutil.NopStore{}, repo, 50)

			_, err := svc.List(context.Background(), owner, " miel ", tt.limit)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestCatalogService_List_RepositoryError(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("List", mock.Anything, mock.Anything, owner, "", 50).Return(nil, errors.New("boom")).Once()
	svc := catalog.NewService(testutil.NopStore{}, repo, 50)

	_, err := svc.List(context.Background(), owner, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service: failed to list products")
}

func TestCatalogService_ListPublic_CoalescesConcurrentCalls(t *testing.T) {
	repo := new(MockProductRepository)
	release := make(chan struct{})
	var calls int32

	repo.On("List", mock.Anything, mock.Anything, owner, "miel", 50).
		Run(func(mock.Arguments) {
			atomic.AddInt32(&calls, 1)
			<-release
		}).
		Return([]catalog.Product{{ID: 1, Name: "Miel"}}, nil)
	svc := catalog.NewService(testutil.NopStore{}, repo, 50)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([][]catalog.Product, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			products, err := svc.ListPublic(context.Background(), owner, "miel")
			assert.NoError(t, err)
			results[i] = products
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(callers))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	for _, products := range results {
		require.Len(t, products, 1)
		assert.Equal(t, "Miel", products[0].Name)
	}

	// Results are copies.
	results[0][0].Name = "changed"
	assert.Equal(t, "Miel", results[1][0].Name)
}

func TestCatalogService_ListPublic_SurvivesCancelledCaller(t *testing.T) {
	repo := new(MockProductRepository)
	entered := make(chan struct{})
	release := make(chan struct{})
	var queryErr error

	repo.On("List", mock.Anything, mock.Anything, owner, "", 50).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			queryErr = args.Get(0).(context.Context).Err()
		}).
		Return([]catalog.Product{{ID: 1, Name: "Miel"}}, nil).Once()
	svc := catalog.NewService(testutil.NopStore{}, repo, 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.ListPublic(ctx, owner, "")
		done <- err
	}()

	<-entered
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.NoError(t, queryErr)
	repo.AssertExpectations(t)
}

func TestCatalogService_LinkStockItem(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("LinkStockItem", mock.Anything, mock.Anything, owner, int64(4), int64(8)).Return(true, nil).Once()
	svc := catalog.NewService(testutil.NopStore{}, repo, 50)

	require.NoError(t, svc.LinkStockItem(context.Background(), nil, owner, 4, 8))
	repo.AssertExpectations(t)
}
