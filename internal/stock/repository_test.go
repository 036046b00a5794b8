package stock_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
	"github.com/vasiliy-maslov/backoffice/internal/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.Terminate()
	os.Exit(code)
}

func TestStockRepository_AdjustAgainstPostgres(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	svc := stock.NewService(pg, stock.NewRepository())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, owner, stock.CreateItemInput{Name: "Miel", SKU: "MI-1", Unit: "kg", Quantity: "10"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Adjust(ctx, owner, item.ID, "-4")
		require.NoError(t, err)
	}
	_, err = svc.Adjust(ctx, owner, item.ID, "-4")
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	got, err := svc.Get(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(got.Quantity), "quantity %s", got.Quantity)
	assert.Equal(t, "kg", got.Unit)

	movements, err := svc.Movements(ctx, owner, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, stock.ReasonManual, movements[0].Reason)
	assert.True(t, decimal.NewFromInt(2).Equal(movements[0].QuantityAfter))

	_, err = svc.Get(ctx, owner+1, item.ID)
	require.ErrorIs(t, err, stock.ErrStockItemNotFound)
}

func TestStockRepository_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	svc := stock.NewService(pg, stock.NewRepository())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, owner, stock.CreateItemInput{Name: "Almendras", Quantity: "5"})
	require.NoError(t, err)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Adjust(ctx, owner, item.ID, "-1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, stock.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	got, err := svc.Get(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.IsZero(), "quantity %s", got.Quantity)
}

func TestStockRepository_DebitForLineRollsBackWithCaller(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	repo := stock.NewRepository()
	svc := stock.NewService(pg, repo)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, owner, stock.CreateItemInput{Name: "Nueces", SKU: "NU-1", Quantity: "3"})
	require.NoError(t, err)

	err = pg.WithinTx(ctx, func(q db.DBTX) error {
		res, err := svc.DebitForLine(ctx, q, owner, stock.LineDebit{Description: "nueces", Quantity: decimal.NewFromInt(2)})
		require.NoError(t, err)
		require.True(t, res.ByHeuristic)

		_, err = svc.DebitForLine(ctx, q, owner, stock.LineDebit{Description: "NU-1", Quantity: decimal.NewFromInt(2)})
		return err
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	got, err := svc.Get(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(got.Quantity))

	movements, err := repo.Movements(ctx, pg, owner, item.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestStockRepository_CheckConstraintMapsToInsufficient(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	repo := stock.NewRepository()
	ctx := context.Background()

	item := &stock.Item{OwnerID: owner, Name: "Sal", Quantity: decimal.NewFromInt(1)}
	require.NoError(t, repo.Create(ctx, pg, item))

	err := repo.SetQuantity(ctx, pg, owner, item.ID, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	err = repo.SetQuantity(ctx, pg, owner+1, item.ID, decimal.NewFromInt(1))
	require.ErrorIs(t, err, stock.ErrStockItemNotFound)
}

func TestStockRepository_ListSearch(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	svc := stock.NewService(pg, stock.NewRepository())
	ctx := context.Background()

	for _, name := range []string{"Yerba mate", "Azucar", "Yerba compuesta"} {
		_, err := svc.CreateItem(ctx, owner, stock.CreateItemInput{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.CreateItem(ctx, owner+1, stock.CreateItemInput{Name: "Yerba ajena"})
	require.NoError(t, err)

	items, err := svc.List(ctx, owner, "yerba", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Yerba compuesta", items[0].Name)
	assert.Equal(t, "Yerba mate", items[1].Name)
}
