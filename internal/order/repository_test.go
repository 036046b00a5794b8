package order_test

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	"github.com/vasiliy-maslov/backoffice/internal/invoice"
	"github.com/vasiliy-maslov/backoffice/internal/order"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
	"github.com/vasiliy-maslov/backoffice/internal/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.Terminate()
	os.Exit(code)
}

type fixture struct {
	pg       *db.Postgres
	orders   order.Service
	invoices invoice.Service
	stock    stock.Service
	catalog  catalog.Service
}

func newFixture(t *testing.T, caps db.Capabilities) fixture {
	t.Helper()
	pg := testutil.RequirePostgres(t)

	stockSvc := stock.NewService(pg, stock.NewRepository())
	catalogSvc := catalog.NewService(pg, catalog.NewRepository(caps), 100)
	invoiceSvc := invoice.NewService(pg, invoice.NewRepository(caps), stockSvc, catalogSvc)
	return fixture{
		pg:       pg,
		orders:   order.NewService(pg, order.NewRepository(caps), catalogSvc, invoiceSvc),
		invoices: invoiceSvc,
		stock:    stockSvc,
		catalog:  catalogSvc,
	}
}

func countRows(t *testing.T, pg *db.Postgres, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pg.Pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n))
	return n
}

// seed creates a stocked honey product and an unstocked almond product.
func seed(t *testing.T, f fixture) (honey, almonds *catalog.Product, stockID int64) {
	t.Helper()
	ctx := context.Background()

	item, err := f.stock.CreateItem(ctx, owner, stock.CreateItemInput{Name: "Miel de monte", SKU: "MIEL-1", Quantity: "10"})
	require.NoError(t, err)

	honey, err = f.catalog.Create(ctx, owner, catalog.Input{
		Name: "Miel", Price: "75.00", StockItemID: strconv.FormatInt(item.ID, 10),
	})
	require.NoError(t, err)
	almonds, err = f.catalog.Create(ctx, owner, catalog.Input{Name: "Almendras", Price: "5.00", Unit: "kg"})
	require.NoError(t, err)
	return honey, almonds, item.ID
}

func placeOrder(t *testing.T, f fixture, honey, almonds *catalog.Product) *order.Receipt {
	t.Helper()
	receipt, err := f.orders.CreateOrder(context.Background(), owner, order.CreateInput{
		Customer: order.Customer{Name: "Ana", Phone: "1155550000", DNI: "30111222"},
		Notes:    "retira el sábado",
		Items: []order.CartLine{
			{ProductID: honey.ID, Quantity: "2"},
			{ProductID: almonds.ID, Quantity: "0,5"},
		},
	})
	require.NoError(t, err)
	return receipt
}

func TestOrderRepository_CreateAndFetch(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, stockID := seed(t, f)

	receipt := placeOrder(t, f, honey, almonds)
	assert.Equal(t, int64(15250), receipt.TotalCents)
	assert.Equal(t, "ARS", receipt.Currency)

	got, err := f.orders.GetOrderByToken(ctx, owner, receipt.PublicToken.String())
	require.NoError(t, err)
	assert.Equal(t, receipt.OrderID, got.ID)
	assert.Equal(t, order.StatusNew, got.Status)
	assert.Equal(t, "30111222", got.Customer.DNI)
	require.Len(t, got.OrderItems, 2)
	assert.Equal(t, int64(7500), got.OrderItems[0].UnitPriceCents)
	require.NotNil(t, got.OrderItems[0].StockItemID)
	assert.Equal(t, stockID, *got.OrderItems[0].StockItemID)
	assert.True(t, decimal.RequireFromString("0.5").Equal(got.OrderItems[1].Quantity))
	assert.Equal(t, "kg", got.OrderItems[1].Unit)

	_, err = f.orders.GetOrderByToken(ctx, owner+1, receipt.PublicToken.String())
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	list, err := f.orders.ListOrders(ctx, owner, "new", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = f.orders.ListOrders(ctx, owner, "fulfilled", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderRepository_DeletedProductRejectsOrder(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, _ := seed(t, f)

	require.NoError(t, f.catalog.Delete(ctx, owner, almonds.ID))

	_, err := f.orders.CreateOrder(ctx, owner, order.CreateInput{
		Customer: order.Customer{Name: "Ana", Phone: "1155550000"},
		Items: []order.CartLine{
			{ProductID: honey.ID, Quantity: "1"},
			{ProductID: almonds.ID, Quantity: "1"},
		},
	})
	require.ErrorIs(t, err, order.ErrProductNotFound)

	assert.Zero(t, countRows(t, f.pg, "orders"))
	assert.Zero(t, countRows(t, f.pg, "order_items"))
}

func TestOrderRepository_FulfillIsIdempotent(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, stockID := seed(t, f)
	receipt := placeOrder(t, f, honey, almonds)

	_, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "confirmed")
	require.NoError(t, err)

	first, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.NoError(t, err)
	require.NotZero(t, first)

	second, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, countRows(t, f.pg, "invoices"))

	item, err := f.stock.Get(ctx, owner, stockID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(8).Equal(item.Quantity), "got %s", item.Quantity)

	doc, err := f.invoices.Get(ctx, owner, first)
	require.NoError(t, err)
	require.NotNil(t, doc.Invoice.SourceOrderID)
	assert.Equal(t, receipt.OrderID, *doc.Invoice.SourceOrderID)
	assert.Equal(t, "Pedido #"+strconv.FormatInt(receipt.OrderID, 10)+"\nretira el sábado", doc.Invoice.Detail)
	assert.Equal(t, int64(15250), doc.Invoice.TotalCents)
	assert.Empty(t, doc.Invoice.Customer.Email)

	_, err = f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "cancelled")
	require.ErrorIs(t, err, order.ErrInvalidStatusTransition)
}

func TestOrderRepository_ConcurrentFulfillmentCreatesOneInvoice(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, stockID := seed(t, f)
	receipt := placeOrder(t, f, honey, almonds)

	const workers = 6
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, countRows(t, f.pg, "invoices"))

	item, err := f.stock.Get(ctx, owner, stockID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(8).Equal(item.Quantity), "got %s", item.Quantity)
}

func TestOrderRepository_FulfillWithoutStockLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, stockID := seed(t, f)

	_, err := f.stock.Adjust(ctx, owner, stockID, "-9")
	require.NoError(t, err)

	receipt := placeOrder(t, f, honey, almonds)

	_, err = f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	got, err := f.orders.GetOrderByID(ctx, owner, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, got.Status)
	assert.Zero(t, countRows(t, f.pg, "invoices"))
	assert.Zero(t, countRows(t, f.pg, "invoice_items"))
}

func TestOrderRepository_LegacyCapabilities(t *testing.T) {
	f := newFixture(t, db.Capabilities{})
	ctx := context.Background()

	honey, err := f.catalog.Create(ctx, owner, catalog.Input{Name: "Miel", Price: "75.00"})
	require.NoError(t, err)

	receipt, err := f.orders.CreateOrder(ctx, owner, order.CreateInput{
		Customer: order.Customer{Name: "Ana", Phone: "1155550000", DNI: "30111222"},
		Items:    []order.CartLine{{ProductID: honey.ID, Quantity: "1"}},
	})
	require.NoError(t, err)

	first, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.NoError(t, err)
	second, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, countRows(t, f.pg, "invoices"))

	got, err := f.orders.GetOrderByID(ctx, owner, receipt.OrderID)
	require.NoError(t, err)
	assert.Empty(t, got.Customer.DNI)
}

func TestOrderRepository_FulfillKeepsThreeDecimalQuantities(t *testing.T) {
	f := newFixture(t, db.FullCapabilities())
	ctx := context.Background()
	honey, almonds, stockID := seed(t, f)

	receipt, err := f.orders.CreateOrder(ctx, owner, order.CreateInput{
		Customer: order.Customer{Name: "Ana", Phone: "1155550000"},
		Items: []order.CartLine{
			{ProductID: honey.ID, Quantity: "0.125"},
			{ProductID: almonds.ID, Quantity: "0,004"},
		},
	})
	require.NoError(t, err)

	id, err := f.orders.UpdateOrderStatus(ctx, owner, receipt.OrderID, "fulfilled")
	require.NoError(t, err)

	doc, err := f.invoices.Get(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, receipt.TotalCents, doc.Invoice.TotalCents)
	require.Len(t, doc.Items, 2)
	assert.True(t, decimal.RequireFromString("0.125").Equal(doc.Items[0].Quantity), "got %s", doc.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("0.004").Equal(doc.Items[1].Quantity), "got %s", doc.Items[1].Quantity)

	item, err := f.stock.Get(ctx, owner, stockID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.875").Equal(item.Quantity), "got %s", item.Quantity)
}
