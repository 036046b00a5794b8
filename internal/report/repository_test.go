package report_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/backoffice/internal/report"
	"github.com/vasiliy-maslov/backoffice/internal/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.Terminate()
	os.Exit(code)
}

func TestReportRepository_Queries(t *testing.T) {
	pg := testutil.RequirePostgres(t)
	ctx := context.Background()

	sqlDB := pg.SQLX()
	defer sqlDB.Close()
	repo := report.NewRepository(sqlDB)

	_, err := pg.Pool.Exec(ctx, `
		INSERT INTO invoices (owner_id, customer_name, currency, total_cents, created_at) VALUES
			(1, 'Ana', 'ARS', 15000, '2024-03-05'),
			(1, 'Beto', 'ARS', 250, '2024-03-20'),
			(1, 'Caro', 'USD', 900, '2024-03-21'),
			(1, 'Dani', 'ARS', 7000, '2024-05-01'),
			(2, 'Eva', 'ARS', 100, '2024-03-10')`)
	require.NoError(t, err)

	_, err = pg.Pool.Exec(ctx, `
		INSERT INTO stock_items (owner_id, name, sku, quantity) VALUES
			(1, 'Miel', 'MIEL-1', 2),
			(1, 'Almendras', NULL, 0.5),
			(1, 'Nueces', NULL, 40),
			(2, 'Pasas', NULL, 0)`)
	require.NoError(t, err)

	_, err = pg.Pool.Exec(ctx, `
		INSERT INTO orders (owner_id, public_token, customer_name, customer_phone, status) VALUES
			(1, gen_random_uuid(), 'Ana', '1', 'new'),
			(1, gen_random_uuid(), 'Beto', '2', 'fulfilled'),
			(1, gen_random_uuid(), 'Caro', '3', 'fulfilled')`)
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	lines, err := repo.SalesByCurrency(ctx, 1, from, to)
	require.NoError(t, err)
	assert.Equal(t, []report.SalesLine{
		{Currency: "ARS", Invoices: 2, TotalCents: 15250},
		{Currency: "USD", Invoices: 1, TotalCents: 900},
	}, lines)

	low, err := repo.LowStock(ctx, 1, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Almendras", low[0].Name)
	assert.True(t, decimal.RequireFromString("0.5").Equal(low[0].Quantity))
	assert.Equal(t, "MIEL-1", low[1].SKU)

	counts, err := repo.OrderStatusCounts(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []report.StatusCount{
		{Status: "new", Count: 1},
		{Status: "fulfilled", Count: 2},
	}, counts)
}
