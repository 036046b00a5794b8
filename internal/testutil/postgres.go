// Package testutil starts a throwaway PostgreSQL for repository tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vasiliy-maslov/backoffice/internal/config"
	"github.com/vasiliy-maslov/backoffice/internal/db"
)

const (
	dbName     = "backoffice_test"
	dbUser     = "testuser"
	dbPassword = "testpass"
)

var (
	startOnce sync.Once
	container *postgres.PostgresContainer
	shared    *db.Postgres
	startErr  error
)

// RequirePostgres returns a migrated database shared by the whole test
// binary, emptied before each test. The test is skipped under -short or
// when no container runtime is reachable.
func RequirePostgres(t *testing.T) *db.Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in -short mode")
	}

	startOnce.Do(func() {
		shared, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Skipf("postgres container unavailable: %v", startErr)
	}

	Truncate(t, shared)
	return shared
}

// Terminate stops the shared container. Call it from TestMain.
func Terminate() {
	if shared != nil {
		shared.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
}

// Truncate empties every table and resets identities.
func Truncate(t *testing.T, pg *db.Postgres) {
	t.Helper()
	_, err := pg.Pool.Exec(context.Background(), `
		TRUNCATE TABLE invoice_items, invoices, order_items, orders,
			products, stock_movements, stock_items RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func start(ctx context.Context) (pg *db.Postgres, err error) {
	// testcontainers panics instead of failing when no docker host exists.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starting container: %v", r)
		}
	}()

	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, err
	}

	pg, err = db.New(ctx, config.PostgresConfig{
		Host:     host,
		Port:     port.Port(),
		User:     dbUser,
		Password: dbPassword,
		DBName:   dbName,
		SSLMode:  "disable",
		MaxConns: 10,
	})
	if err != nil {
		return nil, err
	}

	if err := pg.Migrate(); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
