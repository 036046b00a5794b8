package testutil

import (
	"context"

	"github.com/vasiliy-maslov/backoffice/internal/db"
)

// NopStore satisfies db.Store for service tests whose repositories are
// mocks. WithinTx just calls fn; the embedded DBTX is never used.
type NopStore struct {
	db.DBTX
}

func (s NopStore) WithinTx(_ context.Context, fn func(q db.DBTX) error) error {
	return fn(s)
}
