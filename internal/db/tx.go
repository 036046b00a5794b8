package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type Transactor interface {
	// WithinTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back on error or panic.
	WithinTx(ctx context.Context, fn func(q DBTX) error) error
}

func (p *Postgres) WithinTx(ctx context.Context, fn func(q DBTX) error) (err error) {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic_value", r).Msg("db: panic inside transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction after panic")
			}
			panic(r)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction")
			}
			return
		}

		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("db: failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// WithSavepoint runs fn behind a savepoint of the open transaction q. When
// fn fails only its own statements are undone and the transaction stays
// usable; the error is still returned.
func WithSavepoint(ctx context.Context, q DBTX, name string, fn func() error) error {
	if _, err := q.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("db: failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := q.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			log.Error().Err(rbErr).Str("savepoint", name).Msg("db: failed to rollback to savepoint")
		}
		return err
	}

	if _, err := q.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("db: failed to release savepoint: %w", err)
	}
	return nil
}
