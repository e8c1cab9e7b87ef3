package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
)

// SQLUnitOfWork runs each unit of work in a MySQL transaction. Deadlock
// victims and lock wait timeouts are retried from scratch.
type SQLUnitOfWork struct {
	DB          *sql.DB
	MaxAttempts int
	Logger      *slog.Logger
}

// NewSQLUnitOfWork returns a unit of work that retries up to three times.
func NewSQLUnitOfWork(db *sql.DB, logger *slog.Logger) *SQLUnitOfWork {
	return &SQLUnitOfWork{DB: db, MaxAttempts: 3, Logger: logger}
}

func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(Repos) error) error {
	attempts := u.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = u.once(ctx, fn)
		if err == nil || !repository.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		if u.Logger != nil {
			u.Logger.Warn("retrying transaction", "attempt", attempt, "error", err)
		}
	}
	return err
}

// txOptions lets every statement of a unit of work read the latest
// committed rows, so attributes created by concurrent requests are found
// by name instead of colliding on the unique key.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

func (u *SQLUnitOfWork) once(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := u.DB.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit: %w", cerr)
		}
	}()
	return fn(Repos{
		Recipes:     repository.NewRecipeRepo(tx),
		Tags:        repository.NewAttributeRepo(tx, model.KindTag),
		Ingredients: repository.NewAttributeRepo(tx, model.KindIngredient),
	})
}
