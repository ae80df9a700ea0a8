package aggregates

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
)

// TxRunner provides the transaction boundary shared by every engine operation.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions. A nested call
// (ctx already carrying a transaction in dbc) becomes a savepoint.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return question.NewError(question.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
