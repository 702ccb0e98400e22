package xcontext

import (
	"context"

	"gorm.io/gorm"
)

type txState struct {
	tx       *gorm.DB
	finished bool
}

type txOwnerKey struct{}

// WithDBTransaction begins a transaction and returns a context whose DB() is
// bound to it. Nested calls reuse the outer transaction and never commit it.
func WithDBTransaction(ctx context.Context) context.Context {
	if state, ok := ctx.Value(dbTransactionKey{}).(*txState); ok && !state.finished {
		return context.WithValue(ctx, txOwnerKey{}, (*txState)(nil))
	}

	db := ctx.Value(dbKey{}).(*gorm.DB)
	state := &txState{tx: db.WithContext(ctx).Begin()}
	ctx = context.WithValue(ctx, txOwnerKey{}, state)
	return context.WithValue(ctx, dbTransactionKey{}, state)
}

// WithCommitDBTransaction commits the transaction owned by ctx. Afterwards
// DB(ctx) falls back to the root database.
func WithCommitDBTransaction(ctx context.Context) error {
	state, _ := ctx.Value(txOwnerKey{}).(*txState)
	if state == nil || state.finished {
		return nil
	}

	state.finished = true
	return state.tx.Commit().Error
}

// WithRollbackDBTransaction is safe to defer after a commit.
func WithRollbackDBTransaction(ctx context.Context) {
	state, _ := ctx.Value(txOwnerKey{}).(*txState)
	if state == nil || state.finished {
		return
	}

	state.finished = true
	state.tx.Rollback()
}
