package domain

import (
	"fmt"

	"github.com/questx-lab/badgehub/pkg/errorx"
)

// Steps of the off-chain commit which follows a successful chain transfer.
const (
	ReconcileStepCommitToken   = "commit_token"
	ReconcileStepCreateAward   = "create_award"
	ReconcileStepCreateHolding = "create_holding"
	ReconcileStepJournal       = "journal"
	ReconcileStepCommit        = "commit"
	ReconcileStepTransferOwner = "transfer_owner"
)

// ReconcileError reports that a chain operation succeeded but the matching
// off-chain commit failed. TxHash is enough to replay the commit without a new
// chain transaction.
type ReconcileError struct {
	TxHash  string
	Step    string
	BatchID string
	TokenID int64
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile failed at %s for tx %s: %v", e.Step, e.TxHash, e.Err)
}

// Unwrap exposes both the ReconcileFailed code for API clients and the
// underlying cause.
func (e *ReconcileError) Unwrap() []error {
	return []error{
		errorx.New(errorx.ReconcileFailed,
			"Transaction %s succeeded on-chain but could not be recorded, it will be reconciled", e.TxHash),
		e.Err,
	}
}

func (e *ReconcileError) Details() map[string]any {
	return map[string]any{
		"tx_hash":  e.TxHash,
		"step":     e.Step,
		"batch_id": e.BatchID,
		"token_id": e.TokenID,
	}
}
