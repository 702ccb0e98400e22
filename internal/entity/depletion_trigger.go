package entity

import (
	"database/sql"

	"github.com/questx-lab/badgehub/pkg/enum"
)

type DepletionTriggerStatus string

var (
	DepletionTriggerPending    = enum.New(DepletionTriggerStatus("pending"))
	DepletionTriggerReassigned = enum.New(DepletionTriggerStatus("reassigned"))
	DepletionTriggerFinalized  = enum.New(DepletionTriggerStatus("finalized"))
)

type DepletionTrigger struct {
	Base

	ContextID string       `gorm:"index;size:64"`
	Context   AwardContext `gorm:"foreignKey:ContextID"`

	BatchID  string `gorm:"size:64"`
	IssuerID string `gorm:"index;size:64"`

	// PendingContextID repeats ContextID while the trigger is pending, so a
	// context has at most one pending trigger.
	PendingContextID sql.NullString `gorm:"uniqueIndex;size:64"`

	Status          DepletionTriggerStatus `gorm:"index;size:32"`
	ResolvedBatchID sql.NullString         `gorm:"size:64"`
	ResolvedAt      sql.NullTime
}
