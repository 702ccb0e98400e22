package entity

import (
	"database/sql"

	"github.com/questx-lab/badgehub/pkg/enum"
)

type InventoryBatchStatus string

var (
	InventoryBatchPending   = enum.New(InventoryBatchStatus("pending"))
	InventoryBatchConfirmed = enum.New(InventoryBatchStatus("confirmed"))
	InventoryBatchFailed    = enum.New(InventoryBatchStatus("failed"))
)

// InventoryBatch is one purchase or mint of Quantity individually tracked
// tokens. Only AwardedCount, ContextID and token statuses change after
// creation. AwardedCount always equals the number of awarded tokens.
type InventoryBatch struct {
	Base

	IssuerID   string `gorm:"index;size:64"`
	TemplateID sql.NullString

	Quantity     int
	AwardedCount int

	ContextID sql.NullString `gorm:"index;size:64"`
	Context   AwardContext   `gorm:"foreignKey:ContextID"`

	Status InventoryBatchStatus
	TxHash string `gorm:"uniqueIndex;size:128"`

	Tokens []BadgeToken `gorm:"foreignKey:BatchID"`
}

// Available is zero for batches whose purchase was not confirmed on-chain.
func (b *InventoryBatch) Available() int {
	if b.Status != InventoryBatchConfirmed {
		return 0
	}

	return b.Quantity - b.AwardedCount
}
