package entity

import (
	"database/sql"
)

// Award is the immutable receipt of one token transferred from an issuer to a
// recipient. TxHash is the idempotency key of the off-chain commit.
type Award struct {
	Base

	RecipientID string `gorm:"index;size:64"`
	IssuerID    string `gorm:"index;size:64"`

	BatchID string         `gorm:"index;size:64"`
	Batch   InventoryBatch `gorm:"foreignKey:BatchID"`

	TokenID int64
	Token   BadgeToken `gorm:"foreignKey:TokenID"`

	ContextID sql.NullString `gorm:"size:64"`
	TxHash    string         `gorm:"uniqueIndex;size:128"`
	Note      string
}
