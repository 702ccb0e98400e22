package entity

import (
	"database/sql"

	"github.com/questx-lab/badgehub/pkg/enum"
	"github.com/shopspring/decimal"
)

type ListingStatus string

var (
	ListingActive           = enum.New(ListingStatus("active"))
	ListingPaymentPending   = enum.New(ListingStatus("payment_pending"))
	ListingAwaitingTransfer = enum.New(ListingStatus("awaiting_transfer"))
	ListingCompleted        = enum.New(ListingStatus("completed"))
	ListingCancelled        = enum.New(ListingStatus("cancelled"))
)

func (s ListingStatus) IsTerminal() bool {
	return s == ListingCompleted || s == ListingCancelled
}

type Listing struct {
	Base

	HoldingID string           `gorm:"index;size:64"`
	Holding   OwnershipHolding `gorm:"foreignKey:HoldingID"`

	SellerID string          `gorm:"index;size:64"`
	Price    decimal.Decimal `gorm:"type:decimal(36,18)"`
	Status   ListingStatus   `gorm:"index;size:32"`

	BuyerID        sql.NullString `gorm:"size:64"`
	PaymentTxHash  sql.NullString `gorm:"size:128"`
	TransferTxHash sql.NullString `gorm:"uniqueIndex;size:128"`

	ReservedAt    sql.NullTime
	PaidAt        sql.NullTime
	TransferredAt sql.NullTime
	CancelledAt   sql.NullTime
}
