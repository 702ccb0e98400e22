package model

import (
	"github.com/shopspring/decimal"
)

type AwardContext struct {
	ID        string `json:"id"`
	IssuerID  string `json:"issuer_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	ClosedAt  string `json:"closed_at,omitempty"`
}

type InventoryBatch struct {
	ID           string       `json:"id"`
	IssuerID     string       `json:"issuer_id"`
	TemplateID   string       `json:"template_id,omitempty"`
	Quantity     int          `json:"quantity"`
	AwardedCount int          `json:"awarded_count"`
	Available    int          `json:"available"`
	ContextID    string       `json:"context_id,omitempty"`
	Status       string       `json:"status"`
	TxHash       string       `json:"tx_hash"`
	CreatedAt    string       `json:"created_at"`
	Tokens       []BadgeToken `json:"tokens,omitempty"`
}

type BadgeToken struct {
	ID          string `json:"id"`
	BatchID     string `json:"batch_id"`
	ObjectID    string `json:"object_id"`
	Status      string `json:"status"`
	AwardTxHash string `json:"award_tx_hash,omitempty"`
	AwardedAt   string `json:"awarded_at,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

type Award struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	IssuerID    string `json:"issuer_id"`
	BatchID     string `json:"batch_id"`
	TokenID     string `json:"token_id"`
	ContextID   string `json:"context_id,omitempty"`
	TxHash      string `json:"tx_hash"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type OwnershipHolding struct {
	ID              string `json:"id"`
	ObjectID        string `json:"object_id"`
	OwnerID         string `json:"owner_id"`
	AcquiredAt      string `json:"acquired_at"`
	AwardID         string `json:"award_id"`
	ActiveListingID string `json:"active_listing_id,omitempty"`
}

type Listing struct {
	ID             string          `json:"id"`
	HoldingID      string          `json:"holding_id"`
	SellerID       string          `json:"seller_id"`
	Price          decimal.Decimal `json:"price"`
	Status         string          `json:"status"`
	BuyerID        string          `json:"buyer_id,omitempty"`
	PaymentTxHash  string          `json:"payment_tx_hash,omitempty"`
	TransferTxHash string          `json:"transfer_tx_hash,omitempty"`
	CreatedAt      string          `json:"created_at"`
	ReservedAt     string          `json:"reserved_at,omitempty"`
	PaidAt         string          `json:"paid_at,omitempty"`
	TransferredAt  string          `json:"transferred_at,omitempty"`
	CancelledAt    string          `json:"cancelled_at,omitempty"`
}

type DepletionTrigger struct {
	ID              string `json:"id"`
	ContextID       string `json:"context_id"`
	BatchID         string `json:"batch_id"`
	Status          string `json:"status"`
	ResolvedBatchID string `json:"resolved_batch_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}
