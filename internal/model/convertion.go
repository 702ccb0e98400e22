package model

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
)

func nullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}

	return t.Time.Format(time.RFC3339Nano)
}

func ConvertAwardContext(c *entity.AwardContext) AwardContext {
	if c == nil {
		return AwardContext{}
	}

	return AwardContext{
		ID:        c.ID,
		IssuerID:  c.IssuerID,
		Title:     c.Title,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
		ClosedAt:  nullTime(c.ClosedAt),
	}
}

func ConvertInventoryBatch(b *entity.InventoryBatch) InventoryBatch {
	if b == nil {
		return InventoryBatch{}
	}

	tokens := []BadgeToken{}
	for i := range b.Tokens {
		tokens = append(tokens, ConvertBadgeToken(&b.Tokens[i]))
	}

	return InventoryBatch{
		ID:           b.ID,
		IssuerID:     b.IssuerID,
		TemplateID:   b.TemplateID.String,
		Quantity:     b.Quantity,
		AwardedCount: b.AwardedCount,
		Available:    b.Available(),
		ContextID:    b.ContextID.String,
		Status:       string(b.Status),
		TxHash:       b.TxHash,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339Nano),
		Tokens:       tokens,
	}
}

func ConvertBadgeToken(t *entity.BadgeToken) BadgeToken {
	if t == nil {
		return BadgeToken{}
	}

	return BadgeToken{
		ID:          strconv.FormatInt(t.ID, 10),
		BatchID:     t.BatchID,
		ObjectID:    t.ObjectID,
		Status:      string(t.Status),
		AwardTxHash: t.AwardTxHash.String,
		AwardedAt:   nullTime(t.AwardedAt),
		RecipientID: t.RecipientID.String,
	}
}

func ConvertAward(a *entity.Award) Award {
	if a == nil {
		return Award{}
	}

	return Award{
		ID:          a.ID,
		RecipientID: a.RecipientID,
		IssuerID:    a.IssuerID,
		BatchID:     a.BatchID,
		TokenID:     strconv.FormatInt(a.TokenID, 10),
		ContextID:   a.ContextID.String,
		TxHash:      a.TxHash,
		Note:        a.Note,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339Nano),
	}
}

func ConvertOwnershipHolding(h *entity.OwnershipHolding) OwnershipHolding {
	if h == nil {
		return OwnershipHolding{}
	}

	return OwnershipHolding{
		ID:              h.ID,
		ObjectID:        h.ObjectID,
		OwnerID:         h.OwnerID,
		AcquiredAt:      h.AcquiredAt.Format(time.RFC3339Nano),
		AwardID:         h.AwardID,
		ActiveListingID: h.ActiveListingID.String,
	}
}

func ConvertListing(l *entity.Listing) Listing {
	if l == nil {
		return Listing{}
	}

	return Listing{
		ID:             l.ID,
		HoldingID:      l.HoldingID,
		SellerID:       l.SellerID,
		Price:          l.Price,
		Status:         string(l.Status),
		BuyerID:        l.BuyerID.String,
		PaymentTxHash:  l.PaymentTxHash.String,
		TransferTxHash: l.TransferTxHash.String,
		CreatedAt:      l.CreatedAt.Format(time.RFC3339Nano),
		ReservedAt:     nullTime(l.ReservedAt),
		PaidAt:         nullTime(l.PaidAt),
		TransferredAt:  nullTime(l.TransferredAt),
		CancelledAt:    nullTime(l.CancelledAt),
	}
}

func ConvertDepletionTrigger(t *entity.DepletionTrigger) DepletionTrigger {
	if t == nil {
		return DepletionTrigger{}
	}

	return DepletionTrigger{
		ID:              t.ID,
		ContextID:       t.ContextID,
		BatchID:         t.BatchID,
		Status:          string(t.Status),
		ResolvedBatchID: t.ResolvedBatchID.String,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339Nano),
	}
}
