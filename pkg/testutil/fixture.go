package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/shopspring/decimal"
)

var (
	BadgeContract = common.HexToAddress("0x00000000000000000000000000000000000000b1")

	Issuer1   = common.HexToAddress("0x1000000000000000000000000000000000000001").Hex()
	Issuer2   = common.HexToAddress("0x2000000000000000000000000000000000000002").Hex()
	Recipient = common.HexToAddress("0x3000000000000000000000000000000000000003").Hex()
	Buyer     = common.HexToAddress("0x4000000000000000000000000000000000000004").Hex()

	// OpenContext of Issuer1 has Batch1 assigned.
	OpenContext = &entity.AwardContext{
		Base:     entity.Base{ID: "context1"},
		IssuerID: Issuer1,
		Title:    "Hackathon",
		Status:   entity.AwardContextOpen,
	}

	// EmptyContext of Issuer1 has no batch assigned.
	EmptyContext = &entity.AwardContext{
		Base:     entity.Base{ID: "context2"},
		IssuerID: Issuer1,
		Title:    "Meetup",
		Status:   entity.AwardContextOpen,
	}

	ClosedContext = &entity.AwardContext{
		Base:     entity.Base{ID: "context3"},
		IssuerID: Issuer1,
		Title:    "Past event",
		Status:   entity.AwardContextClosed,
		ClosedAt: sql.NullTime{Valid: true, Time: time.Now()},
	}

	// Batch1 holds 3 available tokens and is assigned to OpenContext.
	Batch1 = newBatch("batch1", Issuer1, OpenContext.ID, "0xbatch1", 100, 3, 0)

	// Batch2 holds 2 available tokens and is not assigned yet.
	Batch2 = newBatch("batch2", Issuer1, "", "0xbatch2", 200, 2, 0)

	// AwardedBatch is fully awarded; its only token belongs to Recipient
	// through Award1 and Holding1.
	AwardedBatch = newBatch("batch3", Issuer1, "", "0xbatch3", 300, 1, 1)

	FailedBatch = &entity.InventoryBatch{
		Base:     entity.Base{ID: "batch4"},
		IssuerID: Issuer1,
		Quantity: 1,
		Status:   entity.InventoryBatchFailed,
		TxHash:   "0xbatch4",
	}

	Award1 = &entity.Award{
		Base:        entity.Base{ID: "award1"},
		RecipientID: Recipient,
		IssuerID:    Issuer1,
		BatchID:     AwardedBatch.ID,
		TokenID:     AwardedBatch.Tokens[0].ID,
		TxHash:      "0xaward1",
	}

	Holding1 = &entity.OwnershipHolding{
		Base:       entity.Base{ID: "holding1"},
		ObjectID:   AwardedBatch.Tokens[0].ObjectID,
		OwnerID:    Recipient,
		AcquiredAt: time.Now(),
		AwardID:    Award1.ID,
	}

	ListingPrice = decimal.RequireFromString("1.5")
)

func ObjectID(tokenID int64) string {
	return ethutil.FormatObjectID(BadgeContract, big.NewInt(tokenID))
}

func newBatch(
	id, issuerID, contextID, txHash string, firstTokenID int64, quantity, awarded int,
) *entity.InventoryBatch {
	batch := &entity.InventoryBatch{
		Base:         entity.Base{ID: id},
		IssuerID:     issuerID,
		Quantity:     quantity,
		AwardedCount: awarded,
		Status:       entity.InventoryBatchConfirmed,
		TxHash:       txHash,
	}

	if contextID != "" {
		batch.ContextID = sql.NullString{Valid: true, String: contextID}
	}

	for i := 0; i < quantity; i++ {
		token := entity.BadgeToken{
			SnowFlakeBase: entity.SnowFlakeBase{ID: firstTokenID + int64(i)},
			ObjectID:      ObjectID(firstTokenID + int64(i)),
			Position:      i,
			Status:        entity.BadgeTokenAvailable,
		}

		if i < awarded {
			token.Status = entity.BadgeTokenAwarded
			token.RecipientID = sql.NullString{Valid: true, String: Recipient}
			token.AwardTxHash = sql.NullString{Valid: true, String: fmt.Sprintf("0xaward%d", i+1)}
			token.AwardedAt = sql.NullTime{Valid: true, Time: time.Now()}
		}

		batch.Tokens = append(batch.Tokens, token)
	}

	return batch
}

// CreateFixtureDb inserts the fixtures above. Fixture structs are copied, so
// tests may read them after the database rows changed.
func CreateFixtureDb(ctx context.Context) {
	InsertAwardContexts(ctx)
	InsertInventoryBatches(ctx)
	InsertAwards(ctx)
}

func InsertAwardContexts(ctx context.Context) {
	repo := repository.NewAwardContextRepository()
	for _, c := range []*entity.AwardContext{OpenContext, EmptyContext, ClosedContext} {
		clone := *c
		if err := repo.Create(ctx, &clone); err != nil {
			panic(err)
		}
	}
}

func InsertInventoryBatches(ctx context.Context) {
	repo := repository.NewInventoryBatchRepository()
	for _, b := range []*entity.InventoryBatch{Batch1, Batch2, AwardedBatch, FailedBatch} {
		clone := *b
		clone.Tokens = append([]entity.BadgeToken{}, b.Tokens...)
		if err := repo.Create(ctx, &clone); err != nil {
			panic(err)
		}
	}
}

func InsertAwards(ctx context.Context) {
	award := *Award1
	if err := repository.NewAwardRepository().Create(ctx, &award); err != nil {
		panic(err)
	}

	holding := *Holding1
	if err := repository.NewOwnershipHoldingRepository().Create(ctx, &holding); err != nil {
		panic(err)
	}
}
