package domain

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

type InventoryDomain interface {
	CreateBatch(context.Context, model.CallerIdentity, *model.CreateBatchRequest) (*model.CreateBatchResponse, error)
	GetBatch(context.Context, *model.GetBatchRequest) (*model.GetBatchResponse, error)
	GetMyBatches(context.Context, model.CallerIdentity, *model.GetMyBatchesRequest) (*model.GetMyBatchesResponse, error)
	AssignBatch(context.Context, model.CallerIdentity, *model.AssignBatchRequest) (*model.AssignBatchResponse, error)
	GetCustodyWallet(context.Context, model.CallerIdentity, *model.GetCustodyWalletRequest) (*model.GetCustodyWalletResponse, error)
}

type inventoryDomain struct {
	batchRepo        repository.InventoryBatchRepository
	tokenRepo        repository.BadgeTokenRepository
	awardContextRepo repository.AwardContextRepository
	blockchainTxRepo repository.BlockChainTransactionRepository
	chainClient      client.ChainClient
}

func NewInventoryDomain(
	batchRepo repository.InventoryBatchRepository,
	tokenRepo repository.BadgeTokenRepository,
	awardContextRepo repository.AwardContextRepository,
	blockchainTxRepo repository.BlockChainTransactionRepository,
	chainClient client.ChainClient,
) *inventoryDomain {
	return &inventoryDomain{
		batchRepo:        batchRepo,
		tokenRepo:        tokenRepo,
		awardContextRepo: awardContextRepo,
		blockchainTxRepo: blockchainTxRepo,
		chainClient:      chainClient,
	}
}

func (d *inventoryDomain) CreateBatch(
	ctx context.Context, caller model.CallerIdentity, req *model.CreateBatchRequest,
) (*model.CreateBatchResponse, error) {
	if caller.IsZero() {
		return nil, errorx.New(errorx.Unauthenticated, "Require an issuer identity")
	}

	if req.Quantity < 1 {
		return nil, errorx.New(errorx.BadRequest, "Quantity must be at least 1")
	}

	if req.TxHash == "" {
		return nil, errorx.New(errorx.BadRequest, "Require the purchase transaction hash")
	}

	if len(req.ChainObjectIDs) != req.Quantity {
		return nil, errorx.New(errorx.BadRequest, "Expected %d chain object ids, got %d",
			req.Quantity, len(req.ChainObjectIDs))
	}

	objectIDs := make([]string, 0, len(req.ChainObjectIDs))
	seen := map[string]bool{}
	for _, id := range req.ChainObjectIDs {
		contract, tokenID, err := ethutil.ParseObjectID(id)
		if err != nil {
			return nil, errorx.New(errorx.BadRequest, "Invalid chain object id %s", id)
		}

		normalized := ethutil.FormatObjectID(contract, tokenID)
		if seen[normalized] {
			return nil, errorx.New(errorx.BadRequest, "Duplicated chain object id %s", id)
		}

		seen[normalized] = true
		objectIDs = append(objectIDs, normalized)
	}

	existing, err := d.batchRepo.GetByTxHash(ctx, req.TxHash)
	if err == nil {
		if existing.IssuerID != caller.ID {
			return nil, errorx.New(errorx.AlreadyExists, "Transaction was already used by another batch")
		}

		return &model.CreateBatchResponse{Batch: model.ConvertInventoryBatch(existing)}, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get batch by tx hash: %v", err)
		return nil, errorx.Unknown
	}

	var contextID sql.NullString
	if req.ContextID != "" {
		if _, err := d.getOwnedOpenContext(ctx, caller, req.ContextID); err != nil {
			return nil, err
		}

		contextID = sql.NullString{Valid: true, String: req.ContextID}
	}

	receipt, err := d.chainClient.WaitForFinality(ctx, req.TxHash)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot verify purchase transaction %s: %v", req.TxHash, err)
		return nil, chainFailed(err)
	}

	if receipt.Success {
		if err := d.verifyMinted(ctx, caller, req.TxHash, objectIDs); err != nil {
			return nil, err
		}
	}

	batch := &entity.InventoryBatch{
		Base:      entity.Base{ID: uuid.NewString()},
		IssuerID:  caller.ID,
		Quantity:  req.Quantity,
		ContextID: contextID,
		Status:    entity.InventoryBatchFailed,
		TxHash:    req.TxHash,
	}

	if req.TemplateID != "" {
		batch.TemplateID = sql.NullString{Valid: true, String: req.TemplateID}
	}

	journalStatus := entity.BlockchainTransactionStatusTypeFailure
	if receipt.Success {
		batch.Status = entity.InventoryBatchConfirmed
		journalStatus = entity.BlockchainTransactionStatusTypeSuccess
		for i, objectID := range objectIDs {
			batch.Tokens = append(batch.Tokens, entity.BadgeToken{
				SnowFlakeBase: entity.SnowFlakeBase{ID: xcontext.SnowFlake(ctx).Generate().Int64()},
				ObjectID:      objectID,
				Position:      i,
				Status:        entity.BadgeTokenAvailable,
			})
		}
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.batchRepo.Create(ctx, batch); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create batch: %v", err)
		return nil, errorx.Unknown
	}

	err = d.blockchainTxRepo.CreateTransaction(ctx, &entity.BlockchainTransaction{
		Base:       entity.Base{ID: uuid.NewString()},
		Chain:      d.chainClient.Chain(),
		TxHash:     req.TxHash,
		Kind:       entity.BlockchainTransactionKindBatchPurchase,
		Status:     journalStatus,
		Payload:    entity.Map{"batch_id": batch.ID},
		Reconciled: true,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot journal purchase transaction: %v", err)
		return nil, errorx.Unknown
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit batch creation: %v", err)
		return nil, errorx.Unknown
	}

	if !receipt.Success {
		xcontext.Logger(ctx).Warnf("Purchase transaction %s of batch %s was rejected", req.TxHash, batch.ID)
	}

	return &model.CreateBatchResponse{Batch: model.ConvertInventoryBatch(batch)}, nil
}

// verifyMinted checks that the purchase moved every listed object into the
// custody wallet of the issuer, otherwise the batch could never be awarded.
func (d *inventoryDomain) verifyMinted(
	ctx context.Context, caller model.CallerIdentity, txHash string, objectIDs []string,
) error {
	custody, err := custodyWallet(ctx, caller.ID)
	if err != nil {
		return err
	}

	transfers := make([]client.Transfer, 0, len(objectIDs))
	for _, objectID := range objectIDs {
		transfers = append(transfers, client.Transfer{ObjectID: objectID, To: custody})
	}

	receipt, err := d.chainClient.VerifyTransfer(ctx, txHash, transfers...)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot verify minted objects of %s: %v", txHash, err)
		return chainFailed(err)
	}

	if !receipt.Success {
		return errorx.New(errorx.BadRequest,
			"Transaction %s did not deliver every chain object to the custody wallet %s", txHash, custody)
	}

	return nil
}

func (d *inventoryDomain) GetBatch(
	ctx context.Context, req *model.GetBatchRequest,
) (*model.GetBatchResponse, error) {
	if req.BatchID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require batch id")
	}

	batch, err := d.batchRepo.GetByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found batch")
		}

		xcontext.Logger(ctx).Errorf("Cannot get batch: %v", err)
		return nil, errorx.Unknown
	}

	if req.IncludeTokens {
		batch.Tokens, err = d.tokenRepo.GetByBatchID(ctx, batch.ID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get tokens of batch: %v", err)
			return nil, errorx.Unknown
		}
	}

	return &model.GetBatchResponse{Batch: model.ConvertInventoryBatch(batch)}, nil
}

func (d *inventoryDomain) GetMyBatches(
	ctx context.Context, caller model.CallerIdentity, req *model.GetMyBatchesRequest,
) (*model.GetMyBatchesResponse, error) {
	batches, err := d.batchRepo.GetByIssuer(ctx, caller.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get batches of issuer: %v", err)
		return nil, errorx.Unknown
	}

	result := []model.InventoryBatch{}
	for i := range batches {
		result = append(result, model.ConvertInventoryBatch(&batches[i]))
	}

	return &model.GetMyBatchesResponse{Batches: result}, nil
}

func (d *inventoryDomain) AssignBatch(
	ctx context.Context, caller model.CallerIdentity, req *model.AssignBatchRequest,
) (*model.AssignBatchResponse, error) {
	if req.BatchID == "" || req.ContextID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require batch id and context id")
	}

	if _, err := d.getOwnedOpenContext(ctx, caller, req.ContextID); err != nil {
		return nil, err
	}

	batch, err := getOwnedBatch(ctx, d.batchRepo, caller, req.BatchID)
	if err != nil {
		return nil, err
	}

	if batch.Status != entity.InventoryBatchConfirmed {
		return nil, errorx.New(errorx.BadRequest, "Batch is not confirmed on-chain")
	}

	assigned, err := d.batchRepo.Assign(ctx, batch.ID, caller.ID, req.ContextID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot assign batch: %v", err)
		return nil, errorx.Unknown
	}

	if !assigned {
		return nil, errorx.New(errorx.Conflict, "Batch is already assigned to a context")
	}

	batch.ContextID = sql.NullString{Valid: true, String: req.ContextID}
	return &model.AssignBatchResponse{Batch: model.ConvertInventoryBatch(batch)}, nil
}

// GetCustodyWallet returns the server-held wallet of the issuer. Minted badges
// must be sent there before the server can award them.
func (d *inventoryDomain) GetCustodyWallet(
	ctx context.Context, caller model.CallerIdentity, req *model.GetCustodyWalletRequest,
) (*model.GetCustodyWalletResponse, error) {
	address, err := custodyWallet(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	return &model.GetCustodyWalletResponse{Address: address}, nil
}

func (d *inventoryDomain) getOwnedOpenContext(
	ctx context.Context, caller model.CallerIdentity, contextID string,
) (*entity.AwardContext, error) {
	awardContext, err := getOpenContext(ctx, d.awardContextRepo, contextID)
	if err != nil {
		return nil, err
	}

	if awardContext.IssuerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Context belongs to another issuer")
	}

	return awardContext, nil
}
