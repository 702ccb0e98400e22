package domain

import (
	"context"
	"errors"

	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

func getOwnedBatch(
	ctx context.Context,
	batchRepo repository.InventoryBatchRepository,
	caller model.CallerIdentity,
	batchID string,
) (*entity.InventoryBatch, error) {
	batch, err := batchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found batch")
		}

		xcontext.Logger(ctx).Errorf("Cannot get batch: %v", err)
		return nil, errorx.Unknown
	}

	if batch.IssuerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Batch belongs to another issuer")
	}

	return batch, nil
}

func getOpenContext(
	ctx context.Context,
	awardContextRepo repository.AwardContextRepository,
	contextID string,
) (*entity.AwardContext, error) {
	awardContext, err := awardContextRepo.GetByID(ctx, contextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found context")
		}

		xcontext.Logger(ctx).Errorf("Cannot get context: %v", err)
		return nil, errorx.Unknown
	}

	if awardContext.Status == entity.AwardContextClosed {
		return nil, errorx.New(errorx.ContextClosed, "Context %s is closed", contextID)
	}

	return awardContext, nil
}

// chainFailed converts a chain client error to ChainFailed and counts it by
// kind.
func chainFailed(err error) error {
	kind := client.ChainErrorTransport
	var chainErr *client.ChainError
	if errors.As(err, &chainErr) {
		kind = chainErr.Kind
	}

	common.PromCounters[common.ChainFailureTotal].WithLabelValues(string(kind)).Inc()
	return errorx.New(errorx.ChainFailed, "Chain %s failure: %v", kind, err)
}

// custodyWallet returns the address of the server-held wallet of the issuer.
func custodyWallet(ctx context.Context, issuerID string) (string, error) {
	address, err := ethutil.GeneratePublicKey(
		[]byte(xcontext.Configs(ctx).Blockchain.SecretKey), []byte(issuerID))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot derive custody wallet of %s: %v", issuerID, err)
		return "", errorx.Unknown
	}

	return address.Hex(), nil
}
