package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

type AwardContextDomain interface {
	Create(context.Context, model.CallerIdentity, *model.CreateAwardContextRequest) (*model.CreateAwardContextResponse, error)
	Get(context.Context, *model.GetAwardContextRequest) (*model.GetAwardContextResponse, error)
}

type awardContextDomain struct {
	awardContextRepo repository.AwardContextRepository
	batchRepo        repository.InventoryBatchRepository
}

func NewAwardContextDomain(
	awardContextRepo repository.AwardContextRepository,
	batchRepo repository.InventoryBatchRepository,
) *awardContextDomain {
	return &awardContextDomain{
		awardContextRepo: awardContextRepo,
		batchRepo:        batchRepo,
	}
}

func (d *awardContextDomain) Create(
	ctx context.Context, caller model.CallerIdentity, req *model.CreateAwardContextRequest,
) (*model.CreateAwardContextResponse, error) {
	if caller.IsZero() {
		return nil, errorx.New(errorx.Unauthenticated, "Require an issuer identity")
	}

	if req.Title == "" {
		return nil, errorx.New(errorx.BadRequest, "Require title")
	}

	awardContext := &entity.AwardContext{
		Base:     entity.Base{ID: uuid.NewString()},
		IssuerID: caller.ID,
		Title:    req.Title,
		Status:   entity.AwardContextOpen,
	}

	if err := d.awardContextRepo.Create(ctx, awardContext); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create award context: %v", err)
		return nil, errorx.Unknown
	}

	return &model.CreateAwardContextResponse{Context: model.ConvertAwardContext(awardContext)}, nil
}

func (d *awardContextDomain) Get(
	ctx context.Context, req *model.GetAwardContextRequest,
) (*model.GetAwardContextResponse, error) {
	awardContext, err := d.awardContextRepo.GetByID(ctx, req.ContextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found context")
		}

		xcontext.Logger(ctx).Errorf("Cannot get award context: %v", err)
		return nil, errorx.Unknown
	}

	batches, err := d.batchRepo.GetAvailableByContext(ctx, awardContext.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get batches of context: %v", err)
		return nil, errorx.Unknown
	}

	clientBatches := []model.InventoryBatch{}
	for i := range batches {
		clientBatches = append(clientBatches, model.ConvertInventoryBatch(&batches[i]))
	}

	return &model.GetAwardContextResponse{
		Context: model.ConvertAwardContext(awardContext),
		Batches: clientBatches,
	}, nil
}
