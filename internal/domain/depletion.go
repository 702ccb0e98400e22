package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

type DepletionDomain interface {
	HandleSignal(context.Context, model.DepletionSignal) error
	GetOptions(context.Context, model.CallerIdentity, *model.GetDepletionOptionsRequest) (*model.GetDepletionOptionsResponse, error)
	Reassign(context.Context, model.CallerIdentity, *model.ReassignDepletedContextRequest) (*model.ReassignDepletedContextResponse, error)
	Finalize(context.Context, model.CallerIdentity, *model.FinalizeDepletedContextRequest) (*model.FinalizeDepletedContextResponse, error)
}

type depletionDomain struct {
	triggerRepo      repository.DepletionTriggerRepository
	awardContextRepo repository.AwardContextRepository
	batchRepo        repository.InventoryBatchRepository
}

func NewDepletionDomain(
	triggerRepo repository.DepletionTriggerRepository,
	awardContextRepo repository.AwardContextRepository,
	batchRepo repository.InventoryBatchRepository,
) *depletionDomain {
	return &depletionDomain{
		triggerRepo:      triggerRepo,
		awardContextRepo: awardContextRepo,
		batchRepo:        batchRepo,
	}
}

// triggerID is derived from the depleted context and batch, so duplicated
// signals of the same depletion map to the same trigger.
func triggerID(contextID, batchID string) string {
	if batchID == "" {
		return uuid.NewString()
	}

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(contextID+":"+batchID)).String()
}

func (d *depletionDomain) HandleSignal(ctx context.Context, signal model.DepletionSignal) error {
	awardContext, err := d.awardContextRepo.GetByID(ctx, signal.ContextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Warnf("Depletion signal of unknown context %s", signal.ContextID)
			return nil
		}

		return err
	}

	if awardContext.Status == entity.AwardContextClosed {
		return nil
	}

	// Another batch of the context may still have tokens, or the context was
	// already replenished.
	batches, err := d.batchRepo.GetAvailableByContext(ctx, signal.ContextID)
	if err != nil {
		return err
	}

	if len(batches) > 0 {
		xcontext.Logger(ctx).Debugf("Context %s still has available batches, ignore depletion", signal.ContextID)
		return nil
	}

	if _, err := d.triggerRepo.GetPendingByContext(ctx, signal.ContextID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// Concurrent signals of the same context race to here, the unique pending
	// marker lets only one of them in.
	created, err := d.triggerRepo.Create(ctx, &entity.DepletionTrigger{
		Base:      entity.Base{ID: triggerID(signal.ContextID, signal.BatchID)},
		ContextID: signal.ContextID,
		BatchID:   signal.BatchID,
		IssuerID:  awardContext.IssuerID,
		Status:    entity.DepletionTriggerPending,
	})
	if err != nil {
		return err
	}

	if !created {
		return nil
	}

	xcontext.Logger(ctx).Infof("Context %s is depleted, waiting for issuer resolution", signal.ContextID)
	return nil
}

func (d *depletionDomain) GetOptions(
	ctx context.Context, caller model.CallerIdentity, req *model.GetDepletionOptionsRequest,
) (*model.GetDepletionOptionsResponse, error) {
	var trigger *entity.DepletionTrigger
	var err error
	switch {
	case req.TriggerID != "":
		trigger, err = d.triggerRepo.GetByID(ctx, req.TriggerID)
	case req.ContextID != "":
		trigger, err = d.triggerRepo.GetPendingByContext(ctx, req.ContextID)
	default:
		return nil, errorx.New(errorx.BadRequest, "Require trigger id or context id")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found depletion trigger")
		}

		xcontext.Logger(ctx).Errorf("Cannot get depletion trigger: %v", err)
		return nil, errorx.Unknown
	}

	if trigger.IssuerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Trigger belongs to another issuer")
	}

	resp := &model.GetDepletionOptionsResponse{
		Trigger:    model.ConvertDepletionTrigger(trigger),
		Candidates: []model.InventoryBatch{},
	}

	if trigger.Status != entity.DepletionTriggerPending {
		return resp, nil
	}

	candidates, err := d.batchRepo.GetUnassignedAvailable(ctx, trigger.IssuerID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get candidate batches: %v", err)
		return nil, errorx.Unknown
	}

	for i := range candidates {
		resp.Candidates = append(resp.Candidates, model.ConvertInventoryBatch(&candidates[i]))
	}

	resp.CanReassign = len(candidates) > 0
	resp.CanFinalize = true
	return resp, nil
}

func (d *depletionDomain) Reassign(
	ctx context.Context, caller model.CallerIdentity, req *model.ReassignDepletedContextRequest,
) (*model.ReassignDepletedContextResponse, error) {
	if req.BatchID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require batch id")
	}

	trigger, err := d.getPendingTrigger(ctx, caller, req.TriggerID)
	if err != nil {
		return nil, err
	}

	if _, err := getOpenContext(ctx, d.awardContextRepo, trigger.ContextID); err != nil {
		return nil, err
	}

	batch, err := getOwnedBatch(ctx, d.batchRepo, caller, req.BatchID)
	if err != nil {
		return nil, err
	}

	if batch.ContextID.Valid {
		return nil, errorx.New(errorx.Conflict, "Batch is already assigned to a context")
	}

	if batch.Available() == 0 {
		return nil, errorx.New(errorx.Exhausted, "Batch has no available token")
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	resolved, err := d.triggerRepo.Resolve(ctx, trigger.ID, entity.DepletionTriggerReassigned, batch.ID, time.Now())
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot resolve depletion trigger: %v", err)
		return nil, errorx.Unknown
	}

	if !resolved {
		return nil, errorx.New(errorx.StaleState, "Depletion trigger was already resolved")
	}

	assigned, err := d.batchRepo.Assign(ctx, batch.ID, caller.ID, trigger.ContextID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot assign batch: %v", err)
		return nil, errorx.Unknown
	}

	if !assigned {
		return nil, errorx.New(errorx.Conflict, "Batch is already assigned to a context")
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit reassignment: %v", err)
		return nil, errorx.Unknown
	}

	common.PromCounters[common.DepletionResolutionTotal].WithLabelValues("reassign").Inc()
	batch.ContextID.Valid, batch.ContextID.String = true, trigger.ContextID
	return &model.ReassignDepletedContextResponse{Batch: model.ConvertInventoryBatch(batch)}, nil
}

func (d *depletionDomain) Finalize(
	ctx context.Context, caller model.CallerIdentity, req *model.FinalizeDepletedContextRequest,
) (*model.FinalizeDepletedContextResponse, error) {
	if !req.Confirm {
		return nil, errorx.New(errorx.BadRequest, "Closing a context is permanent, it must be confirmed")
	}

	trigger, err := d.getPendingTrigger(ctx, caller, req.TriggerID)
	if err != nil {
		return nil, err
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	now := time.Now()
	resolved, err := d.triggerRepo.Resolve(ctx, trigger.ID, entity.DepletionTriggerFinalized, "", now)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot resolve depletion trigger: %v", err)
		return nil, errorx.Unknown
	}

	if !resolved {
		return nil, errorx.New(errorx.StaleState, "Depletion trigger was already resolved")
	}

	if _, err := d.awardContextRepo.Close(ctx, trigger.ContextID, now); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot close context: %v", err)
		return nil, errorx.Unknown
	}

	awardContext, err := d.awardContextRepo.GetByID(ctx, trigger.ContextID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get context: %v", err)
		return nil, errorx.Unknown
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit finalization: %v", err)
		return nil, errorx.Unknown
	}

	common.PromCounters[common.DepletionResolutionTotal].WithLabelValues("finalize").Inc()
	return &model.FinalizeDepletedContextResponse{Context: model.ConvertAwardContext(awardContext)}, nil
}

func (d *depletionDomain) getPendingTrigger(
	ctx context.Context, caller model.CallerIdentity, triggerID string,
) (*entity.DepletionTrigger, error) {
	if triggerID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require trigger id")
	}

	trigger, err := d.triggerRepo.GetByID(ctx, triggerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found depletion trigger")
		}

		xcontext.Logger(ctx).Errorf("Cannot get depletion trigger: %v", err)
		return nil, errorx.Unknown
	}

	if trigger.IssuerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Trigger belongs to another issuer")
	}

	if trigger.Status != entity.DepletionTriggerPending {
		return nil, errorx.New(errorx.StaleState, "Depletion trigger was already %s", trigger.Status)
	}

	return trigger, nil
}
