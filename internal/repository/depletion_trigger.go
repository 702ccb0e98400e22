package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type DepletionTriggerRepository interface {
	Create(ctx context.Context, e *entity.DepletionTrigger) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.DepletionTrigger, error)
	GetPendingByContext(ctx context.Context, contextID string) (*entity.DepletionTrigger, error)
	Resolve(ctx context.Context, id string, status entity.DepletionTriggerStatus, batchID string, at time.Time) (bool, error)
}

type depletionTriggerRepository struct{}

func NewDepletionTriggerRepository() *depletionTriggerRepository {
	return &depletionTriggerRepository{}
}

// Create ignores a trigger whose id already exists, or whose context already
// has a pending trigger. It reports whether the trigger was inserted.
func (r *depletionTriggerRepository) Create(ctx context.Context, e *entity.DepletionTrigger) (bool, error) {
	if e.Status == entity.DepletionTriggerPending {
		e.PendingContextID = sql.NullString{Valid: true, String: e.ContextID}
	}

	tx := xcontext.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

func (r *depletionTriggerRepository) GetByID(ctx context.Context, id string) (*entity.DepletionTrigger, error) {
	result := entity.DepletionTrigger{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *depletionTriggerRepository) GetPendingByContext(ctx context.Context, contextID string) (*entity.DepletionTrigger, error) {
	result := entity.DepletionTrigger{}
	err := xcontext.DB(ctx).
		Where("context_id=? AND status=?", contextID, entity.DepletionTriggerPending).
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Resolve moves a pending trigger to its terminal status. Only one resolution
// wins per trigger.
func (r *depletionTriggerRepository) Resolve(
	ctx context.Context, id string, status entity.DepletionTriggerStatus, batchID string, at time.Time,
) (bool, error) {
	data := map[string]any{
		"status":             status,
		"resolved_at":        at,
		"pending_context_id": nil,
	}
	if batchID != "" {
		data["resolved_batch_id"] = batchID
	}

	tx := xcontext.DB(ctx).
		Model(&entity.DepletionTrigger{}).
		Where("id=? AND status=?", id, entity.DepletionTriggerPending).
		Updates(data)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
