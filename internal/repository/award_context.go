package repository

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type AwardContextRepository interface {
	Create(ctx context.Context, e *entity.AwardContext) error
	GetByID(ctx context.Context, id string) (*entity.AwardContext, error)
	Close(ctx context.Context, id string, closedAt time.Time) (bool, error)
}

type awardContextRepository struct{}

func NewAwardContextRepository() *awardContextRepository {
	return &awardContextRepository{}
}

func (r *awardContextRepository) Create(ctx context.Context, e *entity.AwardContext) error {
	return xcontext.DB(ctx).Create(e).Error
}

func (r *awardContextRepository) GetByID(ctx context.Context, id string) (*entity.AwardContext, error) {
	result := entity.AwardContext{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// Close moves an open context to closed. It returns false if the context was
// already closed.
func (r *awardContextRepository) Close(ctx context.Context, id string, closedAt time.Time) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.AwardContext{}).
		Where("id=? AND status=?", id, entity.AwardContextOpen).
		Updates(map[string]any{
			"status":    entity.AwardContextClosed,
			"closed_at": closedAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
