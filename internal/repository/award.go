package repository

import (
	"context"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type AwardRepository interface {
	Create(ctx context.Context, e *entity.Award) error
	GetByID(ctx context.Context, id string) (*entity.Award, error)
	GetByTxHash(ctx context.Context, txHash string) (*entity.Award, error)
	GetByRecipient(ctx context.Context, recipientID string) ([]entity.Award, error)
}

type awardRepository struct{}

func NewAwardRepository() *awardRepository {
	return &awardRepository{}
}

func (r *awardRepository) Create(ctx context.Context, e *entity.Award) error {
	return xcontext.DB(ctx).Create(e).Error
}

func (r *awardRepository) GetByID(ctx context.Context, id string) (*entity.Award, error) {
	result := entity.Award{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *awardRepository) GetByTxHash(ctx context.Context, txHash string) (*entity.Award, error) {
	result := entity.Award{}
	if err := xcontext.DB(ctx).Take(&result, "tx_hash=?", txHash).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *awardRepository) GetByRecipient(ctx context.Context, recipientID string) ([]entity.Award, error) {
	result := []entity.Award{}
	err := xcontext.DB(ctx).
		Where("recipient_id=?", recipientID).
		Order("created_at DESC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}
