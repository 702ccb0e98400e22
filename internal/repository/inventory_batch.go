package repository

import (
	"context"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

type InventoryBatchRepository interface {
	Create(ctx context.Context, e *entity.InventoryBatch) error
	GetByID(ctx context.Context, id string) (*entity.InventoryBatch, error)
	GetByTxHash(ctx context.Context, txHash string) (*entity.InventoryBatch, error)
	GetByIssuer(ctx context.Context, issuerID string) ([]entity.InventoryBatch, error)
	GetAvailableByContext(ctx context.Context, contextID string) ([]entity.InventoryBatch, error)
	GetUnassignedAvailable(ctx context.Context, issuerID string) ([]entity.InventoryBatch, error)
	Assign(ctx context.Context, id, issuerID, contextID string) (bool, error)
	IncreaseAwardedCount(ctx context.Context, id string) (bool, error)
}

type inventoryBatchRepository struct{}

func NewInventoryBatchRepository() *inventoryBatchRepository {
	return &inventoryBatchRepository{}
}

// Create inserts the batch and its tokens.
func (r *inventoryBatchRepository) Create(ctx context.Context, e *entity.InventoryBatch) error {
	return xcontext.DB(ctx).Create(e).Error
}

func (r *inventoryBatchRepository) GetByID(ctx context.Context, id string) (*entity.InventoryBatch, error) {
	result := entity.InventoryBatch{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *inventoryBatchRepository) GetByTxHash(ctx context.Context, txHash string) (*entity.InventoryBatch, error) {
	result := entity.InventoryBatch{}
	if err := xcontext.DB(ctx).Take(&result, "tx_hash=?", txHash).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *inventoryBatchRepository) GetByIssuer(ctx context.Context, issuerID string) ([]entity.InventoryBatch, error) {
	result := []entity.InventoryBatch{}
	err := xcontext.DB(ctx).
		Where("issuer_id=?", issuerID).
		Order("created_at DESC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *inventoryBatchRepository) GetAvailableByContext(ctx context.Context, contextID string) ([]entity.InventoryBatch, error) {
	result := []entity.InventoryBatch{}
	err := xcontext.DB(ctx).
		Where("context_id=? AND status=? AND awarded_count<quantity", contextID, entity.InventoryBatchConfirmed).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *inventoryBatchRepository) GetUnassignedAvailable(ctx context.Context, issuerID string) ([]entity.InventoryBatch, error) {
	result := []entity.InventoryBatch{}
	err := xcontext.DB(ctx).
		Where("issuer_id=? AND context_id IS NULL AND status=? AND awarded_count<quantity",
			issuerID, entity.InventoryBatchConfirmed).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Assign binds an unassigned batch of the issuer to the context. It returns
// false if the batch is already bound.
func (r *inventoryBatchRepository) Assign(ctx context.Context, id, issuerID, contextID string) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.InventoryBatch{}).
		Where("id=? AND issuer_id=? AND context_id IS NULL", id, issuerID).
		Update("context_id", contextID)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

// IncreaseAwardedCount never lets awarded_count exceed quantity. It returns
// false if the batch is already fully awarded.
func (r *inventoryBatchRepository) IncreaseAwardedCount(ctx context.Context, id string) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.InventoryBatch{}).
		Where("id=? AND awarded_count<quantity", id).
		Update("awarded_count", gorm.Expr("awarded_count+1"))
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
