package repository

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type BlockChainTransactionRepository interface {
	CreateTransaction(ctx context.Context, e *entity.BlockchainTransaction) error
	UpdateByTxHash(ctx context.Context, txHash, chain string, data *entity.BlockchainTransaction) error
	GetByTxHash(ctx context.Context, txHash, chain string) (*entity.BlockchainTransaction, error)
	GetUnreconciled(ctx context.Context, kind entity.BlockchainTransactionKind, before time.Time, limit int) ([]entity.BlockchainTransaction, error)
	MarkReconciled(ctx context.Context, txHash, chain string) error
}

type blockChainTransactionRepository struct{}

func NewBlockChainTransactionRepository() *blockChainTransactionRepository {
	return &blockChainTransactionRepository{}
}

// CreateTransaction ignores a transaction which was already journaled.
func (r *blockChainTransactionRepository) CreateTransaction(ctx context.Context, e *entity.BlockchainTransaction) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain"}, {Name: "tx_hash"}},
			DoNothing: true,
		}).
		Create(e).Error
}

func (r *blockChainTransactionRepository) UpdateByTxHash(
	ctx context.Context, txHash, chain string, data *entity.BlockchainTransaction,
) error {
	return xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("tx_hash=? AND chain=?", txHash, chain).
		Updates(data).Error
}

func (r *blockChainTransactionRepository) GetByTxHash(
	ctx context.Context, txHash, chain string,
) (*entity.BlockchainTransaction, error) {
	var result entity.BlockchainTransaction
	if err := xcontext.DB(ctx).Take(&result, "tx_hash=? AND chain=?", txHash, chain).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetUnreconciled returns in-progress or successful transactions of the kind
// journaled before the given time whose off-chain commit has not been recorded
// yet, oldest first.
func (r *blockChainTransactionRepository) GetUnreconciled(
	ctx context.Context, kind entity.BlockchainTransactionKind, before time.Time, limit int,
) ([]entity.BlockchainTransaction, error) {
	result := []entity.BlockchainTransaction{}
	err := xcontext.DB(ctx).
		Where("kind=? AND reconciled=? AND status IN (?)", kind, false, []entity.BlockchainTransactionStatusType{
			entity.BlockchainTransactionStatusTypeInProgress,
			entity.BlockchainTransactionStatusTypeSuccess,
		}).
		Where("created_at < ?", before).
		Order("created_at ASC").
		Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *blockChainTransactionRepository) MarkReconciled(ctx context.Context, txHash, chain string) error {
	return xcontext.DB(ctx).
		Model(&entity.BlockchainTransaction{}).
		Where("tx_hash=? AND chain=?", txHash, chain).
		Update("reconciled", true).Error
}
