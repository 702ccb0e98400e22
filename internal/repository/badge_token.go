package repository

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

const reserveCandidates = 8

type AwardedToken struct {
	RecipientID string
	TxHash      string
	AwardedAt   time.Time
}

type BadgeTokenRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.BadgeToken, error)
	GetByObjectID(ctx context.Context, objectID string) (*entity.BadgeToken, error)
	GetByBatchID(ctx context.Context, batchID string) ([]entity.BadgeToken, error)
	Count(ctx context.Context, batchID string, status entity.BadgeTokenStatus) (int64, error)
	Reserve(ctx context.Context, batchID, reservationID string, now, until time.Time) (*entity.BadgeToken, error)
	ReleaseReservation(ctx context.Context, id int64, reservationID string) (bool, error)
	MarkAwarded(ctx context.Context, id int64, data AwardedToken) (bool, error)
}

type badgeTokenRepository struct{}

func NewBadgeTokenRepository() *badgeTokenRepository {
	return &badgeTokenRepository{}
}

func (r *badgeTokenRepository) GetByID(ctx context.Context, id int64) (*entity.BadgeToken, error) {
	result := entity.BadgeToken{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *badgeTokenRepository) GetByObjectID(ctx context.Context, objectID string) (*entity.BadgeToken, error) {
	result := entity.BadgeToken{}
	if err := xcontext.DB(ctx).Take(&result, "object_id=?", objectID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *badgeTokenRepository) GetByBatchID(ctx context.Context, batchID string) ([]entity.BadgeToken, error) {
	result := []entity.BadgeToken{}
	err := xcontext.DB(ctx).
		Where("batch_id=?", batchID).
		Order("position ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *badgeTokenRepository) Count(
	ctx context.Context, batchID string, status entity.BadgeTokenStatus,
) (int64, error) {
	var result int64
	err := xcontext.DB(ctx).
		Model(&entity.BadgeToken{}).
		Where("batch_id=? AND status=?", batchID, status).
		Count(&result).Error
	if err != nil {
		return 0, err
	}

	return result, nil
}

// Reserve locks one available and unlocked token of the batch until the given
// time. It returns gorm.ErrRecordNotFound if every available token is locked
// or the batch has no available token.
func (r *badgeTokenRepository) Reserve(
	ctx context.Context, batchID, reservationID string, now, until time.Time,
) (*entity.BadgeToken, error) {
	candidates := []entity.BadgeToken{}
	err := r.unlocked(xcontext.DB(ctx), now).
		Where("batch_id=?", batchID).
		Order("position ASC").
		Limit(reserveCandidates).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for _, token := range candidates {
		// Another attempt may have locked this token after it was read, so
		// the lock is taken with a conditional update.
		tx := r.unlocked(xcontext.DB(ctx), now).
			Where("id=?", token.ID).
			Updates(map[string]any{
				"reservation_id": reservationID,
				"reserved_until": until,
			})
		if tx.Error != nil {
			return nil, tx.Error
		}

		if tx.RowsAffected == 1 {
			return r.GetByID(ctx, token.ID)
		}
	}

	return nil, gorm.ErrRecordNotFound
}

func (r *badgeTokenRepository) unlocked(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&entity.BadgeToken{}).
		Where("status=?", entity.BadgeTokenAvailable).
		Where("(reserved_until IS NULL OR reserved_until<?)", now)
}

func (r *badgeTokenRepository) ReleaseReservation(ctx context.Context, id int64, reservationID string) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.BadgeToken{}).
		Where("id=? AND reservation_id=? AND status=?", id, reservationID, entity.BadgeTokenAvailable).
		Updates(map[string]any{
			"reservation_id": nil,
			"reserved_until": nil,
		})
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

// MarkAwarded moves the token from available to awarded. It returns false if
// the token was already awarded.
func (r *badgeTokenRepository) MarkAwarded(ctx context.Context, id int64, data AwardedToken) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.BadgeToken{}).
		Where("id=? AND status=?", id, entity.BadgeTokenAvailable).
		Updates(map[string]any{
			"status":         entity.BadgeTokenAwarded,
			"recipient_id":   data.RecipientID,
			"award_tx_hash":  data.TxHash,
			"awarded_at":     data.AwardedAt,
			"reservation_id": nil,
			"reserved_until": nil,
		})
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
