package repository

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type OwnershipHoldingRepository interface {
	Create(ctx context.Context, e *entity.OwnershipHolding) error
	GetByID(ctx context.Context, id string) (*entity.OwnershipHolding, error)
	GetByObjectID(ctx context.Context, objectID string) (*entity.OwnershipHolding, error)
	GetByOwner(ctx context.Context, ownerID string) ([]entity.OwnershipHolding, error)
	AttachListing(ctx context.Context, id, ownerID, listingID string) (bool, error)
	DetachListing(ctx context.Context, id, listingID string) (bool, error)
	TransferOwner(ctx context.Context, id, listingID, newOwnerID string, at time.Time) (bool, error)
}

type ownershipHoldingRepository struct{}

func NewOwnershipHoldingRepository() *ownershipHoldingRepository {
	return &ownershipHoldingRepository{}
}

func (r *ownershipHoldingRepository) Create(ctx context.Context, e *entity.OwnershipHolding) error {
	return xcontext.DB(ctx).Create(e).Error
}

func (r *ownershipHoldingRepository) GetByID(ctx context.Context, id string) (*entity.OwnershipHolding, error) {
	result := entity.OwnershipHolding{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ownershipHoldingRepository) GetByObjectID(ctx context.Context, objectID string) (*entity.OwnershipHolding, error) {
	result := entity.OwnershipHolding{}
	if err := xcontext.DB(ctx).Take(&result, "object_id=?", objectID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ownershipHoldingRepository) GetByOwner(ctx context.Context, ownerID string) ([]entity.OwnershipHolding, error) {
	result := []entity.OwnershipHolding{}
	err := xcontext.DB(ctx).
		Where("owner_id=?", ownerID).
		Order("acquired_at DESC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// AttachListing marks the listing as the single non-terminal listing of the
// holding. It returns false if the holding already has one or the owner
// changed.
func (r *ownershipHoldingRepository) AttachListing(ctx context.Context, id, ownerID, listingID string) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.OwnershipHolding{}).
		Where("id=? AND owner_id=? AND active_listing_id IS NULL", id, ownerID).
		Update("active_listing_id", listingID)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

func (r *ownershipHoldingRepository) DetachListing(ctx context.Context, id, listingID string) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.OwnershipHolding{}).
		Where("id=? AND active_listing_id=?", id, listingID).
		Update("active_listing_id", nil)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

// TransferOwner hands the holding over to the buyer of its active listing and
// detaches the listing.
func (r *ownershipHoldingRepository) TransferOwner(
	ctx context.Context, id, listingID, newOwnerID string, at time.Time,
) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.OwnershipHolding{}).
		Where("id=? AND active_listing_id=?", id, listingID).
		Updates(map[string]any{
			"owner_id":          newOwnerID,
			"acquired_at":       at,
			"active_listing_id": nil,
		})
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
