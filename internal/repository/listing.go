package repository

import (
	"context"

	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type GetListingsFilter struct {
	Status   entity.ListingStatus
	SellerID string
	Offset   int
	Limit    int
}

type ListingRepository interface {
	Create(ctx context.Context, e *entity.Listing) error
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	GetList(ctx context.Context, filter GetListingsFilter) ([]entity.Listing, error)
	CountNonTerminalByHolding(ctx context.Context, holdingID string) (int64, error)
	Transition(ctx context.Context, id string, from entity.ListingStatus, buyerID string, data map[string]any) (bool, error)
}

type listingRepository struct{}

func NewListingRepository() *listingRepository {
	return &listingRepository{}
}

func (r *listingRepository) Create(ctx context.Context, e *entity.Listing) error {
	return xcontext.DB(ctx).Create(e).Error
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	result := entity.Listing{}
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *listingRepository) GetList(ctx context.Context, filter GetListingsFilter) ([]entity.Listing, error) {
	tx := xcontext.DB(ctx).Model(&entity.Listing{})
	if filter.Status != "" {
		tx = tx.Where("status=?", filter.Status)
	}

	if filter.SellerID != "" {
		tx = tx.Where("seller_id=?", filter.SellerID)
	}

	if filter.Limit > 0 {
		tx = tx.Offset(filter.Offset).Limit(filter.Limit)
	}

	result := []entity.Listing{}
	if err := tx.Order("created_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *listingRepository) CountNonTerminalByHolding(ctx context.Context, holdingID string) (int64, error) {
	var result int64
	err := xcontext.DB(ctx).
		Model(&entity.Listing{}).
		Where("holding_id=? AND status IN (?)", holdingID, []entity.ListingStatus{
			entity.ListingActive,
			entity.ListingPaymentPending,
			entity.ListingAwaitingTransfer,
		}).
		Count(&result).Error
	if err != nil {
		return 0, err
	}

	return result, nil
}

// Transition applies data to the listing only if its status is still from and,
// when buyerID is not empty, the reservation still belongs to that buyer. It
// returns false when another transition won the race.
func (r *listingRepository) Transition(
	ctx context.Context, id string, from entity.ListingStatus, buyerID string, data map[string]any,
) (bool, error) {
	tx := xcontext.DB(ctx).
		Model(&entity.Listing{}).
		Where("id=? AND status=?", id, from)
	if buyerID != "" {
		tx = tx.Where("buyer_id=?", buyerID)
	}

	tx = tx.Updates(data)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}
