package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

// TokenReservation is the outcome of a reservation. Exhausted is set, and
// Token is nil, when the batch has no available token left.
type TokenReservation struct {
	Token         *entity.BadgeToken
	ReservationID string
	Exhausted     bool
}

type CommitAwardParams struct {
	BatchID     string
	TokenID     int64
	RecipientID string
	TxHash      string
	AwardedAt   time.Time
}

// TokenLedger owns the per-token status of batches and the awarded_count
// derived from it.
type TokenLedger interface {
	ReserveAvailableToken(ctx context.Context, batchID string) (*TokenReservation, error)
	ReleaseReservation(ctx context.Context, tokenID int64, reservationID string) error
	CommitAward(ctx context.Context, params CommitAwardParams) error
	Remaining(ctx context.Context, batchID string) (int, error)
}

type tokenLedger struct {
	batchRepo repository.InventoryBatchRepository
	tokenRepo repository.BadgeTokenRepository
}

func NewTokenLedger(
	batchRepo repository.InventoryBatchRepository,
	tokenRepo repository.BadgeTokenRepository,
) *tokenLedger {
	return &tokenLedger{
		batchRepo: batchRepo,
		tokenRepo: tokenRepo,
	}
}

func (l *tokenLedger) ReserveAvailableToken(ctx context.Context, batchID string) (*TokenReservation, error) {
	reservationID := uuid.NewString()
	now := time.Now()
	until := now.Add(xcontext.Configs(ctx).Award.ReservationTTL)

	token, err := l.tokenRepo.Reserve(ctx, batchID, reservationID, now, until)
	if err == nil {
		return &TokenReservation{Token: token, ReservationID: reservationID}, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot reserve token of batch %s: %v", batchID, err)
		return nil, errorx.Unknown
	}

	available, err := l.tokenRepo.Count(ctx, batchID, entity.BadgeTokenAvailable)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count available tokens of batch %s: %v", batchID, err)
		return nil, errorx.Unknown
	}

	if available == 0 {
		return &TokenReservation{Exhausted: true}, nil
	}

	return nil, errorx.New(errorx.Unavailable,
		"All %d available tokens are locked by in-flight awards, retry later", available)
}

func (l *tokenLedger) ReleaseReservation(ctx context.Context, tokenID int64, reservationID string) error {
	released, err := l.tokenRepo.ReleaseReservation(ctx, tokenID, reservationID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot release reservation %s of token %d: %v", reservationID, tokenID, err)
		return errorx.Unknown
	}

	if !released {
		xcontext.Logger(ctx).Debugf("Reservation %s of token %d is already gone", reservationID, tokenID)
	}

	return nil
}

// CommitAward marks the token awarded and increases the batch awarded_count in
// one transaction. A token which is no longer available yields Conflict.
func (l *tokenLedger) CommitAward(ctx context.Context, params CommitAwardParams) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	token, err := l.tokenRepo.GetByID(ctx, params.TokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorx.New(errorx.NotFound, "Not found token")
		}

		return err
	}

	if token.BatchID != params.BatchID {
		return errorx.New(errorx.BadRequest, "Token %d doesn't belong to batch %s", token.ID, params.BatchID)
	}

	marked, err := l.tokenRepo.MarkAwarded(ctx, params.TokenID, repository.AwardedToken{
		RecipientID: params.RecipientID,
		TxHash:      params.TxHash,
		AwardedAt:   params.AwardedAt,
	})
	if err != nil {
		return err
	}

	if !marked {
		return errorx.New(errorx.Conflict, "Token %d was already awarded", params.TokenID)
	}

	increased, err := l.batchRepo.IncreaseAwardedCount(ctx, params.BatchID)
	if err != nil {
		return err
	}

	if !increased {
		return errorx.New(errorx.Exhausted, "Batch %s is fully awarded", params.BatchID)
	}

	return xcontext.WithCommitDBTransaction(ctx)
}

func (l *tokenLedger) Remaining(ctx context.Context, batchID string) (int, error) {
	batch, err := l.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return 0, err
	}

	return batch.Available(), nil
}
