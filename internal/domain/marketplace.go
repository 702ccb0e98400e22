package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/enum"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/questx-lab/badgehub/pkg/xredis"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MarketplaceDomain interface {
	Dispatch(context.Context, model.CallerIdentity, *model.MarketplaceRequest) (*model.MarketplaceResponse, error)

	Create(ctx context.Context, caller model.CallerIdentity, holdingID string, price decimal.Decimal) (*entity.Listing, error)
	Reserve(ctx context.Context, caller model.CallerIdentity, listingID string) (*entity.Listing, error)
	SubmitPayment(ctx context.Context, caller model.CallerIdentity, listingID, txHash string) (*entity.Listing, error)
	Complete(ctx context.Context, caller model.CallerIdentity, listingID, txHash string) (*entity.Listing, error)
	Release(ctx context.Context, caller model.CallerIdentity, listingID string) (*entity.Listing, error)
	Cancel(ctx context.Context, caller model.CallerIdentity, listingID string) (*entity.Listing, error)
	ReleaseExpired(ctx context.Context, listingID string, now time.Time) (bool, error)

	GetListing(context.Context, *model.GetListingRequest) (*model.GetListingResponse, error)
	GetListings(context.Context, *model.GetListingsRequest) (*model.GetListingsResponse, error)
	GetHolding(context.Context, *model.GetHoldingRequest) (*model.GetHoldingResponse, error)
	GetMyHoldings(context.Context, model.CallerIdentity, *model.GetMyHoldingsRequest) (*model.GetMyHoldingsResponse, error)
}

type marketplaceDomain struct {
	listingRepo      repository.ListingRepository
	holdingRepo      repository.OwnershipHoldingRepository
	blockchainTxRepo repository.BlockChainTransactionRepository
	chainClient      client.ChainClient
	redisClient      xredis.Client
}

func NewMarketplaceDomain(
	listingRepo repository.ListingRepository,
	holdingRepo repository.OwnershipHoldingRepository,
	blockchainTxRepo repository.BlockChainTransactionRepository,
	chainClient client.ChainClient,
	redisClient xredis.Client,
) *marketplaceDomain {
	return &marketplaceDomain{
		listingRepo:      listingRepo,
		holdingRepo:      holdingRepo,
		blockchainTxRepo: blockchainTxRepo,
		chainClient:      chainClient,
		redisClient:      redisClient,
	}
}

func (d *marketplaceDomain) Dispatch(
	ctx context.Context, caller model.CallerIdentity, req *model.MarketplaceRequest,
) (*model.MarketplaceResponse, error) {
	if caller.IsZero() {
		return nil, errorx.New(errorx.Unauthenticated, "Require a caller identity")
	}

	var listing *entity.Listing
	var err error
	switch req.Action {
	case model.MarketplaceActionCreate:
		listing, err = d.Create(ctx, caller, req.HoldingID, req.Price)
	case model.MarketplaceActionPurchase:
		listing, err = d.Reserve(ctx, caller, req.ListingID)
	case model.MarketplaceActionPaymentSubmitted:
		listing, err = d.SubmitPayment(ctx, caller, req.ListingID, req.TxHash)
	case model.MarketplaceActionComplete:
		listing, err = d.Complete(ctx, caller, req.ListingID, req.TxHash)
	case model.MarketplaceActionRelease:
		listing, err = d.Release(ctx, caller, req.ListingID)
	case model.MarketplaceActionCancel:
		listing, err = d.Cancel(ctx, caller, req.ListingID)
	default:
		return nil, errorx.New(errorx.BadRequest, "Unknown action %q", req.Action)
	}

	result := "ok"
	if err != nil {
		result = "error"
		var errx errorx.Error
		if errors.As(err, &errx) {
			result = errx.Code.String()
		}
	}
	common.PromCounters[common.MarketplaceTransitionTotal].WithLabelValues(req.Action, result).Inc()

	if err != nil {
		return nil, err
	}

	return &model.MarketplaceResponse{Listing: model.ConvertListing(listing)}, nil
}

func (d *marketplaceDomain) Create(
	ctx context.Context, caller model.CallerIdentity, holdingID string, price decimal.Decimal,
) (*entity.Listing, error) {
	if holdingID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require holding id")
	}

	if !price.IsPositive() {
		return nil, errorx.New(errorx.BadRequest, "Price must be positive")
	}

	holding, err := d.holdingRepo.GetByID(ctx, holdingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found holding")
		}

		xcontext.Logger(ctx).Errorf("Cannot get holding: %v", err)
		return nil, errorx.Unknown
	}

	if holding.OwnerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the owner can list this holding")
	}

	if holding.ActiveListingID.Valid {
		return nil, errorx.New(errorx.Conflict, "Holding already has an active listing")
	}

	txCtx := xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(txCtx)

	listing := &entity.Listing{
		Base:      entity.Base{ID: uuid.NewString()},
		HoldingID: holding.ID,
		SellerID:  caller.ID,
		Price:     price,
		Status:    entity.ListingActive,
	}

	if err := d.listingRepo.Create(txCtx, listing); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create listing: %v", err)
		return nil, errorx.Unknown
	}

	// The holding row is the arbiter of concurrent listing creations.
	attached, err := d.holdingRepo.AttachListing(txCtx, holding.ID, caller.ID, listing.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot attach listing to holding: %v", err)
		return nil, errorx.Unknown
	}

	if !attached {
		return nil, errorx.New(errorx.Conflict, "Holding already has an active listing")
	}

	if err := xcontext.WithCommitDBTransaction(txCtx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit listing creation: %v", err)
		return nil, errorx.Unknown
	}

	return listing, nil
}

func (d *marketplaceDomain) Reserve(
	ctx context.Context, caller model.CallerIdentity, listingID string,
) (*entity.Listing, error) {
	listing, err := d.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.SellerID == caller.ID {
		return nil, errorx.New(errorx.BadRequest, "Cannot purchase your own listing")
	}

	if listing.Status != entity.ListingActive {
		return nil, errorx.New(errorx.ListingUnavailable, "Listing is no longer available")
	}

	now := time.Now()
	ok, err := d.listingRepo.Transition(ctx, listing.ID, entity.ListingActive, "", map[string]any{
		"status":      entity.ListingPaymentPending,
		"buyer_id":    caller.ID,
		"reserved_at": now,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot reserve listing: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, errorx.New(errorx.ListingUnavailable, "Listing is no longer available")
	}

	if timeout := xcontext.Configs(ctx).Marketplace.ReservationTimeout; timeout > 0 {
		err := d.redisClient.ZAdd(ctx, common.RedisKeyListingReservations, redis.Z{
			Score:  float64(now.Add(timeout).Unix()),
			Member: listing.ID,
		})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot schedule expiry of reservation %s: %v", listing.ID, err)
		}
	}

	return d.reload(ctx, listing.ID)
}

func (d *marketplaceDomain) SubmitPayment(
	ctx context.Context, caller model.CallerIdentity, listingID, txHash string,
) (*entity.Listing, error) {
	if txHash == "" {
		return nil, errorx.New(errorx.BadRequest, "Require payment transaction hash")
	}

	listing, err := d.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if err := expectStatus(listing, entity.ListingPaymentPending); err != nil {
		return nil, err
	}

	if listing.BuyerID.String != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the reserving buyer can submit payment")
	}

	// The payment leg is a direct transfer between buyer and seller. Its hash
	// is recorded for the seller to check, not verified here.
	ok, err := d.listingRepo.Transition(ctx, listing.ID, entity.ListingPaymentPending, caller.ID, map[string]any{
		"status":          entity.ListingAwaitingTransfer,
		"payment_tx_hash": txHash,
		"paid_at":         time.Now(),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit payment of listing: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, staleState(listing.ID)
	}

	d.unscheduleExpiry(ctx, listing.ID)
	return d.reload(ctx, listing.ID)
}

func (d *marketplaceDomain) Complete(
	ctx context.Context, caller model.CallerIdentity, listingID, txHash string,
) (*entity.Listing, error) {
	if txHash == "" {
		return nil, errorx.New(errorx.BadRequest, "Require transfer transaction hash")
	}

	listing, err := d.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if err := expectStatus(listing, entity.ListingAwaitingTransfer); err != nil {
		return nil, err
	}

	if listing.SellerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the seller can complete the listing")
	}

	holding, err := d.holdingRepo.GetByID(ctx, listing.HoldingID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get holding of listing: %v", err)
		return nil, errorx.Unknown
	}

	// A transfer hash settles at most one listing, whatever it was journaled
	// for before.
	if _, err := d.blockchainTxRepo.GetByTxHash(ctx, txHash, d.chainClient.Chain()); err == nil {
		return nil, transferReused(txHash)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get journal of tx %s: %v", txHash, err)
		return nil, errorx.Unknown
	}

	receipt, err := d.chainClient.VerifyTransfer(ctx, txHash, client.Transfer{
		ObjectID: holding.ObjectID,
		From:     listing.SellerID,
		To:       listing.BuyerID.String,
	})
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot verify transfer %s of listing %s: %v", txHash, listing.ID, err)
		return nil, chainFailed(err)
	}

	if !receipt.Success {
		return nil, chainFailed(client.NewRejectedError(txHash,
			errors.New("transaction did not transfer the token to the buyer")))
	}

	txCtx := xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(txCtx)

	now := time.Now()
	ok, err := d.listingRepo.Transition(txCtx, listing.ID, entity.ListingAwaitingTransfer, listing.BuyerID.String,
		map[string]any{
			"status":           entity.ListingCompleted,
			"transfer_tx_hash": txHash,
			"transferred_at":   now,
		})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot complete listing: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, staleState(listing.ID)
	}

	transferred, err := d.holdingRepo.TransferOwner(txCtx, holding.ID, listing.ID, listing.BuyerID.String, now)
	if err == nil && !transferred {
		err = errors.New("holding is not bound to the listing")
	}

	if err == nil {
		err = d.blockchainTxRepo.CreateTransaction(txCtx, &entity.BlockchainTransaction{
			Base:   entity.Base{ID: uuid.NewString()},
			Chain:  d.chainClient.Chain(),
			TxHash: txHash,
			Kind:   entity.BlockchainTransactionKindResale,
			Status: entity.BlockchainTransactionStatusTypeSuccess,
			Payload: entity.Map{
				"listing_id": listing.ID,
				"object_id":  holding.ObjectID,
				"from":       listing.SellerID,
				"to":         listing.BuyerID.String,
			},
			Reconciled: true,
		})
	}

	if err == nil {
		err = xcontext.WithCommitDBTransaction(txCtx)
	}

	if err != nil {
		rerr := &ReconcileError{TxHash: txHash, Step: ReconcileStepTransferOwner, Err: err}
		xcontext.Logger(ctx).Errorf("RECONCILE_FAILED tx=%s step=%s listing=%s: %v",
			txHash, rerr.Step, listing.ID, err)
		common.PromCounters[common.ReconcileFailureTotal].WithLabelValues(rerr.Step).Inc()
		return nil, rerr
	}

	return d.reload(ctx, listing.ID)
}

func (d *marketplaceDomain) Release(
	ctx context.Context, caller model.CallerIdentity, listingID string,
) (*entity.Listing, error) {
	listing, err := d.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if err := expectStatus(listing, entity.ListingPaymentPending); err != nil {
		return nil, err
	}

	if listing.BuyerID.String != caller.ID && listing.SellerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the buyer or the seller can release the listing")
	}

	ok, err := d.release(ctx, listing)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot release listing: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, staleState(listing.ID)
	}

	d.unscheduleExpiry(ctx, listing.ID)
	return d.reload(ctx, listing.ID)
}

// ReleaseExpired returns an expired reservation to active. It reports false
// if the listing left payment_pending or its reservation is not expired yet.
func (d *marketplaceDomain) ReleaseExpired(ctx context.Context, listingID string, now time.Time) (bool, error) {
	listing, err := d.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, err
	}

	timeout := xcontext.Configs(ctx).Marketplace.ReservationTimeout
	if timeout <= 0 || listing.Status != entity.ListingPaymentPending {
		return false, nil
	}

	if !listing.ReservedAt.Valid || listing.ReservedAt.Time.Add(timeout).After(now) {
		return false, nil
	}

	ok, err := d.release(ctx, listing)
	if err != nil {
		return false, err
	}

	if ok {
		xcontext.Logger(ctx).Infof("Reservation of listing %s by %s expired", listing.ID, listing.BuyerID.String)
	}

	return ok, nil
}

func (d *marketplaceDomain) release(ctx context.Context, listing *entity.Listing) (bool, error) {
	return d.listingRepo.Transition(ctx, listing.ID, entity.ListingPaymentPending, listing.BuyerID.String,
		map[string]any{
			"status":          entity.ListingActive,
			"buyer_id":        nil,
			"payment_tx_hash": nil,
			"reserved_at":     nil,
		})
}

func (d *marketplaceDomain) Cancel(
	ctx context.Context, caller model.CallerIdentity, listingID string,
) (*entity.Listing, error) {
	listing, err := d.getListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.SellerID != caller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the seller can cancel the listing")
	}

	if listing.Status.IsTerminal() {
		return nil, staleStateFrom(listing)
	}

	txCtx := xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(txCtx)

	ok, err := d.listingRepo.Transition(txCtx, listing.ID, listing.Status, "", map[string]any{
		"status":       entity.ListingCancelled,
		"cancelled_at": time.Now(),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot cancel listing: %v", err)
		return nil, errorx.Unknown
	}

	if !ok {
		return nil, staleState(listing.ID)
	}

	if _, err := d.holdingRepo.DetachListing(txCtx, listing.HoldingID, listing.ID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot detach listing from holding: %v", err)
		return nil, errorx.Unknown
	}

	if err := xcontext.WithCommitDBTransaction(txCtx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit listing cancellation: %v", err)
		return nil, errorx.Unknown
	}

	d.unscheduleExpiry(ctx, listing.ID)
	return d.reload(ctx, listing.ID)
}

func (d *marketplaceDomain) GetListing(
	ctx context.Context, req *model.GetListingRequest,
) (*model.GetListingResponse, error) {
	listing, err := d.getListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}

	holding, err := d.holdingRepo.GetByID(ctx, listing.HoldingID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get holding of listing: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetListingResponse{
		Listing: model.ConvertListing(listing),
		Holding: model.ConvertOwnershipHolding(holding),
	}, nil
}

func (d *marketplaceDomain) GetListings(
	ctx context.Context, req *model.GetListingsRequest,
) (*model.GetListingsResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	status := entity.ListingActive
	if req.Status != "" {
		var err error
		status, err = enum.ToEnum[entity.ListingStatus](req.Status)
		if err != nil {
			return nil, errorx.New(errorx.BadRequest, "Invalid listing status %q", req.Status)
		}
	}

	listings, err := d.listingRepo.GetList(ctx, repository.GetListingsFilter{
		Status: status,
		Offset: req.Offset,
		Limit:  limit,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get listings: %v", err)
		return nil, errorx.Unknown
	}

	clientListings := []model.Listing{}
	for i := range listings {
		clientListings = append(clientListings, model.ConvertListing(&listings[i]))
	}

	return &model.GetListingsResponse{Listings: clientListings}, nil
}

func (d *marketplaceDomain) GetHolding(
	ctx context.Context, req *model.GetHoldingRequest,
) (*model.GetHoldingResponse, error) {
	holding, err := d.holdingRepo.GetByID(ctx, req.HoldingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found holding")
		}

		xcontext.Logger(ctx).Errorf("Cannot get holding: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetHoldingResponse{Holding: model.ConvertOwnershipHolding(holding)}, nil
}

func (d *marketplaceDomain) GetMyHoldings(
	ctx context.Context, caller model.CallerIdentity, req *model.GetMyHoldingsRequest,
) (*model.GetMyHoldingsResponse, error) {
	holdings, err := d.holdingRepo.GetByOwner(ctx, caller.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get holdings of owner: %v", err)
		return nil, errorx.Unknown
	}

	clientHoldings := []model.OwnershipHolding{}
	for i := range holdings {
		clientHoldings = append(clientHoldings, model.ConvertOwnershipHolding(&holdings[i]))
	}

	return &model.GetMyHoldingsResponse{Holdings: clientHoldings}, nil
}

func (d *marketplaceDomain) getListing(ctx context.Context, listingID string) (*entity.Listing, error) {
	if listingID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require listing id")
	}

	listing, err := d.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found listing")
		}

		xcontext.Logger(ctx).Errorf("Cannot get listing: %v", err)
		return nil, errorx.Unknown
	}

	return listing, nil
}

func (d *marketplaceDomain) reload(ctx context.Context, listingID string) (*entity.Listing, error) {
	listing, err := d.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot reload listing: %v", err)
		return nil, errorx.Unknown
	}

	return listing, nil
}

func (d *marketplaceDomain) unscheduleExpiry(ctx context.Context, listingID string) {
	if xcontext.Configs(ctx).Marketplace.ReservationTimeout <= 0 {
		return
	}

	if err := d.redisClient.ZRem(ctx, common.RedisKeyListingReservations, listingID); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot unschedule expiry of listing %s: %v", listingID, err)
	}
}

func expectStatus(listing *entity.Listing, status entity.ListingStatus) error {
	if listing.Status != status {
		return staleStateFrom(listing)
	}

	return nil
}

func staleStateFrom(listing *entity.Listing) error {
	return errorx.New(errorx.StaleState, "Listing %s is %s, refresh and retry", listing.ID, listing.Status)
}

func transferReused(txHash string) error {
	return errorx.New(errorx.Conflict, "Transaction %s was already used to settle a transfer", txHash)
}

func staleState(listingID string) error {
	return errorx.New(errorx.StaleState, "Listing %s changed concurrently, refresh and retry", listingID)
}
