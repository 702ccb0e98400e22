package domain

import (
	"context"
	"testing"
	"time"

	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/mocks"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/testutil"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	seller = model.CallerIdentity{ID: testutil.Recipient}
	buyer  = model.CallerIdentity{ID: testutil.Buyer}
)

func newTestMarketplaceDomain() (*marketplaceDomain, *mocks.ChainClient, *testutil.MockRedisClient) {
	chainClient := &mocks.ChainClient{}
	redisClient := testutil.NewMockRedisClient()
	return NewMarketplaceDomain(
		repository.NewListingRepository(),
		repository.NewOwnershipHoldingRepository(),
		repository.NewBlockChainTransactionRepository(),
		chainClient,
		redisClient,
	), chainClient, redisClient
}

func resaleTransfer(from, to string) []client.Transfer {
	return []client.Transfer{{ObjectID: testutil.Holding1.ObjectID, From: from, To: to}}
}

func reservationScheduled(redisClient *testutil.MockRedisClient, listingID string) bool {
	_, err := redisClient.ZScore(testutil.MockContext(), common.RedisKeyListingReservations, listingID)
	return err == nil
}

func Test_marketplaceDomain_Lifecycle(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, chainClient, redisClient := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	require.Equal(t, entity.ListingActive, listing.Status)
	require.True(t, testutil.ListingPrice.Equal(listing.Price))

	holding, err := d.holdingRepo.GetByID(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.Equal(t, listing.ID, holding.ActiveListingID.String)

	listing, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingPaymentPending, listing.Status)
	require.Equal(t, testutil.Buyer, listing.BuyerID.String)
	require.True(t, reservationScheduled(redisClient, listing.ID))

	listing, err = d.SubmitPayment(ctx, buyer, listing.ID, "0xpayment")
	require.NoError(t, err)
	require.Equal(t, entity.ListingAwaitingTransfer, listing.Status)
	require.Equal(t, "0xpayment", listing.PaymentTxHash.String)
	require.False(t, reservationScheduled(redisClient, listing.ID))

	chainClient.On("VerifyTransfer", mock.Anything, "0xtransfer", resaleTransfer(testutil.Recipient, testutil.Buyer)).
		Return(&client.TxReceipt{TxHash: "0xtransfer", Success: true}, nil).Once()

	listing, err = d.Complete(ctx, seller, listing.ID, "0xtransfer")
	require.NoError(t, err)
	require.Equal(t, entity.ListingCompleted, listing.Status)
	require.Equal(t, "0xtransfer", listing.TransferTxHash.String)
	require.True(t, listing.TransferredAt.Valid)

	journal, err := d.blockchainTxRepo.GetByTxHash(ctx, "0xtransfer", chainClient.Chain())
	require.NoError(t, err)
	require.Equal(t, entity.BlockchainTransactionKindResale, journal.Kind)
	require.Equal(t, listing.ID, journal.Payload["listing_id"])

	holding, err = d.holdingRepo.GetByID(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.Equal(t, testutil.Buyer, holding.OwnerID)
	require.False(t, holding.ActiveListingID.Valid)

	// The buyer owns the badge now and may resell it, the former owner may not.
	_, err = d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	resale, err := d.Create(ctx, buyer, testutil.Holding1.ID, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Equal(t, entity.ListingActive, resale.Status)

	chainClient.AssertExpectations(t)
}

func Test_marketplaceDomain_Create(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	_, err := d.Create(ctx, seller, testutil.Holding1.ID, decimal.Zero)
	require.True(t, errorx.Is(err, errorx.BadRequest))

	_, err = d.Create(ctx, buyer, testutil.Holding1.ID, testutil.ListingPrice)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	_, err = d.Create(ctx, seller, "unknown", testutil.ListingPrice)
	require.True(t, errorx.Is(err, errorx.NotFound))

	_, err = d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)

	// One active listing per holding.
	_, err = d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.True(t, errorx.Is(err, errorx.Conflict))
}

func Test_marketplaceDomain_Create_Concurrent(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	const attempts = 5
	results := make([]error, attempts)
	g := errgroup.Group{}
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, err := range results {
		if err == nil {
			created++
		} else {
			require.True(t, errorx.Is(err, errorx.Conflict), err)
		}
	}
	require.Equal(t, 1, created)

	n, err := d.listingRepo.CountNonTerminalByHolding(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func Test_marketplaceDomain_Reserve(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)

	_, err = d.Reserve(ctx, seller, listing.ID)
	require.True(t, errorx.Is(err, errorx.BadRequest))

	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)

	other := model.CallerIdentity{ID: testutil.Issuer2}
	_, err = d.Reserve(ctx, other, listing.ID)
	require.True(t, errorx.Is(err, errorx.ListingUnavailable))

	// Only the reserving buyer submits payment.
	_, err = d.SubmitPayment(ctx, other, listing.ID, "0xpayment")
	require.True(t, errorx.Is(err, errorx.PermissionDenied))
}

func Test_marketplaceDomain_Reserve_Concurrent(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)

	buyers := []model.CallerIdentity{buyer, {ID: testutil.Issuer1}, {ID: testutil.Issuer2}}
	results := make([]error, len(buyers))
	g := errgroup.Group{}
	for i := range buyers {
		i := i
		g.Go(func() error {
			_, results[i] = d.Reserve(ctx, buyers[i], listing.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	reserved := 0
	for _, err := range results {
		if err == nil {
			reserved++
		} else {
			require.True(t, errorx.Is(err, errorx.ListingUnavailable), err)
		}
	}
	require.Equal(t, 1, reserved)
}

func Test_marketplaceDomain_Release(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, redisClient := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)

	// Nothing to release while active.
	_, err = d.Release(ctx, seller, listing.ID)
	require.True(t, errorx.Is(err, errorx.StaleState))

	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)

	_, err = d.Release(ctx, model.CallerIdentity{ID: testutil.Issuer2}, listing.ID)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	listing, err = d.Release(ctx, buyer, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingActive, listing.Status)
	require.False(t, listing.BuyerID.Valid)
	require.False(t, reservationScheduled(redisClient, listing.ID))

	// The listing is purchasable again.
	listing, err = d.Reserve(ctx, model.CallerIdentity{ID: testutil.Issuer2}, listing.ID)
	require.NoError(t, err)
	require.Equal(t, testutil.Issuer2, listing.BuyerID.String)
}

func Test_marketplaceDomain_Complete_WrongState(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, chainClient, _ := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)

	// The payment step can't be skipped.
	_, err = d.Complete(ctx, seller, listing.ID, "0xtransfer")
	require.True(t, errorx.Is(err, errorx.StaleState))

	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)

	_, err = d.Complete(ctx, seller, listing.ID, "0xtransfer")
	require.True(t, errorx.Is(err, errorx.StaleState))

	chainClient.AssertNotCalled(t, "VerifyTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func Test_marketplaceDomain_Complete_NotTransferred(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, chainClient, _ := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)
	_, err = d.SubmitPayment(ctx, buyer, listing.ID, "0xpayment")
	require.NoError(t, err)

	_, err = d.Complete(ctx, buyer, listing.ID, "0xtransfer")
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	chainClient.On("VerifyTransfer", mock.Anything, "0xtransfer", resaleTransfer(testutil.Recipient, testutil.Buyer)).
		Return(&client.TxReceipt{TxHash: "0xtransfer", Success: false}, nil).Once()

	_, err = d.Complete(ctx, seller, listing.ID, "0xtransfer")
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	got, err := d.listingRepo.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingAwaitingTransfer, got.Status)

	holding, err := d.holdingRepo.GetByID(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.Equal(t, testutil.Recipient, holding.OwnerID)
}

func Test_marketplaceDomain_Cancel(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)
	_, err = d.SubmitPayment(ctx, buyer, listing.ID, "0xpayment")
	require.NoError(t, err)

	_, err = d.Cancel(ctx, buyer, listing.ID)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	listing, err = d.Cancel(ctx, seller, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingCancelled, listing.Status)
	require.True(t, listing.CancelledAt.Valid)

	holding, err := d.holdingRepo.GetByID(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.False(t, holding.ActiveListingID.Valid)

	// Terminal states never change.
	_, err = d.Cancel(ctx, seller, listing.ID)
	require.True(t, errorx.Is(err, errorx.StaleState))

	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.True(t, errorx.Is(err, errorx.ListingUnavailable))

	// The holding can be listed again.
	_, err = d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
}

func Test_marketplaceDomain_ReleaseExpired(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()
	timeout := xcontext.Configs(ctx).Marketplace.ReservationTimeout

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)

	released, err := d.ReleaseExpired(ctx, listing.ID, time.Now())
	require.NoError(t, err)
	require.False(t, released)

	released, err = d.ReleaseExpired(ctx, listing.ID, time.Now().Add(timeout+time.Second))
	require.NoError(t, err)
	require.True(t, released)

	got, err := d.listingRepo.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingActive, got.Status)

	// A late payment of the released buyer loses.
	_, err = d.SubmitPayment(ctx, buyer, listing.ID, "0xlate")
	require.True(t, errorx.Is(err, errorx.StaleState))

	// Once paid, the reservation never expires.
	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)
	_, err = d.SubmitPayment(ctx, buyer, listing.ID, "0xpayment")
	require.NoError(t, err)

	released, err = d.ReleaseExpired(ctx, listing.ID, time.Now().Add(timeout+time.Second))
	require.NoError(t, err)
	require.False(t, released)
}

func Test_marketplaceDomain_ReleaseExpired_Disabled(t *testing.T) {
	ctx := testutil.WithMarketplaceTimeout(testutil.MockContext(), 0)
	testutil.CreateFixtureDb(ctx)
	d, _, redisClient := newTestMarketplaceDomain()

	listing, err := d.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = d.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)
	require.False(t, reservationScheduled(redisClient, listing.ID))

	released, err := d.ReleaseExpired(ctx, listing.ID, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.False(t, released)
}

func Test_marketplaceDomain_Dispatch(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, _, _ := newTestMarketplaceDomain()

	_, err := d.Dispatch(ctx, seller, &model.MarketplaceRequest{Action: "steal"})
	require.True(t, errorx.Is(err, errorx.BadRequest))

	_, err = d.Dispatch(ctx, model.CallerIdentity{}, &model.MarketplaceRequest{Action: model.MarketplaceActionCreate})
	require.True(t, errorx.Is(err, errorx.Unauthenticated))

	created, err := d.Dispatch(ctx, seller, &model.MarketplaceRequest{
		Action:    model.MarketplaceActionCreate,
		HoldingID: testutil.Holding1.ID,
		Price:     testutil.ListingPrice,
	})
	require.NoError(t, err)
	require.Equal(t, string(entity.ListingActive), created.Listing.Status)

	reserved, err := d.Dispatch(ctx, buyer, &model.MarketplaceRequest{
		Action:    model.MarketplaceActionPurchase,
		ListingID: created.Listing.ID,
	})
	require.NoError(t, err)
	require.Equal(t, string(entity.ListingPaymentPending), reserved.Listing.Status)

	listings, err := d.GetListings(ctx, &model.GetListingsRequest{})
	require.NoError(t, err)
	require.Empty(t, listings.Listings)

	listings, err = d.GetListings(ctx, &model.GetListingsRequest{Status: "payment_pending"})
	require.NoError(t, err)
	require.Len(t, listings.Listings, 1)

	_, err = d.GetListings(ctx, &model.GetListingsRequest{Status: "sold"})
	require.True(t, errorx.Is(err, errorx.BadRequest))

	got, err := d.GetListing(ctx, &model.GetListingRequest{ListingID: created.Listing.ID})
	require.NoError(t, err)
	require.Equal(t, testutil.Holding1.ID, got.Holding.ID)

	holdings, err := d.GetMyHoldings(ctx, seller, &model.GetMyHoldingsRequest{})
	require.NoError(t, err)
	require.Len(t, holdings.Holdings, 1)
	require.Equal(t, created.Listing.ID, holdings.Holdings[0].ActiveListingID)
}

// sell runs a listing of Holding1 from seller to buyer through completion with
// the given transfer hash.
func sell(
	t *testing.T, ctx context.Context, d *marketplaceDomain, chainClient *mocks.ChainClient,
	from, to model.CallerIdentity, txHash string,
) (*entity.Listing, error) {
	listing, err := d.Create(ctx, from, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = d.Reserve(ctx, to, listing.ID)
	require.NoError(t, err)
	_, err = d.SubmitPayment(ctx, to, listing.ID, "0xpayment-"+txHash)
	require.NoError(t, err)

	chainClient.On("VerifyTransfer", mock.Anything, txHash, resaleTransfer(from.ID, to.ID)).
		Return(&client.TxReceipt{TxHash: txHash, Success: true}, nil).Maybe()

	return d.Complete(ctx, from, listing.ID, txHash)
}

func Test_marketplaceDomain_Complete_TransferReused(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, chainClient, _ := newTestMarketplaceDomain()

	completed, err := sell(t, ctx, d, chainClient, seller, buyer, "0xT2")
	require.NoError(t, err)
	require.Equal(t, entity.ListingCompleted, completed.Status)

	completed, err = sell(t, ctx, d, chainClient, buyer, seller, "0xT3")
	require.NoError(t, err)
	require.Equal(t, entity.ListingCompleted, completed.Status)

	// The first sale moved the token to the buyer once, it can't settle a
	// second sale between the same wallets.
	_, err = sell(t, ctx, d, chainClient, seller, buyer, "0xT2")
	require.True(t, errorx.Is(err, errorx.Conflict), err)

	holding, err := d.holdingRepo.GetByID(ctx, testutil.Holding1.ID)
	require.NoError(t, err)
	require.Equal(t, testutil.Recipient, holding.OwnerID)

	listings, err := d.GetListings(ctx, &model.GetListingsRequest{Status: string(entity.ListingAwaitingTransfer)})
	require.NoError(t, err)
	require.Len(t, listings.Listings, 1)

	// Only the two genuine sales were checked on-chain.
	chainClient.AssertNumberOfCalls(t, "VerifyTransfer", 2)
}

func Test_marketplaceDomain_Complete_AwardTransferReused(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d, chainClient, _ := newTestMarketplaceDomain()

	err := d.blockchainTxRepo.CreateTransaction(ctx, &entity.BlockchainTransaction{
		Base:   entity.Base{ID: "journal1"},
		Chain:  chainClient.Chain(),
		TxHash: "0xaward",
		Kind:   entity.BlockchainTransactionKindAwardTransfer,
		Status: entity.BlockchainTransactionStatusTypeSuccess,
	})
	require.NoError(t, err)

	_, err = sell(t, ctx, d, chainClient, seller, buyer, "0xaward")
	require.True(t, errorx.Is(err, errorx.Conflict), err)
	chainClient.AssertNotCalled(t, "VerifyTransfer", mock.Anything, mock.Anything, mock.Anything)
}
