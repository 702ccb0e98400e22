package cron

import (
	"testing"
	"time"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/mocks"
	"github.com/questx-lab/badgehub/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func Test_ReleaseExpiredReservationsCronJob(t *testing.T) {
	ctx := testutil.WithMarketplaceTimeout(testutil.MockContext(), time.Nanosecond)
	testutil.CreateFixtureDb(ctx)

	listingRepo := repository.NewListingRepository()
	redisClient := testutil.NewMockRedisClient()
	marketplaceDomain := domain.NewMarketplaceDomain(
		listingRepo,
		repository.NewOwnershipHoldingRepository(),
		repository.NewBlockChainTransactionRepository(),
		&mocks.ChainClient{},
		redisClient,
	)

	seller := model.CallerIdentity{ID: testutil.Recipient}
	buyer := model.CallerIdentity{ID: testutil.Buyer}

	listing, err := marketplaceDomain.Create(ctx, seller, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = marketplaceDomain.Reserve(ctx, buyer, listing.ID)
	require.NoError(t, err)

	_, err = redisClient.ZScore(ctx, common.RedisKeyListingReservations, listing.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	job := NewReleaseExpiredReservationsCronJob(ctx, marketplaceDomain, redisClient)
	job.Do(ctx)

	got, err := listingRepo.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingActive, got.Status)
	require.False(t, got.BuyerID.Valid)

	_, err = redisClient.ZScore(ctx, common.RedisKeyListingReservations, listing.ID)
	require.Error(t, err)
}

func Test_ReleaseExpiredReservationsCronJob_Paid(t *testing.T) {
	ctx := testutil.WithMarketplaceTimeout(testutil.MockContext(), time.Nanosecond)
	testutil.CreateFixtureDb(ctx)

	listingRepo := repository.NewListingRepository()
	redisClient := testutil.NewMockRedisClient()
	marketplaceDomain := domain.NewMarketplaceDomain(
		listingRepo,
		repository.NewOwnershipHoldingRepository(),
		repository.NewBlockChainTransactionRepository(),
		&mocks.ChainClient{},
		redisClient,
	)

	listing, err := marketplaceDomain.Create(ctx,
		model.CallerIdentity{ID: testutil.Recipient}, testutil.Holding1.ID, testutil.ListingPrice)
	require.NoError(t, err)
	_, err = marketplaceDomain.Reserve(ctx, model.CallerIdentity{ID: testutil.Buyer}, listing.ID)
	require.NoError(t, err)

	// Simulate a stale index entry left behind after the payment landed.
	_, err = marketplaceDomain.SubmitPayment(ctx, model.CallerIdentity{ID: testutil.Buyer}, listing.ID, "0xpayment")
	require.NoError(t, err)
	require.NoError(t, redisClient.ZAdd(ctx, common.RedisKeyListingReservations, redis.Z{Score: 0, Member: listing.ID}))

	job := NewReleaseExpiredReservationsCronJob(ctx, marketplaceDomain, redisClient)
	job.Do(ctx)

	got, err := listingRepo.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, entity.ListingAwaitingTransfer, got.Status)

	_, err = redisClient.ZScore(ctx, common.RedisKeyListingReservations, listing.ID)
	require.Error(t, err)
}
