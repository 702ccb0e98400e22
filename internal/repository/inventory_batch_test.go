package repository_test

import (
	"testing"

	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func Test_inventoryBatchRepository_IncreaseAwardedCount(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	batchRepo := repository.NewInventoryBatchRepository()

	for i := 0; i < testutil.Batch2.Quantity; i++ {
		ok, err := batchRepo.IncreaseAwardedCount(ctx, testutil.Batch2.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := batchRepo.IncreaseAwardedCount(ctx, testutil.Batch2.ID)
	require.NoError(t, err)
	require.False(t, ok)

	batch, err := batchRepo.GetByID(ctx, testutil.Batch2.ID)
	require.NoError(t, err)
	require.Equal(t, batch.Quantity, batch.AwardedCount)
	require.Zero(t, batch.Available())
}

func Test_inventoryBatchRepository_Assign(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	batchRepo := repository.NewInventoryBatchRepository()

	ok, err := batchRepo.Assign(ctx, testutil.Batch2.ID, testutil.Issuer2, testutil.EmptyContext.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = batchRepo.Assign(ctx, testutil.Batch2.ID, testutil.Issuer1, testutil.EmptyContext.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = batchRepo.Assign(ctx, testutil.Batch2.ID, testutil.Issuer1, testutil.OpenContext.ID)
	require.NoError(t, err)
	require.False(t, ok)

	batches, err := batchRepo.GetAvailableByContext(ctx, testutil.EmptyContext.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, testutil.Batch2.ID, batches[0].ID)
}
