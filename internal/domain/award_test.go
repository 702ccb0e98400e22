package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type awardTestSuite struct {
	awardDomain *awardDomain
	chainClient *mocks.ChainClient
	publisher   *testutil.MockPublisher

	batchRepo        repository.InventoryBatchRepository
	tokenRepo        repository.BadgeTokenRepository
	awardRepo        repository.AwardRepository
	holdingRepo      repository.OwnershipHoldingRepository
	blockchainTxRepo repository.BlockChainTransactionRepository
}

func newAwardTestSuite() *awardTestSuite {
	s := &awardTestSuite{
		chainClient:      &mocks.ChainClient{},
		publisher:        &testutil.MockPublisher{},
		batchRepo:        repository.NewInventoryBatchRepository(),
		tokenRepo:        repository.NewBadgeTokenRepository(),
		awardRepo:        repository.NewAwardRepository(),
		holdingRepo:      repository.NewOwnershipHoldingRepository(),
		blockchainTxRepo: repository.NewBlockChainTransactionRepository(),
	}

	s.awardDomain = NewAwardDomain(
		s.batchRepo,
		s.tokenRepo,
		s.awardRepo,
		s.holdingRepo,
		repository.NewAwardContextRepository(),
		s.blockchainTxRepo,
		NewTokenLedger(s.batchRepo, s.tokenRepo),
		s.chainClient,
		NewPublisherDepletionNotifier(s.publisher),
		s.publisher,
	)

	return s
}

func (s *awardTestSuite) expectTransfer(txHash string, success bool) {
	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).Return(txHash, nil).Once()
	s.chainClient.On("WaitForFinality", mock.Anything, txHash).
		Return(&client.TxReceipt{TxHash: txHash, Success: success}, nil).Once()
}

// awardTransfer is the transfer of objectID from the custody wallet of Issuer1
// to Recipient.
func awardTransfer(t *testing.T, ctx context.Context, objectID string) []client.Transfer {
	custody, err := custodyWallet(ctx, testutil.Issuer1)
	require.NoError(t, err)

	return []client.Transfer{{ObjectID: objectID, From: custody, To: testutil.Recipient}}
}

func issuer1() model.CallerIdentity {
	return model.CallerIdentity{ID: testutil.Issuer1}
}

func Test_awardDomain_Award(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()
	s.expectTransfer("0xtx1", true)

	resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch1.ID,
		Recipient: testutil.Recipient,
		Note:      "winner",
	})
	require.NoError(t, err)
	require.Equal(t, model.AwardStateCommitted, resp.State)
	require.Equal(t, testutil.Batch1.Quantity-1, resp.Remaining)
	require.Equal(t, testutil.Recipient, resp.Award.RecipientID)
	require.Equal(t, testutil.OpenContext.ID, resp.Award.ContextID)
	require.Equal(t, "0xtx1", resp.Award.TxHash)

	// The first token by position is awarded.
	token, err := s.tokenRepo.GetByID(ctx, testutil.Batch1.Tokens[0].ID)
	require.NoError(t, err)
	require.Equal(t, entity.BadgeTokenAwarded, token.Status)
	require.Equal(t, "0xtx1", token.AwardTxHash.String)
	require.False(t, token.ReservationID.Valid)
	require.Equal(t, strconv.FormatInt(token.ID, 10), resp.Award.TokenID)

	holding, err := s.holdingRepo.GetByObjectID(ctx, token.ObjectID)
	require.NoError(t, err)
	require.Equal(t, testutil.Recipient, holding.OwnerID)
	require.Equal(t, resp.Award.ID, holding.AwardID)

	journal, err := s.blockchainTxRepo.GetByTxHash(ctx, "0xtx1", s.chainClient.Chain())
	require.NoError(t, err)
	require.Equal(t, entity.BlockchainTransactionStatusTypeSuccess, journal.Status)
	require.True(t, journal.Reconciled)

	require.Empty(t, s.publisher.Published(common.DepletionTopic))
	s.chainClient.AssertExpectations(t)
}

func Test_awardDomain_Award_ByContextUntilExhausted(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	for i := 0; i < testutil.Batch1.Quantity; i++ {
		txHash := "0xtx" + strconv.Itoa(i)
		s.expectTransfer(txHash, true)

		resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
			ContextID: testutil.OpenContext.ID,
			Recipient: testutil.Recipient,
		})
		require.NoError(t, err)
		require.Equal(t, model.AwardStateCommitted, resp.State)
		require.Equal(t, testutil.Batch1.Quantity-i-1, resp.Remaining)
	}

	// The last award depleted the context.
	published := s.publisher.Published(common.DepletionTopic)
	require.Len(t, published, 1)

	var signal model.DepletionSignal
	require.NoError(t, json.Unmarshal(published[0].Msg, &signal))
	require.Equal(t, testutil.OpenContext.ID, signal.ContextID)
	require.Equal(t, testutil.Batch1.ID, signal.BatchID)

	// No chain call happens once the context is exhausted.
	resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		ContextID: testutil.OpenContext.ID,
		Recipient: testutil.Recipient,
	})
	require.NoError(t, err)
	require.Equal(t, model.AwardStateExhausted, resp.State)
	require.Nil(t, resp.Award)
	require.Len(t, s.publisher.Published(common.DepletionTopic), 2)

	batch, err := s.batchRepo.GetByID(ctx, testutil.Batch1.ID)
	require.NoError(t, err)
	require.Equal(t, batch.Quantity, batch.AwardedCount)
	s.chainClient.AssertExpectations(t)
}

func Test_awardDomain_Award_ExhaustedBatch(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.AwardedBatch.ID,
		Recipient: testutil.Recipient,
	})
	require.NoError(t, err)
	require.Equal(t, model.AwardStateExhausted, resp.State)

	// Unassigned batches do not signal depletion.
	require.Empty(t, s.publisher.Published(common.DepletionTopic))
	s.chainClient.AssertNotCalled(t, "SubmitTransfer", mock.Anything, mock.Anything)
}

func Test_awardDomain_Award_InvalidRequest(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	testCases := []struct {
		name   string
		caller model.CallerIdentity
		req    *model.AwardRequest
		code   errorx.Code
	}{
		{
			name:   "anonymous caller",
			caller: model.CallerIdentity{},
			req:    &model.AwardRequest{BatchID: testutil.Batch1.ID, Recipient: testutil.Recipient},
			code:   errorx.Unauthenticated,
		},
		{
			name:   "invalid recipient",
			caller: issuer1(),
			req:    &model.AwardRequest{BatchID: testutil.Batch1.ID, Recipient: "bob"},
			code:   errorx.BadRequest,
		},
		{
			name:   "no batch nor context",
			caller: issuer1(),
			req:    &model.AwardRequest{Recipient: testutil.Recipient},
			code:   errorx.BadRequest,
		},
		{
			name:   "batch of another issuer",
			caller: model.CallerIdentity{ID: testutil.Issuer2},
			req:    &model.AwardRequest{BatchID: testutil.Batch1.ID, Recipient: testutil.Recipient},
			code:   errorx.PermissionDenied,
		},
		{
			name:   "failed batch",
			caller: issuer1(),
			req:    &model.AwardRequest{BatchID: testutil.FailedBatch.ID, Recipient: testutil.Recipient},
			code:   errorx.BadRequest,
		},
		{
			name:   "closed context",
			caller: issuer1(),
			req:    &model.AwardRequest{ContextID: testutil.ClosedContext.ID, Recipient: testutil.Recipient},
			code:   errorx.ContextClosed,
		},
		{
			name:   "batch not in context",
			caller: issuer1(),
			req: &model.AwardRequest{
				BatchID:   testutil.Batch2.ID,
				ContextID: testutil.OpenContext.ID,
				Recipient: testutil.Recipient,
			},
			code: errorx.BadRequest,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.awardDomain.Award(ctx, tt.caller, tt.req)
			require.True(t, errorx.Is(err, tt.code), err)
		})
	}

	s.chainClient.AssertNotCalled(t, "SubmitTransfer", mock.Anything, mock.Anything)
}

func Test_awardDomain_Award_SubmitFailed(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()
	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).
		Return("", client.NewTransportError("", errors.New("connection refused"))).Once()

	_, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	// The token lock was released and nothing was committed.
	for _, token := range testutil.Batch2.Tokens {
		got, err := s.tokenRepo.GetByID(ctx, token.ID)
		require.NoError(t, err)
		require.Equal(t, entity.BadgeTokenAvailable, got.Status)
		require.False(t, got.ReservationID.Valid)
	}

	batch, err := s.batchRepo.GetByID(ctx, testutil.Batch2.ID)
	require.NoError(t, err)
	require.Equal(t, 0, batch.AwardedCount)
}

func Test_awardDomain_Award_Rejected(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()
	s.expectTransfer("0xreverted", false)

	_, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	token, err := s.tokenRepo.GetByID(ctx, testutil.Batch2.Tokens[0].ID)
	require.NoError(t, err)
	require.Equal(t, entity.BadgeTokenAvailable, token.Status)
	require.False(t, token.ReservationID.Valid)

	journal, err := s.blockchainTxRepo.GetByTxHash(ctx, "0xreverted", s.chainClient.Chain())
	require.NoError(t, err)
	require.Equal(t, entity.BlockchainTransactionStatusTypeFailure, journal.Status)
	require.False(t, journal.Reconciled)

	_, err = s.awardRepo.GetByTxHash(ctx, "0xreverted")
	require.Error(t, err)
}

func Test_awardDomain_Award_ReconcileFailed(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()
	s.expectTransfer("0xtx1", true)

	// A stale holding of the same object makes the holding insert fail after
	// the chain transfer succeeded.
	token := testutil.Batch2.Tokens[0]
	require.NoError(t, s.holdingRepo.Create(ctx, &entity.OwnershipHolding{
		Base:     entity.Base{ID: "stale"},
		ObjectID: token.ObjectID,
		OwnerID:  testutil.Buyer,
		AwardID:  "stale-award",
	}))

	_, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.True(t, errorx.Is(err, errorx.ReconcileFailed), err)

	var rerr *ReconcileError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ReconcileStepCreateHolding, rerr.Step)
	require.Equal(t, "0xtx1", rerr.TxHash)
	require.Equal(t, token.ID, rerr.TokenID)

	alerts := s.publisher.Published(common.ReconcileFailedTopic)
	require.Len(t, alerts, 1)
	require.Equal(t, []byte("0xtx1"), alerts[0].Key)

	// The whole commit was rolled back.
	got, err := s.tokenRepo.GetByID(ctx, token.ID)
	require.NoError(t, err)
	require.Equal(t, entity.BadgeTokenAvailable, got.Status)

	batch, err := s.batchRepo.GetByID(ctx, testutil.Batch2.ID)
	require.NoError(t, err)
	require.Equal(t, 0, batch.AwardedCount)

	journal, err := s.blockchainTxRepo.GetByTxHash(ctx, "0xtx1", s.chainClient.Chain())
	require.NoError(t, err)
	require.False(t, journal.Reconciled)
}

func Test_awardDomain_Reconcile(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	token := testutil.Batch1.Tokens[1]
	s.chainClient.On("VerifyTransfer", mock.Anything, "0xclient", awardTransfer(t, ctx, token.ObjectID)).
		Return(&client.TxReceipt{TxHash: "0xclient", Success: true}, nil).Once()

	req := &model.ReconcileAwardRequest{
		InventoryBatchID: testutil.Batch1.ID,
		Recipient:        testutil.Recipient,
		ContextID:        testutil.OpenContext.ID,
		TxHash:           "0xclient",
		ChainObjectID:    token.ObjectID,
	}

	resp, err := s.awardDomain.Reconcile(ctx, issuer1(), req)
	require.NoError(t, err)
	require.Equal(t, testutil.Batch1.Quantity-1, resp.Remaining)
	require.Equal(t, strconv.FormatInt(token.ID, 10), resp.Award.TokenID)

	// Replaying the same transaction returns the same award without asking the
	// chain again.
	again, err := s.awardDomain.Reconcile(ctx, issuer1(), req)
	require.NoError(t, err)
	require.Equal(t, resp.Award.ID, again.Award.ID)
	require.Equal(t, resp.Remaining, again.Remaining)

	s.chainClient.AssertNumberOfCalls(t, "VerifyTransfer", 1)

	// Another transaction can't award the same token.
	req.TxHash = "0xother"
	_, err = s.awardDomain.Reconcile(ctx, issuer1(), req)
	require.True(t, errorx.Is(err, errorx.Conflict))
}

func Test_awardDomain_Reconcile_NotTransferred(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	token := testutil.Batch2.Tokens[0]
	s.chainClient.On("VerifyTransfer", mock.Anything, "0xspoofed", awardTransfer(t, ctx, token.ObjectID)).
		Return(&client.TxReceipt{TxHash: "0xspoofed", Success: false}, nil).Once()

	_, err := s.awardDomain.Reconcile(ctx, issuer1(), &model.ReconcileAwardRequest{
		InventoryBatchID: testutil.Batch2.ID,
		Recipient:        testutil.Recipient,
		TxHash:           "0xspoofed",
		ChainObjectID:    token.ObjectID,
	})
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	_, err = s.awardRepo.GetByTxHash(ctx, "0xspoofed")
	require.Error(t, err)
}

func Test_awardDomain_Reconcile_TokenOfAnotherBatch(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	_, err := s.awardDomain.Reconcile(ctx, issuer1(), &model.ReconcileAwardRequest{
		InventoryBatchID: testutil.Batch2.ID,
		Recipient:        testutil.Recipient,
		TxHash:           "0xtx",
		ChainObjectID:    testutil.Batch1.Tokens[0].ObjectID,
	})
	require.True(t, errorx.Is(err, errorx.BadRequest))
	s.chainClient.AssertNotCalled(t, "VerifyTransfer", mock.Anything, mock.Anything, mock.Anything)
}

func Test_awardDomain_ReleaseReservation(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	reservation, err := s.awardDomain.ledger.ReserveAvailableToken(ctx, testutil.Batch2.ID)
	require.NoError(t, err)

	req := &model.ReleaseReservationRequest{
		TokenID:       strconv.FormatInt(reservation.Token.ID, 10),
		ReservationID: reservation.ReservationID,
	}

	_, err = s.awardDomain.ReleaseReservation(ctx, model.CallerIdentity{ID: testutil.Issuer2}, req)
	require.True(t, errorx.Is(err, errorx.PermissionDenied))

	_, err = s.awardDomain.ReleaseReservation(ctx, issuer1(), req)
	require.NoError(t, err)

	token, err := s.tokenRepo.GetByID(ctx, reservation.Token.ID)
	require.NoError(t, err)
	require.False(t, token.ReservationID.Valid)
}

func Test_awardDomain_ReconcilePending(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	// The transfer is broadcast but its finality is unknown.
	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).Return("0xpending", nil).Once()
	s.chainClient.On("WaitForFinality", mock.Anything, "0xpending").
		Return(nil, client.NewTransportError("0xpending", context.DeadlineExceeded)).Once()

	_, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
		Note:      "late",
	})
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	// The award still owns the transfer until its reservation expires.
	n, err := s.awardDomain.ReconcilePending(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, n)

	token := testutil.Batch2.Tokens[0]
	s.chainClient.On("VerifyTransfer", mock.Anything, "0xpending", awardTransfer(t, ctx, token.ObjectID)).
		Return(&client.TxReceipt{TxHash: "0xpending", Success: true}, nil).Once()

	time.Sleep(5 * time.Millisecond)
	ctx = testutil.WithAwardReservationTTL(ctx, time.Millisecond)
	n, err = s.awardDomain.ReconcilePending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	award, err := s.awardRepo.GetByTxHash(ctx, "0xpending")
	require.NoError(t, err)
	require.Equal(t, token.ID, award.TokenID)
	require.Equal(t, "late", award.Note)

	// Nothing is left to replay.
	n, err = s.awardDomain.ReconcilePending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	s.chainClient.AssertExpectations(t)
}

func Test_awardDomain_Award_CommittedByReconciler(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()
	token := testutil.Batch2.Tokens[0]

	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).Return("0xrace", nil).Once()
	s.chainClient.On("VerifyTransfer", mock.Anything, "0xrace", awardTransfer(t, ctx, token.ObjectID)).
		Return(&client.TxReceipt{TxHash: "0xrace", Success: true}, nil).Once()

	// While the award waits for finality, a reconciler with a short grace
	// period replays the journaled transfer and commits it first.
	s.chainClient.On("WaitForFinality", mock.Anything, "0xrace").
		Run(func(args mock.Arguments) {
			time.Sleep(5 * time.Millisecond)
			replayCtx := testutil.WithAwardReservationTTL(ctx, time.Millisecond)
			n, err := s.awardDomain.ReconcilePending(replayCtx, 10)
			require.NoError(t, err)
			require.Equal(t, 1, n)
		}).
		Return(&client.TxReceipt{TxHash: "0xrace", Success: true}, nil).Once()

	resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.NoError(t, err)
	require.Equal(t, model.AwardStateCommitted, resp.State)
	require.Equal(t, "0xrace", resp.Award.TxHash)
	require.Equal(t, testutil.Batch2.Quantity-1, resp.Remaining)

	// The award is recorded once and nobody is alerted.
	require.Empty(t, s.publisher.Published(common.ReconcileFailedTopic))

	batch, err := s.batchRepo.GetByID(ctx, testutil.Batch2.ID)
	require.NoError(t, err)
	require.Equal(t, 1, batch.AwardedCount)
	s.chainClient.AssertExpectations(t)
}

func Test_awardDomain_ReconcilePending_LeavesInFlightAward(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).Return("0xinflight", nil).Once()
	s.chainClient.On("WaitForFinality", mock.Anything, "0xinflight").
		Run(func(args mock.Arguments) {
			n, err := s.awardDomain.ReconcilePending(ctx, 10)
			require.NoError(t, err)
			require.Zero(t, n)
		}).
		Return(&client.TxReceipt{TxHash: "0xinflight", Success: true}, nil).Once()

	resp, err := s.awardDomain.Award(ctx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.NoError(t, err)
	require.Equal(t, model.AwardStateCommitted, resp.State)

	s.chainClient.AssertNotCalled(t, "VerifyTransfer", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, s.publisher.Published(common.ReconcileFailedTopic))
}

func Test_awardDomain_Award_CallerGaveUp(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	s := newAwardTestSuite()

	requestCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.chainClient.On("SubmitTransfer", mock.Anything, mock.Anything).Return("0xabandoned", nil).Once()
	s.chainClient.On("WaitForFinality", mock.Anything, "0xabandoned").
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, client.NewTransportError("0xabandoned", context.Canceled)).Once()

	_, err := s.awardDomain.Award(requestCtx, issuer1(), &model.AwardRequest{
		BatchID:   testutil.Batch2.ID,
		Recipient: testutil.Recipient,
	})
	require.True(t, errorx.Is(err, errorx.ChainFailed))

	// The lock is gone right away instead of after the reservation TTL.
	token, err := s.tokenRepo.GetByID(ctx, testutil.Batch2.Tokens[0].ID)
	require.NoError(t, err)
	require.Equal(t, entity.BadgeTokenAvailable, token.Status)
	require.False(t, token.ReservationID.Valid)
	require.False(t, token.ReservedUntil.Valid)
}
