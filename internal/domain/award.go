package domain

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/questx-lab/badgehub/pkg/pubsub"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"gorm.io/gorm"
)

type AwardDomain interface {
	Award(context.Context, model.CallerIdentity, *model.AwardRequest) (*model.AwardResponse, error)
	Reconcile(context.Context, model.CallerIdentity, *model.ReconcileAwardRequest) (*model.ReconcileAwardResponse, error)
	ReleaseReservation(context.Context, model.CallerIdentity, *model.ReleaseReservationRequest) (*model.ReleaseReservationResponse, error)
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

type awardDomain struct {
	batchRepo         repository.InventoryBatchRepository
	tokenRepo         repository.BadgeTokenRepository
	awardRepo         repository.AwardRepository
	holdingRepo       repository.OwnershipHoldingRepository
	awardContextRepo  repository.AwardContextRepository
	blockchainTxRepo  repository.BlockChainTransactionRepository
	ledger            TokenLedger
	chainClient       client.ChainClient
	depletionNotifier DepletionNotifier
	alertPublisher    pubsub.Publisher
}

func NewAwardDomain(
	batchRepo repository.InventoryBatchRepository,
	tokenRepo repository.BadgeTokenRepository,
	awardRepo repository.AwardRepository,
	holdingRepo repository.OwnershipHoldingRepository,
	awardContextRepo repository.AwardContextRepository,
	blockchainTxRepo repository.BlockChainTransactionRepository,
	ledger TokenLedger,
	chainClient client.ChainClient,
	depletionNotifier DepletionNotifier,
	alertPublisher pubsub.Publisher,
) *awardDomain {
	return &awardDomain{
		batchRepo:         batchRepo,
		tokenRepo:         tokenRepo,
		awardRepo:         awardRepo,
		holdingRepo:       holdingRepo,
		awardContextRepo:  awardContextRepo,
		blockchainTxRepo:  blockchainTxRepo,
		ledger:            ledger,
		chainClient:       chainClient,
		depletionNotifier: depletionNotifier,
		alertPublisher:    alertPublisher,
	}
}

// commitInput is everything needed to record an award whose chain transfer
// already succeeded. It is also the payload journaled with the transfer so a
// failed commit can be replayed.
type commitInput struct {
	BatchID     string `json:"batch_id"`
	TokenID     int64  `json:"token_id,string"`
	ObjectID    string `json:"object_id"`
	IssuerID    string `json:"issuer_id"`
	RecipientID string `json:"recipient_id"`
	ContextID   string `json:"context_id"`
	Note        string `json:"note"`
	TxHash      string `json:"tx_hash"`
}

func (d *awardDomain) Award(
	ctx context.Context, caller model.CallerIdentity, req *model.AwardRequest,
) (*model.AwardResponse, error) {
	if caller.IsZero() {
		return nil, errorx.New(errorx.Unauthenticated, "Require an issuer identity")
	}

	recipient, err := model.ParseIdentity(req.Recipient)
	if err != nil {
		return nil, err
	}

	batch, contextID, err := d.resolveBatch(ctx, caller, req.BatchID, req.ContextID)
	if err != nil {
		return nil, err
	}

	counter := common.PromCounters[common.AwardAttemptTotal]
	if batch == nil {
		counter.WithLabelValues(model.AwardStateExhausted).Inc()
		d.notifyDepletion(ctx, contextID, "", caller.ID)
		return &model.AwardResponse{State: model.AwardStateExhausted}, nil
	}

	reservation, err := d.ledger.ReserveAvailableToken(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	if reservation.Exhausted {
		xcontext.Logger(ctx).Infof("Batch %s is exhausted", batch.ID)
		counter.WithLabelValues(model.AwardStateExhausted).Inc()
		if contextID != "" {
			d.notifyDepletion(ctx, contextID, batch.ID, caller.ID)
		}

		return &model.AwardResponse{State: model.AwardStateExhausted}, nil
	}

	token := reservation.Token
	release := func() {
		// The caller may have given up on the request, the lock must go anyway.
		releaseCtx := context.WithoutCancel(ctx)
		if err := d.ledger.ReleaseReservation(releaseCtx, token.ID, reservation.ReservationID); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot release reservation of token %d: %v", token.ID, err)
		}
	}

	txHash, err := d.chainClient.SubmitTransfer(ctx, client.TransferRequest{
		SenderNonce: batch.IssuerID,
		ObjectID:    token.ObjectID,
		Recipient:   recipient.ID,
	})
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot submit transfer of token %d: %v", token.ID, err)
		release()
		counter.WithLabelValues("chain_failed").Inc()
		return nil, chainFailed(err)
	}

	input := commitInput{
		BatchID:     batch.ID,
		TokenID:     token.ID,
		ObjectID:    token.ObjectID,
		IssuerID:    batch.IssuerID,
		RecipientID: recipient.ID,
		ContextID:   contextID,
		Note:        req.Note,
		TxHash:      txHash,
	}

	// The journal lets the reconcile command finish this award if the
	// process dies before the commit.
	d.journalTransfer(ctx, input, entity.BlockchainTransactionStatusTypeInProgress)

	receipt, err := d.chainClient.WaitForFinality(ctx, txHash)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot confirm transfer %s of token %d: %v", txHash, token.ID, err)
		release()
		counter.WithLabelValues("chain_failed").Inc()
		return nil, chainFailed(err)
	}

	if !receipt.Success {
		xcontext.Logger(ctx).Warnf("Transfer %s of token %d was rejected on-chain", txHash, token.ID)
		d.updateJournal(ctx, txHash, entity.BlockchainTransactionStatusTypeFailure)
		release()
		counter.WithLabelValues("chain_failed").Inc()
		return nil, chainFailed(client.NewRejectedError(txHash, errors.New("transaction reverted")))
	}

	d.updateJournal(ctx, txHash, entity.BlockchainTransactionStatusTypeSuccess)

	award, remaining, err := d.commit(ctx, input)
	if err != nil {
		// The reconciler may have replayed this transfer from the journal.
		if resp, _ := d.existingAward(ctx, txHash, batch.ID); resp != nil {
			xcontext.Logger(ctx).Infof("Award of tx %s was already committed by the reconciler", txHash)
			counter.WithLabelValues(model.AwardStateCommitted).Inc()
			return &model.AwardResponse{
				State:     model.AwardStateCommitted,
				Award:     &resp.Award,
				Remaining: resp.Remaining,
			}, nil
		}

		counter.WithLabelValues("reconcile_failed").Inc()
		return nil, d.reportReconcileFailure(ctx, err)
	}

	counter.WithLabelValues(model.AwardStateCommitted).Inc()
	if remaining == 0 && contextID != "" {
		d.notifyDepletion(ctx, contextID, batch.ID, caller.ID)
	}

	clientAward := model.ConvertAward(award)
	return &model.AwardResponse{
		State:     model.AwardStateCommitted,
		Award:     &clientAward,
		Remaining: remaining,
	}, nil
}

// resolveBatch returns the batch to award from. A nil batch without error
// means the context has no batch with available tokens.
func (d *awardDomain) resolveBatch(
	ctx context.Context, caller model.CallerIdentity, batchID, contextID string,
) (*entity.InventoryBatch, string, error) {
	if batchID == "" && contextID == "" {
		return nil, "", errorx.New(errorx.BadRequest, "Require batch id or context id")
	}

	if batchID == "" {
		awardContext, err := getOpenContext(ctx, d.awardContextRepo, contextID)
		if err != nil {
			return nil, "", err
		}

		if awardContext.IssuerID != caller.ID {
			return nil, "", errorx.New(errorx.PermissionDenied, "Context belongs to another issuer")
		}

		batches, err := d.batchRepo.GetAvailableByContext(ctx, contextID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get batches of context: %v", err)
			return nil, "", errorx.Unknown
		}

		if len(batches) == 0 {
			return nil, contextID, nil
		}

		return &batches[0], contextID, nil
	}

	batch, err := getOwnedBatch(ctx, d.batchRepo, caller, batchID)
	if err != nil {
		return nil, "", err
	}

	if batch.Status != entity.InventoryBatchConfirmed {
		return nil, "", errorx.New(errorx.BadRequest, "Batch is not confirmed on-chain")
	}

	if contextID != "" && batch.ContextID.String != contextID {
		return nil, "", errorx.New(errorx.BadRequest, "Batch is not assigned to context %s", contextID)
	}

	if batch.ContextID.Valid {
		if _, err := getOpenContext(ctx, d.awardContextRepo, batch.ContextID.String); err != nil {
			return nil, "", err
		}
	}

	return batch, batch.ContextID.String, nil
}

func (d *awardDomain) Reconcile(
	ctx context.Context, caller model.CallerIdentity, req *model.ReconcileAwardRequest,
) (*model.ReconcileAwardResponse, error) {
	if caller.IsZero() {
		return nil, errorx.New(errorx.Unauthenticated, "Require an issuer identity")
	}

	if req.InventoryBatchID == "" || req.TxHash == "" || req.ChainObjectID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require batch id, tx hash and chain object id")
	}

	recipient, err := model.ParseIdentity(req.Recipient)
	if err != nil {
		return nil, err
	}

	contract, tokenID, err := ethutil.ParseObjectID(req.ChainObjectID)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid chain object id")
	}
	objectID := ethutil.FormatObjectID(contract, tokenID)

	if resp, err := d.existingAward(ctx, req.TxHash, req.InventoryBatchID); resp != nil || err != nil {
		return resp, err
	}

	batch, err := getOwnedBatch(ctx, d.batchRepo, caller, req.InventoryBatchID)
	if err != nil {
		return nil, err
	}

	if batch.Status != entity.InventoryBatchConfirmed {
		return nil, errorx.New(errorx.BadRequest, "Batch is not confirmed on-chain")
	}

	contextID := batch.ContextID.String
	if req.ContextID != "" && req.ContextID != contextID {
		return nil, errorx.New(errorx.BadRequest, "Batch is not assigned to context %s", req.ContextID)
	}

	if contextID != "" {
		if _, err := getOpenContext(ctx, d.awardContextRepo, contextID); err != nil {
			return nil, err
		}
	}

	token, err := d.tokenRepo.GetByObjectID(ctx, objectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found token %s", objectID)
		}

		xcontext.Logger(ctx).Errorf("Cannot get token: %v", err)
		return nil, errorx.Unknown
	}

	if token.BatchID != batch.ID {
		return nil, errorx.New(errorx.BadRequest, "Token doesn't belong to batch %s", batch.ID)
	}

	if token.Status == entity.BadgeTokenAwarded {
		return nil, errorx.New(errorx.Conflict, "Token was already awarded by another transaction")
	}

	custody, err := custodyWallet(ctx, batch.IssuerID)
	if err != nil {
		return nil, err
	}

	// Never trust the client about the transfer, ask the chain.
	receipt, err := d.chainClient.VerifyTransfer(ctx, req.TxHash, client.Transfer{
		ObjectID: objectID,
		From:     custody,
		To:       recipient.ID,
	})
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot verify transfer %s: %v", req.TxHash, err)
		return nil, chainFailed(err)
	}

	if !receipt.Success {
		return nil, chainFailed(client.NewRejectedError(req.TxHash,
			errors.New("transaction did not transfer the token from custody to the recipient")))
	}

	input := commitInput{
		BatchID:     batch.ID,
		TokenID:     token.ID,
		ObjectID:    objectID,
		IssuerID:    batch.IssuerID,
		RecipientID: recipient.ID,
		ContextID:   contextID,
		Note:        req.Note,
		TxHash:      req.TxHash,
	}
	d.journalTransfer(ctx, input, entity.BlockchainTransactionStatusTypeSuccess)

	award, remaining, err := d.commit(ctx, input)
	if err != nil {
		// A concurrent reconcile of the same transaction may have won.
		if resp, _ := d.existingAward(ctx, req.TxHash, batch.ID); resp != nil {
			return resp, nil
		}

		return nil, d.reportReconcileFailure(ctx, err)
	}

	if remaining == 0 && contextID != "" {
		d.notifyDepletion(ctx, contextID, batch.ID, batch.IssuerID)
	}

	return &model.ReconcileAwardResponse{
		Award:     model.ConvertAward(award),
		Remaining: remaining,
	}, nil
}

// existingAward returns the award already committed for the transaction, if
// any, which makes the reconcile API idempotent.
func (d *awardDomain) existingAward(
	ctx context.Context, txHash, batchID string,
) (*model.ReconcileAwardResponse, error) {
	award, err := d.awardRepo.GetByTxHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		xcontext.Logger(ctx).Errorf("Cannot get award by tx hash: %v", err)
		return nil, errorx.Unknown
	}

	if award.BatchID != batchID {
		return nil, errorx.New(errorx.Conflict, "Transaction was recorded for another batch")
	}

	remaining, err := d.ledger.Remaining(ctx, batchID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get remaining of batch: %v", err)
		return nil, errorx.Unknown
	}

	return &model.ReconcileAwardResponse{Award: model.ConvertAward(award), Remaining: remaining}, nil
}

// commit records the award of one token in one transaction: token status,
// awarded_count, award record and ownership holding.
func (d *awardDomain) commit(ctx context.Context, in commitInput) (*entity.Award, int, error) {
	fail := func(step string, err error) (*entity.Award, int, error) {
		return nil, 0, &ReconcileError{
			TxHash:  in.TxHash,
			Step:    step,
			BatchID: in.BatchID,
			TokenID: in.TokenID,
			Err:     err,
		}
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	now := time.Now()
	err := d.ledger.CommitAward(ctx, CommitAwardParams{
		BatchID:     in.BatchID,
		TokenID:     in.TokenID,
		RecipientID: in.RecipientID,
		TxHash:      in.TxHash,
		AwardedAt:   now,
	})
	if err != nil {
		return fail(ReconcileStepCommitToken, err)
	}

	award := &entity.Award{
		Base:        entity.Base{ID: uuid.NewString()},
		RecipientID: in.RecipientID,
		IssuerID:    in.IssuerID,
		BatchID:     in.BatchID,
		TokenID:     in.TokenID,
		TxHash:      in.TxHash,
		Note:        in.Note,
	}
	if in.ContextID != "" {
		award.ContextID = sql.NullString{Valid: true, String: in.ContextID}
	}

	if err := d.awardRepo.Create(ctx, award); err != nil {
		return fail(ReconcileStepCreateAward, err)
	}

	err = d.holdingRepo.Create(ctx, &entity.OwnershipHolding{
		Base:       entity.Base{ID: uuid.NewString()},
		ObjectID:   in.ObjectID,
		OwnerID:    in.RecipientID,
		AcquiredAt: now,
		AwardID:    award.ID,
	})
	if err != nil {
		return fail(ReconcileStepCreateHolding, err)
	}

	if err := d.blockchainTxRepo.MarkReconciled(ctx, in.TxHash, d.chainClient.Chain()); err != nil {
		return fail(ReconcileStepJournal, err)
	}

	remaining, err := d.ledger.Remaining(ctx, in.BatchID)
	if err != nil {
		return fail(ReconcileStepCommit, err)
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		return fail(ReconcileStepCommit, err)
	}

	return award, remaining, nil
}

// reportReconcileFailure makes a failed off-chain commit loud: a dedicated log
// prefix, a metric and an alert message.
func (d *awardDomain) reportReconcileFailure(ctx context.Context, err error) error {
	var rerr *ReconcileError
	if !errors.As(err, &rerr) {
		xcontext.Logger(ctx).Errorf("Unexpected award commit error: %v", err)
		return errorx.Unknown
	}

	xcontext.Logger(ctx).Errorf("RECONCILE_FAILED tx=%s step=%s batch=%s token=%d: %v",
		rerr.TxHash, rerr.Step, rerr.BatchID, rerr.TokenID, rerr.Err)
	common.PromCounters[common.ReconcileFailureTotal].WithLabelValues(rerr.Step).Inc()

	if d.alertPublisher != nil {
		alert := rerr.Details()
		alert["error"] = rerr.Err.Error()
		err := pubsub.PublishJSON(ctx, d.alertPublisher, common.ReconcileFailedTopic, rerr.TxHash, alert)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot publish reconcile failure of tx %s: %v", rerr.TxHash, err)
		}
	}

	return rerr
}

func (d *awardDomain) ReleaseReservation(
	ctx context.Context, caller model.CallerIdentity, req *model.ReleaseReservationRequest,
) (*model.ReleaseReservationResponse, error) {
	tokenID, err := strconv.ParseInt(req.TokenID, 10, 64)
	if err != nil || req.ReservationID == "" {
		return nil, errorx.New(errorx.BadRequest, "Invalid token id or reservation id")
	}

	token, err := d.tokenRepo.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found token")
		}

		xcontext.Logger(ctx).Errorf("Cannot get token: %v", err)
		return nil, errorx.Unknown
	}

	if _, err := getOwnedBatch(ctx, d.batchRepo, caller, token.BatchID); err != nil {
		return nil, err
	}

	if err := d.ledger.ReleaseReservation(ctx, token.ID, req.ReservationID); err != nil {
		return nil, err
	}

	return &model.ReleaseReservationResponse{}, nil
}

// ReconcilePending replays journaled award transfers which never reached the
// off-chain commit. Transfers younger than the award reservation TTL are left
// to the award still waiting for them. It returns the number of awards
// committed.
func (d *awardDomain) ReconcilePending(ctx context.Context, limit int) (int, error) {
	journaledBefore := time.Now().Add(-xcontext.Configs(ctx).Award.ReservationTTL)
	pending, err := d.blockchainTxRepo.GetUnreconciled(
		ctx, entity.BlockchainTransactionKindAwardTransfer, journaledBefore, limit)
	if err != nil {
		return 0, err
	}

	committed := 0
	for _, tx := range pending {
		input, err := decodeCommitInput(tx.Payload)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Invalid journal payload of tx %s: %v", tx.TxHash, err)
			continue
		}

		if _, err := d.awardRepo.GetByTxHash(ctx, tx.TxHash); err == nil {
			if err := d.blockchainTxRepo.MarkReconciled(ctx, tx.TxHash, tx.Chain); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot mark tx %s reconciled: %v", tx.TxHash, err)
			}
			continue
		}

		custody, err := custodyWallet(ctx, input.IssuerID)
		if err != nil {
			continue
		}

		receipt, err := d.chainClient.VerifyTransfer(ctx, tx.TxHash, client.Transfer{
			ObjectID: input.ObjectID,
			From:     custody,
			To:       input.RecipientID,
		})
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot verify journaled tx %s: %v", tx.TxHash, err)
			continue
		}

		if !receipt.Success {
			d.updateJournal(ctx, tx.TxHash, entity.BlockchainTransactionStatusTypeFailure)
			continue
		}

		d.updateJournal(ctx, tx.TxHash, entity.BlockchainTransactionStatusTypeSuccess)
		if _, _, err := d.commit(ctx, input); err != nil {
			if _, getErr := d.awardRepo.GetByTxHash(ctx, tx.TxHash); getErr == nil {
				continue
			}

			_ = d.reportReconcileFailure(ctx, err)
			continue
		}

		xcontext.Logger(ctx).Infof("Reconciled award of token %d with tx %s", input.TokenID, tx.TxHash)
		committed++
	}

	return committed, nil
}

func (d *awardDomain) journalTransfer(
	ctx context.Context, in commitInput, status entity.BlockchainTransactionStatusType,
) {
	b, err := json.Marshal(in)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal journal payload: %v", err)
		return
	}

	payload := entity.Map{}
	if err := json.Unmarshal(b, &payload); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot build journal payload: %v", err)
		return
	}

	err = d.blockchainTxRepo.CreateTransaction(ctx, &entity.BlockchainTransaction{
		Base:    entity.Base{ID: uuid.NewString()},
		Chain:   d.chainClient.Chain(),
		TxHash:  in.TxHash,
		Kind:    entity.BlockchainTransactionKindAwardTransfer,
		Status:  status,
		Payload: payload,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot journal transfer %s: %v", in.TxHash, err)
	}
}

func (d *awardDomain) updateJournal(
	ctx context.Context, txHash string, status entity.BlockchainTransactionStatusType,
) {
	err := d.blockchainTxRepo.UpdateByTxHash(ctx, txHash, d.chainClient.Chain(),
		&entity.BlockchainTransaction{Status: status})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot update journal of tx %s: %v", txHash, err)
	}
}

func (d *awardDomain) notifyDepletion(ctx context.Context, contextID, batchID, issuerID string) {
	if contextID == "" || d.depletionNotifier == nil {
		return
	}

	err := d.depletionNotifier.NotifyDepletion(ctx, model.DepletionSignal{
		ContextID: contextID,
		BatchID:   batchID,
		IssuerID:  issuerID,
		At:        time.Now(),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot notify depletion of context %s: %v", contextID, err)
	}
}

func decodeCommitInput(payload entity.Map) (commitInput, error) {
	input := commitInput{}
	b, err := json.Marshal(payload)
	if err != nil {
		return input, err
	}

	if err := json.Unmarshal(b, &input); err != nil {
		return input, err
	}

	if input.TxHash == "" || input.BatchID == "" || input.TokenID == 0 {
		return input, errors.New("incomplete payload")
	}

	return input, nil
}
