package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/puzpuzpuz/xsync"
	"github.com/questx-lab/badgehub/config"
	"github.com/questx-lab/badgehub/contract/badge_contract"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type ethChainClient struct {
	cfg     config.BlockchainConfigs
	client  *ethclient.Client
	abi     abi.ABI
	chainID *big.Int

	// Transactions of the same sender are signed one at a time so that two
	// awards never pick the same account nonce.
	senderLocks *xsync.MapOf[string, *sync.Mutex]
}

func NewEthChainClient(ctx context.Context) (*ethChainClient, error) {
	cfg := xcontext.Configs(ctx).Blockchain

	parsed, err := badge_contract.BadgeContractMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, err
	}

	return &ethChainClient{
		cfg:         cfg,
		client:      client,
		abi:         *parsed,
		chainID:     big.NewInt(cfg.ChainID),
		senderLocks: xsync.NewMapOf[*sync.Mutex](),
	}, nil
}

func (c *ethChainClient) Chain() string {
	return c.cfg.Chain
}

func (c *ethChainClient) SubmitTransfer(ctx context.Context, req TransferRequest) (string, error) {
	contract, tokenID, err := ethutil.ParseObjectID(req.ObjectID)
	if err != nil {
		return "", NewRejectedError("", err)
	}

	if !common.IsHexAddress(req.Recipient) {
		return "", NewRejectedError("", fmt.Errorf("invalid recipient %s", req.Recipient))
	}

	senderKey, err := ethutil.GeneratePrivateKey([]byte(c.cfg.SecretKey), []byte(req.SenderNonce))
	if err != nil {
		return "", NewRejectedError("", err)
	}
	sender := crypto.PubkeyToAddress(senderKey.PublicKey)

	data, err := c.abi.Pack("safeTransferFrom", sender, common.HexToAddress(req.Recipient), tokenID)
	if err != nil {
		return "", NewRejectedError("", err)
	}

	lock, _ := c.senderLocks.LoadOrStore(sender.Hex(), &sync.Mutex{})
	lock.Lock()
	defer lock.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, sender)
	if err != nil {
		return "", NewTransportError("", err)
	}

	tx, err := c.buildTx(ctx, nonce, contract, data)
	if err != nil {
		return "", err
	}

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.chainID), senderKey)
	if err != nil {
		return "", NewRejectedError("", err)
	}

	txHash := signedTx.Hash().Hex()
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		// A node which already has the transaction in its pool answers with
		// "already known", the submission still counts.
		if !strings.Contains(err.Error(), "already known") {
			return "", NewTransportError(txHash, err)
		}
	}

	xcontext.Logger(ctx).Infof("Transfer of %s from %s to %s dispatched, tx = %s",
		req.ObjectID, sender.Hex(), req.Recipient, txHash)

	return txHash, nil
}

func (c *ethChainClient) buildTx(
	ctx context.Context, nonce uint64, to common.Address, data []byte,
) (*ethtypes.Transaction, error) {
	if c.cfg.UseEip1559 {
		tip, err := c.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, NewTransportError("", err)
		}

		head, err := c.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, NewTransportError("", err)
		}

		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       c.cfg.GasLimit,
			To:        &to,
			Data:      data,
		}), nil
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, NewTransportError("", err)
	}

	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.cfg.GasLimit,
		To:       &to,
		Data:     data,
	}), nil
}

func (c *ethChainClient) WaitForFinality(ctx context.Context, txHash string) (*TxReceipt, error) {
	receipt, err := c.waitFinalReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}

	return &TxReceipt{
		TxHash:      txHash,
		Success:     receipt.Status == ethtypes.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *ethChainClient) VerifyTransfer(
	ctx context.Context, txHash string, transfers ...Transfer,
) (*TxReceipt, error) {
	if len(transfers) == 0 {
		return nil, NewRejectedError(txHash, errors.New("no transfer to verify"))
	}

	expected := make([]transferLog, 0, len(transfers))
	for _, t := range transfers {
		log, err := newTransferLog(t)
		if err != nil {
			return nil, NewRejectedError(txHash, err)
		}

		expected = append(expected, log)
	}

	receipt, err := c.waitFinalReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}

	result := &TxReceipt{TxHash: txHash, BlockNumber: receipt.BlockNumber.Uint64()}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return result, nil
	}

	transferEvent := c.abi.Events["Transfer"].ID
	for _, want := range expected {
		if !want.foundIn(transferEvent, receipt.Logs) {
			xcontext.Logger(ctx).Debugf("Tx %s has no transfer of %s to %s", txHash, want.tokenID.Hex(), want.to.Hex())
			return result, nil
		}
	}

	result.Success = true
	return result, nil
}

type transferLog struct {
	contract common.Address
	from     *common.Hash
	to       common.Hash
	tokenID  common.Hash
}

func newTransferLog(t Transfer) (transferLog, error) {
	contract, tokenID, err := ethutil.ParseObjectID(t.ObjectID)
	if err != nil {
		return transferLog{}, err
	}

	if !common.IsHexAddress(t.To) {
		return transferLog{}, fmt.Errorf("invalid recipient %s", t.To)
	}

	log := transferLog{
		contract: contract,
		to:       common.HexToAddress(t.To).Hash(),
		tokenID:  common.BigToHash(tokenID),
	}

	if t.From != "" {
		if !common.IsHexAddress(t.From) {
			return transferLog{}, fmt.Errorf("invalid sender %s", t.From)
		}

		from := common.HexToAddress(t.From).Hash()
		log.from = &from
	}

	return log, nil
}

// foundIn reports whether logs contain an ERC-721 Transfer(from, to, tokenId)
// event matching l. All three arguments are indexed.
func (l transferLog) foundIn(event common.Hash, logs []*ethtypes.Log) bool {
	for _, log := range logs {
		if log.Address != l.contract || len(log.Topics) != 4 || log.Topics[0] != event {
			continue
		}

		if l.from != nil && log.Topics[1] != *l.from {
			continue
		}

		if log.Topics[2] == l.to && log.Topics[3] == l.tokenID {
			return true
		}
	}

	return false
}

// waitFinalReceipt polls the receipt until the transaction is mined and the
// configured number of blocks were built on top of it. The receipt is read
// again at the end to detect a reorganization.
func (c *ethChainClient) waitFinalReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
		case err != nil:
			return nil, NewTransportError(hash.Hex(), err)
		default:
			head, err := c.client.BlockNumber(ctx)
			if err != nil {
				return nil, NewTransportError(hash.Hex(), err)
			}

			if head >= receipt.BlockNumber.Uint64()+c.cfg.Confirmations {
				final, err := c.client.TransactionReceipt(ctx, hash)
				if err != nil && !errors.Is(err, ethereum.NotFound) {
					return nil, NewTransportError(hash.Hex(), err)
				}

				if err == nil && final.BlockHash == receipt.BlockHash {
					return final, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, NewTransportError(hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *ethChainClient) Close() {
	c.client.Close()
}
