package client

import (
	"context"
	"fmt"
)

type ChainErrorKind string

const (
	// ChainErrorTransport means the chain could not be reached or did not
	// answer. The transaction may or may not have been executed.
	ChainErrorTransport ChainErrorKind = "transport"

	// ChainErrorRejected means the chain answered and refused or reverted the
	// transaction.
	ChainErrorRejected ChainErrorKind = "rejected"
)

type ChainError struct {
	Kind   ChainErrorKind
	TxHash string
	Err    error
}

func (e *ChainError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("chain %s error on tx %s: %v", e.Kind, e.TxHash, e.Err)
	}

	return fmt.Sprintf("chain %s error: %v", e.Kind, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

func NewTransportError(txHash string, err error) *ChainError {
	return &ChainError{Kind: ChainErrorTransport, TxHash: txHash, Err: err}
}

func NewRejectedError(txHash string, err error) *ChainError {
	return &ChainError{Kind: ChainErrorRejected, TxHash: txHash, Err: err}
}

type TransferRequest struct {
	// SenderNonce selects the custodial wallet which currently holds the
	// token.
	SenderNonce string
	ObjectID    string
	Recipient   string
}

// Transfer is one token movement expected in a transaction. An empty From
// matches any sender.
type Transfer struct {
	ObjectID string
	From     string
	To       string
}

type TxReceipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
}

// ChainClient executes and verifies token transfers. Every method may block
// until the transaction reaches finality.
type ChainClient interface {
	Chain() string

	// SubmitTransfer signs and broadcasts a token transfer and returns its
	// transaction hash without waiting for it to be mined.
	SubmitTransfer(ctx context.Context, req TransferRequest) (string, error)

	// WaitForFinality blocks until the transaction is final. A reverted
	// transaction is reported through TxReceipt.Success, not an error.
	WaitForFinality(ctx context.Context, txHash string) (*TxReceipt, error)

	// VerifyTransfer waits for the transaction to be final and reports success
	// only if it emitted every expected transfer.
	VerifyTransfer(ctx context.Context, txHash string, transfers ...Transfer) (*TxReceipt, error)
}
