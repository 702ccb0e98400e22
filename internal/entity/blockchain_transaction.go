package entity

import (
	"github.com/questx-lab/badgehub/pkg/enum"
)

type BlockchainTransactionStatusType string

var (
	BlockchainTransactionStatusTypeInProgress = enum.New(BlockchainTransactionStatusType("inprogress"))
	BlockchainTransactionStatusTypeSuccess    = enum.New(BlockchainTransactionStatusType("success"))
	BlockchainTransactionStatusTypeFailure    = enum.New(BlockchainTransactionStatusType("failure"))
)

type BlockchainTransactionKind string

var (
	BlockchainTransactionKindBatchPurchase = enum.New(BlockchainTransactionKind("batch_purchase"))
	BlockchainTransactionKindAwardTransfer = enum.New(BlockchainTransactionKind("award_transfer"))
	BlockchainTransactionKindResale        = enum.New(BlockchainTransactionKind("resale_transfer"))
)

// BlockchainTransaction journals every chain operation the service observed.
// For award transfers Payload keeps what is needed to replay the off-chain
// commit without resubmitting the transfer.
type BlockchainTransaction struct {
	Base

	Chain  string `gorm:"index:idx_blockchain_transaction_chain_txhash,unique;size:32"`
	TxHash string `gorm:"index:idx_blockchain_transaction_chain_txhash,unique;size:128"`

	Kind    BlockchainTransactionKind `gorm:"index;size:32"`
	Status  BlockchainTransactionStatusType
	Payload Map `gorm:"type:text"`

	// Reconciled is set once the off-chain commit of this transaction exists.
	Reconciled bool `gorm:"index"`
}
