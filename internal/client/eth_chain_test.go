package client

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/questx-lab/badgehub/contract/badge_contract"
	"github.com/questx-lab/badgehub/pkg/ethutil"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testCustody  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testSeller   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testBuyer    = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func transferEventID(t *testing.T) common.Hash {
	parsed, err := badge_contract.BadgeContractMetaData.GetAbi()
	require.NoError(t, err)
	return parsed.Events["Transfer"].ID
}

func transferEvent(event common.Hash, from, to common.Address, tokenID int64) *ethtypes.Log {
	return &ethtypes.Log{
		Address: testContract,
		Topics: []common.Hash{
			event,
			from.Hash(),
			to.Hash(),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func Test_transferLog_foundIn(t *testing.T) {
	event := transferEventID(t)
	objectID := ethutil.FormatObjectID(testContract, big.NewInt(7))
	logs := []*ethtypes.Log{transferEvent(event, testSeller, testBuyer, 7)}

	tests := []struct {
		name     string
		transfer Transfer
		want     bool
	}{
		{
			name:     "matching sender and recipient",
			transfer: Transfer{ObjectID: objectID, From: testSeller.Hex(), To: testBuyer.Hex()},
			want:     true,
		},
		{
			name:     "any sender",
			transfer: Transfer{ObjectID: objectID, To: testBuyer.Hex()},
			want:     true,
		},
		{
			name:     "another sender",
			transfer: Transfer{ObjectID: objectID, From: testCustody.Hex(), To: testBuyer.Hex()},
			want:     false,
		},
		{
			name:     "another recipient",
			transfer: Transfer{ObjectID: objectID, From: testSeller.Hex(), To: testCustody.Hex()},
			want:     false,
		},
		{
			name: "another token",
			transfer: Transfer{
				ObjectID: ethutil.FormatObjectID(testContract, big.NewInt(8)),
				To:       testBuyer.Hex(),
			},
			want: false,
		},
		{
			name: "another contract",
			transfer: Transfer{
				ObjectID: ethutil.FormatObjectID(testCustody, big.NewInt(7)),
				To:       testBuyer.Hex(),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := newTransferLog(tt.transfer)
			require.NoError(t, err)
			require.Equal(t, tt.want, log.foundIn(event, logs))
		})
	}
}

func Test_newTransferLog_Invalid(t *testing.T) {
	objectID := ethutil.FormatObjectID(testContract, big.NewInt(7))

	_, err := newTransferLog(Transfer{ObjectID: "not-an-object", To: testBuyer.Hex()})
	require.Error(t, err)

	_, err = newTransferLog(Transfer{ObjectID: objectID, To: "bob"})
	require.Error(t, err)

	_, err = newTransferLog(Transfer{ObjectID: objectID, From: "alice", To: testBuyer.Hex()})
	require.Error(t, err)
}
