package ethutil

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// GeneratePrivateKey derives a deterministic custodial key from the server
// secret and a per-wallet nonce.
func GeneratePrivateKey(secret, nonce []byte) (*ecdsa.PrivateKey, error) {
	seed := sha256.Sum256(append(append([]byte{}, secret...), nonce...))
	return ethcrypto.ToECDSA(seed[:])
}

func GeneratePublicKey(secret, nonce []byte) (common.Address, error) {
	walletPrivateKey, err := GeneratePrivateKey(secret, nonce)
	if err != nil {
		return common.Address{}, err
	}

	return ethcrypto.PubkeyToAddress(walletPrivateKey.PublicKey), nil
}

// ParseObjectID splits a chain object identifier of the form
// "<contract address>:<token id>".
func ParseObjectID(objectID string) (common.Address, *big.Int, error) {
	contract, id, found := strings.Cut(objectID, ":")
	if !found || !common.IsHexAddress(contract) {
		return common.Address{}, nil, fmt.Errorf("invalid object id %q", objectID)
	}

	tokenID, ok := new(big.Int).SetString(id, 10)
	if !ok || tokenID.Sign() < 0 {
		return common.Address{}, nil, fmt.Errorf("invalid token id in object id %q", objectID)
	}

	return common.HexToAddress(contract), tokenID, nil
}

func FormatObjectID(contract common.Address, tokenID *big.Int) string {
	return fmt.Sprintf("%s:%s", contract.Hex(), tokenID.String())
}
