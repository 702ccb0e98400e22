package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/questx-lab/badgehub/pkg/errorx"
)

// CallerIdentity is the wallet account on whose behalf an operation runs.
type CallerIdentity struct {
	ID string
}

// ParseIdentity accepts a hex wallet address and returns it in checksum form,
// so the same account always maps to the same identity.
func ParseIdentity(s string) (CallerIdentity, error) {
	if !common.IsHexAddress(s) {
		return CallerIdentity{}, errorx.New(errorx.BadRequest, "Invalid identity %q", s)
	}

	return CallerIdentity{ID: common.HexToAddress(s).Hex()}, nil
}

func (c CallerIdentity) IsZero() bool {
	return c.ID == ""
}

func (c CallerIdentity) Address() common.Address {
	return common.HexToAddress(c.ID)
}
