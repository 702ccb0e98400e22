package mocks

import (
	"context"

	"github.com/questx-lab/badgehub/internal/client"
	"github.com/stretchr/testify/mock"
)

type ChainClient struct {
	mock.Mock
}

func (c *ChainClient) Chain() string {
	return "test-chain"
}

func (c *ChainClient) SubmitTransfer(arg1 context.Context, arg2 client.TransferRequest) (string, error) {
	args := c.Called(arg1, arg2)

	return args.String(0), args.Error(1)
}

func (c *ChainClient) WaitForFinality(arg1 context.Context, arg2 string) (*client.TxReceipt, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.TxReceipt), args.Error(1)
}

func (c *ChainClient) VerifyTransfer(arg1 context.Context, arg2 string, arg3 ...client.Transfer) (*client.TxReceipt, error) {
	args := c.Called(arg1, arg2, arg3)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.TxReceipt), args.Error(1)
}
