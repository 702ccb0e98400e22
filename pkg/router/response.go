package router

import (
	"context"
	"errors"

	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

// detailer is implemented by errors which carry data an operator or a client
// needs to act on the failure, such as the chain transaction of a failed
// reconciliation.
type detailer interface {
	Details() map[string]any
}

type response struct {
	Code    errorx.Code    `json:"code"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Data    any            `json:"data,omitempty"`
}

func newResponse(data any) response {
	return response{Data: data}
}

func newErrorResponse(ctx context.Context, err error) response {
	var errx errorx.Error
	if !errors.As(err, &errx) {
		xcontext.Logger(ctx).Errorf("Unexpected error returned to client: %v", err)
		errx = errorx.Unknown
	}

	resp := response{Code: errx.Code, Error: errx.Message}

	var d detailer
	if errors.As(err, &d) {
		resp.Details = d.Details()
	}

	return resp
}
