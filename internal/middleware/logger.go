package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/router"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

func Logger() router.CloserFunc {
	return func(ctx context.Context, r *http.Request, err error) {
		info := fmt.Sprintf("%s | %s", r.Method, r.URL.Path)
		if err != nil {
			var errx errorx.Error
			if errors.As(err, &errx) {
				xcontext.Logger(ctx).Warnf("%s | %d | %s", info, errx.Code, errx.Message)
			} else {
				xcontext.Logger(ctx).Errorf("%s | %d | %v", info, -1, err)
			}
		} else {
			xcontext.Logger(ctx).Infof(info)
		}
	}
}
