package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/router"
)

type startTimeKey struct{}

func WithStartTime() router.MiddlewareFunc {
	return func(ctx context.Context, r *http.Request) (context.Context, error) {
		return context.WithValue(ctx, startTimeKey{}, time.Now()), nil
	}
}

func Prometheus() router.CloserFunc {
	return func(ctx context.Context, r *http.Request, err error) {
		code := 0
		if err != nil {
			var errx errorx.Error
			if errors.As(err, &errx) {
				code = int(errx.Code)
			} else {
				code = -1
			}
		}
		path := r.URL.Path

		common.PromCounters[common.HTTPRequestTotal].WithLabelValues(path, fmt.Sprint(code)).Inc()

		if startTime, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
			common.PromHistograms[common.HTTPRequestDurationSeconds].
				WithLabelValues(path).
				Observe(time.Since(startTime).Seconds())
		}
	}
}
