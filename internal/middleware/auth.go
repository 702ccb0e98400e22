package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/jwt"
	"github.com/questx-lab/badgehub/pkg/router"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

// Authenticate verifies the bearer access token and puts the wallet address of
// its subject into the request context.
func Authenticate(engine *jwt.Engine[model.AccessToken]) router.MiddlewareFunc {
	return func(ctx context.Context, r *http.Request) (context.Context, error) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
		}

		sub, _, err := engine.Verify(token)
		if err != nil {
			xcontext.Logger(ctx).Debugf("Cannot verify access token: %v", err)
			return nil, errorx.New(errorx.Unauthenticated, "Invalid access token")
		}

		identity, err := model.ParseIdentity(sub)
		if err != nil {
			return nil, errorx.New(errorx.Unauthenticated, "Invalid access token subject")
		}

		return xcontext.WithRequestUserID(ctx, identity.ID), nil
	}
}
