package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

func wrapHandler[Request, Response any](
	router *Router,
	method string,
	handler HandlerFunc[Request, Response],
) gin.HandlerFunc {
	befores := router.befores
	closers := router.closers

	return func(c *gin.Context) {
		ctx := requestContext(router.rootCtx, c.Request)

		resp, err := func() (*Response, error) {
			var err error
			for _, before := range befores {
				ctx, err = before(ctx, c.Request)
				if err != nil {
					return nil, err
				}
			}

			var req Request
			switch method {
			case http.MethodGet:
				err = c.ShouldBindQuery(&req)
			case http.MethodPost:
				err = c.ShouldBindJSON(&req)
			default:
				err = errorx.New(errorx.NotImplemented, "Unsupported method %s", method)
			}
			if err != nil {
				xcontext.Logger(ctx).Debugf("Cannot bind request: %v", err)
				return nil, errorx.New(errorx.BadRequest, "Invalid request: %v", err)
			}

			return handler(ctx, &req)
		}()

		for _, closer := range closers {
			closer(ctx, c.Request, err)
		}

		if err != nil {
			c.JSON(http.StatusOK, newErrorResponse(ctx, err))
			return
		}

		c.JSON(http.StatusOK, newResponse(resp))
	}
}
