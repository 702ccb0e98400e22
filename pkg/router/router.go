package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type HandlerFunc[Request, Response any] func(ctx context.Context, req *Request) (*Response, error)

// MiddlewareFunc runs before the handler. It may return a derived context which
// is passed to the next middleware and the handler.
type MiddlewareFunc func(ctx context.Context, r *http.Request) (context.Context, error)

// CloserFunc runs after the handler with its outcome.
type CloserFunc func(ctx context.Context, r *http.Request, err error)

type Router struct {
	inner   gin.IRouter
	rootCtx context.Context
	befores []MiddlewareFunc
	closers []CloserFunc
}

func New(ctx context.Context) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{inner: engine, rootCtx: ctx}
}

// Branch returns a sub router which inherits middlewares of the current one.
// Middlewares added to the branch don't affect its parent.
func (r *Router) Branch() *Router {
	return &Router{
		inner:   r.inner,
		rootCtx: r.rootCtx,
		befores: append([]MiddlewareFunc{}, r.befores...),
		closers: append([]CloserFunc{}, r.closers...),
	}
}

func (r *Router) Before(m MiddlewareFunc) {
	r.befores = append(r.befores, m)
}

func (r *Router) AddCloser(c CloserFunc) {
	r.closers = append(r.closers, c)
}

func (r *Router) Handle(method, pattern string, h http.Handler) {
	r.inner.Handle(method, pattern, gin.WrapH(h))
}

func (r *Router) Handler() http.Handler {
	return r.inner.(*gin.Engine)
}

func GET[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.inner.GET(pattern, wrapHandler(r, http.MethodGet, handler))
}

func POST[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.inner.POST(pattern, wrapHandler(r, http.MethodPost, handler))
}

// requestContext carries the values of the root context (configs, logger,
// database) into the request context, keeping the cancellation of the latter.
func requestContext(root context.Context, r *http.Request) context.Context {
	ctx := r.Context()
	ctx = xcontext.WithConfigs(ctx, xcontext.Configs(root))
	ctx = xcontext.WithLogger(ctx, xcontext.Logger(root))
	if db := xcontext.DB(root); db != nil {
		ctx = xcontext.WithDB(ctx, db)
	}
	if node := xcontext.SnowFlake(root); node != nil {
		ctx = xcontext.WithSnowFlake(ctx, node)
	}

	return ctx
}
