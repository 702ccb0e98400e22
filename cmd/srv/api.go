package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/questx-lab/badgehub/internal/middleware"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/pkg/jwt"
	"github.com/questx-lab/badgehub/pkg/prometheus"
	"github.com/questx-lab/badgehub/pkg/router"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func (s *srv) startApi(*cli.Context) error {
	if err := s.loadService(); err != nil {
		return err
	}

	s.loadRouter()

	cfg := xcontext.Configs(s.ctx)
	s.server = &http.Server{
		Addr: cfg.ApiServer.Address(),
		Handler: cors.New(cors.Options{
			AllowedOrigins:   cfg.Auth.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(s.router.Handler()),
	}

	promServer := &http.Server{
		Addr:    cfg.PrometheusServer.Address(),
		Handler: prometheus.NewHandler(prometheus.NewRegistry()),
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return listen(ctx, s.server) })
	g.Go(func() error { return listen(ctx, promServer) })

	xcontext.Logger(s.ctx).Infof("Starting api server on %s", s.server.Addr)
	return g.Wait()
}

// listen serves until ctx is done, then shuts the server down gracefully.
func listen(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *srv) loadRouter() {
	cfg := xcontext.Configs(s.ctx).Auth
	tokenEngine := jwt.NewEngine[model.AccessToken](cfg.TokenIssuer, cfg.TokenSecret, cfg.TokenExpiration)

	s.router = router.New(s.ctx)
	s.router.Before(middleware.WithStartTime())
	s.router.AddCloser(middleware.Logger())
	s.router.AddCloser(middleware.Prometheus())

	// Public read APIs.
	publicRouter := s.router.Branch()
	{
		router.GET(publicRouter, "/batches/get", s.inventoryDomain.GetBatch)
		router.GET(publicRouter, "/contexts/get", s.awardContextDomain.Get)
		router.GET(publicRouter, "/marketplace/listing", s.marketplaceDomain.GetListing)
		router.GET(publicRouter, "/marketplace/listings", s.marketplaceDomain.GetListings)
		router.GET(publicRouter, "/holdings/get", s.marketplaceDomain.GetHolding)
	}

	// These following APIs need authentication with an access token.
	authRouter := s.router.Branch()
	authRouter.Before(middleware.Authenticate(tokenEngine))
	{
		// Inventory API
		router.POST(authRouter, "/batches/create", withCaller(s.inventoryDomain.CreateBatch))
		router.GET(authRouter, "/batches/mine", withCaller(s.inventoryDomain.GetMyBatches))
		router.POST(authRouter, "/batches/assign", withCaller(s.inventoryDomain.AssignBatch))
		router.GET(authRouter, "/batches/custody", withCaller(s.inventoryDomain.GetCustodyWallet))

		// Award context API
		router.POST(authRouter, "/contexts/create", withCaller(s.awardContextDomain.Create))

		// Award API
		router.POST(authRouter, "/awards/award", withCaller(s.awardDomain.Award))
		router.POST(authRouter, "/awards/reconcile", withCaller(s.awardDomain.Reconcile))
		router.POST(authRouter, "/awards/releaseReservation", withCaller(s.awardDomain.ReleaseReservation))

		// Depletion API
		router.GET(authRouter, "/depletion/options", withCaller(s.depletionDomain.GetOptions))
		router.POST(authRouter, "/depletion/reassign", withCaller(s.depletionDomain.Reassign))
		router.POST(authRouter, "/depletion/finalize", withCaller(s.depletionDomain.Finalize))

		// Marketplace API
		router.POST(authRouter, "/marketplace", withCaller(s.marketplaceDomain.Dispatch))
		router.GET(authRouter, "/holdings/mine", withCaller(s.marketplaceDomain.GetMyHoldings))
	}
}

// withCaller adapts a domain method which receives the caller explicitly to a
// router handler. The caller is the subject authenticated by the middleware.
func withCaller[Request, Response any](
	fn func(context.Context, model.CallerIdentity, *Request) (*Response, error),
) router.HandlerFunc[Request, Response] {
	return func(ctx context.Context, req *Request) (*Response, error) {
		caller, err := model.ParseIdentity(xcontext.RequestUserID(ctx))
		if err != nil {
			return nil, err
		}

		return fn(ctx, caller, req)
	}
}
