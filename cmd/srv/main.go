package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/pubsub"
	"github.com/questx-lab/badgehub/pkg/router"
	"github.com/questx-lab/badgehub/pkg/xredis"
	"github.com/urfave/cli/v2"
)

type chainClient interface {
	client.ChainClient
	Close()
}

type srv struct {
	app *cli.App
	ctx context.Context

	redisClient xredis.Client
	publisher   pubsub.Publisher
	chainClient chainClient

	awardContextRepo repository.AwardContextRepository
	batchRepo        repository.InventoryBatchRepository
	tokenRepo        repository.BadgeTokenRepository
	awardRepo        repository.AwardRepository
	holdingRepo      repository.OwnershipHoldingRepository
	listingRepo      repository.ListingRepository
	triggerRepo      repository.DepletionTriggerRepository
	blockchainTxRepo repository.BlockChainTransactionRepository

	ledger             domain.TokenLedger
	inventoryDomain    domain.InventoryDomain
	awardContextDomain domain.AwardContextDomain
	awardDomain        domain.AwardDomain
	depletionDomain    domain.DepletionDomain
	marketplaceDomain  domain.MarketplaceDomain

	router *router.Router
	server *http.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &srv{ctx: ctx}
	s.loadApp()

	if err := s.app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
