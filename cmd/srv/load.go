package main

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/questx-lab/badgehub/config"
	"github.com/questx-lab/badgehub/internal/client"
	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/internal/repository"
	"github.com/questx-lab/badgehub/pkg/kafka"
	"github.com/questx-lab/badgehub/pkg/logger"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/questx-lab/badgehub/pkg/xredis"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func (s *srv) loadConfig(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	s.ctx = xcontext.WithConfigs(s.ctx, cfg)
	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(logger.ParseLevel(cfg.Log.Level)))
	s.ctx = xcontext.WithSnowFlake(s.ctx, node)
	return nil
}

func (s *srv) newDatabase() (*gorm.DB, error) {
	cfg := xcontext.Configs(s.ctx).Database

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.ConnectionString())
	default:
		dialector = mysql.New(mysql.Config{
			DSN:                       cfg.ConnectionString(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		})
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

func (s *srv) loadDatabase() error {
	db, err := s.newDatabase()
	if err != nil {
		return err
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	return nil
}

func (s *srv) migrateDB() error {
	return entity.MigrateTable(s.ctx)
}

func (s *srv) loadRedisClient() error {
	redisClient, err := xredis.NewClient(s.ctx)
	if err != nil {
		return err
	}

	s.redisClient = redisClient
	return nil
}

// loadPublisher leaves the publisher nil when no broker is configured.
func (s *srv) loadPublisher() error {
	cfg := xcontext.Configs(s.ctx).Kafka
	if !cfg.Enabled() {
		xcontext.Logger(s.ctx).Infof("Kafka is not configured, depletion signals are handled in-process")
		return nil
	}

	publisher, err := kafka.NewPublisher(cfg.ClientID, []string{cfg.Addr})
	if err != nil {
		return err
	}

	s.publisher = publisher
	return nil
}

func (s *srv) loadChainClient() error {
	chainClient, err := client.NewEthChainClient(s.ctx)
	if err != nil {
		return err
	}

	s.chainClient = chainClient
	return nil
}

func (s *srv) loadRepos() {
	s.awardContextRepo = repository.NewAwardContextRepository()
	s.batchRepo = repository.NewInventoryBatchRepository()
	s.tokenRepo = repository.NewBadgeTokenRepository()
	s.awardRepo = repository.NewAwardRepository()
	s.holdingRepo = repository.NewOwnershipHoldingRepository()
	s.listingRepo = repository.NewListingRepository()
	s.triggerRepo = repository.NewDepletionTriggerRepository()
	s.blockchainTxRepo = repository.NewBlockChainTransactionRepository()
}

func (s *srv) loadDomains() {
	s.ledger = domain.NewTokenLedger(s.batchRepo, s.tokenRepo)
	s.depletionDomain = domain.NewDepletionDomain(s.triggerRepo, s.awardContextRepo, s.batchRepo)
	s.awardContextDomain = domain.NewAwardContextDomain(s.awardContextRepo, s.batchRepo)
	s.inventoryDomain = domain.NewInventoryDomain(
		s.batchRepo,
		s.tokenRepo,
		s.awardContextRepo,
		s.blockchainTxRepo,
		s.chainClient,
	)

	var depletionNotifier domain.DepletionNotifier
	if s.publisher != nil {
		depletionNotifier = domain.NewPublisherDepletionNotifier(s.publisher)
	} else {
		depletionNotifier = domain.NewDirectDepletionNotifier(s.depletionDomain)
	}

	s.awardDomain = domain.NewAwardDomain(
		s.batchRepo,
		s.tokenRepo,
		s.awardRepo,
		s.holdingRepo,
		s.awardContextRepo,
		s.blockchainTxRepo,
		s.ledger,
		s.chainClient,
		depletionNotifier,
		s.publisher,
	)

	s.marketplaceDomain = domain.NewMarketplaceDomain(
		s.listingRepo,
		s.holdingRepo,
		s.blockchainTxRepo,
		s.chainClient,
		s.redisClient,
	)
}

// loadService prepares everything the api, cron and reconcile commands share.
func (s *srv) loadService() error {
	if err := s.loadDatabase(); err != nil {
		return err
	}

	if err := s.migrateDB(); err != nil {
		return err
	}

	if err := s.loadRedisClient(); err != nil {
		return err
	}

	if err := s.loadPublisher(); err != nil {
		return err
	}

	if err := s.loadChainClient(); err != nil {
		return err
	}

	s.loadRepos()
	s.loadDomains()
	return nil
}

func (s *srv) close(*cli.Context) error {
	var errs []error
	if s.chainClient != nil {
		s.chainClient.Close()
	}

	if s.redisClient != nil {
		errs = append(errs, s.redisClient.Close())
	}

	if stopper, ok := s.publisher.(interface {
		Stop(ctx context.Context) error
	}); ok {
		errs = append(errs, stopper.Stop(s.ctx))
	}

	return errors.Join(errs...)
}
