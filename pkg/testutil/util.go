package testutil

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/questx-lab/badgehub/config"
	"github.com/questx-lab/badgehub/internal/entity"
	"github.com/questx-lab/badgehub/pkg/logger"
	"github.com/questx-lab/badgehub/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MockContext returns a context with a fresh in-memory database. The database
// has a single connection, so concurrent transactions run one after another
// like row locks would order them.
func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}

	cfg := config.Default()
	cfg.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Auth.TokenSecret = "secret"
	cfg.Blockchain = config.BlockchainConfigs{
		Chain:         "test-chain",
		ChainID:       1337,
		SecretKey:     "secret",
		Confirmations: 0,
		PollInterval:  time.Millisecond,
		GasLimit:      200_000,
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewNopLogger())
	ctx = xcontext.WithSnowFlake(ctx, node)
	ctx = xcontext.WithDB(ctx, db)

	if err := entity.MigrateTable(ctx); err != nil {
		panic(err)
	}

	return ctx
}

// WithMarketplaceTimeout overrides the listing reservation timeout of ctx.
func WithMarketplaceTimeout(ctx context.Context, timeout time.Duration) context.Context {
	cfg := xcontext.Configs(ctx)
	cfg.Marketplace.ReservationTimeout = timeout
	return xcontext.WithConfigs(ctx, cfg)
}

// WithAwardReservationTTL overrides the token reservation TTL of ctx. The
// reconciler also waits that long before replaying a journaled transfer.
func WithAwardReservationTTL(ctx context.Context, ttl time.Duration) context.Context {
	cfg := xcontext.Configs(ctx)
	cfg.Award.ReservationTTL = ttl
	return xcontext.WithConfigs(ctx, cfg)
}
