package entity

import (
	"context"

	"github.com/questx-lab/badgehub/pkg/xcontext"
)

func MigrateTable(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&AwardContext{},
		&InventoryBatch{},
		&BadgeToken{},
		&Award{},
		&OwnershipHolding{},
		&Listing{},
		&DepletionTrigger{},
		&BlockchainTransaction{},
	)
}
