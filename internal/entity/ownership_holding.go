package entity

import (
	"database/sql"
	"time"
)

// OwnershipHolding tracks the current owner of one token independently of its
// award. ActiveListingID points to the single non-terminal listing of the
// holding, if any.
type OwnershipHolding struct {
	Base

	ObjectID   string `gorm:"uniqueIndex;size:128"`
	OwnerID    string `gorm:"index;size:64"`
	AcquiredAt time.Time

	AwardID string `gorm:"uniqueIndex;size:64"`
	Award   Award  `gorm:"foreignKey:AwardID"`

	ActiveListingID sql.NullString `gorm:"size:64"`
}
