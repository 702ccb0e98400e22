package entity

import (
	"database/sql"

	"github.com/questx-lab/badgehub/pkg/enum"
)

type BadgeTokenStatus string

var (
	BadgeTokenAvailable = enum.New(BadgeTokenStatus("available"))
	BadgeTokenAwarded   = enum.New(BadgeTokenStatus("awarded"))
)

// BadgeToken is one on-chain object of a batch. Status only moves from
// available to awarded. ReservationID and ReservedUntil hold a transient lock
// taken by an in-flight award attempt; an expired lock is free to take.
type BadgeToken struct {
	SnowFlakeBase

	BatchID  string `gorm:"index;size:64"`
	ObjectID string `gorm:"uniqueIndex;size:128"`
	Position int

	Status      BadgeTokenStatus `gorm:"index;size:32"`
	AwardTxHash sql.NullString   `gorm:"size:128"`
	AwardedAt   sql.NullTime
	RecipientID sql.NullString `gorm:"size:64"`

	ReservationID sql.NullString `gorm:"size:64"`
	ReservedUntil sql.NullTime
}
