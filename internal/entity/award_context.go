package entity

import (
	"database/sql"

	"github.com/questx-lab/badgehub/pkg/enum"
)

type AwardContextStatus string

var (
	AwardContextOpen   = enum.New(AwardContextStatus("open"))
	AwardContextClosed = enum.New(AwardContextStatus("closed"))
)

// AwardContext is a challenge or event that batches are assigned to. Closing
// is one-way.
type AwardContext struct {
	Base

	IssuerID string `gorm:"index;size:64"`
	Title    string
	Status   AwardContextStatus `gorm:"size:32"`
	ClosedAt sql.NullTime
}
