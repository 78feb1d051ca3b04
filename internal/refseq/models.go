package refseq

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sequence is a per (temple, scope, period) monotonic counter backing
// human-readable reference numbers. The unique index makes concurrent
// first-allocations collide instead of silently duplicating.
type Sequence struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TempleID  snowflake.ID `gorm:"not null;uniqueIndex:ux_reference_sequences_scope,priority:1"`
	Scope     string       `gorm:"type:text;not null;uniqueIndex:ux_reference_sequences_scope,priority:2"`
	Period    string       `gorm:"type:char(4);not null;uniqueIndex:ux_reference_sequences_scope,priority:3"`
	LastSeq   int64        `gorm:"not null;default:0"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Sequence) TableName() string { return "reference_sequences" }
