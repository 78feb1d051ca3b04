package refseq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidScope = errors.New("invalid_sequence_scope")
	ErrInvalidWidth = errors.New("invalid_sequence_width")

	// ErrAllocationConflict signals a lost race on a generated reference
	// number. Retryable; callers re-allocate with backoff.
	ErrAllocationConflict = errors.New("allocation_conflict")

	// ErrSequenceExhausted means the counter outgrew the configured digit
	// width for the current period.
	ErrSequenceExhausted = errors.New("sequence_exhausted")
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
}

// Allocator produces unique, strictly increasing reference numbers scoped
// by temple, kind and calendar month.
type Allocator struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewAllocator(p Params) *Allocator {
	return &Allocator{
		log:   p.Log.Named("refseq.allocator"),
		genID: p.GenID,
	}
}

// Next allocates the next reference number for (temple, scope, month of now)
// and formats it as PREFIX + YYMM + zero-padded sequence. It must run inside
// the caller's transaction; the counter row update serializes concurrent
// allocators on the same scope.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, scope, prefix string, width int, now time.Time) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", ErrInvalidScope
	}
	if width <= 0 {
		return "", ErrInvalidWidth
	}

	period := now.UTC().Format("0601")

	seq, err := a.nextSeq(ctx, tx, templeID, scope, period, now)
	if err != nil {
		return "", err
	}
	if seq <= 0 {
		return "", ErrAllocationConflict
	}

	if len(fmt.Sprintf("%d", seq)) > width {
		a.log.Error("reference sequence exhausted",
			zap.String("scope", scope),
			zap.String("period", period),
			zap.Int64("seq", seq),
		)
		return "", ErrSequenceExhausted
	}

	return fmt.Sprintf("%s%s%0*d", prefix, period, width, seq), nil
}

// nextSeq bumps the counter row and returns the new value. Postgres and
// sqlite share the ON CONFLICT ... RETURNING upsert; MySQL has no RETURNING,
// so it routes the value through LAST_INSERT_ID(expr), which stashes it on
// the session for both the insert and the update path.
func (a *Allocator) nextSeq(ctx context.Context, tx *gorm.DB, templeID snowflake.ID, scope, period string, now time.Time) (int64, error) {
	var seq int64
	if tx.Dialector.Name() == "mysql" {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO reference_sequences (id, temple_id, scope, period, last_seq, created_at, updated_at)
			 VALUES (?, ?, ?, ?, LAST_INSERT_ID(1), ?, ?)
			 ON DUPLICATE KEY UPDATE last_seq = LAST_INSERT_ID(last_seq + 1), updated_at = VALUES(updated_at)`,
			a.genID.Generate(),
			templeID,
			scope,
			period,
			now.UTC(),
			now.UTC(),
		).Error
		if err != nil {
			return 0, err
		}
		if err := tx.WithContext(ctx).Raw(`SELECT LAST_INSERT_ID()`).Scan(&seq).Error; err != nil {
			return 0, err
		}
		return seq, nil
	}

	err := tx.WithContext(ctx).Raw(
		`INSERT INTO reference_sequences (id, temple_id, scope, period, last_seq, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (temple_id, scope, period)
		 DO UPDATE SET last_seq = reference_sequences.last_seq + 1, updated_at = excluded.updated_at
		 RETURNING last_seq`,
		a.genID.Generate(),
		templeID,
		scope,
		period,
		now.UTC(),
		now.UTC(),
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Module provides the allocator.
var Module = fx.Module("refseq",
	fx.Provide(NewAllocator),
)
