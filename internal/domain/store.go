package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// JournalEntry is one applied settlement operation. The journal is the
// durable form of the serially-ordered execution log the protocol runs on:
// entries are append-only and never updated.
type JournalEntry struct {
	ID        uuid.UUID
	Seq       int64
	Op        string
	Pair      string
	Detail    map[string]any
	AppliedAt time.Time
}

// JournalStore persists the append-only operation journal.
type JournalStore interface {
	Append(ctx context.Context, entry JournalEntry) error
	List(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
	LastSeq(ctx context.Context) (int64, error)
}

// PairRecord is the persisted form of a created pair, kept for the read
// model and restart replay.
type PairRecord struct {
	OptionID        string
	ObligationID    string
	Expiry          time.Time
	WindowSeconds   int64
	StrikePrice     string
	CollateralAsset string
	Verifier        string
	CreatedAt       time.Time
}

// PairStore persists created pairs.
type PairStore interface {
	Create(ctx context.Context, rec PairRecord) error
	GetByObligation(ctx context.Context, obligationID string) (PairRecord, error)
	List(ctx context.Context, opts ListOpts) ([]PairRecord, error)
}
