package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// JournalStore implements domain.JournalStore using PostgreSQL.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a new JournalStore backed by the given connection
// pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Append inserts one journal entry. The detail map is stored as JSONB.
func (s *JournalStore) Append(ctx context.Context, entry domain.JournalEntry) error {
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}

	const query = `
		INSERT INTO journal (id, seq, op, pair, detail, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.pool.Exec(ctx, query,
		entry.ID, entry.Seq, entry.Op, entry.Pair, detailJSON, entry.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append journal entry %s: %w", entry.Op, err)
	}
	return nil
}

// List returns journal entries in ascending sequence order with pagination
// and optional time filtering.
func (s *JournalStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	query := `SELECT id, seq, op, pair, detail, applied_at FROM journal WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND applied_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND applied_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY seq ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var detailJSON []byte

		if err := rows.Scan(&e.ID, &e.Seq, &e.Op, &e.Pair, &detailJSON, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}

		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal journal detail: %w", err)
			}
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list journal entries rows: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest applied sequence number, or zero for an empty
// journal.
func (s *JournalStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	const query = `SELECT COALESCE(MAX(seq), 0) FROM journal`
	if err := s.pool.QueryRow(ctx, query).Scan(&seq); err != nil {
		return 0, fmt.Errorf("postgres: last journal seq: %w", err)
	}
	return seq, nil
}
