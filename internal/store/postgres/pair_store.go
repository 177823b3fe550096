package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// PairStore implements domain.PairStore using PostgreSQL.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a new PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

// Create inserts one pair record.
func (s *PairStore) Create(ctx context.Context, rec domain.PairRecord) error {
	const query = `
		INSERT INTO pairs (
			option_id, obligation_id, expiry, window_seconds,
			strike_price, collateral_asset, verifier, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		rec.OptionID, rec.ObligationID, rec.Expiry, rec.WindowSeconds,
		rec.StrikePrice, rec.CollateralAsset, rec.Verifier, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pair %s: %w", rec.ObligationID, err)
	}
	return nil
}

// GetByObligation returns the pair record keyed by its Obligation identity.
func (s *PairStore) GetByObligation(ctx context.Context, obligationID string) (domain.PairRecord, error) {
	const query = `
		SELECT option_id, obligation_id, expiry, window_seconds,
		       strike_price, collateral_asset, verifier, created_at
		FROM pairs WHERE obligation_id = $1`

	var rec domain.PairRecord
	err := s.pool.QueryRow(ctx, query, obligationID).Scan(
		&rec.OptionID, &rec.ObligationID, &rec.Expiry, &rec.WindowSeconds,
		&rec.StrikePrice, &rec.CollateralAsset, &rec.Verifier, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PairRecord{}, domain.ErrPairNotFound
	}
	if err != nil {
		return domain.PairRecord{}, fmt.Errorf("postgres: get pair %s: %w", obligationID, err)
	}
	return rec, nil
}

// List returns pair records in creation order with pagination and optional
// time filtering.
func (s *PairStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.PairRecord, error) {
	query := `
		SELECT option_id, obligation_id, expiry, window_seconds,
		       strike_price, collateral_asset, verifier, created_at
		FROM pairs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at ASC"

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
		return nil, fmt.Errorf("postgres: list pairs: %w", err)
	}
	defer rows.Close()

	var recs []domain.PairRecord
	for rows.Next() {
		var rec domain.PairRecord
		if err := rows.Scan(
			&rec.OptionID, &rec.ObligationID, &rec.Expiry, &rec.WindowSeconds,
			&rec.StrikePrice, &rec.CollateralAsset, &rec.Verifier, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pairs rows: %w", err)
	}
	return recs, nil
}
