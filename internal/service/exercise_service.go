package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// RequestExercise reserves an obligation owner's collateral for the holder
// and returns the request the holder must pay against. The returned request
// carries the secret nonce; the holder's Bitcoin payment must equal the
// requested amount plus that nonce exactly.
func (s *SettlementService) RequestExercise(ctx context.Context, id string, holder, owner domain.Account, amountOut uint64) (domain.ExerciseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return domain.ExerciseRequest{}, err
	}
	req, err := p.RequestExercise(holder, owner, amountOut)
	if err != nil {
		return domain.ExerciseRequest{}, fmt.Errorf("service: request exercise on %s: %w", id, err)
	}

	s.record(ctx, ChannelExercise, "exercise_requested", id, map[string]any{
		"request":    req.ID.String(),
		"holder":     holder.Hex(),
		"owner":      owner.Hex(),
		"amount_out": req.AmountExternal,
		"collateral": req.AmountCollateral.String(),
	})
	s.alert(ctx, "exercise_requested", "Exercise requested",
		fmt.Sprintf("pair %s request %s for %d sat", id, req.ID, req.AmountExternal))
	s.logger.InfoContext(ctx, "exercise requested",
		slog.String("pair", id),
		slog.String("request", req.ID.String()),
		slog.Uint64("amount_out", req.AmountExternal),
	)
	return req, nil
}

// ExecuteExercise settles a pending request against an inclusion proof of
// the holder's Bitcoin payment. The accepted proof is archived for audit.
func (s *SettlementService) ExecuteExercise(ctx context.Context, id string, caller domain.Account, requestID uuid.UUID, proof domain.InclusionProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if err := p.ExecuteExercise(caller, requestID, proof); err != nil {
		return fmt.Errorf("service: execute exercise on %s: %w", id, err)
	}

	if s.archiver != nil {
		blob, _ := json.Marshal(proof)
		if err := s.archiver.ArchiveProof(ctx, id, requestID.String(), blob); err != nil {
			s.logger.WarnContext(ctx, "proof archive failed",
				slog.String("pair", id),
				slog.String("request", requestID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.record(ctx, ChannelExercise, "exercise_executed", id, map[string]any{
		"request": requestID.String(),
		"txid":    proof.TxID.String(),
		"height":  proof.BlockHeight,
	})
	s.alert(ctx, "exercise_executed", "Exercise settled",
		fmt.Sprintf("pair %s request %s settled by tx %s", id, requestID, proof.TxID))
	s.logger.InfoContext(ctx, "exercise executed",
		slog.String("pair", id),
		slog.String("request", requestID.String()),
		slog.String("txid", proof.TxID.String()),
	)
	return nil
}

// ReclaimRequest resolves a request that was never paid, restoring the
// debited obligation to its owner once the exercise window has closed.
func (s *SettlementService) ReclaimRequest(ctx context.Context, id string, caller domain.Account, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if err := p.ReclaimRequest(caller, requestID); err != nil {
		return fmt.Errorf("service: reclaim request on %s: %w", id, err)
	}
	s.record(ctx, ChannelExercise, "request_reclaimed", id, map[string]any{
		"request": requestID.String(),
		"caller":  caller.Hex(),
	})
	s.logger.InfoContext(ctx, "exercise request reclaimed",
		slog.String("pair", id),
		slog.String("request", requestID.String()),
	)
	return nil
}

// Refund burns the writer's obligation after the window closes and returns
// the matching collateral.
func (s *SettlementService) Refund(ctx context.Context, id string, writer domain.Account, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if err := p.Refund(writer, amount); err != nil {
		return fmt.Errorf("service: refund on %s: %w", id, err)
	}
	s.record(ctx, ChannelExercise, "obligation_refunded", id, map[string]any{
		"writer": writer.Hex(),
		"amount": amount.String(),
	})
	s.logger.InfoContext(ctx, "obligation refunded",
		slog.String("pair", id),
		slog.String("writer", writer.Hex()),
		slog.String("amount", amount.String()),
	)
	return nil
}

// Request returns a copy of one exercise request.
func (s *SettlementService) Request(ctx context.Context, id string, requestID uuid.UUID) (domain.ExerciseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return domain.ExerciseRequest{}, err
	}
	req, ok := p.Request(requestID)
	if !ok {
		return domain.ExerciseRequest{}, domain.ErrInvalidRequestID
	}
	return req, nil
}
