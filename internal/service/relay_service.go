package service

import (
	"context"
	"fmt"
	"log/slog"
)

// SubmitHeader stores a serialized Bitcoin block header at the given height,
// making inclusion proofs against that block verifiable.
func (s *SettlementService) SubmitHeader(ctx context.Context, height uint64, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.relay.SubmitHeader(height, raw); err != nil {
		return fmt.Errorf("service: submit header at %d: %w", height, err)
	}
	s.record(ctx, ChannelHeaders, "header_submitted", "", map[string]any{
		"height": height,
	})
	s.logger.InfoContext(ctx, "header submitted",
		slog.Uint64("height", height),
		slog.Int("stored", s.relay.Heights()),
	)
	return nil
}
