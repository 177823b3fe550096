package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// Write locks the writer's collateral and mints the option/obligation pair.
// When pool is the zero account the option goes to the writer; otherwise the
// option is minted to pool and the obligation stays with the writer.
func (s *SettlementService) Write(ctx context.Context, id string, writer, pool domain.Account, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if pool == (domain.Account{}) {
		err = p.MintToWriter(writer, amount)
	} else {
		err = p.MintToPool(writer, pool, amount)
	}
	if err != nil {
		return fmt.Errorf("service: write pair %s: %w", id, err)
	}

	s.record(ctx, ChannelPairs, "pair_written", id, map[string]any{
		"writer": writer.Hex(),
		"amount": amount.String(),
	})
	s.logger.InfoContext(ctx, "pair written",
		slog.String("pair", id),
		slog.String("writer", writer.Hex()),
		slog.String("amount", amount.String()),
	)
	return nil
}

// TransferOption moves option balance between accounts.
func (s *SettlementService) TransferOption(ctx context.Context, id string, from, to domain.Account, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if err := p.TransferOption(from, to, amount); err != nil {
		return fmt.Errorf("service: transfer option on %s: %w", id, err)
	}
	s.record(ctx, ChannelPairs, "option_transferred", id, map[string]any{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	})
	return nil
}

// TransferObligation moves obligation balance between accounts. The receiver
// must hold a treasury position with a receiving address.
func (s *SettlementService) TransferObligation(ctx context.Context, id string, from, to domain.Account, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.pairByID(id)
	if err != nil {
		return err
	}
	if err := p.TransferObligation(from, to, amount); err != nil {
		return fmt.Errorf("service: transfer obligation on %s: %w", id, err)
	}
	s.record(ctx, ChannelPairs, "obligation_transferred", id, map[string]any{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	})
	return nil
}
