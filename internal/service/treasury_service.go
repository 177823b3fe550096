package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

func (s *SettlementService) treasuryByID(asset string) (*treasury.Treasury, error) {
	if !common.IsHexAddress(asset) {
		return nil, domain.ErrNoTreasury
	}
	t, ok := s.factory.Treasury(domain.AssetID(common.HexToAddress(asset)))
	if !ok {
		return nil, domain.ErrNoTreasury
	}
	return t, nil
}

// SetPosition records a writer's strike range, window end, and Bitcoin
// receiving address with the asset's treasury.
func (s *SettlementService) SetPosition(ctx context.Context, asset string, account domain.Account, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.treasuryByID(asset)
	if err != nil {
		return err
	}
	if err := t.SetPosition(account, pos); err != nil {
		return fmt.Errorf("service: set position on %s: %w", asset, err)
	}
	s.record(ctx, ChannelTreasury, "position_set", asset, map[string]any{
		"account":    account.Hex(),
		"min_strike": pos.MinStrike.String(),
		"max_strike": pos.MaxStrike.String(),
		"receiving":  pos.Receiving.String(),
	})
	s.logger.InfoContext(ctx, "position set",
		slog.String("asset", asset),
		slog.String("account", account.Hex()),
	)
	return nil
}

// Deposit pulls the account's full asset balance into treasury custody and
// returns the amount moved.
func (s *SettlementService) Deposit(ctx context.Context, asset string, account domain.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.treasuryByID(asset)
	if err != nil {
		return "", err
	}
	amount, err := t.Deposit(account)
	if err != nil {
		return "", fmt.Errorf("service: deposit on %s: %w", asset, err)
	}
	s.record(ctx, ChannelTreasury, "collateral_deposited", asset, map[string]any{
		"account": account.Hex(),
		"amount":  amount.String(),
	})
	s.logger.InfoContext(ctx, "collateral deposited",
		slog.String("asset", asset),
		slog.String("account", account.Hex()),
		slog.String("amount", amount.String()),
	)
	return amount.String(), nil
}

// Balance returns an account's deposited, pair-locked, and unlocked
// collateral on one treasury.
func (s *SettlementService) Balance(ctx context.Context, asset, pairID string, account domain.Account) (domain.TreasuryBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.treasuryByID(asset)
	if err != nil {
		return domain.TreasuryBalance{}, err
	}
	var pairAcct domain.Account
	if common.IsHexAddress(pairID) {
		pairAcct = domain.Account(common.HexToAddress(pairID))
	}
	bal := t.BalanceOf(pairAcct, account)
	return domain.TreasuryBalance{
		Deposited: bal.Deposited.String(),
		Locked:    bal.Locked.String(),
		Unlocked:  t.Unlocked(account).String(),
	}, nil
}
