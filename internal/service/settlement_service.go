// Package service exposes the settlement protocol behind a single serialized
// surface. Every mutating call takes the one service mutex, so the core
// packages below (token, treasury, pair, factory) run without locks and every
// operation observes a consistent ledger. Side effects around the core
// mutation (journal, cache, signal bus, notifications) are best-effort:
// their failures are logged, never returned.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/btcsettle/btcsettle/internal/btcproof"
	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/factory"
	"github.com/btcsettle/btcsettle/internal/notify"
	"github.com/btcsettle/btcsettle/internal/pair"
)

// Event channels published on the signal bus.
const (
	ChannelPairs    = "pairs"
	ChannelExercise = "exercise"
	ChannelTreasury = "treasury"
	ChannelHeaders  = "headers"
)

// SettlementService is the single entry point for every protocol operation.
type SettlementService struct {
	mu sync.Mutex

	factory *factory.Factory
	relay   *btcproof.HeaderRelay
	clock   domain.Clock

	journal  domain.JournalStore
	pairs    domain.PairStore
	cache    domain.PairCache
	bus      domain.SignalBus
	archiver domain.ProofArchiver
	notifier *notify.Notifier
	logger   *slog.Logger

	seq int64
}

// NewSettlementService creates the service around a wired factory and header
// relay. The journal, pair store, cache, bus, archiver, and notifier may each
// be nil; the service then runs without that side effect, which is how the
// in-memory mode operates.
func NewSettlementService(
	f *factory.Factory,
	relay *btcproof.HeaderRelay,
	clock domain.Clock,
	journal domain.JournalStore,
	pairs domain.PairStore,
	cache domain.PairCache,
	bus domain.SignalBus,
	archiver domain.ProofArchiver,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		factory:  f,
		relay:    relay,
		clock:    clock,
		journal:  journal,
		pairs:    pairs,
		cache:    cache,
		bus:      bus,
		archiver: archiver,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// Restore rebuilds in-memory state from the durable stores after a restart:
// it re-registers persisted pairs with the factory and primes the journal
// sequence so appended entries continue the existing ordering.
func (s *SettlementService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pairs != nil {
		offset := 0
		for {
			recs, err := s.pairs.List(ctx, domain.ListOpts{Limit: 500, Offset: offset})
			if err != nil {
				return fmt.Errorf("service: restore pairs: %w", err)
			}
			if len(recs) == 0 {
				break
			}
			for _, rec := range recs {
				terms, err := recordTerms(rec)
				if err != nil {
					return fmt.Errorf("service: restore pair %s: %w", rec.ObligationID, err)
				}
				if _, err := s.factory.RestorePair(terms); err != nil {
					return fmt.Errorf("service: restore pair %s: %w", rec.ObligationID, err)
				}
			}
			offset += len(recs)
		}
		s.logger.InfoContext(ctx, "pairs restored", slog.Int("count", offset))
	}

	if s.journal != nil {
		last, err := s.journal.LastSeq(ctx)
		if err != nil {
			return fmt.Errorf("service: restore journal seq: %w", err)
		}
		s.seq = last
		s.logger.InfoContext(ctx, "journal restored", slog.Int64("last_seq", last))
	}
	return nil
}

// recordTerms converts a persisted pair record back into its creation terms.
func recordTerms(rec domain.PairRecord) (domain.PairTerms, error) {
	strike, err := decimal.NewFromString(rec.StrikePrice)
	if err != nil {
		return domain.PairTerms{}, fmt.Errorf("strike %q: %w", rec.StrikePrice, err)
	}
	if !common.IsHexAddress(rec.CollateralAsset) || !common.IsHexAddress(rec.Verifier) {
		return domain.PairTerms{}, fmt.Errorf("malformed asset or verifier id")
	}
	return domain.PairTerms{
		Expiry:          rec.Expiry,
		Window:          time.Duration(rec.WindowSeconds) * time.Second,
		StrikePrice:     strike,
		CollateralAsset: domain.AssetID(common.HexToAddress(rec.CollateralAsset)),
		Verifier:        domain.VerifierID(common.HexToAddress(rec.Verifier)),
	}, nil
}

// Journal returns journal entries for the audit API.
func (s *SettlementService) Journal(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.List(ctx, opts)
}

// pairByID resolves a hex Obligation identity to its live pair. Callers hold
// the service mutex.
func (s *SettlementService) pairByID(id string) (*pair.Pair, error) {
	if !common.IsHexAddress(id) {
		return nil, domain.ErrPairNotFound
	}
	p, ok := s.factory.PairByObligation(domain.Account(common.HexToAddress(id)))
	if !ok {
		return nil, domain.ErrPairNotFound
	}
	return p, nil
}

// record journals the applied operation and fans it out on the bus. Both are
// best-effort; the ledger mutation already happened and is not rolled back.
func (s *SettlementService) record(ctx context.Context, channel, op, pairID string, detail map[string]any) {
	s.seq++
	if s.journal != nil {
		entry := domain.JournalEntry{
			ID:        uuid.New(),
			Seq:       s.seq,
			Op:        op,
			Pair:      pairID,
			Detail:    detail,
			AppliedAt: s.clock.Now(),
		}
		if err := s.journal.Append(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "journal append failed",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus != nil {
		payload := map[string]any{"event": op, "pair": pairID, "seq": s.seq}
		for k, v := range detail {
			payload[k] = v
		}
		evt, _ := json.Marshal(payload)
		if err := s.bus.Publish(ctx, channel, evt); err != nil {
			s.logger.WarnContext(ctx, "bus publish failed",
				slog.String("channel", channel),
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
	}
}

// alert forwards a notification when a notifier is configured.
func (s *SettlementService) alert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// CreatePair validates terms, creates the pair, persists its record, and
// caches the detail view.
func (s *SettlementService) CreatePair(ctx context.Context, terms domain.PairTerms) (domain.PairDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.factory.CreatePair(terms)
	if err != nil {
		return domain.PairDetails{}, fmt.Errorf("service: create pair: %w", err)
	}
	details := p.Details()
	pairID := details.ObligationID.Hex()

	if s.pairs != nil {
		rec := domain.PairRecord{
			OptionID:        details.OptionID.Hex(),
			ObligationID:    pairID,
			Expiry:          terms.Expiry,
			WindowSeconds:   int64(terms.Window / time.Second),
			StrikePrice:     terms.StrikePrice.String(),
			CollateralAsset: terms.CollateralAsset.Hex(),
			Verifier:        terms.Verifier.Hex(),
			CreatedAt:       s.clock.Now(),
		}
		if err := s.pairs.Create(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "pair record persist failed",
				slog.String("pair", pairID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, details); err != nil {
			s.logger.WarnContext(ctx, "pair cache set failed",
				slog.String("pair", pairID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.record(ctx, ChannelPairs, "pair_created", pairID, map[string]any{
		"option":  details.OptionID.Hex(),
		"strike":  terms.StrikePrice.String(),
		"expiry":  terms.Expiry.UTC().Format(time.RFC3339),
		"window":  (terms.Window / time.Second),
		"asset":   terms.CollateralAsset.Hex(),
		"backing": terms.Verifier.Hex(),
	})
	s.alert(ctx, "pair_created", "Pair created",
		fmt.Sprintf("pair %s strike %s expiry %s", pairID, terms.StrikePrice, terms.Expiry.UTC().Format(time.RFC3339)))
	s.logger.InfoContext(ctx, "pair created",
		slog.String("pair", pairID),
		slog.String("strike", terms.StrikePrice.String()),
	)
	return details, nil
}

// GetPair returns the detail view of one pair, preferring the cache.
func (s *SettlementService) GetPair(ctx context.Context, id string) (domain.PairDetails, error) {
	if s.cache != nil {
		if details, err := s.cache.Get(ctx, id); err == nil {
			return details, nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.pairByID(id)
	if err != nil {
		return domain.PairDetails{}, err
	}
	return p.Details(), nil
}

// ListPairs returns the detail view of every created pair.
func (s *SettlementService) ListPairs(ctx context.Context) []domain.PairDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs := s.factory.Pairs()
	out := make([]domain.PairDetails, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Details())
	}
	return out
}

// Balances returns an account's option and obligation balance on a pair.
func (s *SettlementService) Balances(ctx context.Context, id string, account domain.Account) (domain.PairBalances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.pairByID(id)
	if err != nil {
		return domain.PairBalances{}, err
	}
	return domain.PairBalances{
		Option:     p.OptionBalance(account).String(),
		Obligation: p.ObligationBalance(account).String(),
	}, nil
}

// Sellers enumerates a pair's obligation holders with non-zero balances.
func (s *SettlementService) Sellers(ctx context.Context, id string) ([]domain.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.pairByID(id)
	if err != nil {
		return nil, err
	}
	holders := p.ObligationHolders()
	out := make([]domain.Seller, 0, len(holders))
	for _, h := range holders {
		out = append(out, domain.Seller{Account: h, Obligation: p.ObligationBalance(h).String()})
	}
	return out, nil
}
