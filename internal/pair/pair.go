// Package pair implements one settlement pair: an Option ledger, an
// Obligation ledger, and the exercise state machine binding them to a
// treasury and a payment verifier. Pairs never share mutable state; the
// service layer serializes calls, so nothing here takes a lock.
package pair

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/token"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

// Verifier decides whether a raw Bitcoin transaction was included in the
// external chain and extracts the amount it pays to a given script hash.
// ExtractOutput is pure: a transaction that does not pay the hash (or fails
// to parse) yields amount zero, never an error.
type Verifier interface {
	VerifyInclusion(proof domain.InclusionProof) error
	ExtractOutput(rawTx []byte, scriptHash [20]byte, format domain.AddressFormat) (uint64, []byte)
}

// Pair composes the two token ledgers with the exercise state machine.
type Pair struct {
	terms        domain.PairTerms
	decimals     uint8
	optionID     domain.Account
	obligationID domain.Account

	option     *token.Ledger
	obligation *token.Ledger
	treasury   *treasury.Treasury
	verifier   Verifier
	clock      domain.Clock

	// receiving caches the Bitcoin address bound to each obligation holder
	// at mint or transfer time, so exercise does not depend on the holder
	// later changing their treasury position.
	receiving map[domain.Account]domain.BtcAddress

	requests map[uuid.UUID]*domain.ExerciseRequest
	pending  *domain.ExerciseRequest
}

// New creates a pair from immutable terms and its two derived identities.
func New(terms domain.PairTerms, optionID, obligationID domain.Account, treas *treasury.Treasury, verifier Verifier, clock domain.Clock) *Pair {
	return &Pair{
		terms:        terms,
		decimals:     treas.Decimals(),
		optionID:     optionID,
		obligationID: obligationID,
		option:       token.NewLedger(),
		obligation:   token.NewLedger(),
		treasury:     treas,
		verifier:     verifier,
		clock:        clock,
		receiving:    make(map[domain.Account]domain.BtcAddress),
		requests:     make(map[uuid.UUID]*domain.ExerciseRequest),
	}
}

// OptionID returns the deterministically derived Option identity.
func (p *Pair) OptionID() domain.Account { return p.optionID }

// ObligationID returns the deterministically derived Obligation identity.
// It doubles as the pair's key in the treasury and read model.
func (p *Pair) ObligationID() domain.Account { return p.obligationID }

// Terms returns the pair's immutable terms.
func (p *Pair) Terms() domain.PairTerms { return p.terms }

// Details returns the read-only view served to clients and the AMM.
func (p *Pair) Details() domain.PairDetails {
	return domain.PairDetails{
		OptionID:        p.optionID,
		ObligationID:    p.obligationID,
		Expiry:          p.terms.Expiry,
		Window:          p.terms.Window,
		StrikePrice:     p.terms.StrikePrice,
		Decimals:        p.decimals,
		CollateralAsset: p.terms.CollateralAsset,
	}
}

// CanExit reports whether the exercise window has fully closed, after which
// writers may refund and nothing new may be requested.
func (p *Pair) CanExit() bool {
	return p.clock.Now().After(p.terms.Expiry.Add(p.terms.Window))
}

func (p *Pair) expired() bool {
	return p.clock.Now().After(p.terms.Expiry)
}

// MintToWriter locks amount of the writer's unlocked collateral and mints
// amount of Obligation and Option to the writer in one atomic step.
func (p *Pair) MintToWriter(writer domain.Account, amount *big.Int) error {
	return p.mint(writer, writer, amount)
}

// MintToPool is the liquidity variant: Obligation to the writer, Option to
// the pool, still backed by one collateral lock.
func (p *Pair) MintToPool(writer, pool domain.Account, amount *big.Int) error {
	return p.mint(writer, pool, amount)
}

func (p *Pair) mint(writer, optionTo domain.Account, amount *big.Int) error {
	if p.expired() {
		return domain.ErrExpired
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidRequest
	}
	addr, err := p.treasury.Lock(p.obligationID, p.obligationID, writer, amount)
	if err != nil {
		if err == domain.ErrNoBtcAddress {
			return domain.ErrNoBtcHash
		}
		return err
	}
	if err := p.obligation.Mint(writer, amount); err != nil {
		return err
	}
	if err := p.option.Mint(optionTo, amount); err != nil {
		return err
	}
	p.receiving[writer] = addr
	return nil
}

// TransferObligation reassigns claim rights. The receiver must already have
// a registered receiving address, since holders exercising against them need
// somewhere to pay.
func (p *Pair) TransferObligation(from, to domain.Account, amount *big.Int) error {
	addr, err := p.treasury.ReceivingAddress(to)
	if err != nil {
		return err
	}
	if err := p.obligation.Transfer(from, to, amount); err != nil {
		return err
	}
	p.receiving[to] = addr
	return nil
}

// TransferOption moves option balance; options are freely tradable.
func (p *Pair) TransferOption(from, to domain.Account, amount *big.Int) error {
	return p.option.Transfer(from, to, amount)
}

// OptionBalance returns an account's option balance.
func (p *Pair) OptionBalance(account domain.Account) *big.Int {
	return p.option.BalanceOf(account)
}

// ObligationBalance returns an account's obligation balance.
func (p *Pair) ObligationBalance(account domain.Account) *big.Int {
	return p.obligation.BalanceOf(account)
}

// OptionSupply returns the outstanding option supply.
func (p *Pair) OptionSupply() *big.Int { return p.option.TotalSupply() }

// ObligationSupply returns the outstanding obligation supply.
func (p *Pair) ObligationSupply() *big.Int { return p.obligation.TotalSupply() }

// ObligationHolders enumerates accounts a holder can exercise against.
func (p *Pair) ObligationHolders() []domain.Account { return p.obligation.Holders() }

// OptionHolders enumerates accounts holding exercisable options.
func (p *Pair) OptionHolders() []domain.Account { return p.option.Holders() }

// ReceivingAddress returns the Bitcoin address bound to an obligation holder.
func (p *Pair) ReceivingAddress(account domain.Account) (domain.BtcAddress, bool) {
	addr, ok := p.receiving[account]
	return addr, ok
}

// Request returns a copy of the exercise request with the given id.
func (p *Pair) Request(id uuid.UUID) (domain.ExerciseRequest, bool) {
	req, ok := p.requests[id]
	if !ok {
		return domain.ExerciseRequest{}, false
	}
	return *req, true
}

// Backed reports whether any obligation supply is outstanding.
func (p *Pair) Backed() bool { return p.obligation.TotalSupply().Sign() > 0 }

// ExpiresAt returns expiry, and WindowCloseAt the end of the exercise
// window.
func (p *Pair) ExpiresAt() time.Time     { return p.terms.Expiry }
func (p *Pair) WindowCloseAt() time.Time { return p.terms.Expiry.Add(p.terms.Window) }
