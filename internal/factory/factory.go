// Package factory creates and indexes settlement pairs. It owns the
// append-only registries the protocol needs at pair-creation time: the
// treasury per collateral asset, the enabled-asset set, and the payment
// verifiers. Registries only grow; nothing is ever unregistered.
package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/pair"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

// Factory creates Option/Obligation pairs with deterministic identities.
type Factory struct {
	id    domain.Account
	clock domain.Clock

	treasuries map[domain.AssetID]*treasury.Treasury
	enabled    map[domain.AssetID]bool
	verifiers  map[domain.VerifierID]pair.Verifier

	bySalt       map[common.Hash]*pair.Pair
	byObligation map[domain.Account]*pair.Pair
	created      []*pair.Pair // insertion order, for stable listing
}

// New creates a Factory under the given identity. The identity feeds the
// address derivation, so two factories never mint colliding pairs.
func New(id domain.Account, clock domain.Clock) *Factory {
	return &Factory{
		id:           id,
		clock:        clock,
		treasuries:   make(map[domain.AssetID]*treasury.Treasury),
		enabled:      make(map[domain.AssetID]bool),
		verifiers:    make(map[domain.VerifierID]pair.Verifier),
		bySalt:       make(map[common.Hash]*pair.Pair),
		byObligation: make(map[domain.Account]*pair.Pair),
	}
}

// ID returns the factory identity.
func (f *Factory) ID() domain.Account { return f.id }

// RegisterTreasury binds a treasury to its collateral asset.
func (f *Factory) RegisterTreasury(asset domain.AssetID, t *treasury.Treasury) {
	f.treasuries[asset] = t
}

// EnableAsset marks an asset as accepted collateral for new pairs.
func (f *Factory) EnableAsset(asset domain.AssetID) {
	f.enabled[asset] = true
}

// IsSupported reports whether new pairs may be created on this asset.
func (f *Factory) IsSupported(asset domain.AssetID) bool {
	return f.enabled[asset]
}

// RegisterVerifier binds a payment verifier under an id referenced in pair
// terms.
func (f *Factory) RegisterVerifier(id domain.VerifierID, v pair.Verifier) {
	f.verifiers[id] = v
}

// Treasury returns the treasury registered for asset.
func (f *Factory) Treasury(asset domain.AssetID) (*treasury.Treasury, bool) {
	t, ok := f.treasuries[asset]
	return t, ok
}

// CreatePair validates the terms, derives the pair's identities from the
// term salt, constructs the pair, and authorizes its Obligation with the
// asset's treasury. The same terms always yield the same identities.
func (f *Factory) CreatePair(terms domain.PairTerms) (*pair.Pair, error) {
	if !terms.Expiry.After(f.clock.Now()) {
		return nil, domain.ErrInitExpired
	}
	if terms.Window <= 0 {
		return nil, domain.ErrWindowZero
	}
	if terms.StrikePrice.IsZero() || terms.StrikePrice.IsNegative() {
		return nil, domain.ErrZeroStrikePrice
	}
	if !f.enabled[terms.CollateralAsset] {
		return nil, domain.ErrNotSupported
	}
	treas, ok := f.treasuries[terms.CollateralAsset]
	if !ok {
		return nil, domain.ErrNoTreasury
	}
	verifier, ok := f.verifiers[terms.Verifier]
	if !ok {
		return nil, domain.ErrUnknownVerifier
	}

	return f.register(terms, treas, verifier)
}

// RestorePair re-registers a previously created pair from its persisted
// terms. It skips the expiry freshness check so pairs still inside their
// exercise window survive a restart; everything else, including the
// derived identities, is identical to CreatePair.
func (f *Factory) RestorePair(terms domain.PairTerms) (*pair.Pair, error) {
	treas, ok := f.treasuries[terms.CollateralAsset]
	if !ok {
		return nil, domain.ErrNoTreasury
	}
	verifier, ok := f.verifiers[terms.Verifier]
	if !ok {
		return nil, domain.ErrUnknownVerifier
	}
	return f.register(terms, treas, verifier)
}

func (f *Factory) register(terms domain.PairTerms, treas *treasury.Treasury, verifier pair.Verifier) (*pair.Pair, error) {
	salt := SaltHash(terms)
	if _, exists := f.bySalt[salt]; exists {
		return nil, domain.ErrPairExists
	}

	optionID := DeriveAddress(f.id, salt, CodeTagOption)
	obligationID := DeriveAddress(f.id, salt, CodeTagObligation)

	p := pair.New(terms, optionID, obligationID, treas, verifier, f.clock)
	treas.Authorize(obligationID, p)

	f.bySalt[salt] = p
	f.byObligation[obligationID] = p
	f.created = append(f.created, p)
	return p, nil
}

// PairByObligation looks a pair up by its Obligation identity.
func (f *Factory) PairByObligation(id domain.Account) (*pair.Pair, bool) {
	p, ok := f.byObligation[id]
	return p, ok
}

// PairBySalt looks a pair up by its term salt.
func (f *Factory) PairBySalt(salt common.Hash) (*pair.Pair, bool) {
	p, ok := f.bySalt[salt]
	return p, ok
}

// Pairs returns every created pair in creation order.
func (f *Factory) Pairs() []*pair.Pair {
	out := make([]*pair.Pair, len(f.created))
	copy(out, f.created)
	return out
}
