package factory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/pair"
	"github.com/btcsettle/btcsettle/internal/token"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type nopVerifier struct{}

func (nopVerifier) VerifyInclusion(domain.InclusionProof) error { return nil }
func (nopVerifier) ExtractOutput([]byte, [20]byte, domain.AddressFormat) (uint64, []byte) {
	return 0, make([]byte, 32)
}

func acct(b byte) domain.Account {
	var a domain.Account
	a[19] = b
	return a
}

func newTestFactory(clock domain.Clock) (*Factory, domain.AssetID, domain.VerifierID) {
	asset := domain.AssetID(acct(0xaa))
	verifierID := domain.VerifierID(acct(0xbb))

	f := New(acct(0xfa), clock)
	f.RegisterTreasury(asset, treasury.New(asset, 6, token.NewLedger(), clock))
	f.EnableAsset(asset)
	f.RegisterVerifier(verifierID, nopVerifier{})
	return f, asset, verifierID
}

func validTerms(clock *testClock, asset domain.AssetID, verifier domain.VerifierID) domain.PairTerms {
	return domain.PairTerms{
		Expiry:          clock.now.Add(24 * time.Hour),
		Window:          2 * time.Hour,
		StrikePrice:     decimal.NewFromInt(9000),
		CollateralAsset: asset,
		Verifier:        verifier,
	}
}

func TestCreatePair_Validation(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f, asset, verifierID := newTestFactory(clock)

	tests := []struct {
		name    string
		mutate  func(*domain.PairTerms)
		wantErr error
	}{
		{
			name:    "expiry in the past",
			mutate:  func(tr *domain.PairTerms) { tr.Expiry = clock.now.Add(-time.Minute) },
			wantErr: domain.ErrInitExpired,
		},
		{
			name:    "zero window",
			mutate:  func(tr *domain.PairTerms) { tr.Window = 0 },
			wantErr: domain.ErrWindowZero,
		},
		{
			name:    "zero strike",
			mutate:  func(tr *domain.PairTerms) { tr.StrikePrice = decimal.Zero },
			wantErr: domain.ErrZeroStrikePrice,
		},
		{
			name:    "negative strike",
			mutate:  func(tr *domain.PairTerms) { tr.StrikePrice = decimal.NewFromInt(-1) },
			wantErr: domain.ErrZeroStrikePrice,
		},
		{
			name:    "unsupported asset",
			mutate:  func(tr *domain.PairTerms) { tr.CollateralAsset = domain.AssetID(acct(0x99)) },
			wantErr: domain.ErrNotSupported,
		},
		{
			name:    "unknown verifier",
			mutate:  func(tr *domain.PairTerms) { tr.Verifier = domain.VerifierID(acct(0x99)) },
			wantErr: domain.ErrUnknownVerifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms(clock, asset, verifierID)
			tt.mutate(&terms)
			_, err := f.CreatePair(terms)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreatePair_DuplicateTerms(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f, asset, verifierID := newTestFactory(clock)
	terms := validTerms(clock, asset, verifierID)

	_, err := f.CreatePair(terms)
	require.NoError(t, err)

	_, err = f.CreatePair(terms)
	assert.ErrorIs(t, err, domain.ErrPairExists)
}

func TestCreatePair_DeterministicIdentities(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f, asset, verifierID := newTestFactory(clock)
	terms := validTerms(clock, asset, verifierID)

	// Anyone can compute the identities before the pair exists.
	salt := SaltHash(terms)
	wantOption := DeriveAddress(f.ID(), salt, CodeTagOption)
	wantObligation := DeriveAddress(f.ID(), salt, CodeTagObligation)

	p, err := f.CreatePair(terms)
	require.NoError(t, err)

	assert.Equal(t, wantOption, p.OptionID())
	assert.Equal(t, wantObligation, p.ObligationID())
	assert.NotEqual(t, p.OptionID(), p.ObligationID())

	got, ok := f.PairByObligation(wantObligation)
	require.True(t, ok)
	assert.Same(t, p, got)
	got, ok = f.PairBySalt(salt)
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestSaltHash_SensitiveToEveryTerm(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	base := validTerms(clock, domain.AssetID(acct(0xaa)), domain.VerifierID(acct(0xbb)))
	baseSalt := SaltHash(base)

	mutations := map[string]func(*domain.PairTerms){
		"expiry":   func(tr *domain.PairTerms) { tr.Expiry = tr.Expiry.Add(time.Second) },
		"window":   func(tr *domain.PairTerms) { tr.Window += time.Second },
		"strike":   func(tr *domain.PairTerms) { tr.StrikePrice = decimal.NewFromInt(9001) },
		"asset":    func(tr *domain.PairTerms) { tr.CollateralAsset = domain.AssetID(acct(0xac)) },
		"verifier": func(tr *domain.PairTerms) { tr.Verifier = domain.VerifierID(acct(0xbc)) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			terms := base
			mutate(&terms)
			assert.NotEqual(t, baseSalt, SaltHash(terms))
		})
	}
}

func TestPairs_CreationOrder(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f, asset, verifierID := newTestFactory(clock)

	first := validTerms(clock, asset, verifierID)
	second := validTerms(clock, asset, verifierID)
	second.Expiry = second.Expiry.Add(time.Hour)

	p1, err := f.CreatePair(first)
	require.NoError(t, err)
	p2, err := f.CreatePair(second)
	require.NoError(t, err)

	pairs := f.Pairs()
	require.Len(t, pairs, 2)
	assert.Same(t, p1, pairs[0])
	assert.Same(t, p2, pairs[1])
}

func TestRestorePair(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f, asset, verifierID := newTestFactory(clock)

	terms := validTerms(clock, asset, verifierID)
	created, err := f.CreatePair(terms)
	require.NoError(t, err)

	// A restarted process rebuilds the registry past the terms' expiry.
	clock.now = terms.Expiry.Add(time.Hour)
	f2, _, _ := newTestFactory(clock)

	restored, err := f2.RestorePair(terms)
	require.NoError(t, err)
	assert.Equal(t, created.Details().OptionID, restored.Details().OptionID)
	assert.Equal(t, created.Details().ObligationID, restored.Details().ObligationID)

	_, err = f2.RestorePair(terms)
	assert.ErrorIs(t, err, domain.ErrPairExists)

	bad := terms
	bad.Verifier = domain.VerifierID(acct(0x99))
	_, err = f2.RestorePair(bad)
	assert.ErrorIs(t, err, domain.ErrUnknownVerifier)
}

var _ pair.Verifier = nopVerifier{}
