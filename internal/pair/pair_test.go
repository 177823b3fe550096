package pair

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/token"
	"github.com/btcsettle/btcsettle/internal/treasury"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// stubVerifier lets tests script the external chain: which proofs verify and
// how much the raw transaction pays the script hash.
type stubVerifier struct {
	inclusionErr error
	paid         uint64
	paidTo       [20]byte
	paidFormat   domain.AddressFormat
}

func (v *stubVerifier) VerifyInclusion(domain.InclusionProof) error { return v.inclusionErr }

func (v *stubVerifier) ExtractOutput(rawTx []byte, scriptHash [20]byte, format domain.AddressFormat) (uint64, []byte) {
	if scriptHash != v.paidTo || format != v.paidFormat {
		return 0, make([]byte, 32)
	}
	return v.paid, make([]byte, 32)
}

func acct(b byte) domain.Account {
	var a domain.Account
	a[19] = b
	return a
}

type fixture struct {
	clock    *testClock
	ledger   *token.Ledger
	treas    *treasury.Treasury
	verifier *stubVerifier
	pair     *Pair

	writer domain.Account
	holder domain.Account
}

// newFixture builds a funded writer with a registered position and a pair
// striking at 9000 on a 6-decimal collateral asset.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	asset := domain.AssetID(acct(0xaa))
	ledger := token.NewLedger()
	treas := treasury.New(asset, 6, ledger, clock)
	verifier := &stubVerifier{
		paidTo:     [20]byte{0xcc},
		paidFormat: domain.FormatP2WPKH,
	}

	terms := domain.PairTerms{
		Expiry:          clock.now.Add(24 * time.Hour),
		Window:          2 * time.Hour,
		StrikePrice:     decimal.NewFromInt(9000),
		CollateralAsset: asset,
		Verifier:        domain.VerifierID(acct(0xbb)),
	}
	optionID, obligationID := acct(0x01), acct(0x02)
	p := New(terms, optionID, obligationID, treas, verifier, clock)
	treas.Authorize(obligationID, p)

	writer, holder := acct(0x10), acct(0x20)
	require.NoError(t, ledger.Mint(writer, amount("9200000000"))) // 9200 units
	require.NoError(t, treas.SetPosition(writer, domain.Position{
		MinStrike: decimal.NewFromInt(1000),
		MaxStrike: decimal.NewFromInt(90000),
		WindowEnd: clock.now.Add(72 * time.Hour),
		Receiving: domain.BtcAddress{Hash: [20]byte{0xcc}, Format: domain.FormatP2WPKH},
	}))
	_, err := treas.Deposit(writer)
	require.NoError(t, err)

	return &fixture{
		clock:    clock,
		ledger:   ledger,
		treas:    treas,
		verifier: verifier,
		pair:     p,
		writer:   writer,
		holder:   holder,
	}
}

func amount(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad amount " + s)
	}
	return n
}

// enterWindow moves the clock just past expiry, into the exercise window.
func (f *fixture) enterWindow() {
	f.clock.now = f.pair.ExpiresAt().Add(time.Minute)
}

// closeWindow moves the clock past the end of the exercise window.
func (f *fixture) closeWindow() {
	f.clock.now = f.pair.WindowCloseAt().Add(time.Minute)
}

func TestMintToWriter(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))

	assert.Equal(t, "9000000000", f.pair.OptionBalance(f.writer).String())
	assert.Equal(t, "9000000000", f.pair.ObligationBalance(f.writer).String())
	assert.Equal(t, "200000000", f.treas.Unlocked(f.writer).String())

	addr, ok := f.pair.ReceivingAddress(f.writer)
	require.True(t, ok)
	assert.Equal(t, [20]byte{0xcc}, addr.Hash)
}

func TestMintToPool(t *testing.T) {
	f := newFixture(t)
	pool := acct(0x30)

	require.NoError(t, f.pair.MintToPool(f.writer, pool, amount("1000000")))

	assert.Equal(t, "1000000", f.pair.OptionBalance(pool).String())
	assert.Equal(t, "0", f.pair.OptionBalance(f.writer).String())
	assert.Equal(t, "1000000", f.pair.ObligationBalance(f.writer).String())
}

func TestMint_Failures(t *testing.T) {
	t.Run("after expiry", func(t *testing.T) {
		f := newFixture(t)
		f.enterWindow()
		assert.ErrorIs(t, f.pair.MintToWriter(f.writer, amount("1")), domain.ErrExpired)
	})

	t.Run("beyond unlocked collateral", func(t *testing.T) {
		f := newFixture(t)
		err := f.pair.MintToWriter(f.writer, amount("9200000001"))
		assert.ErrorIs(t, err, domain.ErrInsufficientUnlocked)
	})

	t.Run("writer without receiving address", func(t *testing.T) {
		f := newFixture(t)
		stranger := acct(0x40)
		require.NoError(t, f.ledger.Mint(stranger, amount("100")))
		err := f.pair.MintToWriter(stranger, amount("100"))
		assert.ErrorIs(t, err, domain.ErrNoBtcHash)
	})
}

func TestTransferObligation_RequiresReceivingAddress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("1000000")))
	buyer := acct(0x40)

	err := f.pair.TransferObligation(f.writer, buyer, amount("500000"))
	assert.ErrorIs(t, err, domain.ErrNoBtcAddress)

	require.NoError(t, f.treas.SetPosition(buyer, domain.Position{
		MinStrike: decimal.NewFromInt(1000),
		MaxStrike: decimal.NewFromInt(90000),
		WindowEnd: f.clock.now.Add(72 * time.Hour),
		Receiving: domain.BtcAddress{Hash: [20]byte{0xdd}, Format: domain.FormatP2SH},
	}))
	require.NoError(t, f.pair.TransferObligation(f.writer, buyer, amount("500000")))

	assert.Equal(t, "500000", f.pair.ObligationBalance(buyer).String())
	addr, ok := f.pair.ReceivingAddress(buyer)
	require.True(t, ok)
	assert.Equal(t, domain.FormatP2SH, addr.Format)
}

func TestRequestExercise_WindowGating(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	require.NoError(t, f.pair.TransferOption(f.writer, f.holder, amount("9000000000")))

	_, err := f.pair.RequestExercise(f.holder, f.writer, 5_000_000_000)
	assert.ErrorIs(t, err, domain.ErrNotExpired)

	f.closeWindow()
	_, err = f.pair.RequestExercise(f.holder, f.writer, 5_000_000_000)
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestRequestExercise_DebitsAtRequestTime(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	require.NoError(t, f.pair.TransferOption(f.writer, f.holder, amount("9000000000")))
	f.enterWindow()

	// 0.5 BTC at strike 9000 on 6 decimals reserves 4500 collateral units.
	req, err := f.pair.RequestExercise(f.holder, f.writer, 5_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, "4500000000", req.AmountCollateral.String())
	assert.Equal(t, uint64(5_000_000_000), req.AmountExternal)
	assert.GreaterOrEqual(t, req.Secret, uint64(1))
	assert.LessOrEqual(t, req.Secret, uint64(9999))
	assert.Equal(t, domain.RequestPending, req.State)

	// Both sides are debited immediately.
	assert.Equal(t, "4500000000", f.pair.ObligationBalance(f.writer).String())
	assert.Equal(t, "4500000000", f.pair.OptionBalance(f.holder).String())

	// A second request while one is pending fails.
	_, err = f.pair.RequestExercise(f.holder, f.writer, 1_000_000_000)
	assert.ErrorIs(t, err, domain.ErrRequestPending)
}

func TestRequestExercise_BalanceChecks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	f.enterWindow()

	t.Run("holder lacks options", func(t *testing.T) {
		_, err := f.pair.RequestExercise(f.holder, f.writer, 1_000_000_000)
		assert.ErrorIs(t, err, domain.ErrTransferExceedsBalance)
	})

	t.Run("owner without receiving address", func(t *testing.T) {
		_, err := f.pair.RequestExercise(f.writer, f.holder, 1_000_000_000)
		assert.ErrorIs(t, err, domain.ErrNoBtcAddress)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := f.pair.RequestExercise(f.holder, f.writer, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestExecuteExercise(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	require.NoError(t, f.pair.TransferOption(f.writer, f.holder, amount("9000000000")))
	f.enterWindow()

	req, err := f.pair.RequestExercise(f.holder, f.writer, 5_000_000_000)
	require.NoError(t, err)

	t.Run("only the holder may execute", func(t *testing.T) {
		err := f.pair.ExecuteExercise(f.writer, req.ID, domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrCallerNotOwner)
	})

	t.Run("unknown request id", func(t *testing.T) {
		err := f.pair.ExecuteExercise(f.holder, uuid.New(), domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrInvalidRequestID)
	})

	t.Run("proof not included", func(t *testing.T) {
		f.verifier.inclusionErr = domain.ErrTxNotIncluded
		err := f.pair.ExecuteExercise(f.holder, req.ID, domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrTxNotIncluded)
		f.verifier.inclusionErr = nil
	})

	t.Run("payment without the nonce fails", func(t *testing.T) {
		f.verifier.paid = req.AmountExternal
		err := f.pair.ExecuteExercise(f.holder, req.ID, domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrInvalidOutputAmount)
	})

	t.Run("overpayment fails", func(t *testing.T) {
		f.verifier.paid = req.ExpectedPayment() + 1
		err := f.pair.ExecuteExercise(f.holder, req.ID, domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrInvalidOutputAmount)
	})

	t.Run("exact payment settles", func(t *testing.T) {
		f.verifier.paid = req.ExpectedPayment()
		require.NoError(t, f.pair.ExecuteExercise(f.holder, req.ID, domain.InclusionProof{}))

		// 4500 collateral units paid out to the holder.
		assert.Equal(t, "4500000000", f.ledger.BalanceOf(f.holder).String())

		got, ok := f.pair.Request(req.ID)
		require.True(t, ok)
		assert.Equal(t, domain.RequestExecuted, got.State)

		// Settled requests cannot run twice.
		err := f.pair.ExecuteExercise(f.holder, req.ID, domain.InclusionProof{})
		assert.ErrorIs(t, err, domain.ErrInvalidRequestID)
	})
}

func TestReclaimRequest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	require.NoError(t, f.pair.TransferOption(f.writer, f.holder, amount("9000000000")))
	f.enterWindow()

	req, err := f.pair.RequestExercise(f.holder, f.writer, 5_000_000_000)
	require.NoError(t, err)

	// Not before the window closes.
	err = f.pair.ReclaimRequest(f.writer, req.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotExpired)

	f.closeWindow()

	// Only a party to the request.
	err = f.pair.ReclaimRequest(acct(0x99), req.ID)
	assert.ErrorIs(t, err, domain.ErrCallerNotOwner)

	require.NoError(t, f.pair.ReclaimRequest(f.writer, req.ID))

	// The owner's obligation is restored; the holder's options stay burned.
	assert.Equal(t, "9000000000", f.pair.ObligationBalance(f.writer).String())
	assert.Equal(t, "4500000000", f.pair.OptionBalance(f.holder).String())

	got, ok := f.pair.Request(req.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RequestAbandoned, got.State)

	// The slot is free again for a refund path, not for re-reclaim.
	err = f.pair.ReclaimRequest(f.writer, req.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidRequestID)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))

	// Not while the window is open.
	err := f.pair.Refund(f.writer, amount("9000000000"))
	assert.ErrorIs(t, err, domain.ErrMarketNotExpired)

	f.closeWindow()

	err = f.pair.Refund(f.writer, amount("9000000001"))
	assert.ErrorIs(t, err, domain.ErrInsufficientObligations)

	require.NoError(t, f.pair.Refund(f.writer, amount("9000000000")))

	// Collateral returned, both token sides burned.
	assert.Equal(t, "9000000000", f.ledger.BalanceOf(f.writer).String())
	assert.Equal(t, "0", f.pair.ObligationBalance(f.writer).String())
	assert.Equal(t, "0", f.pair.OptionBalance(f.writer).String())
	assert.False(t, f.pair.Backed())
}

func TestRefund_CapsOptionBurnAtHeldBalance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pair.MintToWriter(f.writer, amount("9000000000")))
	// Writer sold most options on; only 1000 units remain in hand.
	require.NoError(t, f.pair.TransferOption(f.writer, f.holder, amount("8999999000")))
	f.closeWindow()

	require.NoError(t, f.pair.Refund(f.writer, amount("9000000000")))

	assert.Equal(t, "0", f.pair.OptionBalance(f.writer).String())
	assert.Equal(t, "8999999000", f.pair.OptionBalance(f.holder).String())
}
