package treasury

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/token"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type stubExiter struct {
	exit bool
}

func (e *stubExiter) CanExit() bool { return e.exit }

func acct(b byte) domain.Account {
	var a domain.Account
	a[19] = b
	return a
}

func position(windowEnd time.Time) domain.Position {
	return domain.Position{
		MinStrike: decimal.NewFromInt(1000),
		MaxStrike: decimal.NewFromInt(90000),
		WindowEnd: windowEnd,
		Receiving: domain.BtcAddress{
			Hash:   [20]byte{0xaa},
			Format: domain.FormatP2WPKH,
		},
	}
}

func newTestTreasury(t *testing.T, clock domain.Clock) (*Treasury, *token.Ledger) {
	t.Helper()
	ledger := token.NewLedger()
	treas := New(acct(0xfe), 6, ledger, clock)
	return treas, ledger
}

func TestSetPosition_Validation(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, _ := newTestTreasury(t, clock)
	writer := acct(1)

	t.Run("window end in the past", func(t *testing.T) {
		pos := position(clock.now.Add(-time.Hour))
		assert.ErrorIs(t, treas.SetPosition(writer, pos), domain.ErrPositionInvalidExpiry)
	})

	t.Run("inverted strike range", func(t *testing.T) {
		pos := position(clock.now.Add(time.Hour))
		pos.MinStrike = decimal.NewFromInt(90000)
		pos.MaxStrike = decimal.NewFromInt(1000)
		assert.ErrorIs(t, treas.SetPosition(writer, pos), domain.ErrPositionStrikeRangeInvalid)
	})

	t.Run("valid position sticks", func(t *testing.T) {
		pos := position(clock.now.Add(time.Hour))
		require.NoError(t, treas.SetPosition(writer, pos))
		got, ok := treas.Position(writer)
		require.True(t, ok)
		assert.True(t, got.WindowEnd.Equal(pos.WindowEnd))
	})
}

func TestSetPosition_WindowEndMonotonic(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, _ := newTestTreasury(t, clock)
	writer := acct(1)

	require.NoError(t, treas.SetPosition(writer, position(clock.now.Add(48*time.Hour))))

	// Shrinking the window would let a writer dodge obligations they already
	// advertised.
	err := treas.SetPosition(writer, position(clock.now.Add(24*time.Hour)))
	assert.ErrorIs(t, err, domain.ErrPositionInvalidExpiry)

	// Extending it is fine.
	assert.NoError(t, treas.SetPosition(writer, position(clock.now.Add(72*time.Hour))))
}

func TestDeposit(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, ledger := newTestTreasury(t, clock)
	writer := acct(1)

	t.Run("requires a position", func(t *testing.T) {
		require.NoError(t, ledger.Mint(writer, big.NewInt(500)))
		_, err := treas.Deposit(writer)
		assert.ErrorIs(t, err, domain.ErrPositionNotSet)
	})

	t.Run("moves the full balance into custody", func(t *testing.T) {
		require.NoError(t, treas.SetPosition(writer, position(clock.now.Add(time.Hour))))
		amount, err := treas.Deposit(writer)
		require.NoError(t, err)
		assert.Equal(t, int64(500), amount.Int64())
		assert.Equal(t, int64(0), ledger.BalanceOf(writer).Int64())
		assert.Equal(t, int64(500), treas.Unlocked(writer).Int64())
	})

	t.Run("empty balance", func(t *testing.T) {
		_, err := treas.Deposit(writer)
		assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)
	})
}

func TestLock_RequiresAuthorization(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, _ := newTestTreasury(t, clock)

	_, err := treas.Lock(acct(9), acct(9), acct(1), big.NewInt(1))

	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestLockUnlockRelease(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, ledger := newTestTreasury(t, clock)
	writer, holder, obligation := acct(1), acct(2), acct(0xb0)
	exiter := &stubExiter{}
	treas.Authorize(obligation, exiter)

	require.NoError(t, ledger.Mint(writer, big.NewInt(1000)))
	require.NoError(t, treas.SetPosition(writer, position(clock.now.Add(time.Hour))))
	_, err := treas.Deposit(writer)
	require.NoError(t, err)

	addr, err := treas.Lock(obligation, obligation, writer, big.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatP2WPKH, addr.Format)
	assert.Equal(t, int64(400), treas.Unlocked(writer).Int64())

	// Locking past the unlocked remainder fails.
	_, err = treas.Lock(obligation, obligation, writer, big.NewInt(401))
	assert.ErrorIs(t, err, domain.ErrInsufficientUnlocked)

	// Unlock is gated on the pair reporting its settlement phase over.
	err = treas.Unlock(obligation, obligation, writer, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrMarketNotExpired)
	exiter.exit = true
	require.NoError(t, treas.Unlock(obligation, obligation, writer, big.NewInt(100)))
	assert.Equal(t, int64(500), treas.Unlocked(writer).Int64())

	// Release pays the holder out of the writer's lock.
	require.NoError(t, treas.Release(obligation, obligation, writer, holder, big.NewInt(500)))
	assert.Equal(t, int64(500), ledger.BalanceOf(holder).Int64())

	bal := treas.BalanceOf(obligation, writer)
	assert.Equal(t, int64(500), bal.Deposited.Int64())
	assert.Equal(t, int64(0), bal.Locked.Int64())

	// The lock is drained; another release must fail.
	err = treas.Release(obligation, obligation, writer, holder, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientLocked)
}

func TestReceivingAddress(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	treas, _ := newTestTreasury(t, clock)
	writer := acct(1)

	_, err := treas.ReceivingAddress(writer)
	assert.ErrorIs(t, err, domain.ErrNoBtcAddress)

	require.NoError(t, treas.SetPosition(writer, position(clock.now.Add(time.Hour))))
	addr, err := treas.ReceivingAddress(writer)
	require.NoError(t, err)
	assert.Equal(t, [20]byte{0xaa}, addr.Hash)
}
