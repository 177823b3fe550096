package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btcsettle/btcsettle/internal/domain"
)

func acct(b byte) domain.Account {
	var a domain.Account
	a[19] = b
	return a
}

func TestLedger_MintAndBalance(t *testing.T) {
	l := NewLedger()
	alice := acct(1)

	require.NoError(t, l.Mint(alice, big.NewInt(100)))
	require.NoError(t, l.Mint(alice, big.NewInt(50)))

	assert.Equal(t, int64(150), l.BalanceOf(alice).Int64())
	assert.Equal(t, int64(150), l.TotalSupply().Int64())
}

func TestLedger_MintRejectsNonPositive(t *testing.T) {
	l := NewLedger()

	assert.ErrorIs(t, l.Mint(acct(1), big.NewInt(0)), domain.ErrInvalidRequest)
	assert.ErrorIs(t, l.Mint(acct(1), big.NewInt(-5)), domain.ErrInvalidRequest)
	assert.ErrorIs(t, l.Mint(acct(1), nil), domain.ErrInvalidRequest)
}

func TestLedger_Transfer(t *testing.T) {
	l := NewLedger()
	alice, bob := acct(1), acct(2)
	require.NoError(t, l.Mint(alice, big.NewInt(100)))

	require.NoError(t, l.Transfer(alice, bob, big.NewInt(40)))

	assert.Equal(t, int64(60), l.BalanceOf(alice).Int64())
	assert.Equal(t, int64(40), l.BalanceOf(bob).Int64())
	assert.Equal(t, int64(100), l.TotalSupply().Int64())
}

func TestLedger_TransferExceedsBalance(t *testing.T) {
	l := NewLedger()
	alice, bob := acct(1), acct(2)
	require.NoError(t, l.Mint(alice, big.NewInt(10)))

	err := l.Transfer(alice, bob, big.NewInt(11))

	assert.ErrorIs(t, err, domain.ErrTransferExceedsBalance)
	assert.Equal(t, int64(10), l.BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), l.BalanceOf(bob).Int64())
}

func TestLedger_Burn(t *testing.T) {
	l := NewLedger()
	alice := acct(1)
	require.NoError(t, l.Mint(alice, big.NewInt(100)))

	require.NoError(t, l.Burn(alice, big.NewInt(30)))
	assert.Equal(t, int64(70), l.BalanceOf(alice).Int64())
	assert.Equal(t, int64(70), l.TotalSupply().Int64())

	assert.ErrorIs(t, l.Burn(alice, big.NewInt(71)), domain.ErrTransferExceedsBalance)
}

func TestLedger_HoldersOmitsEmptied(t *testing.T) {
	l := NewLedger()
	alice, bob := acct(1), acct(2)
	require.NoError(t, l.Mint(alice, big.NewInt(5)))
	require.NoError(t, l.Mint(bob, big.NewInt(5)))
	require.NoError(t, l.Burn(bob, big.NewInt(5)))

	holders := l.Holders()

	assert.Equal(t, []domain.Account{alice}, holders)
}

func TestLedger_BalanceOfReturnsCopy(t *testing.T) {
	l := NewLedger()
	alice := acct(1)
	require.NoError(t, l.Mint(alice, big.NewInt(10)))

	l.BalanceOf(alice).SetInt64(999)

	assert.Equal(t, int64(10), l.BalanceOf(alice).Int64())
}
