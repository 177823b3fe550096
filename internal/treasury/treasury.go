// Package treasury custodies one collateral asset across many settlement
// pairs. It owns the per-writer position records, the deposited balances,
// the per-(pair, account) locks, and the allow-list of Obligation identities
// that may move collateral. Collateral only ever leaves through Release.
package treasury

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/btcsettle/btcsettle/internal/domain"
	"github.com/btcsettle/btcsettle/internal/token"
)

// Exiter reports whether a pair's settlement phase is over. The treasury
// consults it before unlocking, so only the pair's own Obligation decides
// when collateral may leave the locked state.
type Exiter interface {
	CanExit() bool
}

// Balance is the collateral view for one (pair, account): the account's
// asset-wide deposit and the slice of it locked behind that pair.
// Invariant: the sum of an account's locks never exceeds its deposit.
type Balance struct {
	Deposited *big.Int
	Locked    *big.Int
}

type lockKey struct {
	pair    domain.Account
	account domain.Account
}

// Treasury custodies one collateral asset.
type Treasury struct {
	asset      domain.AssetID
	decimals   uint8
	id         domain.Account // the account holding deposited collateral
	collateral *token.Ledger  // underlying asset balance book
	clock      domain.Clock

	positions   map[domain.Account]domain.Position
	deposited   map[domain.Account]*big.Int
	lockedTotal map[domain.Account]*big.Int
	locked      map[lockKey]*big.Int
	authorized  map[domain.Account]Exiter
}

// New creates a Treasury for asset with the given precision. The collateral
// ledger is the underlying asset's balance book; deposits move holdings from
// the writer's account to the treasury's derived account.
func New(asset domain.AssetID, decimals uint8, collateral *token.Ledger, clock domain.Clock) *Treasury {
	h := crypto.Keccak256Hash([]byte("treasury"), asset[:])
	var acct domain.Account
	copy(acct[:], h[12:])
	return &Treasury{
		asset:       asset,
		decimals:    decimals,
		id:          acct,
		collateral:  collateral,
		clock:       clock,
		positions:   make(map[domain.Account]domain.Position),
		deposited:   make(map[domain.Account]*big.Int),
		lockedTotal: make(map[domain.Account]*big.Int),
		locked:      make(map[lockKey]*big.Int),
		authorized:  make(map[domain.Account]Exiter),
	}
}

// Asset returns the collateral asset this treasury custodies.
func (t *Treasury) Asset() domain.AssetID { return t.asset }

// Decimals returns the collateral asset's precision.
func (t *Treasury) Decimals() uint8 { return t.decimals }

// Authorize grants an Obligation identity the right to lock, unlock, and
// release collateral. Set once at pair creation; there is no revocation.
func (t *Treasury) Authorize(obligation domain.Account, exiter Exiter) {
	t.authorized[obligation] = exiter
}

// SetPosition records or updates the caller's position. Updating is
// monotonic: a new windowEnd must not end before the current one.
func (t *Treasury) SetPosition(account domain.Account, pos domain.Position) error {
	if !pos.WindowEnd.After(t.clock.Now()) {
		return domain.ErrPositionInvalidExpiry
	}
	if pos.MinStrike.GreaterThan(pos.MaxStrike) {
		return domain.ErrPositionStrikeRangeInvalid
	}
	if cur, ok := t.positions[account]; ok && pos.WindowEnd.Before(cur.WindowEnd) {
		return domain.ErrPositionInvalidExpiry
	}
	t.positions[account] = pos
	return nil
}

// Position returns the account's position, if set.
func (t *Treasury) Position(account domain.Account) (domain.Position, bool) {
	pos, ok := t.positions[account]
	return pos, ok
}

// ReceivingAddress returns the Bitcoin address registered in the account's
// position.
func (t *Treasury) ReceivingAddress(account domain.Account) (domain.BtcAddress, error) {
	pos, ok := t.positions[account]
	if !ok || pos.Receiving.IsZero() {
		return domain.BtcAddress{}, domain.ErrNoBtcAddress
	}
	return pos.Receiving, nil
}

// Deposit pulls the caller's entire un-deposited asset balance into custody
// and returns the amount moved. A position must exist first so every deposit
// is immediately addressable by exercising holders.
func (t *Treasury) Deposit(account domain.Account) (*big.Int, error) {
	if _, ok := t.positions[account]; !ok {
		return nil, domain.ErrPositionNotSet
	}
	amount := t.collateral.BalanceOf(account)
	if amount.Sign() <= 0 {
		return nil, domain.ErrInsufficientDeposit
	}
	if err := t.collateral.Transfer(account, t.id, amount); err != nil {
		return nil, err
	}
	t.amount(t.deposited, account).Add(t.amount(t.deposited, account), amount)
	return amount, nil
}

// Unlocked returns the account's deposit not yet locked behind any pair,
// the amount available to back new obligations.
func (t *Treasury) Unlocked(account domain.Account) *big.Int {
	return new(big.Int).Sub(t.amount(t.deposited, account), t.amount(t.lockedTotal, account))
}

// Lock moves amount from unlocked into the (pair, account) lock and returns
// the account's registered receiving address so the caller can bind it to
// the minted obligation. Only an authorized Obligation may call it.
func (t *Treasury) Lock(caller, pair, account domain.Account, amount *big.Int) (domain.BtcAddress, error) {
	if err := t.requireAuthorized(caller); err != nil {
		return domain.BtcAddress{}, err
	}
	addr, err := t.ReceivingAddress(account)
	if err != nil {
		return domain.BtcAddress{}, err
	}
	if t.Unlocked(account).Cmp(amount) < 0 {
		return domain.BtcAddress{}, domain.ErrInsufficientUnlocked
	}
	key := lockKey{pair: pair, account: account}
	t.lockAmount(key).Add(t.lockAmount(key), amount)
	t.amount(t.lockedTotal, account).Add(t.amount(t.lockedTotal, account), amount)
	return addr, nil
}

// Unlock moves amount from the (pair, account) lock back to unlocked.
// Permitted only once the pair's Obligation reports the settlement phase is
// over.
func (t *Treasury) Unlock(caller, pair, account domain.Account, amount *big.Int) error {
	exiter, ok := t.authorized[caller]
	if !ok {
		return domain.ErrNotAuthorized
	}
	if !exiter.CanExit() {
		return domain.ErrMarketNotExpired
	}
	key := lockKey{pair: pair, account: account}
	if t.lockAmount(key).Cmp(amount) < 0 {
		return domain.ErrInsufficientLocked
	}
	t.lockAmount(key).Sub(t.lockAmount(key), amount)
	t.amount(t.lockedTotal, account).Sub(t.amount(t.lockedTotal, account), amount)
	return nil
}

// Release transfers amount of underlying collateral to `to`, reducing both
// the (pair, from) lock and from's deposit. Used for holder payouts on
// exercise and writer refunds after expiry.
func (t *Treasury) Release(caller, pair, from, to domain.Account, amount *big.Int) error {
	if err := t.requireAuthorized(caller); err != nil {
		return err
	}
	key := lockKey{pair: pair, account: from}
	if t.lockAmount(key).Cmp(amount) < 0 {
		return domain.ErrInsufficientLocked
	}
	if err := t.collateral.Transfer(t.id, to, amount); err != nil {
		return err
	}
	t.lockAmount(key).Sub(t.lockAmount(key), amount)
	t.amount(t.lockedTotal, from).Sub(t.amount(t.lockedTotal, from), amount)
	t.amount(t.deposited, from).Sub(t.amount(t.deposited, from), amount)
	return nil
}

// BalanceOf returns a copy of the collateral view for (pair, account).
func (t *Treasury) BalanceOf(pair, account domain.Account) Balance {
	return Balance{
		Deposited: new(big.Int).Set(t.amount(t.deposited, account)),
		Locked:    new(big.Int).Set(t.lockAmount(lockKey{pair: pair, account: account})),
	}
}

func (t *Treasury) requireAuthorized(caller domain.Account) error {
	if _, ok := t.authorized[caller]; !ok {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (t *Treasury) amount(m map[domain.Account]*big.Int, account domain.Account) *big.Int {
	if v, ok := m[account]; ok {
		return v
	}
	v := new(big.Int)
	m[account] = v
	return v
}

func (t *Treasury) lockAmount(key lockKey) *big.Int {
	if v, ok := t.locked[key]; ok {
		return v
	}
	v := new(big.Int)
	t.locked[key] = v
	return v
}
