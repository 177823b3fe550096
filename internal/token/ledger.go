// Package token implements the generic fungible ledger both halves of a
// settlement pair are built from: a balance book with mint, burn, and
// transfer, plus enumeration for the read model. Option and Obligation are
// two independent instances of this one abstraction; the pair composes them
// with its own state machine rather than specialising the ledger itself.
//
// The ledger is not internally synchronized. The service layer serializes
// every state-mutating operation, mirroring the globally-ordered execution
// log the protocol assumes.
package token

import (
	"math/big"
	"sort"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// Ledger tracks fungible balances for one token instance.
type Ledger struct {
	balances map[domain.Account]*big.Int
	total    *big.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[domain.Account]*big.Int),
		total:    new(big.Int),
	}
}

// BalanceOf returns the balance of account. The returned value is a copy.
func (l *Ledger) BalanceOf(account domain.Account) *big.Int {
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TotalSupply returns the outstanding supply as a copy.
func (l *Ledger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.total)
}

// Mint credits amount to account and grows total supply.
func (l *Ledger) Mint(account domain.Account, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidRequest
	}
	l.credit(account, amount)
	l.total.Add(l.total, amount)
	return nil
}

// Burn debits amount from account and shrinks total supply. It fails with
// ErrTransferExceedsBalance when the account holds less than amount; no
// partial debit happens.
func (l *Ledger) Burn(account domain.Account, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidRequest
	}
	if err := l.debit(account, amount); err != nil {
		return err
	}
	l.total.Sub(l.total, amount)
	return nil
}

// Transfer moves amount between accounts atomically.
func (l *Ledger) Transfer(from, to domain.Account, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidRequest
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Holders returns every account with a non-zero balance, sorted by address
// bytes so enumeration is deterministic.
func (l *Ledger) Holders() []domain.Account {
	out := make([]domain.Account, 0, len(l.balances))
	for acct, bal := range l.balances {
		if bal.Sign() > 0 {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

func (l *Ledger) credit(account domain.Account, amount *big.Int) {
	if b, ok := l.balances[account]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[account] = new(big.Int).Set(amount)
}

func (l *Ledger) debit(account domain.Account, amount *big.Int) error {
	b, ok := l.balances[account]
	if !ok || b.Cmp(amount) < 0 {
		return domain.ErrTransferExceedsBalance
	}
	b.Sub(b, amount)
	if b.Sign() == 0 {
		delete(l.balances, account)
	}
	return nil
}
