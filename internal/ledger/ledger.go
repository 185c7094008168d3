// Package ledger keeps balances of the native asset and of an ERC-20 style
// token in memory. Mutations go through a Journal so a caller can undo a
// group of transfers when a later step of the same operation fails. Undo
// steps reverse the recorded delta rather than restoring a saved balance, so
// credits made to the same accounts in between survive a revert.
package ledger

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOverflow              = errors.New("amount overflows uint256")
)

// MaxAllowance is treated as an infinite approval and never decremented.
var MaxAllowance = new(uint256.Int).SetAllOne()

// AddChecked returns x+y or ErrOverflow.
func AddChecked(x, y *uint256.Int) (*uint256.Int, error) {
	z := new(uint256.Int).Add(x, y)
	if z.Lt(x) {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulChecked returns x*y or ErrOverflow.
func MulChecked(x, y *uint256.Int) (*uint256.Int, error) {
	z := new(uint256.Int).Mul(x, y)
	if !x.IsZero() && !new(uint256.Int).Div(z, x).Eq(y) {
		return nil, ErrOverflow
	}
	return z, nil
}

// book is a balance table shared by Native and Token.
type book struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
}

func newBook() book {
	return book{balances: make(map[common.Address]*uint256.Int)}
}

func (b *book) balanceOf(owner common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[owner]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// setLocked stores a copy of v. Zero balances are removed from the table.
func (b *book) setLocked(owner common.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(b.balances, owner)
		return
	}
	b.balances[owner] = new(uint256.Int).Set(v)
}

func (b *book) sum() *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := new(uint256.Int)
	for _, v := range b.balances {
		total.Add(total, v)
	}
	return total
}

func (b *book) getLocked(owner common.Address) *uint256.Int {
	if v, ok := b.balances[owner]; ok {
		return v
	}
	return new(uint256.Int)
}

// debitLocked takes amount from owner, or everything the owner holds when
// the balance has fallen below amount.
func (b *book) debitLocked(owner common.Address, amount *uint256.Int) {
	cur := b.getLocked(owner)
	if cur.Lt(amount) {
		b.setLocked(owner, new(uint256.Int))
		return
	}
	b.setLocked(owner, new(uint256.Int).Sub(cur, amount))
}

// creditLocked adds amount to owner, saturating at the uint256 maximum.
func (b *book) creditLocked(owner common.Address, amount *uint256.Int) {
	next, err := AddChecked(b.getLocked(owner), amount)
	if err != nil {
		next = MaxAllowance
	}
	b.setLocked(owner, next)
}

// issueLocked credits to and adds amount to *total, or changes neither.
func (b *book) issueLocked(total **uint256.Int, to common.Address, amount *uint256.Int) error {
	nextTotal, err := AddChecked(*total, amount)
	if err != nil {
		return err
	}
	next, err := AddChecked(b.getLocked(to), amount)
	if err != nil {
		return err
	}
	*total = nextTotal
	b.setLocked(to, next)
	return nil
}

// untransfer moves amount back from to to from.
func (b *book) untransfer(from, to common.Address, amount *uint256.Int) {
	b.mu.Lock()
	b.debitLocked(to, amount)
	b.creditLocked(from, amount)
	b.mu.Unlock()
}

func (b *book) transfer(j *Journal, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		if b.balanceOf(from).Lt(amount) {
			return ErrInsufficientBalance
		}
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	fromPrev := b.getLocked(from)
	if fromPrev.Lt(amount) {
		return ErrInsufficientBalance
	}
	toNext, err := AddChecked(b.getLocked(to), amount)
	if err != nil {
		return err
	}
	b.setLocked(from, new(uint256.Int).Sub(fromPrev, amount))
	b.setLocked(to, toNext)
	amount = new(uint256.Int).Set(amount)
	j.record(func() { b.untransfer(from, to, amount) })
	return nil
}

// Native tracks balances of the chain's native asset.
type Native struct {
	book
	issued *uint256.Int
}

// NewNative returns an empty native balance table.
func NewNative() *Native {
	return &Native{book: newBook(), issued: new(uint256.Int)}
}

// Issued returns the total ever credited from outside the table.
func (n *Native) Issued() *uint256.Int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return new(uint256.Int).Set(n.issued)
}

// SumBalances adds up every balance.
func (n *Native) SumBalances() *uint256.Int {
	return n.sum()
}

// BalanceOf returns a copy of the owner's balance.
func (n *Native) BalanceOf(owner common.Address) *uint256.Int {
	return n.balanceOf(owner)
}

// Credit adds amount to the owner's balance (genesis funding, faucets).
func (n *Native) Credit(to common.Address, amount *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issueLocked(&n.issued, to, amount)
}

// Transfer moves amount from one account to another.
func (n *Native) Transfer(j *Journal, from, to common.Address, amount *uint256.Int) error {
	return n.transfer(j, from, to, amount)
}
