package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenInfo is the static metadata of a token.
type TokenInfo struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// Token is an ERC-20 style ledger with balances and allowances.
type Token struct {
	book
	info TokenInfo

	allowances map[common.Address]map[common.Address]*uint256.Int
	supply     *uint256.Int
}

// NewToken returns a token with no balances.
func NewToken(info TokenInfo) *Token {
	return &Token{
		book:       newBook(),
		info:       info,
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:     new(uint256.Int),
	}
}

func (t *Token) Info() TokenInfo { return t.info }

// BalanceOf returns a copy of the owner's balance.
func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	return t.balanceOf(owner)
}

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.supply)
}

// SumBalances adds up every balance. It equals TotalSupply.
func (t *Token) SumBalances() *uint256.Int {
	return t.sum()
}

// Allowance returns how much spender may pull from owner.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.allowanceLocked(owner, spender))
}

func (t *Token) allowanceLocked(owner, spender common.Address) *uint256.Int {
	if m, ok := t.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return v
		}
	}
	return new(uint256.Int)
}

func (t *Token) setAllowanceLocked(owner, spender common.Address, v *uint256.Int) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(v)
}

// Approve overwrites the allowance of spender over owner's tokens.
func (t *Token) Approve(j *Journal, owner, spender common.Address, amount *uint256.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := new(uint256.Int).Set(t.allowanceLocked(owner, spender))
	t.setAllowanceLocked(owner, spender, amount)
	j.record(func() {
		t.mu.Lock()
		t.setAllowanceLocked(owner, spender, prev)
		t.mu.Unlock()
	})
	return true, nil
}

// Mint creates amount new tokens for to.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issueLocked(&t.supply, to, amount)
}

// Transfer moves tokens owned by from.
func (t *Token) Transfer(j *Journal, from, to common.Address, amount *uint256.Int) error {
	return t.transfer(j, from, to, amount)
}

// TransferFrom moves tokens from owner to to on behalf of spender. The
// allowance is checked before the balance.
func (t *Token) TransferFrom(j *Journal, spender, owner, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	allowed := new(uint256.Int).Set(t.allowanceLocked(owner, spender))
	if allowed.Lt(amount) {
		t.mu.Unlock()
		return ErrInsufficientAllowance
	}
	if t.getLocked(owner).Lt(amount) {
		t.mu.Unlock()
		return ErrInsufficientBalance
	}
	infinite := allowed.Eq(MaxAllowance)
	if !infinite {
		t.setAllowanceLocked(owner, spender, new(uint256.Int).Sub(allowed, amount))
	}
	t.mu.Unlock()

	amount = new(uint256.Int).Set(amount)
	if err := t.transfer(j, owner, to, amount); err != nil {
		if !infinite {
			t.refundAllowance(owner, spender, amount)
		}
		return err
	}
	if !infinite {
		j.record(func() { t.refundAllowance(owner, spender, amount) })
	}
	return nil
}

// refundAllowance adds amount back to the allowance. An infinite allowance
// is left as it is.
func (t *Token) refundAllowance(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.allowanceLocked(owner, spender)
	if cur.Eq(MaxAllowance) {
		return
	}
	next, err := AddChecked(cur, amount)
	if err != nil {
		next = MaxAllowance
	}
	t.setAllowanceLocked(owner, spender, next)
}
