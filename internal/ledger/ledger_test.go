package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	pool  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newTestToken(t *testing.T) *Token {
	t.Helper()
	tok := NewToken(TokenInfo{Symbol: "GMON", Decimals: 18})
	if err := tok.Mint(alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	return tok
}

func TestTransferFromRequiresAllowance(t *testing.T) {
	tok := newTestToken(t)

	err := tok.TransferFrom(nil, pool, alice, pool, uint256.NewInt(10))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := tok.BalanceOf(alice).Uint64(); got != 1000 {
		t.Fatalf("balance changed: %d", got)
	}

	if _, err := tok.Approve(nil, alice, pool, uint256.NewInt(25)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := tok.TransferFrom(nil, pool, alice, pool, uint256.NewInt(10)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := tok.Allowance(alice, pool).Uint64(); got != 15 {
		t.Fatalf("allowance = %d, want 15", got)
	}
	if got := tok.BalanceOf(pool).Uint64(); got != 10 {
		t.Fatalf("pool balance = %d, want 10", got)
	}
}

func TestTransferFromInfiniteAllowance(t *testing.T) {
	tok := newTestToken(t)
	if _, err := tok.Approve(nil, alice, pool, MaxAllowance); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := tok.TransferFrom(nil, pool, alice, bob, uint256.NewInt(400)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if !tok.Allowance(alice, pool).Eq(MaxAllowance) {
		t.Fatalf("infinite allowance was decremented")
	}
}

func TestTransferFromBalanceCheckedAfterAllowance(t *testing.T) {
	tok := newTestToken(t)
	if _, err := tok.Approve(nil, alice, pool, uint256.NewInt(5000)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	err := tok.TransferFrom(nil, pool, alice, pool, uint256.NewInt(2000))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := tok.Allowance(alice, pool).Uint64(); got != 5000 {
		t.Fatalf("allowance = %d, want 5000", got)
	}
}

func TestJournalRevert(t *testing.T) {
	tok := newTestToken(t)
	native := NewNative()
	if err := native.Credit(bob, uint256.NewInt(50)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := tok.Approve(nil, alice, pool, uint256.NewInt(100)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	j := NewJournal()
	if err := tok.TransferFrom(j, pool, alice, pool, uint256.NewInt(100)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if err := native.Transfer(j, bob, alice, uint256.NewInt(20)); err != nil {
		t.Fatalf("native transfer failed: %v", err)
	}
	if j.Len() == 0 {
		t.Fatalf("journal recorded nothing")
	}
	j.Revert()

	if got := tok.BalanceOf(alice).Uint64(); got != 1000 {
		t.Fatalf("alice token balance = %d, want 1000", got)
	}
	if got := tok.BalanceOf(pool).Uint64(); got != 0 {
		t.Fatalf("pool token balance = %d, want 0", got)
	}
	if got := tok.Allowance(alice, pool).Uint64(); got != 100 {
		t.Fatalf("allowance = %d, want 100", got)
	}
	if got := native.BalanceOf(bob).Uint64(); got != 50 {
		t.Fatalf("bob native = %d, want 50", got)
	}
	if got := native.BalanceOf(alice).Uint64(); got != 0 {
		t.Fatalf("alice native = %d, want 0", got)
	}
}

func TestRevertKeepsInterleavedCredits(t *testing.T) {
	tok := newTestToken(t)
	native := NewNative()
	if err := native.Credit(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := tok.Approve(nil, alice, pool, uint256.NewInt(30)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	j := NewJournal()
	if err := native.Transfer(j, alice, bob, uint256.NewInt(10)); err != nil {
		t.Fatalf("native transfer failed: %v", err)
	}
	if err := tok.TransferFrom(j, pool, alice, pool, uint256.NewInt(30)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if err := native.Credit(alice, uint256.NewInt(5)); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if err := tok.Mint(alice, uint256.NewInt(7)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	j.Revert()

	if got := native.BalanceOf(alice).Uint64(); got != 105 {
		t.Fatalf("alice native = %d, want 105", got)
	}
	if got := native.BalanceOf(bob).Uint64(); got != 0 {
		t.Fatalf("bob native = %d, want 0", got)
	}
	if got := tok.BalanceOf(alice).Uint64(); got != 1007 {
		t.Fatalf("alice token = %d, want 1007", got)
	}
	if got := tok.Allowance(alice, pool).Uint64(); got != 30 {
		t.Fatalf("allowance = %d, want 30", got)
	}
	if !tok.SumBalances().Eq(tok.TotalSupply()) {
		t.Fatalf("sum of balances %s != supply %s", tok.SumBalances().Dec(), tok.TotalSupply().Dec())
	}
}

func TestConcurrentMintsSurviveReverts(t *testing.T) {
	tok := newTestToken(t)
	if _, err := tok.Approve(nil, alice, pool, MaxAllowance); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	const rounds = 2000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			j := NewJournal()
			if err := tok.TransferFrom(j, pool, alice, pool, uint256.NewInt(10)); err != nil {
				t.Errorf("transferFrom failed: %v", err)
				return
			}
			j.Revert()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := tok.Mint(alice, uint256.NewInt(1)); err != nil {
				t.Errorf("mint failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	if got := tok.BalanceOf(alice).Uint64(); got != 1000+rounds {
		t.Fatalf("alice balance = %d, want %d", got, 1000+rounds)
	}
	if got := tok.BalanceOf(pool).Uint64(); got != 0 {
		t.Fatalf("pool balance = %d, want 0", got)
	}
	if !tok.SumBalances().Eq(tok.TotalSupply()) {
		t.Fatalf("sum of balances %s != supply %s", tok.SumBalances().Dec(), tok.TotalSupply().Dec())
	}
}

func TestNativeTransferInsufficient(t *testing.T) {
	native := NewNative()
	err := native.Transfer(nil, alice, bob, uint256.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := AddChecked(MaxAllowance, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if _, err := MulChecked(MaxAllowance, uint256.NewInt(2)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected mul overflow, got %v", err)
	}
	z, err := MulChecked(uint256.NewInt(0), MaxAllowance)
	if err != nil || !z.IsZero() {
		t.Fatalf("zero product: %v %v", z, err)
	}
	z, err = MulChecked(uint256.NewInt(6), uint256.NewInt(7))
	if err != nil || z.Uint64() != 42 {
		t.Fatalf("6*7 = %v (%v)", z, err)
	}
}
