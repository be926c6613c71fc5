package otc

import (
	"errors"
	"math/big"
	"testing"
)

func TestFeeLedgerRateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewFeeLedger(env.st)

	rate, err := ledger.Rate()
	if err != nil {
		t.Fatalf("default rate: %v", err)
	}
	if rate.Sign() != 0 {
		t.Fatalf("default rate = %s, want 0", rate)
	}
	if err := ledger.SetRate(big.NewInt(-1)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("negative rate: expected ErrInvalidRate, got %v", err)
	}
	if err := ledger.SetRate(nil); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("nil rate: expected ErrInvalidRate, got %v", err)
	}
	if err := ledger.SetRate(big.NewInt(25)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	rate, err = ledger.Rate()
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("rate = %s, want 25", rate)
	}
}

func TestFeeLedgerExemptions(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewFeeLedger(env.st)
	ledger.SetTokens(env.registry)

	a := testAddress(0xA0)
	b := testAddress(0xB0)
	c := testAddress(0xC0)

	for _, contract := range [][20]byte{a, b, c} {
		if err := ledger.AddExemption(contract); err != nil {
			t.Fatalf("add exemption %x: %v", contract, err)
		}
	}
	if err := ledger.AddExemption(b); !errors.Is(err, ErrAlreadyExempt) {
		t.Fatalf("duplicate add: expected ErrAlreadyExempt, got %v", err)
	}

	// Removal swaps the last entry into the vacated slot.
	if err := ledger.RemoveExemption(a); err != nil {
		t.Fatalf("remove exemption: %v", err)
	}
	list, err := ledger.ExemptList()
	if err != nil {
		t.Fatalf("exempt list: %v", err)
	}
	if len(list) != 2 || list[0] != c || list[1] != b {
		t.Fatalf("unexpected list after removal: %x", list)
	}
	if err := ledger.RemoveExemption(a); !errors.Is(err, ErrNotExempt) {
		t.Fatalf("remove absent: expected ErrNotExempt, got %v", err)
	}
}

func TestFeeLedgerIsExempt(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewFeeLedger(env.st)
	ledger.SetTokens(env.registry)
	holder := testAddress(0x01)

	exempt, err := ledger.IsExempt(holder)
	if err != nil {
		t.Fatalf("empty list check: %v", err)
	}
	if exempt {
		t.Fatalf("exempt with no registered passes")
	}

	pass := newLedgerNFT(env.st, 0xC1)
	env.registry.RegisterNonFungible(pass.contract, pass)
	if err := ledger.AddExemption(pass.contract); err != nil {
		t.Fatalf("add exemption: %v", err)
	}
	// Unregistered contracts in the list are skipped, not fatal.
	if err := ledger.AddExemption(testAddress(0xC2)); err != nil {
		t.Fatalf("add exemption: %v", err)
	}

	exempt, err = ledger.IsExempt(holder)
	if err != nil {
		t.Fatalf("is exempt: %v", err)
	}
	if exempt {
		t.Fatalf("exempt before holding the pass")
	}
	pass.mint(t, holder, big.NewInt(1))
	exempt, err = ledger.IsExempt(holder)
	if err != nil {
		t.Fatalf("is exempt: %v", err)
	}
	if !exempt {
		t.Fatalf("pass holder not exempt")
	}
}

func TestFeeLedgerChargeAndSettle(t *testing.T) {
	env := newTestEnv(t)
	ledger := NewFeeLedger(env.st)
	ledger.SetTokens(env.registry)
	payer := testAddress(0x01)

	charged, err := ledger.Charge(payer)
	if err != nil {
		t.Fatalf("charge at zero rate: %v", err)
	}
	if charged.Sign() != 0 {
		t.Fatalf("charged %s at zero rate", charged)
	}

	if err := ledger.SetRate(big.NewInt(4)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := ledger.Charge(payer); err != nil {
			t.Fatalf("charge %d: %v", i, err)
		}
	}
	collected, claimed, pending, err := ledger.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if collected.Cmp(big.NewInt(12)) != 0 || claimed.Sign() != 0 || pending.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("totals = %s/%s/%s, want 12/0/12", collected, claimed, pending)
	}

	settled, err := ledger.Settle()
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("settled %s, want 12", settled)
	}
	if _, err := ledger.Settle(); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("second settle: expected ErrNothingToClaim, got %v", err)
	}

	// Settlement is cumulative, not a reset.
	if _, err := ledger.Charge(payer); err != nil {
		t.Fatalf("charge after settle: %v", err)
	}
	collected, claimed, pending, err = ledger.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if collected.Cmp(big.NewInt(16)) != 0 || claimed.Cmp(big.NewInt(12)) != 0 || pending.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("totals = %s/%s/%s, want 16/12/4", collected, claimed, pending)
	}
}
