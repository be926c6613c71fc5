package otc

import (
	"fmt"
	"math/big"
	"testing"

	"otcswap/core/events"
	"otcswap/core/state"
	"otcswap/core/types"
	"otcswap/storage"
)

// The test custodians persist through the same state manager as the engine,
// mirroring a shared ledger: reverting a failed operation unwinds their
// balance movements together with the module state.

type ledgerNFT struct {
	st       *state.Manager
	contract [20]byte
	failNext bool
}

func newLedgerNFT(st *state.Manager, fill byte) *ledgerNFT {
	return &ledgerNFT{st: st, contract: testAddress(fill)}
}

func (t *ledgerNFT) ownerKey(id *big.Int) []byte {
	return []byte(fmt.Sprintf("test/nft/%x/owner/%s", t.contract, id))
}

func (t *ledgerNFT) approvalKey(id *big.Int) []byte {
	return []byte(fmt.Sprintf("test/nft/%x/approved/%s", t.contract, id))
}

func (t *ledgerNFT) balanceKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("test/nft/%x/balance/%x", t.contract, owner))
}

func (t *ledgerNFT) readAddr(key []byte) ([20]byte, error) {
	var raw []byte
	if _, err := t.st.KVGet(key, &raw); err != nil {
		return [20]byte{}, err
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, nil
}

func (t *ledgerNFT) balance(owner [20]byte) uint64 {
	var count uint64
	if _, err := t.st.KVGet(t.balanceKey(owner), &count); err != nil {
		return 0
	}
	return count
}

func (t *ledgerNFT) mint(tb testing.TB, owner [20]byte, id *big.Int) {
	tb.Helper()
	if err := t.st.KVPut(t.ownerKey(id), owner[:]); err != nil {
		tb.Fatalf("mint owner: %v", err)
	}
	if err := t.st.KVPut(t.balanceKey(owner), t.balance(owner)+1); err != nil {
		tb.Fatalf("mint balance: %v", err)
	}
}

func (t *ledgerNFT) approve(tb testing.TB, spender [20]byte, id *big.Int) {
	tb.Helper()
	if err := t.st.KVPut(t.approvalKey(id), spender[:]); err != nil {
		tb.Fatalf("approve: %v", err)
	}
}

func (t *ledgerNFT) ownerOf(tb testing.TB, id *big.Int) [20]byte {
	tb.Helper()
	owner, err := t.readAddr(t.ownerKey(id))
	if err != nil {
		tb.Fatalf("owner of %s: %v", id, err)
	}
	return owner
}

func (t *ledgerNFT) TransferFrom(from, to [20]byte, id *big.Int) error {
	if t.failNext {
		t.failNext = false
		return fmt.Errorf("transfer rejected")
	}
	owner, err := t.readAddr(t.ownerKey(id))
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("item %s not owned by %x", id, from)
	}
	if err := t.st.KVPut(t.ownerKey(id), to[:]); err != nil {
		return err
	}
	if err := t.st.KVPut(t.balanceKey(from), t.balance(from)-1); err != nil {
		return err
	}
	if err := t.st.KVPut(t.balanceKey(to), t.balance(to)+1); err != nil {
		return err
	}
	return t.st.KVPut(t.approvalKey(id), []byte{})
}

func (t *ledgerNFT) GetApproved(id *big.Int) ([20]byte, error) {
	return t.readAddr(t.approvalKey(id))
}

func (t *ledgerNFT) BalanceOf(owner [20]byte) (*big.Int, error) {
	return new(big.Int).SetUint64(t.balance(owner)), nil
}

type ledgerFT struct {
	st       *state.Manager
	contract [20]byte
	failNext bool
}

func newLedgerFT(st *state.Manager, fill byte) *ledgerFT {
	return &ledgerFT{st: st, contract: testAddress(fill)}
}

func (t *ledgerFT) balanceKey(holder [20]byte) []byte {
	return []byte(fmt.Sprintf("test/ft/%x/balance/%x", t.contract, holder))
}

func (t *ledgerFT) balance(holder [20]byte) *big.Int {
	value := new(big.Int)
	if ok, err := t.st.KVGet(t.balanceKey(holder), value); err != nil || !ok {
		return big.NewInt(0)
	}
	return value
}

func (t *ledgerFT) mint(tb testing.TB, holder [20]byte, amount int64) {
	tb.Helper()
	next := new(big.Int).Add(t.balance(holder), big.NewInt(amount))
	if err := t.st.KVPut(t.balanceKey(holder), next); err != nil {
		tb.Fatalf("mint: %v", err)
	}
}

func (t *ledgerFT) move(from, to [20]byte, amount *big.Int) error {
	if t.failNext {
		t.failNext = false
		return fmt.Errorf("transfer rejected")
	}
	fromBal := t.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	if err := t.st.KVPut(t.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return t.st.KVPut(t.balanceKey(to), new(big.Int).Add(t.balance(to), amount))
}

func (t *ledgerFT) TransferFrom(from, to [20]byte, amount *big.Int) error {
	return t.move(from, to, amount)
}

func (t *ledgerFT) Transfer(to [20]byte, amount *big.Int) error {
	return t.move(CustodyAddress(), to, amount)
}

type eventRecorder struct {
	events []*types.Event
}

func (r *eventRecorder) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	r.events = append(r.events, carrier.Event())
}

func (r *eventRecorder) typesSeen() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

type testEnv struct {
	st       *state.Manager
	engine   *Engine
	registry *TokenRegistry
	recorder *eventRecorder
	owner    [20]byte
	now      int64
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		st:       state.NewManager(storage.NewMemDB()),
		registry: NewTokenRegistry(),
		recorder: &eventRecorder{},
		owner:    testAddress(0xEE),
		now:      1_700_000_000,
	}
	env.engine = NewEngine(env.owner)
	env.engine.SetState(env.st)
	env.engine.SetTokens(env.registry)
	env.engine.SetEmitter(env.recorder)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) fund(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	account, err := env.st.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	account.Balance = new(big.Int).Add(account.Balance, big.NewInt(amount))
	if err := env.st.PutAccount(addr, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func (env *testEnv) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	account, err := env.st.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.Balance
}

func (env *testEnv) setRate(t *testing.T, rate int64) {
	t.Helper()
	if err := env.engine.SetFeeRate(env.owner, big.NewInt(rate)); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
}
