package otc

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"otcswap/core/events"
	"otcswap/core/types"
	nativecommon "otcswap/native/common"
)

const moduleName = "otc"

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	Snapshot() int
	RevertToSnapshot(snap int)
	Commit() error
}

type otcEvent struct {
	evt *types.Event
}

func (e otcEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e otcEvent) Event() *types.Event { return e.evt }

// Engine drives the offer lifecycle and settlement: escrow intake on
// creation, the ordered multi-asset transfer sequences on acceptance,
// rejection and withdrawal, and the fee accounting layered on top.
//
// Every externally visible operation runs under a single mutex, giving the
// total-order execution a ledger provides natively. Each operation takes a
// state snapshot on entry, reverts it on failure, and commits the state on
// success, so a failed operation leaves no partial effect and a successful
// one reaches the backing store before the call returns. Terminal status
// transitions are persisted before the outbound transfer sequence runs; a
// reentrant call against the same offer id observes a terminal offer and
// fails the pending check.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	store   *Store
	fees    *FeeLedger
	tokens  TokenResolver
	emitter events.Emitter
	pauses  nativecommon.PauseView
	owner   [20]byte
	nowFn   func() int64
}

// NewEngine creates an engine whose privileged operations are restricted to
// the supplied owner address.
func NewEngine(owner [20]byte) *Engine {
	return &Engine{
		owner:   owner,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine and rebuilds the
// offer store and fee ledger over it.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.store = NewStore(state)
	e.fees = NewFeeLedger(state)
	e.fees.SetTokens(e.tokens)
}

// SetTokens configures the asset-custodian resolver.
func (e *Engine) SetTokens(r TokenResolver) {
	e.tokens = r
	if e.fees != nil {
		e.fees.SetTokens(r)
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view consulted before mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Owner returns the privileged administrator address.
func (e *Engine) Owner() [20]byte { return e.owner }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(otcEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) transferNative(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("otc: negative native transfer")
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return errInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// attach moves the caller's attached native payment into custody. The whole
// attached value is custodied; offered and requested amounts are paid out of
// custody during settlement. Only a short balance maps to
// ErrInsufficientPayment; backend failures pass through untouched.
func (e *Engine) attach(caller [20]byte, attached *big.Int) error {
	if attached.Sign() == 0 {
		return nil
	}
	if err := e.transferNative(caller, custodyAddress, attached); err != nil {
		if errors.Is(err, errInsufficientBalance) {
			return fmt.Errorf("%w: attached payment", ErrInsufficientPayment)
		}
		return err
	}
	return nil
}

// moveItem transfers an item on behalf of its holder. The holder must have
// approved the custody address for the item beforehand.
func (e *Engine) moveItem(item Item, from, to [20]byte) error {
	token, ok := e.tokens.NonFungible(item.Token)
	if !ok {
		return fmt.Errorf("%w: unknown item contract %x", ErrTransferFailed, item.Token)
	}
	approved, err := token.GetApproved(item.ID)
	if err != nil {
		return fmt.Errorf("%w: approval query: %v", ErrTransferFailed, err)
	}
	if approved != custodyAddress {
		return fmt.Errorf("%w: item %s not approved for custody", ErrTransferFailed, item.ID)
	}
	if err := token.TransferFrom(from, to, item.ID); err != nil {
		return fmt.Errorf("%w: item transfer: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) sendItem(item Item, to [20]byte) error {
	token, ok := e.tokens.NonFungible(item.Token)
	if !ok {
		return fmt.Errorf("%w: unknown item contract %x", ErrTransferFailed, item.Token)
	}
	if err := token.TransferFrom(custodyAddress, to, item.ID); err != nil {
		return fmt.Errorf("%w: item payout: %v", ErrTransferFailed, err)
	}
	return nil
}

// CreateParams captures the asset legs of a new offer.
type CreateParams struct {
	Receiver             [20]byte
	OfferedNative        *big.Int
	RequestedNative      *big.Int
	OfferedToken         [20]byte
	OfferedTokenAmount   *big.Int
	RequestedToken       [20]byte
	RequestedTokenAmount *big.Int
	OfferedItems         []Item
	RequestedItems       []Item
	ValidFor             int64
}

// CreateOffer escrows the offered assets, charges the creation fee, and
// persists the offer as Pending. The caller must attach at least the fee
// plus the offered native amount (the fee is zero for exempt callers).
func (e *Engine) CreateOffer(caller [20]byte, params CreateParams, attached *big.Int) (*Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller == ([20]byte{}) || params.Receiver == ([20]byte{}) {
		return nil, ErrInvalidOffer
	}
	if params.ValidFor <= 0 {
		return nil, fmt.Errorf("%w: validity window must be positive", ErrInvalidOffer)
	}
	draft := &Offer{
		Sender:               caller,
		Receiver:             params.Receiver,
		OfferedNative:        cloneBigInt(params.OfferedNative),
		RequestedNative:      cloneBigInt(params.RequestedNative),
		OfferedToken:         params.OfferedToken,
		OfferedTokenAmount:   cloneBigInt(params.OfferedTokenAmount),
		RequestedToken:       params.RequestedToken,
		RequestedTokenAmount: cloneBigInt(params.RequestedTokenAmount),
		OfferedItems:         cloneItems(params.OfferedItems),
		RequestedItems:       cloneItems(params.RequestedItems),
		ValidFor:             params.ValidFor,
		Status:               OfferPending,
	}
	sanitized, err := SanitizeOffer(draft)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	snap := e.state.Snapshot()
	offer, err := e.createLocked(caller, sanitized, cloneBigInt(attached))
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		return nil, err
	}
	e.emit(NewOfferCreatedEvent(offer))
	return offer.Clone(), nil
}

func (e *Engine) createLocked(caller [20]byte, offer *Offer, attached *big.Int) (*Offer, error) {
	for _, item := range offer.OfferedItems {
		if err := e.moveItem(item, caller, custodyAddress); err != nil {
			return nil, err
		}
	}
	if offer.OfferedToken != ([20]byte{}) && offer.OfferedTokenAmount.Sign() > 0 {
		token, ok := e.tokens.Fungible(offer.OfferedToken)
		if !ok {
			return nil, fmt.Errorf("%w: unknown fungible contract %x", ErrTransferFailed, offer.OfferedToken)
		}
		if err := token.TransferFrom(caller, custodyAddress, offer.OfferedTokenAmount); err != nil {
			return nil, fmt.Errorf("%w: fungible intake: %v", ErrTransferFailed, err)
		}
	}
	fee, err := e.fees.Charge(caller)
	if err != nil {
		return nil, err
	}
	required := new(big.Int).Add(fee, offer.OfferedNative)
	if attached.Cmp(required) < 0 {
		return nil, ErrInsufficientPayment
	}
	if err := e.attach(caller, attached); err != nil {
		return nil, err
	}
	id, err := e.store.Allocate()
	if err != nil {
		return nil, err
	}
	offer.ID = id
	offer.CreatedAt = e.now()
	if err := e.store.Put(offer); err != nil {
		return nil, err
	}
	if err := e.store.IndexCreated(offer.Sender, id); err != nil {
		return nil, err
	}
	if err := e.store.IndexReceived(offer.Receiver, id); err != nil {
		return nil, err
	}
	return offer, nil
}

func (e *Engine) loadActionable(id uint64) (*Offer, error) {
	offer, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !offer.Exists() || !offer.Actionable() {
		return nil, ErrInvalidOffer
	}
	return offer, nil
}

// AcceptOffer settles the swap in favour of both parties. Only the receiver
// may accept, strictly before expiry, attaching at least the requested native
// amount.
func (e *Engine) AcceptOffer(caller [20]byte, id uint64, attached *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	offer, err := e.loadActionable(id)
	if err != nil {
		return err
	}
	if caller != offer.Receiver {
		return ErrUnauthorized
	}
	if offer.ExpiredAt(e.now()) {
		return ErrExpired
	}
	value := cloneBigInt(attached)
	if value.Cmp(offer.RequestedNative) < 0 {
		return ErrInsufficientPayment
	}
	snap := e.state.Snapshot()
	if err := e.acceptLocked(offer, value); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(NewStatusChangedEvent(offer))
	return nil
}

func (e *Engine) acceptLocked(offer *Offer, attached *big.Int) error {
	if err := e.attach(offer.Receiver, attached); err != nil {
		return err
	}
	// Commit the terminal status before any outbound transfer so reentrant
	// calls against this id cannot settle the same escrow twice.
	offer.Status = OfferAccepted
	if err := e.store.Put(offer); err != nil {
		return err
	}
	for _, item := range offer.OfferedItems {
		if err := e.sendItem(item, offer.Receiver); err != nil {
			return err
		}
	}
	for _, item := range offer.RequestedItems {
		if err := e.moveItem(item, offer.Receiver, offer.Sender); err != nil {
			return err
		}
	}
	if offer.OfferedNative.Sign() > 0 {
		if err := e.transferNative(custodyAddress, offer.Receiver, offer.OfferedNative); err != nil {
			return err
		}
	}
	if offer.RequestedNative.Sign() > 0 {
		if err := e.transferNative(custodyAddress, offer.Sender, offer.RequestedNative); err != nil {
			return err
		}
	}
	if offer.RequestedToken != ([20]byte{}) && offer.RequestedTokenAmount.Sign() > 0 {
		token, ok := e.tokens.Fungible(offer.RequestedToken)
		if !ok {
			return fmt.Errorf("%w: unknown fungible contract %x", ErrTransferFailed, offer.RequestedToken)
		}
		if err := token.TransferFrom(offer.Receiver, offer.Sender, offer.RequestedTokenAmount); err != nil {
			return fmt.Errorf("%w: requested fungible: %v", ErrTransferFailed, err)
		}
	}
	if offer.OfferedToken != ([20]byte{}) && offer.OfferedTokenAmount.Sign() > 0 {
		token, ok := e.tokens.Fungible(offer.OfferedToken)
		if !ok {
			return fmt.Errorf("%w: unknown fungible contract %x", ErrTransferFailed, offer.OfferedToken)
		}
		if err := token.Transfer(offer.Receiver, offer.OfferedTokenAmount); err != nil {
			return fmt.Errorf("%w: offered fungible: %v", ErrTransferFailed, err)
		}
	}
	return nil
}

// RejectOffer returns the escrowed assets to the sender. Only the receiver
// may reject; rejection stays available after expiry.
func (e *Engine) RejectOffer(caller [20]byte, id uint64) error {
	return e.resolve(caller, id, OfferRejected)
}

// WithdrawOffer returns the escrowed assets to the sender. Only the sender
// may withdraw; withdrawal stays available after expiry.
func (e *Engine) WithdrawOffer(caller [20]byte, id uint64) error {
	return e.resolve(caller, id, OfferWithdrawn)
}

func (e *Engine) resolve(caller [20]byte, id uint64, status OfferStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	offer, err := e.loadActionable(id)
	if err != nil {
		return err
	}
	switch status {
	case OfferRejected:
		if caller != offer.Receiver {
			return ErrUnauthorized
		}
	case OfferWithdrawn:
		if caller != offer.Sender {
			return ErrUnauthorized
		}
	default:
		return fmt.Errorf("otc: resolve to non-terminal status %s", status)
	}
	snap := e.state.Snapshot()
	if err := e.returnEscrow(offer, status); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(NewStatusChangedEvent(offer))
	return nil
}

func (e *Engine) returnEscrow(offer *Offer, status OfferStatus) error {
	offer.Status = status
	if err := e.store.Put(offer); err != nil {
		return err
	}
	for _, item := range offer.OfferedItems {
		if err := e.sendItem(item, offer.Sender); err != nil {
			return err
		}
	}
	if offer.OfferedNative.Sign() > 0 {
		if err := e.transferNative(custodyAddress, offer.Sender, offer.OfferedNative); err != nil {
			return err
		}
	}
	if offer.OfferedToken != ([20]byte{}) && offer.OfferedTokenAmount.Sign() > 0 {
		token, ok := e.tokens.Fungible(offer.OfferedToken)
		if !ok {
			return fmt.Errorf("%w: unknown fungible contract %x", ErrTransferFailed, offer.OfferedToken)
		}
		if err := token.Transfer(offer.Sender, offer.OfferedTokenAmount); err != nil {
			return fmt.Errorf("%w: escrow return: %v", ErrTransferFailed, err)
		}
	}
	return nil
}

// SetFeeRate updates the creation fee. Restricted to the owner; takes effect
// for subsequent charges only.
func (e *Engine) SetFeeRate(caller [20]byte, rate *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if err := e.fees.SetRate(rate); err != nil {
		return err
	}
	return e.state.Commit()
}

// AddExemption adds a non-fungible contract whose holders skip the creation
// fee. Restricted to the owner.
func (e *Engine) AddExemption(caller [20]byte, contract [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if err := e.fees.AddExemption(contract); err != nil {
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(NewExemptionAddedEvent(contract))
	return nil
}

// RemoveExemption removes a contract from the exemption set. Restricted to
// the owner.
func (e *Engine) RemoveExemption(caller [20]byte, contract [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if err := e.fees.RemoveExemption(contract); err != nil {
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(NewExemptionRemovedEvent(contract))
	return nil
}

// ClaimFees pays every pending fee out of custody to the owner. Restricted to
// the owner.
func (e *Engine) ClaimFees(caller [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if caller != e.owner {
		return nil, ErrUnauthorized
	}
	snap := e.state.Snapshot()
	pending, err := e.fees.Settle()
	if err != nil {
		return nil, err
	}
	if err := e.transferNative(custodyAddress, e.owner, pending); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		return nil, err
	}
	e.emit(NewFeesClaimedEvent(pending))
	return pending, nil
}

// GetOffer returns the offer stored under the identifier. Unknown
// identifiers yield a zero-valued offer; callers check Exists.
func (e *Engine) GetOffer(id uint64) (*Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.store.Get(id)
}

// UserOffers returns the identifiers of offers the address created and
// received.
func (e *Engine) UserOffers(addr [20]byte) (created, received []uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, nil, errNilState
	}
	return e.store.UserOffers(addr)
}

// OfferCount returns the total number of offers ever allocated.
func (e *Engine) OfferCount() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	return e.store.Count()
}

// FeeRate returns the current creation fee.
func (e *Engine) FeeRate() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.fees.Rate()
}

// FeeTotals returns the cumulative collected and claimed fee totals plus the
// pending difference.
func (e *Engine) FeeTotals() (collected, claimed, pending *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, nil, nil, errNilState
	}
	return e.fees.Totals()
}

// ExemptList returns the fee exemption set.
func (e *Engine) ExemptList() ([][20]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	return e.fees.ExemptList()
}
