package otc

import (
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// FungibleToken is the consumed interface of a balance-based asset contract.
// Implementations are external to this module and must be treated as
// untrusted; any call may fail. TransferFrom requires prior authorization by
// the holder, Transfer spends the module's own holdings.
//
// Custodians participating in settlement are expected to persist through the
// same journaled ledger state as the engine, so that reverting a failed
// operation also unwinds their balance movements.
type FungibleToken interface {
	TransferFrom(from, to [20]byte, amount *big.Int) error
	Transfer(to [20]byte, amount *big.Int) error
}

// NonFungibleToken is the consumed interface of an item-based asset contract.
type NonFungibleToken interface {
	TransferFrom(from, to [20]byte, itemID *big.Int) error
	GetApproved(itemID *big.Int) ([20]byte, error)
	BalanceOf(owner [20]byte) (*big.Int, error)
}

// TokenResolver maps asset-contract addresses to their implementations.
type TokenResolver interface {
	Fungible(contract [20]byte) (FungibleToken, bool)
	NonFungible(contract [20]byte) (NonFungibleToken, bool)
}

// TokenRegistry is a TokenResolver backed by in-process registration. The
// daemon starts with an empty registry; deployments register ledger-backed
// custodian adapters before serving traffic.
type TokenRegistry struct {
	mu          sync.RWMutex
	fungible    map[[20]byte]FungibleToken
	nonFungible map[[20]byte]NonFungibleToken
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		fungible:    make(map[[20]byte]FungibleToken),
		nonFungible: make(map[[20]byte]NonFungibleToken),
	}
}

func (r *TokenRegistry) RegisterFungible(contract [20]byte, token FungibleToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fungible[contract] = token
}

func (r *TokenRegistry) RegisterNonFungible(contract [20]byte, token NonFungibleToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonFungible[contract] = token
}

func (r *TokenRegistry) Fungible(contract [20]byte) (FungibleToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.fungible[contract]
	return token, ok
}

func (r *TokenRegistry) NonFungible(contract [20]byte) (NonFungibleToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.nonFungible[contract]
	return token, ok
}

var custodyAddress = func() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("otcswap/custody-vault"))
	copy(addr[:], hash[12:])
	return addr
}()

// CustodyAddress returns the ledger address that owns escrowed assets while an
// offer is pending. Non-fungible item transfers into custody must be approved
// to this address.
func CustodyAddress() [20]byte { return custodyAddress }
