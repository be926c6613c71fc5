package otc

import (
	"fmt"
	"math/big"
)

type storeState interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Store provides keyed offer persistence, the monotonic identifier generator,
// and the per-account created/received indices. Identifiers start at zero,
// advance by one, and are never reused even after an offer resolves.
type Store struct {
	st storeState
}

// NewStore creates a store backed by the provided state manager.
func NewStore(st storeState) *Store {
	return &Store{st: st}
}

// storedOffer is the RLP shape of an offer. Timestamps are widened to uint64
// for encoding; the domain type keeps int64 ledger time.
type storedOffer struct {
	ID                   uint64
	Sender               [20]byte
	Receiver             [20]byte
	OfferedNative        *big.Int
	RequestedNative      *big.Int
	OfferedToken         [20]byte
	OfferedTokenAmount   *big.Int
	RequestedToken       [20]byte
	RequestedTokenAmount *big.Int
	OfferedItems         []storedItem
	RequestedItems       []storedItem
	CreatedAt            uint64
	ValidFor             uint64
	Status               uint8
}

type storedItem struct {
	Token [20]byte
	ID    *big.Int
}

func encodeOffer(o *Offer) *storedOffer {
	enc := &storedOffer{
		ID:                   o.ID,
		Sender:               o.Sender,
		Receiver:             o.Receiver,
		OfferedNative:        cloneBigInt(o.OfferedNative),
		RequestedNative:      cloneBigInt(o.RequestedNative),
		OfferedToken:         o.OfferedToken,
		OfferedTokenAmount:   cloneBigInt(o.OfferedTokenAmount),
		RequestedToken:       o.RequestedToken,
		RequestedTokenAmount: cloneBigInt(o.RequestedTokenAmount),
		CreatedAt:            uint64(o.CreatedAt),
		ValidFor:             uint64(o.ValidFor),
		Status:               uint8(o.Status),
	}
	enc.OfferedItems = encodeItems(o.OfferedItems)
	enc.RequestedItems = encodeItems(o.RequestedItems)
	return enc
}

func encodeItems(items []Item) []storedItem {
	out := make([]storedItem, len(items))
	for i, item := range items {
		out[i] = storedItem{Token: item.Token, ID: cloneBigInt(item.ID)}
	}
	return out
}

func (s *storedOffer) decode() *Offer {
	offer := &Offer{
		ID:                   s.ID,
		Sender:               s.Sender,
		Receiver:             s.Receiver,
		OfferedNative:        cloneBigInt(s.OfferedNative),
		RequestedNative:      cloneBigInt(s.RequestedNative),
		OfferedToken:         s.OfferedToken,
		OfferedTokenAmount:   cloneBigInt(s.OfferedTokenAmount),
		RequestedToken:       s.RequestedToken,
		RequestedTokenAmount: cloneBigInt(s.RequestedTokenAmount),
		CreatedAt:            int64(s.CreatedAt),
		ValidFor:             int64(s.ValidFor),
		Status:               OfferStatus(s.Status),
	}
	if len(s.OfferedItems) > 0 {
		offer.OfferedItems = make([]Item, len(s.OfferedItems))
		for i, item := range s.OfferedItems {
			offer.OfferedItems[i] = Item{Token: item.Token, ID: cloneBigInt(item.ID)}
		}
	}
	if len(s.RequestedItems) > 0 {
		offer.RequestedItems = make([]Item, len(s.RequestedItems))
		for i, item := range s.RequestedItems {
			offer.RequestedItems[i] = Item{Token: item.Token, ID: cloneBigInt(item.ID)}
		}
	}
	return offer
}

// Allocate returns the next offer identifier and advances the generator.
func (s *Store) Allocate() (uint64, error) {
	var next uint64
	if _, err := s.st.KVGet(offerCountKey, &next); err != nil {
		return 0, err
	}
	if err := s.st.KVPut(offerCountKey, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// Count returns the total number of offers ever allocated.
func (s *Store) Count() (uint64, error) {
	var count uint64
	if _, err := s.st.KVGet(offerCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Put persists the offer under its identifier.
func (s *Store) Put(o *Offer) error {
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return err
	}
	return s.st.KVPut(offerKey(sanitized.ID), encodeOffer(sanitized))
}

// Get loads the offer stored under the identifier. Unknown identifiers yield
// a zero-valued offer rather than an error; callers check Exists.
func (s *Store) Get(id uint64) (*Offer, error) {
	stored := new(storedOffer)
	ok, err := s.st.KVGet(offerKey(id), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Offer{
			ID:                   id,
			OfferedNative:        big.NewInt(0),
			RequestedNative:      big.NewInt(0),
			OfferedTokenAmount:   big.NewInt(0),
			RequestedTokenAmount: big.NewInt(0),
		}, nil
	}
	return stored.decode(), nil
}

// IndexCreated appends the offer id to the address's created index. Entries
// are append-only and never pruned.
func (s *Store) IndexCreated(addr [20]byte, id uint64) error {
	return s.st.KVAppend(createdIndexKey(addr), encodeOfferID(id))
}

// IndexReceived appends the offer id to the address's received index.
func (s *Store) IndexReceived(addr [20]byte, id uint64) error {
	return s.st.KVAppend(receivedIndexKey(addr), encodeOfferID(id))
}

// UserOffers returns the identifiers of offers the address created and
// offers addressed to it, in append order.
func (s *Store) UserOffers(addr [20]byte) (created, received []uint64, err error) {
	created, err = s.readIndex(createdIndexKey(addr))
	if err != nil {
		return nil, nil, err
	}
	received, err = s.readIndex(receivedIndexKey(addr))
	if err != nil {
		return nil, nil, err
	}
	return created, received, nil
}

func (s *Store) readIndex(key []byte) ([]uint64, error) {
	var raw [][]byte
	if err := s.st.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		id, ok := decodeOfferID(entry)
		if !ok {
			return nil, fmt.Errorf("otc: malformed index entry")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
