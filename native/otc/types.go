package otc

import (
	"fmt"
	"math/big"
)

// OfferStatus tracks the lifecycle of a swap offer. Pending is the only
// non-terminal state; once an offer leaves Pending it never changes again.
type OfferStatus uint8

const (
	OfferPending OfferStatus = iota
	OfferWithdrawn
	OfferAccepted
	OfferRejected
)

// Valid reports whether the status value is within the supported range.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferWithdrawn, OfferAccepted, OfferRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is sticky.
func (s OfferStatus) Terminal() bool {
	return s == OfferWithdrawn || s == OfferAccepted || s == OfferRejected
}

func (s OfferStatus) String() string {
	switch s {
	case OfferPending:
		return "pending"
	case OfferWithdrawn:
		return "withdrawn"
	case OfferAccepted:
		return "accepted"
	case OfferRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Item identifies a single non-fungible asset: the contract it lives in and
// the item identifier within that contract.
type Item struct {
	Token [20]byte
	ID    *big.Int
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	clone := Item{Token: i.Token, ID: big.NewInt(0)}
	if i.ID != nil {
		clone.ID = new(big.Int).Set(i.ID)
	}
	return clone
}

// Offer is a proposed multi-asset swap between a sender and a receiver. The
// offered side is custodied by the settlement engine from creation until a
// terminal transition disposes of it. A zero token address means the fungible
// leg is absent.
type Offer struct {
	ID                   uint64
	Sender               [20]byte
	Receiver             [20]byte
	OfferedNative        *big.Int
	RequestedNative      *big.Int
	OfferedToken         [20]byte
	OfferedTokenAmount   *big.Int
	RequestedToken       [20]byte
	RequestedTokenAmount *big.Int
	OfferedItems         []Item
	RequestedItems       []Item
	CreatedAt            int64
	ValidFor             int64
	Status               OfferStatus
}

// Clone returns a deep copy of the offer so callers can safely mutate the
// copy without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.OfferedNative = cloneBigInt(o.OfferedNative)
	clone.RequestedNative = cloneBigInt(o.RequestedNative)
	clone.OfferedTokenAmount = cloneBigInt(o.OfferedTokenAmount)
	clone.RequestedTokenAmount = cloneBigInt(o.RequestedTokenAmount)
	clone.OfferedItems = cloneItems(o.OfferedItems)
	clone.RequestedItems = cloneItems(o.RequestedItems)
	return &clone
}

// Exists reports whether the offer was ever persisted. Lookups for unknown
// identifiers yield a zero-valued offer, so a zero sender marks absence.
func (o *Offer) Exists() bool {
	return o != nil && o.Sender != ([20]byte{})
}

// Actionable reports whether the offer can still transition: both parties are
// set and the status is Pending. Expiry is deliberately not part of this
// predicate; it only gates acceptance.
func (o *Offer) Actionable() bool {
	if o == nil {
		return false
	}
	return o.Status == OfferPending && o.Sender != ([20]byte{}) && o.Receiver != ([20]byte{})
}

// ExpiredAt reports whether acceptance is no longer allowed at the supplied
// time. The window is half-open: acceptance requires now < CreatedAt+ValidFor.
func (o *Offer) ExpiredAt(now int64) bool {
	if o == nil {
		return true
	}
	return now >= o.CreatedAt+o.ValidFor
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// SanitizeOffer validates the supplied offer and returns a cloned instance
// with non-nil amount fields. The original value is not mutated.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("otc: nil offer")
	}
	clone := o.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("otc: invalid offer status: %d", clone.Status)
	}
	for _, amt := range []*big.Int{clone.OfferedNative, clone.RequestedNative, clone.OfferedTokenAmount, clone.RequestedTokenAmount} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("otc: offer amounts must be non-negative")
		}
	}
	if clone.OfferedToken == ([20]byte{}) && clone.OfferedTokenAmount.Sign() != 0 {
		return nil, fmt.Errorf("otc: offered fungible amount without contract")
	}
	if clone.RequestedToken == ([20]byte{}) && clone.RequestedTokenAmount.Sign() != 0 {
		return nil, fmt.Errorf("otc: requested fungible amount without contract")
	}
	for _, item := range append(append([]Item{}, clone.OfferedItems...), clone.RequestedItems...) {
		if item.Token == ([20]byte{}) {
			return nil, fmt.Errorf("otc: item with zero contract address")
		}
		if item.ID.Sign() < 0 {
			return nil, fmt.Errorf("otc: item id must be non-negative")
		}
	}
	if clone.ValidFor < 0 {
		return nil, fmt.Errorf("otc: negative validity window")
	}
	return clone, nil
}
