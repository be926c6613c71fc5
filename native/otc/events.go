package otc

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"otcswap/core/types"
)

const (
	EventTypeOfferCreated     = "otc.offer.created"
	EventTypeStatusChanged    = "otc.offer.status_changed"
	EventTypeExemptionAdded   = "otc.exemption.added"
	EventTypeExemptionRemoved = "otc.exemption.removed"
	EventTypeFeesClaimed      = "otc.fees.claimed"
)

// NewOfferCreatedEvent returns the canonical event payload for a newly
// created offer.
func NewOfferCreatedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCreated, o)
}

// NewStatusChangedEvent returns the canonical event payload emitted when an
// offer reaches a terminal status.
func NewStatusChangedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeStatusChanged, o)
}

// NewExemptionAddedEvent returns the payload emitted when a contract joins
// the fee exemption set.
func NewExemptionAddedEvent(contract [20]byte) *types.Event {
	return &types.Event{Type: EventTypeExemptionAdded, Attributes: map[string]string{
		"contract": hex.EncodeToString(contract[:]),
	}}
}

// NewExemptionRemovedEvent returns the payload emitted when a contract leaves
// the fee exemption set.
func NewExemptionRemovedEvent(contract [20]byte) *types.Event {
	return &types.Event{Type: EventTypeExemptionRemoved, Attributes: map[string]string{
		"contract": hex.EncodeToString(contract[:]),
	}}
}

// NewFeesClaimedEvent returns the payload emitted when pending fees are paid
// out to the owner.
func NewFeesClaimedEvent(amount *big.Int) *types.Event {
	attrs := map[string]string{"amount": "0"}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeFeesClaimed, Attributes: attrs}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["sender"] = hex.EncodeToString(sanitized.Sender[:])
	attrs["receiver"] = hex.EncodeToString(sanitized.Receiver[:])
	attrs["offeredNative"] = sanitized.OfferedNative.String()
	attrs["requestedNative"] = sanitized.RequestedNative.String()
	attrs["offeredItems"] = strconv.Itoa(len(sanitized.OfferedItems))
	attrs["requestedItems"] = strconv.Itoa(len(sanitized.RequestedItems))
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	attrs["validFor"] = strconv.FormatInt(sanitized.ValidFor, 10)
	attrs["status"] = sanitized.Status.String()
	if sanitized.OfferedToken != ([20]byte{}) {
		attrs["offeredToken"] = hex.EncodeToString(sanitized.OfferedToken[:])
		attrs["offeredTokenAmount"] = sanitized.OfferedTokenAmount.String()
	}
	if sanitized.RequestedToken != ([20]byte{}) {
		attrs["requestedToken"] = hex.EncodeToString(sanitized.RequestedToken[:])
		attrs["requestedTokenAmount"] = sanitized.RequestedTokenAmount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
