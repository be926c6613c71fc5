package otc

import (
	"math/big"
	"testing"
)

func TestOfferStatusStrings(t *testing.T) {
	cases := map[OfferStatus]string{
		OfferPending:   "pending",
		OfferWithdrawn: "withdrawn",
		OfferAccepted:  "accepted",
		OfferRejected:  "rejected",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("status %d string = %q, want %q", status, got, want)
		}
	}
	if OfferStatus(42).Valid() {
		t.Fatalf("out-of-range status reported valid")
	}
	if OfferPending.Terminal() {
		t.Fatalf("pending must not be terminal")
	}
	for _, status := range []OfferStatus{OfferWithdrawn, OfferAccepted, OfferRejected} {
		if !status.Terminal() {
			t.Fatalf("%s must be terminal", status)
		}
	}
}

func TestOfferExpiry(t *testing.T) {
	offer := &Offer{CreatedAt: 1000, ValidFor: 60}
	if offer.ExpiredAt(1059) {
		t.Fatalf("expired one second early")
	}
	if !offer.ExpiredAt(1060) {
		t.Fatalf("not expired at the boundary")
	}
	if !offer.ExpiredAt(2000) {
		t.Fatalf("not expired well past the boundary")
	}
}

func TestOfferCloneIsDeep(t *testing.T) {
	offer := &Offer{
		Sender:        testAddress(0x01),
		Receiver:      testAddress(0x02),
		OfferedNative: big.NewInt(5),
		OfferedItems:  []Item{{Token: testAddress(0xA1), ID: big.NewInt(7)}},
	}
	clone := offer.Clone()
	clone.OfferedNative.SetInt64(99)
	clone.OfferedItems[0].ID.SetInt64(99)
	if offer.OfferedNative.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("clone shares native amount")
	}
	if offer.OfferedItems[0].ID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("clone shares item id")
	}
}

func TestSanitizeOffer(t *testing.T) {
	valid := func() *Offer {
		return &Offer{
			Sender:        testAddress(0x01),
			Receiver:      testAddress(0x02),
			OfferedNative: big.NewInt(1),
			ValidFor:      60,
		}
	}
	if _, err := SanitizeOffer(valid()); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}

	mutations := map[string]func(*Offer){
		"negative native":          func(o *Offer) { o.OfferedNative = big.NewInt(-1) },
		"amount without token":     func(o *Offer) { o.OfferedTokenAmount = big.NewInt(5) },
		"zero item contract":       func(o *Offer) { o.OfferedItems = []Item{{ID: big.NewInt(1)}} },
		"negative item id":         func(o *Offer) { o.RequestedItems = []Item{{Token: testAddress(0xA1), ID: big.NewInt(-1)}} },
		"negative validity window": func(o *Offer) { o.ValidFor = -1 },
		"invalid status":           func(o *Offer) { o.Status = OfferStatus(42) },
	}
	for name, mutate := range mutations {
		offer := valid()
		mutate(offer)
		if _, err := SanitizeOffer(offer); err == nil {
			t.Fatalf("%s: sanitize accepted invalid offer", name)
		}
	}
}

func TestOfferActionable(t *testing.T) {
	offer := &Offer{Sender: testAddress(0x01), Receiver: testAddress(0x02), Status: OfferPending}
	if !offer.Actionable() {
		t.Fatalf("pending offer not actionable")
	}
	offer.Status = OfferAccepted
	if offer.Actionable() {
		t.Fatalf("settled offer actionable")
	}
	if (&Offer{Status: OfferPending}).Actionable() {
		t.Fatalf("offer without parties actionable")
	}
}
