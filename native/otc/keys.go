package otc

import "encoding/binary"

var (
	offerPrefix         = []byte("otc/offer/")
	offerCountKey       = []byte("otc/offer/count")
	createdIndexPrefix  = []byte("otc/index/created/")
	receivedIndexPrefix = []byte("otc/index/received/")
	feeRateKey          = []byte("otc/fees/rate")
	feeCollectedKey     = []byte("otc/fees/collected")
	feeClaimedKey       = []byte("otc/fees/claimed")
	feeExemptKey        = []byte("otc/fees/exempt")
)

func offerKey(id uint64) []byte {
	buf := make([]byte, len(offerPrefix)+8)
	copy(buf, offerPrefix)
	binary.BigEndian.PutUint64(buf[len(offerPrefix):], id)
	return buf
}

func createdIndexKey(addr [20]byte) []byte {
	buf := make([]byte, len(createdIndexPrefix)+len(addr))
	copy(buf, createdIndexPrefix)
	copy(buf[len(createdIndexPrefix):], addr[:])
	return buf
}

func receivedIndexKey(addr [20]byte) []byte {
	buf := make([]byte, len(receivedIndexPrefix)+len(addr))
	copy(buf, receivedIndexPrefix)
	copy(buf[len(receivedIndexPrefix):], addr[:])
	return buf
}

func encodeOfferID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeOfferID(buf []byte) (uint64, bool) {
	if len(buf) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(buf), true
}
