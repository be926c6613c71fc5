package otc

import (
	"fmt"
	"math/big"
)

type feeState interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
}

// FeeLedger tracks the flat per-offer creation fee, the cumulative collected
// and claimed totals, and the set of fee-exempt asset contracts. Holders of a
// positive balance in any exempt non-fungible contract skip the fee.
type FeeLedger struct {
	st     feeState
	tokens TokenResolver
}

// NewFeeLedger creates a fee ledger backed by the provided state manager.
func NewFeeLedger(st feeState) *FeeLedger {
	return &FeeLedger{st: st}
}

// SetTokens configures the resolver used for exemption balance queries.
func (l *FeeLedger) SetTokens(r TokenResolver) { l.tokens = r }

func (l *FeeLedger) readAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := l.st.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// Rate returns the current flat fee per offer in native-currency units.
func (l *FeeLedger) Rate() (*big.Int, error) {
	return l.readAmount(feeRateKey)
}

// SetRate updates the fee applied to subsequent charges. Fees already
// collected for outstanding offers are unaffected.
func (l *FeeLedger) SetRate(rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}
	return l.st.KVPut(feeRateKey, new(big.Int).Set(rate))
}

// ExemptList returns the current exemption set. Ordering inside the set is
// not meaningful.
func (l *FeeLedger) ExemptList() ([][20]byte, error) {
	var raw [][]byte
	ok, err := l.st.KVGet(feeExemptKey, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][20]byte{}, nil
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("otc: malformed exemption entry")
		}
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}

func (l *FeeLedger) writeExemptList(list [][20]byte) error {
	raw := make([][]byte, len(list))
	for i, addr := range list {
		raw[i] = append([]byte(nil), addr[:]...)
	}
	return l.st.KVPut(feeExemptKey, raw)
}

// AddExemption adds the contract to the exemption set.
func (l *FeeLedger) AddExemption(contract [20]byte) error {
	list, err := l.ExemptList()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == contract {
			return ErrAlreadyExempt
		}
	}
	return l.writeExemptList(append(list, contract))
}

// RemoveExemption removes the contract from the exemption set by swapping it
// with the last entry and popping.
func (l *FeeLedger) RemoveExemption(contract [20]byte) error {
	list, err := l.ExemptList()
	if err != nil {
		return err
	}
	for i, existing := range list {
		if existing == contract {
			list[i] = list[len(list)-1]
			return l.writeExemptList(list[:len(list)-1])
		}
	}
	return ErrNotExempt
}

// IsExempt reports whether the address holds a positive balance of any
// contract in the exemption set. The scan is linear and short-circuits on the
// first match; the set is admin-curated and expected small.
func (l *FeeLedger) IsExempt(addr [20]byte) (bool, error) {
	list, err := l.ExemptList()
	if err != nil {
		return false, err
	}
	if len(list) == 0 {
		return false, nil
	}
	if l.tokens == nil {
		return false, errNilTokens
	}
	for _, contract := range list {
		token, ok := l.tokens.NonFungible(contract)
		if !ok {
			continue
		}
		balance, err := token.BalanceOf(addr)
		if err != nil {
			return false, fmt.Errorf("%w: exempt balance query: %v", ErrTransferFailed, err)
		}
		if balance != nil && balance.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Charge collects the creation fee from the payer unless the payer is exempt.
// The returned amount is what the payer owes; the ledger mutates only on the
// non-exempt path.
func (l *FeeLedger) Charge(payer [20]byte) (*big.Int, error) {
	exempt, err := l.IsExempt(payer)
	if err != nil {
		return nil, err
	}
	if exempt {
		return big.NewInt(0), nil
	}
	rate, err := l.Rate()
	if err != nil {
		return nil, err
	}
	if rate.Sign() == 0 {
		return big.NewInt(0), nil
	}
	collected, err := l.readAmount(feeCollectedKey)
	if err != nil {
		return nil, err
	}
	if err := l.st.KVPut(feeCollectedKey, new(big.Int).Add(collected, rate)); err != nil {
		return nil, err
	}
	return rate, nil
}

// Totals returns the cumulative collected and claimed totals plus the pending
// difference.
func (l *FeeLedger) Totals() (collected, claimed, pending *big.Int, err error) {
	collected, err = l.readAmount(feeCollectedKey)
	if err != nil {
		return nil, nil, nil, err
	}
	claimed, err = l.readAmount(feeClaimedKey)
	if err != nil {
		return nil, nil, nil, err
	}
	return collected, claimed, new(big.Int).Sub(collected, claimed), nil
}

// Settle marks every pending fee as claimed and returns the settled amount.
// The caller moves the corresponding native currency out of custody.
func (l *FeeLedger) Settle() (*big.Int, error) {
	collected, _, pending, err := l.Totals()
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	if err := l.st.KVPut(feeClaimedKey, collected); err != nil {
		return nil, err
	}
	return pending, nil
}
