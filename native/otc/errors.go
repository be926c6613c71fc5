package otc

import "errors"

var (
	// ErrInvalidOffer marks an offer that does not exist, is no longer
	// pending, or carries a zero sender or receiver.
	ErrInvalidOffer = errors.New("otc: invalid offer")
	// ErrUnauthorized marks a caller that is not the required party for the
	// attempted action.
	ErrUnauthorized = errors.New("otc: unauthorized")
	// ErrExpired marks an acceptance attempted at or after the offer's
	// validity window.
	ErrExpired = errors.New("otc: offer expired")
	// ErrInsufficientPayment marks an attached native payment below the
	// required amount.
	ErrInsufficientPayment = errors.New("otc: insufficient payment")
	// ErrTransferFailed wraps any failing external asset-custodian call.
	ErrTransferFailed = errors.New("otc: asset transfer failed")
	// ErrInvalidRate marks a fee rate update with a nil or negative rate.
	ErrInvalidRate = errors.New("otc: fee rate must be non-negative")
	// ErrAlreadyExempt marks an exemption add for a contract already present.
	ErrAlreadyExempt = errors.New("otc: contract already exempt")
	// ErrNotExempt marks an exemption removal for an absent contract.
	ErrNotExempt = errors.New("otc: contract not exempt")
	// ErrNothingToClaim marks a fee claim with a zero pending balance.
	ErrNothingToClaim = errors.New("otc: nothing to claim")

	errNilState            = errors.New("otc engine: state not configured")
	errNilTokens           = errors.New("otc engine: token resolver not configured")
	errInsufficientBalance = errors.New("otc: insufficient native balance")
)
