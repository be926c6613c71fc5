package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	nativecommon "otcswap/native/common"
	"otcswap/native/otc"
	"otcswap/observability"
)

const (
	codeOTCInvalidParams = -32021
	codeOTCNotFound      = -32022
	codeOTCForbidden     = -32023
	codeOTCConflict      = -32024
	codeOTCInternal      = -32025
	codeOTCPaused        = -32026
)

type offerItemParams struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

type createOfferParams struct {
	Caller               string            `json:"caller"`
	Receiver             string            `json:"receiver"`
	OfferedNative        string            `json:"offeredNative,omitempty"`
	RequestedNative      string            `json:"requestedNative,omitempty"`
	OfferedToken         string            `json:"offeredToken,omitempty"`
	OfferedTokenAmount   string            `json:"offeredTokenAmount,omitempty"`
	RequestedToken       string            `json:"requestedToken,omitempty"`
	RequestedTokenAmount string            `json:"requestedTokenAmount,omitempty"`
	OfferedItems         []offerItemParams `json:"offeredItems,omitempty"`
	RequestedItems       []offerItemParams `json:"requestedItems,omitempty"`
	ValidFor             int64             `json:"validFor"`
	Attached             string            `json:"attached,omitempty"`
}

type offerActionParams struct {
	Caller   string `json:"caller"`
	ID       uint64 `json:"id"`
	Attached string `json:"attached,omitempty"`
}

type offerIDParams struct {
	ID uint64 `json:"id"`
}

type addressParams struct {
	Address string `json:"address"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type feeRateParams struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

type exemptionParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
}

type offerItemJSON struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

type offerJSON struct {
	ID                   uint64          `json:"id"`
	Sender               string          `json:"sender"`
	Receiver             string          `json:"receiver"`
	OfferedNative        string          `json:"offeredNative"`
	RequestedNative      string          `json:"requestedNative"`
	OfferedToken         string          `json:"offeredToken,omitempty"`
	OfferedTokenAmount   string          `json:"offeredTokenAmount,omitempty"`
	RequestedToken       string          `json:"requestedToken,omitempty"`
	RequestedTokenAmount string          `json:"requestedTokenAmount,omitempty"`
	OfferedItems         []offerItemJSON `json:"offeredItems,omitempty"`
	RequestedItems       []offerItemJSON `json:"requestedItems,omitempty"`
	CreatedAt            int64           `json:"createdAt"`
	ValidFor             int64           `json:"validFor"`
	Status               string          `json:"status"`
}

type userOffersResult struct {
	Address  string   `json:"address"`
	Created  []uint64 `json:"created"`
	Received []uint64 `json:"received"`
}

type feeInfoResult struct {
	Rate      string `json:"rate"`
	Collected string `json:"collected"`
	Claimed   string `json:"claimed"`
	Pending   string `json:"pending"`
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

func parseItems(params []offerItemParams) ([]otc.Item, error) {
	if len(params) == 0 {
		return nil, nil
	}
	items := make([]otc.Item, 0, len(params))
	for _, p := range params {
		token, err := parseAddress(p.Token)
		if err != nil {
			return nil, err
		}
		id, ok := new(big.Int).SetString(strings.TrimSpace(p.ID), 10)
		if !ok || id.Sign() < 0 {
			return nil, fmt.Errorf("invalid item id %q", p.ID)
		}
		items = append(items, otc.Item{Token: token, ID: id})
	}
	return items, nil
}

func formatAddress(addr [20]byte) string {
	return ethcommon.BytesToAddress(addr[:]).Hex()
}

func formatOptionalToken(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return formatAddress(addr)
}

func formatItems(items []otc.Item) []offerItemJSON {
	if len(items) == 0 {
		return nil
	}
	out := make([]offerItemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, offerItemJSON{Token: formatAddress(item.Token), ID: item.ID.String()})
	}
	return out
}

func formatOffer(o *otc.Offer) *offerJSON {
	result := &offerJSON{
		ID:              o.ID,
		Sender:          formatAddress(o.Sender),
		Receiver:        formatAddress(o.Receiver),
		OfferedNative:   o.OfferedNative.String(),
		RequestedNative: o.RequestedNative.String(),
		OfferedToken:    formatOptionalToken(o.OfferedToken),
		RequestedToken:  formatOptionalToken(o.RequestedToken),
		OfferedItems:    formatItems(o.OfferedItems),
		RequestedItems:  formatItems(o.RequestedItems),
		CreatedAt:       o.CreatedAt,
		ValidFor:        o.ValidFor,
		Status:          o.Status.String(),
	}
	if o.OfferedTokenAmount != nil && o.OfferedTokenAmount.Sign() > 0 {
		result.OfferedTokenAmount = o.OfferedTokenAmount.String()
	}
	if o.RequestedTokenAmount != nil && o.RequestedTokenAmount.Sign() > 0 {
		result.RequestedTokenAmount = o.RequestedTokenAmount.String()
	}
	return result
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeEngineError maps engine sentinel errors onto the module error codes.
func writeEngineError(w http.ResponseWriter, req *RPCRequest, operation string, err error) {
	observability.Swap().RecordFailure(operation)
	switch {
	case errors.Is(err, otc.ErrUnauthorized):
		writeError(w, http.StatusForbidden, req.ID, codeOTCForbidden, "forbidden", err.Error())
	case errors.Is(err, otc.ErrInvalidOffer),
		errors.Is(err, otc.ErrInvalidRate),
		errors.Is(err, otc.ErrAlreadyExempt),
		errors.Is(err, otc.ErrNotExempt):
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, otc.ErrExpired),
		errors.Is(err, otc.ErrInsufficientPayment),
		errors.Is(err, otc.ErrTransferFailed),
		errors.Is(err, otc.ErrNothingToClaim):
		writeError(w, http.StatusConflict, req.ID, codeOTCConflict, "conflict", err.Error())
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeOTCPaused, "module_paused", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createOfferParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	receiver, err := parseAddress(params.Receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	create := otc.CreateParams{Receiver: receiver, ValidFor: params.ValidFor}
	if create.OfferedNative, err = parseAmount(params.OfferedNative); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if create.RequestedNative, err = parseAmount(params.RequestedNative); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if create.OfferedTokenAmount, err = parseAmount(params.OfferedTokenAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if create.RequestedTokenAmount, err = parseAmount(params.RequestedTokenAmount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(params.OfferedToken) != "" {
		if create.OfferedToken, err = parseAddress(params.OfferedToken); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if strings.TrimSpace(params.RequestedToken) != "" {
		if create.RequestedToken, err = parseAddress(params.RequestedToken); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if create.OfferedItems, err = parseItems(params.OfferedItems); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if create.RequestedItems, err = parseItems(params.RequestedItems); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	attached, err := parseAmount(params.Attached)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}

	offer, err := s.engine.CreateOffer(caller, create, attached)
	if err != nil {
		writeEngineError(w, req, "create", err)
		return
	}
	observability.Swap().RecordTransition(offer.Status.String())
	writeResult(w, req.ID, formatOffer(offer))
}

func (s *Server) resolveAction(w http.ResponseWriter, req *RPCRequest, operation string, run func(caller [20]byte, id uint64, attached *big.Int) error) {
	var params offerActionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	attached, err := parseAmount(params.Attached)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := run(caller, params.ID, attached); err != nil {
		writeEngineError(w, req, operation, err)
		return
	}
	offer, err := s.engine.GetOffer(params.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	observability.Swap().RecordTransition(offer.Status.String())
	writeResult(w, req.ID, formatOffer(offer))
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.resolveAction(w, req, "accept", func(caller [20]byte, id uint64, attached *big.Int) error {
		return s.engine.AcceptOffer(caller, id, attached)
	})
}

func (s *Server) handleRejectOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.resolveAction(w, req, "reject", func(caller [20]byte, id uint64, _ *big.Int) error {
		return s.engine.RejectOffer(caller, id)
	})
}

func (s *Server) handleWithdrawOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.resolveAction(w, req, "withdraw", func(caller [20]byte, id uint64, _ *big.Int) error {
		return s.engine.WithdrawOffer(caller, id)
	})
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params offerIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, err := s.engine.GetOffer(params.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	if !offer.Exists() {
		writeError(w, http.StatusNotFound, req.ID, codeOTCNotFound, "not_found", fmt.Sprintf("offer %d does not exist", params.ID))
		return
	}
	writeResult(w, req.ID, formatOffer(offer))
}

func (s *Server) handleUserOffers(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	created, received, err := s.engine.UserOffers(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, userOffersResult{
		Address:  formatAddress(addr),
		Created:  created,
		Received: received,
	})
}

func (s *Server) handleOfferCount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	count, err := s.engine.OfferCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleFeeInfo(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	rate, err := s.engine.FeeRate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	collected, claimed, pending, err := s.engine.FeeTotals()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, feeInfoResult{
		Rate:      rate.String(),
		Collected: collected.String(),
		Claimed:   claimed.String(),
		Pending:   pending.String(),
	})
}

func (s *Server) handleExemptList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	list, err := s.engine.ExemptList()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeOTCInternal, "internal_error", err.Error())
		return
	}
	out := make([]string, 0, len(list))
	for _, contract := range list {
		out = append(out, formatAddress(contract))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params feeRateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	rate, err := parseAmount(params.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetFeeRate(caller, rate); err != nil {
		writeEngineError(w, req, "setFeeRate", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"rate": rate.String()})
}

func (s *Server) exemptionAction(w http.ResponseWriter, req *RPCRequest, operation string, run func(caller, contract [20]byte) error) {
	var params exemptionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := run(caller, contract); err != nil {
		writeEngineError(w, req, operation, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"contract": formatAddress(contract)})
}

func (s *Server) handleAddExemption(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.exemptionAction(w, req, "addExemption", s.engine.AddExemption)
}

func (s *Server) handleRemoveExemption(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.exemptionAction(w, req, "removeExemption", s.engine.RemoveExemption)
}

func (s *Server) handleClaimFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeOTCInvalidParams, "invalid_params", err.Error())
		return
	}
	claimed, err := s.engine.ClaimFees(caller)
	if err != nil {
		writeEngineError(w, req, "claimFees", err)
		return
	}
	observability.Swap().RecordFeeClaim()
	writeResult(w, req.ID, map[string]string{"claimed": claimed.String()})
}
