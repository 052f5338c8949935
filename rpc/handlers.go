package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"eventpool/native/rewards"
)

type createPoolParams struct {
	EventID string `json:"eventId"`
	Funder  string `json:"funder"`
	Kind    string `json:"kind"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type topUpParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type allocateParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type allocateBatchParams struct {
	Caller     string   `json:"caller"`
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
}

type claimParams struct {
	Participant string `json:"participant"`
}

type reclaimParams struct {
	Caller string `json:"caller"`
}

type allocationQueryParams struct {
	Participants []string `json:"participants"`
}

type poolJSON struct {
	EventID         string `json:"eventId"`
	Controller      string `json:"controller"`
	Asset           string `json:"asset"`
	Kind            string `json:"kind"`
	PoolAmount      string `json:"poolAmount"`
	AllocatedTotal  string `json:"allocatedTotal"`
	ClaimedAmount   string `json:"claimedAmount"`
	ReclaimedAmount string `json:"reclaimedAmount"`
	CreatedAt       int64  `json:"createdAt"`
	ReclaimedAt     int64  `json:"reclaimedAt,omitempty"`
	Cancelled       bool   `json:"cancelled"`
}

type allocationJSON struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

type claimResult struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

type reclaimResult struct {
	Controller string `json:"controller"`
	Remainder  string `json:"remainder"`
	Cancelled  bool   `json:"cancelled"`
}

func newPoolJSON(pool *rewards.RewardPool) poolJSON {
	return poolJSON{
		EventID:         hex.EncodeToString(pool.EventID[:]),
		Controller:      common.Address(pool.Controller).Hex(),
		Asset:           common.Address(pool.Asset).Hex(),
		Kind:            pool.Kind.String(),
		PoolAmount:      pool.PoolAmount.String(),
		AllocatedTotal:  pool.AllocatedTotal.String(),
		ClaimedAmount:   pool.ClaimedAmount.String(),
		ReclaimedAmount: pool.ReclaimedAmount.String(),
		CreatedAt:       pool.CreatedAt,
		ReclaimedAt:     pool.ReclaimedAt,
		Cancelled:       pool.Cancelled,
	}
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var params createPoolParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	eventID, err := parseEventID(params.EventID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	funder, err := parseAddress("funder", params.Funder)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := rewards.ParseKind(params.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.engine.CreatePool(funder, eventID, kind, asset, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPoolJSON(pool))
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.engine.Pool(eventID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolJSON(pool))
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var params topUpParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.engine.TopUp(caller, eventID, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolJSON(pool))
}

func (s *Server) handleAllocate(bonus bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parseEventID(chi.URLParam(r, "event"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var params allocateParams
		if err := decodeBody(r, &params); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		caller, err := parseAddress("caller", params.Caller)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		recipient, err := parseAddress("recipient", params.Recipient)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		amount, err := parseAmount(params.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var alloc *rewards.Allocation
		if bonus {
			alloc, err = s.engine.AllocateBonus(caller, eventID, recipient, amount)
		} else {
			alloc, err = s.engine.Allocate(caller, eventID, recipient, amount)
		}
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, allocationJSON{
			Participant: common.Address(alloc.Participant).Hex(),
			Amount:      alloc.Amount.String(),
		})
	}
}

func (s *Server) handleAllocateBatch(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var params allocateBatchParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipients := make([][20]byte, len(params.Recipients))
	for i, raw := range params.Recipients {
		recipients[i], err = parseAddress(fmt.Sprintf("recipients[%d]", i), raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	amounts := make([]*big.Int, len(params.Amounts))
	for i, raw := range params.Amounts {
		amounts[i], err = parseAmount(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	pool, err := s.engine.AllocateBatch(caller, eventID, recipients, amounts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolJSON(pool))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var params claimParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	participant, err := parseAddress("participant", params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.engine.Claim(eventID, participant)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{
		Participant: common.Address(participant).Hex(),
		Amount:      amount.String(),
	})
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var params reclaimParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, remainder, err := s.engine.Reclaim(caller, eventID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reclaimResult{
		Controller: common.Address(pool.Controller).Hex(),
		Remainder:  remainder.String(),
		Cancelled:  pool.Cancelled,
	})
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	participant, err := parseAddress("participant", chi.URLParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.engine.AllocationOf(eventID, participant)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocationJSON{
		Participant: common.Address(participant).Hex(),
		Amount:      amount.String(),
	})
}

func (s *Server) handleQueryAllocations(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var params allocationQueryParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	participants := make([][20]byte, len(params.Participants))
	for i, raw := range params.Participants {
		participants[i], err = parseAddress(fmt.Sprintf("participants[%d]", i), raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	amounts, err := s.engine.AllocationsOf(eventID, participants)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]allocationJSON, len(amounts))
	for i := range amounts {
		out[i] = allocationJSON{
			Participant: common.Address(participants[i]).Hex(),
			Amount:      amounts[i].String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func parseEventID(raw string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, fmt.Errorf("event id must be 32 hex-encoded bytes")
	}
	var id [32]byte
	copy(id[:], decoded)
	return id, nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("%s must be a hex-encoded address", field)
	}
	return [20]byte(common.HexToAddress(trimmed)), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, rewards.ErrEventNotFound),
		errors.Is(err, rewards.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, rewards.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, rewards.ErrInvalidRecipient),
		errors.Is(err, rewards.ErrInvalidAsset),
		errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, rewards.ErrLengthMismatch),
		errors.Is(err, rewards.ErrEmptyBatch),
		errors.Is(err, rewards.ErrUnsupportedKind):
		return http.StatusBadRequest
	case errors.Is(err, rewards.ErrPoolExists),
		errors.Is(err, rewards.ErrInsufficientFunds),
		errors.Is(err, rewards.ErrAlreadyClaimed),
		errors.Is(err, rewards.ErrNothingToClaim),
		errors.Is(err, rewards.ErrNotParticipant),
		errors.Is(err, rewards.ErrTimeoutNotReached),
		errors.Is(err, rewards.ErrPoolSettled),
		errors.Is(err, rewards.ErrPoolCancelled):
		return http.StatusConflict
	case errors.Is(err, rewards.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
