package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// ExerciseService defines the methods the exercise handler requires from the
// service layer.
type ExerciseService interface {
	RequestExercise(ctx context.Context, id string, holder, owner domain.Account, amountOut uint64) (domain.ExerciseRequest, error)
	ExecuteExercise(ctx context.Context, id string, caller domain.Account, requestID uuid.UUID, proof domain.InclusionProof) error
	ReclaimRequest(ctx context.Context, id string, caller domain.Account, requestID uuid.UUID) error
	Refund(ctx context.Context, id string, writer domain.Account, amount *big.Int) error
	Request(ctx context.Context, id string, requestID uuid.UUID) (domain.ExerciseRequest, error)
}

// ExerciseHandler serves the two-phase exercise HTTP endpoints.
type ExerciseHandler struct {
	exercise ExerciseService
	logger   *slog.Logger
}

// NewExerciseHandler creates an ExerciseHandler with the given service and
// logger.
func NewExerciseHandler(exercise ExerciseService, logger *slog.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		exercise: exercise,
		logger:   logger,
	}
}

// requestExerciseRequest is the JSON body for phase one of an exercise.
type requestExerciseRequest struct {
	Holder    string `json:"holder"`
	Owner     string `json:"owner"`
	AmountOut uint64 `json:"amount_out"` // BTC base units
}

// RequestExercise reserves an obligation owner's collateral for the holder
// and returns the request, including the payment nonce the holder must add
// to their Bitcoin payment.
// POST /api/pairs/{id}/exercise/request
func (h *ExerciseHandler) RequestExercise(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req requestExerciseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	holder, ok := parseAccount(req.Holder)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid holder")
		return
	}
	owner, ok := parseAccount(req.Owner)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}

	out, err := h.exercise.RequestExercise(r.Context(), id, holder, owner, req.AmountOut)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: request exercise failed",
			slog.String("pair", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, out)
}

// proofBody is the wire form of an inclusion proof: hashes as hex strings.
type proofBody struct {
	BlockHeight uint64   `json:"block_height"`
	TxIndex     uint32   `json:"tx_index"`
	TxID        string   `json:"txid"`
	MerklePath  []string `json:"merkle_path"`
	RawTx       string   `json:"raw_tx"` // hex
}

func (p proofBody) toProof() (domain.InclusionProof, error) {
	txid, err := chainhash.NewHashFromStr(p.TxID)
	if err != nil {
		return domain.InclusionProof{}, err
	}
	path := make([]chainhash.Hash, 0, len(p.MerklePath))
	for _, s := range p.MerklePath {
		node, err := chainhash.NewHashFromStr(s)
		if err != nil {
			return domain.InclusionProof{}, err
		}
		path = append(path, *node)
	}
	rawTx, err := hex.DecodeString(p.RawTx)
	if err != nil {
		return domain.InclusionProof{}, err
	}
	return domain.InclusionProof{
		BlockHeight: p.BlockHeight,
		TxIndex:     p.TxIndex,
		TxID:        *txid,
		MerklePath:  path,
		RawTx:       rawTx,
	}, nil
}

// executeExerciseRequest is the JSON body for phase two of an exercise.
type executeExerciseRequest struct {
	Caller    string    `json:"caller"`
	RequestID string    `json:"request_id"`
	Proof     proofBody `json:"proof"`
}

// ExecuteExercise settles a pending request against an inclusion proof of
// the holder's Bitcoin payment.
// POST /api/pairs/{id}/exercise/execute
func (h *ExerciseHandler) ExecuteExercise(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req executeExerciseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller")
		return
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request_id")
		return
	}
	proof, err := req.Proof.toProof()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proof encoding")
		return
	}

	if err := h.exercise.ExecuteExercise(r.Context(), id, caller, requestID, proof); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: execute exercise failed",
			slog.String("pair", id),
			slog.String("request", req.RequestID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// reclaimRequest is the JSON body for resolving an unpaid exercise request.
type reclaimRequest struct {
	Caller    string `json:"caller"`
	RequestID string `json:"request_id"`
}

// Reclaim restores the debited obligation of an unpaid request to its owner
// once the exercise window has closed.
// POST /api/pairs/{id}/reclaim
func (h *ExerciseHandler) Reclaim(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req reclaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAccount(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller")
		return
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request_id")
		return
	}

	if err := h.exercise.ReclaimRequest(r.Context(), id, caller, requestID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reclaimed"})
}

// refundRequest is the JSON body for a writer refund.
type refundRequest struct {
	Writer string `json:"writer"`
	Amount string `json:"amount"`
}

// Refund burns obligation balance after the window closes and returns the
// matching collateral to the writer.
// POST /api/pairs/{id}/refund
func (h *ExerciseHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req refundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writer, ok := parseAccount(req.Writer)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid writer")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	if err := h.exercise.Refund(r.Context(), id, writer, amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

// GetRequest returns one exercise request.
// GET /api/pairs/{id}/exercise/{request}
func (h *ExerciseHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	requestID, err := uuid.Parse(pathParam(r, "request"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	req, err := h.exercise.Request(r.Context(), id, requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}
