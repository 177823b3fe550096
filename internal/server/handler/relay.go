package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
)

// RelayService defines the methods the relay handler requires from the
// service layer.
type RelayService interface {
	SubmitHeader(ctx context.Context, height uint64, raw []byte) error
}

// RelayHandler serves the Bitcoin header relay endpoint.
type RelayHandler struct {
	relay  RelayService
	logger *slog.Logger
}

// NewRelayHandler creates a RelayHandler with the given service and logger.
func NewRelayHandler(relay RelayService, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		relay:  relay,
		logger: logger,
	}
}

// submitHeaderRequest is the JSON body for a header submission.
type submitHeaderRequest struct {
	Height uint64 `json:"height"`
	Header string `json:"header"` // 80 bytes, hex
}

// SubmitHeader stores a serialized block header at a height so inclusion
// proofs against that block become verifiable.
// POST /api/relay/headers
func (h *RelayHandler) SubmitHeader(w http.ResponseWriter, r *http.Request) {
	var req submitHeaderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw, err := hex.DecodeString(req.Header)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid header encoding")
		return
	}

	if err := h.relay.SubmitHeader(r.Context(), req.Height, raw); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: submit header failed",
			slog.Uint64("height", req.Height),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "accepted",
		"height": req.Height,
	})
}
