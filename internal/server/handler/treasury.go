package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// TreasuryService defines the methods the treasury handler requires from the
// service layer.
type TreasuryService interface {
	SetPosition(ctx context.Context, asset string, account domain.Account, pos domain.Position) error
	Deposit(ctx context.Context, asset string, account domain.Account) (string, error)
	Balance(ctx context.Context, asset, pairID string, account domain.Account) (domain.TreasuryBalance, error)
}

// TreasuryHandler serves collateral custody HTTP endpoints.
type TreasuryHandler struct {
	treasury TreasuryService
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler with the given service and
// logger.
func NewTreasuryHandler(treasury TreasuryService, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		treasury: treasury,
		logger:   logger,
	}
}

// receivingBody is the wire form of a Bitcoin receiving address.
type receivingBody struct {
	Hash   string `json:"hash"` // hex, 20 bytes
	Format string `json:"format"`
}

// setPositionRequest is the JSON body for declaring a writer position.
type setPositionRequest struct {
	Account   string        `json:"account"`
	MinStrike string        `json:"min_strike"`
	MaxStrike string        `json:"max_strike"`
	WindowEnd time.Time     `json:"window_end"`
	Receiving receivingBody `json:"receiving"`
}

// SetPosition declares a writer's strike range, window end, and Bitcoin
// receiving address on one collateral asset.
// POST /api/treasury/{asset}/position
func (h *TreasuryHandler) SetPosition(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")

	var req setPositionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, ok := parseAccount(req.Account)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}
	minStrike, err := decimal.NewFromString(req.MinStrike)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_strike")
		return
	}
	maxStrike, err := decimal.NewFromString(req.MaxStrike)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_strike")
		return
	}
	hash, err := domain.ParseHash160(req.Receiving.Hash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiving hash")
		return
	}
	format := domain.AddressFormat(req.Receiving.Format)
	if !format.Valid() {
		writeError(w, http.StatusBadRequest, "format must be p2sh, p2pkh, or p2wpkh")
		return
	}

	pos := domain.Position{
		MinStrike: minStrike,
		MaxStrike: maxStrike,
		WindowEnd: req.WindowEnd,
		Receiving: domain.BtcAddress{Hash: hash, Format: format},
	}
	if err := h.treasury.SetPosition(r.Context(), asset, account, pos); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set position failed",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "position set"})
}

// depositRequest is the JSON body for a collateral deposit.
type depositRequest struct {
	Account string `json:"account"`
}

// Deposit pulls the account's full asset balance into treasury custody.
// POST /api/treasury/{asset}/deposit
func (h *TreasuryHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")

	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, ok := parseAccount(req.Account)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}

	amount, err := h.treasury.Deposit(r.Context(), asset, account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: deposit failed",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deposited",
		"amount": amount,
	})
}

// GetBalance returns an account's collateral view on one treasury.
// GET /api/treasury/{asset}/balance?pair=0x...&account=0x...
func (h *TreasuryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	asset := pathParam(r, "asset")
	account, ok := parseAccount(r.URL.Query().Get("account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}
	pairID := r.URL.Query().Get("pair")

	balance, err := h.treasury.Balance(r.Context(), asset, pairID, account)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}
