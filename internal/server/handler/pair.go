package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// PairService defines the methods the pair handler requires from the service
// layer. It is declared locally so the handler package does not depend on
// the concrete service implementation.
type PairService interface {
	CreatePair(ctx context.Context, terms domain.PairTerms) (domain.PairDetails, error)
	GetPair(ctx context.Context, id string) (domain.PairDetails, error)
	ListPairs(ctx context.Context) []domain.PairDetails
	Balances(ctx context.Context, id string, account domain.Account) (domain.PairBalances, error)
	Sellers(ctx context.Context, id string) ([]domain.Seller, error)
	Write(ctx context.Context, id string, writer, pool domain.Account, amount *big.Int) error
	TransferOption(ctx context.Context, id string, from, to domain.Account, amount *big.Int) error
	TransferObligation(ctx context.Context, id string, from, to domain.Account, amount *big.Int) error
}

// PairHandler serves pair lifecycle HTTP endpoints.
type PairHandler struct {
	pairs  PairService
	logger *slog.Logger
}

// NewPairHandler creates a PairHandler with the given service and logger.
func NewPairHandler(pairs PairService, logger *slog.Logger) *PairHandler {
	return &PairHandler{
		pairs:  pairs,
		logger: logger,
	}
}

// createPairRequest is the JSON body for pair creation.
type createPairRequest struct {
	Expiry          time.Time `json:"expiry"`
	WindowSeconds   int64     `json:"window_seconds"`
	StrikePrice     string    `json:"strike_price"`
	CollateralAsset string    `json:"collateral_asset"`
	Verifier        string    `json:"verifier"`
}

// CreatePair creates a settlement pair from immutable terms.
// POST /api/pairs
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req createPairRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strike, err := decimal.NewFromString(req.StrikePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid strike_price")
		return
	}
	asset, ok := parseAccount(req.CollateralAsset)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid collateral_asset")
		return
	}
	verifier, ok := parseAccount(req.Verifier)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid verifier")
		return
	}

	terms := domain.PairTerms{
		Expiry:          req.Expiry,
		Window:          time.Duration(req.WindowSeconds) * time.Second,
		StrikePrice:     strike,
		CollateralAsset: domain.AssetID(asset),
		Verifier:        domain.VerifierID(verifier),
	}

	details, err := h.pairs.CreatePair(r.Context(), terms)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create pair failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, details)
}

// listPairsResponse wraps the list endpoint output with metadata.
type listPairsResponse struct {
	Pairs []domain.PairDetails `json:"pairs"`
	Total int                  `json:"total"`
}

// ListPairs returns every created pair.
// GET /api/pairs
func (h *PairHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs := h.pairs.ListPairs(r.Context())
	writeJSON(w, http.StatusOK, listPairsResponse{
		Pairs: pairs,
		Total: len(pairs),
	})
}

// GetPair returns the detail view of a single pair.
// GET /api/pairs/{id}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pair id")
		return
	}

	details, err := h.pairs.GetPair(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// GetBalances returns an account's option and obligation balances.
// GET /api/pairs/{id}/balances?account=0x...
func (h *PairHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	account, ok := parseAccount(r.URL.Query().Get("account"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account")
		return
	}

	balances, err := h.pairs.Balances(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balances)
}

// ListSellers enumerates obligation holders a request can exercise against.
// GET /api/pairs/{id}/sellers
func (h *PairHandler) ListSellers(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	sellers, err := h.pairs.Sellers(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sellers": sellers,
		"total":   len(sellers),
	})
}

// writeRequest is the JSON body for writing (minting) a pair.
type writeRequest struct {
	Writer string `json:"writer"`
	Pool   string `json:"pool,omitempty"`
	Amount string `json:"amount"`
}

// WritePair locks collateral and mints option/obligation balance.
// POST /api/pairs/{id}/write
func (h *PairHandler) WritePair(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req writeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writer, ok := parseAccount(req.Writer)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid writer")
		return
	}
	var pool domain.Account
	if req.Pool != "" {
		if pool, ok = parseAccount(req.Pool); !ok {
			writeError(w, http.StatusBadRequest, "invalid pool")
			return
		}
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	if err := h.pairs.Write(r.Context(), id, writer, pool, amount); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: write pair failed",
			slog.String("pair", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}

// transferRequest is the JSON body for option/obligation transfers.
type transferRequest struct {
	Kind   string `json:"kind"` // "option" or "obligation"
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Transfer moves option or obligation balance between accounts.
// POST /api/pairs/{id}/transfer
func (h *PairHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	from, ok := parseAccount(req.From)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, ok := parseAccount(req.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	var err error
	switch req.Kind {
	case "option":
		err = h.pairs.TransferOption(r.Context(), id, from, to, amount)
	case "obligation":
		err = h.pairs.TransferObligation(r.Context(), id, from, to, amount)
	default:
		writeError(w, http.StatusBadRequest, "kind must be option or obligation")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}
