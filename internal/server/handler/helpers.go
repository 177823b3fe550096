package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps protocol errors onto HTTP status codes and writes
// the error message. Unknown errors become a generic 500 so internals never
// leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPairNotFound),
		errors.Is(err, domain.ErrInvalidRequestID),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCallerNotOwner),
		errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrPairExists),
		errors.Is(err, domain.ErrRequestPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInitExpired),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotExpired),
		errors.Is(err, domain.ErrWindowZero),
		errors.Is(err, domain.ErrMarketNotExpired),
		errors.Is(err, domain.ErrPositionNotSet),
		errors.Is(err, domain.ErrPositionInvalidExpiry),
		errors.Is(err, domain.ErrPositionStrikeRangeInvalid),
		errors.Is(err, domain.ErrInsufficientDeposit),
		errors.Is(err, domain.ErrInsufficientLocked),
		errors.Is(err, domain.ErrInsufficientUnlocked),
		errors.Is(err, domain.ErrNoBtcAddress),
		errors.Is(err, domain.ErrNoBtcHash),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInsufficientObligations),
		errors.Is(err, domain.ErrTransferExceedsBalance),
		errors.Is(err, domain.ErrInvalidOutputAmount),
		errors.Is(err, domain.ErrTxNotIncluded),
		errors.Is(err, domain.ErrInvalidOutHash),
		errors.Is(err, domain.ErrNotSupported),
		errors.Is(err, domain.ErrNoTreasury),
		errors.Is(err, domain.ErrZeroStrikePrice),
		errors.Is(err, domain.ErrUnknownVerifier):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes the request body as JSON into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseAccount parses a hex account identifier.
func parseAccount(s string) (domain.Account, bool) {
	if !common.IsHexAddress(s) {
		return domain.Account{}, false
	}
	return domain.Account(common.HexToAddress(s)), true
}

// parseAmount parses a base-10 big integer amount.
func parseAmount(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
