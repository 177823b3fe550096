package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsettle/btcsettle/internal/domain"
)

// JournalService defines the methods the journal handler requires from the
// service layer.
type JournalService interface {
	Journal(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error)
}

// JournalHandler serves the audit journal endpoint.
type JournalHandler struct {
	journal JournalService
	logger  *slog.Logger
}

// NewJournalHandler creates a JournalHandler with the given service and
// logger.
func NewJournalHandler(journal JournalService, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{
		journal: journal,
		logger:  logger,
	}
}

// journalEntryView is the JSON shape of one journal entry.
type journalEntryView struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Op        string         `json:"op"`
	Pair      string         `json:"pair,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	AppliedAt time.Time      `json:"applied_at"`
}

// ListJournal returns applied operations in sequence order.
// GET /api/journal?limit=&offset=&since=&until=
func (h *JournalHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, want RFC3339")
			return
		}
		opts.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until, want RFC3339")
			return
		}
		opts.Until = &t
	}

	entries, err := h.journal.Journal(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: journal list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]journalEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, journalEntryView{
			ID:        e.ID.String(),
			Seq:       e.Seq,
			Op:        e.Op,
			Pair:      e.Pair,
			Detail:    e.Detail,
			AppliedAt: e.AppliedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": views,
		"total":   len(views),
	})
}
