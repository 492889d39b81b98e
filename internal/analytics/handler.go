package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// HistorySource lists persisted snapshots, newest first.
type HistorySource interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

const maxHistory = 500

type Handler struct {
	aggregator *Aggregator
	collector  *Collector
	history    HistorySource
	logger     *slog.Logger
}

// NewHandler serves aggregator stats. collector may be nil.
func NewHandler(aggregator *Aggregator, collector *Collector) *Handler {
	return &Handler{
		aggregator: aggregator,
		collector:  collector,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithHistory enables the History endpoint.
func (h *Handler) WithHistory(src HistorySource) *Handler {
	h.history = src
	return h
}

// Stats handles GET /api/v1/analytics. ?version= narrows searches_by_version
// to one version.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if v := r.URL.Query().Get("version"); v != "" {
		stats.SearchesByVersion = map[string]int64{v: stats.SearchesByVersion[v]}
	}
	resp := struct {
		AggregatedStats
		DroppedEvents int64 `json:"dropped_events"`
	}{AggregatedStats: stats}
	if h.collector != nil {
		resp.DroppedEvents = h.collector.Dropped()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/v1/analytics/history?limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics history is disabled"})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}
	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing analytics history failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if snapshots == nil {
		snapshots = []AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
