// Package handler serves the index reload endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// Broadcaster fans a reload out to every node. Satisfied by
// publisher.Publisher.
type Broadcaster interface {
	PublishPayload(ctx context.Context, version string, data []byte) (*ingestion.ReloadEvent, error)
	PublishSource(ctx context.Context, version, src string) (*ingestion.ReloadEvent, error)
}

type Handler struct {
	catalog     *catalog.Catalog
	broadcaster Broadcaster
	maxBytes    int64
	sources     map[string]string
	logger      *slog.Logger
}

// New builds the reload handler. broadcaster may be nil, in which case
// ?broadcast=true is rejected. sources maps each version to the one
// location it may be reloaded from; a version without an entry only
// accepts payloads in the request body.
func New(cat *catalog.Catalog, broadcaster Broadcaster, maxBytes int64, sources map[string]string) *Handler {
	return &Handler{
		catalog:     cat,
		broadcaster: broadcaster,
		maxBytes:    maxBytes,
		sources:     sources,
		logger:      slog.Default().With("component", "reload-handler"),
	}
}

// Reload handles POST /api/v1/index/reload?version=&source=&broadcast=.
// The body is the payload; when it is empty, the version's configured
// source is fetched instead. A source parameter is only accepted when it
// names that configured location.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	engine, err := h.catalog.Get(q.Get("version"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	version := engine.Version()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		if apperrors.HTTPStatusCode(err) == http.StatusRequestEntityTooLarge {
			h.writeAppError(w, err)
			return
		}
		h.writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}
	var source string
	if len(body) == 0 {
		configured := h.sources[version]
		source = q.Get("source")
		switch {
		case configured == "":
			h.writeError(w, http.StatusBadRequest, "request body is required: no source is configured for this version")
			return
		case source == "":
			source = configured
		case source != configured:
			log.Warn("rejected reload source", "version", version, "source", source)
			h.writeError(w, http.StatusBadRequest, "'source' must be the configured source for this version")
			return
		}
	}

	if q.Get("broadcast") == "true" {
		h.broadcast(w, r, version, body, source)
		return
	}

	var snap *indexer.Snapshot
	status := "reloaded"
	if len(body) > 0 {
		snap, err = engine.ReloadPayload(body)
	} else {
		var changed bool
		snap, changed, err = engine.ReloadFrom(ctx, source)
		if err == nil && !changed {
			status = "unchanged"
		}
	}
	if err != nil {
		log.Warn("reload failed", "version", version, "error", err)
		h.writeAppError(w, err)
		return
	}

	stats := snap.Index.Stats()
	log.Info("reload completed", "version", version, "generation", snap.Generation, "status", status)
	h.writeJSON(w, http.StatusOK, ingestion.ReloadResponse{
		Version:    version,
		Generation: snap.Generation,
		Entries:    stats.Entries,
		Terms:      stats.Terms,
		Pages:      stats.Pages,
		Status:     status,
	})
}

func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request, version string, body []byte, source string) {
	if h.broadcaster == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reload feed is disabled")
		return
	}
	var (
		event *ingestion.ReloadEvent
		err   error
	)
	if len(body) > 0 {
		event, err = h.broadcaster.PublishPayload(r.Context(), version, body)
	} else {
		event, err = h.broadcaster.PublishSource(r.Context(), version, source)
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("reload broadcast failed", "version", version, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"version":      event.Version,
		"status":       "published",
		"published_at": event.PublishedAt,
	})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err, "reload failed"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
