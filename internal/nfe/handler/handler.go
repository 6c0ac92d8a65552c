package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"frota/internal/nfe/models"
	dErrors "frota/pkg/domain-errors"
	"frota/pkg/platform/httputil"
	"frota/pkg/requestcontext"
)

// Service defines the interface for document lookups.
type Service interface {
	Lookup(ctx context.Context, accessKey string) (models.Record, bool, error)
}

// Handler wires NFe endpoints to the lookup service.
type Handler struct {
	service Service
	station string
	logger  *slog.Logger
}

// New constructs an NFe handler. station is stamped on every response.
func New(service Service, station string, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		station: station,
		logger:  logger,
	}
}

// Register mounts NFe endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/nfe/{accessKey}", h.HandleLookup)
}

// HandleLookup handles GET /nfe/{accessKey} requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accessKey := chi.URLParam(r, "accessKey")
	start := time.Now()

	record, ok, err := h.service.Lookup(ctx, accessKey)
	if err != nil {
		level := slog.LevelError
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			level = slog.LevelInfo
		}
		h.logger.Log(ctx, level, "nfe lookup failed",
			"request_id", requestID,
			"access_key", accessKey,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !ok {
		h.logger.InfoContext(ctx, "nfe has no record",
			"request_id", requestID,
			"access_key", accessKey,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document has no emission date or payment amount"))
		return
	}

	h.logger.InfoContext(ctx, "nfe lookup served",
		"request_id", requestID,
		"access_key", accessKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRecord(accessKey, h.station, record))
}
