package closehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/close"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type closeService interface {
	Close(ctx context.Context, periodID int64, opts close.Options) (close.Run, error)
}

// Handler exposes the period close over HTTP.
type Handler struct {
	logger  *slog.Logger
	service closeService
}

// NewHandler constructs a close HTTP handler.
func NewHandler(logger *slog.Logger, service closeService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the close route under a periods router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/close", h.closePeriod)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || periodID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "period id must be a positive integer")
		return
	}
	run, err := h.service.Close(r.Context(), periodID, close.Options{ActorID: shared.ActorFromContext(r.Context())})
	switch {
	case errors.Is(err, close.ErrChecklistIncomplete):
		// the checklist tells the operator what to fix
		httpx.JSON(w, http.StatusConflict, run)
	case err != nil:
		h.logger.Error("close period", slog.Int64("period_id", periodID), slog.Any("error", err))
		httpx.RespondError(w, err)
	default:
		httpx.JSON(w, http.StatusOK, run)
	}
}
