package trialbalance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/trial-balance", h.Show)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || periodID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "period id must be a positive integer")
		return
	}
	report, err := h.service.Report(r.Context(), periodID)
	if err != nil {
		h.logger.Error("trial balance report", slog.Int64("period_id", periodID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
