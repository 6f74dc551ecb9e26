package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// ListCache holds the chart of accounts between requests.
type ListCache interface {
	Get(ctx context.Context) ([]Account, bool, error)
	Set(ctx context.Context, v []Account) error
}

type Handler struct {
	service *Service
	cache   ListCache
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service, cache ListCache) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, cache: cache}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type accountResponse struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	NormalBalance NormalBalance `json:"normal_balance"`
	PostingType   PostingType   `json:"posting_type"`
	ParentID      *int64        `json:"parent_id,omitempty"`
	IsActive      bool          `json:"is_active"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		list []Account
		hit  bool
		err  error
	)
	if h.cache != nil {
		if list, hit, err = h.cache.Get(ctx); err != nil {
			h.logger.Warn("account cache read", slog.Any("error", err))
		}
	}
	if !hit {
		list, err = h.service.List(ctx)
		if err != nil {
			h.logger.Error("list accounts", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if h.cache != nil {
			if err := h.cache.Set(ctx, list); err != nil {
				h.logger.Warn("account cache write", slog.Any("error", err))
			}
		}
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, accountResponse{
			ID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, NormalBalance: a.NormalBalance,
			PostingType: a.PostingType, ParentID: a.ParentID, IsActive: a.IsActive, UpdatedAt: a.UpdatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
