package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Enqueuer submits ledger batch tasks.
type Enqueuer interface {
	EnqueueRollover(ctx context.Context, payload RolloverPayload) (*asynq.TaskInfo, error)
	EnqueueReconcile(ctx context.Context, payload PeriodPayload) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes job health and operator triggers over HTTP.
type Handler struct {
	client    Enqueuer
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(client Enqueuer, inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

// MountPeriodTriggers attaches the operator triggers under a periods router.
func (h *Handler) MountPeriodTriggers(r chi.Router) {
	r.Post("/{id}/reconcile", h.triggerReconcile)
	r.Post("/{id}/rollover/{to}", h.triggerRollover)
}

type enqueuedResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Type   string `json:"type"`
}

func (h *Handler) triggerReconcile(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	info, err := h.client.EnqueueReconcile(r.Context(), PeriodPayload{
		PeriodID: periodID,
		ActorID:  internalShared.ActorFromContext(r.Context()),
	})
	h.respondEnqueued(w, TaskLedgerReconcile, info, err)
}

func (h *Handler) triggerRollover(w http.ResponseWriter, r *http.Request) {
	fromID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	toID, ok := pathID(w, r, "to")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	info, err := h.client.EnqueueRollover(r.Context(), RolloverPayload{
		FromPeriodID: fromID,
		ToPeriodID:   toID,
		Force:        force,
		ActorID:      internalShared.ActorFromContext(r.Context()),
	})
	h.respondEnqueued(w, TaskLedgerRollover, info, err)
}

func (h *Handler) respondEnqueued(w http.ResponseWriter, taskType string, info *asynq.TaskInfo, err error) {
	if errors.Is(err, asynq.ErrDuplicateTask) {
		httpx.Problem(w, http.StatusConflict, "Task already queued", taskType)
		return
	}
	if err != nil {
		h.logger.Error("enqueue task", slog.String("job", taskType), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Enqueue failed", err.Error())
		return
	}
	resp := enqueuedResponse{Type: taskType}
	if info != nil {
		resp.TaskID = info.ID
		resp.Queue = info.Queue
	}
	httpx.JSON(w, http.StatusAccepted, resp)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid period id", chi.URLParam(r, name))
		return 0, false
	}
	return id, true
}

type healthResponse struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, healthResponse{Queue: QueueLedger})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueLedger)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	resp := healthResponse{Queue: QueueLedger}
	if info != nil {
		resp.Pending = info.Pending
		resp.Queue = info.Queue
	}
	httpx.JSON(w, http.StatusOK, resp)
}
