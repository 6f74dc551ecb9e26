package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type enqueuerStub struct {
	err       error
	rollovers []RolloverPayload
	reconcile []PeriodPayload
}

func (s *enqueuerStub) EnqueueRollover(ctx context.Context, payload RolloverPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.rollovers = append(s.rollovers, payload)
	return &asynq.TaskInfo{ID: "t-roll", Queue: QueueLedger}, nil
}

func (s *enqueuerStub) EnqueueReconcile(ctx context.Context, payload PeriodPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.reconcile = append(s.reconcile, payload)
	return &asynq.TaskInfo{ID: "t-rec", Queue: QueueLedger}, nil
}

func newTriggerRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(internalShared.ContextWithActor(r.Context(), 11)))
		})
	})
	r.Route("/ledger/periods", h.MountPeriodTriggers)
	return r
}

func TestTriggerReconcile(t *testing.T) {
	stub := &enqueuerStub{}
	router := newTriggerRouter(NewHandler(stub, nil, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ledger/periods/4/reconcile", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []PeriodPayload{{PeriodID: 4, ActorID: 11}}, stub.reconcile)

	var body enqueuedResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "t-rec", body.TaskID)
	require.Equal(t, TaskLedgerReconcile, body.Type)
}

func TestTriggerRollover(t *testing.T) {
	stub := &enqueuerStub{}
	router := newTriggerRouter(NewHandler(stub, nil, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ledger/periods/1/rollover/2?force=true", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []RolloverPayload{{FromPeriodID: 1, ToPeriodID: 2, Force: true, ActorID: 11}}, stub.rollovers)
}

func TestTriggerRejectsBadIDsAndEnqueueFailures(t *testing.T) {
	router := newTriggerRouter(NewHandler(&enqueuerStub{}, nil, nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ledger/periods/abc/reconcile", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	router = newTriggerRouter(NewHandler(&enqueuerStub{err: errors.New("redis down")}, nil, nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ledger/periods/1/rollover/2", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	router = newTriggerRouter(NewHandler(&enqueuerStub{err: fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)}, nil, nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ledger/periods/4/reconcile", nil))
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(&enqueuerStub{}, nil, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"ledger","pending":0}`, rr.Body.String())
}
