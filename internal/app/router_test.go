package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type enqueueRecorder struct {
	reconcile []jobs.PeriodPayload
}

func (e *enqueueRecorder) EnqueueRollover(ctx context.Context, payload jobs.RolloverPayload) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: "r"}, nil
}

func (e *enqueueRecorder) EnqueueReconcile(ctx context.Context, payload jobs.PeriodPayload) (*asynq.TaskInfo, error) {
	e.reconcile = append(e.reconcile, payload)
	return &asynq.TaskInfo{ID: "c"}, nil
}

func TestRouterServesHealthAndTriggers(t *testing.T) {
	rec := &enqueueRecorder{}
	router := NewRouter(RouterParams{
		Config:     &Config{AppRateLimit: 1000},
		JobHandler: jobs.NewHandler(rec, nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodPost, "/ledger/periods/3/reconcile", nil)
	req.Header.Set(ActorHeader, "17")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []jobs.PeriodPayload{{PeriodID: 3, ActorID: 17}}, rec.reconcile)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "odyssey_http_requests_total")
}
