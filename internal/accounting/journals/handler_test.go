package journals_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type idempotencyStub struct {
	keys map[string]bool
}

func (s *idempotencyStub) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.keys[key] {
		return internalShared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *idempotencyStub) Delete(ctx context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func newRouter(store *lt.Store, idem journals.IdempotencyPort) http.Handler {
	h := journals.NewHandler(nil, lt.NewPostingService(store), idem)
	r := chi.NewRouter()
	r.Route("/ledger/journals", h.MountRoutes)
	return r
}

const balancedBody = `{"reference_number":"RCPT-7","reference_type":"RECEIPT","transaction_date":"2024-01-15T05:00:00Z",
"lines":[{"account_id":1,"debit":"1000000"},{"account_id":2,"credit":"1000000"}]}`

func TestHandlerPostShowVoid(t *testing.T) {
	store := lt.Standard()
	router := newRouter(store, &idempotencyStub{keys: map[string]bool{}})

	req := httptest.NewRequest(http.MethodPost, "/ledger/journals/", strings.NewReader(balancedBody))
	req = req.WithContext(internalShared.ContextWithActor(req.Context(), 12))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	j, ok := store.Journal(id)
	require.True(t, ok)
	require.Equal(t, int64(12), j.PostedBy)
	require.Equal(t, journals.RefReceipt, j.ReferenceType)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ledger/journals/1/void", strings.NewReader(`{"reason":"duplicate"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/journals/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var shown struct {
		Status     string `json:"status"`
		VoidReason string `json:"void_reason"`
		Lines      []any  `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shown))
	require.Equal(t, "VOID", shown.Status)
	require.Equal(t, "duplicate", shown.VoidReason)
	require.Len(t, shown.Lines, 2)
}

func TestHandlerRejectsUnbalanced(t *testing.T) {
	store := lt.Standard()
	idem := &idempotencyStub{keys: map[string]bool{}}
	router := newRouter(store, idem)

	body := `{"reference_number":"X","transaction_date":"2024-01-15T05:00:00Z",
"lines":[{"account_id":1,"debit":"100"},{"account_id":6,"credit":"99.50"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ledger/journals/", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "k-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "diff=0.50")
	require.Empty(t, idem.keys, "failed posting releases its idempotency key")
	require.Zero(t, store.JournalCount())
}

func TestHandlerIdempotencyKey(t *testing.T) {
	store := lt.Standard()
	router := newRouter(store, &idempotencyStub{keys: map[string]bool{}})

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/ledger/journals/", strings.NewReader(balancedBody))
		req.Header.Set("Idempotency-Key", "same")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
	require.Equal(t, 1, store.JournalCount())
}

func TestHandlerClosedPeriodConflict(t *testing.T) {
	store := lt.Standard()
	store.ClosePeriod(lt.Jan2024)
	router := newRouter(store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ledger/journals/", strings.NewReader(balancedBody)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/journals/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
