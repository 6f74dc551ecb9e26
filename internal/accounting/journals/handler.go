package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Poster is the subset of Service used by the HTTP layer.
type Poster interface {
	Post(ctx context.Context, lines []LineInput, header JournalHeader) (int64, error)
	Void(ctx context.Context, journalID, actorID int64, reason string) error
	Get(ctx context.Context, id int64) (Journal, error)
}

// IdempotencyPort claims request keys so client retries never double post.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "ledger.journals"

type Handler struct {
	service     Poster
	idempotency IdempotencyPort
	logger      *slog.Logger
}

func NewHandler(logger *slog.Logger, service Poster, idempotency IdempotencyPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

type lineRequest struct {
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
	ProjectID   *int64          `json:"project_id"`
	CustomerID  *int64          `json:"customer_id"`
}

type postRequest struct {
	ReferenceNumber string          `json:"reference_number"`
	ReferenceType   ReferenceType   `json:"reference_type"`
	TransactionDate time.Time       `json:"transaction_date"`
	PostingDate     time.Time       `json:"posting_date"`
	Currency        string          `json:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Memo            string          `json:"memo"`
	SourceModule    string          `json:"source_module"`
	SourceID        uuid.UUID       `json:"source_id"`
	Lines           []lineRequest   `json:"lines"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

type journalResponse struct {
	ID              int64          `json:"id"`
	LedgerNumber    string         `json:"ledger_number"`
	ReferenceNumber string         `json:"reference_number"`
	ReferenceType   ReferenceType  `json:"reference_type"`
	TransactionDate time.Time      `json:"transaction_date"`
	PeriodID        int64          `json:"period_id"`
	Status          Status         `json:"status"`
	Currency        string         `json:"currency"`
	Memo            string         `json:"memo,omitempty"`
	VoidReason      string         `json:"void_reason,omitempty"`
	Lines           []lineResponse `json:"lines"`
}

type lineResponse struct {
	LineNumber  int             `json:"line_number"`
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	LocalAmount decimal.Decimal `json:"local_amount"`
	Description string          `json:"description,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	actor := internalShared.ActorFromContext(r.Context())
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			if errors.Is(err, internalShared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "idempotency key already used")
				return
			}
			h.fail(w, "claim idempotency key", err)
			return
		}
	}

	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, LineInput(l))
	}
	id, err := h.service.Post(r.Context(), lines, JournalHeader{
		ReferenceNumber: req.ReferenceNumber,
		ReferenceType:   req.ReferenceType,
		TransactionDate: req.TransactionDate,
		PostingDate:     req.PostingDate,
		Currency:        req.Currency,
		ExchangeRate:    req.ExchangeRate,
		Memo:            req.Memo,
		CreatedBy:       actor,
		PostedBy:        actor,
		SourceModule:    req.SourceModule,
		SourceID:        req.SourceID,
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "post journal", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/ledger/journals/%d", id))
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	j, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(j))
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req voidRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	if err := h.service.Void(r.Context(), id, internalShared.ActorFromContext(r.Context()), req.Reason); err != nil {
		h.fail(w, "void journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "journal id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toResponse(j Journal) journalResponse {
	out := journalResponse{
		ID:              j.ID,
		LedgerNumber:    j.LedgerNumber,
		ReferenceNumber: j.ReferenceNumber,
		ReferenceType:   j.ReferenceType,
		TransactionDate: j.TransactionDate,
		PeriodID:        j.PeriodID,
		Status:          j.Status,
		Currency:        j.Currency,
		Memo:            j.Memo,
		VoidReason:      j.VoidReason,
	}
	for _, l := range j.Lines {
		out.Lines = append(out.Lines, lineResponse{
			LineNumber:  l.LineNumber,
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			LocalAmount: l.LocalAmount,
			Description: l.Description,
		})
	}
	return out
}
