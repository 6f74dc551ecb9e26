// Package reconcile compares external sub-ledger valuations with general ledger balances and
// posts correcting journals for any difference.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Reader exposes the read models a run compares.
type Reader interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	TrialBalances() trialbalance.Repository
	Mappings() mappings.Repository
}

// ValuationProvider returns the external sub-ledger value behind a binding key.
type ValuationProvider interface {
	GetValuation(ctx context.Context, key string, periodID int64) (decimal.Decimal, error)
}

// Poster submits correcting journals.
type Poster interface {
	Post(ctx context.Context, lines []journals.LineInput, header journals.JournalHeader) (int64, error)
}

type PeriodLocker interface {
	Lock(ctx context.Context, periodIDs ...int64) (release func(context.Context), err error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Status of one reconciled account.
type Status string

const (
	StatusMatched  Status = "matched"
	StatusAdjusted Status = "adjusted"
	StatusFailed   Status = "failed"
)

// Item is the outcome for one bound account.
type Item struct {
	AccountID      int64           `json:"account_id"`
	AccountCode    string          `json:"account_code"`
	Keys           []string        `json:"keys"`
	SubledgerValue decimal.Decimal `json:"subledger_value"`
	GLValue        decimal.Decimal `json:"gl_value"`
	Diff           decimal.Decimal `json:"diff"`
	JournalID      int64           `json:"journal_id,omitempty"`
	Status         Status          `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// Result summarises a run.
type Result struct {
	PeriodID             int64   `json:"period_id"`
	PeriodCode           string  `json:"period_code"`
	Items                []Item  `json:"items"`
	AdjustmentJournalIDs []int64 `json:"adjustment_journal_ids"`
	Failed               int     `json:"failed"`
}

// Options tune a single run.
type Options struct {
	ActorID int64
}

// Config holds the tolerance and reporting-day boundary of the run.
type Config struct {
	Epsilon     decimal.Decimal
	Boundary    periods.DayBoundary
	Concurrency int
}

type Service struct {
	reader    Reader
	valuation ValuationProvider
	poster    Poster
	locker    PeriodLocker
	audit     AuditPort
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(reader Reader, valuation ValuationProvider, poster Poster, locker PeriodLocker, audit AuditPort, cfg Config, logger *slog.Logger) *Service {
	if cfg.Epsilon.IsZero() {
		cfg.Epsilon = shared.DefaultEpsilon
	}
	if cfg.Boundary.IsZero() {
		cfg.Boundary = periods.DefaultDayBoundary()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reader:    reader,
		valuation: valuation,
		poster:    poster,
		locker:    locker,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Reconcile posts one adjustment per bound account whose general ledger balance differs from
// its sub-ledger valuation. Failures on one account are recorded and the run continues.
func (s *Service) Reconcile(ctx context.Context, periodID int64, opts Options) (Result, error) {
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, periodID)
		if err != nil {
			return Result{}, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	period, err := s.reader.Periods().Get(ctx, periodID)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile period %d: %w", periodID, err)
	}
	if period.IsClosed {
		return Result{}, &shared.PeriodClosedError{PeriodID: period.ID, PeriodCode: period.Code, Date: period.LastDay()}
	}
	adjustmentAccount, err := mappings.NewResolver(s.reader.Mappings()).Resolve(ctx, mappings.KeyInventoryAdjustmentAccount)
	if err != nil {
		return Result{}, err
	}
	bindings, err := s.reader.Mappings().ListBindings(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile bindings: %w", err)
	}
	groups := mappings.GroupBindings(bindings)
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.AccountID)
	}
	accts, err := s.reader.Accounts().GetMany(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile accounts: %w", err)
	}
	values := s.fetchValuations(ctx, groups, period.ID)

	result := Result{PeriodID: period.ID, PeriodCode: period.Code, Items: make([]Item, 0, len(groups)), AdjustmentJournalIDs: []int64{}}
	for i, g := range groups {
		item := s.reconcileAccount(ctx, period, g, accts, values[i], adjustmentAccount, opts)
		if item.Status == StatusFailed {
			result.Failed++
			s.logger.Error("reconcile account failed",
				slog.String("period", period.Code),
				slog.Int64("account_id", g.AccountID),
				slog.String("error", item.Error))
		}
		if item.JournalID != 0 {
			result.AdjustmentJournalIDs = append(result.AdjustmentJournalIDs, item.JournalID)
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("reconcile completed",
		slog.String("period", period.Code),
		slog.Int("accounts", len(groups)),
		slog.Int("adjusted", len(result.AdjustmentJournalIDs)),
		slog.Int("failed", result.Failed))
	s.record(ctx, opts.ActorID, result)
	return result, nil
}

type valuation struct {
	total decimal.Decimal
	err   error
}

// fetchValuations prices every group concurrently. Each slot keeps its own error so one
// failing key does not cancel the others.
func (s *Service) fetchValuations(ctx context.Context, groups []mappings.BindingGroup, periodID int64) []valuation {
	out := make([]valuation, len(groups))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, group := range groups {
		g.Go(func() error {
			total := decimal.Zero
			for _, key := range group.Keys {
				v, err := s.valuation.GetValuation(ctx, key, periodID)
				if err != nil {
					out[i] = valuation{err: fmt.Errorf("valuation %s: %w", key, err)}
					return nil
				}
				total = total.Add(v)
			}
			out[i] = valuation{total: shared.Round2(total)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) reconcileAccount(ctx context.Context, period periods.Period, g mappings.BindingGroup, accts map[int64]accounts.Account, val valuation, adjustmentAccount int64, opts Options) Item {
	item := Item{AccountID: g.AccountID, Keys: g.Keys, SubledgerValue: decimal.Zero, GLValue: decimal.Zero, Diff: decimal.Zero}
	fail := func(err error) Item {
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}

	acc, ok := accts[g.AccountID]
	if !ok {
		return fail(&shared.InvalidAccountError{AccountID: g.AccountID, Reason: "does not exist"})
	}
	item.AccountCode = acc.Code
	if val.err != nil {
		return fail(val.err)
	}
	item.SubledgerValue = val.total

	row, found, err := s.reader.TrialBalances().Get(ctx, period.ID, acc.ID)
	if err != nil {
		return fail(fmt.Errorf("trial balance: %w", err))
	}
	if !found {
		row = trialbalance.NewRow(period.ID, acc.ID)
	}
	item.GLValue = row.SignedEnding(acc.NormalBalance)
	item.Diff = shared.Round2(item.SubledgerValue.Sub(item.GLValue))
	if item.Diff.Abs().LessThanOrEqual(s.cfg.Epsilon) {
		item.Status = StatusMatched
		return item
	}

	lines := AdjustmentLines(acc, adjustmentAccount, item.Diff)
	header := journals.JournalHeader{
		ReferenceNumber: fmt.Sprintf("RECON-%s-%s", period.Code, acc.Code),
		ReferenceType:   journals.RefAdjustment,
		TransactionDate: s.cfg.Boundary.StartOf(period.LastDay()),
		Memo:            fmt.Sprintf("Sub-ledger reconciliation %s %s", period.Code, acc.Code),
		CreatedBy:       opts.ActorID,
		PostedBy:        opts.ActorID,
	}
	id, err := s.poster.Post(ctx, lines, header)
	if err != nil {
		return fail(err)
	}
	item.JournalID = id
	item.Status = StatusAdjusted
	return item
}

// AdjustmentLines books diff on the reconciled account against the adjustment account. A
// positive diff raises the account's normal-side balance.
func AdjustmentLines(acc accounts.Account, adjustmentAccount int64, diff decimal.Decimal) []journals.LineInput {
	amount := diff.Abs()
	onDebit := (acc.NormalBalance != accounts.NormalCredit) == diff.IsPositive()
	target := journals.LineInput{AccountID: acc.ID, Description: "Sub-ledger reconciliation"}
	offset := journals.LineInput{AccountID: adjustmentAccount, Description: "Sub-ledger reconciliation " + acc.Code}
	if onDebit {
		target.Debit, offset.Credit = amount, amount
	} else {
		target.Credit, offset.Debit = amount, amount
	}
	return []journals.LineInput{target, offset}
}

func (s *Service) record(ctx context.Context, actorID int64, result Result) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   "period.reconcile",
		Entity:   "period",
		EntityID: fmt.Sprintf("%d", result.PeriodID),
		Meta: map[string]any{
			"adjustments": result.AdjustmentJournalIDs,
			"failed":      result.Failed,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", "period.reconcile"), slog.Any("error", err))
	}
}
