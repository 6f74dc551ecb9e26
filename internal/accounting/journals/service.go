package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// PostingObserver receives the outcome of every Post call.
type PostingObserver interface {
	ObservePosting(status string, attempts int)
}

// Posting outcome labels.
const (
	OutcomePosted   = "posted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Config tunes validation and retry behaviour.
type Config struct {
	Epsilon      decimal.Decimal
	MaxAttempts  int
	Backoff      time.Duration
	BaseCurrency string
	Boundary     periods.DayBoundary
}

type Service struct {
	repo     Repository
	audit    AuditPort
	observer PostingObserver
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func NewService(repo Repository, audit AuditPort, cfg Config, logger *slog.Logger) *Service {
	if cfg.Epsilon.IsZero() {
		cfg.Epsilon = shared.DefaultEpsilon
	}
	if cfg.Boundary.IsZero() {
		cfg.Boundary = periods.DefaultDayBoundary()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "IDR"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cfg: cfg, logger: logger, now: time.Now, sleep: sleepCtx}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) WithObserver(obs PostingObserver) {
	s.observer = obs
}

// Boundary exposes the reporting-day conversion used for postings.
func (s *Service) Boundary() periods.DayBoundary {
	return s.cfg.Boundary
}

func (s *Service) Get(ctx context.Context, id int64) (Journal, error) {
	return s.repo.Get(ctx, id)
}

// Post validates and persists a balanced journal, updating the trial balance and daily
// summaries in the same transaction. Transient failures restart the whole transaction.
func (s *Service) Post(ctx context.Context, lines []LineInput, header JournalHeader) (int64, error) {
	header, err := normalizeHeader(header, s.cfg.BaseCurrency, s.now())
	if err != nil {
		s.observe(OutcomeRejected, 0)
		return 0, err
	}
	built, err := buildLines(lines, header, s.cfg.Epsilon)
	if err != nil {
		s.observe(OutcomeRejected, 0)
		return 0, err
	}

	var journal Journal
	attempts, err := s.retry(ctx, "post", func(ctx context.Context) error {
		j, err := s.post(ctx, built, header)
		if err != nil {
			return err
		}
		journal = j
		return nil
	})
	if err != nil {
		var failed *shared.PostingFailedError
		if errors.As(err, &failed) {
			s.observe(OutcomeFailed, attempts)
		} else {
			s.observe(OutcomeRejected, attempts)
		}
		return 0, err
	}
	s.observe(OutcomePosted, attempts)

	debit, _ := journal.Totals()
	s.logger.Info("journal posted",
		slog.Int64("journal_id", journal.ID),
		slog.String("ledger_number", journal.LedgerNumber),
		slog.Int64("period_id", journal.PeriodID),
		slog.String("amount", debit.StringFixed(2)))
	s.record(ctx, internalShared.AuditLog{
		ActorID:  header.PostedBy,
		Action:   "journal.post",
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", journal.ID),
		Meta: map[string]any{
			"ledger_number":    journal.LedgerNumber,
			"reference_number": journal.ReferenceNumber,
			"source_module":    journal.SourceModule,
			"source_id":        journal.SourceID.String(),
		},
		At: s.now(),
	})
	return journal.ID, nil
}

func (s *Service) post(ctx context.Context, lines []Line, header JournalHeader) (Journal, error) {
	day := s.cfg.Boundary.Day(header.TransactionDate)
	prefix := LedgerPrefix(header.ReferenceType, day)
	seq, err := s.repo.NextLedgerSequence(ctx, prefix)
	if err != nil {
		return Journal{}, fmt.Errorf("ledger sequence %s: %w", prefix, err)
	}
	var journal Journal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := periods.RequireOpen(ctx, tx.Periods(), day)
		if err != nil {
			return err
		}
		if _, err := accounts.RequirePostable(ctx, tx.Accounts(), accountIDs(lines)); err != nil {
			return err
		}
		j := Journal{
			LedgerNumber:    LedgerNumber(prefix, seq),
			ReferenceNumber: header.ReferenceNumber,
			ReferenceType:   header.ReferenceType,
			TransactionDate: header.TransactionDate,
			PostingDate:     header.PostingDate,
			PeriodID:        period.ID,
			Status:          StatusPosted,
			Currency:        header.Currency,
			ExchangeRate:    header.ExchangeRate,
			Memo:            header.Memo,
			SourceModule:    header.SourceModule,
			SourceID:        header.SourceID,
			CreatedBy:       header.CreatedBy,
			PostedBy:        header.PostedBy,
			PostedAt:        s.now(),
			Lines:           append([]Line(nil), lines...),
		}
		if err := tx.InsertJournal(ctx, &j); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, period.ID, day, accountDeltas(j.Lines, false)); err != nil {
			return err
		}
		journal = j
		return nil
	})
	return journal, err
}

// Void reverses the aggregate effect of a posted journal and marks it VOID. Voiding a
// journal that is already void is a no-op.
func (s *Service) Void(ctx context.Context, journalID, actorID int64, reason string) error {
	if journalID <= 0 {
		return shared.ErrJournalNotFound
	}
	var (
		voided  Journal
		changed bool
	)
	_, err := s.retry(ctx, "void", func(ctx context.Context) error {
		changed = false
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			j, err := tx.GetJournalForUpdate(ctx, journalID)
			if err != nil {
				return err
			}
			switch j.Status {
			case StatusVoid:
				return nil
			case StatusPosted:
			default:
				return fmt.Errorf("%w: journal %s is %s", shared.ErrInvalidStatus, j.LedgerNumber, j.Status)
			}
			period, err := tx.Periods().GetForShare(ctx, j.PeriodID)
			if err != nil {
				return err
			}
			day := s.cfg.Boundary.Day(j.TransactionDate)
			if period.IsClosed {
				return &shared.PeriodClosedError{PeriodID: period.ID, PeriodCode: period.Code, Date: day}
			}
			if err := applyDeltas(ctx, tx, period.ID, day, accountDeltas(j.Lines, true)); err != nil {
				return err
			}
			if err := tx.MarkVoid(ctx, VoidRecord{JournalID: j.ID, ActorID: actorID, Reason: reason, At: s.now()}); err != nil {
				return err
			}
			voided = j
			changed = true
			return nil
		})
	})
	if err != nil || !changed {
		return err
	}
	s.logger.Info("journal voided", slog.Int64("journal_id", voided.ID), slog.String("ledger_number", voided.LedgerNumber))
	s.record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   "journal.void",
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", voided.ID),
		Meta: map[string]any{
			"ledger_number": voided.LedgerNumber,
			"reason":        reason,
		},
		At: s.now(),
	})
	return nil
}

// accountDelta is the net effect of a journal on one account.
type accountDelta struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Lines     int
}

// accountDeltas sums lines per account in ascending account id, so two journals touching
// the same accounts always lock their aggregate rows in the same order.
func accountDeltas(lines []Line, reverse bool) []accountDelta {
	index := make(map[int64]int, len(lines))
	var out []accountDelta
	for _, line := range lines {
		i, ok := index[line.AccountID]
		if !ok {
			i = len(out)
			index[line.AccountID] = i
			out = append(out, accountDelta{AccountID: line.AccountID, Debit: decimal.Zero, Credit: decimal.Zero})
		}
		out[i].Debit = out[i].Debit.Add(line.Debit)
		out[i].Credit = out[i].Credit.Add(line.Credit)
		out[i].Lines++
	}
	sort.Slice(out, func(a, b int) bool { return out[a].AccountID < out[b].AccountID })
	if reverse {
		for i := range out {
			out[i].Debit = out[i].Debit.Neg()
			out[i].Credit = out[i].Credit.Neg()
			out[i].Lines = -out[i].Lines
		}
	}
	return out
}

func applyDeltas(ctx context.Context, tx TxRepository, periodID int64, day time.Time, deltas []accountDelta) error {
	for _, d := range deltas {
		if err := tx.TrialBalances().ApplyDelta(ctx, periodID, d.AccountID, d.Debit, d.Credit); err != nil {
			return fmt.Errorf("trial balance %d: %w", d.AccountID, err)
		}
		if err := tx.GLSummaries().ApplyDelta(ctx, d.AccountID, periodID, day, d.Debit, d.Credit, d.Lines); err != nil {
			return fmt.Errorf("gl summary %d: %w", d.AccountID, err)
		}
	}
	return nil
}

// retry runs fn until it succeeds, fails permanently or the attempt budget is spent.
func (s *Service) retry(ctx context.Context, op string, fn func(context.Context) error) (int, error) {
	var last error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !shared.IsTransient(err) {
			return attempt, err
		}
		last = err
		s.logger.Warn("ledger transaction retry",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt == s.cfg.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.Backoff*time.Duration(attempt)); err != nil {
			return attempt, err
		}
	}
	return s.cfg.MaxAttempts, &shared.PostingFailedError{Attempts: s.cfg.MaxAttempts, Err: last}
}

func (s *Service) observe(status string, attempts int) {
	if s.observer != nil {
		s.observer.ObservePosting(status, attempts)
	}
}

func (s *Service) record(ctx context.Context, log internalShared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
