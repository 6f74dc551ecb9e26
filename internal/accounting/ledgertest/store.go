// Package ledgertest provides an in-memory ledger store for tests. Transactions run on a
// copy of the state that is only committed when the callback succeeds.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/glsummary"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/rollover"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type tbKey struct {
	period  int64
	account int64
}

type glKey struct {
	account int64
	period  int64
	day     time.Time
}

type state struct {
	mu          sync.Mutex
	accounts    map[int64]accounts.Account
	periods     map[int64]periods.Period
	mappings    map[string]int64
	bindings    []mappings.SubledgerBinding
	journals    map[int64]journals.Journal
	nextJournal int64
	tb          map[tbKey]trialbalance.Row
	gl          map[glKey]glsummary.Row
}

func newState() *state {
	return &state{
		accounts: make(map[int64]accounts.Account),
		periods:  make(map[int64]periods.Period),
		mappings: make(map[string]int64),
		journals: make(map[int64]journals.Journal),
		tb:       make(map[tbKey]trialbalance.Row),
		gl:       make(map[glKey]glsummary.Row),
	}
}

func (s *state) clone() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.mappings {
		c.mappings[k] = v
	}
	c.bindings = append(c.bindings, s.bindings...)
	for k, v := range s.journals {
		v.Lines = append([]journals.Line(nil), v.Lines...)
		c.journals[k] = v
	}
	c.nextJournal = s.nextJournal
	for k, v := range s.tb {
		c.tb[k] = v
	}
	for k, v := range s.gl {
		c.gl[k] = v
	}
	return c
}

// Store is a transactional in-memory ledger.
type Store struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	st        *state
	failures  []error
	sequences map[string]int64
	audit     []internalShared.AuditLog
	values    map[string]decimal.Decimal
}

func NewStore() *Store {
	return &Store{st: newState(), sequences: make(map[string]int64), values: make(map[string]decimal.Decimal)}
}

func (s *Store) current() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// AddAccount registers an account; normal balance defaults from its type.
func (s *Store) AddAccount(a accounts.Account) accounts.Account {
	if a.NormalBalance == "" {
		a.NormalBalance = accounts.DefaultNormalBalance(a.Type)
	}
	if a.PostingType == "" {
		a.PostingType = accounts.PostingTypePosting
	}
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accounts[a.ID] = a
	return a
}

func (s *Store) AddPeriod(p periods.Period) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.periods[p.ID] = p
}

// ClosePeriod flips the closed flag.
func (s *Store) ClosePeriod(id int64) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	p := st.periods[id]
	p.IsClosed = true
	st.periods[id] = p
}

// MarkClosed closes an open period and reports whether it changed.
func (s *Store) MarkClosed(ctx context.Context, periodID, actorID int64, at time.Time) (bool, error) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	p, ok := st.periods[periodID]
	if !ok {
		return false, shared.ErrPeriodNotFound
	}
	if p.IsClosed {
		return false, nil
	}
	p.IsClosed = true
	p.ClosedAt = &at
	st.periods[periodID] = p
	return true, nil
}

func (s *Store) SetMapping(key string, accountID int64) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mappings[key] = accountID
}

func (s *Store) Bind(key string, accountID int64) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.bindings = append(st.bindings, mappings.SubledgerBinding{Key: key, AccountID: accountID})
}

// SeedTrialBalance writes a row directly, as a previous rollover would have.
func (s *Store) SeedTrialBalance(row trialbalance.Row) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	row.EndingDebit, row.EndingCredit = trialbalance.Net(row.OpeningDebit, row.OpeningCredit, row.PeriodDebit, row.PeriodCredit)
	st.tb[tbKey{row.PeriodID, row.AccountID}] = row
}

// SetValuation fixes the sub-ledger value returned for key.
func (s *Store) SetValuation(key string, v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// FailCommits makes the next len(errs) transactions roll back with the given errors.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// GetValuation implements the sub-ledger valuation port.
func (s *Store) GetValuation(ctx context.Context, key string, periodID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return decimal.Zero, nil
	}
	return v, nil
}

// Record implements the audit port.
func (s *Store) Record(ctx context.Context, log internalShared.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

func (s *Store) AuditLogs() []internalShared.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internalShared.AuditLog(nil), s.audit...)
}

// TrialBalance returns the row for the pair and whether it exists.
func (s *Store) TrialBalance(periodID, accountID int64) (trialbalance.Row, bool) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := st.tb[tbKey{periodID, accountID}]
	return row, ok
}

// TrialBalanceRows returns every row of the period ordered by account.
func (s *Store) TrialBalanceRows(periodID int64) []trialbalance.Row {
	rows, _ := tbView{s.current()}.ListByPeriod(context.Background(), periodID)
	return rows
}

// GLRows returns the day rows of an account in a period ordered by date.
func (s *Store) GLRows(accountID, periodID int64) []glsummary.Row {
	rows, _ := glView{s.current()}.ListByAccount(context.Background(), accountID, periodID)
	return rows
}

// JournalCount counts stored journals of any status.
func (s *Store) JournalCount() int {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.journals)
}

func (s *Store) Journal(id int64) (journals.Journal, bool) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	j, ok := st.journals[id]
	return j, ok
}

func (s *Store) Periods() periods.Repository            { return periodView{s.current()} }
func (s *Store) Accounts() accounts.Repository          { return accountView{s.current()} }
func (s *Store) TrialBalances() trialbalance.Repository { return tbView{s.current()} }
func (s *Store) GLSummaries() glsummary.Repository      { return glView{s.current()} }
func (s *Store) Mappings() mappings.Repository          { return mappingView{s.current()} }

// Journals adapts the store to the posting service.
func (s *Store) Journals() journals.Repository { return journalRepo{s} }

// Rollover adapts the store to the rollover procedure.
func (s *Store) Rollover() rollover.Repository { return rolloverRepo{s} }

// JournalTotals implements the integrity read port.
func (s *Store) JournalTotals(ctx context.Context, periodID int64) ([]integrity.JournalTotal, error) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []integrity.JournalTotal
	for _, j := range st.journals {
		if j.PeriodID != periodID || j.Status != journals.StatusPosted {
			continue
		}
		d, c := j.Totals()
		out = append(out, integrity.JournalTotal{JournalID: j.ID, LedgerNumber: j.LedgerNumber, Debit: d, Credit: c})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].JournalID < out[k].JournalID })
	return out, nil
}

func (s *Store) LineTotals(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[int64][2]decimal.Decimal)
	for _, j := range st.journals {
		if j.PeriodID != periodID || j.Status != journals.StatusPosted {
			continue
		}
		for _, l := range j.Lines {
			sum := out[l.AccountID]
			out[l.AccountID] = [2]decimal.Decimal{sum[0].Add(l.Debit), sum[1].Add(l.Credit)}
		}
	}
	return out, nil
}

// CorruptTrialBalance overwrites a row without recomputing its ending.
func (s *Store) CorruptTrialBalance(row trialbalance.Row) {
	st := s.current()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tb[tbKey{row.PeriodID, row.AccountID}] = row
}

func (s *Store) withTx(ctx context.Context, fn func(*state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	work := s.current().clone()
	if err := fn(work); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	s.st = work
	return nil
}

type journalRepo struct{ s *Store }

func (r journalRepo) Get(ctx context.Context, id int64) (journals.Journal, error) {
	return txView{r.s.current()}.getJournal(id)
}

// NextLedgerSequence allocates outside withTx, so numbers of rolled back postings stay used.
func (r journalRepo) NextLedgerSequence(ctx context.Context, prefix string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sequences[prefix]++
	return r.s.sequences[prefix], nil
}

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.withTx(ctx, func(st *state) error { return fn(ctx, txView{st}) })
}

type rolloverRepo struct{ s *Store }

func (r rolloverRepo) WithTx(ctx context.Context, fn func(context.Context, rollover.TxRepository) error) error {
	return r.s.withTx(ctx, func(st *state) error { return fn(ctx, txView{st}) })
}

type txView struct{ st *state }

func (v txView) Periods() periods.Repository            { return periodView(v) }
func (v txView) Accounts() accounts.Repository          { return accountView(v) }
func (v txView) TrialBalances() trialbalance.Repository { return tbView(v) }
func (v txView) GLSummaries() glsummary.Repository      { return glView(v) }


func (v txView) InsertJournal(ctx context.Context, j *journals.Journal) error {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	for _, existing := range v.st.journals {
		if existing.LedgerNumber == j.LedgerNumber {
			return shared.ErrDuplicateLedgerNumber
		}
		if j.SourceModule != "" && existing.SourceModule == j.SourceModule && existing.SourceID == j.SourceID {
			return shared.ErrSourceAlreadyLinked
		}
	}
	v.st.nextJournal++
	j.ID = v.st.nextJournal
	for i := range j.Lines {
		j.Lines[i].JournalID = j.ID
		j.Lines[i].ID = j.ID*100 + int64(i+1)
	}
	stored := *j
	stored.Lines = append([]journals.Line(nil), j.Lines...)
	v.st.journals[j.ID] = stored
	return nil
}

func (v txView) GetJournalForUpdate(ctx context.Context, id int64) (journals.Journal, error) {
	return v.getJournal(id)
}

func (v txView) getJournal(id int64) (journals.Journal, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	j, ok := v.st.journals[id]
	if !ok {
		return journals.Journal{}, shared.ErrJournalNotFound
	}
	j.Lines = append([]journals.Line(nil), j.Lines...)
	return j, nil
}

func (v txView) MarkVoid(ctx context.Context, rec journals.VoidRecord) error {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	j, ok := v.st.journals[rec.JournalID]
	if !ok || j.Status != journals.StatusPosted {
		return shared.ErrInvalidStatus
	}
	j.Status = journals.StatusVoid
	actor, at := rec.ActorID, rec.At
	j.VoidedBy, j.VoidedAt, j.VoidReason = &actor, &at, rec.Reason
	v.st.journals[rec.JournalID] = j
	return nil
}

type periodView struct{ st *state }

func (v periodView) FindCovering(ctx context.Context, day time.Time) (periods.Period, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	for _, p := range v.st.periods {
		if p.Covers(day) {
			return p, nil
		}
	}
	return periods.Period{}, &shared.NoOpenPeriodError{Date: day}
}

func (v periodView) Get(ctx context.Context, id int64) (periods.Period, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	p, ok := v.st.periods[id]
	if !ok {
		return periods.Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (v periodView) GetForShare(ctx context.Context, id int64) (periods.Period, error) {
	return v.Get(ctx, id)
}

type accountView struct{ st *state }

func (v accountView) List(ctx context.Context) ([]accounts.Account, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	out := make([]accounts.Account, 0, len(v.st.accounts))
	for _, a := range v.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (v accountView) ListPosting(ctx context.Context) ([]accounts.Account, error) {
	all, _ := v.List(ctx)
	out := all[:0]
	for _, a := range all {
		if a.PostingType == accounts.PostingTypePosting {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v accountView) GetMany(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := v.st.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

type tbView struct{ st *state }

func (v tbView) ApplyDelta(ctx context.Context, periodID, accountID int64, debit, credit decimal.Decimal) error {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	key := tbKey{periodID, accountID}
	row, ok := v.st.tb[key]
	if !ok {
		row = trialbalance.NewRow(periodID, accountID)
	}
	v.st.tb[key] = row.Apply(debit, credit, time.Now())
	return nil
}

func (v tbView) SetOpening(ctx context.Context, periodID, accountID int64, o trialbalance.Opening) (bool, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	key := tbKey{periodID, accountID}
	row, ok := v.st.tb[key]
	if !ok {
		row = trialbalance.NewRow(periodID, accountID)
	}
	baseDebit, baseCredit := row.YTDDebit.Sub(row.PeriodDebit), row.YTDCredit.Sub(row.PeriodCredit)
	if ok && row.OpeningDebit.Equal(o.Debit) && row.OpeningCredit.Equal(o.Credit) &&
		baseDebit.Equal(o.YTDDebit) && baseCredit.Equal(o.YTDCredit) {
		return false, nil
	}
	v.st.tb[key] = row.WithOpening(o, time.Now())
	return true, nil
}

func (v tbView) Get(ctx context.Context, periodID, accountID int64) (trialbalance.Row, bool, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	row, ok := v.st.tb[tbKey{periodID, accountID}]
	if !ok {
		return trialbalance.NewRow(periodID, accountID), false, nil
	}
	return row, true, nil
}

func (v tbView) ListByPeriod(ctx context.Context, periodID int64) ([]trialbalance.Row, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	var out []trialbalance.Row
	for k, row := range v.st.tb {
		if k.period == periodID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

type glView struct{ st *state }

func (v glView) ApplyDelta(ctx context.Context, accountID, periodID int64, day time.Time, debit, credit decimal.Decimal, count int) error {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	key := glKey{accountID, periodID, day}
	row, ok := v.st.gl[key]
	if !ok {
		var prior *glsummary.Row
		for k, r := range v.st.gl {
			if k.account != accountID || k.period != periodID || !k.day.Before(day) {
				continue
			}
			if prior == nil || r.Date.After(prior.Date) {
				r := r
				prior = &r
			}
		}
		row = glsummary.Seed(accountID, periodID, day, prior)
	}
	row = row.Apply(debit, credit, count)
	v.st.gl[key] = row
	if delta := debit.Sub(credit); !delta.IsZero() {
		for k, r := range v.st.gl {
			if k.account == accountID && k.period == periodID && k.day.After(day) {
				v.st.gl[k] = r.Shift(delta)
			}
		}
	}
	if count < 0 && row.TransactionCount <= 0 {
		delete(v.st.gl, key)
	}
	return nil
}

func (v glView) ListByAccount(ctx context.Context, accountID, periodID int64) ([]glsummary.Row, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	var out []glsummary.Row
	for k, r := range v.st.gl {
		if k.account == accountID && k.period == periodID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (v glView) SumByPeriod(ctx context.Context, periodID int64) (map[int64][2]decimal.Decimal, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	out := make(map[int64][2]decimal.Decimal)
	for k, r := range v.st.gl {
		if k.period != periodID {
			continue
		}
		sum := out[k.account]
		out[k.account] = [2]decimal.Decimal{sum[0].Add(r.DebitTotal), sum[1].Add(r.CreditTotal)}
	}
	return out, nil
}

type mappingView struct{ st *state }

func (v mappingView) Get(ctx context.Context, key string) (mappings.SystemAccountMapping, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	id, ok := v.st.mappings[key]
	if !ok {
		return mappings.SystemAccountMapping{}, &shared.MissingSystemAccountMappingError{Key: key}
	}
	return mappings.SystemAccountMapping{Key: key, AccountID: id}, nil
}

func (v mappingView) ListBindings(ctx context.Context) ([]mappings.SubledgerBinding, error) {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	return append([]mappings.SubledgerBinding(nil), v.st.bindings...), nil
}
