package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/rollover"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	"github.com/odyssey-erp/odyssey-ledger/internal/close"
	closehttp "github.com/odyssey-erp/odyssey-ledger/internal/close/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const accountsCacheKey = "ledger:accounts:v1"

// Ledger holds the wired ledger services shared by the server, the worker and the CLI.
type Ledger struct {
	Accounts     *accounts.Service
	Periods      *periods.Service
	Journals     *journals.Service
	TrialBalance *trialbalance.Service
	Rollover     *rollover.Service
	Reconcile    *reconcile.Service
	Integrity    *integrity.Checker
	Close        *close.Service
	Hooks        *integration.Hooks
	Idempotency  *shared.IdempotencyStore
	AccountCache *cache.JSON[[]accounts.Account]
}

// NewLedger wires the ledger over postgres and redis. A nil redis client disables period
// locking and the account cache; metrics may be nil.
func NewLedger(cfg *Config, pool *pgxpool.Pool, rdb redis.UniversalClient, metrics *observability.Metrics, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	boundary := cfg.DayBoundary()
	audit := shared.NewAuditLogger(pool)

	posting := journals.NewService(journals.NewRepository(pool), audit, journals.Config{
		Epsilon:      cfg.Epsilon(),
		MaxAttempts:  cfg.LedgerPostMaxAttempts,
		Backoff:      cfg.LedgerRetryBackoff,
		BaseCurrency: cfg.LedgerBaseCurrency,
		Boundary:     boundary,
	}, logger.With(slog.String("component", "journals")))
	if metrics != nil {
		posting.WithObserver(metrics)
	}

	var locker *lock.PeriodLocker
	var accountCache *cache.JSON[[]accounts.Account]
	if rdb != nil {
		locker = lock.NewPeriodLocker(rdb, cfg.LedgerLockTTL, logger)
		accountCache = cache.NewJSON[[]accounts.Account](rdb, accountsCacheKey, 10*time.Minute)
	}

	periodRepo := periods.NewRepository(pool)
	valuator := inventory.NewValuator(inventory.NewRepository(pool), periodRepo, boundary)

	reconciler := reconcile.NewService(reconcile.NewReader(pool), valuator, posting, periodLockerOrNil(locker), audit, reconcile.Config{
		Epsilon:  cfg.Epsilon(),
		Boundary: boundary,
	}, logger.With(slog.String("component", "reconcile")))
	checker := integrity.NewChecker(integrity.NewRepository(pool), cfg.Epsilon(), logger.With(slog.String("component", "integrity")))

	return &Ledger{
		Accounts:     accounts.NewService(accounts.NewRepository(pool)),
		Periods:      periods.NewService(periodRepo, boundary),
		Journals:     posting,
		TrialBalance: trialbalance.NewService(trialbalance.NewReader(pool)),
		Rollover:     rollover.NewService(rollover.NewRepository(pool), periodLockerOrNil(locker), audit, logger.With(slog.String("component", "rollover"))),
		Reconcile:    reconciler,
		Integrity:    checker,
		Close:        close.NewService(close.NewRepository(pool), reconciler, checker, periodLockerOrNil(locker), audit, logger.With(slog.String("component", "close"))),
		Hooks:        integration.NewHooks(posting, mappings.NewRepository(pool), logger.With(slog.String("component", "integration"))),
		Idempotency:  shared.NewIdempotencyStore(pool),
		AccountCache: accountCache,
	}
}

type periodLocker interface {
	reconcile.PeriodLocker
	rollover.PeriodLocker
	close.PeriodLocker
}

// periodLockerOrNil keeps a nil *PeriodLocker from becoming a non-nil interface.
func periodLockerOrNil(l *lock.PeriodLocker) periodLocker {
	if l == nil {
		return nil
	}
	return l
}

// RouterParams fills the ledger handlers of params.
func (l *Ledger) RouterParams(params RouterParams) RouterParams {
	var listCache accounts.ListCache
	if l.AccountCache != nil {
		listCache = l.AccountCache
	}
	params.AccountsHandler = accounts.NewHandler(params.Logger, l.Accounts, listCache)
	params.JournalsHandler = journals.NewHandler(params.Logger, l.Journals, l.Idempotency)
	params.TrialBalanceHandler = trialbalance.NewHandler(params.Logger, l.TrialBalance)
	params.CloseHandler = closehttp.NewHandler(params.Logger, l.Close)
	return params
}
