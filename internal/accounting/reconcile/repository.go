package reconcile

import (
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/trialbalance"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type reader struct {
	db db.DBTX
}

// NewReader reads periods, accounts, trial balances and mappings outside a transaction.
func NewReader(conn db.DBTX) Reader {
	return reader{db: conn}
}

func (r reader) Periods() periods.Repository            { return periods.NewRepository(r.db) }
func (r reader) Accounts() accounts.Repository          { return accounts.NewRepository(r.db) }
func (r reader) TrialBalances() trialbalance.Repository { return trialbalance.NewRepository(r.db) }
func (r reader) Mappings() mappings.Repository          { return mappings.NewRepository(r.db) }
