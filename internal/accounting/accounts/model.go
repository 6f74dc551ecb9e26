package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeCOGS      AccountType = "COGS"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance is the side on which an account naturally increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// PostingType separates aggregating headers from postable leaves.
type PostingType string

const (
	PostingTypeHeader  PostingType = "HEADER"
	PostingTypePosting PostingType = "POSTING"
)

// Account models a chart of accounts node.
type Account struct {
	ID            int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	PostingType   PostingType
	ParentID      *int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.IsActive && a.PostingType == PostingTypePosting
}

// DefaultNormalBalance derives the conventional side for an account type.
func DefaultNormalBalance(t AccountType) NormalBalance {
	switch t {
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return NormalCredit
	default:
		return NormalDebit
	}
}
