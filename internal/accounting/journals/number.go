package journals

import (
	"fmt"
	"time"
)

// LedgerPrefix scopes ledger sequences to reference type and reporting day.
func LedgerPrefix(t ReferenceType, day time.Time) string {
	return fmt.Sprintf("JV-%s-%s", t, day.Format("20060102"))
}

// LedgerNumber formats a sequence value under prefix.
func LedgerNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}
