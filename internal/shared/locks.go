package shared

import "fmt"

// PeriodLockKey builds the redis key guarding batch jobs on a ledger period.
func PeriodLockKey(periodID int64) string {
	return fmt.Sprintf("ledger:period:%d:lock", periodID)
}
