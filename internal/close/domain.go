// Package close runs the period close checklist and locks the period against postings.
package close

import (
	"errors"
	"time"
)

// ChecklistStatus describes the outcome of one close step.
type ChecklistStatus string

const (
	ChecklistStatusDone   ChecklistStatus = "DONE"
	ChecklistStatusFailed ChecklistStatus = "FAILED"
)

// Checklist step codes.
const (
	StepSubledgerRecon = "SUBLEDGER_RECON"
	StepIntegrity      = "LEDGER_INTEGRITY"
)

// ChecklistItem captures one verified step of a close run.
type ChecklistItem struct {
	Code   string          `json:"code"`
	Label  string          `json:"label"`
	Status ChecklistStatus `json:"status"`
	Detail string          `json:"detail,omitempty"`
}

// Run is the outcome of a close attempt.
type Run struct {
	PeriodID      int64           `json:"period_id"`
	PeriodCode    string          `json:"period_code"`
	Closed        bool            `json:"closed"`
	AlreadyClosed bool            `json:"already_closed"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	Checklist     []ChecklistItem `json:"checklist"`
	Adjustments   []int64         `json:"adjustment_journal_ids,omitempty"`
}

// Complete reports whether every checklist step passed.
func (r Run) Complete() bool {
	for _, item := range r.Checklist {
		if item.Status != ChecklistStatusDone {
			return false
		}
	}
	return true
}

// Options tune a single close.
type Options struct {
	ActorID int64
}

// ErrChecklistIncomplete is returned when a checklist step failed; the period stays open.
var ErrChecklistIncomplete = errors.New("close: checklist not complete")
