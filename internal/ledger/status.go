package ledger

import (
	"time"

	"paylot.dev/internal/money"
)

// RecomputeStatus derives an obligation status from its inputs. It is a
// pure function: stores cache the result but must be able to re-derive
// it at read time, since pending flips to overdue by time passing alone.
//
// Precedence: completed, then partial, then pending/overdue by due date.
// A partially paid obligation past its due date reports partial.
func RecomputeStatus(paid, expected money.Amount, dueDate, today time.Time) Status {
	if money.Compare(paid, expected) >= 0 {
		return StatusCompleted
	}
	if paid.IsPositive() {
		return StatusPartial
	}
	if !DateOnly(dueDate).Before(DateOnly(today)) {
		return StatusPending
	}
	return StatusOverdue
}

// DateOnly truncates to UTC midnight. Due-date comparisons are calendar
// comparisons, not instant comparisons.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
