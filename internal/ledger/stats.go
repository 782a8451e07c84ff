package ledger

import (
	"time"
)

// BuildStats aggregates the obligations of one account into the rollup
// view. Statuses are re-derived against today, never trusted from the
// cached column. An account with no obligations yields zero-value stats;
// that is the valid "not yet initialized" state, not an error.
func BuildStats(acc Account, obligations []Obligation, today time.Time) Stats {
	stats := Stats{
		AccountID:       acc.ID,
		TotalSaleAmount: acc.TotalSaleAmount,
		AsOf:            today,
	}
	var nextDue *time.Time
	for _, o := range obligations {
		status := RecomputeStatus(o.AmountPaid, o.AmountExpected, o.DueDate, today)
		stats.TotalPaid += o.AmountPaid
		switch o.Kind {
		case KindDownPayment:
			stats.DownPayment = &KindSummary{
				Expected: o.AmountExpected,
				Paid:     o.AmountPaid,
				Status:   status,
			}
		case KindInitialPayment:
			stats.InitialPayment = &KindSummary{
				Expected: o.AmountExpected,
				Paid:     o.AmountPaid,
				Status:   status,
			}
		case KindInstallment:
			inst := &stats.Installments
			inst.Count++
			inst.Expected += o.AmountExpected
			inst.Paid += o.AmountPaid
			inst.TotalInterest += o.Interest
			switch status {
			case StatusCompleted:
				inst.Completed++
			case StatusPartial:
				inst.Partial++
			case StatusPending:
				inst.Pending++
				due := DateOnly(o.DueDate)
				if nextDue == nil || due.Before(*nextDue) {
					nextDue = &due
				}
			case StatusOverdue:
				inst.Overdue++
			}
		}
	}
	stats.Installments.NextDueDate = nextDue
	return stats
}
