package ledger

import (
	"testing"
	"time"

	"paylot.dev/internal/money"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cents(v int64) money.Amount { return money.Amount(v) }

func TestRecomputeStatus(t *testing.T) {
	jan1 := date(2025, 1, 1)
	feb1 := date(2025, 2, 1)

	cases := []struct {
		name           string
		paid, expected int64
		dueDate, today time.Time
		want           Status
	}{
		{"unpaid not due", 0, 50000, feb1, jan1, StatusPending},
		{"unpaid due today", 0, 50000, jan1, jan1, StatusPending},
		{"unpaid past due", 0, 50000, jan1, feb1, StatusOverdue},
		{"partial", 10000, 50000, feb1, jan1, StatusPartial},
		{"partial past due stays partial", 10000, 50000, jan1, feb1, StatusPartial},
		{"exactly paid", 50000, 50000, jan1, feb1, StatusCompleted},
		{"paid above expected", 50001, 50000, feb1, jan1, StatusCompleted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := RecomputeStatus(cents(c.paid), cents(c.expected), c.dueDate, c.today)
			if got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

// Re-derivation with the same inputs always yields the same status.
func TestRecomputeStatusIdempotent(t *testing.T) {
	due := date(2025, 6, 1)
	today := date(2025, 5, 1)
	first := RecomputeStatus(cents(100), cents(200), due, today)
	second := RecomputeStatus(cents(100), cents(200), due, today)
	if first != second {
		t.Fatalf("not idempotent: %s then %s", first, second)
	}
}

func TestDateOnlyIgnoresClockTime(t *testing.T) {
	late := time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC)
	if !DateOnly(late).Equal(date(2025, 1, 1)) {
		t.Fatalf("DateOnly = %v", DateOnly(late))
	}
	// Due at any time on the due date is still on time.
	if RecomputeStatus(0, cents(100), date(2025, 1, 1), late) != StatusPending {
		t.Fatal("payment due today flagged overdue")
	}
}
