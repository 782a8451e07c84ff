package ledger

import (
	"testing"
)

func intp(v int) *int { return &v }

func TestBuildStatsPartitionsByKind(t *testing.T) {
	today := date(2025, 6, 15)
	acc := Account{ID: "acc-1", TotalSaleAmount: cents(5_000_000)}

	obligations := []Obligation{
		{Kind: KindDownPayment, AmountExpected: cents(500_000), AmountPaid: cents(500_000), DueDate: date(2025, 1, 1)},
		{Kind: KindInitialPayment, AmountExpected: cents(300_000), AmountPaid: cents(100_000), DueDate: date(2025, 2, 1)},
		// Completed installment.
		{Kind: KindInstallment, InstallmentNumber: intp(1), AmountExpected: cents(100_000), AmountPaid: cents(100_000), Interest: cents(0), DueDate: date(2025, 3, 1)},
		// Overdue, unpaid, carries accrued interest.
		{Kind: KindInstallment, InstallmentNumber: intp(2), AmountExpected: cents(100_000), AmountPaid: 0, Interest: cents(1_500), DueDate: date(2025, 4, 1)},
		// Partial.
		{Kind: KindInstallment, InstallmentNumber: intp(3), AmountExpected: cents(100_000), AmountPaid: cents(40_000), Interest: cents(500), DueDate: date(2025, 5, 1)},
		// Two pending, not yet due; the earlier one drives next_due_date.
		{Kind: KindInstallment, InstallmentNumber: intp(4), AmountExpected: cents(100_000), AmountPaid: 0, DueDate: date(2025, 7, 1)},
		{Kind: KindInstallment, InstallmentNumber: intp(5), AmountExpected: cents(100_000), AmountPaid: 0, DueDate: date(2025, 8, 1)},
	}

	stats := BuildStats(acc, obligations, today)

	if stats.TotalSaleAmount != cents(5_000_000) {
		t.Fatalf("total sale amount = %s", stats.TotalSaleAmount)
	}
	if stats.TotalPaid != cents(740_000) {
		t.Fatalf("total paid = %s", stats.TotalPaid)
	}
	if stats.DownPayment == nil || stats.DownPayment.Status != StatusCompleted {
		t.Fatalf("down payment summary: %+v", stats.DownPayment)
	}
	if stats.InitialPayment == nil || stats.InitialPayment.Status != StatusPartial || stats.InitialPayment.Paid != cents(100_000) {
		t.Fatalf("initial payment summary: %+v", stats.InitialPayment)
	}

	inst := stats.Installments
	if inst.Count != 5 || inst.Completed != 1 || inst.Partial != 1 || inst.Pending != 2 || inst.Overdue != 1 {
		t.Fatalf("installment counts: %+v", inst)
	}
	if inst.TotalInterest != cents(2_000) {
		t.Fatalf("total interest = %s", inst.TotalInterest)
	}
	if inst.NextDueDate == nil || !inst.NextDueDate.Equal(date(2025, 7, 1)) {
		t.Fatalf("next due date = %v", inst.NextDueDate)
	}
}

func TestBuildStatsEmptyAccount(t *testing.T) {
	stats := BuildStats(Account{ID: "acc-1", TotalSaleAmount: cents(100)}, nil, date(2025, 1, 1))
	if stats.TotalPaid != 0 {
		t.Fatalf("total paid = %s", stats.TotalPaid)
	}
	if stats.DownPayment != nil || stats.InitialPayment != nil {
		t.Fatal("expected nil kind summaries for empty account")
	}
	if stats.Installments.Count != 0 || stats.Installments.NextDueDate != nil {
		t.Fatalf("installments: %+v", stats.Installments)
	}
}

func TestBuildStatsNoPendingMeansNoNextDueDate(t *testing.T) {
	today := date(2025, 6, 15)
	obligations := []Obligation{
		{Kind: KindInstallment, AmountExpected: cents(100), AmountPaid: cents(100), DueDate: date(2025, 1, 1)},
		{Kind: KindInstallment, AmountExpected: cents(100), AmountPaid: 0, DueDate: date(2025, 2, 1)},
	}
	stats := BuildStats(Account{ID: "acc-1"}, obligations, today)
	if stats.Installments.NextDueDate != nil {
		t.Fatalf("next due date should be nil, got %v", stats.Installments.NextDueDate)
	}
	if stats.Installments.Overdue != 1 || stats.Installments.Completed != 1 {
		t.Fatalf("counts: %+v", stats.Installments)
	}
}
