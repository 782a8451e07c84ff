package ledger

import (
	"time"

	"paylot.dev/internal/money"
)

// Kind classifies an obligation within a sale.
type Kind string

const (
	KindDownPayment    Kind = "down_payment"
	KindInitialPayment Kind = "initial_payment"
	KindInstallment    Kind = "installment"
)

// Status is derived from (amountPaid, amountExpected, dueDate, today).
// It is cached on the obligation but always re-derivable; see RecomputeStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

// Payments synthesized by the mark-fully-paid shortcut carry a fixed
// method and note so they stay distinguishable in the history.
const (
	ShortcutMethod = "full_payment"
	ShortcutNote   = "marked as fully paid"
)

// Account is the parent sale. The ledger only reads it; creation and the
// rest of the sale lifecycle live upstream in the CRM.
type Account struct {
	ID              string       `json:"id"`
	TotalSaleAmount money.Amount `json:"total_sale_amount"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Obligation is a single expected payment on a sale: the down payment,
// the initial payment, or one monthly installment.
type Obligation struct {
	ID                string       `json:"id"`
	AccountID         string       `json:"account_id"`
	Kind              Kind         `json:"kind"`
	InstallmentNumber *int         `json:"installment_number,omitempty"`
	AmountExpected    money.Amount `json:"amount_expected"`
	AmountPaid        money.Amount `json:"amount_paid"`
	Interest          money.Amount `json:"interest"`
	DueDate           time.Time    `json:"due_date"`
	Status            Status       `json:"status"`
	WasReset          bool         `json:"was_reset"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Payment is one recorded transfer of money against an obligation.
// Verification fields are written exactly once, together.
type Payment struct {
	ID           string       `json:"id"`
	ObligationID string       `json:"obligation_id"`
	Amount       money.Amount `json:"amount"`
	PaymentDate  time.Time    `json:"payment_date"`
	Method       string       `json:"method"`
	ReceiptRef   string       `json:"receipt_ref,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	RecordedBy   string       `json:"recorded_by"`
	Verified     bool         `json:"verified"`
	VerifiedBy   string       `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time   `json:"verified_at,omitempty"`
	VerifierName string       `json:"verifier_name,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// PaymentInput carries everything needed to record a payment.
type PaymentInput struct {
	ObligationID string
	Amount       money.Amount
	PaymentDate  time.Time
	Method       string
	ReceiptRef   string
	Notes        string
	RecordedBy   string
}

// KindSummary reports a single-obligation kind (down or initial payment).
type KindSummary struct {
	Expected money.Amount `json:"expected"`
	Paid     money.Amount `json:"paid"`
	Status   Status       `json:"status"`
}

// InstallmentSummary aggregates the monthly installments. Pending counts
// only installments not yet due; past-due unpaid ones count as overdue.
type InstallmentSummary struct {
	Count         int          `json:"count"`
	Completed     int          `json:"completed"`
	Partial       int          `json:"partial"`
	Pending       int          `json:"pending"`
	Overdue       int          `json:"overdue"`
	Expected      money.Amount `json:"expected"`
	Paid          money.Amount `json:"paid"`
	TotalInterest money.Amount `json:"total_interest"`
	NextDueDate   *time.Time   `json:"next_due_date,omitempty"`
}

// Stats is the rollup view for one account.
type Stats struct {
	AccountID       string             `json:"account_id"`
	TotalSaleAmount money.Amount       `json:"total_sale_amount"`
	TotalPaid       money.Amount       `json:"total_paid"`
	DownPayment     *KindSummary       `json:"down_payment,omitempty"`
	InitialPayment  *KindSummary       `json:"initial_payment,omitempty"`
	Installments    InstallmentSummary `json:"installments"`
	AsOf            time.Time          `json:"as_of"`
}
