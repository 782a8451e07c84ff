package ledger

import (
	"errors"
	"fmt"

	"paylot.dev/internal/money"
)

// Business-rule violations are returned as typed values so the calling
// UI can render a specific message per kind. Infrastructure failures
// propagate as plain errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount (must be > 0)")
	ErrAlreadyHasPayments = errors.New("obligation already has recorded payments")
	ErrForbidden          = errors.New("actor lacks the finance role")
	ErrAlreadyVerified    = errors.New("payment is already verified")
	ErrIrreversibleAction = errors.New("verification cannot be undone")
	ErrConflict           = errors.New("concurrent update conflict, retry the operation")
)

// OverpaymentError reports a payment exceeding the remaining balance.
// Remaining is included so clients can display it.
type OverpaymentError struct {
	Remaining money.Amount
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment exceeds remaining balance of %s", e.Remaining)
}
