package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"paylot.dev/internal/identity"
	"paylot.dev/internal/ids"
	"paylot.dev/internal/money"
)

// Service defines the installment ledger operations.
type Service interface {
	GetObligations(ctx context.Context, accountID string) ([]Obligation, error)
	ListPayments(ctx context.Context, obligationID string) ([]Payment, error)
	RecordPayment(ctx context.Context, in PaymentInput) (Payment, error)
	MarkFullyPaid(ctx context.Context, obligationID, actorID string) (Payment, error)
	UnmarkFullyPaid(ctx context.Context, obligationID, actorID string) (Obligation, error)
	VerifyPayment(ctx context.Context, paymentID, actorID string) (Payment, error)
	UnverifyPayment(ctx context.Context, paymentID, actorID string) error
	GetStats(ctx context.Context, accountID string, today time.Time) (Stats, error)
}

// InMemory implements Service with in-process concurrency safety. It is
// the reference semantics; store/pg is the durable implementation.
type InMemory struct {
	mu          sync.RWMutex
	roles       identity.Provider
	accounts    map[string]*Account
	obligations map[string]*Obligation
	payments    map[string]*Payment
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty ledger. The role provider gates the
// verification workflow.
func NewInMemory(roles identity.Provider) *InMemory {
	return &InMemory{
		roles:       roles,
		accounts:    make(map[string]*Account),
		obligations: make(map[string]*Obligation),
		payments:    make(map[string]*Payment),
	}
}

// SeedAccount loads an externally created sale account.
func (s *InMemory) SeedAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.accounts[a.ID] = &a
}

// SeedObligation loads an obligation created upstream. The derived
// fields start from a clean slate regardless of input.
func (s *InMemory) SeedObligation(o Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[o.AccountID]; !ok {
		return ErrNotFound
	}
	if o.ID == "" {
		o.ID = ids.New()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.AmountPaid = 0
	o.WasReset = false
	o.Status = RecomputeStatus(0, o.AmountExpected, o.DueDate, now)
	o.UpdatedAt = now
	s.obligations[o.ID] = &o
	return nil
}

func (s *InMemory) GetObligations(ctx context.Context, accountID string) ([]Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	var out []Obligation
	for _, o := range s.obligations {
		if o.AccountID != accountID {
			continue
		}
		cp := *o
		cp.Status = RecomputeStatus(cp.AmountPaid, cp.AmountExpected, cp.DueDate, now)
		out = append(out, cp)
	}
	sortObligations(out)
	return out, nil
}

func (s *InMemory) ListPayments(ctx context.Context, obligationID string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.obligations[obligationID]; !ok {
		return nil, ErrNotFound
	}
	var out []Payment
	for _, p := range s.payments {
		if p.ObligationID == obligationID {
			out = append(out, *p)
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) RecordPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if !in.Amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[in.ObligationID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	remaining := money.Remaining(o.AmountExpected, o.AmountPaid)
	if money.Compare(in.Amount, remaining) > 0 {
		return Payment{}, &OverpaymentError{Remaining: remaining}
	}
	now := time.Now().UTC()
	p := &Payment{
		ID:           ids.New(),
		ObligationID: o.ID,
		Amount:       in.Amount,
		PaymentDate:  defaultDate(in.PaymentDate, now),
		Method:       strings.TrimSpace(in.Method),
		ReceiptRef:   strings.TrimSpace(in.ReceiptRef),
		Notes:        strings.TrimSpace(in.Notes),
		RecordedBy:   strings.TrimSpace(in.RecordedBy),
		CreatedAt:    now,
	}
	s.payments[p.ID] = p
	s.applyPaymentDelta(o, in.Amount, now)
	return *p, nil
}

func (s *InMemory) MarkFullyPaid(ctx context.Context, obligationID, actorID string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[obligationID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	for _, p := range s.payments {
		if p.ObligationID == obligationID {
			return Payment{}, ErrAlreadyHasPayments
		}
	}
	now := time.Now().UTC()
	p := &Payment{
		ID:           ids.New(),
		ObligationID: o.ID,
		Amount:       o.AmountExpected,
		PaymentDate:  DateOnly(now),
		Method:       ShortcutMethod,
		Notes:        ShortcutNote,
		RecordedBy:   strings.TrimSpace(actorID),
		CreatedAt:    now,
	}
	s.payments[p.ID] = p
	s.applyPaymentDelta(o, o.AmountExpected, now)
	return *p, nil
}

func (s *InMemory) UnmarkFullyPaid(ctx context.Context, obligationID, actorID string) (Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[obligationID]
	if !ok {
		return Obligation{}, ErrNotFound
	}
	for id, p := range s.payments {
		if p.ObligationID == obligationID {
			delete(s.payments, id)
		}
	}
	now := time.Now().UTC()
	s.applyPaymentDelta(o, -o.AmountPaid, now)
	o.WasReset = true
	return *o, nil
}

func (s *InMemory) VerifyPayment(ctx context.Context, paymentID, actorID string) (Payment, error) {
	actor, err := s.lookupFinanceActor(ctx, actorID)
	if err != nil {
		return Payment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	if p.Verified {
		return Payment{}, ErrAlreadyVerified
	}
	now := time.Now().UTC()
	p.Verified = true
	p.VerifiedBy = actor.ID
	p.VerifiedAt = &now
	p.VerifierName = actor.DisplayName
	return *p, nil
}

// UnverifyPayment always fails: verification is one-way and a request
// to undo it must be rejected, never treated as a no-op.
func (s *InMemory) UnverifyPayment(ctx context.Context, paymentID, actorID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.payments[paymentID]; !ok {
		return ErrNotFound
	}
	return ErrIrreversibleAction
}

func (s *InMemory) GetStats(ctx context.Context, accountID string, today time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return Stats{}, ErrNotFound
	}
	if today.IsZero() {
		today = time.Now().UTC()
	}
	var obs []Obligation
	for _, o := range s.obligations {
		if o.AccountID == accountID {
			obs = append(obs, *o)
		}
	}
	return BuildStats(*acc, obs, today), nil
}

// applyPaymentDelta is the single place where amount_paid and status
// change, for inserts and resets alike; callers hold the write lock.
func (s *InMemory) applyPaymentDelta(o *Obligation, delta money.Amount, now time.Time) {
	o.AmountPaid += delta
	o.Status = RecomputeStatus(o.AmountPaid, o.AmountExpected, o.DueDate, now)
	o.UpdatedAt = now
}

// lookupFinanceActor resolves the actor and enforces the finance gate.
// Only an unknown actor becomes ErrForbidden; identity-store failures
// propagate as-is so an outage never reads as a role denial.
func (s *InMemory) lookupFinanceActor(ctx context.Context, actorID string) (identity.Actor, error) {
	if s.roles == nil {
		return identity.Actor{}, ErrForbidden
	}
	actor, err := s.roles.Lookup(ctx, actorID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownActor) {
			return identity.Actor{}, ErrForbidden
		}
		return identity.Actor{}, err
	}
	if !actor.IsFinance() {
		return identity.Actor{}, ErrForbidden
	}
	return actor, nil
}

func sortObligations(out []Obligation) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
}

func defaultDate(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return DateOnly(fallback)
	}
	return DateOnly(t)
}
