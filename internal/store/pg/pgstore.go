// Package pg is the durable ledger implementation. Every mutation runs
// its read-check-write sequence inside a serializable transaction that
// locks the obligation row first, closing the lost-update race between
// concurrent payments against the same obligation.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"paylot.dev/internal/identity"
	"paylot.dev/internal/ids"
	"paylot.dev/internal/ledger"
	"paylot.dev/internal/money"
	"paylot.dev/internal/obs"
)

// Serialization failures are retried this many times before the caller
// sees ErrConflict.
const maxTxRetries = 3

type Store struct {
	db    *sql.DB
	roles identity.Provider
}

var _ ledger.Service = (*Store)(nil)

// Open connects to Postgres with tuned pool defaults.
func Open(dsn string, roles identity.Provider) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db, roles), nil
}

// NewStore wraps an existing handle; used by tests with sqlmock.
func NewStore(db *sql.DB, roles identity.Provider) *Store {
	return &Store{db: db, roles: roles}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Account resolves a sale account. The core never writes accounts.
func (s *Store) Account(ctx context.Context, id string) (ledger.Account, error) {
	var acc ledger.Account
	var total int64
	err := s.db.QueryRowContext(ctx, `
		select id, total_sale_amount, created_at from accounts where id = $1
	`, id).Scan(&acc.ID, &total, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	acc.TotalSaleAmount = money.Amount(total)
	return acc, nil
}

func (s *Store) GetObligations(ctx context.Context, accountID string) ([]ledger.Obligation, error) {
	if _, err := s.Account(ctx, accountID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, account_id, kind, installment_number, amount_expected, amount_paid,
		       interest, due_date, status, was_reset, created_at, updated_at
		from obligations
		where account_id = $1
		order by due_date asc, id asc
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	var out []ledger.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		// The cached status can lag (pending flips to overdue by time
		// passing alone); re-derive it for the caller.
		o.Status = ledger.RecomputeStatus(o.AmountPaid, o.AmountExpected, o.DueDate, now)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context, obligationID string) ([]ledger.Payment, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select true from obligations where id = $1`, obligationID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, obligation_id, amount, payment_date, method, receipt_ref, notes,
		       recorded_by, verified, verified_by, verified_at, verifier_name, created_at
		from payments
		where obligation_id = $1
		order by id asc
	`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RecordPayment(ctx context.Context, in ledger.PaymentInput) (ledger.Payment, error) {
	if !in.Amount.IsPositive() {
		return ledger.Payment{}, ledger.ErrInvalidAmount
	}
	var out ledger.Payment
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		o, err := lockObligation(ctx, tx, in.ObligationID)
		if err != nil {
			return err
		}
		remaining := money.Remaining(o.AmountExpected, o.AmountPaid)
		if money.Compare(in.Amount, remaining) > 0 {
			return &ledger.OverpaymentError{Remaining: remaining}
		}
		now := time.Now().UTC()
		p := ledger.Payment{
			ID:           ids.New(),
			ObligationID: o.ID,
			Amount:       in.Amount,
			PaymentDate:  paymentDate(in.PaymentDate, now),
			Method:       in.Method,
			ReceiptRef:   in.ReceiptRef,
			Notes:        in.Notes,
			RecordedBy:   in.RecordedBy,
			CreatedAt:    now,
		}
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
		if err := applyPaymentDelta(ctx, tx, &o, in.Amount, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return ledger.Payment{}, err
	}
	return out, nil
}

func (s *Store) MarkFullyPaid(ctx context.Context, obligationID, actorID string) (ledger.Payment, error) {
	var out ledger.Payment
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		o, err := lockObligation(ctx, tx, obligationID)
		if err != nil {
			return err
		}
		var existing int
		if err := tx.QueryRowContext(ctx, `
			select count(*) from payments where obligation_id = $1
		`, obligationID).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return ledger.ErrAlreadyHasPayments
		}
		now := time.Now().UTC()
		p := ledger.Payment{
			ID:           ids.New(),
			ObligationID: o.ID,
			Amount:       o.AmountExpected,
			PaymentDate:  ledger.DateOnly(now),
			Method:       ledger.ShortcutMethod,
			Notes:        ledger.ShortcutNote,
			RecordedBy:   actorID,
			CreatedAt:    now,
		}
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
		if err := applyPaymentDelta(ctx, tx, &o, o.AmountExpected, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return ledger.Payment{}, err
	}
	return out, nil
}

func (s *Store) UnmarkFullyPaid(ctx context.Context, obligationID, actorID string) (ledger.Obligation, error) {
	var out ledger.Obligation
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		o, err := lockObligation(ctx, tx, obligationID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			delete from payments where obligation_id = $1
		`, obligationID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := applyPaymentDelta(ctx, tx, &o, -o.AmountPaid, now); err != nil {
			return err
		}
		// Sticky by construction: only ever set, never cleared.
		if _, err := tx.ExecContext(ctx, `
			update obligations set was_reset = true where id = $1
		`, obligationID); err != nil {
			return err
		}
		o.WasReset = true
		out = o
		return nil
	})
	if err != nil {
		return ledger.Obligation{}, err
	}
	return out, nil
}

func (s *Store) VerifyPayment(ctx context.Context, paymentID, actorID string) (ledger.Payment, error) {
	actor, err := s.lookupFinanceActor(ctx, actorID)
	if err != nil {
		return ledger.Payment{}, err
	}
	var out ledger.Payment
	err = s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			select id, obligation_id, amount, payment_date, method, receipt_ref, notes,
			       recorded_by, verified, verified_by, verified_at, verifier_name, created_at
			from payments
			where id = $1
			for update
		`, paymentID)
		p, err := scanPayment(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.Verified {
			return ledger.ErrAlreadyVerified
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			update payments
			set verified = true, verified_by = $2, verified_at = $3, verifier_name = $4
			where id = $1
		`, paymentID, actor.ID, now, actor.DisplayName); err != nil {
			return err
		}
		p.Verified = true
		p.VerifiedBy = actor.ID
		p.VerifiedAt = &now
		p.VerifierName = actor.DisplayName
		out = p
		return nil
	})
	if err != nil {
		return ledger.Payment{}, err
	}
	return out, nil
}

// UnverifyPayment always fails: verification is one-way and undoing it
// is rejected explicitly rather than silently ignored.
func (s *Store) UnverifyPayment(ctx context.Context, paymentID, actorID string) error {
	var verified bool
	err := s.db.QueryRowContext(ctx, `
		select verified from payments where id = $1
	`, paymentID).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	return ledger.ErrIrreversibleAction
}

func (s *Store) GetStats(ctx context.Context, accountID string, today time.Time) (ledger.Stats, error) {
	acc, err := s.Account(ctx, accountID)
	if err != nil {
		return ledger.Stats{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, account_id, kind, installment_number, amount_expected, amount_paid,
		       interest, due_date, status, was_reset, created_at, updated_at
		from obligations
		where account_id = $1
	`, accountID)
	if err != nil {
		return ledger.Stats{}, err
	}
	defer rows.Close()

	var obligations []ledger.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return ledger.Stats{}, err
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return ledger.Stats{}, err
	}
	if today.IsZero() {
		today = time.Now().UTC()
	}
	return ledger.BuildStats(acc, obligations, today), nil
}

// --- transaction plumbing ---

func (s *Store) withSerializableTx(ctx context.Context, fn func(*sql.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if !isSerializationFailure(err) {
				return err
			}
			obs.CountLockConflict()
			continue
		}
		if err := tx.Commit(); err != nil {
			if !isSerializationFailure(err) {
				return err
			}
			obs.CountLockConflict()
			continue
		}
		return nil
	}
	return ledger.ErrConflict
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// lookupFinanceActor resolves the actor and enforces the finance gate.
// Only an unknown actor becomes ErrForbidden; identity-store failures
// propagate as-is so an outage never reads as a role denial.
func (s *Store) lookupFinanceActor(ctx context.Context, actorID string) (identity.Actor, error) {
	if s.roles == nil {
		return identity.Actor{}, ledger.ErrForbidden
	}
	actor, err := s.roles.Lookup(ctx, actorID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownActor) {
			return identity.Actor{}, ledger.ErrForbidden
		}
		return identity.Actor{}, err
	}
	if !actor.IsFinance() {
		return identity.Actor{}, ledger.ErrForbidden
	}
	return actor, nil
}

// lockObligation takes the row lock that serializes every mutation
// against this obligation for the rest of the transaction.
func lockObligation(ctx context.Context, tx *sql.Tx, id string) (ledger.Obligation, error) {
	row := tx.QueryRowContext(ctx, `
		select id, account_id, kind, installment_number, amount_expected, amount_paid,
		       interest, due_date, status, was_reset, created_at, updated_at
		from obligations
		where id = $1
		for update
	`, id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Obligation{}, ledger.ErrNotFound
	}
	return o, err
}

// applyPaymentDelta is the single place amount_paid and status change,
// for inserts and resets alike; it must run in the same transaction as
// the payment write it reflects.
func applyPaymentDelta(ctx context.Context, tx *sql.Tx, o *ledger.Obligation, delta money.Amount, now time.Time) error {
	o.AmountPaid += delta
	o.Status = ledger.RecomputeStatus(o.AmountPaid, o.AmountExpected, o.DueDate, now)
	o.UpdatedAt = now
	_, err := tx.ExecContext(ctx, `
		update obligations set amount_paid = $2, status = $3, updated_at = $4 where id = $1
	`, o.ID, int64(o.AmountPaid), string(o.Status), now)
	return err
}

func insertPayment(ctx context.Context, tx *sql.Tx, p ledger.Payment) error {
	_, err := tx.ExecContext(ctx, `
		insert into payments (id, obligation_id, amount, payment_date, method, receipt_ref,
		                      notes, recorded_by, verified, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
	`, p.ID, p.ObligationID, int64(p.Amount), p.PaymentDate, p.Method, p.ReceiptRef,
		p.Notes, p.RecordedBy, p.CreatedAt)
	return err
}

func paymentDate(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return ledger.DateOnly(fallback)
	}
	return ledger.DateOnly(t)
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (ledger.Obligation, error) {
	var (
		o          ledger.Obligation
		instNumber sql.NullInt64
		expected   int64
		paid       int64
		interest   int64
		status     string
		kind       string
	)
	err := row.Scan(&o.ID, &o.AccountID, &kind, &instNumber, &expected, &paid,
		&interest, &o.DueDate, &status, &o.WasReset, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return ledger.Obligation{}, err
	}
	o.Kind = ledger.Kind(kind)
	o.Status = ledger.Status(status)
	o.AmountExpected = money.Amount(expected)
	o.AmountPaid = money.Amount(paid)
	o.Interest = money.Amount(interest)
	if instNumber.Valid {
		n := int(instNumber.Int64)
		o.InstallmentNumber = &n
	}
	return o, nil
}

func scanPayment(row rowScanner) (ledger.Payment, error) {
	var (
		p          ledger.Payment
		amount     int64
		receiptRef sql.NullString
		notes      sql.NullString
		verifiedBy sql.NullString
		verifiedAt sql.NullTime
		verifier   sql.NullString
	)
	err := row.Scan(&p.ID, &p.ObligationID, &amount, &p.PaymentDate, &p.Method,
		&receiptRef, &notes, &p.RecordedBy, &p.Verified, &verifiedBy, &verifiedAt,
		&verifier, &p.CreatedAt)
	if err != nil {
		return ledger.Payment{}, err
	}
	p.Amount = money.Amount(amount)
	p.ReceiptRef = receiptRef.String
	p.Notes = notes.String
	p.VerifiedBy = verifiedBy.String
	p.VerifierName = verifier.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	return p, nil
}
