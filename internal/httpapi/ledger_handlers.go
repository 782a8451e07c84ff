package httpapi

import (
	"net/http"
	"strings"
	"time"

	"paylot.dev/internal/audit"
	"paylot.dev/internal/auth"
	"paylot.dev/internal/identity"
	"paylot.dev/internal/ledger"
	"paylot.dev/internal/money"
	"paylot.dev/internal/obs"
)

type recordPaymentRequest struct {
	Amount      money.Amount `json:"amount"`
	PaymentDate string       `json:"payment_date"`
	Method      string       `json:"method"`
	ReceiptRef  string       `json:"receipt_ref"`
	Notes       string       `json:"notes"`
}

type verifyPaymentRequest struct {
	Verified bool `json:"verified"`
}

type listObligationsResponse struct {
	Items []ledger.Obligation `json:"items"`
	AsOf  time.Time           `json:"as_of"`
}

type listPaymentsResponse struct {
	Items []ledger.Payment `json:"items"`
	AsOf  time.Time        `json:"as_of"`
}

// /v1/accounts/{id}/obligations and /v1/accounts/{id}/stats
func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")

	if id, ok := trimResourceSuffix(path, "/obligations"); ok {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listObligations(w, r, id)
		return
	}
	if id, ok := trimResourceSuffix(path, "/stats"); ok {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getStats(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

// /v1/obligations/{id}/payments, /v1/obligations/{id}/mark-paid and
// /v1/obligations/{id}/unmark-paid
func (a *API) handleObligationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/obligations/")

	if id, ok := trimResourceSuffix(path, "/payments"); ok {
		switch r.Method {
		case http.MethodGet:
			a.listPayments(w, r, id)
		case http.MethodPost:
			a.recordPayment(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
		return
	}
	if id, ok := trimResourceSuffix(path, "/mark-paid"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.markFullyPaid(w, r, id)
		return
	}
	if id, ok := trimResourceSuffix(path, "/unmark-paid"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.unmarkFullyPaid(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

// /v1/payments/{id}/verify
func (a *API) handlePaymentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/payments/")

	if id, ok := trimResourceSuffix(path, "/verify"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.verifyPayment(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) listObligations(w http.ResponseWriter, r *http.Request, accountID string) {
	items, err := a.ledger.GetObligations(r.Context(), accountID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listObligationsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request, accountID string) {
	today := time.Time{}
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "as_of must be a YYYY-MM-DD date")
			return
		}
		today = parsed
	}
	stats, err := a.ledger.GetStats(r.Context(), accountID, today)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request, obligationID string) {
	items, err := a.ledger.ListPayments(r.Context(), obligationID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listPaymentsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request, obligationID string) {
	if !a.requireAnyRole(w, r, identity.RoleCollection, identity.RoleFinance) {
		return
	}
	var req recordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var paymentDate time.Time
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "payment_date must be a YYYY-MM-DD date")
			return
		}
		paymentDate = parsed
	}
	actorID, _ := auth.UserIDFromContext(r.Context())

	p, err := a.ledger.RecordPayment(r.Context(), ledger.PaymentInput{
		ObligationID: obligationID,
		Amount:       req.Amount,
		PaymentDate:  paymentDate,
		Method:       req.Method,
		ReceiptRef:   req.ReceiptRef,
		Notes:        req.Notes,
		RecordedBy:   actorID,
	})
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountPaymentRecorded(p.Method)
	_ = audit.LogEvent(r.Context(), "ledger.payment.record", map[string]any{
		"payment_id":    p.ID,
		"obligation_id": obligationID,
		"amount":        p.Amount.String(),
		"method":        p.Method,
	})

	w.Header().Set("Location", "/v1/payments/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) markFullyPaid(w http.ResponseWriter, r *http.Request, obligationID string) {
	if !a.requireAnyRole(w, r, identity.RoleCollection, identity.RoleFinance) {
		return
	}
	actorID, _ := auth.UserIDFromContext(r.Context())

	p, err := a.ledger.MarkFullyPaid(r.Context(), obligationID, actorID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountPaymentRecorded(p.Method)
	_ = audit.LogEvent(r.Context(), "ledger.payment.mark_fully_paid", map[string]any{
		"payment_id":    p.ID,
		"obligation_id": obligationID,
		"amount":        p.Amount.String(),
	})

	w.Header().Set("Location", "/v1/payments/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) unmarkFullyPaid(w http.ResponseWriter, r *http.Request, obligationID string) {
	if !a.requireAnyRole(w, r, identity.RoleCollection, identity.RoleFinance) {
		return
	}
	actorID, _ := auth.UserIDFromContext(r.Context())

	o, err := a.ledger.UnmarkFullyPaid(r.Context(), obligationID, actorID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountObligationReset()
	_ = audit.LogEvent(r.Context(), "ledger.obligation.reset", map[string]any{
		"obligation_id": obligationID,
		"actor_id":      actorID,
	})

	writeJSON(w, http.StatusOK, o)
}

func (a *API) verifyPayment(w http.ResponseWriter, r *http.Request, paymentID string) {
	var req verifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actorID, _ := auth.UserIDFromContext(r.Context())

	if !req.Verified {
		// Un-verifying is rejected; the service distinguishes a missing
		// payment from an irreversible one.
		if err := a.ledger.UnverifyPayment(r.Context(), paymentID, actorID); err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeError(w, r, http.StatusConflict, "verification cannot be undone")
		return
	}

	p, err := a.ledger.VerifyPayment(r.Context(), paymentID, actorID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.CountPaymentVerified()
	_ = audit.LogEvent(r.Context(), "ledger.payment.verify", map[string]any{
		"payment_id": paymentID,
		"actor_id":   actorID,
	})

	writeJSON(w, http.StatusOK, p)
}

// trimResourceSuffix extracts the id from "{id}<suffix>" paths.
func trimResourceSuffix(path, suffix string) (string, bool) {
	if !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(path, suffix)
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
