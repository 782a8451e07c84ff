// Package remote is a typed HTTP client for the ledger API. It lets the
// CRM's other services and the smoke tool talk to a running paylot-api
// through the same Service interface the in-process implementations use.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paylot.dev/internal/ledger"
	"paylot.dev/internal/money"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ ledger.Service = (*Client)(nil)

// New builds a client for the API at baseURL authenticating with the
// given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type listObligationsResponse struct {
	Items []ledger.Obligation `json:"items"`
}

type listPaymentsResponse struct {
	Items []ledger.Payment `json:"items"`
}

type errorResponse struct {
	Error     string        `json:"error"`
	Remaining *money.Amount `json:"remaining"`
}

func (c *Client) GetObligations(ctx context.Context, accountID string) ([]ledger.Obligation, error) {
	var out listObligationsResponse
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID)+"/obligations", nil, http.StatusOK, &out)
	return out.Items, err
}

func (c *Client) ListPayments(ctx context.Context, obligationID string) ([]ledger.Payment, error) {
	var out listPaymentsResponse
	err := c.do(ctx, http.MethodGet, "/v1/obligations/"+url.PathEscape(obligationID)+"/payments", nil, http.StatusOK, &out)
	return out.Items, err
}

func (c *Client) RecordPayment(ctx context.Context, in ledger.PaymentInput) (ledger.Payment, error) {
	body := map[string]any{
		"amount": in.Amount,
	}
	if !in.PaymentDate.IsZero() {
		body["payment_date"] = in.PaymentDate.Format(time.DateOnly)
	}
	if in.Method != "" {
		body["method"] = in.Method
	}
	if in.ReceiptRef != "" {
		body["receipt_ref"] = in.ReceiptRef
	}
	if in.Notes != "" {
		body["notes"] = in.Notes
	}
	var out ledger.Payment
	err := c.do(ctx, http.MethodPost, "/v1/obligations/"+url.PathEscape(in.ObligationID)+"/payments", body, http.StatusCreated, &out)
	return out, err
}

func (c *Client) MarkFullyPaid(ctx context.Context, obligationID, actorID string) (ledger.Payment, error) {
	var out ledger.Payment
	err := c.do(ctx, http.MethodPost, "/v1/obligations/"+url.PathEscape(obligationID)+"/mark-paid", nil, http.StatusCreated, &out)
	return out, err
}

func (c *Client) UnmarkFullyPaid(ctx context.Context, obligationID, actorID string) (ledger.Obligation, error) {
	var out ledger.Obligation
	err := c.do(ctx, http.MethodPost, "/v1/obligations/"+url.PathEscape(obligationID)+"/unmark-paid", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) VerifyPayment(ctx context.Context, paymentID, actorID string) (ledger.Payment, error) {
	var out ledger.Payment
	err := c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/verify", map[string]any{"verified": true}, http.StatusOK, &out)
	return out, err
}

func (c *Client) UnverifyPayment(ctx context.Context, paymentID, actorID string) error {
	return c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/verify", map[string]any{"verified": false}, http.StatusOK, nil)
}

func (c *Client) GetStats(ctx context.Context, accountID string, today time.Time) (ledger.Stats, error) {
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/stats"
	if !today.IsZero() {
		path += "?as_of=" + today.Format(time.DateOnly)
	}
	var out ledger.Stats
	err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, dst any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// decodeError maps API error responses back to the sentinel errors the
// in-process implementations return.
func decodeError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if body.Remaining != nil {
		return &ledger.OverpaymentError{Remaining: *body.Remaining}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ledger.ErrNotFound
	case http.StatusForbidden:
		return ledger.ErrForbidden
	case http.StatusBadRequest:
		return ledger.ErrInvalidAmount
	case http.StatusConflict:
		switch body.Error {
		case ledger.ErrAlreadyVerified.Error():
			return ledger.ErrAlreadyVerified
		case ledger.ErrAlreadyHasPayments.Error():
			return ledger.ErrAlreadyHasPayments
		case ledger.ErrConflict.Error():
			return ledger.ErrConflict
		default:
			return ledger.ErrIrreversibleAction
		}
	}
	if body.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("api error (%d)", resp.StatusCode)
}
