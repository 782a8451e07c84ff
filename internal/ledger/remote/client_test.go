package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paylot.dev/internal/auth"
	"paylot.dev/internal/httpapi"
	"paylot.dev/internal/identity"
	"paylot.dev/internal/ledger"
	"paylot.dev/internal/money"
)

func newRemote(t *testing.T, user string, roles ...string) (*Client, *ledger.InMemory) {
	t.Helper()

	t.Setenv("PAYLOT_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	provider := identity.NewStatic(
		identity.Actor{ID: "fin-1", DisplayName: "Fiona Finance", Role: identity.RoleFinance},
		identity.Actor{ID: "col-1", DisplayName: "Carl Collection", Role: identity.RoleCollection},
	)
	svc := ledger.NewInMemory(provider)
	svc.SeedAccount(ledger.Account{ID: "acc-1", TotalSaleAmount: money.Amount(5000000)})
	if err := svc.SeedObligation(ledger.Obligation{
		ID:             "ob-1",
		AccountID:      "acc-1",
		Kind:           ledger.KindInstallment,
		AmountExpected: money.Amount(60000),
		DueDate:        time.Now().UTC().AddDate(0, 1, 0),
	}); err != nil {
		t.Fatalf("seed obligation: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{}, "test", svc)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	token := obtainToken(t, srv.URL, user, roles)
	return New(srv.URL, token), svc
}

func obtainToken(t *testing.T, baseURL, user string, roles []string) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"user": user, "roles": roles})
	resp, err := http.Post(baseURL+"/v1/auth/token", "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return body.Token
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newRemote(t, "col-1", "collection")
	ctx := context.Background()

	p, err := c.RecordPayment(ctx, ledger.PaymentInput{
		ObligationID: "ob-1",
		Amount:       money.Amount(20000),
		Method:       "cash",
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.Amount != money.Amount(20000) {
		t.Fatalf("unexpected amount: %s", p.Amount)
	}

	obligations, err := c.GetObligations(ctx, "acc-1")
	if err != nil {
		t.Fatalf("GetObligations: %v", err)
	}
	if len(obligations) != 1 || obligations[0].Status != ledger.StatusPartial {
		t.Fatalf("unexpected obligations: %+v", obligations)
	}

	payments, err := c.ListPayments(ctx, "ob-1")
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 1 || payments[0].ID != p.ID {
		t.Fatalf("unexpected payments: %+v", payments)
	}

	stats, err := c.GetStats(ctx, "acc-1", time.Time{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalPaid != money.Amount(20000) {
		t.Fatalf("unexpected total paid: %s", stats.TotalPaid)
	}
}

func TestClientMapsOverpayment(t *testing.T) {
	c, _ := newRemote(t, "col-1", "collection")
	ctx := context.Background()

	_, err := c.RecordPayment(ctx, ledger.PaymentInput{
		ObligationID: "ob-1",
		Amount:       money.Amount(70000),
	})
	var overErr *ledger.OverpaymentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverpaymentError, got %v", err)
	}
	if overErr.Remaining != money.Amount(60000) {
		t.Fatalf("unexpected remaining: %s", overErr.Remaining)
	}
}

func TestClientMapsSentinels(t *testing.T) {
	c, _ := newRemote(t, "fin-1", "finance")
	ctx := context.Background()

	if _, err := c.GetObligations(ctx, "ghost"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p, err := c.RecordPayment(ctx, ledger.PaymentInput{
		ObligationID: "ob-1",
		Amount:       money.Amount(10000),
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if _, err := c.VerifyPayment(ctx, p.ID, "fin-1"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if _, err := c.VerifyPayment(ctx, p.ID, "fin-1"); !errors.Is(err, ledger.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if err := c.UnverifyPayment(ctx, p.ID, "fin-1"); !errors.Is(err, ledger.ErrIrreversibleAction) {
		t.Fatalf("expected ErrIrreversibleAction, got %v", err)
	}

	if _, err := c.MarkFullyPaid(ctx, "ob-1", "fin-1"); !errors.Is(err, ledger.ErrAlreadyHasPayments) {
		t.Fatalf("expected ErrAlreadyHasPayments, got %v", err)
	}
}
