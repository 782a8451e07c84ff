// smoke-ledger runs a payment flow against a live paylot-api and checks
// the ledger invariants hold end to end. Point it at a demo-mode server
// (no DSN) so the seeded obligations exist.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"paylot.dev/internal/ledger"
	"paylot.dev/internal/ledger/remote"
)

func main() {
	baseURL := os.Getenv("PAYLOT_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	token, err := obtainToken(baseURL, "fin-1", []string{"finance", "collection"})
	if err != nil {
		log.Fatalf("obtain token: %v", err)
	}
	svc := remote.New(baseURL, token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	obligations, err := svc.GetObligations(ctx, "acc-demo")
	if err != nil {
		log.Fatalf("get obligations: %v", err)
	}
	if len(obligations) == 0 {
		log.Fatal("no obligations seeded; run the API in demo mode")
	}

	var target ledger.Obligation
	for _, o := range obligations {
		if o.AmountPaid.IsZero() {
			target = o
			break
		}
	}
	if target.ID == "" {
		log.Fatal("no unpaid obligation available")
	}

	half := target.AmountExpected / 2
	p, err := svc.RecordPayment(ctx, ledger.PaymentInput{
		ObligationID: target.ID,
		Amount:       half,
		Method:       "bank_transfer",
		Notes:        "smoke",
	})
	if err != nil {
		log.Fatalf("record payment: %v", err)
	}

	// Overdrafting must fail with the remaining balance.
	_, err = svc.RecordPayment(ctx, ledger.PaymentInput{
		ObligationID: target.ID,
		Amount:       target.AmountExpected,
	})
	var overErr *ledger.OverpaymentError
	if !errors.As(err, &overErr) {
		log.Fatalf("expected overpayment rejection, got %v", err)
	}
	if overErr.Remaining != target.AmountExpected-half {
		log.Fatalf("unexpected remaining: %s", overErr.Remaining)
	}

	verified, err := svc.VerifyPayment(ctx, p.ID, "fin-1")
	if err != nil {
		log.Fatalf("verify payment: %v", err)
	}
	if !verified.Verified || verified.VerifiedAt == nil {
		log.Fatalf("verification incomplete: %+v", verified)
	}
	if _, err := svc.VerifyPayment(ctx, p.ID, "fin-1"); err == nil {
		log.Fatal("second verification unexpectedly succeeded")
	}

	stats, err := svc.GetStats(ctx, "acc-demo", time.Time{})
	if err != nil {
		log.Fatalf("get stats: %v", err)
	}
	if stats.TotalPaid < half {
		log.Fatalf("stats do not reflect payment: total_paid=%s", stats.TotalPaid)
	}

	fmt.Printf("ledger smoke test passed: obligation=%s payment=%s total_paid=%s\n",
		target.ID, p.ID, stats.TotalPaid)
}

func obtainToken(baseURL, user string, roles []string) (string, error) {
	payload, err := json.Marshal(map[string]any{"user": user, "roles": roles})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(baseURL+"/v1/auth/token", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("empty token issued")
	}
	return body.Token, nil
}
