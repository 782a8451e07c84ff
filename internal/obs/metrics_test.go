package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/accounts/abc":              "/v1/accounts/:id",
		"/v1/accounts/abc/obligations":  "/v1/accounts/:id/obligations",
		"/v1/accounts/abc/stats":        "/v1/accounts/:id/stats",
		"/v1/accounts/abc/stats?x=1":    "/v1/accounts/:id/stats",
		"/v1/obligations/ob1/payments":  "/v1/obligations/:id/payments",
		"/v1/obligations/ob1/mark-paid": "/v1/obligations/:id/mark-paid",
		"/v1/payments/p1/verify":        "/v1/payments/:id/verify",
		"/v1/payments/p1/extra":         "/v1/payments/p1/extra",
		"/v1/auth/token":                "/v1/auth/token",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
