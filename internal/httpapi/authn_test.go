package httpapi

import "testing"

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc123", "abc123", false},
		{"bearer abc123", "abc123", false},
		{"  Bearer   abc123  ", "abc123", false},
		{"", "", true},
		{"Basic abc123", "", true},
		{"Bearer ", "", true},
	}
	for _, c := range cases {
		got, err := extractBearerToken(c.header)
		if c.wantErr {
			if err == nil {
				t.Fatalf("header %q: expected error", c.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("header %q: %v", c.header, err)
		}
		if got != c.want {
			t.Fatalf("header %q: got %q want %q", c.header, got, c.want)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics", "/v1/auth/token", "/v1/info", "/"} {
		if !isPublicPath(p) {
			t.Fatalf("expected %s to be public", p)
		}
	}
	for _, p := range []string{"/v1/accounts/acc-1/obligations", "/v1/payments/p-1/verify"} {
		if isPublicPath(p) {
			t.Fatalf("expected %s to require auth", p)
		}
	}
}
