package money

import (
	"encoding/json"
	"testing"
)

func TestParseRoundsToNearestCent(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"600.00", 60000},
		{"600", 60000},
		{"0.01", 1},
		{"399.999", 40000},
		{"399.994", 39999},
		{"1000.005", 100001},
		{"-10.50", -1050},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseRejectsNonNumeric(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "12.3.4", "$100"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestFromFloatDrift(t *testing.T) {
	// Classic float drift: 0.1+0.2 != 0.3 in binary floating point.
	sum := FromFloat(0.1) + FromFloat(0.2)
	if sum != FromFloat(0.3) {
		t.Fatalf("cents addition drifted: %d != %d", sum, FromFloat(0.3))
	}
}

func TestRemainingFloorsAtZero(t *testing.T) {
	if got := Remaining(100000, 60000); got != 40000 {
		t.Fatalf("Remaining = %d, want 40000", got)
	}
	if got := Remaining(100000, 100000); got != 0 {
		t.Fatalf("Remaining at parity = %d, want 0", got)
	}
	if got := Remaining(100000, 120000); got != 0 {
		t.Fatalf("Remaining overdrawn = %d, want 0", got)
	}
}

func TestCompare(t *testing.T) {
	if Compare(1, 2) != -1 || Compare(2, 1) != 1 || Compare(5, 5) != 0 {
		t.Fatal("Compare ordering broken")
	}
}

func TestString(t *testing.T) {
	if s := Amount(60000).String(); s != "600.00" {
		t.Fatalf("String = %q, want 600.00", s)
	}
	if s := Amount(1).String(); s != "0.01" {
		t.Fatalf("String = %q, want 0.01", s)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Amount(40000))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"400.00"` {
		t.Fatalf("marshal = %s", b)
	}

	var a Amount
	if err := json.Unmarshal([]byte(`"600.00"`), &a); err != nil {
		t.Fatal(err)
	}
	if a != 60000 {
		t.Fatalf("unmarshal string = %d", a)
	}
	if err := json.Unmarshal([]byte(`600.5`), &a); err != nil {
		t.Fatal(err)
	}
	if a != 60050 {
		t.Fatalf("unmarshal number = %d", a)
	}
	if err := json.Unmarshal([]byte(`"oops"`), &a); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}
