package policy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTable_DefaultThresholdBoundary(t *testing.T) {
	tbl := NewTable(DefaultThreshold, nil)
	cases := []struct {
		amount string
		want   bool
	}{
		{"0.01", false},
		{"499.99", false},
		{"500", false},
		{"500.00", false},
		{"500.01", true},
		{"900", true},
	}
	for _, tc := range cases {
		if got := tbl.RequiresChallenge("unknown-merchant", d(tc.amount)); got != tc.want {
			t.Errorf("RequiresChallenge(%s) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestTable_MerchantOverride(t *testing.T) {
	tbl := NewTable(DefaultThreshold, map[string]decimal.Decimal{"m-low": d("100"), "m-high": d("2000")})
	if !tbl.RequiresChallenge("m-low", d("150")) {
		t.Error("m-low: 150 should require a challenge")
	}
	if tbl.RequiresChallenge("m-high", d("1500")) {
		t.Error("m-high: 1500 should not require a challenge")
	}
	if !tbl.Threshold("m-high").Equal(d("2000")) {
		t.Errorf("Threshold(m-high) = %s, want 2000", tbl.Threshold("m-high"))
	}
	if !tbl.Threshold("other").Equal(DefaultThreshold) {
		t.Errorf("Threshold(other) = %s, want default", tbl.Threshold("other"))
	}
}

func TestTable_Evaluate(t *testing.T) {
	tbl := NewTable(d("250"), nil)
	dec := tbl.Evaluate(context.Background(), "m", d("250.01"))
	if !dec.RequiresChallenge {
		t.Error("250.01 should require a challenge")
	}
	if !dec.Threshold.Equal(d("250")) {
		t.Errorf("threshold = %s, want 250", dec.Threshold)
	}
}

func TestTable_IsolatedFromCallerMap(t *testing.T) {
	m := map[string]decimal.Decimal{"m1": d("10")}
	tbl := NewTable(DefaultThreshold, m)
	m["m1"] = d("99999")
	if !tbl.Threshold("m1").Equal(d("10")) {
		t.Error("Table must copy the merchant map")
	}
	got := tbl.Merchants()
	got["m1"] = d("1")
	if !tbl.Threshold("m1").Equal(d("10")) {
		t.Error("Merchants must return a copy")
	}
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds(" m1=1000, m2 = 250.50 ,,")
	if err != nil {
		t.Fatalf("ParseThresholds: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got["m1"].Equal(d("1000")) || !got["m2"].Equal(d("250.50")) {
		t.Errorf("got %v", got)
	}
	if got, err := ParseThresholds(""); err != nil || len(got) != 0 {
		t.Errorf("empty input: got %v, %v", got, err)
	}
	for _, bad := range []string{"m1", "m1=", "=10", "m1=abc", "m1=-5"} {
		if _, err := ParseThresholds(bad); err == nil {
			t.Errorf("ParseThresholds(%q) should fail", bad)
		}
	}
}
