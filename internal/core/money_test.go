package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"90", 9000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneySplit(t *testing.T) {
	cases := []struct {
		total int64
		n     int
		out   int64
	}{
		{9000, 3, 3000},
		{10000, 3, 3333},
		{200, 3, 67},
		{5000, 0, 5000},
		{5000, -2, 5000},
		{5000, 1, 5000},
	}
	for _, tc := range cases {
		got := Money{Cents: tc.total}.Split(tc.n)
		if got.Cents != tc.out {
			t.Fatalf("split %d/%d expected %d, got %d", tc.total, tc.n, tc.out, got.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if s := (Money{Cents: 3000}).String(); s != "30.00" {
		t.Fatalf("expected 30.00, got %s", s)
	}
	if s := (Money{Cents: 5}).String(); s != "0.05" {
		t.Fatalf("expected 0.05, got %s", s)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 1234}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":12.34}` {
		t.Fatalf("unexpected json %s", b)
	}

	var in struct {
		Amount Money `json:"amount"`
	}
	for _, raw := range []string{`{"amount":12.34}`, `{"amount":"12,34"}`} {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if in.Amount.Cents != 1234 {
			t.Fatalf("%s expected 1234 cents, got %d", raw, in.Amount.Cents)
		}
	}
	if err := json.Unmarshal([]byte(`{"amount":-3}`), &in); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if err := json.Unmarshal([]byte(`{"amount":0.00}`), &in); err != nil || in.Amount.Cents != 0 {
		t.Fatalf("zero amount: %v, %d cents", err, in.Amount.Cents)
	}
}
