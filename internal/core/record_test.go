package core

import (
	"errors"
	"strings"
	"testing"
)

func TestRecordInputValidate(t *testing.T) {
	good := RecordInput{Date: "2024-03-01", Category: "食費", PaymentMethod: "現金", Amount: 1200}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		in   RecordInput
		want error
	}{
		{"empty date", RecordInput{Category: "食費", PaymentMethod: "現金"}, ErrInvalidDate},
		{"malformed date", RecordInput{Date: "03/01/2024", Category: "食費", PaymentMethod: "現金"}, ErrInvalidDate},
		{"empty category", RecordInput{Date: "2024-03-01", PaymentMethod: "現金"}, ErrEmptyCategory},
		{"empty payment method", RecordInput{Date: "2024-03-01", Category: "食費"}, ErrEmptyPaymentMethod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.in.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewRecordID(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewRecordID()
		if id == "" {
			t.Fatal("empty id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
		// Same-millisecond ids share a timestamp prefix; across the run
		// the timestamp portion must never go backwards.
		ts := id[:strings.IndexByte(id, '-')]
		if prev != "" && ts < prev {
			t.Fatalf("timestamp prefix went backwards: %q then %q", prev, ts)
		}
		prev = ts
	}
}

func TestNewRecordAssignsID(t *testing.T) {
	in := RecordInput{Date: " 2024-03-01 ", Category: "交通", PaymentMethod: "IC", Amount: 210, Memo: "bus"}
	r := NewRecord(in)
	if r.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if r.Date != "2024-03-01" {
		t.Fatalf("date not trimmed: %q", r.Date)
	}
	if got := r.Input(); got.Category != in.Category || got.Amount != in.Amount || got.Memo != in.Memo {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRecordInputNormalize(t *testing.T) {
	in := RecordInput{Date: " 2024-01-03\t", Category: "食費", PaymentMethod: "現金", Amount: 100}
	got := in.Normalize()
	if got.Date != "2024-01-03" {
		t.Fatalf("date not trimmed: %q", got.Date)
	}
	if in.Date != " 2024-01-03\t" {
		t.Fatal("Normalize mutated its receiver")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1200", 1200, true},
		{" 450 ", 450, true},
		{"-300", -300, true},
		{"99.9", 99, true}, // fractional part truncated
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12a", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseAmount(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}
