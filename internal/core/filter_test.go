package core

import (
	"errors"
	"testing"
)

func rec(id, date, cat, pay string, amount int64) Record {
	return Record{ID: id, Date: date, Category: cat, PaymentMethod: pay, Amount: amount}
}

func TestFilterMatch(t *testing.T) {
	r := rec("a1", "2024-01-03", "食費", "現金", 500)

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"default matches", DefaultFilter(), true},
		{"zero value matches", Filter{}, true},
		{"from inclusive", Filter{From: "2024-01-03"}, true},
		{"from excludes earlier", Filter{From: "2024-01-04"}, false},
		{"to inclusive", Filter{To: "2024-01-03"}, true},
		{"to excludes later", Filter{To: "2024-01-02"}, false},
		{"category exact", Filter{Category: "食費"}, true},
		{"category mismatch", Filter{Category: "交通"}, false},
		{"category ALL", Filter{Category: FilterAll}, true},
		{"payment exact", Filter{PaymentMethod: "現金"}, true},
		{"payment mismatch", Filter{PaymentMethod: "カード"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Match(r); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterValidate(t *testing.T) {
	cases := []struct {
		name    string
		f       Filter
		wantErr bool
	}{
		{"zero value", Filter{}, false},
		{"valid bounds", Filter{From: "2024-01-01", To: "2024-12-31"}, false},
		{"from only", Filter{From: "2024-01-01"}, false},
		{"slash format", Filter{From: "01/02/2024"}, true},
		{"padded date", Filter{To: " 2024-01-03"}, true},
		{"garbage", Filter{From: "soon"}, true},
		{"bad to with good from", Filter{From: "2024-01-01", To: "2024-13-01"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.f.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("got %v, want ErrInvalidDate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyFilterDateRangeAndOrder(t *testing.T) {
	records := []Record{
		rec("a", "2024-01-01", "食費", "現金", 1),
		rec("b", "2024-01-02", "食費", "現金", 2),
		rec("c", "2024-01-03", "食費", "現金", 3),
		rec("d", "2024-01-04", "食費", "現金", 4),
		rec("e", "2024-01-05", "食費", "現金", 5),
	}

	got := ApplyFilter(records, Filter{From: "2024-01-02", To: "2024-01-04"})
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	wantDates := []string{"2024-01-04", "2024-01-03", "2024-01-02"}
	for i, w := range wantDates {
		if got[i].Date != w {
			t.Fatalf("position %d: got %s, want %s", i, got[i].Date, w)
		}
	}
}

func TestApplyFilterTieBreaksByIDDescending(t *testing.T) {
	records := []Record{
		rec("m1", "2024-02-01", "食費", "現金", 1),
		rec("m3", "2024-02-01", "食費", "現金", 3),
		rec("m2", "2024-02-01", "食費", "現金", 2),
	}
	got := ApplyFilter(records, Filter{})
	wantIDs := []string{"m3", "m2", "m1"}
	for i, w := range wantIDs {
		if got[i].ID != w {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, w)
		}
	}
}

func TestApplyFilterDoesNotMutateInput(t *testing.T) {
	records := []Record{
		rec("b", "2024-01-02", "食費", "現金", 2),
		rec("a", "2024-01-01", "食費", "現金", 1),
	}
	_ = ApplyFilter(records, Filter{})
	if records[0].ID != "b" || records[1].ID != "a" {
		t.Fatal("input slice was reordered")
	}
}
