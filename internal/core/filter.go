package core

import (
	"fmt"
	"sort"
	"time"
)

// FilterAll is the sentinel matching every category or payment method.
const FilterAll = "ALL"

// Filter narrows which records are listed and aggregated. Empty date
// bounds are unbounded; both bounds are inclusive. Category and
// PaymentMethod match exactly, with FilterAll (or empty) matching
// everything. Exactly one filter is active at a time and it persists
// across sessions.
type Filter struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Category      string `json:"category"`
	PaymentMethod string `json:"paymentMethod"`
}

// DefaultFilter matches every record.
func DefaultFilter() Filter {
	return Filter{Category: FilterAll, PaymentMethod: FilterAll}
}

func matchesAll(v string) bool {
	return v == "" || v == FilterAll
}

// Validate rejects date bounds that are not in the stored format.
// A bound in any other shape would compare lexicographically against
// nothing and silently empty every view.
func (f Filter) Validate() error {
	for _, bound := range []string{f.From, f.To} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, bound); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, bound)
		}
	}
	return nil
}

// Match reports whether the record passes every criterion.
func (f Filter) Match(r Record) bool {
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	if !matchesAll(f.Category) && r.Category != f.Category {
		return false
	}
	if !matchesAll(f.PaymentMethod) && r.PaymentMethod != f.PaymentMethod {
		return false
	}
	return true
}

// ApplyFilter returns the matching records sorted by date descending,
// then id descending. Ids are unique, so the order is total.
func ApplyFilter(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	SortForDisplay(out)
	return out
}

// SortForDisplay orders records newest first: date descending, id
// descending for equal dates.
func SortForDisplay(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].ID > records[j].ID
	})
}
