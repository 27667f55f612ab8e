package core

import "sort"

// KeyAmount is an amount summed under a grouping key.
type KeyAmount struct {
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
}

// Summary holds the aggregates for one filtered view. Everything here
// is recomputed from the full filtered set on every query; data volumes
// are personal-scale and incremental aggregation is not worth carrying.
type Summary struct {
	Total           int64       `json:"total"`
	ByCategory      []KeyAmount `json:"byCategory"`
	ByPaymentMethod []KeyAmount `json:"byPaymentMethod"`
}

// Total sums the amounts of the given records.
func Total(records []Record) int64 {
	var sum int64
	for _, r := range records {
		sum += r.Amount
	}
	return sum
}

// SummarizeByCategory groups amounts by category, largest sum first.
// Ties keep the order in which the key was first encountered.
func SummarizeByCategory(records []Record) []KeyAmount {
	return summarize(records, func(r Record) string { return r.Category })
}

// SummarizeByPaymentMethod groups amounts by payment method, largest
// sum first, ties in encounter order.
func SummarizeByPaymentMethod(records []Record) []KeyAmount {
	return summarize(records, func(r Record) string { return r.PaymentMethod })
}

// Summarize computes all aggregates for one record set.
func Summarize(records []Record) Summary {
	return Summary{
		Total:           Total(records),
		ByCategory:      SummarizeByCategory(records),
		ByPaymentMethod: SummarizeByPaymentMethod(records),
	}
}

func summarize(records []Record, key func(Record) string) []KeyAmount {
	index := make(map[string]int)
	var out []KeyAmount
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, KeyAmount{Key: k})
		}
		out[i].Amount += r.Amount
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount > out[j].Amount
	})
	return out
}
