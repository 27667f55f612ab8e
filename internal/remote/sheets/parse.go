package sheets

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"kakeibo/internal/core"
)

// rowFromRecord lays a record out in the fixed column order.
func rowFromRecord(rec core.Record) []any {
	return []any{rec.ID, rec.Date, rec.Category, rec.PaymentMethod, rec.Amount, rec.Memo}
}

// recordFromRow parses one sheet row. The values API may hand numbers
// back as float64 or as formatted strings depending on cell
// formatting, so the amount cell accepts both.
func recordFromRow(row []any) (core.Record, error) {
	if len(row) < 5 {
		return core.Record{}, fmt.Errorf("row has %d cells, want at least 5", len(row))
	}

	rec := core.Record{
		ID:            cellString(row[0]),
		Date:          cellString(row[1]),
		Category:      cellString(row[2]),
		PaymentMethod: cellString(row[3]),
	}
	if rec.ID == "" {
		return core.Record{}, fmt.Errorf("row has empty id cell")
	}

	amount, err := cellInt(row[4])
	if err != nil {
		return core.Record{}, fmt.Errorf("amount cell: %w", err)
	}
	rec.Amount = amount

	if len(row) > 5 {
		rec.Memo = cellString(row[5])
	}
	return rec, nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func cellInt(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(math.Trunc(t)), nil
	case int64:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, fmt.Errorf("empty numeric cell")
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Trunc(f)), nil
		}
		return 0, fmt.Errorf("unparseable numeric cell %q", s)
	default:
		return 0, fmt.Errorf("unexpected cell type %T", v)
	}
}
