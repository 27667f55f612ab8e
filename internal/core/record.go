package core

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the on-disk and on-wire calendar date format. Dates in
// this format compare correctly as plain strings.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotFound           = errors.New("record not found")

	ErrEmptyCategoryName = errors.New("empty category name")
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrCategoryInUse     = errors.New("category is referenced by existing records")
)

type (
	// Record is a single stored expense entry. ID is assigned at creation
	// time and never changes; every other field is replaced wholesale on
	// update.
	Record struct {
		ID            string `json:"id"`
		Date          string `json:"date"`
		Category      string `json:"category"`
		PaymentMethod string `json:"paymentMethod"`
		Amount        int64  `json:"amount"`
		Memo          string `json:"memo"`
	}

	// RecordInput is the id-less tuple supplied by the input layer for
	// add and update operations.
	RecordInput struct {
		Date          string `json:"date"`
		Category      string `json:"category"`
		PaymentMethod string `json:"paymentMethod"`
		Amount        int64  `json:"amount"`
		Memo          string `json:"memo"`
	}
)

func (in RecordInput) Validate() error {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(in.Date)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, in.Date)
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	return nil
}

// Normalize returns the input in stored form: the date trimmed so it
// compares lexicographically like every other stored date. Every path
// that persists an input must go through this, or range filters stop
// seeing the record.
func (in RecordInput) Normalize() RecordInput {
	in.Date = strings.TrimSpace(in.Date)
	return in
}

// NewRecord assigns a fresh id to the given input.
func NewRecord(in RecordInput) Record {
	in = in.Normalize()
	return Record{
		ID:            NewRecordID(),
		Date:          in.Date,
		Category:      in.Category,
		PaymentMethod: in.PaymentMethod,
		Amount:        in.Amount,
		Memo:          in.Memo,
	}
}

// Input returns the id-less view of the record.
func (r Record) Input() RecordInput {
	return RecordInput{
		Date:          r.Date,
		Category:      r.Category,
		PaymentMethod: r.PaymentMethod,
		Amount:        r.Amount,
		Memo:          r.Memo,
	}
}

// NewRecordID generates a unique record id: a base-36 millisecond
// timestamp followed by random entropy. Ids generated later sort higher
// lexicographically, which the list ordering relies on as a tie breaker.
// Uniqueness is the only requirement, not unpredictability.
func NewRecordID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// Fallback keeps ids unique enough for a single process.
		return ts + "-" + strconv.FormatInt(time.Now().UnixNano()%0xffffffff, 36)
	}
	return ts + "-" + hex.EncodeToString(buf)
}

// ParseAmount converts user input to an integer amount. A fractional
// part after a decimal point is truncated, matching how the input layer
// has always treated amounts. Negative values are allowed.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
		if s == "" || s == "-" {
			s = s + "0"
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}
