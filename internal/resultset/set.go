package resultset

import (
	"encoding/base64"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies what a statement produced.
type Kind string

// Result kinds.
const (
	KindNone   Kind = "none"
	KindTable  Kind = "table"
	KindUpdate Kind = "update"
	KindError  Kind = "error"
)

// Column describes one column of a table result.
type Column struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Error describes an error raised by the target, or the error a fixture
// expects.
type Error struct {
	Class   string `json:"class"`
	Message string `json:"message,omitempty"`

	// Pattern is only meaningful in fixtures. When set, the actual message
	// must match it in full.
	Pattern string `json:"pattern,omitempty"`
}

// Set is the result of one statement, either observed or expected.
//
// Cells are normalized (see NormalizeCell) so that values read from a driver
// and values decoded from a fixture compare directly.
type Set struct {
	Kind        Kind
	Columns     []Column
	Rows        [][]any
	UpdateCount int64
	Error       *Error
}

// None returns an empty result.
func None() *Set {
	return &Set{Kind: KindNone}
}

// Update returns an update-count result.
func Update(count int64) *Set {
	return &Set{Kind: KindUpdate, UpdateCount: count}
}

// Failure returns an error result.
func Failure(class, message string) *Set {
	return &Set{Kind: KindError, Error: &Error{Class: class, Message: message}}
}

// Table returns a table result. Rows are normalized in place.
func Table(columns []Column, rows [][]any) *Set {
	for _, row := range rows {
		for i, cell := range row {
			row[i] = NormalizeCell(cell)
		}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &Set{Kind: KindTable, Columns: columns, Rows: rows}
}

// Labels returns the column labels of a table result.
func (s *Set) Labels() []string {
	labels := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		labels[i] = c.Label
	}
	return labels
}

// String gives a one-line description used in logs and reports.
func (s *Set) String() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case KindTable:
		return fmt.Sprintf("table[%d columns, %d rows]", len(s.Columns), len(s.Rows))
	case KindUpdate:
		return fmt.Sprintf("update[%d]", s.UpdateCount)
	case KindError:
		return fmt.Sprintf("error[%s: %s]", s.Error.Class, s.Error.Message)
	default:
		return "none"
	}
}

// NormalizeCell converts a driver or JSON value to one of the cell types
// used for comparison: nil, bool, int64, float64 or string.
//
// Byte slices become strings, times become RFC 3339 strings with
// nanoseconds in UTC, and every string is NFC normalized. Bytes that are
// not valid UTF-8 are kept as BinaryPrefix followed by their standard
// base64 encoding, so binary cells survive a fixture round trip.
func NormalizeCell(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val <= 1<<63-1 {
			return int64(val)
		}
		return fmt.Sprintf("%d", val)
	case float32:
		return float64(val)
	case float64:
		return val
	case string:
		return textCell(val)
	case []byte:
		return textCell(string(val))
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return norm.NFC.String(val.String())
	default:
		return norm.NFC.String(fmt.Sprint(val))
	}
}

// BinaryPrefix marks a cell holding base64 encoded binary data.
const BinaryPrefix = "base64:"

func textCell(s string) string {
	if !utf8.ValidString(s) {
		return BinaryPrefix + base64.StdEncoding.EncodeToString([]byte(s))
	}
	return norm.NFC.String(s)
}
