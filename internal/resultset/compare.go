package resultset

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

// Options controls how Compare matches table rows.
type Options struct {
	// Sortable allows both row lists to be sorted before comparison.
	// It should be false when the statement fixes the row order itself.
	Sortable bool

	// Divergence is the absolute difference tolerated between two
	// floating point cells.
	Divergence float64
}

// OrderSensitive reports whether sql fixes its own row order, in which case
// rows must be compared in the order returned.
func OrderSensitive(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), " ORDER BY ")
}

// Compare matches actual against expected and returns one reason per
// mismatch found. An empty result means the sets are equal.
func Compare(expected, actual *Set, opts Options) []string {
	c := &comparison{opts: opts}
	switch expected.Kind {
	case KindError:
		c.errors(expected, actual)
	case KindUpdate:
		c.update(expected, actual)
	case KindTable:
		c.table(expected, actual)
	default:
		c.none(actual)
	}
	return c.reasons
}

type comparison struct {
	opts    Options
	reasons []string
}

func (c *comparison) addf(format string, args ...any) {
	c.reasons = append(c.reasons, fmt.Sprintf(format, args...))
}

func (c *comparison) none(actual *Set) {
	switch actual.Kind {
	case KindError:
		c.addf("Expected no-result but found exception.")
	case KindTable:
		c.addf("Expected no-result but found result.")
	case KindUpdate:
		c.addf("Expected no-result but found update.")
	}
}

func (c *comparison) update(expected, actual *Set) {
	switch actual.Kind {
	case KindTable:
		c.addf("Expected update but found table.")
	case KindError:
		c.addf("Expected update but found exception[%s].", actual.Error.Class)
	case KindNone:
		c.addf("Expected update but found no-result.")
	default:
		if expected.UpdateCount != actual.UpdateCount {
			c.addf("Expected and actual update count are different. Expected: [%d], actual: [%d].",
				expected.UpdateCount, actual.UpdateCount)
		}
	}
}

func (c *comparison) errors(expected, actual *Set) {
	want := expected.Error
	switch actual.Kind {
	case KindTable:
		c.addf("Expected exception [%s] but found table.", want.Class)
		return
	case KindUpdate:
		c.addf("Expected exception [%s] but found update.", want.Class)
		return
	case KindNone:
		c.addf("Expected exception but found no-result.")
		return
	}

	got := actual.Error
	if want.Class != got.Class {
		c.addf("Expected and actual exception class are different. Expected: [%s], actual: [%s].",
			want.Class, got.Class)
		return
	}
	if want.Message != "" && strings.TrimSpace(want.Message) != strings.TrimSpace(got.Message) {
		c.addf("Expected and actual message are different. Expected: [%s], actual: [%s].",
			want.Message, got.Message)
	}
	if want.Pattern != "" {
		re, err := regexp.Compile(`(?s)\A(?:` + want.Pattern + `)\z`)
		switch {
		case err != nil:
			c.addf("Invalid message pattern [%s]: %v.", want.Pattern, err)
		case !re.MatchString(got.Message):
			c.addf("Message does not match pattern. Message: [%s], pattern: [%s].",
				got.Message, want.Pattern)
		}
	}
}

func (c *comparison) table(expected, actual *Set) {
	switch actual.Kind {
	case KindUpdate:
		c.addf("Expected table but found update.")
		return
	case KindError:
		c.addf("Expected table but found exception[%s].", actual.Error.Class)
		return
	case KindNone:
		c.addf("Expected table but found no-result.")
		return
	}

	if len(expected.Columns) != len(actual.Columns) {
		c.addf("Expected and actual column count are different. Expected: [%d], actual: [%d].",
			len(expected.Columns), len(actual.Columns))
		return
	}
	if len(expected.Rows) != len(actual.Rows) {
		c.addf("Expected and actual row count are different. Expected: [%d], actual: [%d].",
			len(expected.Rows), len(actual.Rows))
		return
	}
	for i, want := range expected.Columns {
		got := actual.Columns[i]
		if !strings.EqualFold(want.Label, got.Label) {
			c.addf("Expected and actual column label are different. Expected:[%s], actual: [%s].",
				want.Label, got.Label)
		}
		if !strings.EqualFold(want.Type, got.Type) {
			c.addf("Expected and actual column type are different. Expected:[%s], actual: [%s].",
				want.Type, got.Type)
		}
	}
	if len(c.reasons) > 0 {
		return
	}

	want, got := numbered(expected.Rows), numbered(actual.Rows)
	if c.opts.Sortable {
		slices.SortStableFunc(want, compareRows)
		slices.SortStableFunc(got, compareRows)
	}
	for i := range want {
		c.row(i+1, want[i], got[i])
	}
}

type row struct {
	n     int
	cells []any
}

func numbered(rows [][]any) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		out[i] = row{n: i + 1, cells: r}
	}
	return out
}

func (c *comparison) row(pos int, want, got row) {
	rowID := fmt.Sprintf("[row %d; row number in expected result %d; row number in actual result %d].",
		pos, want.n, got.n)
	for i := range want.cells {
		cellID := fmt.Sprintf("[cell %d]%s", i+1, rowID)
		ex, ac := want.cells[i], got.cells[i]
		switch {
		case ex == nil && ac == nil:
		case ex == nil:
			c.addf("Expected null but get value. %s", cellID)
		case ac == nil:
			c.addf("Expected value but get null.%s", cellID)
		default:
			c.cell(ex, ac, cellID)
		}
	}
}

func (c *comparison) cell(ex, ac any, cellID string) {
	if exN, ok := number(ex); ok {
		if acN, ok := number(ac); ok {
			if !c.numbersEqual(ex, ac, exN, acN) {
				c.addf("Actual and expected value are different. Actual: [%v], expected: [%v]. %s", ac, ex, cellID)
			}
			return
		}
	}
	if exB, ok := ex.(bool); ok {
		if acB, ok := ac.(bool); ok {
			if exB != acB {
				c.addf("Actual and expected value are different. Actual: [%v], expected: [%v]. %s", ac, ex, cellID)
			}
			return
		}
	}

	want, got := []rune(fmt.Sprint(ex)), []rune(fmt.Sprint(ac))
	if string(want) == string(got) {
		return
	}
	if len(want) != len(got) {
		c.addf("Actual and expected value are different. Actual length: [%d], expected length: [%d]. %s",
			len(got), len(want), cellID)
		return
	}
	for i := range want {
		if want[i] != got[i] {
			from := max(0, i-10)
			to := min(len(want), from+20)
			c.addf("Actual and expected value are different at position %d. Actual: [...%s...], expected: [...%s...]. %s",
				i, string(got[from:to]), string(want[from:to]), cellID)
			return
		}
	}
}

func (c *comparison) numbersEqual(ex, ac any, exN, acN float64) bool {
	exI, exInt := ex.(int64)
	acI, acInt := ac.(int64)
	if exInt && acInt {
		return exI == acI
	}
	if exN == acN {
		return true
	}
	return math.Abs(exN-acN) <= c.opts.Divergence
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareRows orders rows cell by cell. Nil sorts first; cells of
// different types fall back to their string forms.
func compareRows(a, b row) int {
	for i := range a.cells {
		if i >= len(b.cells) {
			return 1
		}
		if r := compareCells(a.cells[i], b.cells[i]); r != 0 {
			return r
		}
	}
	return cmp.Compare(len(a.cells), len(b.cells))
}

func compareCells(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
