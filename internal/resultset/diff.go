package resultset

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders the difference between the encoded documents of expected and
// actual as unified-style text. It returns "" when they encode identically.
func Diff(expected, actual *Set) (string, error) {
	want, err := Encode(expected)
	if err != nil {
		return "", fmt.Errorf("encode expected: %w", err)
	}
	got, err := Encode(actual)
	if err != nil {
		return "", fmt.Errorf("encode actual: %w", err)
	}
	return unified("expected", "actual", string(want), string(got)), nil
}

func unified(fromName, toName, from, to string) string {
	if from == to {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", fromName, toName)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
