package resultset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidDocument is returned by Decode for fixtures that are not valid
// JSON or do not satisfy the fixture schema.
var ErrInvalidDocument = errors.New("invalid result document")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.DefaultDraft(jsonschema.Draft2020)
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
		if err != nil {
			schemaErr = err
			return
		}
		if err := c.AddResource("fixture.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("fixture.json")
	})
	return schema, schemaErr
}

// Encode returns the canonical, indented JSON document for s.
// Two equal sets always encode to identical bytes.
func Encode(s *Set) ([]byte, error) {
	raw, err := EncodeCompact(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// EncodeCompact returns the canonical single-line JSON document for s.
// Used for digests and storage where whitespace is noise.
func EncodeCompact(s *Set) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode: nil result")
	}
	doc := map[string]any{"kind": string(s.Kind)}
	switch s.Kind {
	case KindTable:
		cols := make([]any, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = map[string]any{"label": c.Label, "type": c.Type}
		}
		rows := make([]any, len(s.Rows))
		for i, r := range s.Rows {
			cells := make([]any, len(r))
			for j, cell := range r {
				cells[j] = NormalizeCell(cell)
			}
			rows[i] = cells
		}
		doc["columns"] = cols
		doc["rows"] = rows
	case KindUpdate:
		doc["update_count"] = s.UpdateCount
	case KindError:
		if s.Error == nil {
			return nil, fmt.Errorf("encode: error result without error details")
		}
		e := map[string]any{"class": s.Error.Class}
		if s.Error.Message != "" {
			e["message"] = s.Error.Message
		}
		if s.Error.Pattern != "" {
			e["pattern"] = s.Error.Pattern
		}
		doc["error"] = e
	case KindNone:
	default:
		return nil, fmt.Errorf("encode: unknown kind %q", s.Kind)
	}
	return marshalCanonical(doc)
}

// Decode parses and validates a fixture document.
// Validation failures wrap ErrInvalidDocument.
func Decode(data []byte) (*Set, error) {
	sch, err := documentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile fixture schema: %w", err)
	}

	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := v.(map[string]any)
	s := &Set{Kind: Kind(doc["kind"].(string))}
	switch s.Kind {
	case KindTable:
		for _, c := range doc["columns"].([]any) {
			col := c.(map[string]any)
			s.Columns = append(s.Columns, Column{
				Label: col["label"].(string),
				Type:  col["type"].(string),
			})
		}
		s.Rows = [][]any{}
		for i, r := range doc["rows"].([]any) {
			cells := r.([]any)
			if len(cells) != len(s.Columns) {
				return nil, fmt.Errorf("%w: row %d has %d cells, expected %d",
					ErrInvalidDocument, i+1, len(cells), len(s.Columns))
			}
			row := make([]any, len(cells))
			for j, cell := range cells {
				row[j] = decodeCell(cell)
			}
			s.Rows = append(s.Rows, row)
		}
	case KindUpdate:
		n, err := doc["update_count"].(json.Number).Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: update_count: %v", ErrInvalidDocument, err)
		}
		s.UpdateCount = n
	case KindError:
		e := doc["error"].(map[string]any)
		s.Error = &Error{Class: e["class"].(string)}
		if m, ok := e["message"].(string); ok {
			s.Error.Message = m
		}
		if p, ok := e["pattern"].(string); ok {
			s.Error.Pattern = p
		}
	}
	return s, nil
}

// decodeCell maps a JSON number to int64 when it is written without a
// fraction or exponent, float64 otherwise.
func decodeCell(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return NormalizeCell(v)
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}
