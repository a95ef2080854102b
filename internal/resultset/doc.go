// Package resultset models the outcome of a single statement run against the
// system under test, and the expected-result fixture documents it is compared
// against.
//
// # Kinds
//
// A Set is exactly one of:
//
//   - table: column labels, column type names and rows of normalized cells
//   - update: an affected-row count
//   - error: the class and message of the error raised by the target
//   - none: the statement produced nothing
//
// # Fixture Format
//
// Fixtures are canonical JSON documents (sorted keys, NFC strings, no HTML
// escaping), validated against an embedded JSON Schema on load:
//
//	{
//	  "columns": [{"label": "id", "type": "INTEGER"}],
//	  "kind": "table",
//	  "rows": [[1], [2]]
//	}
//
// Expected errors may carry a "pattern" (a regular expression matched
// against the whole actual message) in place of, or in addition to,
// "message".
package resultset
