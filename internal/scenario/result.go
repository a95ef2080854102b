package scenario

import "slices"

// Status is the verdict carried by a Result.
type Status string

// Result statuses.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skipped"
)

// Result is the outcome of handling one query. It is a value: the
// constructors and WithPayload return new Results and never modify one in
// place.
type Result struct {
	status  Status
	reasons []string
	err     error
	payload []byte
}

// Pass returns a passing result.
func Pass() Result {
	return Result{status: StatusPass}
}

// Fail returns a failed result explained by reasons.
func Fail(reasons ...string) Result {
	return Result{status: StatusFail, reasons: slices.Clone(reasons)}
}

// Errored returns a failed result caused by an unexpected error.
func Errored(err error) Result {
	return Result{status: StatusFail, err: err}
}

// Skip returns a result for a query that was never handled.
func Skip(reason string) Result {
	return Result{status: StatusSkip, reasons: []string{reason}}
}

// Status returns the verdict. The zero Result has an empty status.
func (r Result) Status() Status { return r.status }

func (r Result) Passed() bool  { return r.status == StatusPass }
func (r Result) Failed() bool  { return r.status == StatusFail }
func (r Result) Skipped() bool { return r.status == StatusSkip }

// Reasons returns a copy of the failure or skip reasons.
func (r Result) Reasons() []string { return slices.Clone(r.reasons) }

// Err returns the error behind an Errored result.
func (r Result) Err() error { return r.err }

// Reason is the text reported for a failed or skipped result: the first
// reason, or the error message.
func (r Result) Reason() string {
	if len(r.reasons) > 0 {
		return r.reasons[0]
	}
	if r.err != nil {
		return r.err.Error()
	}
	return ""
}

// Payload returns bytes attached by the result mode, such as a captured
// fixture or a diff.
func (r Result) Payload() []byte { return r.payload }

// WithPayload returns a copy of r carrying b.
func (r Result) WithPayload(b []byte) Result {
	r.reasons = slices.Clone(r.reasons)
	r.payload = slices.Clone(b)
	return r
}
