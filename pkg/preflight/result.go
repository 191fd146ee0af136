package preflight

import "fmt"

// Status is the outcome of a single probe.
type Status int

const (
	// StatusPass means the precondition holds.
	StatusPass Status = iota
	// StatusFail means the precondition does not hold, or the probe could
	// not even talk to the thing it checks.
	StatusFail
	// StatusSkip means the probe does not apply to this rig.
	StatusSkip
)

// String returns the report label for a status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusSkip:
		return "SKIP"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one probe. Probes never return a Go error for a
// device failure; the failure and its cause travel in the Result instead.
type Result struct {
	Name   string
	Status Status
	Detail string
	Err    error
}

// OK reports whether the probe did not fail (pass or skip).
func (r Result) OK() bool {
	return r.Status != StatusFail
}

func pass(name, detail string) Result {
	return Result{Name: name, Status: StatusPass, Detail: detail}
}

func fail(name, detail string, err error) Result {
	return Result{Name: name, Status: StatusFail, Detail: detail, Err: err}
}

func skip(name, detail string) Result {
	return Result{Name: name, Status: StatusSkip, Detail: detail}
}
