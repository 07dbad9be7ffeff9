package fasttextlite

import "fmt"

// NotFittedError is returned when an operation that needs a trained model
// runs before Fit or Load has succeeded.
type NotFittedError struct {
	// Op is the operation that was attempted.
	Op string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s requires a fitted classifier; call Fit or Load first", e.Op)
}

// ConfigurationError reports invalid construction arguments or training
// input that the wrapper refuses to hand to the engine.
type ConfigurationError struct {
	// Reason describes what was invalid.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return "invalid configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a save or load failure: a missing, malformed or
// mismatched artifact in a classifier directory.
type PersistenceError struct {
	// Path is the file or directory involved.
	Path string

	// Reason describes the failure.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AlignmentError reports an engine prediction that cannot be mapped back
// onto the canonical class order.
type AlignmentError struct {
	// TextIndex is the position of the input text the row belongs to, or
	// -1 when the failure is not tied to a single row.
	TextIndex int

	// Label is the offending engine label, if one is involved.
	Label string

	// Reason describes the mismatch.
	Reason string
}

func (e *AlignmentError) Error() string {
	msg := "cannot align engine prediction"
	if e.TextIndex >= 0 {
		msg = fmt.Sprintf("%s for text %d", msg, e.TextIndex)
	}
	if e.Label != "" {
		msg = fmt.Sprintf("%s: label %q", msg, e.Label)
	}
	return msg + ": " + e.Reason
}
