package ics

import "fmt"

// FetchError means the feed could not be retrieved. It is fatal for an
// import run.
type FetchError struct {
	URL        string // redacted
	StatusCode int    // zero for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch calendar %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch calendar %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError describes a malformed feed or a single component that could
// not be classified. Component-level parse errors are logged and skipped.
type ParseError struct {
	UID    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse calendar"
	if e.UID != "" {
		msg += " event " + e.UID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
