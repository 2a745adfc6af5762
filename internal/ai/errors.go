package ai

import "fmt"

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode <= 504)
}

// InferenceError means the model never produced a valid schedule for a
// date within the retry budget.
type InferenceError struct {
	Date     string
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("infer schedule for %s: gave up after %d attempts: %v", e.Date, e.Attempts, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
