package framework

import (
	"fmt"
	"strings"
)

// AggregatedError collects errors from runnables or controllers.
type AggregatedError struct {
	Errors []error
}

// Add appends errs, skipping nil.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns nil if nothing was added.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements error. A single error reads as itself.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no error"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msgs[n] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is and errors.As look into every collected error.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}
