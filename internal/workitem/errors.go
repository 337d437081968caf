package workitem

import "fmt"

// NotFoundError reports a missing project or a phase/work-stream linkage that
// does not hold. Maps to HTTP 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// StatusCode returns the HTTP status this error maps to.
func (e *NotFoundError) StatusCode() int { return 404 }

// QuotaExceededError reports that the phase already holds the configured
// maximum of live products. Maps to HTTP 400.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("the number of phase products per phase cannot exceed %d", e.Limit)
}

// StatusCode returns the HTTP status this error maps to.
func (e *QuotaExceededError) StatusCode() int { return 400 }
