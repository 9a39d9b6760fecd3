package api

import "fmt"

// APIError is a non-success HTTP response from the Connect API.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api request %s failed (status %d): %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("api request %s failed (status %d)", e.URL, e.StatusCode)
}

// retryableStatuses are transient server-side conditions worth another
// attempt. Everything else fails fast.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Retryable reports whether the status code indicates a transient failure.
func Retryable(statusCode int) bool {
	return retryableStatuses[statusCode]
}
