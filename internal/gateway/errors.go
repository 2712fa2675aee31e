package gateway

import "fmt"

// RequestError describes a failed gateway call. It is surfaced to the caller
// for a user-initiated retry; the client never retries automatically and
// never mutates local state on failure.
type RequestError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway %s: status %d", e.Operation, e.StatusCode)
}
