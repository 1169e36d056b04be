package provider

import "fmt"

// APIError is a non-2xx answer from the provider. Details is the decoded response body.
type APIError struct {
	Op         string
	StatusCode int
	Details    map[string]any
}

func (e *APIError) Error() string {
	if msg, ok := e.Details["message"].(string); ok && msg != "" {
		return fmt.Sprintf("provider %s: http %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("provider %s: http %d", e.Op, e.StatusCode)
}
