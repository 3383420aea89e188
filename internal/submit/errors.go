package submit

import "fmt"

// APIError is a structured server-side rejection: the request reached the
// backend and was refused. These are surfaced to the caller and never
// queued, so a permanently broken payload cannot be retried forever.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}
