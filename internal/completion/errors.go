package completion

import "fmt"

// TransportError means the completion service could not be reached or its
// response could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("NVIDIA API request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError carries a non-2xx status and the raw upstream body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("NVIDIA API error %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError is a 2xx response without a usable first choice.
type MalformedResponseError struct {
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("NVIDIA API returned a malformed response: %s", e.Reason)
}
