package inference

import "fmt"

// RequestError covers everything that goes wrong before a payload is in hand:
// transport failures, non-2xx replies and empty responses.
type RequestError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError means a payload arrived but does not decode into a usable verdict.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis response could not be parsed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
