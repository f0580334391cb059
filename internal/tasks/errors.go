package tasks

import (
	"errors"
	"fmt"
)

// ErrEmptyPatch is returned by Update when the patch changes nothing.
var ErrEmptyPatch = errors.New("patch has no fields to update")

// RequestError reports a collection call that did not succeed, either because
// the service answered with a non-2xx status or because no response arrived.
// StatusCode is zero for transport failures, in which case Err holds the cause.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the response body verbatim, or "HTTP <status>" when the body was empty.
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
