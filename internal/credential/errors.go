package credential

import (
	"errors"
	"fmt"
	"net/http"
)

// errMissingAccess reports a 2xx token response without an access token.
var errMissingAccess = errors.New("token response carries no access token")

// AuthenticationError reports a failed token exchange.
// StatusCode is zero when no HTTP response was received.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("authentication failed (HTTP %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("authentication failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("authentication failed: HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return "authentication failed"
	}
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
