// Package exitcode defines the process exit codes of the tasklet CLI and maps
// errors onto them.
package exitcode

import (
	"context"
	"errors"

	"github.com/florianilch/tasklet/internal/credential"
	"github.com/florianilch/tasklet/internal/tasks"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, invalid input, bad config).
	UserError = 1

	// AuthError indicates the credential could not be obtained.
	AuthError = 2

	// RequestError indicates a failed call to the task service.
	RequestError = 3
)

// For returns the exit code for err. Errors that are neither authentication
// nor request failures count as user errors.
func For(err error) int {
	if err == nil {
		return Success
	}

	var authErr *credential.AuthenticationError
	if errors.As(err, &authErr) {
		return AuthError
	}

	var reqErr *tasks.RequestError
	if errors.As(err, &reqErr) {
		return RequestError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return RequestError
	}

	return UserError
}
