package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAvailable is returned by Latest before the first successful refresh
	ErrNotAvailable = errors.New("no readings available yet")

	// ErrRefreshInProgress is returned when a refresh is triggered while
	// another one for the same device is still running. The trigger is dropped.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// UpdateFailedError marks a refresh that failed to produce new data. The
// previously cached snapshot, if any, is still served.
type UpdateFailedError struct {
	Host string
	Err  error
}

// Error implements the error interface
func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("error communicating with device %s: %v", e.Host, e.Err)
}

// Unwrap returns the device error that caused the failure
func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

// IsUpdateFailed reports whether err is or wraps an *UpdateFailedError
func IsUpdateFailed(err error) bool {
	var updErr *UpdateFailedError
	return errors.As(err, &updErr)
}
