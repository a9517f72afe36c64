package waddrmgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrDuplicateAddress indicates an attempt to track a spend key the
	// manager already tracks.
	ErrDuplicateAddress ErrorCode = iota

	// ErrAddressNotFound indicates that the requested address is not
	// known to the manager.
	ErrAddressNotFound

	// ErrInvalidIndex indicates an out-of-range wallet index.
	ErrInvalidIndex

	// ErrSubscription indicates that the synchronizer rejected a
	// subscription request.  The Err field carries the underlying error.
	ErrSubscription
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateAddress: "ErrDuplicateAddress",
	ErrAddressNotFound:  "ErrAddressNotFound",
	ErrInvalidIndex:     "ErrInvalidIndex",
	ErrSubscription:     "ErrSubscription",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during
// manager operation.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(ManagerError)
	return ok && e.ErrorCode == code
}
