package wtxmgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrTxHashNotFound indicates that the requested transaction hash is
	// not known to the store.
	ErrTxHashNotFound ErrorCode = iota

	// ErrTxIndexOutOfRange indicates an out-of-range transaction or
	// transfer index.
	ErrTxIndexOutOfRange

	// ErrDuplicateSpentOutput indicates that an output was marked spent
	// twice.  Selection consults the spent table before reserving an
	// output, so a duplicate insert is always a bookkeeping bug.
	ErrDuplicateSpentOutput
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrTxHashNotFound:       "ErrTxHashNotFound",
	ErrTxIndexOutOfRange:    "ErrTxIndexOutOfRange",
	ErrDuplicateSpentOutput: "ErrDuplicateSpentOutput",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during store
// operation.  It is similar to waddrmgr.ManagerError.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(StoreError)
	return ok && e.ErrorCode == code
}
