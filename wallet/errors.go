package wallet

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrNotInitialized indicates an operation was invoked before
	// Initialize or Load.
	ErrNotInitialized ErrorCode = iota

	// ErrAlreadyInitialized indicates Initialize was invoked twice.
	ErrAlreadyInitialized

	// ErrWrongState indicates Load was invoked on an initialized wallet.
	ErrWrongState

	// ErrWrongPassword indicates the old password passed to
	// ChangePassword, or the password passed to Load, does not match.
	ErrWrongPassword

	// ErrBadAddress indicates an address string failed to parse.
	ErrBadAddress

	// ErrZeroDestination indicates an empty destination list or a zero
	// destination amount.
	ErrZeroDestination

	// ErrSumOverflow indicates the sum of destinations and fee overflows
	// 64 bits.
	ErrSumOverflow

	// ErrWrongAmount indicates the selected outputs do not cover the
	// needed amount.
	ErrWrongAmount

	// ErrMixinCountTooBig indicates the node returned fewer decoys than
	// the requested mixin count.
	ErrMixinCountTooBig

	// ErrTransactionSizeTooBig indicates the signed transaction exceeds
	// the network's size limit.
	ErrTransactionSizeTooBig

	// ErrInternalWallet indicates an internal failure: key generation,
	// transaction assembly or ledger bookkeeping failed, the signed
	// transaction failed to parse back into its wire form, or a wallet
	// snapshot could not be encoded or decoded.
	ErrInternalWallet

	// ErrOperationCancelled indicates the stop flag was observed.
	ErrOperationCancelled

	// ErrInvalidArgument indicates an out-of-range index, an unknown
	// address or a malformed parameter.
	ErrInvalidArgument
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrNotInitialized:        "ErrNotInitialized",
	ErrAlreadyInitialized:    "ErrAlreadyInitialized",
	ErrWrongState:            "ErrWrongState",
	ErrWrongPassword:         "ErrWrongPassword",
	ErrBadAddress:            "ErrBadAddress",
	ErrZeroDestination:       "ErrZeroDestination",
	ErrSumOverflow:           "ErrSumOverflow",
	ErrWrongAmount:           "ErrWrongAmount",
	ErrMixinCountTooBig:      "ErrMixinCountTooBig",
	ErrTransactionSizeTooBig: "ErrTransactionSizeTooBig",
	ErrInternalWallet:        "ErrInternalWallet",
	ErrOperationCancelled:    "ErrOperationCancelled",
	ErrInvalidArgument:       "ErrInvalidArgument",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during wallet
// operation.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// walletError creates an Error given a set of arguments.
func walletError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(Error)
	return ok && e.ErrorCode == code
}
