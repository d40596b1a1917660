package kernel

import (
	"errors"
	"fmt"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// Error represents a failure surfaced by the kernel's own surface:
// dispatch misses, authorization failures, and upgrade bookkeeping.
// Module execution failures are NOT wrapped in Error; the dispatcher
// propagates them verbatim.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op identifies the operation (for dispatch errors).
	Op opid.OperationID

	// Module identifies the module address involved, if any.
	Module opid.Address

	// CutID identifies the cut (for upgrade errors).
	CutID string
}

// ErrorCode categorizes kernel errors.
type ErrorCode string

const (
	// CodeUnknownOperation indicates the dispatch target has no
	// registered module. Never retried; there is no fallback path.
	CodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// CodeUnauthorized indicates a non-owner attempting an owner-gated
	// operation.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeModuleNotBound indicates a registered operation whose owning
	// module has no deployed code behind it. Deterministic failure
	// rather than arbitrary fallback execution.
	CodeModuleNotBound ErrorCode = "MODULE_NOT_BOUND"

	// CodeNoPendingOwner indicates AcceptOwnership with no transfer in
	// flight, or by the wrong account.
	CodeNoPendingOwner ErrorCode = "NO_PENDING_OWNER"

	// CodeNullOwner indicates a transfer naming the null sentinel.
	// Disowning the service goes through RenounceOwnership only.
	CodeNullOwner ErrorCode = "NULL_OWNER"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case !e.Op.IsZero():
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	case e.CutID != "":
		return fmt.Sprintf("%s: %s (cut=%s)", e.Code, e.Message, e.CutID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsUnknownOperation reports whether err is a dispatch miss.
// Uses errors.As to handle wrapped errors.
func IsUnknownOperation(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == CodeUnknownOperation
	}
	return false
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == CodeUnauthorized
	}
	return false
}

// IsValidationFailure reports whether err is a cut validation rejection.
func IsValidationFailure(err error) bool {
	return cut.IsValidation(err)
}

// IsTimelockNotElapsed reports whether err is a premature execution
// attempt.
func IsTimelockNotElapsed(err error) bool {
	return timelock.IsNotElapsed(err)
}

func errUnauthorized(caller opid.Address) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: fmt.Sprintf("caller %s is not the owner", caller),
		Module:  caller,
	}
}

func errUnknownOperation(op opid.OperationID) *Error {
	return &Error{
		Code:    CodeUnknownOperation,
		Message: "no module owns this operation",
		Op:      op,
	}
}
