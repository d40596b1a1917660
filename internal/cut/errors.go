package cut

import (
	"errors"
	"fmt"

	"github.com/tessera-dev/tessera/internal/opid"
)

// ValidationCode categorizes cut rejections.
type ValidationCode string

const (
	// CodeDuplicateOperation: the same operation id appears twice across
	// the batch.
	CodeDuplicateOperation ValidationCode = "DUPLICATE_OPERATION"

	// CodeAddOwned: an Add entry lists an operation that already has an
	// owner.
	CodeAddOwned ValidationCode = "ADD_OWNED"

	// CodeReplaceUnowned: a Replace entry lists an operation no module
	// owns.
	CodeReplaceUnowned ValidationCode = "REPLACE_UNOWNED"

	// CodeRemoveUnowned: a Remove entry lists an operation no module
	// owns.
	CodeRemoveUnowned ValidationCode = "REMOVE_UNOWNED"

	// CodeNullModule: an Add or Replace entry names the null address.
	CodeNullModule ValidationCode = "NULL_MODULE"

	// CodeModuleNotDeployed: an Add or Replace entry names an address
	// with no deployed code behind it.
	CodeModuleNotDeployed ValidationCode = "MODULE_NOT_DEPLOYED"

	// CodeRemoveTargetsModule: a Remove entry names a non-null address.
	// Removal does not specify a destination module.
	CodeRemoveTargetsModule ValidationCode = "REMOVE_TARGETS_MODULE"

	// CodeEmptyEntry: an entry lists no operations, or the batch has no
	// entries.
	CodeEmptyEntry ValidationCode = "EMPTY_ENTRY"

	// CodeUnknownAction: an entry's action is not add/replace/remove.
	CodeUnknownAction ValidationCode = "UNKNOWN_ACTION"
)

// ValidationError rejects a whole cut. Any single violation rejects the
// entire batch with no partial application.
type ValidationError struct {
	Code    ValidationCode
	Entry   int // index of the offending entry, -1 for batch-level violations
	Op      opid.OperationID
	Module  opid.Address
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Entry >= 0 {
		return fmt.Sprintf("%s: entry %d: %s", e.Code, e.Entry, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err is (or wraps) a cut validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
