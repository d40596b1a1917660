package cut

import (
	"fmt"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/registry"
)

// Validate checks every entry of the cut against the current registry
// state. Every rule is a hard precondition: the first violation rejects
// the whole batch.
//
// deployed reports whether an address holds non-empty code; it is
// supplied by the kernel's binding table.
//
// Replacing an operation with the module that already owns it is a
// permitted no-op, not an error.
func Validate(reg *registry.Registry, c Cut, deployed func(opid.Address) bool) error {
	if len(c.Entries) == 0 {
		return &ValidationError{
			Code:    CodeEmptyEntry,
			Entry:   -1,
			Message: "cut has no entries",
		}
	}

	seen := make(map[opid.OperationID]struct{})

	for i, entry := range c.Entries {
		if len(entry.Operations) == 0 {
			return &ValidationError{
				Code:    CodeEmptyEntry,
				Entry:   i,
				Module:  entry.Module,
				Message: "entry lists no operations",
			}
		}

		switch entry.Action {
		case Add, Replace:
			if entry.Module.IsZero() {
				return &ValidationError{
					Code:    CodeNullModule,
					Entry:   i,
					Message: fmt.Sprintf("%s entry names the null address", entry.Action),
				}
			}
			if !deployed(entry.Module) {
				return &ValidationError{
					Code:    CodeModuleNotDeployed,
					Entry:   i,
					Module:  entry.Module,
					Message: fmt.Sprintf("module %s has no deployed code", entry.Module),
				}
			}
		case Remove:
			if !entry.Module.IsZero() {
				return &ValidationError{
					Code:    CodeRemoveTargetsModule,
					Entry:   i,
					Module:  entry.Module,
					Message: "remove entry must name the null address",
				}
			}
		default:
			return &ValidationError{
				Code:    CodeUnknownAction,
				Entry:   i,
				Message: fmt.Sprintf("unknown action %q", entry.Action),
			}
		}

		for _, op := range entry.Operations {
			if _, dup := seen[op]; dup {
				return &ValidationError{
					Code:    CodeDuplicateOperation,
					Entry:   i,
					Op:      op,
					Message: fmt.Sprintf("operation %s appears twice in the batch", op),
				}
			}
			seen[op] = struct{}{}

			_, owned := reg.Resolve(op)
			switch entry.Action {
			case Add:
				if owned {
					return &ValidationError{
						Code:    CodeAddOwned,
						Entry:   i,
						Op:      op,
						Module:  entry.Module,
						Message: fmt.Sprintf("operation %s is already owned", op),
					}
				}
			case Replace:
				if !owned {
					return &ValidationError{
						Code:    CodeReplaceUnowned,
						Entry:   i,
						Op:      op,
						Module:  entry.Module,
						Message: fmt.Sprintf("operation %s is not owned", op),
					}
				}
			case Remove:
				if !owned {
					return &ValidationError{
						Code:    CodeRemoveUnowned,
						Entry:   i,
						Op:      op,
						Message: fmt.Sprintf("operation %s is not owned", op),
					}
				}
			}
		}
	}

	return nil
}
