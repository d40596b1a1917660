package kernel

import (
	"context"

	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/opid"
)

// Dispatch resolves the operation and forwards execution to the owning
// module while preserving the caller identity, the attached value, and
// the shared storage context. The forward is synchronous: it completes,
// success or failure, before Dispatch returns.
//
// A miss fails deterministically with UNKNOWN_OPERATION; there is no
// fallback path that executes arbitrary code. A failure inside the module
// propagates to the caller verbatim: the kernel adds no wrapping and no
// retries.
func (k *Kernel) Dispatch(ctx context.Context, op opid.OperationID, caller opid.Address, value uint64, args []byte) (*module.Result, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Fresh reentrancy guard per top-level call: locks never leak
	// between calls.
	locks := module.NewReentrancyGuard()
	return k.forward(ctx, locks, op, caller, value, args)
}

// forward performs one context-preserving hop, shared by top-level
// dispatch and nested module forwards.
func (k *Kernel) forward(ctx context.Context, locks *module.ReentrancyGuard, op opid.OperationID, caller opid.Address, value uint64, args []byte) (*module.Result, error) {
	addr, ok := k.reg.Resolve(op)
	if !ok {
		return nil, errUnknownOperation(op)
	}

	h, ok := k.binding.Handler(addr)
	if !ok {
		return nil, &Error{
			Code:    CodeModuleNotBound,
			Message: "owning module has no deployed code",
			Op:      op,
			Module:  addr,
		}
	}

	call := &module.Call{
		Op:     op,
		Caller: caller,
		Value:  value,
		Args:   args,
		NS:     k.ns,
		Locks:  locks,
		Forward: func(ctx context.Context, nested opid.OperationID, nestedArgs []byte) (*module.Result, error) {
			// Nested forwards preserve the original caller and value and
			// share the top-level call's lock set.
			return k.forward(ctx, locks, nested, caller, value, nestedArgs)
		},
	}

	return h.Invoke(ctx, call)
}
