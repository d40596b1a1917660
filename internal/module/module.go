// Package module defines the contract between the kernel and the
// independently deployed units of code it dispatches to.
//
// Modules are units of code reuse and upgrade, never units of state
// isolation: a handler holds no state of its own and sees only the
// namespace handles granted through the call it receives. State isolation
// is the namespace manager's job.
package module

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tessera-dev/tessera/internal/namespace"
	"github.com/tessera-dev/tessera/internal/opid"
)

// Call carries one forwarded operation invocation: the operation id, the
// original caller identity and attached value, the raw argument payload,
// and the shared storage context. The kernel constructs it; handlers must
// not retain it past the invocation.
type Call struct {
	// Op is the operation being invoked.
	Op opid.OperationID

	// Caller is the identity of the original external caller, preserved
	// across nested forwards.
	Caller opid.Address

	// Value is the attached value of the original call.
	Value uint64

	// Args is the operation's raw argument payload. Each operation
	// defines its own encoding.
	Args []byte

	// NS grants access to the shared storage arena. Handlers reserve
	// their module's namespace through it.
	NS *namespace.Manager

	// Forward re-enters the dispatcher for a nested call against the
	// same service. Caller and value are preserved. Nil during a cut
	// initializer, where re-entry into the in-flight mutation is not
	// permitted.
	Forward func(ctx context.Context, op opid.OperationID, args []byte) (*Result, error)

	// Locks is the per-call reentrancy guard. A handler that performs
	// external interactions with side effects locks its namespace first;
	// a nested forward reaching the same namespace then fails instead of
	// observing half-written state.
	Locks *ReentrancyGuard
}

// Result is a handler's successful return payload.
type Result struct {
	Data []byte
}

// Handler is the executable face of a deployed module. Invoke runs the
// operation synchronously against the caller's storage context; an error
// return propagates to the original caller unchanged.
type Handler interface {
	Invoke(ctx context.Context, call *Call) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, call *Call) (*Result, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, call *Call) (*Result, error) {
	return f(ctx, call)
}

// Deployment describes one deployed module: its code, the hash that
// address derivation is anchored to, and the capabilities it advertises.
type Deployment struct {
	Handler      Handler
	CodeHash     []byte
	Capabilities []opid.CapabilityID
}

// Binding maps module addresses to their deployed code. An address with
// no binding (or a nil handler) is "empty code": cut validation rejects
// adding operations to it.
type Binding struct {
	mu      sync.RWMutex
	entries map[opid.Address]Deployment
}

// NewBinding creates an empty binding table.
func NewBinding() *Binding {
	return &Binding{entries: make(map[opid.Address]Deployment)}
}

// Bind registers deployed code at an address. Binding the same address
// twice is an error: module code is replaced through cuts, not by
// rebinding.
func (b *Binding) Bind(addr opid.Address, dep Deployment) error {
	if addr.IsZero() {
		return fmt.Errorf("bind: null address")
	}
	if dep.Handler == nil {
		return fmt.Errorf("bind %s: nil handler", addr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.entries[addr]; exists {
		return fmt.Errorf("bind %s: already bound", addr)
	}
	b.entries[addr] = dep
	return nil
}

// Deployed reports whether addr holds non-empty code.
func (b *Binding) Deployed(addr opid.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dep, ok := b.entries[addr]
	return ok && dep.Handler != nil
}

// Handler returns the handler bound at addr.
func (b *Binding) Handler(addr opid.Address) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dep, ok := b.entries[addr]
	if !ok || dep.Handler == nil {
		return nil, false
	}
	return dep.Handler, true
}

// Capabilities returns the capabilities advertised by the module at addr,
// sorted for deterministic output.
func (b *Binding) Capabilities(addr opid.Address) []opid.CapabilityID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dep, ok := b.entries[addr]
	if !ok {
		return nil
	}
	caps := make([]opid.CapabilityID, len(dep.Capabilities))
	copy(caps, dep.Capabilities)
	sort.Slice(caps, func(i, j int) bool {
		return caps[i].String() < caps[j].String()
	})
	return caps
}
