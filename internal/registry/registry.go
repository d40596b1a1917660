// Package registry holds the authoritative operation-to-module map of the
// composite service, plus the reverse module-to-operations index used for
// introspection and clean removal.
//
// INVARIANTS:
//   - The forward and reverse indices are always mutually consistent.
//   - An operation id is owned by at most one module at a time.
//   - Mutation goes through the cut processor only; the dispatcher and
//     introspection surface read, never write.
//
// The registry is not internally synchronized: the kernel serializes all
// access under its call lock, and the cut processor stages mutations on a
// Clone before swapping the live instance.
package registry

import (
	"sort"

	"github.com/tessera-dev/tessera/internal/opid"
)

// Registry is the dual-index operation ownership table.
type Registry struct {
	forward map[opid.OperationID]opid.Address
	reverse map[opid.Address]map[opid.OperationID]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		forward: make(map[opid.OperationID]opid.Address),
		reverse: make(map[opid.Address]map[opid.OperationID]struct{}),
	}
}

// Resolve returns the module that owns the operation, if any. O(1).
func (r *Registry) Resolve(op opid.OperationID) (opid.Address, bool) {
	addr, ok := r.forward[op]
	return addr, ok
}

// Register assigns ownership of op to module, replacing any prior owner.
// Both indices are updated together; if the prior owner loses its last
// operation it is dropped from the reverse index entirely.
func (r *Registry) Register(op opid.OperationID, module opid.Address) {
	if prev, ok := r.forward[op]; ok && prev != module {
		r.dropReverse(prev, op)
	}
	r.forward[op] = module
	ops, ok := r.reverse[module]
	if !ok {
		ops = make(map[opid.OperationID]struct{})
		r.reverse[module] = ops
	}
	ops[op] = struct{}{}
}

// Unregister removes ownership of op. Removing an unowned operation is a
// no-op at this level; the cut processor rejects it before getting here.
func (r *Registry) Unregister(op opid.OperationID) {
	addr, ok := r.forward[op]
	if !ok {
		return
	}
	delete(r.forward, op)
	r.dropReverse(addr, op)
}

func (r *Registry) dropReverse(module opid.Address, op opid.OperationID) {
	ops, ok := r.reverse[module]
	if !ok {
		return
	}
	delete(ops, op)
	if len(ops) == 0 {
		delete(r.reverse, module)
	}
}

// Modules returns the addresses of all modules that currently own at
// least one operation, sorted for deterministic output.
func (r *Registry) Modules() []opid.Address {
	addrs := make([]opid.Address, 0, len(r.reverse))
	for addr := range r.reverse {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].String() < addrs[j].String()
	})
	return addrs
}

// OperationsOf returns the operations owned by module, sorted for
// deterministic output. A module owning nothing yields an empty slice.
func (r *Registry) OperationsOf(module opid.Address) []opid.OperationID {
	ops := make([]opid.OperationID, 0, len(r.reverse[module]))
	for op := range r.reverse[module] {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].String() < ops[j].String()
	})
	return ops
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.forward)
}

// Clone returns a deep copy for staged mutation. The cut processor
// validates and applies a whole batch on the clone, then swaps it in;
// the live registry is never mutated entry-by-entry.
func (r *Registry) Clone() *Registry {
	c := New()
	for op, addr := range r.forward {
		c.Register(op, addr)
	}
	return c
}

// Snapshot returns the forward index as a plain map, for before/after
// equality checks in tests and for the change journal.
func (r *Registry) Snapshot() map[opid.OperationID]opid.Address {
	snap := make(map[opid.OperationID]opid.Address, len(r.forward))
	for op, addr := range r.forward {
		snap[op] = addr
	}
	return snap
}
