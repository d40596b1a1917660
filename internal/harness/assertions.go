package harness

import (
	"github.com/tessera-dev/tessera/internal/opid"
)

// assertAll evaluates the scenario's final-composition assertions
// through the loupe surface.
func (r *runner) assertAll(assertions []Assertion) {
	for i, a := range assertions {
		switch a.Type {
		case AssertModuleOf:
			r.assertModuleOf(i, a)
		case AssertOperationsOf:
			r.assertOperationsOf(i, a)
		case AssertSupports:
			r.assertSupports(i, a)
		case AssertOwner:
			r.assertOwner(i, a)
		case AssertPendingCount:
			if got := len(r.k.PendingCuts()); got != a.Count {
				r.result.failf("assertion %d: pending_count: expected %d, got %d", i, a.Count, got)
			}
		}
	}
}

func (r *runner) assertModuleOf(i int, a Assertion) {
	addr, owned := r.k.ModuleOf(opid.DeriveOp(a.Op))
	if a.Module == "" {
		if owned {
			r.result.failf("assertion %d: module_of %s: expected unowned, owned by %s", i, a.Op, r.moduleName(addr))
		}
		return
	}
	want, ok := r.moduleAddrs[a.Module]
	if !ok {
		r.result.failf("assertion %d: module_of %s: unknown module %q", i, a.Op, a.Module)
		return
	}
	if !owned {
		r.result.failf("assertion %d: module_of %s: expected %q, got unowned", i, a.Op, a.Module)
		return
	}
	if addr != want {
		r.result.failf("assertion %d: module_of %s: expected %q, got %s", i, a.Op, a.Module, r.moduleName(addr))
	}
}

func (r *runner) assertOperationsOf(i int, a Assertion) {
	addr, ok := r.moduleAddrs[a.Module]
	if !ok {
		r.result.failf("assertion %d: operations_of: unknown module %q", i, a.Module)
		return
	}

	got := r.k.OperationsOf(addr)
	want := make(map[opid.OperationID]string, len(a.Operations))
	for _, sig := range a.Operations {
		want[opid.DeriveOp(sig)] = sig
	}
	if len(got) != len(want) {
		r.result.failf("assertion %d: operations_of %q: expected %d operations, got %d", i, a.Module, len(want), len(got))
		return
	}
	for _, op := range got {
		if _, ok := want[op]; !ok {
			r.result.failf("assertion %d: operations_of %q: unexpected operation %s", i, a.Module, op)
		}
	}
}

func (r *runner) assertSupports(i int, a Assertion) {
	expected := true
	if a.Expected != nil {
		expected = *a.Expected
	}
	if got := r.k.Supports(opid.DeriveCapability(a.Capability)); got != expected {
		r.result.failf("assertion %d: supports %q: expected %v, got %v", i, a.Capability, expected, got)
	}
}

func (r *runner) assertOwner(i int, a Assertion) {
	owner := r.k.Owner()
	if a.Owner == "null" {
		if !owner.IsZero() {
			r.result.failf("assertion %d: owner: expected null, got %s", i, owner)
		}
		return
	}
	if want := resolveCaller(a.Owner, opid.ZeroAddress); owner != want {
		r.result.failf("assertion %d: owner: expected %q, got %s", i, a.Owner, owner)
	}
}

// moduleName reverses an address to its symbolic name for messages.
func (r *runner) moduleName(addr opid.Address) string {
	for name, a := range r.moduleAddrs {
		if a == addr {
			return name
		}
	}
	return addr.String()
}
