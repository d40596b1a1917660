package kernel

import (
	"time"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// The loupe: read-only, side-effect-free enumeration of the current
// composition. No authorization required.

// Modules returns every module that currently owns at least one
// operation, sorted.
func (k *Kernel) Modules() []opid.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reg.Modules()
}

// OperationsOf returns the operations owned by the module, sorted. A
// module owning nothing yields an empty slice.
func (k *Kernel) OperationsOf(addr opid.Address) []opid.OperationID {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reg.OperationsOf(addr)
}

// ModuleOf returns the module that owns the operation, if any.
func (k *Kernel) ModuleOf(op opid.OperationID) (opid.Address, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reg.Resolve(op)
}

// Supports reports whether the composite currently advertises the
// capability: some module advertising it must own at least one
// operation. Capability advertisement is independent of individual
// operation ids; external callers probe it before calling.
func (k *Kernel) Supports(cap opid.CapabilityID) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, addr := range k.reg.Modules() {
		for _, c := range k.binding.Capabilities(addr) {
			if c == cap {
				return true
			}
		}
	}
	return false
}

// Owner returns the current owner (the null sentinel after renouncement).
func (k *Kernel) Owner() opid.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.owner
}

// PendingOwner returns the in-flight transfer candidate, if any.
func (k *Kernel) PendingOwner() opid.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pendingOwner
}

// Delay returns the currently configured timelock duration.
func (k *Kernel) Delay() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.guard.Delay()
}

// PendingCuts returns all submitted-but-unapplied cuts in submission
// order.
func (k *Kernel) PendingCuts() []*timelock.PendingCut {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.guard.Pending()
}
