package module

import (
	"errors"
	"fmt"
)

// ErrReentrancy is wrapped by every reentrancy violation.
var ErrReentrancy = errors.New("reentrant call")

// ReentrancyGuard tracks namespace locks for one top-level call. It is
// scoped to the call context, never shared across calls: the kernel
// creates a fresh guard per dispatch, so locks cannot leak between
// top-level calls.
//
// Not internally synchronized. A call executes on a single logical thread
// of control, so the guard is only ever touched sequentially.
type ReentrancyGuard struct {
	locked map[string]struct{}
}

// NewReentrancyGuard creates an empty guard.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{locked: make(map[string]struct{})}
}

// Lock marks the namespace as entered for the remainder of the scope and
// returns an unlock function. A second Lock of the same namespace within
// the same top-level call fails with ErrReentrancy: a nested forward has
// re-entered a subsystem whose state updates are not finalized.
func (g *ReentrancyGuard) Lock(ns string) (func(), error) {
	if _, held := g.locked[ns]; held {
		return nil, fmt.Errorf("namespace %q: %w", ns, ErrReentrancy)
	}
	g.locked[ns] = struct{}{}
	return func() { delete(g.locked, ns) }, nil
}

// Held reports whether the namespace is currently locked.
func (g *ReentrancyGuard) Held(ns string) bool {
	_, held := g.locked[ns]
	return held
}
