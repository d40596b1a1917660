// Package timelock enforces the minimum delay between cut submission and
// cut execution. The genesis cut is exempt: it is applied during service
// construction and never passes through the guard. Every later cut waits
// at least the configured delay, giving observers a window to react to a
// malicious or erroneous upgrade before it lands.
package timelock

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tessera-dev/tessera/internal/cut"
)

// DefaultDelay is the delay applied when the owner has not configured one.
const DefaultDelay = 24 * time.Hour

// Status of a pending cut in the guard's state machine:
// Submitted -> Applied, or Submitted -> Cancelled.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApplied   Status = "applied"
	StatusCancelled Status = "cancelled"
)

// ErrNoPendingCut is returned for an unknown cut id.
var ErrNoPendingCut = errors.New("no pending cut")

// ErrNotPending is returned when acting on a cut already applied or
// cancelled.
var ErrNotPending = errors.New("cut is not pending")

// NotElapsedError reports an execution attempt before the delay window
// closed.
type NotElapsedError struct {
	CutID     string
	ReadyAt   time.Time
	Remaining time.Duration
}

// Error implements the error interface.
func (e *NotElapsedError) Error() string {
	return fmt.Sprintf("timelock not elapsed for cut %s: %s remaining", e.CutID, e.Remaining)
}

// IsNotElapsed reports whether err is (or wraps) a timelock violation.
func IsNotElapsed(err error) bool {
	var ne *NotElapsedError
	return errors.As(err, &ne)
}

// PendingCut is one submitted-but-not-yet-applied upgrade record.
type PendingCut struct {
	ID          string
	Cut         cut.Cut
	SubmittedAt time.Time
	ReadyAt     time.Time
	Status      Status
}

// Guard tracks pending cuts and their delay windows. Not internally
// synchronized; the kernel serializes access under its call lock.
type Guard struct {
	clock   Clock
	delay   time.Duration
	pending map[string]*PendingCut
}

// NewGuard creates a guard with the given clock and delay. A zero delay
// is permitted (the owner explicitly opting out of the window).
func NewGuard(clock Clock, delay time.Duration) *Guard {
	return &Guard{
		clock:   clock,
		delay:   delay,
		pending: make(map[string]*PendingCut),
	}
}

// Delay returns the currently configured delay.
func (g *Guard) Delay() time.Duration {
	return g.delay
}

// SetDelay reconfigures the delay for future submissions. Already
// submitted cuts keep the window computed at submission time.
func (g *Guard) SetDelay(d time.Duration) {
	g.delay = d
}

// Submit records a cut and starts its delay window.
func (g *Guard) Submit(c cut.Cut) *PendingCut {
	now := g.clock.Now()
	p := &PendingCut{
		ID:          c.ID,
		Cut:         c,
		SubmittedAt: now,
		ReadyAt:     now.Add(g.delay),
		Status:      StatusSubmitted,
	}
	g.pending[c.ID] = p
	return p
}

// Evict drops a submission whose durable record could not be written.
// The in-memory view must never advertise a cut the store does not hold.
func (g *Guard) Evict(id string) {
	delete(g.pending, id)
}

// Restore reinstates a pending cut loaded from the store on open.
func (g *Guard) Restore(p PendingCut) {
	copied := p
	g.pending[p.ID] = &copied
}

// Get returns the pending cut by id.
func (g *Guard) Get(id string) (*PendingCut, error) {
	p, ok := g.pending[id]
	if !ok {
		return nil, fmt.Errorf("cut %s: %w", id, ErrNoPendingCut)
	}
	return p, nil
}

// Ready checks that the cut may be executed now: it must be in the
// Submitted state and its delay window must have closed.
func (g *Guard) Ready(id string) error {
	p, err := g.Get(id)
	if err != nil {
		return err
	}
	if p.Status != StatusSubmitted {
		return fmt.Errorf("cut %s is %s: %w", id, p.Status, ErrNotPending)
	}
	now := g.clock.Now()
	if now.Before(p.ReadyAt) {
		return &NotElapsedError{
			CutID:     id,
			ReadyAt:   p.ReadyAt,
			Remaining: p.ReadyAt.Sub(now),
		}
	}
	return nil
}

// MarkApplied finalizes a pending cut after successful application.
func (g *Guard) MarkApplied(id string) error {
	p, err := g.Get(id)
	if err != nil {
		return err
	}
	if p.Status != StatusSubmitted {
		return fmt.Errorf("cut %s is %s: %w", id, p.Status, ErrNotPending)
	}
	p.Status = StatusApplied
	return nil
}

// Cancel withdraws a pending cut before application. Available any time
// before the cut is applied, including after the window has closed.
func (g *Guard) Cancel(id string) error {
	p, err := g.Get(id)
	if err != nil {
		return err
	}
	if p.Status != StatusSubmitted {
		return fmt.Errorf("cut %s is %s: %w", id, p.Status, ErrNotPending)
	}
	p.Status = StatusCancelled
	return nil
}

// Pending returns all cuts still in the Submitted state, ordered by
// submission time then id.
func (g *Guard) Pending() []*PendingCut {
	var out []*PendingCut
	for _, p := range g.pending {
		if p.Status == StatusSubmitted {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
