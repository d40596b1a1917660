package timelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/testutil"
)

func newTestGuard(delay time.Duration) (*Guard, *testutil.ManualClock) {
	clock := testutil.NewManualClock(time.Unix(1_000_000, 0))
	return NewGuard(clock, delay), clock
}

func TestSubmitStartsWindow(t *testing.T) {
	g, clock := newTestGuard(time.Hour)

	p := g.Submit(cut.Cut{ID: "cut-1"})
	assert.Equal(t, StatusSubmitted, p.Status)
	assert.Equal(t, clock.Now().Add(time.Hour), p.ReadyAt)
}

func TestReadyBeforeWindowCloses(t *testing.T) {
	g, clock := newTestGuard(time.Hour)
	g.Submit(cut.Cut{ID: "cut-1"})

	err := g.Ready("cut-1")
	require.Error(t, err)
	assert.True(t, IsNotElapsed(err))

	var ne *NotElapsedError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, time.Hour, ne.Remaining)

	// The identical check succeeds once the delay has elapsed.
	clock.Advance(time.Hour)
	assert.NoError(t, g.Ready("cut-1"))
}

func TestReadyExactBoundary(t *testing.T) {
	g, clock := newTestGuard(time.Hour)
	g.Submit(cut.Cut{ID: "cut-1"})

	clock.Advance(time.Hour - time.Second)
	assert.True(t, IsNotElapsed(g.Ready("cut-1")))

	clock.Advance(time.Second)
	assert.NoError(t, g.Ready("cut-1"))
}

func TestEvictForgetsSubmission(t *testing.T) {
	g, _ := newTestGuard(0)
	g.Submit(cut.Cut{ID: "cut-1"})

	g.Evict("cut-1")
	assert.Empty(t, g.Pending())
	_, err := g.Get("cut-1")
	assert.ErrorIs(t, err, ErrNoPendingCut)
}

func TestZeroDelayReadyImmediately(t *testing.T) {
	g, _ := newTestGuard(0)
	g.Submit(cut.Cut{ID: "cut-1"})

	assert.NoError(t, g.Ready("cut-1"))
}

func TestSetDelayAffectsFutureSubmissionsOnly(t *testing.T) {
	g, clock := newTestGuard(time.Hour)
	g.Submit(cut.Cut{ID: "early"})

	g.SetDelay(10 * time.Hour)
	g.Submit(cut.Cut{ID: "late"})

	clock.Advance(time.Hour)
	assert.NoError(t, g.Ready("early"), "already-submitted cut keeps its window")
	assert.True(t, IsNotElapsed(g.Ready("late")))
}

func TestCancelBeforeApply(t *testing.T) {
	g, clock := newTestGuard(time.Hour)
	g.Submit(cut.Cut{ID: "cut-1"})

	require.NoError(t, g.Cancel("cut-1"))

	// A cancelled cut reverts to "no pending cut" for execution purposes.
	clock.Advance(2 * time.Hour)
	err := g.Ready("cut-1")
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Empty(t, g.Pending())
}

func TestCancelledCutCannotBeApplied(t *testing.T) {
	g, _ := newTestGuard(0)
	g.Submit(cut.Cut{ID: "cut-1"})
	require.NoError(t, g.Cancel("cut-1"))

	assert.ErrorIs(t, g.MarkApplied("cut-1"), ErrNotPending)
}

func TestMarkAppliedFinalizes(t *testing.T) {
	g, _ := newTestGuard(0)
	g.Submit(cut.Cut{ID: "cut-1"})

	require.NoError(t, g.MarkApplied("cut-1"))
	assert.ErrorIs(t, g.Ready("cut-1"), ErrNotPending)
	assert.ErrorIs(t, g.Cancel("cut-1"), ErrNotPending)
}

func TestUnknownCut(t *testing.T) {
	g, _ := newTestGuard(0)

	assert.ErrorIs(t, g.Ready("nope"), ErrNoPendingCut)
	assert.ErrorIs(t, g.Cancel("nope"), ErrNoPendingCut)
}

func TestPendingOrdered(t *testing.T) {
	g, clock := newTestGuard(time.Hour)

	g.Submit(cut.Cut{ID: "b"})
	clock.Advance(time.Minute)
	g.Submit(cut.Cut{ID: "a"})

	pending := g.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID, "submission order wins over id order")
	assert.Equal(t, "a", pending[1].ID)
}

func TestRestoreReinstatesWindow(t *testing.T) {
	g, clock := newTestGuard(time.Hour)

	submitted := clock.Now()
	g.Restore(PendingCut{
		ID:          "restored",
		Cut:         cut.Cut{ID: "restored"},
		SubmittedAt: submitted,
		ReadyAt:     submitted.Add(time.Hour),
		Status:      StatusSubmitted,
	})

	assert.True(t, IsNotElapsed(g.Ready("restored")))
	clock.Advance(time.Hour)
	assert.NoError(t, g.Ready("restored"))
}
