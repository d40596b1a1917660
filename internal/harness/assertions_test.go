package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertionFailuresAreReported(t *testing.T) {
	s := upgradeScenario()
	s.Assertions = []Assertion{
		{Type: AssertModuleOf, Op: "increment()", Module: "counter_v1"}, // actually counter_v2
		{Type: AssertSupports, Capability: "counting"},                  // defaults to expected=true, actually false
		{Type: AssertPendingCount, Count: 3},                            // actually 0
		{Type: AssertOwner, Owner: "mallory"},                           // actually "owner"
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Len(t, result.Failures, 4)
}

func TestAssertUnownedOperation(t *testing.T) {
	s := upgradeScenario()
	s.Steps = append(s.Steps,
		Step{Submit: &SubmitStep{Entries: []EntryDecl{
			{Action: "remove", Operations: []string{"get()"}},
		}}},
		Step{Advance: "1h"},
		Step{Execute: "cut-2"},
	)
	s.Assertions = []Assertion{
		{Type: AssertModuleOf, Op: "get()"}, // empty module means unowned
		{Type: AssertModuleOf, Op: "increment()", Module: "counter_v2"},
		{Type: AssertOwner, Owner: "owner"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}
