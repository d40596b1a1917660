package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upgradeScenario() *Scenario {
	return &Scenario{
		Name:  "upgrade",
		Delay: "1h",
		Modules: []ModuleDecl{
			{Name: "counter_v1", Kind: "counter", Code: "counter-v1", Namespace: "mod/counter", Capabilities: []string{"counting"}},
			{Name: "counter_v2", Kind: "counter", Code: "counter-v2", Namespace: "mod/counter"},
		},
		Genesis: []EntryDecl{
			{Module: "counter_v1", Action: "add", Operations: []string{"increment()", "get()"}},
		},
		Steps: []Step{
			{Call: &CallStep{Op: "increment()", Expect: "1"}},
			{Submit: &SubmitStep{Entries: []EntryDecl{
				{Module: "counter_v2", Action: "replace", Operations: []string{"increment()", "get()"}},
			}}},
			{Execute: "cut-1", ExpectError: "TIMELOCK_NOT_ELAPSED"},
			{Advance: "1h"},
			{Execute: "cut-1"},
			{Call: &CallStep{Op: "increment()", Expect: "2"}},
		},
		Assertions: []Assertion{
			{Type: AssertModuleOf, Op: "increment()", Module: "counter_v2"},
			{Type: AssertOperationsOf, Module: "counter_v1"},
			{Type: AssertSupports, Capability: "counting", Expected: boolPtr(false)},
			{Type: AssertPendingCount, Count: 0},
		},
	}
}

func boolPtr(b bool) *bool { return &b }

func TestRunUpgradeLifecycle(t *testing.T) {
	result, err := Run(upgradeScenario())
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)

	require.Len(t, result.Trace, 6)
	assert.Equal(t, TraceEvent{Seq: 1, Type: "call", Op: "increment()", Caller: "user", Result: "1"}, result.Trace[0])
	assert.Equal(t, TraceEvent{Seq: 2, Type: "submit", Cut: "cut-1", Entries: 1}, result.Trace[1])
	assert.Equal(t, TraceEvent{Seq: 3, Type: "error", Step: "execute", Code: "TIMELOCK_NOT_ELAPSED"}, result.Trace[2])
	assert.Equal(t, TraceEvent{Seq: 4, Type: "advance", By: "1h"}, result.Trace[3])
	assert.Equal(t, TraceEvent{Seq: 5, Type: "execute", Cut: "cut-1"}, result.Trace[4])
	assert.Equal(t, TraceEvent{Seq: 6, Type: "call", Op: "increment()", Caller: "user", Result: "2"}, result.Trace[5])
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := Run(upgradeScenario())
	require.NoError(t, err)
	second, err := Run(upgradeScenario())
	require.NoError(t, err)

	s1, err := Snapshot(upgradeScenario(), first)
	require.NoError(t, err)
	s2, err := Snapshot(upgradeScenario(), second)
	require.NoError(t, err)
	assert.Equal(t, string(s1), string(s2))
}

func TestRunUnexpectedResultFails(t *testing.T) {
	s := upgradeScenario()
	s.Steps[0].Call.Expect = "99"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.NotEmpty(t, result.Failures)
	assert.Contains(t, result.Failures[0], `expected "99"`)
}

func TestRunExpectedErrorMissingFails(t *testing.T) {
	s := upgradeScenario()
	// Step 4 executes after the window; expecting a timelock error there
	// must fail.
	s.Steps[4].ExpectError = "TIMELOCK_NOT_ELAPSED"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Contains(t, result.Failures[0], "expected error TIMELOCK_NOT_ELAPSED, got none")
}

func TestRunWrongErrorCodeFails(t *testing.T) {
	s := upgradeScenario()
	s.Steps[2].ExpectError = "UNAUTHORIZED"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Contains(t, result.Failures[0], "got TIMELOCK_NOT_ELAPSED")
}

func TestRunUnknownOperationCode(t *testing.T) {
	s := &Scenario{
		Name: "unknown-op",
		Modules: []ModuleDecl{
			{Name: "counter", Kind: "counter", Code: "c", Namespace: "mod/counter"},
		},
		Genesis: []EntryDecl{{Module: "counter", Action: "add", Operations: []string{"increment()"}}},
		Steps: []Step{
			{Call: &CallStep{Op: "missing()"}, ExpectError: "UNKNOWN_OPERATION"},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "UNKNOWN_OPERATION", result.Trace[0].Code)
}

func TestRunModuleFailureCode(t *testing.T) {
	s := &Scenario{
		Name: "failing-module",
		Modules: []ModuleDecl{
			{Name: "boom", Kind: "fail", Code: "boom-v1"},
		},
		Genesis: []EntryDecl{{Module: "boom", Action: "add", Operations: []string{"explode()"}}},
		Steps: []Step{
			{Call: &CallStep{Op: "explode()"}, ExpectError: "MODULE_FAILURE"},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRunEchoKind(t *testing.T) {
	s := &Scenario{
		Name: "echo",
		Modules: []ModuleDecl{
			{Name: "echo", Kind: "echo", Code: "echo-v1"},
		},
		Genesis: []EntryDecl{{Module: "echo", Action: "add", Operations: []string{"echo(data)"}}},
		Steps: []Step{
			{Call: &CallStep{Op: "echo(data)", Args: "hello", Expect: "hello"}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRunCounterGetDoesNotIncrement(t *testing.T) {
	s := &Scenario{
		Name: "counter-get",
		Modules: []ModuleDecl{
			{Name: "counter", Kind: "counter", Code: "c", Namespace: "mod/counter"},
		},
		Genesis: []EntryDecl{{Module: "counter", Action: "add", Operations: []string{"increment()", "get()"}}},
		Steps: []Step{
			{Call: &CallStep{Op: "increment()", Expect: "1"}},
			{Call: &CallStep{Op: "get()", Expect: "1"}},
			{Call: &CallStep{Op: "get()", Expect: "1"}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRunCancelStep(t *testing.T) {
	s := &Scenario{
		Name:  "cancel",
		Delay: "1h",
		Modules: []ModuleDecl{
			{Name: "counter", Kind: "counter", Code: "c", Namespace: "mod/counter"},
		},
		Genesis: []EntryDecl{{Module: "counter", Action: "add", Operations: []string{"increment()"}}},
		Steps: []Step{
			{Submit: &SubmitStep{Entries: []EntryDecl{
				{Action: "remove", Operations: []string{"increment()"}},
			}}},
			{Cancel: "cut-1"},
			{Advance: "2h"},
			{Execute: "cut-1", ExpectError: "CUT_NOT_PENDING"},
			{Call: &CallStep{Op: "increment()", Expect: "1"}},
		},
		Assertions: []Assertion{
			{Type: AssertModuleOf, Op: "increment()", Module: "counter"},
			{Type: AssertPendingCount, Count: 0},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}

func TestRunNonOwnerSubmit(t *testing.T) {
	s := &Scenario{
		Name: "non-owner",
		Modules: []ModuleDecl{
			{Name: "counter", Kind: "counter", Code: "c", Namespace: "mod/counter"},
		},
		Genesis: []EntryDecl{{Module: "counter", Action: "add", Operations: []string{"increment()"}}},
		Steps: []Step{
			{Submit: &SubmitStep{
				Caller:  "mallory",
				Entries: []EntryDecl{{Action: "remove", Operations: []string{"increment()"}}},
			}, ExpectError: "UNAUTHORIZED"},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
}
