package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tessera-dev/tessera/internal/opid"
)

// Snapshot renders the scenario trace as canonical JSON: deterministic
// key order, NFC strings, no floats. Byte-stable across runs.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		trace[i] = e.toCanonicalMap()
	}
	return opid.MarshalCanonical(map[string]any{
		"scenario_name": scenario.Name,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario, fails the test on any step or
// assertion mismatch, and compares the canonical trace against
// testdata/golden/<name>.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, f := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, f)
	}

	snapshot, err := Snapshot(scenario, result)
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)
}
