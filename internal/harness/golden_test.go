package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios and
// compares its canonical trace against the matching golden file.
func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenarios found")

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			RunWithGolden(t, scenario)
		})
	}
}

func TestSnapshotIsCanonical(t *testing.T) {
	result := &Result{Trace: []TraceEvent{
		{Seq: 1, Type: "call", Op: "get()", Caller: "user", Result: "0"},
	}}
	snap, err := Snapshot(&Scenario{Name: "s"}, result)
	require.NoError(t, err)
	require.Equal(t,
		`{"scenario_name":"s","trace":[{"caller":"user","op":"get()","result":"0","seq":1,"type":"call"}]}`,
		string(snap))
}
