package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml | dir>...",
		Short: "Run harness scenarios against an in-memory service",
		Long: `Each scenario declares its own modules, genesis, steps, and
assertions; every run builds a fresh in-memory service under a manual
clock, so results are deterministic. Any failing assertion or
unexpected step outcome exits with status 1.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, rootOpts, args)
		},
	}

	return cmd
}

func runTest(cmd *cobra.Command, rootOpts *RootOptions, args []string) error {
	f := formatter(rootOpts, cmd)

	paths, err := collectScenarios(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "collecting scenarios", err)
	}
	if len(paths) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	type outcome struct {
		Scenario string   `json:"scenario"`
		Passed   bool     `json:"passed"`
		Failures []string `json:"failures,omitempty"`
	}
	var outcomes []outcome
	var lines []string
	failed := 0

	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, path, err)
		}
		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, path, err)
		}

		o := outcome{Scenario: scenario.Name, Passed: result.Passed(), Failures: result.Failures}
		outcomes = append(outcomes, o)
		if o.Passed {
			lines = append(lines, fmt.Sprintf("ok    %s (%d events)", scenario.Name, len(result.Trace)))
		} else {
			failed++
			lines = append(lines, fmt.Sprintf("FAIL  %s", scenario.Name))
			for _, msg := range result.Failures {
				lines = append(lines, "      "+msg)
			}
		}
		f.VerboseLog("%s: %d trace events, %d failures", scenario.Name, len(result.Trace), len(result.Failures))
	}

	lines = append(lines, fmt.Sprintf("%d scenarios, %d failed", len(paths), failed))
	if err := f.Successf(outcomes, "%s", strings.Join(lines, "\n")); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(paths)))
	}
	return nil
}

// collectScenarios expands arguments into scenario files: files are
// taken as-is, directories contribute their *.yaml entries.
func collectScenarios(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.yaml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}
