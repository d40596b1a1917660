// Package harness runs YAML conformance scenarios against a real
// service instance: a fresh in-memory store, a manual clock, and fixed
// cut ids, so every run of a scenario produces the identical trace. The
// trace is serialized canonically and compared against golden files.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/kernel"
	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/testutil"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// scenarioEpoch is the fixed start time of every scenario clock.
const scenarioEpoch = 1_700_000_000

// TraceEvent is one entry in a scenario's execution trace. All fields
// are symbolic (module names, signatures, scenario caller names) so
// golden files stay readable and stable.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Type    string `json:"type"`
	Cut     string `json:"cut,omitempty"`
	Entries int    `json:"entries,omitempty"`
	By      string `json:"by,omitempty"`
	Op      string `json:"op,omitempty"`
	Caller  string `json:"caller,omitempty"`
	Result  string `json:"result,omitempty"`
	Step    string `json:"step,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e TraceEvent) toCanonicalMap() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
	}
	if e.Cut != "" {
		m["cut"] = e.Cut
	}
	if e.Entries != 0 {
		m["entries"] = e.Entries
	}
	if e.By != "" {
		m["by"] = e.By
	}
	if e.Op != "" {
		m["op"] = e.Op
	}
	if e.Caller != "" {
		m["caller"] = e.Caller
	}
	if e.Result != "" {
		m["result"] = e.Result
	}
	if e.Step != "" {
		m["step"] = e.Step
	}
	if e.Code != "" {
		m["code"] = e.Code
	}
	return m
}

// Result is the outcome of one scenario run.
type Result struct {
	Trace    []TraceEvent
	Failures []string
}

// Passed reports whether every step and assertion held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// runner holds per-run state.
type runner struct {
	k           *kernel.Kernel
	clock       *testutil.ManualClock
	moduleAddrs map[string]opid.Address
	owner       opid.Address
	result      *Result
	seq         int
}

// Run executes a scenario against a fresh service. Scenario-level
// failures (bad declarations, broken genesis) return an error; step and
// assertion mismatches are collected in the result.
func Run(scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	delay := time.Hour
	if scenario.Delay != "" {
		delay, _ = time.ParseDuration(scenario.Delay)
	}

	ids := scenario.CutIDs
	if len(ids) == 0 {
		for i := 1; i <= 16; i++ {
			ids = append(ids, fmt.Sprintf("cut-%d", i))
		}
	}

	binding := module.NewBinding()
	moduleAddrs := make(map[string]opid.Address, len(scenario.Modules))
	for _, decl := range scenario.Modules {
		h, err := handlerFor(decl)
		if err != nil {
			return nil, err
		}
		addr := opid.DeriveAddress([]byte(decl.Code), []byte("harness"))
		moduleAddrs[decl.Name] = addr

		caps := make([]opid.CapabilityID, 0, len(decl.Capabilities))
		for _, name := range decl.Capabilities {
			caps = append(caps, opid.DeriveCapability(name))
		}
		if err := binding.Bind(addr, module.Deployment{
			Handler:      h,
			CodeHash:     []byte(decl.Code),
			Capabilities: caps,
		}); err != nil {
			return nil, fmt.Errorf("module %q: %w", decl.Name, err)
		}
	}

	genesis, err := resolveEntries(scenario.Genesis, moduleAddrs)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	owner := resolveCaller("owner", opid.ZeroAddress)
	clock := testutil.NewManualClock(time.Unix(scenarioEpoch, 0))
	k, err := kernel.New(context.Background(), kernel.Config{
		StorePath: ":memory:",
		Owner:     owner,
		Binding:   binding,
		Genesis:   genesis,
		Clock:     clock,
		Delay:     delay,
		IDs:       kernel.NewFixedGenerator(append([]string{"genesis"}, ids...)...),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	defer k.Close()

	r := &runner{
		k:           k,
		clock:       clock,
		moduleAddrs: moduleAddrs,
		owner:       owner,
		result:      &Result{},
	}
	for i, step := range scenario.Steps {
		r.runStep(i, step)
	}
	r.assertAll(scenario.Assertions)
	return r.result, nil
}

func (r *runner) emit(e TraceEvent) {
	r.seq++
	e.Seq = r.seq
	r.result.Trace = append(r.result.Trace, e)
}

// finish records an error outcome against the step's expectation.
func (r *runner) finish(i int, stepName, expectErr string, err error) bool {
	if err == nil {
		if expectErr != "" {
			r.result.failf("step %d (%s): expected error %s, got none", i, stepName, expectErr)
		}
		return true
	}
	code := errorCode(err)
	r.emit(TraceEvent{Type: "error", Step: stepName, Code: code})
	if expectErr == "" {
		r.result.failf("step %d (%s): unexpected error: %v", i, stepName, err)
	} else if code != expectErr {
		r.result.failf("step %d (%s): expected error %s, got %s (%v)", i, stepName, expectErr, code, err)
	}
	return false
}

func (r *runner) runStep(i int, step Step) {
	ctx := context.Background()
	switch {
	case step.Submit != nil:
		entries, err := resolveEntries(step.Submit.Entries, r.moduleAddrs)
		if err != nil {
			r.result.failf("step %d (submit): %v", i, err)
			return
		}
		var init *cut.InitCall
		if decl := step.Submit.Initializer; decl != nil {
			addr, ok := r.moduleAddrs[decl.Target]
			if !ok {
				r.result.failf("step %d (submit): unknown module %q", i, decl.Target)
				return
			}
			init = &cut.InitCall{Target: addr, Payload: []byte(decl.Payload)}
		}
		caller := resolveCaller(step.Submit.Caller, r.owner)
		p, err := r.k.SubmitCut(ctx, caller, entries, init)
		if r.finish(i, "submit", step.ExpectError, err) && err == nil {
			r.emit(TraceEvent{Type: "submit", Cut: p.ID, Entries: len(entries)})
		}

	case step.Advance != "":
		d, _ := time.ParseDuration(step.Advance)
		r.clock.Advance(d)
		r.emit(TraceEvent{Type: "advance", By: step.Advance})

	case step.Execute != "":
		err := r.k.ExecuteCut(ctx, r.owner, step.Execute)
		if r.finish(i, "execute", step.ExpectError, err) && err == nil {
			r.emit(TraceEvent{Type: "execute", Cut: step.Execute})
		}

	case step.Cancel != "":
		err := r.k.CancelCut(ctx, r.owner, step.Cancel)
		if r.finish(i, "cancel", step.ExpectError, err) && err == nil {
			r.emit(TraceEvent{Type: "cancel", Cut: step.Cancel})
		}

	case step.Call != nil:
		callerName := step.Call.Caller
		if callerName == "" {
			callerName = "user"
		}
		caller := resolveCaller(callerName, r.owner)
		res, err := r.k.Dispatch(ctx, opid.DeriveOp(step.Call.Op), caller, 0, []byte(step.Call.Args))
		if !r.finish(i, "call", step.ExpectError, err) || err != nil {
			return
		}
		r.emit(TraceEvent{Type: "call", Op: step.Call.Op, Caller: callerName, Result: string(res.Data)})
		if step.Call.Expect != "" && string(res.Data) != step.Call.Expect {
			r.result.failf("step %d (call %s): expected %q, got %q", i, step.Call.Op, step.Call.Expect, res.Data)
		}
	}
}

// resolveCaller maps a symbolic caller name to a stable address. The
// name "owner" (and an empty name, via def) maps to the service owner.
func resolveCaller(name string, def opid.Address) opid.Address {
	switch name {
	case "":
		return def
	case "null":
		return opid.ZeroAddress
	default:
		return opid.DeriveAddress([]byte("caller/"+name), []byte("harness"))
	}
}

func resolveEntries(decls []EntryDecl, moduleAddrs map[string]opid.Address) ([]cut.Entry, error) {
	entries := make([]cut.Entry, 0, len(decls))
	for _, d := range decls {
		entry := cut.Entry{Action: cut.Action(d.Action)}
		if d.Module != "" {
			addr, ok := moduleAddrs[d.Module]
			if !ok {
				return nil, fmt.Errorf("unknown module %q", d.Module)
			}
			entry.Module = addr
		}
		for _, sig := range d.Operations {
			entry.Operations = append(entry.Operations, opid.DeriveOp(sig))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// errorCode maps an error to the symbolic code scenarios assert on.
func errorCode(err error) string {
	var ke *kernel.Error
	switch {
	case errors.As(err, &ke):
		return string(ke.Code)
	case cut.IsValidation(err):
		return "VALIDATION_FAILURE"
	case timelock.IsNotElapsed(err):
		return "TIMELOCK_NOT_ELAPSED"
	case errors.Is(err, timelock.ErrNoPendingCut):
		return "NO_PENDING_CUT"
	case errors.Is(err, timelock.ErrNotPending):
		return "CUT_NOT_PENDING"
	case errors.Is(err, module.ErrReentrancy):
		return "REENTRANCY"
	case errors.Is(err, ErrModuleFailure):
		return "MODULE_FAILURE"
	default:
		return "ERROR"
	}
}
