package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: the modules to deploy, the
// genesis composition, a sequence of steps driven against a fresh
// service, and assertions over the final composition.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Delay is the timelock delay as a Go duration string. Defaults to 1h.
	Delay string `yaml:"delay,omitempty"`

	// CutIDs are the fixed ids handed out to submitted cuts, in order.
	// The genesis cut always takes the id "genesis". Defaults to
	// cut-1..cut-16.
	CutIDs []string `yaml:"cut_ids,omitempty"`

	// Modules declares the deployable test modules.
	Modules []ModuleDecl `yaml:"modules"`

	// Genesis is the initial composition, applied at construction.
	Genesis []EntryDecl `yaml:"genesis"`

	// Steps is the main flow.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final composition.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ModuleDecl declares one test module. Kind selects a built-in handler.
type ModuleDecl struct {
	// Name is the symbolic name the scenario uses to reference the module.
	Name string `yaml:"name"`

	// Kind selects the handler behavior: "counter", "echo", or "fail".
	Kind string `yaml:"kind"`

	// Code seeds the module's code hash; two modules with distinct code
	// get distinct addresses.
	Code string `yaml:"code"`

	// Namespace is the storage namespace the handler works in. Required
	// for "counter"; ignored by the other kinds.
	Namespace string `yaml:"namespace,omitempty"`

	// Capabilities the module advertises.
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// EntryDecl is one registry mutation, in symbolic form.
type EntryDecl struct {
	// Module is the symbolic module name. Empty for remove entries.
	Module string `yaml:"module,omitempty"`

	// Action is add, replace, or remove.
	Action string `yaml:"action"`

	// Operations are the operation signatures.
	Operations []string `yaml:"operations"`
}

// InitDecl is a cut's optional initializer, in symbolic form.
type InitDecl struct {
	Target  string `yaml:"target"`
	Payload string `yaml:"payload,omitempty"`
}

// Step is one scenario action. Exactly one of the verb fields is set.
type Step struct {
	// Submit submits a cut.
	Submit *SubmitStep `yaml:"submit,omitempty"`

	// Advance moves the manual clock forward by a Go duration string.
	Advance string `yaml:"advance,omitempty"`

	// Execute applies the identified pending cut.
	Execute string `yaml:"execute,omitempty"`

	// Cancel withdraws the identified pending cut.
	Cancel string `yaml:"cancel,omitempty"`

	// Call dispatches one operation.
	Call *CallStep `yaml:"call,omitempty"`

	// ExpectError asserts the step fails with the given code
	// (e.g. TIMELOCK_NOT_ELAPSED, UNKNOWN_OPERATION, VALIDATION_FAILURE).
	// A step without ExpectError is expected to succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SubmitStep is a cut submission. Caller defaults to the owner.
type SubmitStep struct {
	Caller      string      `yaml:"caller,omitempty"`
	Entries     []EntryDecl `yaml:"entries"`
	Initializer *InitDecl   `yaml:"initializer,omitempty"`
}

// CallStep dispatches one operation and optionally checks the result.
type CallStep struct {
	Op     string `yaml:"op"`
	Caller string `yaml:"caller,omitempty"`
	Args   string `yaml:"args,omitempty"`

	// Expect is the expected result payload, compared as a string.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the final composition through the loupe.
type Assertion struct {
	// Type is one of module_of, operations_of, supports, owner,
	// pending_count.
	Type string `yaml:"type"`

	// Op is the operation signature (module_of).
	Op string `yaml:"op,omitempty"`

	// Module is the symbolic module name (module_of, operations_of).
	// module_of with an empty Module asserts the operation is unowned.
	Module string `yaml:"module,omitempty"`

	// Operations are the expected signatures, order-insensitive
	// (operations_of).
	Operations []string `yaml:"operations,omitempty"`

	// Capability names the probed capability (supports).
	Capability string `yaml:"capability,omitempty"`

	// Expected is the expected boolean outcome (supports). Defaults true.
	Expected *bool `yaml:"expected,omitempty"`

	// Owner is the expected owner's symbolic name, or "null" (owner).
	Owner string `yaml:"owner,omitempty"`

	// Count is the expected number of pending cuts (pending_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertModuleOf     = "module_of"
	AssertOperationsOf = "operations_of"
	AssertSupports     = "supports"
	AssertOwner        = "owner"
	AssertPendingCount = "pending_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural requirements before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Modules) == 0 {
		return fmt.Errorf("at least one module is required")
	}
	seen := make(map[string]bool)
	for _, m := range s.Modules {
		if m.Name == "" {
			return fmt.Errorf("module name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate module %q", m.Name)
		}
		seen[m.Name] = true
		if m.Code == "" {
			return fmt.Errorf("module %q: code is required", m.Name)
		}
		if _, err := handlerFor(m); err != nil {
			return fmt.Errorf("module %q: %w", m.Name, err)
		}
	}
	if s.Delay != "" {
		if _, err := time.ParseDuration(s.Delay); err != nil {
			return fmt.Errorf("delay: %w", err)
		}
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertModuleOf, AssertOperationsOf, AssertSupports, AssertOwner, AssertPendingCount:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

func (st *Step) validate() error {
	verbs := 0
	if st.Submit != nil {
		verbs++
	}
	if st.Advance != "" {
		verbs++
		if _, err := time.ParseDuration(st.Advance); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
	}
	if st.Execute != "" {
		verbs++
	}
	if st.Cancel != "" {
		verbs++
	}
	if st.Call != nil {
		verbs++
		if st.Call.Op == "" {
			return fmt.Errorf("call: op is required")
		}
	}
	if verbs != 1 {
		return fmt.Errorf("exactly one of submit/advance/execute/cancel/call is required")
	}
	return nil
}
