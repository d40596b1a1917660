// Package manifest compiles CUE deployment manifests into typed specs:
// module declarations (code hash, capabilities, operation signatures) and
// cut templates (named batches of registry mutations over those modules).
//
// The manifest layer works in names and signatures; addresses are not
// assigned here. The factory resolves module names to addresses at
// deployment time.
package manifest

import (
	"fmt"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/opid"
)

// OpSpec is one declared operation: the human name, the canonical
// signature, and the id derived from it.
type OpSpec struct {
	Name      string
	Signature string
	ID        opid.OperationID
}

// ModuleSpec is one compiled module declaration.
type ModuleSpec struct {
	Name         string
	CodeHash     []byte
	Capabilities []opid.CapabilityID
	Operations   []OpSpec

	// Kind optionally names a built-in handler implementation for
	// deployments that select module code by manifest (the CLI's demo
	// modules). Empty when the embedder supplies handlers directly.
	Kind string

	// Namespace is the storage namespace the module works in. Defaults
	// to "mod/<name>".
	Namespace string
}

// OperationIDs returns the ids of all declared operations, in
// declaration order.
func (m *ModuleSpec) OperationIDs() []opid.OperationID {
	ids := make([]opid.OperationID, len(m.Operations))
	for i, op := range m.Operations {
		ids[i] = op.ID
	}
	return ids
}

// EntrySpec is one cut-template entry, referencing a module by manifest
// name. Remove entries leave ModuleName empty.
type EntrySpec struct {
	ModuleName string
	Action     cut.Action
	Signatures []string
}

// InitSpec is a template's optional initializer call.
type InitSpec struct {
	ModuleName string
	Payload    []byte
}

// TemplateSpec is one compiled cut template.
type TemplateSpec struct {
	Name        string
	Entries     []EntrySpec
	Initializer *InitSpec
}

// Manifest is a compiled manifest directory: module declarations and cut
// templates, both keyed by name.
type Manifest struct {
	Modules   map[string]*ModuleSpec
	Templates map[string]*TemplateSpec
}

// Module returns the named module declaration.
func (m *Manifest) Module(name string) (*ModuleSpec, error) {
	spec, ok := m.Modules[name]
	if !ok {
		return nil, fmt.Errorf("manifest: no module %q", name)
	}
	return spec, nil
}

// Template returns the named cut template.
func (m *Manifest) Template(name string) (*TemplateSpec, error) {
	spec, ok := m.Templates[name]
	if !ok {
		return nil, fmt.Errorf("manifest: no template %q", name)
	}
	return spec, nil
}

// Resolver maps a manifest module name to its deployed address.
type Resolver func(moduleName string) (opid.Address, error)

// Instantiate renders the template into a concrete batch using the
// resolver for module addresses. Remove entries resolve to the null
// address. The cut id is left empty; it is assigned at submission.
func (t *TemplateSpec) Instantiate(resolve Resolver) (cut.Cut, error) {
	c := cut.Cut{Entries: make([]cut.Entry, 0, len(t.Entries))}
	for _, e := range t.Entries {
		entry := cut.Entry{Action: e.Action}
		if e.Action != cut.Remove {
			addr, err := resolve(e.ModuleName)
			if err != nil {
				return cut.Cut{}, fmt.Errorf("template %q: %w", t.Name, err)
			}
			entry.Module = addr
		}
		for _, sig := range e.Signatures {
			entry.Operations = append(entry.Operations, opid.DeriveOp(sig))
		}
		c.Entries = append(c.Entries, entry)
	}
	if t.Initializer != nil {
		addr, err := resolve(t.Initializer.ModuleName)
		if err != nil {
			return cut.Cut{}, fmt.Errorf("template %q: initializer: %w", t.Name, err)
		}
		c.Initializer = &cut.InitCall{Target: addr, Payload: t.Initializer.Payload}
	}
	return c, nil
}
