package manifest

import (
	"encoding/hex"
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/opid"
)

// CompileError reports a manifest compilation failure with the CUE
// source position when one is available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileModule parses one module declaration. The value is the module
// struct itself; its name is taken from the struct label:
//
//	module: counter: {
//		codeHash: "6d6f64..."
//		capabilities: ["counting"]
//		operation: increment: { signature: "increment()" }
//	}
func CompileModule(v cue.Value) (*ModuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ModuleSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		if spec.Kind, err = kindVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	spec.Namespace = "mod/" + spec.Name
	if nsVal := v.LookupPath(cue.ParsePath("namespace")); nsVal.Exists() {
		if spec.Namespace, err = nsVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	hashVal := v.LookupPath(cue.ParsePath("codeHash"))
	if !hashVal.Exists() {
		return nil, &CompileError{Field: "codeHash", Message: "codeHash is required", Pos: v.Pos()}
	}
	hashStr, err := hashVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.CodeHash, err = hex.DecodeString(hashStr)
	if err != nil {
		return nil, &CompileError{
			Field:   "codeHash",
			Message: fmt.Sprintf("not hex: %v", err),
			Pos:     hashVal.Pos(),
		}
	}

	capsVal := v.LookupPath(cue.ParsePath("capabilities"))
	if capsVal.Exists() {
		iter, err := capsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Capabilities = append(spec.Capabilities, opid.DeriveCapability(name))
		}
	}

	opsVal := v.LookupPath(cue.ParsePath("operation"))
	if opsVal.Exists() {
		iter, err := opsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		seen := make(map[string]string)
		for iter.Next() {
			opName := iter.Label()
			sigVal := iter.Value().LookupPath(cue.ParsePath("signature"))
			if !sigVal.Exists() {
				return nil, &CompileError{
					Field:   fmt.Sprintf("operation.%s.signature", opName),
					Message: "signature is required",
					Pos:     iter.Value().Pos(),
				}
			}
			sig, err := sigVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if prev, dup := seen[sig]; dup {
				return nil, &CompileError{
					Field:   fmt.Sprintf("operation.%s", opName),
					Message: fmt.Sprintf("signature %q already declared by operation %q", sig, prev),
					Pos:     sigVal.Pos(),
				}
			}
			seen[sig] = opName
			spec.Operations = append(spec.Operations, OpSpec{
				Name:      opName,
				Signature: sig,
				ID:        opid.DeriveOp(sig),
			})
		}
	}
	if len(spec.Operations) == 0 {
		return nil, &CompileError{Field: "operation", Message: "at least one operation is required", Pos: v.Pos()}
	}

	return spec, nil
}

// CompileTemplate parses one cut template:
//
//	template: upgrade: {
//		entries: [
//			{module: "counter_v2", action: "replace", operations: ["increment()"]},
//			{action: "remove", operations: ["relay(op)"]},
//		]
//		initializer: { target: "counter_v2", payload: "313030" }
//	}
//
// A signature may appear at most once across the whole template: a batch
// touching the same operation twice could not apply atomically with a
// well-defined result.
func CompileTemplate(v cue.Value) (*TemplateSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TemplateSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	entriesVal := v.LookupPath(cue.ParsePath("entries"))
	if !entriesVal.Exists() {
		return nil, &CompileError{Field: "entries", Message: "entries are required", Pos: v.Pos()}
	}
	iter, err := entriesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[string]bool)
	for iter.Next() {
		entryVal := iter.Value()
		entry, err := compileEntry(entryVal, seen)
		if err != nil {
			return nil, err
		}
		spec.Entries = append(spec.Entries, entry)
	}
	if len(spec.Entries) == 0 {
		return nil, &CompileError{Field: "entries", Message: "at least one entry is required", Pos: entriesVal.Pos()}
	}

	initVal := v.LookupPath(cue.ParsePath("initializer"))
	if initVal.Exists() {
		init, err := compileInit(initVal)
		if err != nil {
			return nil, err
		}
		spec.Initializer = init
	}

	return spec, nil
}

func compileEntry(v cue.Value, seen map[string]bool) (EntrySpec, error) {
	var entry EntrySpec

	actionVal := v.LookupPath(cue.ParsePath("action"))
	if !actionVal.Exists() {
		return entry, &CompileError{Field: "entries.action", Message: "action is required", Pos: v.Pos()}
	}
	actionStr, err := actionVal.String()
	if err != nil {
		return entry, formatCUEError(err)
	}
	switch cut.Action(actionStr) {
	case cut.Add, cut.Replace, cut.Remove:
		entry.Action = cut.Action(actionStr)
	default:
		return entry, &CompileError{
			Field:   "entries.action",
			Message: fmt.Sprintf("unknown action %q", actionStr),
			Pos:     actionVal.Pos(),
		}
	}

	moduleVal := v.LookupPath(cue.ParsePath("module"))
	if entry.Action == cut.Remove {
		if moduleVal.Exists() {
			return entry, &CompileError{
				Field:   "entries.module",
				Message: "remove entries must not name a module",
				Pos:     moduleVal.Pos(),
			}
		}
	} else {
		if !moduleVal.Exists() {
			return entry, &CompileError{Field: "entries.module", Message: "module is required", Pos: v.Pos()}
		}
		if entry.ModuleName, err = moduleVal.String(); err != nil {
			return entry, formatCUEError(err)
		}
	}

	opsVal := v.LookupPath(cue.ParsePath("operations"))
	if !opsVal.Exists() {
		return entry, &CompileError{Field: "entries.operations", Message: "operations are required", Pos: v.Pos()}
	}
	opIter, err := opsVal.List()
	if err != nil {
		return entry, formatCUEError(err)
	}
	for opIter.Next() {
		sig, err := opIter.Value().String()
		if err != nil {
			return entry, formatCUEError(err)
		}
		if seen[sig] {
			return entry, &CompileError{
				Field:   "entries.operations",
				Message: fmt.Sprintf("signature %q appears twice in template", sig),
				Pos:     opIter.Value().Pos(),
			}
		}
		seen[sig] = true
		entry.Signatures = append(entry.Signatures, sig)
	}
	if len(entry.Signatures) == 0 {
		return entry, &CompileError{Field: "entries.operations", Message: "at least one operation is required", Pos: opsVal.Pos()}
	}

	return entry, nil
}

func compileInit(v cue.Value) (*InitSpec, error) {
	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return nil, &CompileError{Field: "initializer.target", Message: "target is required", Pos: v.Pos()}
	}
	target, err := targetVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	init := &InitSpec{ModuleName: target}
	payloadVal := v.LookupPath(cue.ParsePath("payload"))
	if payloadVal.Exists() {
		payloadStr, err := payloadVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if init.Payload, err = hex.DecodeString(payloadStr); err != nil {
			return nil, &CompileError{
				Field:   "initializer.payload",
				Message: fmt.Sprintf("not hex: %v", err),
				Pos:     payloadVal.Pos(),
			}
		}
	}
	return init, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
