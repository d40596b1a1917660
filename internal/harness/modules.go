package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/namespace"
	"github.com/tessera-dev/tessera/internal/opid"
)

// ErrModuleFailure is the error the "fail" handler kind returns.
var ErrModuleFailure = errors.New("module failure")

// KindHandler returns the built-in handler for a kind, working in the
// given namespace. Shared by scenario modules and the CLI's
// manifest-declared demo modules.
func KindHandler(kind, namespace string) (module.Handler, error) {
	return handlerFor(ModuleDecl{Kind: kind, Namespace: namespace})
}

// handlerFor builds the handler for a module declaration.
//
// Kinds:
//   - counter: maintains an integer under "count" in the declared
//     namespace. Every dispatch increments and returns it, except an op
//     whose signature starts with "get", which only reads. The
//     initializer seeds the count from its payload.
//   - echo: returns the call's args unchanged.
//   - fail: always returns ErrModuleFailure.
func handlerFor(decl ModuleDecl) (module.Handler, error) {
	switch decl.Kind {
	case "counter":
		if decl.Namespace == "" {
			return nil, fmt.Errorf("kind counter requires a namespace")
		}
		return counterHandler(decl.Namespace), nil
	case "echo":
		return module.HandlerFunc(func(ctx context.Context, call *module.Call) (*module.Result, error) {
			return &module.Result{Data: call.Args}, nil
		}), nil
	case "fail":
		return module.HandlerFunc(func(ctx context.Context, call *module.Call) (*module.Result, error) {
			return nil, ErrModuleFailure
		}), nil
	default:
		return nil, fmt.Errorf("unknown handler kind %q", decl.Kind)
	}
}

func counterHandler(nsName string) module.Handler {
	return module.HandlerFunc(func(ctx context.Context, call *module.Call) (*module.Result, error) {
		ns, err := call.NS.Namespace(nsName)
		if err != nil {
			return nil, err
		}

		// Initializer invocation: seed from the payload.
		if call.Op.IsZero() {
			seed := call.Args
			if len(seed) == 0 {
				seed = []byte("0")
			}
			if _, err := strconv.Atoi(string(seed)); err != nil {
				return nil, fmt.Errorf("counter seed: %w", err)
			}
			if err := ns.Put(ctx, []byte("count"), seed); err != nil {
				return nil, err
			}
			return &module.Result{}, nil
		}

		n := 0
		raw, err := ns.Get(ctx, []byte("count"))
		switch {
		case namespace.IsNotFound(err):
		case err != nil:
			return nil, err
		default:
			if n, err = strconv.Atoi(string(raw)); err != nil {
				return nil, err
			}
		}

		if !isGetOp(call.Op) {
			n++
			if err := ns.Put(ctx, []byte("count"), []byte(strconv.Itoa(n))); err != nil {
				return nil, err
			}
		}
		return &module.Result{Data: []byte(strconv.Itoa(n))}, nil
	})
}

// getSignatures lists the read-only signatures a counter recognizes.
// Derived ids are compared, not strings; the dispatcher never sees
// signatures.
var getSignatures = []string{"get()", "get(key)", "read()"}

func isGetOp(op opid.OperationID) bool {
	for _, sig := range getSignatures {
		if opid.DeriveOp(sig) == op {
			return true
		}
	}
	return false
}
