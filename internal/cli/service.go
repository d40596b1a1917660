package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/harness"
	"github.com/tessera-dev/tessera/internal/kernel"
	"github.com/tessera-dev/tessera/internal/manifest"
	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// service bundles an opened kernel with the manifest it was bound from.
type service struct {
	k     *kernel.Kernel
	man   *manifest.Manifest
	addrs map[string]opid.Address
}

func (s *service) Close() error {
	return s.k.Close()
}

// moduleName reverses an address to its manifest name for display.
func (s *service) moduleName(addr opid.Address) string {
	for name, a := range s.addrs {
		if a == addr {
			return name
		}
	}
	return addr.String()
}

// resolve maps a manifest module name to its derived address.
func (s *service) resolve(name string) (opid.Address, error) {
	addr, ok := s.addrs[name]
	if !ok {
		return opid.ZeroAddress, fmt.Errorf("no module %q in manifest", name)
	}
	return addr, nil
}

// loadManifest loads and compiles the manifest directory.
func loadManifest(opts *RootOptions) (*manifest.Manifest, error) {
	man, err := manifest.Load(opts.Manifest)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading manifest", err)
	}
	return man, nil
}

// buildBinding binds every manifest module to its built-in handler kind
// at its salt-derived address.
func buildBinding(man *manifest.Manifest, salt string) (*module.Binding, map[string]opid.Address, error) {
	binding := module.NewBinding()
	addrs := make(map[string]opid.Address, len(man.Modules))
	for name, spec := range man.Modules {
		kind := spec.Kind
		if kind == "" {
			kind = "echo"
		}
		h, err := harness.KindHandler(kind, spec.Namespace)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("module %q", name), err)
		}
		addr := opid.DeriveAddress(spec.CodeHash, []byte(salt))
		addrs[name] = addr
		if err := binding.Bind(addr, module.Deployment{
			Handler:      h,
			CodeHash:     spec.CodeHash,
			Capabilities: spec.Capabilities,
		}); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("module %q", name), err)
		}
	}
	return binding, addrs, nil
}

// openService reattaches to an existing service database with bindings
// rebuilt from the manifest. The salt must match the one used at init.
func openService(ctx context.Context, opts *RootOptions) (*service, error) {
	if _, err := os.Stat(opts.DB); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("service database %s", opts.DB), err)
	}
	man, err := loadManifest(opts)
	if err != nil {
		return nil, err
	}
	binding, addrs, err := buildBinding(man, opts.Salt)
	if err != nil {
		return nil, err
	}

	k, err := kernel.Open(ctx, kernel.Config{
		StorePath: opts.DB,
		Binding:   binding,
		Logger:    cliLogger(opts),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening service", err)
	}
	return &service{k: k, man: man, addrs: addrs}, nil
}

// cliLogger routes structured logs to stderr in verbose mode and
// discards them otherwise.
func cliLogger(opts *RootOptions) *slog.Logger {
	if opts.Verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// formatter builds the output formatter for a command invocation.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// parseAddr accepts a hex address or, failing that, derives a stable
// address from the given name. Lets operators use readable identities
// ("alice") while scripts pass exact addresses.
func parseAddr(s string) (opid.Address, error) {
	if s == "" {
		return opid.ZeroAddress, fmt.Errorf("address is required")
	}
	if addr, err := opid.ParseAddress(s); err == nil {
		return addr, nil
	}
	return opid.DeriveAddress([]byte("caller/"+s), []byte("cli")), nil
}

// domainError renders a domain failure and returns the matching
// ExitError. Command errors (bad paths, broken manifests) never reach
// here; they carry ExitCommandError already.
func domainError(f *OutputFormatter, err error) error {
	code := "ERROR"
	var ke *kernel.Error
	switch {
	case errors.As(err, &ke):
		code = string(ke.Code)
	case cut.IsValidation(err):
		code = "VALIDATION_FAILURE"
	case timelock.IsNotElapsed(err):
		code = "TIMELOCK_NOT_ELAPSED"
	case errors.Is(err, timelock.ErrNoPendingCut):
		code = "NO_PENDING_CUT"
	case errors.Is(err, timelock.ErrNotPending):
		code = "CUT_NOT_PENDING"
	case errors.Is(err, module.ErrReentrancy):
		code = "REENTRANCY"
	}
	if ferr := f.Error(code, err.Error()); ferr != nil {
		return ferr
	}
	return NewExitError(ExitFailure, code)
}
