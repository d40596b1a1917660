// Package factory deploys composite services from manifest templates.
// Service and module addresses are derived deterministically from code
// hashes and a caller-chosen salt, so external collaborators can compute
// the address of a deployment before it exists.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tessera-dev/tessera/internal/kernel"
	"github.com/tessera-dev/tessera/internal/manifest"
	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// Template describes one deployable service: the compiled manifest, the
// name of the genesis cut template within it, and the handler code for
// each manifest module.
type Template struct {
	Manifest *manifest.Manifest
	Genesis  string
	Handlers map[string]module.Handler
}

// Deployment is one deployed service instance.
type Deployment struct {
	Template  string
	Address   opid.Address
	StorePath string
	Kernel    *kernel.Kernel

	// Modules maps manifest module names to their derived addresses.
	Modules map[string]opid.Address
}

// Factory holds registered templates and the services deployed from
// them. Safe for concurrent use.
type Factory struct {
	dir    string
	clock  timelock.Clock
	delay  time.Duration
	ids    func() kernel.CutIDGenerator
	logger *slog.Logger

	mu        sync.Mutex
	templates map[string]Template
	deployed  map[opid.Address]*Deployment
}

// Option configures a Factory.
type Option func(*Factory)

// WithClock substitutes the timelock clock for deployed services.
func WithClock(c timelock.Clock) Option {
	return func(f *Factory) { f.clock = c }
}

// WithDelay sets the timelock delay for deployed services.
func WithDelay(d time.Duration) Option {
	return func(f *Factory) { f.delay = d }
}

// WithIDs substitutes the cut id generator constructor, one generator
// per deployed service.
func WithIDs(gen func() kernel.CutIDGenerator) Option {
	return func(f *Factory) { f.ids = gen }
}

// WithLogger sets the logger passed to deployed services.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// New creates a factory whose service stores live under dir.
func New(dir string, opts ...Option) *Factory {
	f := &Factory{
		dir:       dir,
		templates: make(map[string]Template),
		deployed:  make(map[opid.Address]*Deployment),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a named template. Every manifest module must have
// handler code, and the genesis template must exist in the manifest.
func (f *Factory) Register(name string, t Template) error {
	if t.Manifest == nil {
		return fmt.Errorf("factory: template %q has no manifest", name)
	}
	if _, err := t.Manifest.Template(t.Genesis); err != nil {
		return fmt.Errorf("factory: template %q: %w", name, err)
	}
	for modName := range t.Manifest.Modules {
		if _, ok := t.Handlers[modName]; !ok {
			return fmt.Errorf("factory: template %q: no handler for module %q", name, modName)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.templates[name]; dup {
		return fmt.Errorf("factory: template %q already registered", name)
	}
	f.templates[name] = t
	return nil
}

// ModuleAddress predicts the address a manifest module will deploy at
// under the given salt. Pure function of the module's code hash and the
// salt; callable before Deploy.
func (f *Factory) ModuleAddress(template, moduleName string, salt []byte) (opid.Address, error) {
	f.mu.Lock()
	t, ok := f.templates[template]
	f.mu.Unlock()
	if !ok {
		return opid.ZeroAddress, fmt.Errorf("factory: no template %q", template)
	}
	spec, err := t.Manifest.Module(moduleName)
	if err != nil {
		return opid.ZeroAddress, err
	}
	return opid.DeriveAddress(spec.CodeHash, salt), nil
}

// ServiceAddress predicts the address of the service a template deploys
// under the given salt: the combined code hash of all manifest modules,
// in name order, salted.
func (f *Factory) ServiceAddress(template string, salt []byte) (opid.Address, error) {
	f.mu.Lock()
	t, ok := f.templates[template]
	f.mu.Unlock()
	if !ok {
		return opid.ZeroAddress, fmt.Errorf("factory: no template %q", template)
	}
	return serviceAddress(t, salt), nil
}

func serviceAddress(t Template, salt []byte) opid.Address {
	names := make([]string, 0, len(t.Manifest.Modules))
	for name := range t.Manifest.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var combined []byte
	for _, name := range names {
		combined = append(combined, t.Manifest.Modules[name].CodeHash...)
	}
	return opid.DeriveAddress(combined, salt)
}

// Deploy constructs a fresh service from the named template: module
// addresses derived from the salt, the genesis cut instantiated over
// them, and a new store under the factory directory. Deploying the same
// (template, salt) pair twice fails; the address is already taken.
func (f *Factory) Deploy(ctx context.Context, template string, salt []byte, owner opid.Address) (*Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.templates[template]
	if !ok {
		return nil, fmt.Errorf("factory: no template %q", template)
	}

	addr := serviceAddress(t, salt)
	if _, taken := f.deployed[addr]; taken {
		return nil, fmt.Errorf("factory: service %s already deployed (template %q)", addr, template)
	}

	binding := module.NewBinding()
	moduleAddrs := make(map[string]opid.Address, len(t.Manifest.Modules))
	for name, spec := range t.Manifest.Modules {
		modAddr := opid.DeriveAddress(spec.CodeHash, salt)
		moduleAddrs[name] = modAddr
		if err := binding.Bind(modAddr, module.Deployment{
			Handler:      t.Handlers[name],
			CodeHash:     spec.CodeHash,
			Capabilities: spec.Capabilities,
		}); err != nil {
			return nil, fmt.Errorf("factory: bind %q: %w", name, err)
		}
	}

	tmpl, err := t.Manifest.Template(t.Genesis)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	genesis, err := tmpl.Instantiate(func(name string) (opid.Address, error) {
		modAddr, ok := moduleAddrs[name]
		if !ok {
			return opid.ZeroAddress, fmt.Errorf("no module %q in template %q", name, template)
		}
		return modAddr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}

	cfg := kernel.Config{
		StorePath:   filepath.Join(f.dir, addr.String()+".db"),
		Owner:       owner,
		Binding:     binding,
		Genesis:     genesis.Entries,
		GenesisInit: genesis.Initializer,
		Clock:       f.clock,
		Delay:       f.delay,
		Logger:      f.logger,
	}
	if f.ids != nil {
		cfg.IDs = f.ids()
	}

	k, err := kernel.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("factory: deploy %q: %w", template, err)
	}

	d := &Deployment{
		Template:  template,
		Address:   addr,
		StorePath: cfg.StorePath,
		Kernel:    k,
		Modules:   moduleAddrs,
	}
	f.deployed[addr] = d
	return d, nil
}

// Deployed returns the deployment at addr, if this factory created it.
func (f *Factory) Deployed(addr opid.Address) (*Deployment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deployed[addr]
	return d, ok
}

// Close shuts down every service this factory deployed.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for addr, d := range f.deployed {
		if err := d.Kernel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.deployed, addr)
	}
	return firstErr
}
