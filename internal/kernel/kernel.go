// Package kernel assembles the composite service: the dispatcher that
// forwards calls to the owning module, the owner-gated upgrade surface,
// and the read-only introspection surface.
//
// Modules contribute code, never state: every module executes against the
// shared storage arena through namespace handles, and the operation
// registry is mutated only through validated, timelocked cuts.
//
// Thread-safety model: top-level calls and administrative operations are
// serialized by a single kernel mutex. One call fully completes, including
// all nested forwards, before the next begins; there is no partial
// interleaving of two top-level calls' storage writes.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/module"
	"github.com/tessera-dev/tessera/internal/namespace"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/registry"
	"github.com/tessera-dev/tessera/internal/store"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// Core namespace names. Fixed at compile time; collision-freedom is
// asserted by tests.
const (
	nsConfig = "core/config"
)

const keyTimelockDelay = "timelock_delay_seconds"

// Config parameterizes genesis construction of a new composite service.
type Config struct {
	// StorePath is the SQLite database path. Ignored if Store is set.
	StorePath string

	// Store is an optional pre-opened store (tests, factory).
	Store *store.Store

	// Owner is the initial owner. Must be non-null.
	Owner opid.Address

	// Binding maps module addresses to deployed code.
	Binding *module.Binding

	// Genesis is the initial cut batch, applied during construction by
	// the constructing authority, exempt from the timelock.
	Genesis []cut.Entry

	// GenesisInit is the optional one-shot initializer invoked inside
	// the genesis transaction.
	GenesisInit *cut.InitCall

	// Clock drives the timelock. Defaults to timelock.WallClock.
	Clock timelock.Clock

	// Delay is the upgrade timelock duration. Defaults to
	// timelock.DefaultDelay.
	Delay time.Duration

	// IDs generates cut ids. Defaults to UUIDv7Generator.
	IDs CutIDGenerator

	// Logger receives structured change records. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Kernel is one composite service instance.
type Kernel struct {
	mu sync.Mutex

	store   *store.Store
	reg     *registry.Registry
	ns      *namespace.Manager
	binding *module.Binding
	guard   *timelock.Guard
	proc    *cut.Processor
	clock   timelock.Clock
	ids     CutIDGenerator
	logger  *slog.Logger

	owner        opid.Address
	pendingOwner opid.Address

	ownsStore bool
}

// New constructs a composite service at genesis: it opens the store,
// applies the initial cut (no timelock), invokes the optional initializer
// inside the same transaction, and writes the initial owner record and
// timelock delay atomically with all of it.
func New(ctx context.Context, cfg Config) (*Kernel, error) {
	if cfg.Owner.IsZero() {
		return nil, fmt.Errorf("kernel: genesis owner must be non-null")
	}
	if cfg.Binding == nil {
		cfg.Binding = module.NewBinding()
	}

	k, err := assemble(cfg)
	if err != nil {
		return nil, err
	}
	// The owner must be in place before the genesis cut runs: its
	// initializer executes with the owner as caller.
	k.owner = cfg.Owner

	genesis := cut.Cut{
		ID:          k.ids.Generate(),
		Entries:     cfg.Genesis,
		Initializer: cfg.GenesisInit,
	}

	ownerRow := store.OwnerRow{Addr: cfg.Owner.String()}
	if len(genesis.Entries) > 0 {
		staged, err := k.proc.Apply(ctx, k.reg, genesis, cut.ApplyOptions{
			AppliedAt: k.clock.Now().Unix(),
			ExtraTx: func(ctx context.Context, tx *store.Tx) error {
				if err := tx.SetOwner(ctx, ownerRow); err != nil {
					return err
				}
				return k.writeDelay(ctx, k.ns.InTx(tx))
			},
		})
		if err != nil {
			k.closeIfOwned()
			return nil, fmt.Errorf("kernel: genesis cut: %w", err)
		}
		k.reg = staged
	} else {
		err := k.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.SetOwner(ctx, ownerRow); err != nil {
				return err
			}
			return k.writeDelay(ctx, k.ns.InTx(tx))
		})
		if err != nil {
			k.closeIfOwned()
			return nil, fmt.Errorf("kernel: genesis owner: %w", err)
		}
	}

	k.logger.Info("service constructed",
		"owner", k.owner.String(),
		"operations", k.reg.Len(),
		"modules", len(k.reg.Modules()),
		"timelock", k.guard.Delay().String(),
	)
	return k, nil
}

// Open reattaches to an existing service database: the registry, owner
// record, pending cuts, and configured timelock delay are all restored.
func Open(ctx context.Context, cfg Config) (*Kernel, error) {
	if cfg.Binding == nil {
		cfg.Binding = module.NewBinding()
	}

	k, err := assemble(cfg)
	if err != nil {
		return nil, err
	}

	ownerRow, err := k.store.LoadOwner(ctx)
	if err != nil {
		k.closeIfOwned()
		return nil, fmt.Errorf("kernel: open: %w", err)
	}
	if k.owner, err = parseOwnerAddr(ownerRow.Addr); err != nil {
		k.closeIfOwned()
		return nil, err
	}
	if ownerRow.PendingAddr != "" {
		if k.pendingOwner, err = opid.ParseAddress(ownerRow.PendingAddr); err != nil {
			k.closeIfOwned()
			return nil, fmt.Errorf("kernel: open: pending owner: %w", err)
		}
	}

	rows, err := k.store.LoadRegistry(ctx)
	if err != nil {
		k.closeIfOwned()
		return nil, fmt.Errorf("kernel: open: %w", err)
	}
	for _, row := range rows {
		op, err := opid.ParseOp(row.OpID)
		if err != nil {
			k.closeIfOwned()
			return nil, fmt.Errorf("kernel: open: registry row: %w", err)
		}
		addr, err := opid.ParseAddress(row.Module)
		if err != nil {
			k.closeIfOwned()
			return nil, fmt.Errorf("kernel: open: registry row: %w", err)
		}
		k.reg.Register(op, addr)
	}

	if err := k.restoreDelay(ctx); err != nil {
		k.closeIfOwned()
		return nil, err
	}
	if err := k.restorePending(ctx); err != nil {
		k.closeIfOwned()
		return nil, err
	}

	k.logger.Info("service reopened",
		"owner", k.owner.String(),
		"operations", k.reg.Len(),
		"pending_cuts", len(k.guard.Pending()),
	)
	return k, nil
}

// assemble wires the kernel's components without touching service state.
func assemble(cfg Config) (*Kernel, error) {
	if cfg.Clock == nil {
		cfg.Clock = timelock.WallClock{}
	}
	if cfg.Delay == 0 {
		cfg.Delay = timelock.DefaultDelay
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := cfg.Store
	ownsStore := false
	if s == nil {
		if cfg.StorePath == "" {
			return nil, fmt.Errorf("kernel: no store and no store path")
		}
		var err error
		s, err = store.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("kernel: %w", err)
		}
		ownsStore = true
	}

	k := &Kernel{
		store:     s,
		reg:       registry.New(),
		ns:        namespace.NewManager(s),
		binding:   cfg.Binding,
		guard:     timelock.NewGuard(cfg.Clock, cfg.Delay),
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		logger:    cfg.Logger,
		ownsStore: ownsStore,
	}
	k.proc = cut.NewProcessor(s, k.binding.Deployed, k.runInitializer, cfg.Logger)
	return k, nil
}

// Close releases the underlying store if the kernel opened it.
func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closeIfOwned()
}

func (k *Kernel) closeIfOwned() error {
	if !k.ownsStore {
		return nil
	}
	return k.store.Close()
}

// runInitializer invokes a module's one-shot initializer inside the cut
// transaction. The initializer executes with the owner as caller, a
// transaction-scoped namespace manager, and no nested forward: re-entry
// into the in-flight mutation is not permitted.
func (k *Kernel) runInitializer(ctx context.Context, tx *store.Tx, ic cut.InitCall) error {
	h, ok := k.binding.Handler(ic.Target)
	if !ok {
		return &Error{
			Code:    CodeModuleNotBound,
			Message: "initializer target has no deployed code",
			Module:  ic.Target,
		}
	}
	call := &module.Call{
		Caller: k.owner,
		Args:   ic.Payload,
		NS:     k.ns.InTx(tx),
		Locks:  module.NewReentrancyGuard(),
	}
	if _, err := h.Invoke(ctx, call); err != nil {
		return err
	}
	return nil
}

// persistDelay writes the configured delay to the core config namespace.
func (k *Kernel) persistDelay(ctx context.Context) error {
	return k.writeDelay(ctx, k.ns)
}

// writeDelay writes the delay through the given namespace manager, which
// may be transaction-scoped so genesis persists it atomically with the
// rest of construction.
func (k *Kernel) writeDelay(ctx context.Context, ns *namespace.Manager) error {
	cfgNS, err := ns.Namespace(nsConfig)
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	seconds := strconv.FormatInt(int64(k.guard.Delay()/time.Second), 10)
	if err := cfgNS.Put(ctx, []byte(keyTimelockDelay), []byte(seconds)); err != nil {
		return fmt.Errorf("kernel: persist delay: %w", err)
	}
	return nil
}

// restoreDelay loads the persisted delay, keeping the configured default
// when none was ever written.
func (k *Kernel) restoreDelay(ctx context.Context) error {
	cfgNS, err := k.ns.Namespace(nsConfig)
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	raw, err := cfgNS.Get(ctx, []byte(keyTimelockDelay))
	if err != nil {
		if namespace.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("kernel: restore delay: %w", err)
	}
	seconds, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("kernel: restore delay: %w", err)
	}
	k.guard.SetDelay(time.Duration(seconds) * time.Second)
	return nil
}

// restorePending reloads submitted cuts into the timelock guard.
func (k *Kernel) restorePending(ctx context.Context) error {
	rows, err := k.store.ListCuts(ctx, store.CutStatusSubmitted)
	if err != nil {
		return fmt.Errorf("kernel: restore pending: %w", err)
	}
	for _, row := range rows {
		c, err := cut.UnmarshalPayload(row.Payload)
		if err != nil {
			return fmt.Errorf("kernel: restore pending cut %s: %w", row.ID, err)
		}
		k.guard.Restore(timelock.PendingCut{
			ID:          row.ID,
			Cut:         c,
			SubmittedAt: time.Unix(row.SubmittedAt, 0),
			ReadyAt:     time.Unix(row.ReadyAt, 0),
			Status:      timelock.StatusSubmitted,
		})
	}
	return nil
}

func parseOwnerAddr(s string) (opid.Address, error) {
	// A renounced service persists the null sentinel.
	addr, err := opid.ParseAddress(s)
	if err != nil {
		return opid.ZeroAddress, fmt.Errorf("kernel: owner record: %w", err)
	}
	return addr, nil
}
