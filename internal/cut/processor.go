package cut

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/registry"
	"github.com/tessera-dev/tessera/internal/store"
)

// Initializer invokes a module's one-shot initializer inside the batch
// transaction. Returning an error aborts the whole cut.
type Initializer func(ctx context.Context, tx *store.Tx, init InitCall) error

// Processor validates and atomically applies cuts. The live registry is
// never mutated in place: a whole batch is staged on a clone, persisted
// in one transaction, and only then does the caller swap the clone in.
type Processor struct {
	store      *store.Store
	deployed   func(opid.Address) bool
	initialize Initializer
	logger     *slog.Logger
}

// NewProcessor creates a processor. initialize may be nil if the service
// never carries initializers (tests).
func NewProcessor(s *store.Store, deployed func(opid.Address) bool, initialize Initializer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:      s,
		deployed:   deployed,
		initialize: initialize,
		logger:     logger,
	}
}

// ApplyOptions adjust one application.
type ApplyOptions struct {
	// RecordID names a pending row in the cuts table to flip to
	// "applied" inside the same transaction. Empty for the genesis cut,
	// which has no pending row.
	RecordID string

	// AppliedAt is the Unix-seconds timestamp written to the change
	// journal.
	AppliedAt int64

	// ExtraTx, if set, runs inside the batch transaction after the
	// registry mutations. Genesis uses it to write the initial owner
	// record atomically with the genesis cut.
	ExtraTx func(ctx context.Context, tx *store.Tx) error
}

// Apply validates the cut against live, applies every entry plus the
// optional initializer inside one store transaction, and returns the
// staged registry for the caller to swap in. On any error the store and
// the live registry are untouched.
func (p *Processor) Apply(ctx context.Context, live *registry.Registry, c Cut, opts ApplyOptions) (*registry.Registry, error) {
	if err := Validate(live, c, p.deployed); err != nil {
		return nil, err
	}

	staged := live.Clone()
	for _, entry := range c.Entries {
		for _, op := range entry.Operations {
			switch entry.Action {
			case Add, Replace:
				staged.Register(op, entry.Module)
			case Remove:
				staged.Unregister(op)
			}
		}
	}

	record, err := c.ChangeRecord()
	if err != nil {
		return nil, err
	}

	err = p.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, entry := range c.Entries {
			for _, op := range entry.Operations {
				switch entry.Action {
				case Add, Replace:
					if err := tx.SetRegistryRow(ctx, op.String(), entry.Module.String()); err != nil {
						return err
					}
				case Remove:
					if err := tx.DeleteRegistryRow(ctx, op.String()); err != nil {
						return err
					}
				}
			}
		}

		if opts.RecordID != "" {
			if err := tx.MarkCutApplied(ctx, opts.RecordID); err != nil {
				return err
			}
		}

		if err := tx.AppendCutLog(ctx, c.ID, opts.AppliedAt, record); err != nil {
			return err
		}

		if opts.ExtraTx != nil {
			if err := opts.ExtraTx(ctx, tx); err != nil {
				return err
			}
		}

		if c.Initializer != nil {
			if p.initialize == nil {
				return fmt.Errorf("cut %s: initializer present but no initializer hook configured", c.ID)
			}
			if err := p.initialize(ctx, tx, *c.Initializer); err != nil {
				return fmt.Errorf("cut %s: initializer: %w", c.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("cut applied",
		"cut_id", c.ID,
		"entries", len(c.Entries),
		"operations", countOps(c),
		"registry_size", staged.Len(),
	)

	return staged, nil
}

func countOps(c Cut) int {
	n := 0
	for _, e := range c.Entries {
		n += len(e.Operations)
	}
	return n
}
