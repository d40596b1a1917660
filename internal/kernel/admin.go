package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/tessera-dev/tessera/internal/cut"
	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/store"
	"github.com/tessera-dev/tessera/internal/timelock"
)

// requireOwner gates administrative operations. After renouncement the
// owner is the null sentinel and nothing can pass this check again.
func (k *Kernel) requireOwner(caller opid.Address) error {
	if k.owner.IsZero() || caller.IsZero() || caller != k.owner {
		return errUnauthorized(caller)
	}
	return nil
}

// SubmitCut validates and records an upgrade batch, starting its timelock
// window. Validation runs again at execution time against the state the
// cut will actually apply to; the submission-time check fails fast on
// batches that could never apply.
func (k *Kernel) SubmitCut(ctx context.Context, caller opid.Address, entries []cut.Entry, init *cut.InitCall) (*timelock.PendingCut, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return nil, err
	}

	c := cut.Cut{ID: k.ids.Generate(), Entries: entries, Initializer: init}
	if err := cut.Validate(k.reg, c, k.binding.Deployed); err != nil {
		return nil, err
	}

	payload, err := c.MarshalPayload()
	if err != nil {
		return nil, err
	}

	p := k.guard.Submit(c)
	row := store.CutRow{
		ID:          c.ID,
		Payload:     payload,
		SubmittedAt: p.SubmittedAt.Unix(),
		ReadyAt:     p.ReadyAt.Unix(),
	}
	if err := k.store.InsertCut(ctx, row); err != nil {
		k.guard.Evict(c.ID)
		return nil, fmt.Errorf("submit cut: %w", err)
	}

	k.logger.Info("cut submitted",
		"cut_id", c.ID,
		"entries", len(entries),
		"ready_at", p.ReadyAt.UTC().Format(time.RFC3339),
	)
	return p, nil
}

// ExecuteCut applies a previously submitted cut once its delay window has
// closed. The whole batch plus the optional initializer lands in one
// store transaction; on any failure the registry is byte-for-byte
// unchanged.
func (k *Kernel) ExecuteCut(ctx context.Context, caller opid.Address, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return err
	}
	if err := k.guard.Ready(id); err != nil {
		return err
	}

	p, err := k.guard.Get(id)
	if err != nil {
		return err
	}

	staged, err := k.proc.Apply(ctx, k.reg, p.Cut, cut.ApplyOptions{
		RecordID:  id,
		AppliedAt: k.clock.Now().Unix(),
	})
	if err != nil {
		return err
	}

	// Swap only after the transaction committed.
	k.reg = staged
	return k.guard.MarkApplied(id)
}

// CancelCut withdraws a pending cut. The record is kept (status
// "cancelled") for audit; the service reverts to "no pending cut" state.
func (k *Kernel) CancelCut(ctx context.Context, caller opid.Address, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return err
	}
	if err := k.guard.Cancel(id); err != nil {
		return err
	}
	if err := k.store.CancelCut(ctx, id); err != nil {
		return fmt.Errorf("cancel cut: %w", err)
	}

	k.logger.Info("cut cancelled", "cut_id", id)
	return nil
}

// SetDelay reconfigures the timelock for future submissions.
func (k *Kernel) SetDelay(ctx context.Context, caller opid.Address, d time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("set delay: negative duration %s", d)
	}
	k.guard.SetDelay(d)
	if err := k.persistDelay(ctx); err != nil {
		return err
	}

	k.logger.Info("timelock reconfigured", "delay", d.String())
	return nil
}

// TransferOwnership starts a two-step transfer: the new owner must call
// AcceptOwnership before any authority changes hands.
func (k *Kernel) TransferOwnership(ctx context.Context, caller, newOwner opid.Address) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return &Error{
			Code:    CodeNullOwner,
			Message: "ownership cannot be transferred to the null sentinel; use RenounceOwnership",
		}
	}

	k.pendingOwner = newOwner
	return k.persistOwner(ctx)
}

// AcceptOwnership completes a two-step transfer. Only the pending owner
// may call it.
func (k *Kernel) AcceptOwnership(ctx context.Context, caller opid.Address) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.pendingOwner.IsZero() || caller != k.pendingOwner {
		return &Error{
			Code:    CodeNoPendingOwner,
			Message: "caller is not the pending owner",
			Module:  caller,
		}
	}

	k.owner = k.pendingOwner
	k.pendingOwner = opid.ZeroAddress
	if err := k.persistOwner(ctx); err != nil {
		return err
	}

	k.logger.Info("ownership transferred", "owner", k.owner.String())
	return nil
}

// RenounceOwnership irreversibly disowns the service. The owner becomes
// the null sentinel and every subsequent cut submission fails with
// UNAUTHORIZED, permanently.
func (k *Kernel) RenounceOwnership(ctx context.Context, caller opid.Address) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.requireOwner(caller); err != nil {
		return err
	}

	k.owner = opid.ZeroAddress
	k.pendingOwner = opid.ZeroAddress
	if err := k.persistOwner(ctx); err != nil {
		return err
	}

	k.logger.Info("ownership renounced")
	return nil
}

func (k *Kernel) persistOwner(ctx context.Context) error {
	row := store.OwnerRow{Addr: k.owner.String()}
	if !k.pendingOwner.IsZero() {
		row.PendingAddr = k.pendingOwner.String()
	}
	if err := k.store.SetOwner(ctx, row); err != nil {
		return fmt.Errorf("persist owner: %w", err)
	}
	return nil
}
