package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoOwner is returned by LoadOwner before genesis has run.
var ErrNoOwner = errors.New("no owner record")

// OwnerRow is the single persisted ownership record. Addresses are stored
// in their hex renderings; PendingAddr is empty when no two-step transfer
// is in flight.
type OwnerRow struct {
	Addr        string
	PendingAddr string
}

// LoadOwner reads the ownership record. Returns ErrNoOwner if genesis has
// not written one yet.
func (s *Store) LoadOwner(ctx context.Context) (OwnerRow, error) {
	var row OwnerRow
	err := s.db.QueryRowContext(ctx, `
		SELECT addr, pending_addr FROM owner WHERE id = 1
	`).Scan(&row.Addr, &row.PendingAddr)
	if errors.Is(err, sql.ErrNoRows) {
		return OwnerRow{}, ErrNoOwner
	}
	if err != nil {
		return OwnerRow{}, fmt.Errorf("load owner: %w", err)
	}
	return row, nil
}

// SetOwner upserts the ownership record.
func (s *Store) SetOwner(ctx context.Context, row OwnerRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owner (id, addr, pending_addr) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET addr = excluded.addr, pending_addr = excluded.pending_addr
	`, row.Addr, row.PendingAddr)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

// SetOwner upserts the ownership record within a transaction. Genesis
// writes the initial owner in the same transaction as the genesis cut.
func (t *Tx) SetOwner(ctx context.Context, row OwnerRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO owner (id, addr, pending_addr) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET addr = excluded.addr, pending_addr = excluded.pending_addr
	`, row.Addr, row.PendingAddr)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}
