package store

import (
	"context"
	"fmt"
)

// RegistryRow is one persisted operation-ownership entry. Identifiers are
// stored in their hex renderings; the kernel parses them back on open.
type RegistryRow struct {
	OpID   string
	Module string
}

// LoadRegistry reads every registry row, in op_id order. Called once on
// open to rebuild the in-memory dual-index registry.
func (s *Store) LoadRegistry(ctx context.Context) ([]RegistryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id, module_addr FROM registry ORDER BY op_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	var out []RegistryRow
	for rows.Next() {
		var r RegistryRow
		if err := rows.Scan(&r.OpID, &r.Module); err != nil {
			return nil, fmt.Errorf("load registry: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return out, nil
}

// SetRegistryRow upserts one ownership entry within the transaction.
// Only the cut processor calls this, always inside the batch transaction.
func (t *Tx) SetRegistryRow(ctx context.Context, opID, module string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO registry (op_id, module_addr) VALUES (?, ?)
		ON CONFLICT(op_id) DO UPDATE SET module_addr = excluded.module_addr
	`, opID, module)
	if err != nil {
		return fmt.Errorf("set registry row: %w", err)
	}
	return nil
}

// DeleteRegistryRow removes one ownership entry within the transaction.
func (t *Tx) DeleteRegistryRow(ctx context.Context, opID string) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM registry WHERE op_id = ?
	`, opID)
	if err != nil {
		return fmt.Errorf("delete registry row: %w", err)
	}
	return nil
}
