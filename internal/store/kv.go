package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by GetKV when no row exists for (ns, k).
var ErrKeyNotFound = errors.New("key not found")

// Pair is one key-value row within a namespace.
type Pair struct {
	Key   []byte
	Value []byte
}

// KV is the arena surface shared by Store (autocommit) and Tx
// (transactional). Namespace handles are built over this interface so a
// module initializer running inside a cut's transaction writes through
// the same code path as a normal dispatch.
type KV interface {
	GetKV(ctx context.Context, ns, k []byte) ([]byte, error)
	PutKV(ctx context.Context, ns, k, v []byte) error
	DeleteKV(ctx context.Context, ns, k []byte) error
	ListKV(ctx context.Context, ns []byte) ([]Pair, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getKV(ctx context.Context, q querier, ns, k []byte) ([]byte, error) {
	var v []byte
	err := q.QueryRowContext(ctx, `
		SELECT v FROM kv WHERE ns = ? AND k = ?
	`, ns, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get kv: %w", err)
	}
	return v, nil
}

func putKV(ctx context.Context, q querier, ns, k, v []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv (ns, k, v) VALUES (?, ?, ?)
		ON CONFLICT(ns, k) DO UPDATE SET v = excluded.v
	`, ns, k, v)
	if err != nil {
		return fmt.Errorf("put kv: %w", err)
	}
	return nil
}

func deleteKV(ctx context.Context, q querier, ns, k []byte) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM kv WHERE ns = ? AND k = ?
	`, ns, k)
	if err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

func listKV(ctx context.Context, q querier, ns []byte) ([]Pair, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT k, v FROM kv WHERE ns = ? ORDER BY k
	`, ns)
	if err != nil {
		return nil, fmt.Errorf("list kv: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("list kv: scan: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list kv: %w", err)
	}
	return pairs, nil
}

// GetKV reads the value for (ns, k). Returns ErrKeyNotFound if absent.
func (s *Store) GetKV(ctx context.Context, ns, k []byte) ([]byte, error) {
	return getKV(ctx, s.db, ns, k)
}

// PutKV writes the value for (ns, k), overwriting any prior value.
func (s *Store) PutKV(ctx context.Context, ns, k, v []byte) error {
	return putKV(ctx, s.db, ns, k, v)
}

// DeleteKV removes the row for (ns, k). Deleting an absent key is a no-op.
func (s *Store) DeleteKV(ctx context.Context, ns, k []byte) error {
	return deleteKV(ctx, s.db, ns, k)
}

// ListKV returns all pairs under ns in key order.
func (s *Store) ListKV(ctx context.Context, ns []byte) ([]Pair, error) {
	return listKV(ctx, s.db, ns)
}

// GetKV reads the value for (ns, k) within the transaction.
func (t *Tx) GetKV(ctx context.Context, ns, k []byte) ([]byte, error) {
	return getKV(ctx, t.tx, ns, k)
}

// PutKV writes the value for (ns, k) within the transaction.
func (t *Tx) PutKV(ctx context.Context, ns, k, v []byte) error {
	return putKV(ctx, t.tx, ns, k, v)
}

// DeleteKV removes the row for (ns, k) within the transaction.
func (t *Tx) DeleteKV(ctx context.Context, ns, k []byte) error {
	return deleteKV(ctx, t.tx, ns, k)
}

// ListKV returns all pairs under ns within the transaction.
func (t *Tx) ListKV(ctx context.Context, ns []byte) ([]Pair, error) {
	return listKV(ctx, t.tx, ns)
}
