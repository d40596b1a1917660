// Package namespace implements the storage namespace manager: it reserves
// a deterministic, non-overlapping region of the key-value arena for each
// named subsystem (the core registry state, each module's extension state)
// and hands out scoped handles.
//
// A namespace's region is addressed by a 16-byte prefix derived from a
// cryptographic hash of its name, so two distinct names never overlap.
// Collision-freedom of the fixed names a deployment uses is a test-time
// property; the manager only fail-fasts if two names it has actually been
// asked for hash to the same prefix.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/store"
)

// ErrNotFound is returned by Handle.Get for an absent key.
var ErrNotFound = errors.New("namespace: key not found")

// IsNotFound reports whether err is (or wraps) an absent-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Manager reserves namespaces over a KV arena. Modules never receive the
// arena directly; they read and write through handles granted here.
type Manager struct {
	kv store.KV

	mu       sync.Mutex
	reserved map[[16]byte]string
}

// NewManager creates a manager over the given arena surface. The surface
// may be a *store.Store (autocommit) or a *store.Tx (the transactional
// variant used while a cut's initializer runs).
func NewManager(kv store.KV) *Manager {
	return &Manager{
		kv:       kv,
		reserved: make(map[[16]byte]string),
	}
}

// Namespace reserves (or re-opens) the named region and returns a handle
// scoped to it. Reserving the same name twice returns an equivalent
// handle. Two distinct names hashing to the same prefix is reported as an
// error rather than silently sharing state.
func (m *Manager) Namespace(name string) (*Handle, error) {
	prefix := opid.NamespacePrefix(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.reserved[prefix]; ok && prev != name {
		return nil, fmt.Errorf("namespace %q collides with %q", name, prev)
	}
	m.reserved[prefix] = name

	return &Handle{name: name, prefix: prefix, kv: m.kv}, nil
}

// InTx returns a manager over the same reserved names whose handles
// operate inside the given transaction. Used so a module initializer
// invoked during cut application participates in the cut's atomic
// boundary.
func (m *Manager) InTx(tx *store.Tx) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	reserved := make(map[[16]byte]string, len(m.reserved))
	for p, n := range m.reserved {
		reserved[p] = n
	}
	return &Manager{kv: tx, reserved: reserved}
}

// Handle is a view of one namespace's region. All operations are confined
// to the namespace's prefix; a handle cannot reach another namespace's
// keys.
type Handle struct {
	name   string
	prefix [16]byte
	kv     store.KV
}

// Name returns the namespace name the handle was reserved under.
func (h *Handle) Name() string {
	return h.name
}

// Get reads the value for key. Returns ErrNotFound if absent.
func (h *Handle) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := h.kv.GetKV(ctx, h.prefix[:], key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("namespace %q: %w", h.name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("namespace %q: get: %w", h.name, err)
	}
	return v, nil
}

// Put writes the value for key, overwriting any prior value.
func (h *Handle) Put(ctx context.Context, key, value []byte) error {
	if err := h.kv.PutKV(ctx, h.prefix[:], key, value); err != nil {
		return fmt.Errorf("namespace %q: put: %w", h.name, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (h *Handle) Delete(ctx context.Context, key []byte) error {
	if err := h.kv.DeleteKV(ctx, h.prefix[:], key); err != nil {
		return fmt.Errorf("namespace %q: delete: %w", h.name, err)
	}
	return nil
}

// List returns all pairs in the namespace in key order.
func (h *Handle) List(ctx context.Context) ([]store.Pair, error) {
	pairs, err := h.kv.ListKV(ctx, h.prefix[:])
	if err != nil {
		return nil, fmt.Errorf("namespace %q: list: %w", h.name, err)
	}
	return pairs, nil
}
