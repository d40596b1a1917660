package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-dev/tessera/internal/opid"
)

var (
	opA = opid.DeriveOp("alpha()")
	opB = opid.DeriveOp("beta(u64)")
	opC = opid.DeriveOp("gamma(address)")

	mod1 = opid.DeriveAddress([]byte("module-one"), []byte("s"))
	mod2 = opid.DeriveAddress([]byte("module-two"), []byte("s"))
)

func TestResolveEmpty(t *testing.T) {
	r := New()

	_, ok := r.Resolve(opA)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegisterResolve(t *testing.T) {
	r := New()
	r.Register(opA, mod1)

	addr, ok := r.Resolve(opA)
	require.True(t, ok)
	assert.Equal(t, mod1, addr)
}

func TestBidirectionalConsistency(t *testing.T) {
	r := New()
	r.Register(opA, mod1)
	r.Register(opB, mod1)
	r.Register(opC, mod2)

	// Every registered operation resolves, and the owning module's
	// reverse entry includes it.
	for op, want := range r.Snapshot() {
		addr, ok := r.Resolve(op)
		require.True(t, ok)
		assert.Equal(t, want, addr)
		assert.Contains(t, r.OperationsOf(addr), op)
	}

	assert.Len(t, r.Modules(), 2)
	assert.Len(t, r.OperationsOf(mod1), 2)
	assert.Len(t, r.OperationsOf(mod2), 1)
}

func TestRegisterReplacesOwner(t *testing.T) {
	r := New()
	r.Register(opA, mod1)
	r.Register(opA, mod2)

	addr, ok := r.Resolve(opA)
	require.True(t, ok)
	assert.Equal(t, mod2, addr)

	// mod1 lost its only operation and must drop out of both indices.
	assert.Empty(t, r.OperationsOf(mod1))
	assert.NotContains(t, r.Modules(), mod1)
}

func TestUnregisterDropsEmptyModule(t *testing.T) {
	r := New()
	r.Register(opA, mod1)
	r.Register(opB, mod1)

	r.Unregister(opA)
	assert.Equal(t, []opid.OperationID{}, r.OperationsOf(mod1)[:0])
	assert.Len(t, r.OperationsOf(mod1), 1)

	r.Unregister(opB)
	_, ok := r.Resolve(opB)
	assert.False(t, ok)
	assert.Empty(t, r.OperationsOf(mod1))
	assert.Empty(t, r.Modules())
}

func TestCloneIsIndependent(t *testing.T) {
	r := New()
	r.Register(opA, mod1)

	c := r.Clone()
	c.Register(opB, mod2)
	c.Unregister(opA)

	// Original unchanged.
	_, ok := r.Resolve(opA)
	assert.True(t, ok)
	_, ok = r.Resolve(opB)
	assert.False(t, ok)

	// Clone mutated.
	_, ok = c.Resolve(opA)
	assert.False(t, ok)
	addr, ok := c.Resolve(opB)
	require.True(t, ok)
	assert.Equal(t, mod2, addr)
}

func TestSnapshotEquality(t *testing.T) {
	r := New()
	r.Register(opA, mod1)
	r.Register(opB, mod2)

	before := r.Snapshot()
	clone := r.Clone()
	assert.Equal(t, before, clone.Snapshot())
}

func TestModulesSorted(t *testing.T) {
	r := New()
	r.Register(opA, mod1)
	r.Register(opB, mod2)

	mods := r.Modules()
	require.Len(t, mods, 2)
	assert.Less(t, mods[0].String(), mods[1].String())
}
