package cut

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/registry"
	"github.com/tessera-dev/tessera/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyAddPersistsAndStages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := NewProcessor(s, allDeployed, nil, nil)

	live := registry.New()
	c := Cut{ID: "cut-1", Entries: []Entry{
		{Module: mod1, Action: Add, Operations: []opid.OperationID{opA, opB}},
	}}

	staged, err := p.Apply(ctx, live, c, ApplyOptions{AppliedAt: 100})
	require.NoError(t, err)

	// Live registry untouched until the caller swaps.
	assert.Equal(t, 0, live.Len())
	assert.Equal(t, 2, staged.Len())

	addr, ok := staged.Resolve(opA)
	require.True(t, ok)
	assert.Equal(t, mod1, addr)

	// Rows persisted.
	rows, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// One change record for the whole batch.
	log, err := s.ListCutLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "cut-1", log[0].CutID)
	assert.Contains(t, log[0].Payload, mod1.String())
}

func TestApplyInvalidEntryLeavesEverythingUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := NewProcessor(s, allDeployed, nil, nil)

	live := registry.New()
	live.Register(opA, mod1)
	before := live.Snapshot()

	// One valid entry plus one invalid: the valid one must not apply.
	c := Cut{ID: "cut-bad", Entries: []Entry{
		{Module: mod2, Action: Add, Operations: []opid.OperationID{opB}},
		{Module: mod2, Action: Add, Operations: []opid.OperationID{opA}}, // opA is owned
	}}

	_, err := p.Apply(ctx, live, c, ApplyOptions{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.Equal(t, before, live.Snapshot(), "registry must be unchanged after a rejected cut")

	rows, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows, "no rows may be persisted for a rejected cut")

	log, err := s.ListCutLog(ctx)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestApplyInitializerRunsInsideTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	initialized := false
	init := func(ctx context.Context, tx *store.Tx, ic InitCall) error {
		initialized = true
		assert.Equal(t, mod1, ic.Target)
		return tx.PutKV(ctx, []byte("init-ns"), []byte("seeded"), ic.Payload)
	}
	p := NewProcessor(s, allDeployed, init, nil)

	c := Cut{
		ID: "cut-init",
		Entries: []Entry{
			{Module: mod1, Action: Add, Operations: []opid.OperationID{opA}},
		},
		Initializer: &InitCall{Target: mod1, Payload: []byte("hello")},
	}

	_, err := p.Apply(ctx, registry.New(), c, ApplyOptions{})
	require.NoError(t, err)
	assert.True(t, initialized)

	v, err := s.GetKV(ctx, []byte("init-ns"), []byte("seeded"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestApplyInitializerFailureRollsBackBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("init failed")
	init := func(ctx context.Context, tx *store.Tx, ic InitCall) error {
		return sentinel
	}
	p := NewProcessor(s, allDeployed, init, nil)

	c := Cut{
		ID: "cut-init-fail",
		Entries: []Entry{
			{Module: mod1, Action: Add, Operations: []opid.OperationID{opA}},
		},
		Initializer: &InitCall{Target: mod1},
	}

	_, err := p.Apply(ctx, registry.New(), c, ApplyOptions{})
	require.ErrorIs(t, err, sentinel)

	// The registry rows written before the initializer ran rolled back.
	rows, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestApplyFlipsPendingRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := NewProcessor(s, allDeployed, nil, nil)

	c := Cut{ID: "cut-2", Entries: []Entry{
		{Module: mod1, Action: Add, Operations: []opid.OperationID{opA}},
	}}
	payload, err := c.MarshalPayload()
	require.NoError(t, err)
	require.NoError(t, s.InsertCut(ctx, store.CutRow{
		ID: c.ID, Payload: payload, SubmittedAt: 10, ReadyAt: 20,
	}))

	_, err = p.Apply(ctx, registry.New(), c, ApplyOptions{RecordID: c.ID, AppliedAt: 25})
	require.NoError(t, err)

	row, err := s.GetCut(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CutStatusApplied, row.Status)
}

func TestApplyRemoveDeletesRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := NewProcessor(s, allDeployed, nil, nil)

	live, err := p.Apply(ctx, registry.New(), Cut{ID: "c1", Entries: []Entry{
		{Module: mod1, Action: Add, Operations: []opid.OperationID{opA, opB}},
	}}, ApplyOptions{})
	require.NoError(t, err)

	live, err = p.Apply(ctx, live, Cut{ID: "c2", Entries: []Entry{
		{Module: opid.ZeroAddress, Action: Remove, Operations: []opid.OperationID{opB}},
	}}, ApplyOptions{})
	require.NoError(t, err)

	_, ok := live.Resolve(opB)
	assert.False(t, ok)

	rows, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, opA.String(), rows[0].OpID)
}

func TestPayloadRoundTrip(t *testing.T) {
	c := Cut{
		ID: "cut-rt",
		Entries: []Entry{
			{Module: mod1, Action: Add, Operations: []opid.OperationID{opA}},
		},
		Initializer: &InitCall{Target: mod1, Payload: []byte{0x01, 0x02}},
	}

	payload, err := c.MarshalPayload()
	require.NoError(t, err)

	got, err := UnmarshalPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
