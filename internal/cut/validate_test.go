package cut

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-dev/tessera/internal/opid"
	"github.com/tessera-dev/tessera/internal/registry"
)

var (
	opA = opid.DeriveOp("alpha()")
	opB = opid.DeriveOp("beta(u64)")
	opC = opid.DeriveOp("gamma(address)")

	mod1 = opid.DeriveAddress([]byte("module-one"), []byte("s"))
	mod2 = opid.DeriveAddress([]byte("module-two"), []byte("s"))
	// mod3 is derivable but never deployed in these tests.
	mod3 = opid.DeriveAddress([]byte("module-three"), []byte("s"))
)

func allDeployed(addr opid.Address) bool {
	return addr != mod3
}

// ownedByMod1 returns a registry where mod1 owns opA and opB.
func ownedByMod1() *registry.Registry {
	r := registry.New()
	r.Register(opA, mod1)
	r.Register(opB, mod1)
	return r
}

func TestValidateAddUnowned(t *testing.T) {
	c := Cut{ID: "c1", Entries: []Entry{
		{Module: mod1, Action: Add, Operations: []opid.OperationID{opA, opB}},
	}}

	err := Validate(registry.New(), c, allDeployed)
	assert.NoError(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		reg      *registry.Registry
		cut      Cut
		wantCode ValidationCode
	}{
		{
			name:     "empty batch",
			reg:      registry.New(),
			cut:      Cut{ID: "c"},
			wantCode: CodeEmptyEntry,
		},
		{
			name: "entry with no operations",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod1, Action: Add},
			}},
			wantCode: CodeEmptyEntry,
		},
		{
			name: "add to owned",
			reg:  ownedByMod1(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod2, Action: Add, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeAddOwned,
		},
		{
			name: "add with null module",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: opid.ZeroAddress, Action: Add, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeNullModule,
		},
		{
			name: "add to undeployed module",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod3, Action: Add, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeModuleNotDeployed,
		},
		{
			name: "replace unowned",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod2, Action: Replace, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeReplaceUnowned,
		},
		{
			name: "replace with null module",
			reg:  ownedByMod1(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: opid.ZeroAddress, Action: Replace, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeNullModule,
		},
		{
			name: "remove unowned",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: opid.ZeroAddress, Action: Remove, Operations: []opid.OperationID{opC}},
			}},
			wantCode: CodeRemoveUnowned,
		},
		{
			name: "remove names a module",
			reg:  ownedByMod1(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod1, Action: Remove, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeRemoveTargetsModule,
		},
		{
			name: "duplicate operation across entries",
			reg:  ownedByMod1(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod2, Action: Replace, Operations: []opid.OperationID{opA}},
				{Module: opid.ZeroAddress, Action: Remove, Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeDuplicateOperation,
		},
		{
			name: "duplicate operation within entry",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod1, Action: Add, Operations: []opid.OperationID{opA, opA}},
			}},
			wantCode: CodeDuplicateOperation,
		},
		{
			name: "unknown action",
			reg:  registry.New(),
			cut: Cut{ID: "c", Entries: []Entry{
				{Module: mod1, Action: Action("upsert"), Operations: []opid.OperationID{opA}},
			}},
			wantCode: CodeUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.reg, tt.cut, allDeployed)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantCode, ve.Code)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateReplaceSameModuleIsNoOp(t *testing.T) {
	// Replacing an operation with its current owner is permitted.
	c := Cut{ID: "c", Entries: []Entry{
		{Module: mod1, Action: Replace, Operations: []opid.OperationID{opA}},
	}}

	err := Validate(ownedByMod1(), c, allDeployed)
	assert.NoError(t, err)
}

func TestValidateMixedBatch(t *testing.T) {
	// Replace A to mod2, remove B: the end-to-end upgrade shape.
	c := Cut{ID: "c", Entries: []Entry{
		{Module: mod2, Action: Replace, Operations: []opid.OperationID{opA}},
		{Module: opid.ZeroAddress, Action: Remove, Operations: []opid.OperationID{opB}},
	}}

	err := Validate(ownedByMod1(), c, allDeployed)
	assert.NoError(t, err)
}
