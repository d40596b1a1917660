package opid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"mike":  int64(3),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mike":3,"zebra":1}`, string(got))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(got))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "é" as a precomposed code point vs e + combining acute accent.
	precomposed := "café"
	decomposed := "café"

	got1, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	got2, err := MarshalCanonical(decomposed)
	require.NoError(t, err)

	assert.Equal(t, got1, got2, "NFC-equivalent strings must serialize identically")
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestMarshalCanonicalTextMarshalers(t *testing.T) {
	op := DeriveOp("ping()")
	addr := DeriveAddress([]byte("code"), []byte("s"))

	got, err := MarshalCanonical(map[string]any{
		"op":     op,
		"module": addr,
	})
	require.NoError(t, err)
	assert.Contains(t, string(got), op.String())
	assert.Contains(t, string(got), addr.String())
}

func TestDigestCanonicalDeterminism(t *testing.T) {
	v := map[string]any{"entries": []any{"a", "b"}, "n": int64(2)}

	d1, err := DigestCanonical("tessera/test/v1", v)
	require.NoError(t, err)
	d2, err := DigestCanonical("tessera/test/v1", v)
	require.NoError(t, err)
	d3, err := DigestCanonical("tessera/other/v1", v)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3, "different domains must produce different digests")
	assert.Len(t, d1, 64)
}
