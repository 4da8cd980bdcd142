package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNibbleKeyFromNormal(t *testing.T) {
	k := FromNormal([]byte{0x12, 0x34})
	require.Equal(t, 4, k.Length())
	assert.False(t, k.IsTerminal())
	assert.Equal(t, byte(1), k.GetHex(0))
	assert.Equal(t, byte(2), k.GetHex(1))
	assert.Equal(t, byte(3), k.GetHex(2))
	assert.Equal(t, byte(4), k.GetHex(3))
}

func TestNibbleKeyEmpty(t *testing.T) {
	k := Empty()
	assert.True(t, k.IsEmpty())
	assert.True(t, k.IsTerminal())
	assert.Equal(t, 0, k.Length())
}

func TestNibbleKeyShift(t *testing.T) {
	k := FromNormal([]byte{0x12, 0x34})
	shifted := k.Shift(2)
	require.Equal(t, 2, shifted.Length())
	assert.Equal(t, byte(3), shifted.GetHex(0))
	assert.Equal(t, byte(4), shifted.GetHex(1))
}

func TestNibbleKeyPackedRoundTrip(t *testing.T) {
	cases := []NibbleKey{
		Empty(),
		SingleHex(0xa),
		FromNormal([]byte{0x12, 0x34}).asTerminal(),
		FromNormal([]byte{0x12, 0x34}),
		FromNormal([]byte{0xab}).Shift(1),
		FromNormal([]byte{0xab}).Shift(1).asTerminal(),
	}
	for _, k := range cases {
		packed := k.ToPacked()
		got, err := FromPacked(packed)
		require.NoError(t, err)
		assert.True(t, k.Equal(got), "round trip mismatch for %v: got %v", k, got)
	}
}

func TestNibbleKeyFromPackedEmptyBuffer(t *testing.T) {
	_, err := FromPacked(nil)
	assert.Error(t, err)
}

func TestNibbleKeyMatchAndShift(t *testing.T) {
	k := FromNormal([]byte{0x12, 0x34, 0x56})
	prefix := FromNormal([]byte{0x12})
	residue, ok := k.MatchAndShift(prefix)
	require.True(t, ok)
	assert.Equal(t, 4, residue.Length())
	assert.Equal(t, byte(3), residue.GetHex(0))

	_, ok = k.MatchAndShift(FromNormal([]byte{0x13}))
	assert.False(t, ok)

	_, ok = k.MatchAndShift(FromNormal([]byte{0x12, 0x34, 0x56, 0x78}))
	assert.False(t, ok, "key shorter than prefix cannot match")
}

func TestNibbleKeyMatchAndShiftOddOffsets(t *testing.T) {
	k := FromNormal([]byte{0x12, 0x34}).Shift(1) // 2,3,4
	prefix := FromNormal([]byte{0x12}).Shift(1)  // 2
	residue, ok := k.MatchAndShift(prefix)
	require.True(t, ok)
	assert.Equal(t, 2, residue.Length())
	assert.Equal(t, byte(2), k.GetHex(0))
	assert.Equal(t, byte(4), residue.GetHex(1))
}

func TestNibbleKeyCommonPrefix(t *testing.T) {
	a := FromNormal([]byte{0x12, 0x34})
	b := FromNormal([]byte{0x12, 0x99})
	cp := a.CommonPrefix(b)
	assert.Equal(t, 2, cp.Length())
	assert.False(t, cp.IsTerminal())
	assert.Equal(t, byte(1), cp.GetHex(0))
	assert.Equal(t, byte(2), cp.GetHex(1))
}

func TestNibbleKeyCommonPrefixBound(t *testing.T) {
	a := FromNormal([]byte{0x12, 0x34})
	b := FromNormal([]byte{0x12, 0x34})
	cp := a.CommonPrefix(b)
	assert.LessOrEqual(t, cp.Length(), a.Length())
	assert.LessOrEqual(t, cp.Length(), b.Length())
	assert.Equal(t, a.Length(), cp.Length())
}

func TestNibbleKeyCommonPrefixDisjoint(t *testing.T) {
	a := FromNormal([]byte{0x12})
	b := FromNormal([]byte{0x34})
	cp := a.CommonPrefix(b)
	assert.Equal(t, 0, cp.Length())
}

func TestNibbleKeyConcat(t *testing.T) {
	a := SingleHex(0x1)
	b := FromNormal([]byte{0x23}).asTerminal()
	merged, err := a.Concat(b)
	require.NoError(t, err)
	assert.True(t, merged.IsTerminal())
	assert.Equal(t, 3, merged.Length())
	assert.Equal(t, byte(1), merged.GetHex(0))
	assert.Equal(t, byte(2), merged.GetHex(1))
	assert.Equal(t, byte(3), merged.GetHex(2))
}

func TestNibbleKeyConcatRejectsTerminalPrefix(t *testing.T) {
	a := Empty()
	_, err := a.Concat(SingleHex(0x1))
	require.Error(t, err)
	var invalid *InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}

func TestNibbleKeyEqual(t *testing.T) {
	a := FromNormal([]byte{0x12})
	b := FromNormal([]byte{0x12})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(a.asTerminal()))
	assert.False(t, a.Equal(FromNormal([]byte{0x13})))
}
