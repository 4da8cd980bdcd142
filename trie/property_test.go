package trie

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv struct {
	key, value []byte
}

func sampleKVs() []kv {
	return []kv{
		{[]byte("alpha"), []byte("value-alpha")},
		{[]byte("alphabet"), []byte("value-alphabet")},
		{[]byte("beta"), []byte("value-beta")},
		{[]byte("be"), []byte("value-be")},
		{[]byte{0x01, 0x02, 0x03}, []byte("bin-1")},
		{[]byte{0x01, 0x02, 0xff}, []byte("bin-2")},
		{[]byte{}, []byte("empty-key")},
	}
}

func buildTrie(pairs []kv) *Trie {
	tr, _ := newTestTrie()
	for _, p := range pairs {
		if err := tr.Put(p.key, p.value); err != nil {
			panic(err)
		}
	}
	return tr
}

// Property 1: insert/get round-trip.
func TestPropertyInsertGetRoundTrip(t *testing.T) {
	pairs := sampleKVs()
	tr := buildTrie(pairs)

	for _, p := range pairs {
		got, err := tr.Get(p.key)
		require.NoError(t, err)
		assert.Equal(t, p.value, got)
	}

	absent, err := tr.Get([]byte("not-inserted"))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

// Property 2: delete idempotence.
func TestPropertyDeleteIdempotence(t *testing.T) {
	pairs := sampleKVs()
	for _, target := range pairs {
		tr := buildTrie(pairs)
		require.NoError(t, tr.Delete(target.key))
		onceHash := tr.RootHash()

		require.NoError(t, tr.Delete(target.key))
		twiceHash := tr.RootHash()

		assert.Equal(t, onceHash, twiceHash)
	}
}

// Property 3: order independence.
func TestPropertyOrderIndependence(t *testing.T) {
	pairs := sampleKVs()

	forward, _ := newTestTrie()
	for _, p := range pairs {
		require.NoError(t, forward.Put(p.key, p.value))
	}

	reversed, _ := newTestTrie()
	for i := len(pairs) - 1; i >= 0; i-- {
		require.NoError(t, reversed.Put(pairs[i].key, pairs[i].value))
	}

	shuffled, _ := newTestTrie()
	order := []int{3, 0, 5, 1, 6, 2, 4}
	for _, idx := range order {
		require.NoError(t, shuffled.Put(pairs[idx].key, pairs[idx].value))
	}

	want := forward.RootHash()
	assert.Equal(t, want, reversed.RootHash())
	assert.Equal(t, want, shuffled.RootHash())
}

// Property 4: put-then-delete of a previously-absent key is a null-op.
func TestPropertyPutThenDeleteNullOp(t *testing.T) {
	pairs := sampleKVs()
	tr := buildTrie(pairs)
	before := tr.RootHash()

	newKey := []byte("definitely-not-present")
	require.NoError(t, tr.Put(newKey, []byte("temp")))
	require.NoError(t, tr.Delete(newKey))

	assert.Equal(t, before, tr.RootHash())
}

// Property 5: packed-key round-trip, across a spread of lengths/offsets.
func TestPropertyPackedKeyRoundTrip(t *testing.T) {
	raws := [][]byte{
		{},
		{0x00},
		{0xff},
		{0x01, 0x23, 0x45},
		{0xAB, 0xCD, 0xEF, 0x01},
	}
	for _, raw := range raws {
		for _, terminal := range []bool{false, true} {
			k := FromNormal(raw)
			if terminal {
				k = k.asTerminal()
			}
			for shift := 0; shift <= k.Length(); shift++ {
				sk := k.Shift(shift)
				packed := sk.ToPacked()
				got, err := FromPacked(packed)
				require.NoError(t, err)
				assert.True(t, sk.Equal(got), "round trip failed for raw=%x terminal=%v shift=%d", raw, terminal, shift)
			}
		}
	}
}

// Property 6: common-prefix bound.
func TestPropertyCommonPrefixBound(t *testing.T) {
	a := FromNormal([]byte{0x12, 0x34, 0x56})
	b := FromNormal([]byte{0x12, 0x34, 0x99})
	cp := a.CommonPrefix(b)

	assert.LessOrEqual(t, cp.Length(), a.Length())
	assert.LessOrEqual(t, cp.Length(), b.Length())

	ra := a.Shift(cp.Length())
	rb := b.Shift(cp.Length())
	if !ra.IsEmpty() && !rb.IsEmpty() {
		assert.NotEqual(t, ra.GetHex(0), rb.GetHex(0))
	}
}

// Property 7: empty-trie hash stability.
func TestPropertyEmptyTrieHashStability(t *testing.T) {
	fresh, _ := newTestTrie()
	freshHash := fresh.RootHash()

	putDelete, _ := newTestTrie()
	require.NoError(t, putDelete.Put([]byte("k"), []byte("v")))
	require.NoError(t, putDelete.Delete([]byte("k")))
	putDeleteHash := putDelete.RootHash()

	viaSetRoot, _ := newTestTrie()
	require.NoError(t, viaSetRoot.Put([]byte("k"), []byte("v")))
	viaSetRoot.SetRoot(viaSetRoot.EmptyTrieHash())
	viaSetRootHash := viaSetRoot.RootHash()

	assert.Equal(t, freshHash, putDeleteHash)
	assert.Equal(t, freshHash, viaSetRootHash)
}

// Property 8: persistence.
func TestPropertyPersistence(t *testing.T) {
	pairs := sampleKVs()
	tr, store := newTestTrie()
	for _, p := range pairs {
		require.NoError(t, tr.Put(p.key, p.value))
	}
	tr.Flush()
	h := tr.RootHash()

	reopened := Open(store, Keccak256Hasher{}, TrieID(h))
	for _, p := range pairs {
		got, err := reopened.Get(p.key)
		require.NoError(t, err)
		assert.Equal(t, p.value, got)
	}
}

// Property 9: no dangling inline nodes. Walking the wire-decoded tree,
// every child embedded inline (not a hash reference) must serialize under
// hashByteLen, and every hash reference must resolve in the store — an
// oversized embedded child would mean some node crossed the inlining
// threshold without being content-addressed.
func TestPropertyNoDanglingInlineNodes(t *testing.T) {
	pairs := sampleKVs()
	tr, store := newTestTrie()
	for _, p := range pairs {
		require.NoError(t, tr.Put(p.key, p.value))
	}
	tr.Flush()
	h := tr.RootHash()

	var walkDecoded func(n node)
	checkChild := func(c node) {
		switch c.(type) {
		case *branchNode, *kvNode:
			assert.Less(t, len(encodeNode(c)), hashByteLen, "embedded child must be under the inlining threshold")
			walkDecoded(c)
		case hashNode:
			walkDecoded(c)
		}
	}
	walkDecoded = func(n node) {
		switch v := n.(type) {
		case hashNode:
			var hv [32]byte
			copy(hv[:], v)
			blob, ok := store.Get(hv)
			require.True(t, ok, "hash reference %x must resolve in the store", hv)
			decoded, err := decodeNode([]byte(v), blob)
			require.NoError(t, err)
			walkDecoded(decoded)
		case *branchNode:
			for _, c := range v.Children {
				if c != nil {
					checkChild(c)
				}
			}
		case *kvNode:
			if !v.Key.IsTerminal() {
				checkChild(v.kvGetChildNode())
			}
		}
	}

	blob, ok := store.Get(h)
	require.True(t, ok)
	root, err := decodeNode(h[:], blob)
	require.NoError(t, err)
	walkDecoded(root)
}

func TestSortedInsertionMatchesShuffled(t *testing.T) {
	pairs := sampleKVs()
	keys := make([]string, 0, len(pairs))
	byKey := map[string][]byte{}
	for _, p := range pairs {
		keys = append(keys, string(p.key))
		byKey[string(p.key)] = p.value
	}
	sort.Strings(keys)

	sortedTrie, _ := newTestTrie()
	for _, k := range keys {
		require.NoError(t, sortedTrie.Put([]byte(k), byKey[k]))
	}

	tr := buildTrie(pairs)
	assert.Equal(t, tr.RootHash(), sortedTrie.RootHash())
}
