package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
)

// Trie is a Merkle Patricia Trie: a persistent, content-addressed,
// ordered key-value map over byte-string keys. It owns a Store and a
// Hasher for its lifetime, and an optional in-memory root node.
//
// Trie is not safe for concurrent use. Callers that want concurrent
// readers must serialize mutation through a single owner and snapshot
// via RootHash/SetRoot on independent instances sharing the same Store.
type Trie struct {
	root          node
	store         Store
	hasher        Hasher
	emptyTrieHash [32]byte
}

// New creates an empty trie backed by store, hashing node records with
// hasher.
func New(store Store, hasher Hasher) *Trie {
	empty, err := rlp.EncodeToBytes([]byte{})
	if err != nil {
		panic(err)
	}
	return &Trie{
		store:         store,
		hasher:        hasher,
		emptyTrieHash: hasher.Hash(empty),
	}
}

// Open creates a trie backed by store and rooted at id.Root. The root
// node is resolved lazily, on first access, exactly as SetRoot behaves.
func Open(store Store, hasher Hasher, id *ID) *Trie {
	t := New(store, hasher)
	t.SetRoot(id.Root)
	return t
}

// EmptyTrieHash returns the sentinel root hash of an empty trie:
// Hasher.Hash(RLP.encode_element(emptyBytes)).
func (t *Trie) EmptyTrieHash() [32]byte {
	return t.emptyTrieHash
}

// Get returns the value stored under key, or (nil, nil) if key is not
// present.
func (t *Trie) Get(key []byte) ([]byte, error) {
	value, newRoot, resolved, err := t.get(t.root, FromNormal(key))
	if err != nil {
		return nil, err
	}
	if resolved {
		t.root = newRoot
	}
	return value, nil
}

func (t *Trie) get(n node, key NibbleKey) (value []byte, newNode node, resolved bool, err error) {
	switch n := n.(type) {
	case nil:
		return nil, nil, false, nil
	case valueNode:
		return []byte(n), n, false, nil
	case hashNode:
		child, err := t.resolve(n)
		if err != nil {
			return nil, n, false, err
		}
		value, newChild, _, err := t.get(child, key)
		return value, newChild, true, err
	case *branchNode:
		if key.IsEmpty() {
			return n.branchGetValue(), n, false, nil
		}
		h := int(key.GetHex(0))
		value, newChild, resolved, err := t.get(n.branchGetChild(h), key.Shift(1))
		if err != nil || !resolved {
			return value, n, resolved, err
		}
		n = n.copy()
		n.Children[h] = newChild
		return value, n, true, nil
	case *kvNode:
		residue, ok := key.MatchAndShift(n.Key)
		if !ok {
			return nil, n, false, nil
		}
		if n.Key.IsTerminal() {
			if !residue.IsEmpty() {
				return nil, n, false, nil
			}
			return n.kvGetValue(), n, false, nil
		}
		value, newChild, resolved, err := t.get(n.kvGetChildNode(), residue)
		if err != nil || !resolved {
			return value, n, resolved, err
		}
		n = n.copy()
		n.Val = newChild
		return value, n, true, nil
	default:
		panic(fmt.Sprintf("trie: get: invalid node %T", n))
	}
}

// Put stores value under key. Putting an empty (zero-length) value is
// equivalent to Delete.
func (t *Trie) Put(key, value []byte) error {
	if len(value) == 0 {
		return t.Delete(key)
	}
	root, err := t.insert(t.root, FromNormal(key), valueNode(value))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// insert is the recursive core of Put. value is either a valueNode (the
// byte payload being inserted) or, during a KV split, a resolvable node
// being relocated under a freshly built branch.
func (t *Trie) insert(n node, key NibbleKey, value node) (node, error) {
	switch n := n.(type) {
	case nil:
		return newKVWrapping(key, value)
	case hashNode:
		child, err := t.resolve(n)
		if err != nil {
			return nil, err
		}
		return t.insert(child, key, value)
	case *branchNode:
		if key.IsEmpty() {
			vn, ok := value.(valueNode)
			if !ok {
				return nil, &InvalidStateError{Op: "insert", Reason: "branch value slot requires a byte value"}
			}
			n = n.copy()
			n.branchSetValue([]byte(vn))
			return n, nil
		}
		h := int(key.GetHex(0))
		var (
			newChild node
			err      error
		)
		if child := n.branchGetChild(h); child != nil {
			newChild, err = t.insert(child, key.Shift(1), value)
		} else {
			newChild, err = newKVWrapping(key.Shift(1), value)
		}
		if err != nil {
			return nil, err
		}
		n = n.copy()
		n.branchSetChild(h, newChild)
		return n, nil
	case *kvNode:
		return t.insertKV(n, key, value)
	default:
		return nil, fmt.Errorf("trie: insert: invalid node %T", n)
	}
}

// insertKV implements spec's KV-node insertion case analysis: overwrite
// in place on an exact key match, descend through an extension fully
// consumed by the shared prefix, or split otherwise.
func (t *Trie) insertKV(n *kvNode, key NibbleKey, value node) (node, error) {
	cp := key.CommonPrefix(n.Key)

	switch {
	case cp.Length() == key.Length() && cp.Length() == n.Key.Length() && n.Key.IsTerminal():
		n = n.copy()
		n.kvSetValueOrNode(value)
		return n, nil

	case cp.Length() == n.Key.Length() && !n.Key.IsTerminal():
		residue := key.Shift(cp.Length())
		newChild, err := t.insert(n.kvGetChildNode(), residue, value)
		if err != nil {
			return nil, err
		}
		n = n.copy()
		n.kvSetValueOrNode(newChild)
		return n, nil

	default:
		oldResidue := n.Key.Shift(cp.Length())
		newResidue := key.Shift(cp.Length())
		branchRoot, err := t.splitInto(oldResidue, n.kvGetValueOrNode(), newResidue, value)
		if err != nil {
			return nil, err
		}
		t.dispose(n)
		if cp.IsEmpty() {
			return branchRoot, nil
		}
		return newExtension(cp, branchRoot), nil
	}
}

// splitInto builds a fresh branch and inserts both residual
// (key, payload) pairs into it via the ordinary branch-insert path,
// which already knows how to place an empty-key payload in the value
// slot and a non-empty-key payload (whether bytes or a structural node)
// under the right child.
func (t *Trie) splitInto(oldKey NibbleKey, oldPayload node, newKey NibbleKey, newPayload node) (node, error) {
	branch := &branchNode{flags: nodeFlag{dirty: true}}
	updated, err := t.insert(branch, oldKey, oldPayload)
	if err != nil {
		return nil, err
	}
	updated, err = t.insert(updated, newKey, newPayload)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// newKVWrapping constructs the record that should occupy an empty slot
// for (key, value): a leaf if value is a byte payload, an extension if
// value is already a resolvable node, or value itself if key has already
// been fully consumed and value is already a node (no wrapper needed).
func newKVWrapping(key NibbleKey, value node) (node, error) {
	switch v := value.(type) {
	case valueNode:
		return newLeaf(key.asTerminal(), []byte(v)), nil
	case nil:
		return nil, &InvalidStateError{Op: "insert", Reason: "nil insertion payload"}
	default:
		if key.IsEmpty() {
			return v, nil
		}
		return newExtension(key.asNonTerminal(), v), nil
	}
}

// Delete removes key, if present. Deleting an absent key is a no-op, not
// an error.
func (t *Trie) Delete(key []byte) error {
	root, _, err := t.delete(t.root, FromNormal(key))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func (t *Trie) delete(n node, key NibbleKey) (node, bool, error) {
	switch n := n.(type) {
	case nil:
		return nil, false, nil
	case hashNode:
		child, err := t.resolve(n)
		if err != nil {
			return nil, false, err
		}
		return t.delete(child, key)
	case *branchNode:
		return t.deleteBranch(n, key)
	case *kvNode:
		return t.deleteKV(n, key)
	default:
		return nil, false, fmt.Errorf("trie: delete: invalid node %T", n)
	}
}

func (t *Trie) deleteBranch(n *branchNode, key NibbleKey) (node, bool, error) {
	if key.IsEmpty() {
		if n.branchGetValue() == nil {
			return n, false, nil
		}
		n = n.copy()
		n.branchSetValue(nil)
		return t.compactBranch(n)
	}
	h := int(key.GetHex(0))
	child := n.branchGetChild(h)
	if child == nil {
		return n, false, nil
	}
	newChild, changed, err := t.delete(child, key.Shift(1))
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return n, false, nil
	}
	n = n.copy()
	n.branchSetChild(h, newChild)
	if newChild != nil {
		return n, true, nil
	}
	return t.compactBranch(n)
}

// compactBranch implements branch_compact_index's three outcomes: keep
// the branch, collapse to a leaf when only the value slot survives, or
// collapse to a one-nibble extension when only one child survives
// (followed by the KV-KV merge check, since that extension's child may
// itself be a KV node).
func (t *Trie) compactBranch(n *branchNode) (node, bool, error) {
	switch idx := n.branchCompactIndex(); {
	case idx == -1:
		return n, true, nil
	case idx == 16:
		leaf := newLeaf(Empty(), n.branchGetValue())
		t.dispose(n)
		return leaf, true, nil
	default:
		child := n.branchGetChild(idx)
		ext := newExtension(SingleHex(byte(idx)), child)
		t.dispose(n)
		return t.mergeKV(ext)
	}
}

func (t *Trie) deleteKV(n *kvNode, key NibbleKey) (node, bool, error) {
	residue, ok := key.MatchAndShift(n.Key)
	if !ok {
		return n, false, nil
	}
	if n.Key.IsTerminal() {
		if !residue.IsEmpty() {
			return n, false, nil
		}
		t.dispose(n)
		return nil, true, nil
	}
	newChild, changed, err := t.delete(n.kvGetChildNode(), residue)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return n, false, nil
	}
	if newChild == nil {
		return nil, false, &InvalidStateError{Op: "delete", Reason: "extension child deletion produced a nil result"}
	}
	n = n.copy()
	n.kvSetValueOrNode(newChild)
	return t.mergeKV(n)
}

// mergeKV implements the KV-KV merge step: if n's child is itself a KV
// node (resolving it first if it is only a hash reference), the two
// collapse into one node whose key is the concatenation of both and
// whose value-or-node is the child's.
func (t *Trie) mergeKV(n *kvNode) (node, bool, error) {
	child := n.kvGetChildNode()
	if hn, ok := child.(hashNode); ok {
		resolved, err := t.resolve(hn)
		if err != nil {
			return nil, false, err
		}
		child = resolved
		n.Val = resolved
	}
	cn, ok := child.(*kvNode)
	if !ok {
		return n, true, nil
	}
	mergedKey, err := n.Key.Concat(cn.Key)
	if err != nil {
		return nil, false, err
	}
	t.dispose(cn)
	merged := &kvNode{Key: mergedKey, Val: cn.Val, flags: nodeFlag{dirty: true}}
	return merged, true, nil
}

// dispose removes n's previously stored hash mapping from the Store, if
// it has one. Disposal never recurses into children, which may still be
// reachable via other roots.
func (t *Trie) dispose(n node) {
	var hash hashNode
	switch v := n.(type) {
	case *branchNode:
		hash = v.flags.hash
	case *kvNode:
		hash = v.flags.hash
	default:
		return
	}
	if hash == nil {
		return
	}
	var h [32]byte
	copy(h[:], hash)
	t.store.Delete(h)
}

// resolve loads and decodes the node stored under n's hash.
func (t *Trie) resolve(n hashNode) (node, error) {
	var h [32]byte
	copy(h[:], n)
	blob, ok := t.store.Get(h)
	if !ok {
		log.Warn("trie: node missing from store", "hash", h)
		return nil, &ResolutionError{Hash: h}
	}
	return decodeNode([]byte(n), blob)
}

// RootHash forces encoding of the current root and returns its content
// hash, storing every reachable dirty node along the way except those
// whose encoding is under hashByteLen, which are embedded in their
// parent instead. An empty trie reports EmptyTrieHash.
func (t *Trie) RootHash() [32]byte {
	if t.root == nil {
		return t.emptyTrieHash
	}
	h := newHasher(t.store, t.hasher)
	defer returnHasherToPool(h)

	hashed, cached := h.hash(t.root, true)
	t.root = cached

	hn, ok := hashed.(hashNode)
	if !ok {
		panic("trie: forced root encode did not yield a hash reference")
	}
	var out [32]byte
	copy(out[:], hn)
	return out
}

// SetRoot discards the current in-memory root. If hash is the empty-trie
// hash (or the zero hash), the trie becomes empty; otherwise the root
// becomes a hash-only stub resolved lazily on first access.
func (t *Trie) SetRoot(hash [32]byte) {
	if hash == t.emptyTrieHash || hash == ([32]byte{}) {
		t.root = nil
		return
	}
	t.root = hashNode(hash[:])
}

// Flush encodes the root if it is dirty, populating the Store, and
// replaces the in-memory root with a hash-only stub, releasing resolved
// children. It reports whether anything was flushed.
func (t *Trie) Flush() bool {
	dirty := false
	switch n := t.root.(type) {
	case *branchNode:
		dirty = n.flags.dirty
	case *kvNode:
		dirty = n.flags.dirty
	}
	if !dirty {
		return false
	}
	hash := t.RootHash()
	t.root = hashNode(hash[:])
	return true
}
