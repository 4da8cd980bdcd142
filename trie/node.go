package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// node is the in-memory representation of a single trie node record. A
// node is one of: a branch (17 slots: 16 children plus a terminal value),
// a KV node whose key is terminal (a leaf carrying a byte-string value),
// a KV node whose key is non-terminal (an extension carrying a child
// node), a hashNode (an unresolved reference by content hash), or a
// valueNode (a raw leaf payload with no structure of its own).
//
// cache reports the node's cached hash and whether it is dirty (content
// has diverged from that hash and must be recomputed before either is
// observed by external code).
type node interface {
	cache() (hashNode, bool)
	encode(w rlp.EncoderBuffer)
	fstring(string) string
}

// nodeFlag carries the dirty-tracking and hash-caching metadata shared by
// branchNode and kvNode. After a hash pass a clean node has exactly one of
// hash/encoded set; a node decoded from inside its parent's encoding is
// clean with neither, and is re-encoded on the next hash pass.
type nodeFlag struct {
	hash    hashNode // hash of the last stored encoding; kept (stale) once dirty
	encoded []byte   // last inline encoding; kept (stale) once dirty
	dirty   bool
}

// branchNode is a node with 16 child slots (one per nibble value) plus a
// terminal value slot.
type branchNode struct {
	Children [16]node
	Value    []byte // nil means the value slot is empty
	flags    nodeFlag
}

// kvNode holds a nibble-sequence key and either a value (when Key is
// terminal, i.e. a leaf / KV-to-value node) or a child node reference
// (when Key is non-terminal, i.e. an extension / KV-to-node node).
type kvNode struct {
	Key   NibbleKey
	Val   node // valueNode when Key.IsTerminal(), a resolvable node otherwise
	flags nodeFlag
}

// hashNode is an unresolved reference to a node stored under a 32-byte
// content hash.
type hashNode []byte

// valueNode is a raw byte-string leaf payload. It has no children and is
// always embedded directly in its parent kvNode.
type valueNode []byte

func (n *branchNode) copy() *branchNode { c := *n; return &c }
func (n *kvNode) copy() *kvNode         { c := *n; return &c }

func (n *branchNode) cache() (hashNode, bool) { return n.flags.hash, n.flags.dirty }
func (n *kvNode) cache() (hashNode, bool)     { return n.flags.hash, n.flags.dirty }
func (n hashNode) cache() (hashNode, bool)    { return nil, false }
func (n valueNode) cache() (hashNode, bool)   { return nil, false }

// branchGetChild materializes child i (0..15).
func (n *branchNode) branchGetChild(i int) node {
	return n.Children[i]
}

// branchSetChild stores child (possibly nil) at slot i and marks the
// branch dirty.
func (n *branchNode) branchSetChild(i int, child node) {
	n.Children[i] = child
	n.markDirty()
}

// branchGetValue returns the terminal value slot, or nil if empty.
func (n *branchNode) branchGetValue() []byte {
	return n.Value
}

// branchSetValue stores the terminal value slot and marks the branch
// dirty.
func (n *branchNode) branchSetValue(v []byte) {
	n.Value = v
	n.markDirty()
}

// branchCompactIndex scans the 16 child slots: if exactly one is
// non-empty and the value slot is empty, it returns that index; if only
// the value slot is populated it returns 16; otherwise it returns -1 (no
// compaction possible).
func (n *branchNode) branchCompactIndex() int {
	pos := -1
	for i, c := range n.Children {
		if c != nil {
			if pos != -1 {
				return -1
			}
			pos = i
		}
	}
	if pos == -1 {
		if n.Value != nil {
			return 16
		}
		return -1
	}
	if n.Value != nil {
		return -1
	}
	return pos
}

// markDirty flips the dirty bit without disturbing the node's current
// hash/encoded cache: the hasher still needs to see the pre-mutation
// hash at the next encode, to dispose of the mapping it superseded.
func (n *branchNode) markDirty() {
	n.flags.dirty = true
}

// kvGetKey returns the node's nibble key.
func (n *kvNode) kvGetKey() NibbleKey {
	return n.Key
}

// kvGetChildNode returns the child node reference of an extension
// (KV-to-node) record.
func (n *kvNode) kvGetChildNode() node {
	return n.Val
}

// kvGetValue returns the stored value of a leaf (KV-to-value) record.
func (n *kvNode) kvGetValue() []byte {
	if v, ok := n.Val.(valueNode); ok {
		return v
	}
	return nil
}

// kvGetValueOrNode returns the raw Val slot, which is either a
// valueNode or a resolvable child node depending on Key.IsTerminal().
func (n *kvNode) kvGetValueOrNode() node {
	return n.Val
}

// kvSetValueOrNode replaces the Val slot and marks the node dirty.
func (n *kvNode) kvSetValueOrNode(v node) {
	n.Val = v
	n.markDirty()
}

func (n *kvNode) markDirty() {
	n.flags.dirty = true
}

func newLeaf(key NibbleKey, value []byte) *kvNode {
	if !key.IsTerminal() {
		panic("trie: newLeaf requires a terminal key")
	}
	return &kvNode{Key: key, Val: valueNode(value), flags: nodeFlag{dirty: true}}
}

func newExtension(key NibbleKey, child node) *kvNode {
	if key.IsTerminal() {
		panic("trie: newExtension requires a non-terminal key")
	}
	return &kvNode{Key: key, Val: child, flags: nodeFlag{dirty: true}}
}

// Pretty printing, in the teacher's fstring idiom — useful for debugging
// and kept cheap since it is never on a hot path.
func (n *branchNode) String() string { return n.fstring("") }
func (n *kvNode) String() string     { return n.fstring("") }
func (n hashNode) String() string    { return n.fstring("") }
func (n valueNode) String() string   { return n.fstring("") }

var nibbleChars = "0123456789abcdef"

func (n *branchNode) fstring(ind string) string {
	resp := fmt.Sprintf("[\n%s  ", ind)
	for i, c := range n.Children {
		if c == nil {
			resp += fmt.Sprintf("%c: <nil> ", nibbleChars[i])
		} else {
			resp += fmt.Sprintf("%c: %v", nibbleChars[i], c.fstring(ind+"  "))
		}
	}
	if n.Value != nil {
		resp += fmt.Sprintf("value: %x ", n.Value)
	}
	return resp + fmt.Sprintf("\n%s] ", ind)
}

func (n *kvNode) fstring(ind string) string {
	return fmt.Sprintf("{%v: %v} ", n.Key, n.Val.fstring(ind+"  "))
}

func (n hashNode) fstring(string) string  { return fmt.Sprintf("<%x> ", []byte(n)) }
func (n valueNode) fstring(string) string { return fmt.Sprintf("%x ", []byte(n)) }
