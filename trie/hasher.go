package trie

import (
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Keccak256Hasher is the reference Hasher named in spec §6, backed by
// go-ethereum's crypto package (itself backed by golang.org/x/crypto/sha3).
type Keccak256Hasher struct{}

func (Keccak256Hasher) Hash(blob []byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(blob))
}

// hasher drives one root-to-leaves encode pass: it walks dirty
// descendants bottom-up, and for each one that must be content-addressed
// (its serialization is at least hashByteLen, or force is set) stores the
// serialization and disposes whatever hash it superseded. It holds
// pooled scratch space for the RLP encoder buffer, reused across calls to
// avoid an allocation per node.
type hasher struct {
	tmp    []byte
	encbuf rlp.EncoderBuffer
	store  Store
	hashFn Hasher
}

var hasherPool = sync.Pool{
	New: func() interface{} {
		return &hasher{
			tmp:    make([]byte, 0, 550),
			encbuf: rlp.NewEncoderBuffer(nil),
		}
	},
}

func newHasher(store Store, hashFn Hasher) *hasher {
	h := hasherPool.Get().(*hasher)
	h.store, h.hashFn = store, hashFn
	return h
}

func returnHasherToPool(h *hasher) {
	h.store, h.hashFn = nil, nil
	hasherPool.Put(h)
}

func (h *hasher) encodedBytes() []byte {
	h.tmp = h.encbuf.AppendToBytes(h.tmp[:0])
	h.encbuf.Reset(nil)
	return h.tmp
}

// hash collapses n for use inside its parent's encoding (hashedForParent:
// either a hashNode reference or, below the inlining threshold, n itself)
// and returns the node that replaces n in the live, navigable tree
// (resolved). force forces n itself to be content-hashed and stored
// regardless of size; it is true only at the trie root.
func (h *hasher) hash(n node, force bool) (hashedForParent node, resolved node) {
	switch v := n.(type) {
	case *kvNode:
		if !v.flags.dirty {
			if v.flags.hash != nil {
				return v.flags.hash, v
			}
			if v.flags.encoded != nil {
				return v, v
			}
		}
		return h.hashKV(v, force)
	case *branchNode:
		if !v.flags.dirty {
			if v.flags.hash != nil {
				return v.flags.hash, v
			}
			if v.flags.encoded != nil {
				return v, v
			}
		}
		return h.hashBranch(v, force)
	default:
		// hashNode and valueNode carry no children and are never dirty.
		return n, n
	}
}

func (h *hasher) hashKV(n *kvNode, force bool) (node, node) {
	collapsed, cached := n.copy(), n.copy()
	switch n.Val.(type) {
	case *branchNode, *kvNode:
		collapsed.Val, cached.Val = h.hash(n.Val, false)
	}
	return h.kvToHash(collapsed, cached, force)
}

func (h *hasher) kvToHash(collapsed, cached *kvNode, force bool) (node, node) {
	collapsed.encode(h.encbuf)
	enc := h.encodedBytes()
	if len(enc) < hashByteLen && !force {
		h.disposePrior(cached)
		cached.flags = nodeFlag{encoded: append([]byte(nil), enc...)}
		return cached, cached
	}
	return h.storeAndCache(cached, enc)
}

func (h *hasher) hashBranch(n *branchNode, force bool) (node, node) {
	collapsed, cached := n.copy(), n.copy()
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		switch c.(type) {
		case *branchNode, *kvNode:
			collapsed.Children[i], cached.Children[i] = h.hash(c, false)
		}
	}
	return h.branchToHash(collapsed, cached, force)
}

func (h *hasher) branchToHash(collapsed, cached *branchNode, force bool) (node, node) {
	collapsed.encode(h.encbuf)
	enc := h.encodedBytes()
	if len(enc) < hashByteLen && !force {
		h.disposePrior(cached)
		cached.flags = nodeFlag{encoded: append([]byte(nil), enc...)}
		return cached, cached
	}
	return h.storeAndCache(cached, enc)
}

// disposePrior deletes whatever hash mapping n previously held from the
// store, used when a node that used to be content-addressed collapses
// back under the inlining threshold.
func (h *hasher) disposePrior(n resolvable) {
	prior := n.priorHash()
	if prior == nil {
		return
	}
	var priorHash [32]byte
	copy(priorHash[:], prior)
	h.store.Delete(priorHash)
}

// storeAndCache is shared by kvToHash/branchToHash once enc has been
// decided to cross the inlining threshold: it hashes enc, stores it,
// disposes whatever hash the node previously held (if that hash is
// actually changing), and marks the node clean.
func (h *hasher) storeAndCache(n resolvable, enc []byte) (node, node) {
	hash := h.hashFn.Hash(enc)
	hn := hashNode(hash[:])

	prior := n.priorHash()
	h.store.Put(hash, append([]byte(nil), enc...))
	if prior != nil {
		var priorHash [32]byte
		copy(priorHash[:], prior)
		if priorHash != hash {
			h.store.Delete(priorHash)
		}
	}
	n.setFlags(nodeFlag{hash: hn})
	return hn, n.(node)
}

// resolvable is implemented by *branchNode and *kvNode so storeAndCache
// can read/write their shared nodeFlag without duplicating it per type.
type resolvable interface {
	priorHash() hashNode
	setFlags(nodeFlag)
}

func (n *branchNode) priorHash() hashNode    { return n.flags.hash }
func (n *branchNode) setFlags(f nodeFlag)    { n.flags = f }
func (n *kvNode) priorHash() hashNode        { return n.flags.hash }
func (n *kvNode) setFlags(f nodeFlag)        { n.flags = f }
