package trie

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

func (n *branchNode) encode(w rlp.EncoderBuffer) {
	offset := w.List()
	for _, c := range n.Children {
		if c != nil {
			c.encode(w)
		} else {
			w.Write(rlp.EmptyString)
		}
	}
	if n.Value != nil {
		w.WriteBytes(n.Value)
	} else {
		w.Write(rlp.EmptyString)
	}
	w.ListEnd(offset)
}

func (n *kvNode) encode(w rlp.EncoderBuffer) {
	offset := w.List()
	w.WriteBytes(n.Key.ToPacked())
	switch v := n.Val.(type) {
	case valueNode:
		w.WriteBytes(v)
	case nil:
		w.Write(rlp.EmptyString)
	default:
		v.encode(w)
	}
	w.ListEnd(offset)
}

func (n hashNode) encode(w rlp.EncoderBuffer)  { w.WriteBytes(n) }
func (n valueNode) encode(w rlp.EncoderBuffer) { w.WriteBytes(n) }

// decodeNode parses the RLP encoding of a trie node. It deep-copies buf
// before decoding, so it is safe for the caller to reuse or mutate buf
// afterwards.
func decodeNode(hash, buf []byte) (node, error) {
	return decodeNodeUnsafe(hash, common.CopyBytes(buf))
}

// decodeNodeUnsafe parses the RLP encoding of a trie node without
// copying buf first. The returned node may alias buf, so buf must not be
// modified afterwards.
func decodeNodeUnsafe(hash, buf []byte) (node, error) {
	if len(buf) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("decode error: %v", err)
	}
	switch c, _ := rlp.CountValues(elems); c {
	case 2:
		n, err := decodeKV(hash, elems)
		return n, wrapDecodeError(err, "kv")
	case 17:
		n, err := decodeBranch(hash, elems)
		return n, wrapDecodeError(err, "branch")
	default:
		return nil, fmt.Errorf("invalid number of list elements: %v", c)
	}
}

func decodeKV(hash, elems []byte) (node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	key, err := FromPacked(kbuf)
	if err != nil {
		return nil, err
	}
	flag := nodeFlag{hash: hash}
	if key.IsTerminal() {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid value node: %v", err)
		}
		return &kvNode{Key: key, Val: valueNode(val), flags: flag}, nil
	}
	r, _, err := decodeRef(rest)
	if err != nil {
		return nil, wrapDecodeError(err, "val")
	}
	if r == nil {
		return nil, fmt.Errorf("invalid kv-to-node record: empty child")
	}
	return &kvNode{Key: key, Val: r, flags: flag}, nil
}

func decodeBranch(hash, elems []byte) (*branchNode, error) {
	n := &branchNode{flags: nodeFlag{hash: hash}}
	for i := 0; i < 16; i++ {
		cld, rest, err := decodeRef(elems)
		if err != nil {
			return n, wrapDecodeError(err, fmt.Sprintf("[%d]", i))
		}
		n.Children[i], elems = cld, rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return n, err
	}
	if len(val) > 0 {
		n.Value = val
	}
	return n, nil
}

// hashByteLen is the length in bytes of a content hash. RLP encodings of
// non-trivial node records always exceed this length, which is what lets
// decodeRef distinguish a stored-hash reference from nothing (an empty
// element) or an embedded child (a nested list).
const hashByteLen = 32

func decodeRef(buf []byte) (node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, err
	}
	switch {
	case kind == rlp.List:
		// Embedded node reference: its encoding must be smaller than a
		// hash to have been produced by this package's inlining rule.
		if size := len(buf) - len(rest); size >= hashByteLen {
			return nil, buf, fmt.Errorf("oversized embedded node (size is %d bytes, want size < %d)", size, hashByteLen)
		}
		n, err := decodeNode(nil, buf)
		return n, rest, err
	case kind == rlp.String && len(val) == 0:
		return nil, rest, nil
	case kind == rlp.String && len(val) == hashByteLen:
		return hashNode(val), rest, nil
	default:
		return nil, nil, fmt.Errorf("invalid RLP string size %d (want 0 or %d)", len(val), hashByteLen)
	}
}

type decodeError struct {
	what  error
	stack []string
}

func wrapDecodeError(err error, ctx string) error {
	if err == nil {
		return nil
	}
	if decErr, ok := err.(*decodeError); ok {
		decErr.stack = append(decErr.stack, ctx)
		return decErr
	}
	return &decodeError{err, []string{ctx}}
}

func (err *decodeError) Error() string {
	return fmt.Sprintf("%v (decode path: %s)", err.what, strings.Join(err.stack, "<-"))
}
