package trie

import "fmt"

// NibbleKey is an immutable view over a sequence of 4-bit nibbles plus a
// terminator flag, backed by a packed byte buffer addressed by a nibble
// offset. It is the half-byte-addressable key abstraction every node
// algebra operation in this package is expressed over.
//
// Nibble i (0-indexed from the start of the view) lives at absolute
// nibble position off+i in data: the high nibble of data[(off+i)/2] when
// (off+i) is even, the low nibble otherwise.
type NibbleKey struct {
	data []byte
	off  int
	term bool
}

// FromNormal wraps a raw byte key as a non-terminal nibble sequence of
// length 2*len(b).
func FromNormal(b []byte) NibbleKey {
	return NibbleKey{data: b, off: 0, term: false}
}

// Empty returns the zero-length, terminal nibble key. Other empty keys
// keep the flag they were built with: FromNormal of an empty slice, or a
// non-terminal key shifted past its last nibble, is not terminal.
func Empty() NibbleKey {
	return NibbleKey{term: true}
}

// SingleHex returns a one-nibble, non-terminal key containing h.
func SingleHex(h byte) NibbleKey {
	return NibbleKey{data: []byte{h & 0x0f}, off: 1, term: false}
}

// FromPacked parses the packed wire form produced by ToPacked: the flags
// live in the high nibble of the first byte (bit 0 = odd-offset, bit 1 =
// terminator), and the low nibble of the first byte carries the first
// data nibble only when the odd-offset bit is set.
func FromPacked(b []byte) (NibbleKey, error) {
	if len(b) == 0 {
		return NibbleKey{}, fmt.Errorf("trie: packed nibble key is empty")
	}
	flags := b[0] >> 4
	odd := flags&0x1 != 0
	term := flags&0x2 != 0
	off := 2
	if odd {
		off = 1
	}
	return NibbleKey{data: b, off: off, term: term}, nil
}

// Length reports the number of nibbles in the view.
func (k NibbleKey) Length() int {
	return len(k.data)*2 - k.off
}

// IsEmpty reports whether the view has zero nibbles.
func (k NibbleKey) IsEmpty() bool {
	return k.Length() == 0
}

// IsTerminal reports whether this key belongs to a leaf (KV-to-value) node.
func (k NibbleKey) IsTerminal() bool {
	return k.term
}

// GetHex returns the i-th nibble (0 <= i < Length()) measured from the
// current offset.
func (k NibbleKey) GetHex(i int) byte {
	pos := k.off + i
	b := k.data[pos/2]
	if pos%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// Shift returns a view over the same backing array with the offset
// advanced by n nibbles. It never allocates.
func (k NibbleKey) Shift(n int) NibbleKey {
	return NibbleKey{data: k.data, off: k.off + n, term: k.term}
}

// ToPacked produces the packed wire form: a flags byte (odd-offset bit,
// terminator bit) OR'd into the high nibble of the first output byte,
// followed by the remaining data nibbles packed two per byte.
func (k NibbleKey) ToPacked() []byte {
	length := k.Length()
	odd := length%2 == 1

	var flags byte
	if odd {
		flags |= 0x1
	}
	if k.term {
		flags |= 0x2
	}

	out := make([]byte, length/2+1)
	i := 0
	if odd {
		out[0] = k.GetHex(0)
		i = 1
	}
	o := 1
	for i < length {
		hi := k.GetHex(i)
		var lo byte
		if i+1 < length {
			lo = k.GetHex(i + 1)
		}
		out[o] = hi<<4 | lo
		o++
		i += 2
	}
	out[0] |= flags << 4
	return out
}

// MatchAndShift reports whether self starts with every nibble of other;
// on a match it returns self shifted past other's length.
func (k NibbleKey) MatchAndShift(other NibbleKey) (NibbleKey, bool) {
	ol := other.Length()
	if k.Length() < ol {
		return NibbleKey{}, false
	}
	if (k.off%2) == (other.off%2) {
		// Both views start on the same nibble parity, so everything past
		// the first (possibly odd) nibble lines up on byte boundaries:
		// compare those bytes directly instead of nibble by nibble.
		rem := ol
		if k.off%2 == 1 && rem > 0 {
			if k.GetHex(0) != other.GetHex(0) {
				return NibbleKey{}, false
			}
			rem--
		}
		nbytes := rem / 2
		kStart := (k.off + ol - rem) / 2
		oStart := (other.off + ol - rem) / 2
		for i := 0; i < nbytes; i++ {
			if k.data[kStart+i] != other.data[oStart+i] {
				return NibbleKey{}, false
			}
		}
		if rem%2 == 1 {
			if k.GetHex(ol-1) != other.GetHex(ol-1) {
				return NibbleKey{}, false
			}
		}
		return k.Shift(ol), true
	}
	for i := 0; i < ol; i++ {
		if k.GetHex(i) != other.GetHex(i) {
			return NibbleKey{}, false
		}
	}
	return k.Shift(ol), true
}

// Concat returns a freshly allocated nibble-concatenation of self and
// other. It fails if self is terminal, since a terminal key cannot be
// extended.
func (k NibbleKey) Concat(other NibbleKey) (NibbleKey, error) {
	if k.term {
		return NibbleKey{}, &InvalidStateError{Op: "Concat", Reason: "cannot extend a terminal NibbleKey"}
	}
	total := k.Length() + other.Length()
	out := make([]byte, (total+1)/2)
	res := NibbleKey{data: out, off: (len(out)*2 - total), term: other.term}
	base := res.off
	for i := 0; i < k.Length(); i++ {
		setHex(out, base+i, k.GetHex(i))
	}
	for i := 0; i < other.Length(); i++ {
		setHex(out, base+k.Length()+i, other.GetHex(i))
	}
	return res, nil
}

// CommonPrefix returns the longest shared nibble prefix of self and
// other; the result is always non-terminal.
func (k NibbleKey) CommonPrefix(other NibbleKey) NibbleKey {
	max := k.Length()
	if other.Length() < max {
		max = other.Length()
	}
	n := 0
	for n < max && k.GetHex(n) == other.GetHex(n) {
		n++
	}
	out := make([]byte, (n+1)/2)
	res := NibbleKey{data: out, off: len(out)*2 - n, term: false}
	for i := 0; i < n; i++ {
		setHex(out, res.off+i, k.GetHex(i))
	}
	return res
}

// Equal reports whether self and other have the same length, the same
// nibble sequence, and the same terminator flag.
func (k NibbleKey) Equal(other NibbleKey) bool {
	if k.Length() != other.Length() || k.term != other.term {
		return false
	}
	for i := 0; i < k.Length(); i++ {
		if k.GetHex(i) != other.GetHex(i) {
			return false
		}
	}
	return true
}

// hashKey returns a content-based representation of the nibble sequence
// plus terminator flag, suitable for use as a map key in tests. NibbleKey
// itself cannot be a Go map key, since it holds a slice, and two equal
// keys may differ in backing array and offset.
func (k NibbleKey) hashKey() string {
	buf := make([]byte, k.Length()+1)
	for i := 0; i < k.Length(); i++ {
		buf[i] = k.GetHex(i)
	}
	if k.term {
		buf[len(buf)-1] = 1
	}
	return string(buf)
}

// asTerminal returns a view over the same backing array with the
// terminator flag forced to true, used when wrapping a shifted key as a
// freshly constructed leaf (KV-to-value) record.
func (k NibbleKey) asTerminal() NibbleKey {
	return NibbleKey{data: k.data, off: k.off, term: true}
}

// asNonTerminal returns a view over the same backing array with the
// terminator flag forced to false, used when wrapping a shifted key as a
// freshly constructed extension (KV-to-node) record.
func (k NibbleKey) asNonTerminal() NibbleKey {
	return NibbleKey{data: k.data, off: k.off, term: false}
}

// setHex writes nibble v at absolute nibble position pos within buf.
func setHex(buf []byte, pos int, v byte) {
	idx := pos / 2
	if pos%2 == 0 {
		buf[idx] = (buf[idx] & 0x0f) | (v << 4)
	} else {
		buf[idx] = (buf[idx] & 0xf0) | (v & 0x0f)
	}
}

func (k NibbleKey) String() string {
	buf := make([]byte, k.Length())
	for i := range buf {
		buf[i] = "0123456789abcdef"[k.GetHex(i)]
	}
	if k.term {
		return string(buf) + "T"
	}
	return string(buf)
}
