package trie

// Store is the content-addressed byte store backing a Trie. Nodes are
// addressed by the hash of their RLP serialization; the Trie never
// assumes Store is transactional, and writes made during Flush may be
// visible to other readers of Store before Flush returns.
//
// A reference in-memory implementation lives in the memstore package.
type Store interface {
	// Get returns the blob stored under hash, and whether it was found.
	Get(hash [32]byte) ([]byte, bool)

	// Put stores blob under hash. Overwriting an existing hash with
	// identical content is a no-op in practice, since content-addressing
	// guarantees identical bytes hash identically.
	Put(hash [32]byte, blob []byte)

	// Delete removes hash from the store, if present.
	Delete(hash [32]byte)
}

// Hasher computes the content address used to label a stored node's
// serialization. It must be deterministic and collision-resistant.
//
// Keccak256Hasher, backed by golang.org/x/crypto/sha3 via
// github.com/ethereum/go-ethereum/crypto, is the canonical
// Ethereum-compatible reference implementation.
type Hasher interface {
	Hash(blob []byte) [32]byte
}
