package trie

// ID names a prior trie snapshot by its root hash, in the teacher's
// TrieID/ID idiom, for opening a Trie against that snapshot.
type ID struct {
	Root [32]byte
}

// TrieID constructs an identifier for a trie rooted at root.
func TrieID(root [32]byte) *ID {
	return &ID{Root: root}
}
