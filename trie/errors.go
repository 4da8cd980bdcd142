package trie

import "fmt"

// ResolutionError reports that a node hash is held in memory (as a
// hashNode reference) but the backing Store has no entry under that
// hash. It surfaces to the caller of whichever Get/Put/Delete triggered
// the resolution; the package never retries or recovers internally.
type ResolutionError struct {
	Hash [32]byte
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("trie: node %x not found in store", e.Hash)
}

// InvalidStateError reports a logic bug or a corrupted store: extending
// a terminal NibbleKey via Concat, or a deletion whose recursive step
// produced a nil child where the algorithm requires a non-nil result.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("trie: invalid state in %s: %s", e.Op, e.Reason)
}
