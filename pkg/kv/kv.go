package kv

// Store defines the interface for a slot store: a flat map of named string
// slots. Implementations can be swapped out, allowing for different storage
// backends (e.g., in-memory, on-disk, Raft-replicated).
type Store interface {
	// Get retrieves the value held by the named slot.
	// Returns found=false if the slot was never written, which is
	// distinct from a slot holding the empty string.
	Get(name string) (value string, found bool, err error)

	// Set stores value in the named slot, overwriting any prior value.
	// Returns an error if the underlying medium rejects the write.
	Set(name, value string) error

	// Delete removes a slot.
	// Returns an error if the operation fails.
	Delete(name string) error
}

// Dumper is implemented by stores that can copy out and replace their
// entire contents, e.g. for Raft snapshots.
type Dumper interface {
	// Dump returns a copy of every slot.
	Dump() (map[string]string, error)

	// Replace discards all slots and loads the given ones.
	Replace(slots map[string]string) error
}
