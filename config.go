package memstore

// Config controls the knobs spec.md §6 recognises. The zero-value Config
// is usable and leaves the slab allocator disabled (UseSlabAllocator is
// false); DefaultConfig enables it.
type Config struct {
	// UseSlabAllocator enables the slab allocator for non-upsert writes.
	UseSlabAllocator bool
	// SlabChunkSize is the byte size of each arena chunk. Zero selects
	// DefaultChunkSize.
	SlabChunkSize int
	// SlabMaxSlabSize bounds the largest single allocation the slab
	// allocator will satisfy before a cell falls back to its own buffer.
	// Zero selects DefaultMaxSlabSize.
	SlabMaxSlabSize int
}

// DefaultConfig returns the configuration spec.md §6 describes as the
// default: slab allocation enabled, default chunk/slab sizing.
func DefaultConfig() Config {
	return Config{
		UseSlabAllocator: true,
		SlabChunkSize:    DefaultChunkSize,
		SlabMaxSlabSize:  DefaultMaxSlabSize,
	}
}
