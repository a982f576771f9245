package jzc

// Memory represents a running module's linear memory, as seen from the host.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	ReadF64(offset uint32) (float64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a module's linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator mirrors the bump allocator a compiled module exports: no
// per-object free, only a mass reset of the arena.
type Allocator interface {
	Alloc(typ uint32, length uint32) (uint64, error)
	Reset() error
}
