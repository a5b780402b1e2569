package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs for the sections this package encodes.
// Sections must appear in increasing order by ID.
const (
	SectionType     byte = 1  // Type section (function signatures)
	SectionFunction byte = 3  // Function section (type indices)
	SectionTable    byte = 4  // Table section
	SectionMemory   byte = 5  // Memory section
	SectionExport   byte = 7  // Export section
	SectionCode     byte = 10 // Code section (function bodies)
)

// Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
)

// Value type encodings.
const (
	ValI32     ValType = 0x7F // 32-bit integer
	ValI64     ValType = 0x7E // 64-bit integer
	ValFuncRef ValType = 0x70 // Function reference
	ValExtern  ValType = 0x6F // External reference
)

// Opcodes used by table accessor bodies.
const (
	OpEnd       byte = 0x0B
	OpLocalGet  byte = 0x20
	OpTableGet  byte = 0x25
	OpTableSet  byte = 0x26
	OpRefNull   byte = 0xD0
	OpRefIsNull byte = 0xD1

	OpPrefixMisc byte = 0xFC // Misc: bulk memory and table ops
)

// Misc opcodes (0xFC prefix)
const (
	MiscTableGrow uint32 = 0x0F
	MiscTableSize uint32 = 0x10
	MiscTableFill uint32 = 0x11
)

// Limits flags
const (
	LimitsNoMax    byte = 0x00
	LimitsHasMax   byte = 0x01
	LimitsShared   byte = 0x02
	LimitsMemory64 byte = 0x04
)

// FuncTypeByte introduces a function type in the type section.
const FuncTypeByte byte = 0x60
