package wasmjsapi

// PageSize is the size of one linear memory page in bytes.
const PageSize = 65536

// Implementation limits applied by the embedding API.
const (
	MaxMemoryPages32 uint64 = 65536
	MaxMemoryPages64 uint64 = 1 << 48
	MaxTableLength   uint64 = 10_000_000
)

// IndexType selects 32-bit or 64-bit index semantics for a memory or table.
type IndexType uint8

const (
	I32 IndexType = iota
	I64
)

func (t IndexType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "unknown"
	}
}

// ParseIndexType resolves a width tag. Only "i32" and "i64" are recognized.
func ParseIndexType(s string) (IndexType, bool) {
	switch s {
	case "i32":
		return I32, true
	case "i64":
		return I64, true
	}
	return 0, false
}

// MaxMemoryPages returns the page limit for memories of this index type.
func (t IndexType) MaxMemoryPages() uint64 {
	if t == I64 {
		return MaxMemoryPages64
	}
	return MaxMemoryPages32
}

// ElemType is the reference type stored in a table.
type ElemType uint8

const (
	FuncRef ElemType = iota
	ExternRef
)

func (t ElemType) String() string {
	switch t {
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// ParseElemType resolves a table element tag; "anyfunc" is an alias of funcref.
func ParseElemType(s string) (ElemType, bool) {
	switch s {
	case "anyfunc", "funcref":
		return FuncRef, true
	case "externref":
		return ExternRef, true
	}
	return 0, false
}

// ValType returns the wasm binary encoding of the element's reference type.
func (t ElemType) ValType() byte {
	if t == ExternRef {
		return 0x6F
	}
	return 0x70
}
