package engine

import (
	"context"
	"strings"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
)

// Features is a set of optional capabilities a backend supports.
type Features uint32

const (
	FeatureMemory64 Features = 1 << iota
	FeatureTable64
	FeatureSharedMemory
	FeatureExternRef
)

// AllFeatures is every feature known to this package.
const AllFeatures = FeatureMemory64 | FeatureTable64 | FeatureSharedMemory | FeatureExternRef

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureMemory64, "memory64"},
	{FeatureTable64, "table64"},
	{FeatureSharedMemory, "shared-memory"},
	{FeatureExternRef, "externref"},
}

// Has reports whether every feature in want is present.
func (f Features) Has(want Features) bool {
	return f&want == want
}

func (f Features) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseFeature resolves a feature by name.
func ParseFeature(name string) (Features, bool) {
	for _, fn := range featureNames {
		if fn.name == name {
			return fn.f, true
		}
	}
	return 0, false
}

// Backend allocates live memories and tables.
// Implementations are safe for concurrent NewMemory and NewTable calls.
type Backend interface {
	Name() string
	Features() Features
	NewMemory(ctx context.Context, d descriptor.Memory) (Memory, error)
	// NewTable creates a table whose elements all start as init.
	NewTable(ctx context.Context, d descriptor.Table, init any) (Table, error)
	Close(ctx context.Context) error
}

// Memory is a live linear memory.
type Memory interface {
	Index() wasmjsapi.IndexType
	Shared() bool
	// Pages returns the current size in 64KiB pages.
	Pages() uint64
	Maximum() (uint64, bool)
	// Bytes returns the current contents. The slice is invalidated by Grow.
	Bytes() []byte
	// Grow adds delta pages and returns the previous page count.
	Grow(delta uint64) (uint64, error)
	// Close releases the memory. Bytes returns nil afterwards.
	Close(ctx context.Context) error
}

// Table is a live table of host values. Elements are opaque to the
// backend; nil is the null reference and the only value a funcref table
// accepts.
type Table interface {
	Index() wasmjsapi.IndexType
	Element() wasmjsapi.ElemType
	Len() (uint64, error)
	Maximum() (uint64, bool)
	Get(i uint64) (any, error)
	Set(i uint64, v any) error
	// Grow appends delta copies of init and returns the previous length.
	Grow(delta uint64, init any) (uint64, error)
	// Close releases the table and every element reference it holds.
	Close(ctx context.Context) error
}

// checkMemoryFeatures rejects descriptors the backend cannot represent.
func checkMemoryFeatures(b Backend, d descriptor.Memory) error {
	if d.Index == wasmjsapi.I64 && !b.Features().Has(FeatureMemory64) {
		return errors.Unsupported(errors.PhaseEngine, b.Name()+": i64 memories")
	}
	if d.Shared && !b.Features().Has(FeatureSharedMemory) {
		return errors.Unsupported(errors.PhaseEngine, b.Name()+": shared memories")
	}
	return nil
}

func checkTableFeatures(b Backend, d descriptor.Table) error {
	if d.Index == wasmjsapi.I64 && !b.Features().Has(FeatureTable64) {
		return errors.Unsupported(errors.PhaseEngine, b.Name()+": i64 tables")
	}
	if d.Element == wasmjsapi.ExternRef && !b.Features().Has(FeatureExternRef) {
		return errors.Unsupported(errors.PhaseEngine, b.Name()+": externref tables")
	}
	return nil
}

// growLimit returns the page ceiling for a memory: its declared maximum when
// present, else the index type limit, never above the allocation limit.
func growLimit(maximum *uint64, it wasmjsapi.IndexType, alloc uint64) uint64 {
	limit := it.MaxMemoryPages()
	if maximum != nil && *maximum < limit {
		limit = *maximum
	}
	if alloc < limit {
		limit = alloc
	}
	return limit
}

func checkFuncRef(et wasmjsapi.ElemType, v any, path ...string) error {
	if et == wasmjsapi.FuncRef && v != nil {
		return errors.InvalidArgument(errors.PhaseAccess, path, "funcref tables only hold null, got %T", v)
	}
	return nil
}

var errClosed = errors.Internal(errors.PhaseAccess, "handle closed", nil)

func growError(what string, current, delta, limit uint64) error {
	return errors.LimitExceeded(errors.PhaseAccess, []string{what, "grow"},
		"cannot grow by %d from %d: limit is %d", delta, current, limit)
}

// addExceeds reports whether a+b overflows or exceeds limit.
func addExceeds(a, b, limit uint64) bool {
	return a+b < a || a+b > limit
}

// Backend names accepted by New.
const (
	NameNative = "native"
	NameWazero = "wazero"
)

// Names lists the backends New can create.
func Names() []string {
	return []string{NameNative, NameWazero}
}

// New creates a backend by name.
func New(ctx context.Context, name string, cfg *Config) (Backend, error) {
	switch name {
	case NameNative:
		return NewNative(cfg), nil
	case NameWazero:
		return NewWazero(ctx, cfg)
	}
	return nil, errors.InvalidArgument(errors.PhaseConfig, []string{"backend"}, "unknown backend %q", name)
}
