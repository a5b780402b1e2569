package engine

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
)

func newWazero(t *testing.T, cfg *Config) *WazeroBackend {
	t.Helper()
	ctx := context.Background()
	b, err := NewWazero(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWazero failed: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(ctx); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return b
}

func TestNewWazeroWithConfig(t *testing.T) {
	tests := []struct {
		cfg      *Config
		name     string
		features Features
	}{
		{nil, "nil config", FeatureExternRef},
		{&Config{}, "default config", FeatureExternRef},
		{&Config{MemoryLimitPages: 256}, "16MB limit", FeatureExternRef},
		{&Config{Interpreter: true}, "interpreter", FeatureExternRef},
		{&Config{EnableThreads: true}, "threads", FeatureExternRef | FeatureSharedMemory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newWazero(t, tc.cfg)
			if b.runtime == nil {
				t.Error("runtime should not be nil")
			}
			if b.Features() != tc.features {
				t.Errorf("Features() = %s, want %s", b.Features(), tc.features)
			}
		})
	}
}

func TestWazeroMemory(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1, Maximum: u64(2)})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if mem.Pages() != 1 || len(mem.Bytes()) != wasmjsapi.PageSize {
		t.Fatalf("pages = %d, bytes = %d", mem.Pages(), len(mem.Bytes()))
	}
	for i, c := range mem.Bytes() {
		if c != 0 {
			t.Fatalf("byte %d = %d, want 0", i, c)
		}
	}

	prev, err := mem.Grow(1)
	if err != nil || prev != 1 || mem.Pages() != 2 {
		t.Fatalf("Grow = %d, %v; pages %d", prev, err, mem.Pages())
	}
	if _, err := mem.Grow(1); errors.KindOf(err) != errors.KindLimitExceeded {
		t.Errorf("grow past maximum = %v", err)
	}
}

func TestWazeroMemory_Unsupported(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	if _, err := b.NewMemory(ctx, descriptor.Memory{Index: wasmjsapi.I64}); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("i64 memory = %v, want unsupported", err)
	}
	if _, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1, Maximum: u64(1), Shared: true}); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("shared memory without threads = %v, want unsupported", err)
	}
	if _, err := b.NewTable(ctx, descriptor.Table{Index: wasmjsapi.I64}, nil); errors.KindOf(err) != errors.KindUnsupported {
		t.Errorf("i64 table = %v, want unsupported", err)
	}
}

func TestWazeroMemory_Shared(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true, EnableThreads: true})

	mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1, Maximum: u64(2), Shared: true})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if !mem.Shared() || mem.Pages() != 1 {
		t.Errorf("shared = %v, pages = %d", mem.Shared(), mem.Pages())
	}
}

func TestWazeroMemory_ClampedMaximum(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true, MemoryLimitPages: 4})

	mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1, Maximum: u64(100)})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if maximum, _ := mem.Maximum(); maximum != 100 {
		t.Errorf("Maximum() = %d, want the declared 100", maximum)
	}
	if _, err := mem.Grow(4); errors.KindOf(err) != errors.KindLimitExceeded {
		t.Errorf("grow past allocation limit = %v", err)
	}
}

func TestWazeroTable_FuncRef(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	tbl, err := b.NewTable(ctx, descriptor.Table{Element: wasmjsapi.FuncRef, Initial: 3, Maximum: u64(4)}, nil)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if n, err := tbl.Len(); err != nil || n != 3 {
		t.Fatalf("Len() = %d, %v; want 3", n, err)
	}
	for i := uint64(0); i < 3; i++ {
		if v, err := tbl.Get(i); err != nil || v != nil {
			t.Errorf("Get(%d) = %v, %v", i, v, err)
		}
	}
	if _, err := tbl.Get(3); errors.KindOf(err) != errors.KindOutOfRange {
		t.Errorf("Get(len) = %v", err)
	}
	if err := tbl.Set(0, undef); errors.KindOf(err) != errors.KindInvalidArgument {
		t.Errorf("Set(non-null) = %v", err)
	}
	if err := tbl.Set(0, nil); err != nil {
		t.Errorf("Set(null) failed: %v", err)
	}

	prev, err := tbl.Grow(1, nil)
	if err != nil || prev != 3 {
		t.Fatalf("Grow = %d, %v", prev, err)
	}
	if n, _ := tbl.Len(); n != 4 {
		t.Errorf("Len() after grow = %d, want 4", n)
	}
	if _, err := tbl.Grow(1, nil); errors.KindOf(err) != errors.KindLimitExceeded {
		t.Errorf("grow past maximum = %v", err)
	}
}

func TestWazeroTable_ExternRef(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	tbl, err := b.NewTable(ctx, descriptor.Table{Element: wasmjsapi.ExternRef, Initial: 2}, undef)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if b.Refs().Len() != 1 {
		t.Errorf("refs = %d, want 1 shared handle", b.Refs().Len())
	}
	for i := uint64(0); i < 2; i++ {
		if v, err := tbl.Get(i); err != nil || v != undef {
			t.Errorf("Get(%d) = %v, %v", i, v, err)
		}
	}

	obj := &ref{"obj"}
	if err := tbl.Set(0, obj); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := tbl.Get(0); v != obj {
		t.Error("Get(0) should return the stored object")
	}
	if err := tbl.Set(1, nil); err != nil {
		t.Fatalf("Set(null) failed: %v", err)
	}
	if v, _ := tbl.Get(1); v != nil {
		t.Errorf("Get(1) = %v, want null", v)
	}
	// the undefined handle lost both slots; only obj remains
	if b.Refs().Len() != 1 {
		t.Errorf("refs = %d, want 1", b.Refs().Len())
	}

	grown := &ref{"grown"}
	prev, err := tbl.Grow(2, grown)
	if err != nil || prev != 2 {
		t.Fatalf("Grow = %d, %v", prev, err)
	}
	if v, _ := tbl.Get(3); v != grown {
		t.Errorf("Get(3) = %v, want %v", v, grown)
	}
}

type named interface{ Name() string }

func TestWazero_HandleCloseReleasesInstance(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	tbl, err := b.NewTable(ctx, descriptor.Table{Element: wasmjsapi.ExternRef, Initial: 2}, undef)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := tbl.Set(0, &ref{"x"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	memName, tblName := mem.(named).Name(), tbl.(named).Name()
	if !b.Instance(memName) || !b.Instance(tblName) {
		t.Fatal("instances should be alive before Close")
	}

	if err := mem.Close(ctx); err != nil {
		t.Fatalf("memory Close failed: %v", err)
	}
	if err := tbl.Close(ctx); err != nil {
		t.Fatalf("table Close failed: %v", err)
	}
	if b.Instance(memName) {
		t.Errorf("memory instance %q still registered after Close", memName)
	}
	if b.Instance(tblName) {
		t.Errorf("table instance %q still registered after Close", tblName)
	}
	if b.Refs().Len() != 0 {
		t.Errorf("refs = %d after table Close, want 0", b.Refs().Len())
	}
	if err := tbl.Close(ctx); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestWazero_RepeatedCreateCloseKeepsNoInstances(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	names := make(map[string]bool)
	for i := 0; i < 200; i++ {
		mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1})
		if err != nil {
			t.Fatalf("NewMemory %d failed: %v", i, err)
		}
		names[mem.(named).Name()] = true
		if err := mem.Close(ctx); err != nil {
			t.Fatalf("Close %d failed: %v", i, err)
		}
	}
	for name := range names {
		if b.Instance(name) {
			t.Errorf("instance %q survived Close", name)
		}
	}
}

func TestWazeroTable_ClosedHandle(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	tbl, err := b.NewTable(ctx, descriptor.Table{Element: wasmjsapi.ExternRef, Initial: 2}, undef)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := tbl.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := tbl.Len(); err != errClosed {
		t.Errorf("Len after Close = %v, want errClosed", err)
	}
	// a closed table must not report every index as out of range
	_, err = tbl.Get(0)
	if errors.KindOf(err) != errors.KindInternal {
		t.Errorf("Get after Close kind = %s, want internal", errors.KindOf(err))
	}
	if err := tbl.Set(0, nil); errors.KindOf(err) == errors.KindOutOfRange {
		t.Errorf("Set after Close = %v, want a closed-handle error", err)
	}
	if _, err := tbl.Grow(1, nil); err != errClosed {
		t.Errorf("Grow after Close = %v, want errClosed", err)
	}

	mem, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1})
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if err := mem.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if mem.Bytes() != nil {
		t.Error("Bytes() after Close should be nil")
	}
	if _, err := mem.Grow(1); err != errClosed {
		t.Errorf("Grow after Close = %v, want errClosed", err)
	}
}

func TestWazeroMemory_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true})

	if _, err := b.NewMemory(ctx, descriptor.Memory{Initial: DefaultMemoryLimitPages + 1}); errors.KindOf(err) != errors.KindLimitExceeded {
		t.Errorf("allocation over default limit = %v, want limit_exceeded", err)
	}
}

func TestWazero_ModuleCache(t *testing.T) {
	ctx := context.Background()
	b := newWazero(t, &Config{Interpreter: true, ModuleCacheSize: 2})

	for i := 0; i < 3; i++ {
		if _, err := b.NewMemory(ctx, descriptor.Memory{Initial: 1}); err != nil {
			t.Fatalf("NewMemory failed: %v", err)
		}
	}
	if b.CachedModules() != 1 {
		t.Errorf("cached = %d, want 1", b.CachedModules())
	}

	for i := uint64(2); i < 5; i++ {
		if _, err := b.NewMemory(ctx, descriptor.Memory{Initial: i}); err != nil {
			t.Fatalf("NewMemory failed: %v", err)
		}
	}
	if b.CachedModules() != 2 {
		t.Errorf("cached = %d, want cache bound 2", b.CachedModules())
	}
}

func TestWazero_CloseReleasesResources(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	b, err := NewWazero(ctx, &Config{Interpreter: true})
	if err != nil {
		t.Fatalf("NewWazero failed: %v", err)
	}
	if _, err := b.NewTable(ctx, descriptor.Table{Element: wasmjsapi.ExternRef, Initial: 1}, undef); err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := b.NewMemory(ctx, descriptor.Memory{}); err == nil {
		t.Error("NewMemory after Close should fail")
	}
}
