package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/resource"
)

// WazeroBackend materializes every memory and table inside a wazero module
// instance.
type WazeroBackend struct {
	runtime   wazero.Runtime
	cache     *lru.Cache[string, wazero.CompiledModule]
	refs      *resource.Table
	cfg       Config
	features  Features
	compileMu sync.Mutex
	seq       atomic.Uint64
	closed    atomic.Bool
}

// NewWazero creates a wazero-backed backend. A nil config uses defaults.
func NewWazero(ctx context.Context, cfg *Config) (*WazeroBackend, error) {
	b := &WazeroBackend{features: FeatureExternRef}
	if cfg != nil {
		b.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if b.cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	runtimeCfg = runtimeCfg.WithMemoryLimitPages(uint32(b.cfg.memoryLimit()))
	if b.cfg.EnableThreads {
		runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		b.features |= FeatureSharedMemory
	}

	cache, err := lru.NewWithEvict(b.cfg.cacheSize(), func(_ string, m wazero.CompiledModule) {
		_ = m.Close(context.Background())
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInternal, err, "create module cache")
	}

	b.cache = cache
	b.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	b.refs = resource.NewTable()
	b.refs.Subscribe(refLogger{})

	Logger().Debug("wazero backend created",
		zap.Bool("interpreter", b.cfg.Interpreter),
		zap.Bool("threads", b.cfg.EnableThreads),
		zap.Int("cache_size", b.cfg.cacheSize()))

	return b, nil
}

func (b *WazeroBackend) Name() string { return NameWazero }

func (b *WazeroBackend) Features() Features { return b.features }

// Refs exposes the externref handle table.
func (b *WazeroBackend) Refs() *resource.Table { return b.refs }

// CachedModules returns the number of compiled modules in the cache.
func (b *WazeroBackend) CachedModules() int { return b.cache.Len() }

func (b *WazeroBackend) compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	key := string(bin)
	if m, ok := b.cache.Get(key); ok {
		return m, nil
	}

	b.compileMu.Lock()
	defer b.compileMu.Unlock()

	if m, ok := b.cache.Get(key); ok {
		return m, nil
	}

	m, err := b.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Instantiation(fmt.Errorf("compile: %w", err))
	}
	b.cache.Add(key, m)
	Logger().Debug("compiled resource module", zap.Int("size", len(bin)))
	return m, nil
}

func (b *WazeroBackend) instantiate(ctx context.Context, kind string, bin []byte) (api.Module, error) {
	if b.closed.Load() {
		return nil, errors.Internal(errors.PhaseEngine, "backend closed", nil)
	}
	compiled, err := b.compile(ctx, bin)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%d", kind, b.seq.Add(1))
	mod, err := b.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Instantiation(fmt.Errorf("instantiate %s: %w", name, err))
	}
	return mod, nil
}

func (b *WazeroBackend) NewMemory(ctx context.Context, d descriptor.Memory) (Memory, error) {
	if err := checkMemoryFeatures(b, d); err != nil {
		return nil, err
	}
	alloc := b.cfg.memoryLimit()
	if d.Initial > alloc {
		return nil, errors.LimitExceeded(errors.PhaseEngine, []string{"memory", "initial"},
			"cannot allocate %d pages: allocation limit is %d", d.Initial, alloc)
	}

	// wazero refuses modules declaring a maximum above its page limit.
	maximum := d.Maximum
	if maximum != nil && *maximum > alloc {
		maximum = &alloc
	}

	mod, err := b.instantiate(ctx, "memory", memoryModule(d.Initial, maximum, d.Shared))
	if err != nil {
		return nil, err
	}
	mem := mod.ExportedMemory(memoryExportKey)
	if mem == nil {
		return nil, closeOnError(ctx, mod, errors.Internal(errors.PhaseEngine, "memory export missing", nil))
	}

	return &wazeroMemory{
		desc:  d,
		mod:   mod,
		mem:   mem,
		limit: growLimit(d.Maximum, d.Index, alloc),
	}, nil
}

func (b *WazeroBackend) NewTable(ctx context.Context, d descriptor.Table, init any) (Table, error) {
	if err := checkTableFeatures(b, d); err != nil {
		return nil, err
	}
	if err := checkFuncRef(d.Element, init, "table", "value"); err != nil {
		return nil, err
	}

	mod, err := b.instantiate(ctx, "table", tableModule(d.Element, d.Initial, d.Maximum))
	if err != nil {
		return nil, err
	}

	t := &wazeroTable{desc: d, mod: mod, refs: b.refs, fns: make(map[string]api.Function, 5)}
	for _, name := range tableExports(d.Element) {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, closeOnError(ctx, mod, errors.Internal(errors.PhaseEngine, "table export "+name+" missing", nil))
		}
		t.fns[name] = fn
	}

	if d.Element == wasmjsapi.ExternRef && init != nil && d.Initial > 0 {
		h := b.refs.Insert(init, uint32(d.Initial))
		if _, err := t.call("fill", 0, externref(h), d.Initial); err != nil {
			for i := uint64(0); i < d.Initial; i++ {
				t.refs.Release(h)
			}
			return nil, closeOnError(ctx, mod, err)
		}
	}
	return t, nil
}

// closeOnError closes a module whose handle is never returned.
func closeOnError(ctx context.Context, mod api.Module, err error) error {
	if cerr := mod.Close(ctx); cerr != nil {
		Logger().Warn("close failed module", zap.String("module", mod.Name()), zap.Error(cerr))
	}
	return err
}

// Instance reports whether a module instance of that name is still alive.
func (b *WazeroBackend) Instance(name string) bool {
	return b.runtime.Module(name) != nil
}

// Close purges the module cache and closes the runtime with every instance.
func (b *WazeroBackend) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cache.Purge()
	if err := b.refs.Close(); err != nil {
		return err
	}
	return b.runtime.Close(ctx)
}

func tableExports(elem wasmjsapi.ElemType) []string {
	if elem == wasmjsapi.ExternRef {
		return []string{"get", "set", "grow", "size", "fill"}
	}
	return []string{"is_null", "set_null", "grow", "size"}
}

func externref(h resource.Handle) uint64 {
	return api.EncodeExternref(uintptr(h))
}

type wazeroMemory struct {
	desc  descriptor.Memory
	mod   api.Module
	mem   api.Memory
	limit uint64
}

func (m *wazeroMemory) Index() wasmjsapi.IndexType { return m.desc.Index }
func (m *wazeroMemory) Shared() bool               { return m.desc.Shared }

// Name returns the name of the module instance backing the memory.
func (m *wazeroMemory) Name() string { return m.mod.Name() }

func (m *wazeroMemory) Close(ctx context.Context) error {
	return m.mod.Close(ctx)
}

func (m *wazeroMemory) Pages() uint64 {
	return uint64(m.mem.Size()) / wasmjsapi.PageSize
}

func (m *wazeroMemory) Maximum() (uint64, bool) {
	if m.desc.Maximum == nil {
		return 0, false
	}
	return *m.desc.Maximum, true
}

func (m *wazeroMemory) Bytes() []byte {
	if m.mod.IsClosed() {
		return nil
	}
	buf, ok := m.mem.Read(0, m.mem.Size())
	if !ok {
		return nil
	}
	return buf
}

func (m *wazeroMemory) Grow(delta uint64) (uint64, error) {
	if m.mod.IsClosed() {
		return 0, errClosed
	}
	prev := m.Pages()
	if addExceeds(prev, delta, m.limit) {
		return 0, growError("memory", prev, delta, m.limit)
	}
	prev32, ok := m.mem.Grow(uint32(delta))
	if !ok {
		return 0, growError("memory", prev, delta, m.limit)
	}
	return uint64(prev32), nil
}

type wazeroTable struct {
	desc descriptor.Table
	mod  api.Module
	refs *resource.Table
	fns  map[string]api.Function
}

func (t *wazeroTable) call(name string, params ...uint64) ([]uint64, error) {
	if t.mod.IsClosed() {
		return nil, errClosed
	}
	res, err := t.fns[name].Call(context.Background(), params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAccess, errors.KindInternal, err, "table "+name)
	}
	return res, nil
}

func (t *wazeroTable) Index() wasmjsapi.IndexType  { return t.desc.Index }
func (t *wazeroTable) Element() wasmjsapi.ElemType { return t.desc.Element }

// Name returns the name of the module instance backing the table.
func (t *wazeroTable) Name() string { return t.mod.Name() }

func (t *wazeroTable) Len() (uint64, error) {
	res, err := t.call("size")
	if err != nil {
		return 0, err
	}
	return uint64(uint32(res[0])), nil
}

func (t *wazeroTable) Maximum() (uint64, bool) {
	if t.desc.Maximum == nil {
		return 0, false
	}
	return *t.desc.Maximum, true
}

// Close drops the references held by every externref slot, then closes the
// instance.
func (t *wazeroTable) Close(ctx context.Context) error {
	if t.mod.IsClosed() {
		return nil
	}
	if t.desc.Element == wasmjsapi.ExternRef {
		n, err := t.Len()
		if err != nil {
			return multierr.Append(err, t.mod.Close(ctx))
		}
		for i := uint64(0); i < n; i++ {
			h, err := t.handleAt(i)
			if err != nil {
				return multierr.Append(err, t.mod.Close(ctx))
			}
			if h != 0 {
				t.refs.Release(h)
			}
		}
	}
	return t.mod.Close(ctx)
}

func (t *wazeroTable) handleAt(i uint64) (resource.Handle, error) {
	res, err := t.call("get", i)
	if err != nil {
		return 0, err
	}
	return resource.Handle(api.DecodeExternref(res[0])), nil
}

// bounds returns the current length, failing when i is not below it.
func (t *wazeroTable) bounds(i uint64, method string) (uint64, error) {
	n, err := t.Len()
	if err != nil {
		return 0, err
	}
	if i >= n {
		return n, errors.OutOfRange(errors.PhaseAccess, []string{"table", method}, i, n)
	}
	return n, nil
}

func (t *wazeroTable) Get(i uint64) (any, error) {
	if _, err := t.bounds(i, "get"); err != nil {
		return nil, err
	}

	if t.desc.Element == wasmjsapi.FuncRef {
		res, err := t.call("is_null", i)
		if err != nil {
			return nil, err
		}
		if res[0] != 1 {
			return nil, errors.Internal(errors.PhaseAccess, "non-null funcref in table", nil)
		}
		return nil, nil
	}

	h, err := t.handleAt(i)
	if err != nil || h == 0 {
		return nil, err
	}
	v, ok := t.refs.Get(h)
	if !ok {
		return nil, errors.Internal(errors.PhaseAccess, fmt.Sprintf("dangling externref handle %d", h), nil)
	}
	return v, nil
}

func (t *wazeroTable) Set(i uint64, v any) error {
	if _, err := t.bounds(i, "set"); err != nil {
		return err
	}
	if err := checkFuncRef(t.desc.Element, v, "table", "set"); err != nil {
		return err
	}

	if t.desc.Element == wasmjsapi.FuncRef {
		_, err := t.call("set_null", i)
		return err
	}

	old, err := t.handleAt(i)
	if err != nil {
		return err
	}
	var h resource.Handle
	if v != nil {
		h = t.refs.Insert(v, 1)
	}
	if _, err := t.call("set", i, externref(h)); err != nil {
		if h != 0 {
			t.refs.Release(h)
		}
		return err
	}
	if old != 0 {
		t.refs.Release(old)
	}
	return nil
}

func (t *wazeroTable) Grow(delta uint64, init any) (uint64, error) {
	prev, err := t.Len()
	if err != nil {
		return 0, err
	}
	limit := tableLimit(t.desc.Maximum)
	if addExceeds(prev, delta, limit) {
		return 0, growError("table", prev, delta, limit)
	}
	if err := checkFuncRef(t.desc.Element, init, "table", "grow"); err != nil {
		return 0, err
	}

	if t.desc.Element == wasmjsapi.FuncRef {
		res, err := t.call("grow", delta)
		if err != nil {
			return 0, err
		}
		return growResult(res[0], prev, delta, limit)
	}

	var h resource.Handle
	if init != nil && delta > 0 {
		h = t.refs.Insert(init, uint32(delta))
	}
	res, err := t.call("grow", externref(h), delta)
	if err == nil {
		var prev32 uint64
		if prev32, err = growResult(res[0], prev, delta, limit); err == nil {
			return prev32, nil
		}
	}
	for i := uint64(0); h != 0 && i < delta; i++ {
		t.refs.Release(h)
	}
	return 0, err
}

// growResult decodes the i32 returned by table.grow, where -1 means failure.
func growResult(raw, prev, delta, limit uint64) (uint64, error) {
	if int32(uint32(raw)) == -1 {
		return 0, growError("table", prev, delta, limit)
	}
	return uint64(uint32(raw)), nil
}

// refLogger traces externref handle churn.
type refLogger struct{}

func (refLogger) OnResourceEvent(e resource.Event) {
	Logger().Debug("externref handle",
		zap.Stringer("event", e.Type),
		zap.Uint32("handle", uint32(e.Handle)),
		zap.Uint32("refs", e.Refs))
}
