package engine

import (
	"context"

	"go.uber.org/zap"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
)

// NativeBackend keeps memories and tables in Go slices.
type NativeBackend struct {
	cfg Config
}

// NewNative creates a native backend. A nil config uses defaults.
func NewNative(cfg *Config) *NativeBackend {
	b := &NativeBackend{}
	if cfg != nil {
		b.cfg = *cfg
	}
	return b
}

func (b *NativeBackend) Name() string { return NameNative }

func (b *NativeBackend) Features() Features { return AllFeatures }

func (b *NativeBackend) NewMemory(_ context.Context, d descriptor.Memory) (Memory, error) {
	if err := checkMemoryFeatures(b, d); err != nil {
		return nil, err
	}
	alloc := b.cfg.memoryLimit()
	if d.Initial > alloc {
		return nil, errors.LimitExceeded(errors.PhaseEngine, []string{"memory", "initial"},
			"cannot allocate %d pages: allocation limit is %d", d.Initial, alloc)
	}

	Logger().Debug("native memory",
		zap.Uint64("initial", d.Initial),
		zap.Stringer("index", d.Index),
		zap.Bool("shared", d.Shared))

	return &nativeMemory{
		desc:  d,
		limit: growLimit(d.Maximum, d.Index, alloc),
		buf:   make([]byte, d.Initial*wasmjsapi.PageSize),
	}, nil
}

func (b *NativeBackend) NewTable(_ context.Context, d descriptor.Table, init any) (Table, error) {
	if err := checkTableFeatures(b, d); err != nil {
		return nil, err
	}
	if err := checkFuncRef(d.Element, init, "table", "value"); err != nil {
		return nil, err
	}

	Logger().Debug("native table",
		zap.Uint64("initial", d.Initial),
		zap.Stringer("index", d.Index),
		zap.Stringer("element", d.Element))

	elems := make([]any, d.Initial)
	for i := range elems {
		elems[i] = init
	}
	return &nativeTable{desc: d, elems: elems}, nil
}

func (b *NativeBackend) Close(context.Context) error { return nil }

type nativeMemory struct {
	desc   descriptor.Memory
	limit  uint64
	buf    []byte
	closed bool
}

func (m *nativeMemory) Index() wasmjsapi.IndexType { return m.desc.Index }
func (m *nativeMemory) Shared() bool               { return m.desc.Shared }
func (m *nativeMemory) Bytes() []byte              { return m.buf }

func (m *nativeMemory) Close(context.Context) error {
	m.buf, m.closed = nil, true
	return nil
}

func (m *nativeMemory) Pages() uint64 {
	return uint64(len(m.buf)) / wasmjsapi.PageSize
}

func (m *nativeMemory) Maximum() (uint64, bool) {
	if m.desc.Maximum == nil {
		return 0, false
	}
	return *m.desc.Maximum, true
}

func (m *nativeMemory) Grow(delta uint64) (uint64, error) {
	if m.closed {
		return 0, errClosed
	}
	prev := m.Pages()
	if addExceeds(prev, delta, m.limit) {
		return 0, growError("memory", prev, delta, m.limit)
	}
	if delta == 0 {
		return prev, nil
	}
	buf := make([]byte, (prev+delta)*wasmjsapi.PageSize)
	copy(buf, m.buf)
	m.buf = buf
	return prev, nil
}

type nativeTable struct {
	desc   descriptor.Table
	elems  []any
	closed bool
}

func (t *nativeTable) Index() wasmjsapi.IndexType  { return t.desc.Index }
func (t *nativeTable) Element() wasmjsapi.ElemType { return t.desc.Element }

func (t *nativeTable) Len() (uint64, error) {
	if t.closed {
		return 0, errClosed
	}
	return uint64(len(t.elems)), nil
}

func (t *nativeTable) Close(context.Context) error {
	t.elems, t.closed = nil, true
	return nil
}

func (t *nativeTable) Maximum() (uint64, bool) {
	if t.desc.Maximum == nil {
		return 0, false
	}
	return *t.desc.Maximum, true
}

func (t *nativeTable) Get(i uint64) (any, error) {
	n, err := t.Len()
	if err != nil {
		return nil, err
	}
	if i >= n {
		return nil, errors.OutOfRange(errors.PhaseAccess, []string{"table", "get"}, i, n)
	}
	return t.elems[i], nil
}

func (t *nativeTable) Set(i uint64, v any) error {
	n, err := t.Len()
	if err != nil {
		return err
	}
	if i >= n {
		return errors.OutOfRange(errors.PhaseAccess, []string{"table", "set"}, i, n)
	}
	if err := checkFuncRef(t.desc.Element, v, "table", "set"); err != nil {
		return err
	}
	t.elems[i] = v
	return nil
}

func (t *nativeTable) Grow(delta uint64, init any) (uint64, error) {
	prev, err := t.Len()
	if err != nil {
		return 0, err
	}
	if err := checkFuncRef(t.desc.Element, init, "table", "grow"); err != nil {
		return 0, err
	}
	limit := tableLimit(t.desc.Maximum)
	if addExceeds(prev, delta, limit) {
		return 0, growError("table", prev, delta, limit)
	}
	for i := uint64(0); i < delta; i++ {
		t.elems = append(t.elems, init)
	}
	return prev, nil
}

func tableLimit(maximum *uint64) uint64 {
	if maximum != nil && *maximum < wasmjsapi.MaxTableLength {
		return *maximum
	}
	return wasmjsapi.MaxTableLength
}
