package realm

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/engine"
)

// memoryState is the internal slot of a Memory handle.
type memoryState struct {
	mem    engine.Memory
	buffer *goja.Object
}

// MemoryOf returns the engine memory behind a Memory handle.
func (r *Realm) MemoryOf(v goja.Value) (engine.Memory, bool) {
	obj, _ := v.(*goja.Object)
	st, ok := r.memories[obj]
	if !ok {
		return nil, false
	}
	return st.mem, true
}

func (r *Realm) initMemory() {
	r.Memory, r.MemoryPrototype = r.constructor("Memory", r.constructMemory)

	r.accessor(r.MemoryPrototype, "buffer", func(this goja.Value) goja.Value {
		return r.buffer(r.memoryOf(this, "buffer"))
	})
	r.method(r.MemoryPrototype, "grow", 1, func(call goja.FunctionCall) goja.Value {
		return r.growMemory(r.memoryOf(call.This, "grow"), call.Argument(0))
	})
	r.method(r.MemoryPrototype, "type", 0, func(call goja.FunctionCall) goja.Value {
		return r.memoryType(r.memoryOf(call.This, "type").mem)
	})
}

func (r *Realm) constructMemory(call goja.ConstructorCall) *goja.Object {
	d, err := r.parser.Memory(call.Argument(0))
	if err != nil {
		r.log.Debug("memory descriptor rejected", zap.Error(err))
		r.throw(err)
	}

	mem, err := r.backend.NewMemory(r.ctx, d)
	if err != nil {
		r.throw(err)
	}
	r.handles = append(r.handles, mem)

	r.log.Debug("memory constructed",
		zap.Uint64("initial", d.Initial),
		zap.Stringer("index", d.Index),
		zap.Bool("shared", d.Shared))

	r.memories[call.This] = &memoryState{mem: mem}
	return call.This
}

// buffer returns the cached buffer object, creating it on first access.
func (r *Realm) buffer(st *memoryState) *goja.Object {
	if st.buffer == nil {
		st.buffer = r.newBuffer(st.mem.Bytes(), st.mem.Shared())
	}
	return st.buffer
}

func (r *Realm) growMemory(st *memoryState, arg goja.Value) goja.Value {
	it := st.mem.Index()
	delta, err := r.parser.Address(arg, it, "Memory", "grow", "delta")
	if err != nil {
		r.throw(err)
	}
	prev, err := st.mem.Grow(delta)
	if err != nil {
		r.throw(err)
	}

	// A non-shared buffer is detached by every successful grow.
	if st.buffer != nil {
		if !st.mem.Shared() {
			detach(st.buffer)
		}
		st.buffer = nil
	}
	return descriptor.FromAddress(r.vm, prev, it)
}

func (r *Realm) memoryType(mem engine.Memory) *goja.Object {
	it := mem.Index()
	t := r.vm.NewObject()
	_ = t.Set("minimum", descriptor.FromAddress(r.vm, mem.Pages(), it))
	if maximum, ok := mem.Maximum(); ok {
		_ = t.Set("maximum", descriptor.FromAddress(r.vm, maximum, it))
	}
	_ = t.Set("shared", mem.Shared())
	_ = t.Set("index", it.String())
	return t
}

func (r *Realm) memoryOf(this goja.Value, method string) *memoryState {
	obj, _ := this.(*goja.Object)
	st, ok := r.memories[obj]
	if !ok {
		r.throw(receiverError("Memory", method, this))
	}
	return st
}
