package realm

import (
	"github.com/dop251/goja"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
)

// Bytes returns the bytes viewed by an ArrayBuffer or SharedArrayBuffer,
// nil once an ArrayBuffer is detached.
func (r *Realm) Bytes(v goja.Value) ([]byte, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	if data, ok := r.shared[obj]; ok {
		return data, true
	}
	if ab, ok := obj.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes(), true
	}
	return nil, false
}

// initBuffers adds the detached attribute to the runtime's ArrayBuffer and
// installs a SharedArrayBuffer whose instances view shared memory.
func (r *Realm) initBuffers() {
	r.ArrayBufferPrototype = r.vm.Get("ArrayBuffer").(*goja.Object).Get("prototype").(*goja.Object)
	if r.ArrayBufferPrototype.Get("detached") == nil {
		r.accessor(r.ArrayBufferPrototype, "detached", func(this goja.Value) goja.Value {
			obj, _ := this.(*goja.Object)
			if obj == nil {
				r.throw(receiverError("ArrayBuffer", "detached", this))
			}
			ab, ok := obj.Export().(goja.ArrayBuffer)
			if !ok {
				r.throw(receiverError("ArrayBuffer", "detached", this))
			}
			return r.vm.ToValue(ab.Detached())
		})
	}

	ctor := r.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		if call.NewTarget == nil {
			panic(r.vm.NewTypeError("Constructor SharedArrayBuffer requires 'new'"))
		}
		n, err := r.parser.Address(call.Argument(0), wasmjsapi.I32, "SharedArrayBuffer", "length")
		if err != nil {
			r.throw(err)
		}
		r.shared[call.This] = make([]byte, n)
		return call.This
	}).(*goja.Object)
	r.rename(ctor, "SharedArrayBuffer", 1)
	r.SharedArrayBufferPrototype = ctor.Get("prototype").(*goja.Object)
	_ = r.SharedArrayBufferPrototype.DefineDataPropertySymbol(goja.SymToStringTag, r.vm.ToValue("SharedArrayBuffer"),
		goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	r.accessor(r.SharedArrayBufferPrototype, "byteLength", func(this goja.Value) goja.Value {
		obj, _ := this.(*goja.Object)
		data, ok := r.shared[obj]
		if !ok {
			r.throw(receiverError("SharedArrayBuffer", "byteLength", this))
		}
		return r.vm.ToValue(len(data))
	})
	if r.vm.Get("SharedArrayBuffer") == nil {
		r.define(r.vm.GlobalObject(), "SharedArrayBuffer", ctor)
	}
}

// newBuffer wraps memory bytes. Non-shared buffers are detached by the
// memory that created them; shared ones keep their length.
func (r *Realm) newBuffer(data []byte, shared bool) *goja.Object {
	if !shared {
		return r.vm.ToValue(r.vm.NewArrayBuffer(data)).(*goja.Object)
	}
	buf := r.vm.NewObject()
	_ = buf.SetPrototype(r.SharedArrayBufferPrototype)
	r.shared[buf] = data
	return buf
}

func detach(buf *goja.Object) {
	if ab, ok := buf.Export().(goja.ArrayBuffer); ok {
		ab.Detach()
	}
}
