package realm

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
)

// tableState is the internal slot of a Table handle.
type tableState struct {
	tbl engine.Table
}

// TableOf returns the engine table behind a Table handle.
func (r *Realm) TableOf(v goja.Value) (engine.Table, bool) {
	obj, _ := v.(*goja.Object)
	st, ok := r.tables[obj]
	if !ok {
		return nil, false
	}
	return st.tbl, true
}

// DefaultElement is the value of table slots filled without an explicit
// value: null for funcref, undefined for externref.
func DefaultElement(et wasmjsapi.ElemType) goja.Value {
	if et == wasmjsapi.ExternRef {
		return goja.Undefined()
	}
	return goja.Null()
}

func (r *Realm) initTable() {
	r.Table, r.TablePrototype = r.constructor("Table", r.constructTable)

	r.accessor(r.TablePrototype, "length", func(this goja.Value) goja.Value {
		st := r.tableOf(this, "length")
		n, err := st.tbl.Len()
		if err != nil {
			r.throw(err)
		}
		return descriptor.FromAddress(r.vm, n, st.tbl.Index())
	})
	r.method(r.TablePrototype, "get", 1, func(call goja.FunctionCall) goja.Value {
		st := r.tableOf(call.This, "get")
		i := r.index(call.Argument(0), st.tbl.Index(), "get", "index")
		v, err := st.tbl.Get(i)
		if err != nil {
			r.throw(err)
		}
		return toValue(v)
	})
	r.method(r.TablePrototype, "set", 1, func(call goja.FunctionCall) goja.Value {
		st := r.tableOf(call.This, "set")
		i := r.index(call.Argument(0), st.tbl.Index(), "set", "index")
		v := r.element(call, 1, st.tbl.Element(), "set")
		if err := st.tbl.Set(i, v); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	r.method(r.TablePrototype, "grow", 1, func(call goja.FunctionCall) goja.Value {
		st := r.tableOf(call.This, "grow")
		it := st.tbl.Index()
		delta := r.index(call.Argument(0), it, "grow", "delta")
		v := r.element(call, 1, st.tbl.Element(), "grow")
		prev, err := st.tbl.Grow(delta, v)
		if err != nil {
			r.throw(err)
		}
		return descriptor.FromAddress(r.vm, prev, it)
	})
	r.method(r.TablePrototype, "type", 0, func(call goja.FunctionCall) goja.Value {
		return r.tableType(r.tableOf(call.This, "type").tbl)
	})
}

func (r *Realm) constructTable(call goja.ConstructorCall) *goja.Object {
	d, err := r.parser.Table(call.Argument(0))
	if err != nil {
		r.log.Debug("table descriptor rejected", zap.Error(err))
		r.throw(err)
	}
	init, err := elementArg(call.Argument(1), d.Element, "constructor")
	if err != nil {
		r.throw(err)
	}

	tbl, err := r.backend.NewTable(r.ctx, d, init)
	if err != nil {
		r.throw(err)
	}
	r.handles = append(r.handles, tbl)

	r.log.Debug("table constructed",
		zap.Uint64("initial", d.Initial),
		zap.Stringer("index", d.Index),
		zap.Stringer("element", d.Element))

	r.tables[call.This] = &tableState{tbl: tbl}
	return call.This
}

func (r *Realm) index(v goja.Value, it wasmjsapi.IndexType, method, arg string) uint64 {
	i, err := r.parser.Address(v, it, "Table", method, arg)
	if err != nil {
		r.throw(err)
	}
	return i
}

func (r *Realm) element(call goja.FunctionCall, i int, et wasmjsapi.ElemType, method string) any {
	v, err := elementArg(call.Argument(i), et, method)
	if err != nil {
		r.throw(err)
	}
	return v
}

// elementArg converts an optional element argument to an engine element.
// Missing or undefined arguments take the element type's default. funcref
// slots only accept null because no exported functions exist in a realm.
func elementArg(v goja.Value, et wasmjsapi.ElemType, method string) (any, error) {
	if v == nil || goja.IsUndefined(v) {
		v = DefaultElement(et)
	}
	if goja.IsNull(v) {
		return nil, nil
	}
	if et == wasmjsapi.FuncRef {
		return nil, errors.New(errors.PhaseConvert, errors.KindInvalidArgument).
			Path("Table", method, "value").
			Value(descriptor.Format(v)).
			Detail("%s is not a function or null", descriptor.Format(v)).
			Build()
	}
	return v, nil
}

// toValue converts an engine element back to a script value.
func toValue(v any) goja.Value {
	if gv, ok := v.(goja.Value); ok {
		return gv
	}
	return goja.Null()
}

func (r *Realm) tableType(tbl engine.Table) *goja.Object {
	it := tbl.Index()
	n, err := tbl.Len()
	if err != nil {
		r.throw(err)
	}
	t := r.vm.NewObject()
	_ = t.Set("minimum", descriptor.FromAddress(r.vm, n, it))
	if maximum, ok := tbl.Maximum(); ok {
		_ = t.Set("maximum", descriptor.FromAddress(r.vm, maximum, it))
	}
	_ = t.Set("element", tbl.Element().String())
	_ = t.Set("index", it.String())
	return t
}

func (r *Realm) tableOf(this goja.Value, method string) *tableState {
	obj, _ := this.(*goja.Object)
	st, ok := r.tables[obj]
	if !ok {
		r.throw(receiverError("Table", method, this))
	}
	return st
}
