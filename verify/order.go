package verify

import (
	"github.com/dop251/goja"
)

// Log records the order in which a descriptor's accessors and conversion
// hooks run.
type Log struct {
	entries []string
}

// Record appends an entry.
func (l *Log) Record(entry string) {
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []string {
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Expect compares the recorded entries with want.
func (l *Log) Expect(want ...string) error {
	return ArrayEquals(l.entries, want, "order")
}

// Bind installs a global function name that appends its first argument,
// converted to a string, to the log.
func (l *Log) Bind(vm *goja.Runtime, name string) error {
	return vm.Set(name, func(call goja.FunctionCall) goja.Value {
		l.Record(call.Argument(0).String())
		return goja.Undefined()
	})
}

// ValueOf returns an object whose valueOf records name+" valueOf" and
// yields v.
func (l *Log) ValueOf(vm *goja.Runtime, name string, v goja.Value) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("valueOf", func(goja.FunctionCall) goja.Value {
		l.Record(name + " valueOf")
		return v
	})
	return obj
}

// ToString returns an object whose toString records name+" toString" and
// yields s.
func (l *Log) ToString(vm *goja.Runtime, name string, s string) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		l.Record(name + " toString")
		return vm.ToValue(s)
	})
	return obj
}

// Accessor defines key on obj as a getter that records key and yields v.
func (l *Log) Accessor(vm *goja.Runtime, obj *goja.Object, key string, v goja.Value) error {
	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		l.Record(key)
		return v
	})
	return obj.DefineAccessorProperty(key, getter, nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
