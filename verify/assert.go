package verify

import (
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
)

// SameValue reports a mismatch unless got and want are the same value.
func SameValue(got, want goja.Value, path ...string) error {
	if got == nil {
		got = goja.Undefined()
	}
	if want == nil {
		want = goja.Undefined()
	}
	// goja keeps integral numbers as ints, and int SameAs only matches ints.
	if got.SameAs(want) || want.SameAs(got) {
		return nil
	}
	return errors.Mismatch(path, descriptor.Format(want), descriptor.Format(got))
}

// Prototype checks obj's prototype identity.
func Prototype(vm *goja.Runtime, obj, want *goja.Object, path ...string) error {
	got := obj.Prototype()
	if got != nil && got.SameAs(want) {
		return nil
	}
	gotName := "null"
	if got != nil {
		gotName = protoName(vm, got)
	}
	return errors.Mismatch(append(path, "prototype"), protoName(vm, want), gotName)
}

func protoName(vm *goja.Runtime, proto *goja.Object) string {
	var name string
	vm.Try(func() {
		if ctor, ok := proto.Get("constructor").(*goja.Object); ok {
			if n := ctor.Get("name"); n != nil {
				name = n.String()
			}
		}
	})
	if name == "" {
		return descriptor.Format(proto)
	}
	return name + ".prototype"
}

// Extensible checks that new properties can be added to obj.
func Extensible(vm *goja.Runtime, obj *goja.Object, path ...string) error {
	ok, err := callBuiltin(vm, "isExtensible", obj)
	if err != nil {
		return err
	}
	if ok.ToBoolean() {
		return nil
	}
	return errors.Mismatch(append(path, "extensible"), "true", "false")
}

// FunctionName checks fn's own name property.
func FunctionName(vm *goja.Runtime, fn goja.Value, name string) error {
	obj, err := handleObject(fn, name)
	if err != nil {
		return err
	}
	if _, ok := goja.AssertFunction(obj); !ok {
		return errors.Mismatch([]string{name}, "function", descriptor.Format(fn))
	}
	got, err := ownProperty(vm, obj, "name", name)
	if err != nil {
		return err
	}
	return SameValue(got, vm.ToValue(name), name, "name")
}

// FunctionLength checks fn's own length property.
func FunctionLength(vm *goja.Runtime, fn goja.Value, length int, path ...string) error {
	obj, err := handleObject(fn, path...)
	if err != nil {
		return err
	}
	got, err := ownProperty(vm, obj, "length", path...)
	if err != nil {
		return err
	}
	return SameValue(got, vm.ToValue(length), append(path, "length")...)
}

// ownProperty reads an own data property, failing when it is absent.
func ownProperty(vm *goja.Runtime, obj *goja.Object, key string, path ...string) (goja.Value, error) {
	d, err := callBuiltin(vm, "getOwnPropertyDescriptor", obj, vm.ToValue(key))
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(d) {
		return nil, errors.Mismatch(append(path, key), "own property", "missing")
	}
	return get(vm, d, "value")
}

// callBuiltin calls a static method of the runtime's Object constructor.
func callBuiltin(vm *goja.Runtime, method string, args ...goja.Value) (goja.Value, error) {
	ctor, ok := vm.Get("Object").(*goja.Object)
	if !ok {
		return nil, errors.Internal(errors.PhaseVerify, "Object constructor missing", nil)
	}
	fn, ok := goja.AssertFunction(ctor.Get(method))
	if !ok {
		return nil, errors.Internal(errors.PhaseVerify, "Object."+method+" is not callable", nil)
	}
	return fn(ctor, args...)
}

// Throws runs fn and checks that it fails with the given error class:
// either a thrown error object of that name or a structured error of that
// class.
func Throws(vm *goja.Runtime, class errors.Class, fn func() error, path ...string) error {
	err := fn()
	if err == nil {
		return errors.Mismatch(path, string(class), "no error")
	}
	if got := descriptor.ErrorName(vm, err); got != string(class) {
		return errors.New(errors.PhaseVerify, errors.KindMismatch).
			Path(path...).
			Want(string(class)).
			Got(got).
			Cause(err).
			Build()
	}
	return nil
}

// ArrayEquals compares two string sequences element by element.
func ArrayEquals(got, want []string, path ...string) error {
	if len(got) == len(want) {
		same := true
		for i := range got {
			if got[i] != want[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	return errors.Mismatch(path, formatList(want), formatList(got))
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
