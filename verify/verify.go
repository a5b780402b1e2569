package verify

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/multierr"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
)

// MemoryExpectation describes the expected state of a Memory handle.
type MemoryExpectation struct {
	// Index is checked against type().index when set.
	Index  *wasmjsapi.IndexType
	Size   uint64
	Shared bool
}

// TableExpectation describes the expected state of a Table handle.
type TableExpectation struct {
	// Fill is the expected value of every slot. Nil means the element
	// type's default.
	Fill    goja.Value
	Length  uint64
	Index   wasmjsapi.IndexType
	Element wasmjsapi.ElemType
}

// Width returns a pointer to it, for use in expectations.
func Width(it wasmjsapi.IndexType) *wasmjsapi.IndexType {
	return &it
}

// Memory verifies a Memory handle: prototype, extensibility and its buffer,
// which must be the same object on every read, sized Size pages and zeroed.
func Memory(r *realm.Realm, handle goja.Value, want MemoryExpectation) error {
	vm := r.VM()
	obj, err := handleObject(handle, "memory")
	if err != nil {
		return err
	}

	errs := multierr.Combine(
		Prototype(vm, obj, r.MemoryPrototype, "memory"),
		Extensible(vm, obj, "memory"),
	)

	buf, err := get(vm, obj, "buffer")
	if err != nil {
		return multierr.Append(errs, err)
	}
	again, err := get(vm, obj, "buffer")
	if err != nil {
		return multierr.Append(errs, err)
	}
	if !buf.SameAs(again) {
		errs = multierr.Append(errs, errors.Mismatch([]string{"memory", "buffer"},
			"same object on repeated reads", "a new object"))
	}

	bufObj, err := handleObject(buf, "memory", "buffer")
	if err != nil {
		return multierr.Append(errs, err)
	}
	proto := r.ArrayBufferPrototype
	if want.Shared {
		proto = r.SharedArrayBufferPrototype
	}
	errs = multierr.Append(errs, Prototype(vm, bufObj, proto, "memory", "buffer"))

	length, err := get(vm, bufObj, "byteLength")
	if err != nil {
		return multierr.Append(errs, err)
	}
	errs = multierr.Append(errs,
		SameValue(length, vm.ToValue(want.Size*wasmjsapi.PageSize), "memory", "buffer", "byteLength"))

	if data, ok := r.Bytes(bufObj); ok {
		for i, b := range data {
			if b != 0 {
				errs = multierr.Append(errs, errors.Mismatch([]string{"memory", "buffer"},
					"zeroed contents", fmt.Sprintf("byte %d = %d", i, b)))
				break
			}
		}
	}

	if want.Index != nil {
		typ, err := invoke(vm, obj, "type")
		if err != nil {
			return multierr.Append(errs, err)
		}
		index, err := get(vm, typ, "index")
		if err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, SameValue(index, vm.ToValue(want.Index.String()), "memory", "type", "index"))
	}

	return errs
}

// Table verifies a Table handle: prototype, extensibility and that its
// contents equal Length copies of the fill value.
func Table(r *realm.Realm, handle goja.Value, want TableExpectation) error {
	vm := r.VM()
	obj, err := handleObject(handle, "table")
	if err != nil {
		return err
	}

	fill := want.Fill
	if fill == nil {
		fill = realm.DefaultElement(want.Element)
	}
	expected := make([]goja.Value, want.Length)
	for i := range expected {
		expected[i] = fill
	}

	return multierr.Combine(
		Prototype(vm, obj, r.TablePrototype, "table"),
		Extensible(vm, obj, "table"),
		EqualToArray(vm, obj, expected, want.Index),
	)
}

// EqualToArray checks a table's length and every element against expected,
// using indices of the table's width. It also checks the access contract
// around the bounds: get(-1) is a TypeError, while get(length) and
// get(length+1) are RangeErrors.
func EqualToArray(vm *goja.Runtime, handle goja.Value, expected []goja.Value, it wasmjsapi.IndexType) error {
	n := uint64(len(expected))
	var errs error

	length, err := get(vm, handle, "length")
	if err != nil {
		return err
	}
	errs = multierr.Append(errs, SameValue(length, descriptor.FromAddress(vm, n, it), "table", "length"))

	errs = multierr.Append(errs, Throws(vm, errors.ClassTypeError, func() error {
		_, err := invoke(vm, handle, "get", negativeIndex(vm, it))
		return err
	}, "table", "get(-1)"))

	for i, want := range expected {
		got, err := invoke(vm, handle, "get", descriptor.FromAddress(vm, uint64(i), it))
		if err != nil {
			errs = multierr.Append(errs, errors.New(errors.PhaseVerify, errors.KindMismatch).
				Path("table", getLabel(uint64(i), n)).
				Want(descriptor.Format(want)).
				Detail("get failed").
				Cause(err).
				Build())
			continue
		}
		errs = multierr.Append(errs, SameValue(got, want, "table", getLabel(uint64(i), n)))
	}

	for _, i := range []uint64{n, n + 1} {
		errs = multierr.Append(errs, Throws(vm, errors.ClassRangeError, func() error {
			_, err := invoke(vm, handle, "get", descriptor.FromAddress(vm, i, it))
			return err
		}, "table", getLabel(i, n)))
	}
	return errs
}

func negativeIndex(vm *goja.Runtime, it wasmjsapi.IndexType) goja.Value {
	if it == wasmjsapi.I64 {
		return vm.ToValue(big.NewInt(-1))
	}
	return vm.ToValue(-1)
}

func getLabel(i, n uint64) string {
	return "get(" + strconv.FormatUint(i, 10) + " of " + strconv.FormatUint(n, 10) + ")"
}

// get reads a property the way a script would. A thrown exception is
// returned as the error.
func get(vm *goja.Runtime, v goja.Value, key string) (goja.Value, error) {
	obj, err := handleObject(v, key)
	if err != nil {
		return nil, err
	}
	var got goja.Value
	if ex := vm.Try(func() { got = obj.Get(key) }); ex != nil {
		return nil, ex
	}
	if got == nil {
		got = goja.Undefined()
	}
	return got, nil
}

// invoke calls a method of v with v as the receiver.
func invoke(vm *goja.Runtime, v goja.Value, method string, args ...goja.Value) (goja.Value, error) {
	fn, err := get(vm, v, method)
	if err != nil {
		return nil, err
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, errors.Mismatch([]string{method}, "function", descriptor.Format(fn))
	}
	return call(v, args...)
}

func handleObject(v goja.Value, path ...string) (*goja.Object, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, errors.Mismatch(path, "object", descriptor.Format(v))
	}
	return obj, nil
}
