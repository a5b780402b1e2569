package verify

import (
	"context"
	"testing"

	"github.com/dop251/goja"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/multierr"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
)

func newRealm(t *testing.T) *realm.Realm {
	t.Helper()
	r := realm.New(context.Background(), engine.NewNative(nil))
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func eval(t *testing.T, r *realm.Realm, src string) goja.Value {
	t.Helper()
	v, err := r.Eval("(" + src + ")")
	if err != nil {
		t.Fatalf("eval %s: %v", src, err)
	}
	return v
}

func TestScenarios(t *testing.T) {
	r := newRealm(t)

	t.Run("zero initial", func(t *testing.T) {
		mem, err := r.NewMemory(eval(t, r, `{initial: 0}`))
		if err != nil {
			t.Fatal(err)
		}
		if err := Memory(r, mem, MemoryExpectation{Size: 0, Index: Width(wasmjsapi.I32)}); err != nil {
			t.Error(err)
		}
	})

	t.Run("non-zero initial", func(t *testing.T) {
		mem, err := r.NewMemory(eval(t, r, `{initial: 4}`))
		if err != nil {
			t.Fatal(err)
		}
		if err := Memory(r, mem, MemoryExpectation{Size: 4, Index: Width(wasmjsapi.I32)}); err != nil {
			t.Error(err)
		}
	})

	t.Run("initial exceeds maximum", func(t *testing.T) {
		err := Throws(r.VM(), errors.ClassRangeError, func() error {
			_, err := r.NewMemory(eval(t, r, `{initial: 10, maximum: 9}`))
			return err
		})
		if err != nil {
			t.Error(err)
		}
	})

	t.Run("table access bounds", func(t *testing.T) {
		tbl, err := r.NewTable(eval(t, r, `{element: "anyfunc", initial: 3}`))
		if err != nil {
			t.Fatal(err)
		}
		if err := Table(r, tbl, TableExpectation{Length: 3}); err != nil {
			t.Error(err)
		}
	})
}

func TestMemory_Shared(t *testing.T) {
	r := newRealm(t)
	mem, err := r.NewMemory(eval(t, r, `{initial: 1, maximum: 1, shared: true}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := Memory(r, mem, MemoryExpectation{Size: 1, Shared: true}); err != nil {
		t.Error(err)
	}
	if err := Memory(r, mem, MemoryExpectation{Size: 1}); err == nil {
		t.Error("a SharedArrayBuffer should not pass as an ArrayBuffer")
	}
}

func TestMemory_ReportsEveryDiscrepancy(t *testing.T) {
	r := newRealm(t)
	mem, err := r.NewMemory(eval(t, r, `{index: "i64", initial: 1n}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.VM().Set("mem", mem); err != nil {
		t.Fatal(err)
	}
	eval(t, r, `Object.preventExtensions(mem)`)
	data, ok := r.Bytes(eval(t, r, `mem.buffer`))
	if !ok {
		t.Fatal("buffer bytes unavailable")
	}
	data[0] = 1

	err = Memory(r, mem, MemoryExpectation{Size: 2, Index: Width(wasmjsapi.I32)})
	// extensible, byteLength, zeroed contents, index
	if got := len(multierr.Errors(err)); got != 4 {
		t.Errorf("discrepancies = %d, want 4: %v", got, err)
	}
	for _, e := range multierr.Errors(err) {
		if errors.KindOf(e) != errors.KindMismatch {
			t.Errorf("unexpected error kind: %v", e)
		}
	}
}

func TestTable_ExternRefDefault(t *testing.T) {
	r := newRealm(t)
	tbl, err := r.NewTable(eval(t, r, `{element: "externref", initial: 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := Table(r, tbl, TableExpectation{Length: 2, Element: wasmjsapi.ExternRef}); err != nil {
		t.Error(err)
	}
	if err := Table(r, tbl, TableExpectation{Length: 2, Element: wasmjsapi.FuncRef}); err == nil {
		t.Error("undefined elements should not pass as null")
	}
}

func TestTable_ExplicitFill(t *testing.T) {
	r := newRealm(t)
	fill := eval(t, r, `{}`)
	tbl, err := r.NewTable(eval(t, r, `{element: "externref", initial: 2}`), fill)
	if err != nil {
		t.Fatal(err)
	}
	if err := Table(r, tbl, TableExpectation{Length: 2, Element: wasmjsapi.ExternRef, Fill: fill}); err != nil {
		t.Error(err)
	}
	if err := Table(r, tbl, TableExpectation{Length: 2, Element: wasmjsapi.ExternRef, Fill: eval(t, r, `{}`)}); err == nil {
		t.Error("a different object should not pass as the fill value")
	}
}

func TestEqualToArray_I64(t *testing.T) {
	r := newRealm(t)
	tbl, err := r.NewTable(eval(t, r, `{element: "externref", index: "i64", initial: 2n}`), r.VM().ToValue(7))
	if err != nil {
		t.Fatal(err)
	}
	want := []goja.Value{r.VM().ToValue(7), r.VM().ToValue(7)}
	if err := EqualToArray(r.VM(), tbl, want, wasmjsapi.I64); err != nil {
		t.Error(err)
	}
	// Number where a BigInt length is expected
	if err := EqualToArray(r.VM(), tbl, want, wasmjsapi.I32); err == nil {
		t.Error("i32 indices against an i64 table should fail")
	}
}

func TestEqualToArray_Discrepancies(t *testing.T) {
	r := newRealm(t)
	// Every bound is wrong: a RangeError for -1 and a value for get(length).
	fake := eval(t, r, `{
		length: 1,
		get(i) {
			if (i < 0 || i === 2) throw new RangeError("out of range");
			return null;
		},
	}`)

	err := EqualToArray(r.VM(), fake, []goja.Value{goja.Null()}, wasmjsapi.I32)
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("discrepancies = %d, want 2: %v", len(errs), err)
	}
}

func TestAssertions(t *testing.T) {
	r := newRealm(t)
	vm := r.VM()

	if err := FunctionName(vm, r.Memory, "Memory"); err != nil {
		t.Error(err)
	}
	if err := FunctionName(vm, r.Memory, "Table"); err == nil {
		t.Error("wrong name should fail")
	}
	if err := FunctionLength(vm, r.Table, 1, "Table"); err != nil {
		t.Error(err)
	}
	if err := FunctionLength(vm, r.Table, 2, "Table"); err == nil {
		t.Error("wrong length should fail")
	}
	if err := FunctionName(vm, vm.NewObject(), "x"); err == nil {
		t.Error("non-function should fail")
	}
	if err := Prototype(vm, r.Memory, r.TablePrototype, "Memory"); err == nil {
		t.Error("wrong prototype should fail")
	}

	if err := Throws(vm, errors.ClassTypeError, func() error { return nil }); err == nil {
		t.Error("Throws should fail when nothing is thrown")
	}
	if err := Throws(vm, errors.ClassTypeError, func() error {
		return errors.LimitExceeded(errors.PhaseValidate, nil, "x")
	}); err == nil {
		t.Error("Throws should fail on the wrong class")
	}
	if err := Throws(vm, errors.ClassTypeError, func() error {
		_, err := r.Eval(`null.x`)
		return err
	}); err != nil {
		t.Errorf("Throws should accept a thrown TypeError: %v", err)
	}

	if err := SameValue(vm.ToValue(0), eval(t, r, `-0`)); err == nil {
		t.Error("+0 and -0 are different values")
	}
	if err := SameValue(eval(t, r, `NaN`), eval(t, r, `NaN`)); err != nil {
		t.Error(err)
	}

	if err := ArrayEquals([]string{"a", "b"}, []string{"a", "b"}); err != nil {
		t.Error(err)
	}
	if err := ArrayEquals([]string{"b", "a"}, []string{"a", "b"}); err == nil {
		t.Error("order matters")
	}
}

func TestLog_DescriptorOrder(t *testing.T) {
	r := newRealm(t)
	vm := r.VM()
	var log Log

	d := vm.NewObject()
	for _, field := range []struct {
		key string
		v   goja.Value
	}{
		{"maximum", log.ValueOf(vm, "maximum", vm.ToValue(1))},
		{"initial", log.ValueOf(vm, "initial", vm.ToValue(1))},
		{"index", log.ToString(vm, "index", "i32")},
	} {
		if err := log.Accessor(vm, d, field.key, field.v); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := r.NewMemory(d); err != nil {
		t.Fatal(err)
	}
	err := log.Expect("index", "index toString", "initial", "initial valueOf", "maximum", "maximum valueOf")
	if err != nil {
		t.Error(err)
	}
}

func TestLog_Bind(t *testing.T) {
	r := newRealm(t)
	var log Log
	if err := log.Bind(r.VM(), "record"); err != nil {
		t.Fatal(err)
	}
	eval(t, r, `new WebAssembly.Table({
		get element() { record("element"); return "anyfunc"; },
		get index() { record("index"); return undefined; },
		get initial() { record("initial"); return 0; },
		get maximum() { record("maximum"); return undefined; },
	})`)
	if err := log.Expect("element", "index", "initial", "maximum"); err != nil {
		t.Error(err)
	}
	if got := log.Entries(); len(got) != 4 {
		t.Errorf("Entries = %v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	r := newRealm(t)
	vm := r.VM()
	properties := gopter.NewProperties(nil)

	properties.Property("memory descriptors verify against their construction", prop.ForAll(
		func(initial uint8, extra uint8, withMax bool, wide bool) bool {
			d := vm.NewObject()
			it := wasmjsapi.I32
			if wide {
				it = wasmjsapi.I64
				_ = d.Set("index", "i64")
			}
			_ = d.Set("initial", descriptor.FromAddress(vm, uint64(initial), it))
			if withMax {
				_ = d.Set("maximum", descriptor.FromAddress(vm, uint64(initial)+uint64(extra), it))
			}

			mem, err := r.NewMemory(d)
			if err != nil {
				return false
			}
			return Memory(r, mem, MemoryExpectation{Size: uint64(initial), Index: Width(it)}) == nil
		},
		gen.UInt8Range(0, 16),
		gen.UInt8(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("table descriptors verify against their construction", prop.ForAll(
		func(initial uint8, extern bool, wide bool) bool {
			d := vm.NewObject()
			want := TableExpectation{Length: uint64(initial)}
			if extern {
				_ = d.Set("element", "externref")
				want.Element = wasmjsapi.ExternRef
			} else {
				_ = d.Set("element", "anyfunc")
			}
			if wide {
				_ = d.Set("index", "i64")
				want.Index = wasmjsapi.I64
			}
			_ = d.Set("initial", descriptor.FromAddress(vm, uint64(initial), want.Index))

			tbl, err := r.NewTable(d)
			if err != nil {
				return false
			}
			return Table(r, tbl, want) == nil
		},
		gen.UInt8Range(0, 32),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
