package conformance

import (
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/multierr"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
	"github.com/wippyai/wasm-jsapi/verify"
)

// constructMemory builds a case evaluating a construction expression and
// verifying the handle it yields.
func constructMemory(name string, req engine.Features, src string, want verify.MemoryExpectation) Case {
	return check(name, req, src, func(r *realm.Realm, mem goja.Value) error {
		return verify.Memory(r, mem, want)
	})
}

func newMemory(desc string) string {
	return "new WebAssembly.Memory(" + desc + ")"
}

// MemoryConstructor checks new WebAssembly.Memory(descriptor).
func MemoryConstructor() Suite {
	i32, i64 := verify.Width(wasmjsapi.I32), verify.Width(wasmjsapi.I64)
	s := Suite{Name: "memory/constructor"}

	s.Cases = append(s.Cases,
		Case{Name: "name", Run: func(r *realm.Realm) error {
			return verify.FunctionName(r.VM(), r.Memory, "Memory")
		}},
		Case{Name: "length", Run: func(r *realm.Realm) error {
			return verify.FunctionLength(r.VM(), r.Memory, 1, "WebAssembly.Memory")
		}},
		throws("No arguments", errors.ClassTypeError, "new WebAssembly.Memory()"),
		throws("Calling", errors.ClassTypeError, "WebAssembly.Memory({initial: 0})"),
		Case{Name: "Invalid descriptor argument", Run: func(r *realm.Realm) error {
			var errs error
			for _, arg := range invalidDescriptors {
				src := newMemory(arg)
				errs = multierr.Append(errs, verify.Throws(r.VM(), errors.ClassTypeError, func() error {
					_, err := r.Eval(src)
					return err
				}, src))
			}
			return errs
		}},
		throws("Undefined initial value in descriptor", errors.ClassTypeError,
			newMemory("{initial: undefined}")),
	)

	for _, v := range outOfRange {
		s.Cases = append(s.Cases,
			throws("Out-of-range initial value in descriptor: "+v, errors.ClassTypeError,
				newMemory("{initial: "+v+"}")),
			throws("Out-of-range maximum value in descriptor: "+v, errors.ClassTypeError,
				newMemory("{initial: 0, maximum: "+v+"}")),
		)
	}
	for _, v := range outOfRangeWide {
		s.Cases = append(s.Cases,
			throws("Out-of-range initial i64 value in descriptor: "+v, errors.ClassTypeError,
				newMemory(`{index: "i64", initial: `+v+`}`)),
			throws("Out-of-range maximum i64 value in descriptor: "+v, errors.ClassTypeError,
				newMemory(`{index: "i64", initial: 0n, maximum: `+v+`}`)),
		)
	}

	s.Cases = append(s.Cases,
		throws("Initial value exceeds maximum", errors.ClassRangeError,
			newMemory("{initial: 10, maximum: 9}")),
		throws("Initial value exceeds maximum (i64)", errors.ClassRangeError,
			newMemory(`{index: "i64", initial: 10n, maximum: 9n}`)),
		check("Proxy descriptor", 0, newMemory(`new Proxy({}, {
			has(o, x) { throw new Error("Should not call [[HasProperty]] with " + String(x)); },
			get(o, x) {
				switch (x) {
				case "shared": return false;
				case "initial":
				case "maximum": return 0;
				case "index": return "i32";
				}
				return undefined;
			},
		})`), func(r *realm.Realm, mem goja.Value) error {
			return verify.Memory(r, mem, verify.MemoryExpectation{Size: 0})
		}),
		Case{Name: "Order of evaluation for descriptor", Run: func(r *realm.Realm) error {
			var log verify.Log
			if err := log.Bind(r.VM(), "record"); err != nil {
				return err
			}
			_, err := r.Eval(newMemory(`{
				get maximum() { record("maximum"); return { valueOf() { record("maximum valueOf"); return 1; } }; },
				get initial() { record("initial"); return { valueOf() { record("initial valueOf"); return 1; } }; },
				get index() { record("index"); return { toString() { record("index toString"); return "i32"; } }; },
			}`))
			if err != nil {
				return err
			}
			return log.Expect("index", "index toString", "initial", "initial valueOf", "maximum", "maximum valueOf")
		}},
		constructMemory("Zero initial", 0, newMemory("{initial: 0}"),
			verify.MemoryExpectation{Size: 0}),
		constructMemory("Non-zero initial", 0, newMemory("{initial: 4}"),
			verify.MemoryExpectation{Size: 4}),
		constructMemory("Zero initial (i64)", engine.FeatureMemory64, newMemory(`{index: "i64", initial: 0n}`),
			verify.MemoryExpectation{Size: 0, Index: i64}),
		constructMemory("Non-zero initial (i64)", engine.FeatureMemory64, newMemory(`{index: "i64", initial: 4n}`),
			verify.MemoryExpectation{Size: 4, Index: i64}),
		constructMemory("Stray argument", 0, "new WebAssembly.Memory({initial: 0}, {})",
			verify.MemoryExpectation{Size: 0}),
		constructMemory("Memory with index parameter omitted", 0, newMemory("{initial: 1}"),
			verify.MemoryExpectation{Size: 1, Index: i32}),
		constructMemory("Memory with i32 index constructor", 0, newMemory(`{initial: 1, index: "i32"}`),
			verify.MemoryExpectation{Size: 1, Index: i32}),
		constructMemory("Memory with i64 index constructor", engine.FeatureMemory64, newMemory(`{initial: 1n, index: "i64"}`),
			verify.MemoryExpectation{Size: 1, Index: i64}),
		constructMemory("Memory with string value for initial", 0, newMemory(`{initial: "3"}`),
			verify.MemoryExpectation{Size: 3}),
		constructMemory("Memory with string value for initial (i64)", engine.FeatureMemory64, newMemory(`{index: "i64", initial: "3"}`),
			verify.MemoryExpectation{Size: 3}),
		constructMemory("Memory with boolean value for initial", 0, newMemory("{initial: true}"),
			verify.MemoryExpectation{Size: 1}),
		constructMemory("Memory with boolean value for initial (i64)", engine.FeatureMemory64, newMemory(`{index: "i64", initial: true}`),
			verify.MemoryExpectation{Size: 1}),
		throws("Unknown memory index", errors.ClassTypeError,
			newMemory(`{initial: 1, index: "none"}`)),

		throws("Shared memory without maximum", errors.ClassTypeError,
			newMemory("{initial: 1, shared: true}")),
		constructMemory("Shared memory", engine.FeatureSharedMemory, newMemory("{initial: 1, maximum: 2, shared: true}"),
			verify.MemoryExpectation{Size: 1, Shared: true}),
		throws("Initial value exceeds implementation limit", errors.ClassRangeError,
			newMemory("{initial: 65537}")),
		throws("Maximum value exceeds implementation limit", errors.ClassRangeError,
			newMemory("{initial: 0, maximum: 65537}")),
	)
	return s
}

// MemoryGrow checks Memory.prototype.grow and buffer identity around it.
func MemoryGrow() Suite {
	return Suite{
		Name: "memory/grow",
		Cases: []Case{
			check("Returns previous size", 0, `var mem = new WebAssembly.Memory({initial: 1, maximum: 3}); mem.grow(2)`,
				func(r *realm.Realm, prev goja.Value) error {
					mem, err := eval(r, "mem")
					if err != nil {
						return err
					}
					return multierr.Combine(
						verify.SameValue(prev, r.VM().ToValue(1), "grow"),
						verify.Memory(r, mem, verify.MemoryExpectation{Size: 3}),
					)
				}),
			check("Zero delta keeps size", 0, `var mem = new WebAssembly.Memory({initial: 2}); mem.grow(0)`,
				func(r *realm.Realm, prev goja.Value) error {
					mem, err := eval(r, "mem")
					if err != nil {
						return err
					}
					return multierr.Combine(
						verify.SameValue(prev, r.VM().ToValue(2), "grow"),
						verify.Memory(r, mem, verify.MemoryExpectation{Size: 2}),
					)
				}),
			check("Detaches the previous buffer", 0,
				`var mem = new WebAssembly.Memory({initial: 1}); var buf = mem.buffer; mem.grow(1); [buf.detached, buf.byteLength]`,
				func(r *realm.Realm, got goja.Value) error {
					return multierr.Combine(
						verify.SameValue(index(r, got, 0), r.VM().ToValue(true), "buffer", "detached"),
						verify.SameValue(index(r, got, 1), r.VM().ToValue(0), "buffer", "byteLength"),
					)
				}),
			throwsOn("Exceeding maximum", errors.ClassRangeError,
				`var mem = new WebAssembly.Memory({initial: 1, maximum: 1})`, "mem.grow(1)"),
			throwsOn("Negative delta", errors.ClassTypeError,
				`var mem = new WebAssembly.Memory({initial: 0})`, "mem.grow(-1)"),
			check("Shared buffer is not detached", engine.FeatureSharedMemory,
				`var mem = new WebAssembly.Memory({initial: 1, maximum: 2, shared: true}); var buf = mem.buffer; mem.grow(1); buf.byteLength`,
				func(r *realm.Realm, length goja.Value) error {
					mem, err := eval(r, "mem")
					if err != nil {
						return err
					}
					return multierr.Combine(
						verify.SameValue(length, r.VM().ToValue(wasmjsapi.PageSize), "buffer", "byteLength"),
						verify.Memory(r, mem, verify.MemoryExpectation{Size: 2, Shared: true}),
					)
				}),
			check("Returns previous size (i64)", engine.FeatureMemory64,
				`new WebAssembly.Memory({index: "i64", initial: 1n}).grow(1n)`,
				func(r *realm.Realm, prev goja.Value) error {
					want, err := eval(r, "1n")
					if err != nil {
						return err
					}
					return verify.SameValue(prev, want, "grow")
				}),
			requires(engine.FeatureMemory64, throwsOn("Number delta on i64 memory", errors.ClassTypeError,
				`var mem = new WebAssembly.Memory({index: "i64", initial: 0n})`, "mem.grow(1)")),
		},
	}
}

// index reads element i of an array produced by a script.
func index(r *realm.Realm, arr goja.Value, i int) goja.Value {
	obj, ok := arr.(*goja.Object)
	if !ok {
		return goja.Undefined()
	}
	var v goja.Value
	r.VM().Try(func() { v = obj.Get(strconv.Itoa(i)) })
	if v == nil {
		return goja.Undefined()
	}
	return v
}
