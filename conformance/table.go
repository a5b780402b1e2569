package conformance

import (
	"github.com/dop251/goja"
	"go.uber.org/multierr"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
	"github.com/wippyai/wasm-jsapi/verify"
)

// constructTable builds a case evaluating a construction expression and
// verifying the handle it yields. A non-empty fill is evaluated in the
// case's realm and becomes the expected value of every slot.
func constructTable(name string, req engine.Features, src string, want verify.TableExpectation, fill string) Case {
	return check(name, req, src, func(r *realm.Realm, tbl goja.Value) error {
		if fill != "" {
			v, err := eval(r, fill)
			if err != nil {
				return err
			}
			want.Fill = v
		}
		return verify.Table(r, tbl, want)
	})
}

func newTable(args string) string {
	return "new WebAssembly.Table(" + args + ")"
}

// TableConstructor checks new WebAssembly.Table(descriptor, value).
func TableConstructor() Suite {
	s := Suite{Name: "table/constructor"}

	s.Cases = append(s.Cases,
		Case{Name: "name", Run: func(r *realm.Realm) error {
			return verify.FunctionName(r.VM(), r.Table, "Table")
		}},
		Case{Name: "length", Run: func(r *realm.Realm) error {
			return verify.FunctionLength(r.VM(), r.Table, 1, "WebAssembly.Table")
		}},
		throws("No arguments", errors.ClassTypeError, "new WebAssembly.Table()"),
		throws("Calling", errors.ClassTypeError, `WebAssembly.Table({element: "anyfunc", initial: 1})`),
		Case{Name: "Invalid descriptor argument", Run: func(r *realm.Realm) error {
			var errs error
			for _, arg := range invalidDescriptors {
				src := newTable(arg)
				errs = multierr.Append(errs, verify.Throws(r.VM(), errors.ClassTypeError, func() error {
					_, err := r.Eval(src)
					return err
				}, src))
			}
			return errs
		}},
		throws("Undefined initial value in descriptor", errors.ClassTypeError,
			newTable(`{element: "anyfunc", initial: undefined}`)),
		throws("Missing element in descriptor", errors.ClassTypeError,
			newTable(`{initial: 1}`)),
		throws("Unknown element in descriptor", errors.ClassTypeError,
			newTable(`{element: "i32", initial: 1}`)),
		throws("Unknown table index", errors.ClassTypeError,
			newTable(`{element: "anyfunc", initial: 1, index: "i16"}`)),
	)

	for _, v := range outOfRange {
		s.Cases = append(s.Cases,
			throws("Out-of-range initial value in descriptor: "+v, errors.ClassTypeError,
				newTable(`{element: "anyfunc", initial: `+v+`}`)),
			throws("Out-of-range maximum value in descriptor: "+v, errors.ClassTypeError,
				newTable(`{element: "anyfunc", initial: 1, maximum: `+v+`}`)),
		)
	}
	for _, v := range outOfRangeWide {
		s.Cases = append(s.Cases,
			throws("Out-of-range initial i64 value in descriptor: "+v, errors.ClassTypeError,
				newTable(`{element: "anyfunc", index: "i64", initial: `+v+`}`)),
			throws("Out-of-range maximum i64 value in descriptor: "+v, errors.ClassTypeError,
				newTable(`{element: "anyfunc", index: "i64", initial: 0n, maximum: `+v+`}`)),
		)
	}

	s.Cases = append(s.Cases,
		throws("Initial value exceeds maximum", errors.ClassRangeError,
			newTable(`{element: "anyfunc", initial: 10, maximum: 9}`)),
		throws("Initial value exceeds implementation limit", errors.ClassRangeError,
			newTable(`{element: "anyfunc", initial: 10000001}`)),
		check("Proxy descriptor", 0, newTable(`new Proxy({}, {
			has(o, x) { throw new Error("Should not call [[HasProperty]] with " + String(x)); },
			get(o, x) {
				switch (x) {
				case "element": return "anyfunc";
				case "initial":
				case "maximum": return 0;
				case "index": return "i32";
				}
				return undefined;
			},
		})`), func(r *realm.Realm, tbl goja.Value) error {
			return verify.Table(r, tbl, verify.TableExpectation{Length: 0})
		}),
		Case{Name: "Order of evaluation for descriptor", Run: func(r *realm.Realm) error {
			var log verify.Log
			if err := log.Bind(r.VM(), "record"); err != nil {
				return err
			}
			_, err := r.Eval(newTable(`{
				get maximum() { record("maximum"); return { valueOf() { record("maximum valueOf"); return 1; } }; },
				get initial() { record("initial"); return { valueOf() { record("initial valueOf"); return 1; } }; },
				get index() { record("index"); return { toString() { record("index toString"); return "i32"; } }; },
				get element() { record("element"); return { toString() { record("element toString"); return "anyfunc"; } }; },
			}`))
			if err != nil {
				return err
			}
			return log.Expect(
				"element", "element toString",
				"index", "index toString",
				"initial", "initial valueOf",
				"maximum", "maximum valueOf",
			)
		}},
		constructTable("Basic (zero)", 0, newTable(`{element: "anyfunc", initial: 0}`),
			verify.TableExpectation{Length: 0}, ""),
		constructTable("Basic (non-zero)", 0, newTable(`{element: "anyfunc", initial: 3}`),
			verify.TableExpectation{Length: 3}, ""),
		constructTable("Basic (i64, zero)", engine.FeatureTable64, newTable(`{element: "anyfunc", index: "i64", initial: 0n}`),
			verify.TableExpectation{Length: 0, Index: wasmjsapi.I64}, ""),
		constructTable("Basic (i64, non-zero)", engine.FeatureTable64, newTable(`{element: "anyfunc", index: "i64", initial: 3n}`),
			verify.TableExpectation{Length: 3, Index: wasmjsapi.I64}, ""),
		constructTable("Stray argument", 0, newTable(`{element: "anyfunc", initial: 0}, null, {}`),
			verify.TableExpectation{Length: 0}, ""),
		constructTable("Maximum equals initial", 0, newTable(`{element: "anyfunc", initial: 2, maximum: 2}`),
			verify.TableExpectation{Length: 2}, ""),
		constructTable("funcref element alias", 0, newTable(`{element: "funcref", initial: 2}`),
			verify.TableExpectation{Length: 2}, ""),
		constructTable("Default value for funcref with undefined", 0, newTable(`{element: "anyfunc", initial: 2}, undefined`),
			verify.TableExpectation{Length: 2}, "null"),
		constructTable("Explicit null for funcref", 0, newTable(`{element: "anyfunc", initial: 2}, null`),
			verify.TableExpectation{Length: 2}, "null"),
		throws("Non-function value for funcref", errors.ClassTypeError,
			newTable(`{element: "anyfunc", initial: 1}, 7`)),
		constructTable("Default value for externref", engine.FeatureExternRef, newTable(`{element: "externref", initial: 3}`),
			verify.TableExpectation{Length: 3, Element: wasmjsapi.ExternRef}, ""),
		constructTable("Default value for externref with undefined", engine.FeatureExternRef, newTable(`{element: "externref", initial: 3}, undefined`),
			verify.TableExpectation{Length: 3, Element: wasmjsapi.ExternRef}, ""),
		constructTable("Explicit value for externref", engine.FeatureExternRef, newTable(`{element: "externref", initial: 3}, "x"`),
			verify.TableExpectation{Length: 3, Element: wasmjsapi.ExternRef}, `"x"`),
		constructTable("Null value for externref", engine.FeatureExternRef, newTable(`{element: "externref", initial: 2}, null`),
			verify.TableExpectation{Length: 2, Element: wasmjsapi.ExternRef}, "null"),
	)
	return s
}

// withTable builds a case that binds a fresh table to the global tbl and
// then runs fn. A table that fails to construct fails the case.
func withTable(name string, req engine.Features, args string, fn func(r *realm.Realm, tbl goja.Value) error) Case {
	return Case{
		Name:     name,
		Requires: req,
		Run: func(r *realm.Realm) error {
			tbl, err := r.Eval("var tbl = " + newTable(args) + "; tbl")
			if err != nil {
				return errors.Wrap(errors.PhaseVerify, errors.KindMismatch, err, name+": setup failed")
			}
			return fn(r, tbl)
		},
	}
}

const (
	funcs2   = `{element: "anyfunc", initial: 2}`
	funcs1   = `{element: "anyfunc", initial: 1}`
	externs1 = `{element: "externref", initial: 1}`
	externs2 = `{element: "externref", initial: 2}`
	externs3 = `{element: "externref", initial: 3}`
)

// expectThrow checks that the script act throws class.
func expectThrow(r *realm.Realm, class errors.Class, act string) error {
	return verify.Throws(r.VM(), class, func() error {
		_, err := r.Eval(act)
		return err
	}, "table", act)
}

// values evaluates each source to a value.
func values(r *realm.Realm, srcs ...string) ([]goja.Value, error) {
	out := make([]goja.Value, len(srcs))
	for i, src := range srcs {
		v, err := eval(r, src)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// TableAccess checks get, set, grow, length and type on Table handles.
func TableAccess() Suite {
	return Suite{
		Name: "table/access",
		Cases: []Case{
			withTable("get in range", 0, funcs2, func(r *realm.Realm, tbl goja.Value) error {
				return verify.EqualToArray(r.VM(), tbl, []goja.Value{goja.Null(), goja.Null()}, wasmjsapi.I32)
			}),
			withTable("get out of range", 0, funcs2, func(r *realm.Realm, tbl goja.Value) error {
				return multierr.Combine(
					expectThrow(r, errors.ClassRangeError, "tbl.get(2)"),
					expectThrow(r, errors.ClassRangeError, "tbl.get(3)"),
					expectThrow(r, errors.ClassRangeError, "tbl.get(0xFFFFFFFF)"),
				)
			}),
			withTable("get negative index", 0, funcs2, func(r *realm.Realm, tbl goja.Value) error {
				return expectThrow(r, errors.ClassTypeError, "tbl.get(-1)")
			}),
			withTable("get Symbol index", 0, funcs2, func(r *realm.Realm, tbl goja.Value) error {
				return expectThrow(r, errors.ClassTypeError, `tbl.get(Symbol("i"))`)
			}),
			withTable("get coerces string index", engine.FeatureExternRef, externs2, func(r *realm.Realm, tbl goja.Value) error {
				got, err := r.Eval(`tbl.set(1, "v"); tbl.get("1")`)
				if err != nil {
					return err
				}
				return verify.SameValue(got, r.VM().ToValue("v"), "table", `get("1")`)
			}),
			withTable("set and get", engine.FeatureExternRef, externs3, func(r *realm.Realm, tbl goja.Value) error {
				if _, err := r.Eval(`var marker = {}; tbl.set(0, marker); tbl.set(2, 5)`); err != nil {
					return err
				}
				want, err := values(r, "marker", "undefined", "5")
				if err != nil {
					return err
				}
				return verify.EqualToArray(r.VM(), tbl, want, wasmjsapi.I32)
			}),
			withTable("set without value stores the default", engine.FeatureExternRef, externs1+`, "x"`, func(r *realm.Realm, tbl goja.Value) error {
				got, err := r.Eval(`tbl.set(0); tbl.get(0)`)
				if err != nil {
					return err
				}
				return verify.SameValue(got, goja.Undefined(), "table", "get(0)")
			}),
			withTable("set out of range", 0, funcs1, func(r *realm.Realm, tbl goja.Value) error {
				return multierr.Combine(
					expectThrow(r, errors.ClassRangeError, "tbl.set(1, null)"),
					expectThrow(r, errors.ClassTypeError, "tbl.set(-1, null)"),
				)
			}),
			withTable("set non-function on funcref", 0, funcs1, func(r *realm.Realm, tbl goja.Value) error {
				return expectThrow(r, errors.ClassTypeError, `tbl.set(0, "f")`)
			}),
			withTable("grow returns previous length", 0, funcs1, func(r *realm.Realm, tbl goja.Value) error {
				prev, err := r.Eval("tbl.grow(2)")
				if err != nil {
					return err
				}
				return multierr.Combine(
					verify.SameValue(prev, r.VM().ToValue(1), "table", "grow"),
					verify.Table(r, tbl, verify.TableExpectation{Length: 3}),
				)
			}),
			withTable("grow with value", engine.FeatureExternRef, externs1, func(r *realm.Realm, tbl goja.Value) error {
				if _, err := r.Eval(`tbl.grow(2, "g")`); err != nil {
					return err
				}
				want, err := values(r, "undefined", `"g"`, `"g"`)
				if err != nil {
					return err
				}
				return verify.EqualToArray(r.VM(), tbl, want, wasmjsapi.I32)
			}),
			withTable("grow past maximum", 0, `{element: "anyfunc", initial: 1, maximum: 2}`, func(r *realm.Realm, tbl goja.Value) error {
				return multierr.Combine(
					expectThrow(r, errors.ClassRangeError, "tbl.grow(2)"),
					verify.Table(r, tbl, verify.TableExpectation{Length: 1}),
				)
			}),
			withTable("grow negative delta", 0, funcs1, func(r *realm.Realm, tbl goja.Value) error {
				return expectThrow(r, errors.ClassTypeError, "tbl.grow(-1)")
			}),
			withTable("type", 0, `{element: "anyfunc", initial: 1, maximum: 4}`, func(r *realm.Realm, tbl goja.Value) error {
				return tableTypeMatches(r, "1", "4", "funcref", "i32")
			}),
			withTable("type without maximum", engine.FeatureExternRef, externs2, func(r *realm.Realm, tbl goja.Value) error {
				return tableTypeMatches(r, "2", "undefined", "externref", "i32")
			}),
			withTable("i64 indices", engine.FeatureTable64, `{element: "anyfunc", index: "i64", initial: 2n, maximum: 3n}`, func(r *realm.Realm, tbl goja.Value) error {
				prev, err := r.Eval("tbl.grow(1n)")
				if err != nil {
					return err
				}
				want, err := eval(r, "2n")
				if err != nil {
					return err
				}
				return multierr.Combine(
					verify.SameValue(prev, want, "table", "grow"),
					verify.Table(r, tbl, verify.TableExpectation{Length: 3, Index: wasmjsapi.I64}),
					expectThrow(r, errors.ClassTypeError, "tbl.get(0)"),
					tableTypeMatches(r, "3n", "3n", "funcref", "i64"),
				)
			}),
			{Name: "Incompatible receiver", Run: func(r *realm.Realm) error {
				var errs error
				for _, method := range []string{"get", "set", "grow", "type"} {
					errs = multierr.Append(errs,
						expectThrow(r, errors.ClassTypeError, "WebAssembly.Table.prototype."+method+".call({}, 0)"))
				}
				return errs
			}},
		},
	}
}

// tableTypeMatches compares tbl.type() with the expected field values,
// each given as a script expression.
func tableTypeMatches(r *realm.Realm, minimum, maximum, element, index string) error {
	typ, err := r.Eval("tbl.type()")
	if err != nil {
		return err
	}
	want, err := values(r, minimum, maximum, `"`+element+`"`, `"`+index+`"`)
	if err != nil {
		return err
	}
	var errs error
	for i, key := range []string{"minimum", "maximum", "element", "index"} {
		got, err := fieldOf(r, typ, key)
		if err != nil {
			return err
		}
		errs = multierr.Append(errs, verify.SameValue(got, want[i], "table", "type", key))
	}
	return errs
}

func fieldOf(r *realm.Realm, v goja.Value, key string) (goja.Value, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, errors.Mismatch([]string{key}, "object", "primitive")
	}
	var got goja.Value
	if ex := r.VM().Try(func() { got = obj.Get(key) }); ex != nil {
		return nil, ex
	}
	if got == nil {
		got = goja.Undefined()
	}
	return got, nil
}
