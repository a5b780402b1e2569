package descriptor

import (
	stderrors "errors"
	"math"
	"math/big"
	"strconv"

	"github.com/dop251/goja"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/errors"
)

// addressStrategy converts a host value to an address of one index width.
type addressStrategy func(p *Parser, v goja.Value, path []string) (uint64, error)

var strategies = [...]addressStrategy{
	wasmjsapi.I32: (*Parser).narrowAddress,
	wasmjsapi.I64: (*Parser).wideAddress,
}

// Address coerces v to an address for the given index type. Narrow
// addresses go through ToNumber and must lie in [0, 2^32); wide addresses go
// through ToBigInt and must lie in [0, 2^64). Every failure is a TypeError.
func (p *Parser) Address(v goja.Value, it wasmjsapi.IndexType, path ...string) (uint64, error) {
	if int(it) >= len(strategies) {
		return 0, errors.InvalidArgument(errors.PhaseConvert, path, "unknown index type %d", it)
	}
	if v == nil {
		v = goja.Undefined()
	}
	return strategies[it](p, v, path)
}

// FromAddress converts an address back to the host representation of the
// index type: Number for i32, BigInt for i64.
func FromAddress(vm *goja.Runtime, n uint64, it wasmjsapi.IndexType) goja.Value {
	if it == wasmjsapi.I64 {
		return vm.ToValue(new(big.Int).SetUint64(n))
	}
	return vm.ToValue(n)
}

func (p *Parser) narrowAddress(v goja.Value, path []string) (uint64, error) {
	var f float64
	if ex := p.vm.Try(func() { f = v.ToFloat() }); ex != nil {
		return 0, p.fieldError(path, ex)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New(errors.PhaseConvert, errors.KindInvalidArgument).
			Path(path...).
			Value(f).
			Detail("%s is not a finite number", formatNumber(f)).
			Build()
	}
	f = math.Trunc(f)
	if f < 0 || f > math.MaxUint32 {
		return 0, errors.New(errors.PhaseConvert, errors.KindInvalidArgument).
			Path(path...).
			Value(f).
			Detail("%s is outside the range of an unsigned 32-bit value", formatNumber(f)).
			Build()
	}
	return uint64(f), nil
}

var maxU64 = new(big.Int).SetUint64(math.MaxUint64)

func (p *Parser) wideAddress(v goja.Value, path []string) (uint64, error) {
	n, err := p.bigInt(v, path)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.Cmp(maxU64) > 0 {
		return 0, errors.New(errors.PhaseConvert, errors.KindInvalidArgument).
			Path(path...).
			Value(n).
			Detail("%sn is outside the range of an unsigned 64-bit value", n.String()).
			Build()
	}
	return n.Uint64(), nil
}

// toBigIntSource performs ToPrimitive with the number hint, then ToBigInt on
// the primitive. Numbers are rejected rather than converted the way the
// BigInt function would.
const toBigIntSource = `(function (v) {
	if (v !== null && (typeof v === "object" || typeof v === "function")) {
		const exotic = v[Symbol.toPrimitive];
		if (exotic !== undefined && exotic !== null) {
			v = exotic.call(v, "number");
			if (v !== null && (typeof v === "object" || typeof v === "function")) {
				throw new TypeError("Cannot convert object to primitive value");
			}
		} else {
			v = Date.prototype[Symbol.toPrimitive].call(v, "number");
		}
	}
	switch (typeof v) {
	case "bigint":
		return v;
	case "string":
	case "boolean":
		return BigInt(v);
	}
	throw new TypeError("Cannot convert " + String(v) + " to a BigInt");
})`

var toBigIntProgram = goja.MustCompile("toBigInt", toBigIntSource, true)

func (p *Parser) bigInt(v goja.Value, path []string) (*big.Int, error) {
	if p.toBigInt == nil {
		fn, err := p.vm.RunProgram(toBigIntProgram)
		if err != nil {
			return nil, errors.Internal(errors.PhaseConvert, "load ToBigInt", err)
		}
		call, ok := goja.AssertFunction(fn)
		if !ok {
			return nil, errors.Internal(errors.PhaseConvert, "ToBigInt is not callable", nil)
		}
		p.toBigInt = call
	}

	res, err := p.toBigInt(goja.Undefined(), v)
	if err != nil {
		if ex, ok := err.(*goja.Exception); ok {
			return nil, p.fieldError(path, ex)
		}
		return nil, err
	}
	n, ok := res.Export().(*big.Int)
	if !ok {
		return nil, errors.Internal(errors.PhaseConvert, "ToBigInt returned "+Format(res), nil)
	}
	return n, nil
}

// fieldError attaches the field path to an exception raised while converting
// a field. TypeError and RangeError exceptions get the matching kind; any
// other exception is returned unchanged. The exception stays the cause.
func (p *Parser) fieldError(path []string, ex *goja.Exception) error {
	var kind errors.Kind
	switch ExceptionName(p.vm, ex) {
	case string(errors.ClassTypeError):
		kind = errors.KindInvalidArgument
	case string(errors.ClassRangeError):
		kind = errors.KindLimitExceeded
	default:
		return ex
	}
	return errors.New(errors.PhaseConvert, kind).Path(path...).Detail("convert field").Cause(ex).Build()
}

// ExceptionName returns the name of the error object an exception carries,
// or "" when it carries something else.
func ExceptionName(vm *goja.Runtime, ex *goja.Exception) string {
	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		return ""
	}
	var name goja.Value
	if vm.Try(func() { name = obj.Get("name") }) != nil || name == nil || !goja.IsString(name) {
		return ""
	}
	return name.String()
}

// ErrorName returns the error class a script observes for err: the name of
// a thrown error object, or the class of a structured error.
func ErrorName(vm *goja.Runtime, err error) string {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		return ExceptionName(vm, ex)
	}
	return string(errors.ClassOf(err))
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
