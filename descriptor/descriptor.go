package descriptor

import (
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/errors"
)

// Memory is a canonical memory descriptor. Sizes are in pages.
type Memory struct {
	Maximum *uint64
	Initial uint64
	Index   wasmjsapi.IndexType
	Shared  bool
}

// Table is a canonical table descriptor. Sizes are in elements.
type Table struct {
	Maximum *uint64
	Initial uint64
	Element wasmjsapi.ElemType
	Index   wasmjsapi.IndexType
}

// Parser validates descriptors and addresses coming from one runtime.
// It is bound to the runtime's goroutine like the runtime itself.
type Parser struct {
	vm       *goja.Runtime
	toBigInt goja.Callable
}

// NewParser creates a parser over vm.
func NewParser(vm *goja.Runtime) *Parser {
	return &Parser{vm: vm}
}

// ParseMemory validates a raw memory descriptor read from vm.
func ParseMemory(vm *goja.Runtime, raw goja.Value) (Memory, error) {
	return NewParser(vm).Memory(raw)
}

// ParseTable validates a raw table descriptor read from vm.
func ParseTable(vm *goja.Runtime, raw goja.Value) (Table, error) {
	return NewParser(vm).Table(raw)
}

// Memory validates a raw memory descriptor.
//
// Keys are read exactly once each, with plain property reads only, in the
// order index, initial, maximum, shared; every value is converted right
// after it is read.
func (p *Parser) Memory(raw goja.Value) (Memory, error) {
	r, err := p.newReader("memory", raw)
	if err != nil {
		return Memory{}, err
	}

	var d Memory
	if d.Index, err = r.indexType(); err != nil {
		return Memory{}, err
	}
	if d.Initial, err = r.requiredAddress("initial", d.Index); err != nil {
		return Memory{}, err
	}
	if d.Maximum, err = r.optionalAddress("maximum", d.Index); err != nil {
		return Memory{}, err
	}
	shared, err := r.read("shared")
	if err != nil {
		return Memory{}, err
	}
	d.Shared = shared.ToBoolean()

	if err := checkLimits(r.path, d.Initial, d.Maximum, d.Index.MaxMemoryPages(), "pages"); err != nil {
		return Memory{}, err
	}
	if d.Shared && d.Maximum == nil {
		return Memory{}, errors.InvalidArgument(errors.PhaseValidate, r.at("maximum"),
			"shared memory must have a maximum")
	}
	return d, nil
}

// Table validates a raw table descriptor, reading element, index, initial
// and maximum in that order.
func (p *Parser) Table(raw goja.Value) (Table, error) {
	r, err := p.newReader("table", raw)
	if err != nil {
		return Table{}, err
	}

	var d Table
	if d.Element, err = r.elemType(); err != nil {
		return Table{}, err
	}
	if d.Index, err = r.indexType(); err != nil {
		return Table{}, err
	}
	if d.Initial, err = r.requiredAddress("initial", d.Index); err != nil {
		return Table{}, err
	}
	if d.Maximum, err = r.optionalAddress("maximum", d.Index); err != nil {
		return Table{}, err
	}

	if err := checkLimits(r.path, d.Initial, d.Maximum, wasmjsapi.MaxTableLength, "elements"); err != nil {
		return Table{}, err
	}
	return d, nil
}

// checkLimits runs after every field converted on its own: a valid but
// inconsistent pair is a RangeError, never a TypeError.
func checkLimits(path []string, initial uint64, maximum *uint64, limit uint64, unit string) error {
	if maximum != nil && initial > *maximum {
		return errors.New(errors.PhaseValidate, errors.KindLimitExceeded).
			Path(append(path, "initial")...).
			Want("<= " + strconv.FormatUint(*maximum, 10)).
			Got(strconv.FormatUint(initial, 10)).
			Detail("initial exceeds maximum").
			Build()
	}
	if initial > limit {
		return errors.LimitExceeded(errors.PhaseValidate, append(path, "initial"),
			"initial %d exceeds the limit of %d %s", initial, limit, unit)
	}
	if maximum != nil && *maximum > limit {
		return errors.LimitExceeded(errors.PhaseValidate, append(path, "maximum"),
			"maximum %d exceeds the limit of %d %s", *maximum, limit, unit)
	}
	return nil
}

// reader performs the ordered, read-once field access on a descriptor.
type reader struct {
	p    *Parser
	obj  *goja.Object
	seen map[string]bool
	path []string
}

func (p *Parser) newReader(name string, raw goja.Value) (*reader, error) {
	obj, ok := raw.(*goja.Object)
	if !ok {
		return nil, errors.New(errors.PhaseValidate, errors.KindInvalidArgument).
			Path(name).
			Value(Format(raw)).
			Detail("descriptor must be an object").
			Build()
	}
	return &reader{p: p, obj: obj, seen: make(map[string]bool, 4), path: []string{name}}, nil
}

func (r *reader) at(key string) []string {
	p := make([]string, len(r.path), len(r.path)+1)
	copy(p, r.path)
	return append(p, key)
}

// read performs a single [[Get]]. An exception thrown by a getter or a
// proxy trap is returned unchanged.
func (r *reader) read(key string) (goja.Value, error) {
	if r.seen[key] {
		return nil, errors.Internal(errors.PhaseValidate, "field "+key+" read twice", nil)
	}
	r.seen[key] = true

	var v goja.Value
	if ex := r.p.vm.Try(func() { v = r.obj.Get(key) }); ex != nil {
		return nil, ex
	}
	if v == nil {
		v = goja.Undefined()
	}
	Logger().Debug("descriptor field read",
		zap.Strings("path", r.path),
		zap.String("field", key),
		zap.String("value", Format(v)))
	return v, nil
}

func (r *reader) indexType() (wasmjsapi.IndexType, error) {
	v, err := r.read("index")
	if err != nil {
		return 0, err
	}
	if goja.IsUndefined(v) {
		return wasmjsapi.I32, nil
	}
	s, err := r.p.toString(v, r.at("index"))
	if err != nil {
		return 0, err
	}
	it, ok := wasmjsapi.ParseIndexType(s)
	if !ok {
		return 0, errors.New(errors.PhaseValidate, errors.KindInvalidArgument).
			Path(r.at("index")...).
			Value(s).
			Detail("unknown index type %q", s).
			Build()
	}
	return it, nil
}

func (r *reader) elemType() (wasmjsapi.ElemType, error) {
	v, err := r.read("element")
	if err != nil {
		return 0, err
	}
	if goja.IsUndefined(v) {
		return 0, errors.InvalidArgument(errors.PhaseValidate, r.at("element"), "element is required")
	}
	s, err := r.p.toString(v, r.at("element"))
	if err != nil {
		return 0, err
	}
	et, ok := wasmjsapi.ParseElemType(s)
	if !ok {
		return 0, errors.New(errors.PhaseValidate, errors.KindInvalidArgument).
			Path(r.at("element")...).
			Value(s).
			Detail("unknown element type %q", s).
			Build()
	}
	return et, nil
}

func (r *reader) requiredAddress(key string, it wasmjsapi.IndexType) (uint64, error) {
	v, err := r.read(key)
	if err != nil {
		return 0, err
	}
	if goja.IsUndefined(v) {
		return 0, errors.InvalidArgument(errors.PhaseValidate, r.at(key), "%s is required", key)
	}
	return r.p.Address(v, it, r.at(key)...)
}

func (r *reader) optionalAddress(key string, it wasmjsapi.IndexType) (*uint64, error) {
	v, err := r.read(key)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(v) {
		return nil, nil
	}
	n, err := r.p.Address(v, it, r.at(key)...)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// toString is ToString: objects go through their toString or valueOf once,
// and a Symbol is a TypeError.
func (p *Parser) toString(v goja.Value, path []string) (string, error) {
	var s goja.Value
	if _, ok := v.(*goja.Symbol); !ok {
		if ex := p.vm.Try(func() { s = v.ToString() }); ex != nil {
			return "", p.fieldError(path, ex)
		}
	}
	if s == nil {
		return "", errors.InvalidArgument(errors.PhaseConvert, path, "cannot convert a Symbol to a string")
	}
	if _, ok := s.(*goja.Symbol); ok {
		return "", errors.InvalidArgument(errors.PhaseConvert, path, "cannot convert a Symbol to a string")
	}
	return s.String(), nil
}
