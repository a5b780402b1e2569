package realm

import (
	"context"
	stderrors "errors"

	"github.com/dop251/goja"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/descriptor"
	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
)

// Realm binds the WebAssembly namespace of one goja runtime to a backend.
// Like the runtime, a realm is used from a single goroutine.
type Realm struct {
	// ctx scopes every allocation made through the constructors.
	ctx     context.Context
	vm      *goja.Runtime
	parser  *descriptor.Parser
	backend engine.Backend
	log     *zap.Logger

	memories map[*goja.Object]*memoryState
	tables   map[*goja.Object]*tableState
	shared   map[*goja.Object][]byte
	handles  []handle

	WebAssembly *goja.Object
	Memory      *goja.Object
	Table       *goja.Object

	MemoryPrototype            *goja.Object
	TablePrototype             *goja.Object
	ArrayBufferPrototype       *goja.Object
	SharedArrayBufferPrototype *goja.Object
}

// handle is an engine resource owned by the realm.
type handle interface {
	Close(ctx context.Context) error
}

// Option configures a Realm.
type Option func(*Realm)

// WithLogger sets the realm's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Realm) {
		r.log = l
	}
}

// WithRuntime installs the realm into an existing runtime instead of a
// fresh one.
func WithRuntime(vm *goja.Runtime) Option {
	return func(r *Realm) {
		r.vm = vm
	}
}

// New creates a realm over backend and installs WebAssembly as a global.
func New(ctx context.Context, backend engine.Backend, opts ...Option) *Realm {
	r := &Realm{
		ctx:      ctx,
		backend:  backend,
		log:      zap.NewNop(),
		memories: make(map[*goja.Object]*memoryState),
		tables:   make(map[*goja.Object]*tableState),
		shared:   make(map[*goja.Object][]byte),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.vm == nil {
		r.vm = goja.New()
	}
	r.parser = descriptor.NewParser(r.vm)
	r.log = r.log.With(zap.String("backend", backend.Name()))

	r.initBuffers()
	r.initMemory()
	r.initTable()

	r.WebAssembly = r.vm.NewObject()
	r.define(r.WebAssembly, "Memory", r.Memory)
	r.define(r.WebAssembly, "Table", r.Table)
	_ = r.WebAssembly.DefineDataPropertySymbol(goja.SymToStringTag, r.vm.ToValue("WebAssembly"),
		goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	r.define(r.vm.GlobalObject(), "WebAssembly", r.WebAssembly)
	return r
}

// VM returns the runtime the realm is installed in.
func (r *Realm) VM() *goja.Runtime {
	return r.vm
}

// Backend returns the backend the realm allocates from.
func (r *Realm) Backend() engine.Backend {
	return r.backend
}

// Eval runs a script in the realm's runtime.
func (r *Realm) Eval(src string) (goja.Value, error) {
	return r.vm.RunString(src)
}

// NewMemory constructs a memory from a descriptor, as new WebAssembly.Memory would.
func (r *Realm) NewMemory(desc goja.Value) (*goja.Object, error) {
	return r.vm.New(r.Memory, desc)
}

// NewTable constructs a table, as new WebAssembly.Table would. Omitting
// init uses the element type's default value.
func (r *Realm) NewTable(desc goja.Value, init ...goja.Value) (*goja.Object, error) {
	return r.vm.New(r.Table, append([]goja.Value{desc}, init...)...)
}

// ErrorName returns the error class a script would observe for err.
func (r *Realm) ErrorName(err error) string {
	return descriptor.ErrorName(r.vm, err)
}

// Close releases every memory and table the realm allocated. Handles stay
// reachable from scripts but no longer resolve to an engine resource.
func (r *Realm) Close(ctx context.Context) error {
	var err error
	for _, h := range r.handles {
		err = multierr.Append(err, h.Close(ctx))
	}
	r.handles = nil
	clear(r.memories)
	clear(r.tables)
	r.log.Debug("realm closed", zap.Error(err))
	return err
}

// throw raises err in the runtime. Exceptions raised by user code are
// rethrown unchanged; structured errors become an error of their class.
func (r *Realm) throw(err error) {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		panic(ex)
	}
	class := errors.ClassOf(err)
	if class == "" {
		class = errors.ClassError
	}
	ctor, ok := r.vm.Get(string(class)).(*goja.Object)
	if !ok {
		panic(r.vm.NewGoError(err))
	}
	obj, nerr := r.vm.New(ctor, r.vm.ToValue(err.Error()))
	if nerr != nil {
		panic(r.vm.NewGoError(err))
	}
	panic(obj)
}

// constructor wraps construct as a construct-only function of length 1.
// Its prototype object is created along with it.
func (r *Realm) constructor(name string, construct func(goja.ConstructorCall) *goja.Object) (ctor, proto *goja.Object) {
	ctor = r.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		if call.NewTarget == nil {
			panic(r.vm.NewTypeError("Constructor WebAssembly.%s requires 'new'", name))
		}
		return construct(call)
	}).(*goja.Object)
	r.rename(ctor, name, 1)

	proto = ctor.Get("prototype").(*goja.Object)
	_ = proto.DefineDataPropertySymbol(goja.SymToStringTag, r.vm.ToValue("WebAssembly."+name),
		goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return ctor, proto
}

// method defines an enumerable operation on proto.
func (r *Realm) method(proto *goja.Object, name string, length int, fn func(goja.FunctionCall) goja.Value) {
	f := r.vm.ToValue(fn).(*goja.Object)
	r.rename(f, name, length)
	_ = proto.DefineDataProperty(name, f, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// accessor defines an enumerable read-only attribute on proto.
func (r *Realm) accessor(proto *goja.Object, name string, get func(this goja.Value) goja.Value) {
	f := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(call.This)
	}).(*goja.Object)
	r.rename(f, "get "+name, 0)
	_ = proto.DefineAccessorProperty(name, f, nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (r *Realm) rename(f *goja.Object, name string, length int) {
	_ = f.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	_ = f.DefineDataProperty("length", r.vm.ToValue(length), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// define adds a writable, configurable, non-enumerable property.
func (r *Realm) define(obj *goja.Object, name string, v goja.Value) {
	_ = obj.DefineDataProperty(name, v, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func receiverError(iface, method string, this goja.Value) error {
	return errors.New(errors.PhaseAccess, errors.KindInvalidArgument).
		Path(iface, method).
		Value(descriptor.Format(this)).
		Detail("receiver %s is not a %s", descriptor.Format(this), iface).
		Build()
}
