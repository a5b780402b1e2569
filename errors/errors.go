package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConvert   Phase = "convert"   // host value coercion
	PhaseValidate  Phase = "validate"  // descriptor validation
	PhaseConstruct Phase = "construct" // constructor invocation
	PhaseAccess    Phase = "access"    // handle accessors (get/set/grow)
	PhaseEngine    Phase = "engine"    // backend allocation
	PhaseVerify    Phase = "verify"    // handle verification
	PhaseConfig    Phase = "config"    // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindLimitExceeded   Kind = "limit_exceeded"
	KindOutOfRange      Kind = "out_of_range"
	KindUnsupported     Kind = "unsupported"
	KindMismatch        Kind = "mismatch"
	KindInstantiation   Kind = "instantiation"
	KindInternal        Kind = "internal"
)

// Class is the error class a host observes for a failure.
type Class string

const (
	ClassTypeError  Class = "TypeError"
	ClassRangeError Class = "RangeError"
	ClassError      Class = "Error"
)

// Class maps the kind to the class surfaced to callers.
func (k Kind) Class() Class {
	switch k {
	case KindInvalidArgument:
		return ClassTypeError
	case KindLimitExceeded, KindOutOfRange:
		return ClassRangeError
	default:
		return ClassError
	}
}

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Want   string
	Got    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": want ")
		b.WriteString(e.Want)
		b.WriteString(", got ")
		b.WriteString(e.Got)
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Class returns the host-observable class of the error.
func (e *Error) Class() Class {
	return e.Kind.Class()
}

// ClassOf returns the class of the first structured error in err's chain,
// or the empty class when err carries none.
func ClassOf(err error) Class {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Class()
	}
	return ""
}

// KindOf returns the kind of the first structured error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Want sets the expected side of a comparison
func (b *Builder) Want(s string) *Builder {
	b.err.Want = s
	return b
}

// Got sets the observed side of a comparison
func (b *Builder) Got(s string) *Builder {
	b.err.Got = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidArgument creates an error for a malformed argument or field.
func InvalidArgument(phase Phase, path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Path:   path,
		Detail: detail,
	}
}

// LimitExceeded creates an error for well-typed values in an invalid relationship.
func LimitExceeded(phase Phase, path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindLimitExceeded,
		Path:   path,
		Detail: detail,
	}
}

// OutOfRange creates an out of range error for an element access
func OutOfRange(phase Phase, path []string, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of range (length %d)", index, length),
		Value:  index,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Mismatch creates a verification discrepancy
func Mismatch(path []string, want, got string) *Error {
	return &Error{
		Phase: PhaseVerify,
		Kind:  KindMismatch,
		Path:  path,
		Want:  want,
		Got:   got,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Internal creates an error for broken invariants inside a backend.
func Internal(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: detail,
		Cause:  cause,
	}
}
