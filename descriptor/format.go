package descriptor

import (
	"strconv"

	"github.com/dop251/goja"
)

// Format renders a host value for error messages and case names without
// running any user code: objects are never converted.
func Format(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	case goja.IsString(v):
		return strconv.Quote(v.String())
	case goja.IsBigInt(v):
		return v.String() + "n"
	case goja.IsNumber(v):
		return formatNumber(v.ToFloat())
	}
	switch t := v.(type) {
	case *goja.Symbol:
		if s := t.String(); s != "" {
			return "Symbol(" + s + ")"
		}
		return "Symbol()"
	case *goja.Object:
		if _, ok := goja.AssertFunction(t); ok {
			return "function"
		}
		return "[object " + t.ClassName() + "]"
	}
	return v.String()
}
