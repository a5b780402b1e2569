package conformance

import (
	"regexp"

	"github.com/dop251/goja"

	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
	"github.com/wippyai/wasm-jsapi/verify"
)

// Case is a single conformance check. Most cases are scripts evaluated in
// the case's realm.
type Case struct {
	Run      func(r *realm.Realm) error
	Name     string
	Requires engine.Features
}

// Suite is a named group of cases.
type Suite struct {
	Name  string
	Cases []Case
}

// Filter returns the cases whose name matches re. A nil re keeps every case.
func (s Suite) Filter(re *regexp.Regexp) Suite {
	if re == nil {
		return s
	}
	out := Suite{Name: s.Name}
	for _, c := range s.Cases {
		if re.MatchString(s.Name + "/" + c.Name) {
			out.Cases = append(out.Cases, c)
		}
	}
	return out
}

// All returns every suite.
func All() []Suite {
	return []Suite{
		MemoryConstructor(),
		MemoryGrow(),
		TableConstructor(),
		TableAccess(),
	}
}

// Lookup finds a suite by name.
func Lookup(name string) (Suite, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Suite{}, false
}

// Names lists the names of every suite.
func Names() []string {
	suites := All()
	names := make([]string, len(suites))
	for i, s := range suites {
		names[i] = s.Name
	}
	return names
}

// throws builds a case expecting the script act to throw class.
func throws(name string, class errors.Class, act string) Case {
	return throwsOn(name, class, "", act)
}

// throwsOn builds a case that runs setup and then expects act to throw
// class. An error from setup fails the case; it never counts as the
// expected error.
func throwsOn(name string, class errors.Class, setup, act string) Case {
	return Case{
		Name: name,
		Run: func(r *realm.Realm) error {
			if setup != "" {
				if _, err := r.Eval(setup); err != nil {
					return errors.Wrap(errors.PhaseVerify, errors.KindMismatch, err, name+": setup failed")
				}
			}
			return verify.Throws(r.VM(), class, func() error {
				_, err := r.Eval(act)
				return err
			}, name)
		},
	}
}

// check builds a case evaluating src and passing the result to fn.
func check(name string, req engine.Features, src string, fn func(r *realm.Realm, v goja.Value) error) Case {
	return Case{
		Name:     name,
		Requires: req,
		Run: func(r *realm.Realm) error {
			v, err := r.Eval(src)
			if err != nil {
				return err
			}
			return fn(r, v)
		},
	}
}

// eval evaluates an expression inside a case.
func eval(r *realm.Realm, src string) (goja.Value, error) {
	return r.Eval("(" + src + ")")
}

func requires(f engine.Features, c Case) Case {
	c.Requires |= f
	return c
}

// invalidDescriptors are primitive or empty descriptor arguments.
var invalidDescriptors = []string{
	"undefined",
	"null",
	"false",
	"true",
	`""`,
	`"test"`,
	"Symbol()",
	"1",
	"NaN",
	"{}",
}

// outOfRange are Number addresses no narrow descriptor accepts.
var outOfRange = []string{
	"NaN",
	"Infinity",
	"-Infinity",
	"-1",
	"0x100000000",
	"0x1000000000",
}

// outOfRangeWide are BigInt addresses no wide descriptor accepts.
var outOfRangeWide = []string{
	"-1n",
	"2n ** 64n",
}
