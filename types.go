package foundry

import (
	"fmt"
	"reflect"
	"strings"
)

// TypeDesc describes a declared type, including metadata Go's reflect layer
// erases: type arguments, bounded variables, wildcards and annotations.
// Descriptors are built with Of, TypeOf, Param, SliceOf, Extends, SuperOf,
// Var and Annotate, and consumed by Compatible and the visitor dispatch.
type TypeDesc interface {
	fmt.Stringer
	typeDesc()
}

// Raw is a plain runtime type with no further metadata.
type Raw struct {
	Type reflect.Type
}

// Parameterized is a raw type carrying explicit type arguments,
// e.g. a list of strings as opposed to a bare list.
type Parameterized struct {
	Raw  reflect.Type
	Args []TypeDesc
}

// Array describes an array or slice shape by its element descriptor.
type Array struct {
	Elem TypeDesc
}

// Wildcard matches any type within its bounds: every upper bound must accept
// the actual type, and the actual type must accept every lower bound.
type Wildcard struct {
	Upper []TypeDesc
	Lower []TypeDesc
}

// Variable is a bounded type variable. Repeated occurrences of the same
// variable resolve consistently within a single compatibility check.
type Variable struct {
	Name   string
	Bounds []TypeDesc
}

// Annotated decorates a descriptor with annotation metadata. Annotations do
// not affect compatibility; they participate in dispatch tie-breaks.
type Annotated struct {
	Desc        TypeDesc
	Annotations []string
}

func (*Raw) typeDesc()           {}
func (*Parameterized) typeDesc() {}
func (*Array) typeDesc()         {}
func (*Wildcard) typeDesc()      {}
func (*Variable) typeDesc()      {}
func (*Annotated) typeDesc()     {}

func (d *Raw) String() string { return d.Type.String() }

func (d *Parameterized) String() string {
	args := make([]string, len(d.Args))
	for i, a := range d.Args {
		args[i] = a.String()
	}
	return d.Raw.String() + "[" + strings.Join(args, ", ") + "]"
}

func (d *Array) String() string { return "[]" + d.Elem.String() }

func (d *Wildcard) String() string {
	s := "?"
	for _, u := range d.Upper {
		s += " extends " + u.String()
	}
	for _, l := range d.Lower {
		s += " super " + l.String()
	}
	return s
}

func (d *Variable) String() string { return d.Name }

func (d *Annotated) String() string {
	return strings.Join(d.Annotations, " ") + " " + d.Desc.String()
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// Of wraps a runtime type in a descriptor. Returns nil for a nil type.
func Of(t reflect.Type) TypeDesc {
	if t == nil {
		return nil
	}
	return &Raw{Type: t}
}

// TypeOf captures the descriptor of a compile-time known type, including
// unnamed composites such as map[string][]int.
func TypeOf[T any]() TypeDesc {
	return Of(reflect.TypeOf((*T)(nil)).Elem())
}

// Param builds a parameterized descriptor from a raw type and its arguments.
func Param(raw reflect.Type, args ...TypeDesc) TypeDesc {
	return &Parameterized{Raw: raw, Args: args}
}

// SliceOf builds an array descriptor with the given element descriptor.
func SliceOf(elem TypeDesc) TypeDesc { return &Array{Elem: elem} }

// Extends builds an upper-bounded wildcard descriptor.
func Extends(bounds ...TypeDesc) TypeDesc { return &Wildcard{Upper: bounds} }

// SuperOf builds a lower-bounded wildcard descriptor.
func SuperOf(bounds ...TypeDesc) TypeDesc { return &Wildcard{Lower: bounds} }

// Var builds a bounded type variable. Two calls produce distinct variables
// even with the same name; identity, not the name, drives binding.
func Var(name string, bounds ...TypeDesc) *Variable {
	return &Variable{Name: name, Bounds: bounds}
}

// Annotate decorates a descriptor with annotations.
func Annotate(desc TypeDesc, annotations ...string) TypeDesc {
	return &Annotated{Desc: desc, Annotations: annotations}
}

// Compatible reports whether a value described by actual can be used where
// expected is required. Annotations are ignored; identical descriptors, the
// assignability lattice, invariant type arguments, array elements, wildcard
// bounds and consistently-bound type variables are all honored. A raw actual
// standing in for a parameterized expected is accepted unconditionally,
// matching erasure semantics. Panics on nil descriptors.
func Compatible(expected, actual TypeDesc) bool {
	if expected == nil || actual == nil {
		panic("foundry: Compatible requires non-nil type descriptors")
	}
	return compatible(expected, actual, map[*Variable]TypeDesc{})
}

func compatible(expected, actual TypeDesc, vars map[*Variable]TypeDesc) bool {
	expected = unannotated(expected)
	actual = unannotated(actual)

	if descEqual(expected, actual) {
		return true
	}

	switch e := expected.(type) {
	case *Raw:
		at := RawType(actual)
		return at != nil && typeAssignable(e.Type, at)
	case *Parameterized:
		return parameterizedAccepts(e, actual, vars)
	case *Array:
		elem := arrayElem(actual)
		return elem != nil && compatible(e.Elem, elem, vars)
	case *Wildcard:
		for _, upper := range e.Upper {
			if !compatible(upper, actual, vars) {
				return false
			}
		}
		for _, lower := range e.Lower {
			if !compatible(actual, lower, vars) {
				return false
			}
		}
		return true
	case *Variable:
		if bound, ok := vars[e]; ok {
			return compatible(bound, actual, vars)
		}
		// Bind before checking so self-referential bounds terminate.
		vars[e] = actual
		for _, bound := range e.Bounds {
			if !compatible(bound, actual, vars) {
				delete(vars, e)
				return false
			}
		}
		return true
	}
	return false
}

func parameterizedAccepts(expected *Parameterized, actual TypeDesc, vars map[*Variable]TypeDesc) bool {
	araw := RawType(actual)
	if araw == nil || !typeAssignable(expected.Raw, araw) {
		return false
	}

	switch a := actual.(type) {
	case *Raw:
		// Erased actual, accepted unconditionally.
		return true
	case *Parameterized:
		if len(expected.Args) != len(a.Args) {
			return false
		}
		for i := range expected.Args {
			if !argumentAccepts(expected.Args[i], a.Args[i], vars) {
				return false
			}
		}
		return true
	}
	return false
}

// argumentAccepts compares one type-argument pair. Arguments are invariant:
// only wildcards and type variables admit a differing actual argument.
func argumentAccepts(expected, actual TypeDesc, vars map[*Variable]TypeDesc) bool {
	switch unannotated(expected).(type) {
	case *Wildcard, *Variable:
		return compatible(expected, actual, vars)
	}
	return descEqual(unannotated(expected), unannotated(actual))
}

// typeAssignable is the raw-type lattice test. Beyond Go assignability it
// accepts same-kind scalar types related by conversion, so a named scalar and
// its underlying type stand in for each other in both directions.
func typeAssignable(expected, actual reflect.Type) bool {
	if actual == expected || actual.AssignableTo(expected) {
		return true
	}
	if actual.Kind() == expected.Kind() && scalarKind(actual.Kind()) && actual.ConvertibleTo(expected) {
		return true
	}
	return false
}

func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func arrayElem(desc TypeDesc) TypeDesc {
	switch d := unannotated(desc).(type) {
	case *Array:
		return d.Elem
	case *Raw:
		if d.Type.Kind() == reflect.Slice || d.Type.Kind() == reflect.Array {
			return Of(d.Type.Elem())
		}
	}
	return nil
}

// RawType resolves the runtime type a descriptor stands for, or nil when it
// can not be determined (multiple bounds, unresolvable elements). Unbounded
// wildcards and variables resolve to the empty interface.
func RawType(desc TypeDesc) reflect.Type {
	switch d := desc.(type) {
	case *Raw:
		return d.Type
	case *Parameterized:
		return d.Raw
	case *Array:
		elem := RawType(d.Elem)
		if elem == nil {
			return nil
		}
		return reflect.SliceOf(elem)
	case *Wildcard:
		return singleBound(d.Upper)
	case *Variable:
		return singleBound(d.Bounds)
	case *Annotated:
		return RawType(d.Desc)
	}
	return nil
}

func singleBound(bounds []TypeDesc) reflect.Type {
	switch len(bounds) {
	case 0:
		return anyType
	case 1:
		return RawType(bounds[0])
	}
	return nil
}

// AnnotationsOf collects the annotations attached to a descriptor.
func AnnotationsOf(desc TypeDesc) []string {
	var out []string
	for {
		a, ok := desc.(*Annotated)
		if !ok {
			return out
		}
		out = append(out, a.Annotations...)
		desc = a.Desc
	}
}

func unannotated(desc TypeDesc) TypeDesc {
	for {
		a, ok := desc.(*Annotated)
		if !ok {
			return desc
		}
		desc = a.Desc
	}
}

func descEqual(a, b TypeDesc) bool {
	return reflect.DeepEqual(a, b)
}

// Distance is the shortest path in the unweighted subtype graph from sub to
// super: 0 to itself, one per level of struct embedding, and one edge for
// satisfying an interface. Returns -1 when the types are unrelated.
func Distance(sub, super reflect.Type) int {
	if sub == nil || super == nil {
		return -1
	}

	type step struct {
		t     reflect.Type
		depth int
	}

	best := -1
	queue := []step{{sub, 0}}
	seen := map[reflect.Type]bool{sub: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if best >= 0 && cur.depth >= best {
			continue
		}

		if cur.t == super {
			best = cur.depth
			continue
		}

		if super.Kind() == reflect.Interface && implementsIface(cur.t, super) {
			if d := cur.depth + 1; best < 0 || d < best {
				best = d
			}
		}

		if cur.t.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < cur.t.NumField(); i++ {
			f := cur.t.Field(i)
			if !f.Anonymous {
				continue
			}
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if !seen[et] {
				seen[et] = true
				queue = append(queue, step{et, cur.depth + 1})
			}
		}
	}
	return best
}

func implementsIface(t, iface reflect.Type) bool {
	if t.Implements(iface) {
		return true
	}
	return t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer &&
		reflect.PointerTo(t).Implements(iface)
}
