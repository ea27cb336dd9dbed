package foundry

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Visitor dispatches values to registered handler methods, threading an
// accumulator through consecutive visits.
type Visitor[O any] interface {
	// Visit dispatches by the runtime type of the value.
	Visit(acc O, value any) (O, error)

	// VisitAs dispatches by an explicit declared type, which may carry
	// metadata the runtime type erased.
	VisitAs(acc O, value any, desc TypeDesc) (O, error)
}

// TargetedModule refines the declared target types of a module's visit
// methods, keyed by method name. Needed when a handler targets a
// parameterized or annotated type the method parameter can not express.
type TargetedModule interface {
	VisitTargets() map[string]TypeDesc
}

// VisitorHandler routes each value to the single most specific handler among
// the visit methods of its registered modules. Candidates are the handlers
// whose declared target accepts the value's declared type; ties are broken by
// subtype distance, then by annotation overlap, and a remaining tie fails
// with an AmbiguousDispatchError rather than picking arbitrarily.
//
// Transform runs a whole instance through the handler by flattening it and
// visiting every field in schema order.
type VisitorHandler[I, O any] struct {
	empty   func() O
	entries []*visitEntry[O]
	memo    *xsync.Map[resolveKey, *visitEntry[O]]
}

// resolveKey identifies a declared type for memoization. Display strings are
// not unique across packages, so plain raw descriptors key on the reflect.Type
// itself and richer descriptors key on their own identity.
type resolveKey struct {
	raw  reflect.Type
	desc TypeDesc
}

func memoKeyOf(desc TypeDesc) resolveKey {
	if r, ok := desc.(*Raw); ok {
		return resolveKey{raw: r.Type}
	}
	return resolveKey{desc: desc}
}

type visitEntry[O any] struct {
	desc        TypeDesc
	raw         reflect.Type
	annotations []string
	invoke      func(v Visitor[O], acc O, value any) (O, error)
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// NewVisitorHandler scans the modules for exported methods named Visit* and
// registers each as a handler. A visit method has the shape
//
//	func (m *Module) VisitName(v Visitor[O], acc O, value T) (O, error)
//
// where T is the handled target type. A method with the Visit prefix and any
// other shape fails construction with ErrBadVisitMethod. A nil empty function
// defaults the accumulator to the zero value of O.
func NewVisitorHandler[I, O any](empty func() O, modules ...any) (*VisitorHandler[I, O], error) {
	if empty == nil {
		empty = func() O { var zero O; return zero }
	}
	h := &VisitorHandler[I, O]{
		empty: empty,
		memo:  xsync.NewMap[resolveKey, *visitEntry[O]](),
	}

	visitorType := reflect.TypeOf((*Visitor[O])(nil)).Elem()
	accType := reflect.TypeOf((*O)(nil)).Elem()

	for _, module := range modules {
		if module == nil {
			return nil, fmt.Errorf("%w: nil module", ErrBadVisitMethod)
		}
		targets := map[string]TypeDesc{}
		if tm, ok := module.(TargetedModule); ok {
			targets = tm.VisitTargets()
		}

		mt := reflect.TypeOf(module)
		mv := reflect.ValueOf(module)
		for i := 0; i < mt.NumMethod(); i++ {
			m := mt.Method(i)
			if !strings.HasPrefix(m.Name, "Visit") || m.Name == "VisitTargets" {
				continue
			}
			entry, err := newVisitEntry[O](mv, m, visitorType, accType, targets[m.Name])
			if err != nil {
				return nil, err
			}
			h.entries = append(h.entries, entry)
		}
	}
	return h, nil
}

func newVisitEntry[O any](mv reflect.Value, m reflect.Method, visitorType, accType reflect.Type, target TypeDesc) (*visitEntry[O], error) {
	sig := m.Type
	if sig.NumIn() != 4 || sig.NumOut() != 2 ||
		sig.In(1) != visitorType || sig.In(2) != accType ||
		sig.Out(0) != accType || sig.Out(1) != errType {
		return nil, fmt.Errorf("%w: %s.%s", ErrBadVisitMethod, mv.Type(), m.Name)
	}

	valueType := sig.In(3)
	desc := target
	if desc == nil {
		desc = Of(valueType)
	}
	if rt := RawType(desc); rt != nil && !typeAssignable(valueType, rt) {
		return nil, fmt.Errorf("%w: %s.%s declares target %s for parameter %s",
			ErrBadVisitMethod, mv.Type(), m.Name, desc, valueType)
	}

	fn := m.Func
	receiver := mv
	invoke := func(v Visitor[O], acc O, value any) (O, error) {
		args := []reflect.Value{
			receiver,
			reflect.ValueOf(&v).Elem(),
			reflect.ValueOf(&acc).Elem(),
			coerce(value, valueType),
		}
		out := fn.Call(args)
		res := out[0].Interface().(O)
		if e := out[1].Interface(); e != nil {
			return res, e.(error)
		}
		return res, nil
	}

	return &visitEntry[O]{
		desc:        desc,
		raw:         RawType(desc),
		annotations: AnnotationsOf(desc),
		invoke:      invoke,
	}, nil
}

// coerce shapes a boxed value into a call argument of the wanted type,
// converting related scalars and keeping nil as the zero value.
func coerce(value any, want reflect.Type) reflect.Value {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return reflect.Zero(want)
	}
	if rv.Type() == want || rv.Type().AssignableTo(want) {
		if want.Kind() == reflect.Interface && rv.Type() != want {
			out := reflect.New(want).Elem()
			out.Set(rv)
			return out
		}
		return rv
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want)
	}
	return rv
}

// Visit dispatches by the runtime type of the value.
func (h *VisitorHandler[I, O]) Visit(acc O, value any) (O, error) {
	t := reflect.TypeOf(value)
	if t == nil {
		t = anyType
	}
	return h.VisitAs(acc, value, Of(t))
}

// VisitAs dispatches by the declared type descriptor.
func (h *VisitorHandler[I, O]) VisitAs(acc O, value any, desc TypeDesc) (O, error) {
	entry, err := h.resolve(desc)
	if err != nil {
		var zero O
		return zero, err
	}
	return entry.invoke(h, acc, value)
}

// resolve picks the single most specific handler for a declared type.
// Successful resolutions are memoized by descriptor identity; failures are
// recomputed so module sets registered later in a program's life do not
// poison earlier lookups.
func (h *VisitorHandler[I, O]) resolve(desc TypeDesc) (*visitEntry[O], error) {
	key := memoKeyOf(desc)
	if e, ok := h.memo.Load(key); ok {
		return e, nil
	}

	var candidates []*visitEntry[O]
	for _, e := range h.entries {
		if Compatible(e.desc, desc) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVisitor, desc)
	}

	if len(candidates) > 1 {
		candidates = closestByDistance(RawType(desc), candidates)
	}
	if len(candidates) > 1 {
		candidates = widestOverlap(AnnotationsOf(desc), candidates)
	}
	if len(candidates) > 1 {
		tied := make([]string, len(candidates))
		for i, e := range candidates {
			tied[i] = e.desc.String()
		}
		return nil, &AmbiguousDispatchError{Declared: desc.String(), Candidates: tied}
	}

	winner := candidates[0]
	h.memo.Store(key, winner)
	return winner, nil
}

func closestByDistance[O any](raw reflect.Type, candidates []*visitEntry[O]) []*visitEntry[O] {
	best := math.MaxInt
	var out []*visitEntry[O]
	for _, e := range candidates {
		d := Distance(raw, e.raw)
		if d < 0 {
			d = math.MaxInt
		}
		switch {
		case d < best:
			best = d
			out = out[:0]
			out = append(out, e)
		case d == best:
			out = append(out, e)
		}
	}
	return out
}

func widestOverlap[O any](annotations []string, candidates []*visitEntry[O]) []*visitEntry[O] {
	declared := map[string]bool{}
	for _, a := range annotations {
		declared[a] = true
	}

	best := -1
	var out []*visitEntry[O]
	for _, e := range candidates {
		overlap := 0
		for _, a := range e.annotations {
			if declared[a] {
				overlap++
			}
		}
		switch {
		case overlap > best:
			best = overlap
			out = out[:0]
			out = append(out, e)
		case overlap == best:
			out = append(out, e)
		}
	}
	return out
}

// Transform flattens the instance under structural modeling and visits every
// field in schema order, threading the accumulator from empty to the result.
func (h *VisitorHandler[I, O]) Transform(instance I) (O, error) {
	acc := h.empty()

	fl, err := FlattenerFor(reflect.TypeOf((*I)(nil)).Elem(), Structural)
	if err != nil {
		return acc, err
	}
	obj, err := fl.Flatten(instance)
	if err != nil {
		return acc, err
	}

	for _, f := range obj.Fields() {
		acc, err = h.VisitAs(acc, f.Value(), f.Desc())
		if err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// Handler adapts the transform into a plain handler function.
func (h *VisitorHandler[I, O]) Handler() Handler[I, O] {
	return h.Transform
}
