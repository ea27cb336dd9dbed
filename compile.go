package foundry

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/puzpuzpuz/xsync/v4"
)

// Accessor is the compiled pair of routines for one schema: Write deconstructs
// an instance into a container, Read constructs an instance back out of one.
// All reflection decisions (field paths, method indices, channel kinds) are
// resolved at compile time; the per-instance paths only walk precomputed ops.
// An Accessor is immutable and safe for concurrent use; the containers it
// produces are not.
type Accessor struct {
	schema  *Schema
	factory *ContainerFactory
	writes  []writeOp
	read    func(c *Container) (any, error)
}

type writeOp func(instance any, root reflect.Value, c *Container) error

// Schema returns the schema this accessor was compiled from.
func (a *Accessor) Schema() *Schema { return a.schema }

// NewContainer returns an empty container sized for this accessor's schema.
func (a *Accessor) NewContainer() *Container { return a.factory.New() }

// Write deconstructs the instance into a freshly sized container, visiting
// every attribute in schema order.
func (a *Accessor) Write(instance any) (*Container, error) {
	c := a.factory.New()
	if err := a.WriteInto(instance, c); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteInto deconstructs the instance into an existing container, allowing
// callers to reuse one across calls after ResetWriter.
func (a *Accessor) WriteInto(instance any, c *Container) error {
	root, err := a.handle(instance)
	if err != nil {
		return err
	}
	for _, op := range a.writes {
		if err := op(instance, root, c); err != nil {
			return err
		}
	}
	return nil
}

// Read constructs a new instance from the container's values, consuming each
// channel in the same order Write populated it.
func (a *Accessor) Read(c *Container) (any, error) {
	return a.read(c)
}

// handle normalizes the instance into an addressable root value: structs are
// copied when passed by value, pointers are dereferenced in place so setters
// mutate the caller's instance, interface sources keep the dynamic value
// behind the interface header.
func (a *Accessor) handle(instance any) (reflect.Value, error) {
	t := a.schema.Source
	rv := reflect.ValueOf(instance)

	if t.Kind() == reflect.Interface {
		if !rv.IsValid() || !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("%w: %T does not implement %s", ErrFieldMismatch, instance, t)
		}
		root := reflect.New(t).Elem()
		root.Set(rv)
		return root, nil
	}

	if rv.Kind() == reflect.Pointer && rv.Type().Elem() == t {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil *%s instance", ErrFieldMismatch, t)
		}
		return rv.Elem(), nil
	}
	if !rv.IsValid() || rv.Type() != t {
		got := "<nil>"
		if rv.IsValid() {
			got = rv.Type().String()
		}
		return reflect.Value{}, fmt.Errorf("%w: have %s, want %s", ErrFieldMismatch, got, t)
	}
	root := reflect.New(t).Elem()
	root.Set(rv)
	return root, nil
}

type accessorKey struct {
	source   reflect.Type
	strategy ModelingStrategy
}

var accessorCache = xsync.NewMap[accessorKey, *Accessor]()

// AccessorFor returns the memoized accessor for a type under the default
// construction of the given strategy. Compilation failures are returned, not
// cached, so a later call retries.
func AccessorFor(t reflect.Type, strategy ModelingStrategy) (*Accessor, error) {
	key := accessorKey{source: t, strategy: strategy}
	if a, ok := accessorCache.Load(key); ok {
		return a, nil
	}
	schema, err := SchemaFor(t, strategy)
	if err != nil {
		return nil, err
	}
	a, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	actual, _ := accessorCache.LoadOrStore(key, a)
	return actual, nil
}

// Compile builds the accessor for an explicit schema, bypassing the cache.
func Compile(schema *Schema) (*Accessor, error) {
	a := &Accessor{
		schema:  schema,
		factory: NewContainerFactory(schema),
	}

	for _, attr := range schema.Attributes {
		op, err := compileWrite(schema, attr)
		if err != nil {
			return nil, err
		}
		a.writes = append(a.writes, op)
	}

	read, err := compileRead(schema)
	if err != nil {
		return nil, err
	}
	a.read = read
	return a, nil
}

func compileWrite(schema *Schema, attr Attribute) (writeOp, error) {
	store := channelStore(attr)

	switch g := attr.Access.Getter.(type) {
	case *DirectAccess:
		index := g.Index
		return func(_ any, root reflect.Value, c *Container) error {
			fv, err := fieldAt(root, index, false)
			if err != nil {
				return err
			}
			return store(exported(fv), c)
		}, nil

	case *MethodAccess:
		idx, iface, err := methodIndex(schema.Source, g.Name, attr.Name)
		if err != nil {
			return nil, err
		}
		return func(_ any, root reflect.Value, c *Container) error {
			m := boundMethod(root, idx, iface)
			return store(m.Call(nil)[0], c)
		}, nil

	case *FuncAccess:
		if g.Get == nil {
			return nil, fmt.Errorf("%w: attribute %q has no getter", ErrMissingAccessor, attr.Name)
		}
		t := attr.Type
		return func(instance any, _ reflect.Value, c *Container) error {
			res, err := g.Get(instance)
			if err != nil {
				return err
			}
			rv := reflect.ValueOf(res)
			if !rv.IsValid() {
				rv = reflect.Zero(t)
			}
			return store(rv, c)
		}, nil
	}
	return nil, fmt.Errorf("%w: attribute %q has no getter", ErrMissingAccessor, attr.Name)
}

func compileRead(schema *Schema) (func(*Container) (any, error), error) {
	t := schema.Source

	switch con := schema.Construction.(type) {
	case *DiscriminatedFactory:
		return func(c *Container) (any, error) {
			o := c.ReadObject()
			name, ok := o.(string)
			if !ok {
				return nil, fmt.Errorf("%w: discriminant must be a string, got %T", ErrFieldMismatch, o)
			}
			return con.Resolve(name)
		}, nil

	case *AllArgsFactory:
		type place struct {
			fetch func(*Container) (reflect.Value, error)
			index []int
		}
		ops := make([]place, 0, len(schema.Attributes))
		for _, attr := range schema.Attributes {
			da, ok := attr.Access.Getter.(*DirectAccess)
			if !ok {
				return nil, fmt.Errorf("%w: all-args attribute %q must address storage directly",
					ErrBadConstruction, attr.Name)
			}
			ops = append(ops, place{fetch: channelFetch(attr), index: da.Index})
		}
		return func(c *Container) (any, error) {
			root := reflect.New(t).Elem()
			for _, op := range ops {
				v, err := op.fetch(c)
				if err != nil {
					return nil, err
				}
				fv, err := fieldAt(root, op.index, true)
				if err != nil {
					return nil, err
				}
				exported(fv).Set(v)
			}
			return root.Interface(), nil
		}, nil

	case *NoArgFactory:
		parts, err := buildParts(schema)
		if err != nil {
			return nil, err
		}
		return func(c *Container) (any, error) {
			root := reflect.New(t).Elem()
			instance := root.Addr().Interface()
			for _, p := range parts {
				if err := p.apply(instance, root, c); err != nil {
					return nil, err
				}
			}
			return root.Interface(), nil
		}, nil

	case *CustomFactory:
		parts, err := buildParts(schema)
		if err != nil {
			return nil, err
		}
		return func(c *Container) (any, error) {
			instance := con.New()
			if instance == nil {
				return nil, fmt.Errorf("%w: factory for %s returned nil", ErrBadConstruction, t)
			}
			root, byRef, err := adopt(t, instance)
			if err != nil {
				return nil, err
			}
			for _, p := range parts {
				if err := p.apply(instance, root, c); err != nil {
					return nil, err
				}
			}
			if byRef {
				return instance, nil
			}
			return root.Interface(), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown construction %T", ErrBadConstruction, schema.Construction)
}

// adopt binds a factory-produced instance to an addressable root. Pointer and
// interface instances keep their identity, so the factory result is returned
// after population; value instances are copied and the populated copy wins.
func adopt(t reflect.Type, instance any) (root reflect.Value, byRef bool, err error) {
	rv := reflect.ValueOf(instance)

	if t.Kind() == reflect.Interface {
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, false, fmt.Errorf("%w: factory produced %T, want %s",
				ErrBadConstruction, instance, t)
		}
		root = reflect.New(t).Elem()
		root.Set(rv)
		return root, true, nil
	}
	if rv.Kind() == reflect.Pointer && rv.Type().Elem() == t {
		return rv.Elem(), true, nil
	}
	if rv.Type() != t {
		return reflect.Value{}, false, fmt.Errorf("%w: factory produced %T, want %s",
			ErrBadConstruction, instance, t)
	}
	root = reflect.New(t).Elem()
	root.Set(rv)
	return root, false, nil
}

// part is a run of consecutive attributes declared by the same source type.
// Within a part, values are fetched in schema order and setters are applied in
// reverse, so a base type's own invariants settle after its derived overrides.
type part struct {
	steps []readStep
}

type readStep struct {
	fetch func(*Container) (reflect.Value, error)
	store func(instance any, root reflect.Value, v reflect.Value) error
}

func (p part) apply(instance any, root reflect.Value, c *Container) error {
	vals := make([]reflect.Value, len(p.steps))
	for i, s := range p.steps {
		v, err := s.fetch(c)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	for i := len(p.steps) - 1; i >= 0; i-- {
		if err := p.steps[i].store(instance, root, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func buildParts(schema *Schema) ([]part, error) {
	var parts []part
	var source reflect.Type

	for _, attr := range schema.Attributes {
		store, err := compileStore(schema, attr)
		if err != nil {
			return nil, err
		}
		step := readStep{fetch: channelFetch(attr), store: store}

		if len(parts) == 0 || attr.Source != source {
			parts = append(parts, part{})
			source = attr.Source
		}
		last := &parts[len(parts)-1]
		last.steps = append(last.steps, step)
	}
	return parts, nil
}

func compileStore(schema *Schema, attr Attribute) (func(any, reflect.Value, reflect.Value) error, error) {
	switch s := attr.Access.Setter.(type) {
	case *DirectAccess:
		index := s.Index
		return func(_ any, root reflect.Value, v reflect.Value) error {
			fv, err := fieldAt(root, index, true)
			if err != nil {
				return err
			}
			exported(fv).Set(v)
			return nil
		}, nil

	case *MethodAccess:
		idx, iface, err := methodIndex(schema.Source, s.Name, attr.Name)
		if err != nil {
			return nil, err
		}
		return func(_ any, root reflect.Value, v reflect.Value) error {
			return trailingError(boundMethod(root, idx, iface).Call([]reflect.Value{v}))
		}, nil

	case *FuncAccess:
		if s.Set == nil {
			return nil, fmt.Errorf("%w: attribute %q of %s", ErrMissingSetter, attr.Name, schema.Source)
		}
		return func(instance any, _ reflect.Value, v reflect.Value) error {
			return s.Set(instance, v.Interface())
		}, nil
	}
	return nil, fmt.Errorf("%w: attribute %q of %s", ErrMissingSetter, attr.Name, schema.Source)
}

// trailingError surfaces a non-nil error result from a setter that reports
// failures, leaving fluent results alone.
func trailingError(out []reflect.Value) error {
	if len(out) == 0 {
		return nil
	}
	if err, ok := out[len(out)-1].Interface().(error); ok {
		return err
	}
	return nil
}

// boundMethod resolves a precomputed method index against the root value:
// through the interface header for interface sources, through the address of
// the root otherwise so pointer receivers are reachable.
func boundMethod(root reflect.Value, idx int, iface bool) reflect.Value {
	if iface {
		return root.Method(idx)
	}
	return root.Addr().Method(idx)
}

func methodIndex(t reflect.Type, method, attribute string) (idx int, iface bool, err error) {
	mt := t
	iface = t.Kind() == reflect.Interface
	if !iface {
		mt = reflect.PointerTo(t)
	}
	m, ok := mt.MethodByName(method)
	if !ok {
		return 0, false, fmt.Errorf("%w: method %q for attribute %q on %s",
			ErrMissingAccessor, method, attribute, t)
	}
	return m.Index, iface, nil
}

// channelStore picks the container write routine for an attribute's kind. The
// value may carry a named type; the untyped reflect extractors widen it.
func channelStore(attr Attribute) func(v reflect.Value, c *Container) error {
	switch attr.Kind {
	case KindBool:
		return func(v reflect.Value, c *Container) error { c.WriteBool(v.Bool()); return nil }
	case KindChar:
		return func(v reflect.Value, c *Container) error { c.WriteChar(rune(v.Int())); return nil }
	case KindByte:
		return func(v reflect.Value, c *Container) error {
			if v.Kind() == reflect.Int8 {
				c.WriteByte(byte(v.Int()))
			} else {
				c.WriteByte(byte(v.Uint()))
			}
			return nil
		}
	case KindShort:
		return func(v reflect.Value, c *Container) error { c.WriteShort(int16(v.Int())); return nil }
	case KindInt:
		return func(v reflect.Value, c *Container) error { c.WriteInt(int(v.Int())); return nil }
	case KindLong:
		return func(v reflect.Value, c *Container) error {
			if v.Kind() == reflect.Int64 {
				c.WriteLong(v.Int())
			} else {
				c.WriteLong(int64(v.Uint()))
			}
			return nil
		}
	case KindFloat:
		return func(v reflect.Value, c *Container) error { c.WriteFloat(float32(v.Float())); return nil }
	case KindDouble:
		return func(v reflect.Value, c *Container) error { c.WriteDouble(v.Float()); return nil }
	}
	return func(v reflect.Value, c *Container) error {
		if !v.IsValid() {
			c.WriteObject(nil)
			return nil
		}
		c.WriteObject(v.Interface())
		return nil
	}
}

// channelFetch picks the container read routine for an attribute, converting
// the channel's carrier type back to the attribute's declared type.
func channelFetch(attr Attribute) func(*Container) (reflect.Value, error) {
	t := attr.Type
	switch attr.Kind {
	case KindBool:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadBool()), t, attr.Name) }
	case KindChar:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadChar()), t, attr.Name) }
	case KindByte:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadByte()), t, attr.Name) }
	case KindShort:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadShort()), t, attr.Name) }
	case KindInt:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadInt()), t, attr.Name) }
	case KindLong:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadLong()), t, attr.Name) }
	case KindFloat:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadFloat()), t, attr.Name) }
	case KindDouble:
		return func(c *Container) (reflect.Value, error) { return narrow(reflect.ValueOf(c.ReadDouble()), t, attr.Name) }
	}

	nullable := attr.Nullable || nilable(t)
	name := attr.Name
	return func(c *Container) (reflect.Value, error) {
		o := c.ReadObject()
		if o == nil {
			if nullable {
				return reflect.Zero(t), nil
			}
			return reflect.Value{}, fmt.Errorf("%w: nil value for non-nullable attribute %q", ErrFieldMismatch, name)
		}
		rv := reflect.ValueOf(o)
		if rv.Type() == t || rv.Type().AssignableTo(t) {
			return rv, nil
		}
		if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %s for attribute %q of type %s", ErrFieldMismatch, rv.Type(), name, t)
	}
}

// narrow converts a channel carrier value back to the declared attribute type.
func narrow(rv reflect.Value, t reflect.Type, name string) (reflect.Value, error) {
	if rv.Type() == t {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s for attribute %q of type %s", ErrFieldMismatch, rv.Type(), name, t)
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// fieldAt walks an index path from the root, dereferencing embedded pointers.
// A nil embedded pointer fails reads and is allocated on writes.
func fieldAt(root reflect.Value, index []int, alloc bool) (reflect.Value, error) {
	v := root
	for _, i := range index {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc {
					return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilEmbedded, v.Type())
				}
				exported(v).Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, nil
}

// exported launders an unexported field into a readable, settable value. The
// input must be addressable, which every field reached from a compiled root is.
func exported(v reflect.Value) reflect.Value {
	if v.CanInterface() && v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
