package foundry

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// Field is one named, kind-tagged value of a deconstructed object. The
// concrete type identifies the channel the value travels through, so a field
// survives a round trip through a container without re-inspection.
type Field interface {
	Name() string
	Desc() TypeDesc
	Value() any

	kind() Kind
}

type fieldMeta struct {
	name string
	desc TypeDesc
}

func (m fieldMeta) Name() string   { return m.name }
func (m fieldMeta) Desc() TypeDesc { return m.desc }

// BoolField carries a bool channel value.
type BoolField struct {
	fieldMeta
	value bool
}

// CharField carries a rune channel value.
type CharField struct {
	fieldMeta
	value rune
}

// ByteField carries a byte channel value.
type ByteField struct {
	fieldMeta
	value byte
}

// ShortField carries an int16 channel value.
type ShortField struct {
	fieldMeta
	value int16
}

// IntField carries an int channel value.
type IntField struct {
	fieldMeta
	value int
}

// LongField carries an int64 channel value.
type LongField struct {
	fieldMeta
	value int64
}

// FloatField carries a float32 channel value.
type FloatField struct {
	fieldMeta
	value float32
}

// DoubleField carries a float64 channel value.
type DoubleField struct {
	fieldMeta
	value float64
}

// ObjectField carries a boxed value from the object channel.
type ObjectField struct {
	fieldMeta
	value any
}

func NewBoolField(name string, desc TypeDesc, value bool) BoolField {
	return BoolField{fieldMeta{name, desc}, value}
}
func NewCharField(name string, desc TypeDesc, value rune) CharField {
	return CharField{fieldMeta{name, desc}, value}
}
func NewByteField(name string, desc TypeDesc, value byte) ByteField {
	return ByteField{fieldMeta{name, desc}, value}
}
func NewShortField(name string, desc TypeDesc, value int16) ShortField {
	return ShortField{fieldMeta{name, desc}, value}
}
func NewIntField(name string, desc TypeDesc, value int) IntField {
	return IntField{fieldMeta{name, desc}, value}
}
func NewLongField(name string, desc TypeDesc, value int64) LongField {
	return LongField{fieldMeta{name, desc}, value}
}
func NewFloatField(name string, desc TypeDesc, value float32) FloatField {
	return FloatField{fieldMeta{name, desc}, value}
}
func NewDoubleField(name string, desc TypeDesc, value float64) DoubleField {
	return DoubleField{fieldMeta{name, desc}, value}
}
func NewObjectField(name string, desc TypeDesc, value any) ObjectField {
	return ObjectField{fieldMeta{name, desc}, value}
}

func (f BoolField) Bool() bool        { return f.value }
func (f CharField) Char() rune        { return f.value }
func (f ByteField) Byte() byte        { return f.value }
func (f ShortField) Short() int16     { return f.value }
func (f IntField) Int() int           { return f.value }
func (f LongField) Long() int64       { return f.value }
func (f FloatField) Float() float32   { return f.value }
func (f DoubleField) Double() float64 { return f.value }
func (f ObjectField) Object() any     { return f.value }

func (f BoolField) Value() any   { return f.value }
func (f CharField) Value() any   { return f.value }
func (f ByteField) Value() any   { return f.value }
func (f ShortField) Value() any  { return f.value }
func (f IntField) Value() any    { return f.value }
func (f LongField) Value() any   { return f.value }
func (f FloatField) Value() any  { return f.value }
func (f DoubleField) Value() any { return f.value }
func (f ObjectField) Value() any { return f.value }

func (BoolField) kind() Kind   { return KindBool }
func (CharField) kind() Kind   { return KindChar }
func (ByteField) kind() Kind   { return KindByte }
func (ShortField) kind() Kind  { return KindShort }
func (IntField) kind() Kind    { return KindInt }
func (LongField) kind() Kind   { return KindLong }
func (FloatField) kind() Kind  { return KindFloat }
func (DoubleField) kind() Kind { return KindDouble }
func (ObjectField) kind() Kind { return KindObject }

// DeconstructedObject is the ordered, uniform field view of one instance.
// It is immutable: WithField returns a modified copy.
type DeconstructedObject struct {
	fields []Field
}

// NewDeconstructedObject assembles a deconstructed object from fields.
func NewDeconstructedObject(fields ...Field) *DeconstructedObject {
	return &DeconstructedObject{fields: append([]Field(nil), fields...)}
}

// Fields returns the ordered fields.
func (d *DeconstructedObject) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// Len returns the number of fields.
func (d *DeconstructedObject) Len() int { return len(d.fields) }

// Field looks up a field by name.
func (d *DeconstructedObject) Field(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// WithField returns a copy with the same-named field replaced. The
// replacement must carry the same kind as the original.
func (d *DeconstructedObject) WithField(f Field) (*DeconstructedObject, error) {
	for i, cur := range d.fields {
		if cur.Name() != f.Name() {
			continue
		}
		if cur.kind() != f.kind() {
			return nil, fmt.Errorf("%w: field %q is %s, replacement is %s",
				ErrFieldMismatch, f.Name(), cur.kind(), f.kind())
		}
		out := append([]Field(nil), d.fields...)
		out[i] = f
		return &DeconstructedObject{fields: out}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f.Name())
}

// Equal reports structural equality: same field order, names, kinds and
// values. Object values compare deeply.
func (d *DeconstructedObject) Equal(other *DeconstructedObject) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.fields) != len(other.fields) {
		return false
	}
	for i, f := range d.fields {
		g := other.fields[i]
		if f.Name() != g.Name() || f.kind() != g.kind() {
			return false
		}
		if !reflect.DeepEqual(f.Value(), g.Value()) {
			return false
		}
	}
	return true
}

// Flattener converts between instances and their deconstructed field view by
// running a compiled accessor against a container and tagging each channel
// value with its attribute name and kind.
type Flattener struct {
	accessor *Accessor
	readers  []func(*Container) Field
	writers  []func(Field, *Container) error
}

// NewFlattener compiles a flattener for an explicit schema.
func NewFlattener(schema *Schema) (*Flattener, error) {
	accessor, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	return flattenerFrom(accessor), nil
}

func flattenerFrom(accessor *Accessor) *Flattener {
	schema := accessor.Schema()
	fl := &Flattener{accessor: accessor}
	for _, attr := range schema.Attributes {
		fl.readers = append(fl.readers, fieldReader(attr))
		fl.writers = append(fl.writers, fieldWriter(attr))
	}
	return fl
}

type flattenerKey struct {
	source   reflect.Type
	strategy ModelingStrategy
}

var flattenerCache = xsync.NewMap[flattenerKey, *Flattener]()

// FlattenerFor returns the memoized flattener for a type under the default
// construction of the given strategy.
func FlattenerFor(t reflect.Type, strategy ModelingStrategy) (*Flattener, error) {
	key := flattenerKey{source: t, strategy: strategy}
	if fl, ok := flattenerCache.Load(key); ok {
		return fl, nil
	}
	accessor, err := AccessorFor(t, strategy)
	if err != nil {
		return nil, err
	}
	actual, _ := flattenerCache.LoadOrStore(key, flattenerFrom(accessor))
	return actual, nil
}

// Schema returns the schema this flattener operates on.
func (fl *Flattener) Schema() *Schema { return fl.accessor.Schema() }

// Flatten deconstructs an instance into its tagged field view.
func (fl *Flattener) Flatten(instance any) (*DeconstructedObject, error) {
	c, err := fl.accessor.Write(instance)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(fl.readers))
	for i, read := range fl.readers {
		fields[i] = read(c)
	}
	return &DeconstructedObject{fields: fields}, nil
}

// Unflatten reconstructs an instance from a field view. Fields must appear in
// schema order with matching names and kinds.
func (fl *Flattener) Unflatten(obj *DeconstructedObject) (any, error) {
	attrs := fl.accessor.Schema().Attributes
	if obj.Len() != len(attrs) {
		return nil, fmt.Errorf("%w: have %d fields, want %d", ErrFieldMismatch, obj.Len(), len(attrs))
	}
	c := fl.accessor.NewContainer()
	for i, write := range fl.writers {
		if err := write(obj.fields[i], c); err != nil {
			return nil, err
		}
	}
	return fl.accessor.Read(c)
}

func fieldReader(attr Attribute) func(*Container) Field {
	name, desc := attr.Name, attr.Desc
	switch attr.Kind {
	case KindBool:
		return func(c *Container) Field { return NewBoolField(name, desc, c.ReadBool()) }
	case KindChar:
		return func(c *Container) Field { return NewCharField(name, desc, c.ReadChar()) }
	case KindByte:
		return func(c *Container) Field { return NewByteField(name, desc, c.ReadByte()) }
	case KindShort:
		return func(c *Container) Field { return NewShortField(name, desc, c.ReadShort()) }
	case KindInt:
		return func(c *Container) Field { return NewIntField(name, desc, c.ReadInt()) }
	case KindLong:
		return func(c *Container) Field { return NewLongField(name, desc, c.ReadLong()) }
	case KindFloat:
		return func(c *Container) Field { return NewFloatField(name, desc, c.ReadFloat()) }
	case KindDouble:
		return func(c *Container) Field { return NewDoubleField(name, desc, c.ReadDouble()) }
	}
	return func(c *Container) Field { return NewObjectField(name, desc, c.ReadObject()) }
}

func fieldWriter(attr Attribute) func(Field, *Container) error {
	name, kind := attr.Name, attr.Kind
	return func(f Field, c *Container) error {
		if f.Name() != name || f.kind() != kind {
			return fmt.Errorf("%w: have %s field %q, want %s field %q",
				ErrFieldMismatch, f.kind(), f.Name(), kind, name)
		}
		switch v := f.(type) {
		case BoolField:
			c.WriteBool(v.Bool())
		case CharField:
			c.WriteChar(v.Char())
		case ByteField:
			c.WriteByte(v.Byte())
		case ShortField:
			c.WriteShort(v.Short())
		case IntField:
			c.WriteInt(v.Int())
		case LongField:
			c.WriteLong(v.Long())
		case FloatField:
			c.WriteFloat(v.Float())
		case DoubleField:
			c.WriteDouble(v.Double())
		case ObjectField:
			c.WriteObject(v.Object())
		}
		return nil
	}
}

// NewDeconstructor returns a typed deconstruction function for T under
// structural modeling.
func NewDeconstructor[T any]() (func(T) (*DeconstructedObject, error), error) {
	fl, err := FlattenerFor(reflect.TypeOf((*T)(nil)).Elem(), Structural)
	if err != nil {
		return nil, err
	}
	return func(v T) (*DeconstructedObject, error) {
		return fl.Flatten(v)
	}, nil
}

// NewConstructor returns a typed construction function for T under structural
// modeling.
func NewConstructor[T any]() (func(*DeconstructedObject) (T, error), error) {
	fl, err := FlattenerFor(reflect.TypeOf((*T)(nil)).Elem(), Structural)
	if err != nil {
		return nil, err
	}
	return func(obj *DeconstructedObject) (T, error) {
		var zero T
		out, err := fl.Unflatten(obj)
		if err != nil {
			return zero, err
		}
		v, ok := out.(T)
		if !ok {
			return zero, fmt.Errorf("%w: constructed %T, want %T", ErrFieldMismatch, out, zero)
		}
		return v, nil
	}, nil
}
