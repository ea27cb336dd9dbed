package foundry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// ModelingStrategy selects how attributes of a type are discovered.
type ModelingStrategy uint8

const (
	// Structural enumerates declared fields, embedded (base) types first,
	// unexported fields included.
	Structural ModelingStrategy = iota

	// Exposed enumerates paired accessor methods by naming convention,
	// ignoring storage: GetX/X paired with SetX, boolean IsX with SetX.
	// A getter with no matching setter yields a read-only attribute.
	Exposed
)

func (s ModelingStrategy) String() string {
	if s == Exposed {
		return "exposed"
	}
	return "structural"
}

// Construction is the closed set of strategies for producing new instances.
type Construction interface{ construction() }

// NoArgFactory builds the zero value and populates every attribute through
// its setter. Every attribute must expose one.
type NoArgFactory struct{}

// AllArgsFactory builds the instance by assigning every attribute value
// positionally in schema order, used for immutable aggregates. Never combined
// with a setter phase.
type AllArgsFactory struct{}

// CustomFactory obtains a blank instance from a caller-supplied factory, then
// populates attributes through setters like NoArgFactory.
type CustomFactory struct {
	New func() any
}

// DiscriminatedFactory resolves instances of a fixed-instance domain by a
// single discriminant name. Attributes of such schemas are read-only, and two
// synthesized leading attributes expose the name and ordinal of the instance.
type DiscriminatedFactory struct {
	Resolve   func(name string) (any, error)
	NameOf    func(instance any) (string, error)
	OrdinalOf func(instance any) (int, error)
}

func (*NoArgFactory) construction()         {}
func (*AllArgsFactory) construction()       {}
func (*CustomFactory) construction()        {}
func (*DiscriminatedFactory) construction() {}

// AccessMethod describes how an attribute is read or written.
type AccessMethod interface{ accessMethod() }

// DirectAccess addresses a storage field by its index path from the root.
type DirectAccess struct {
	Index []int
}

// MethodAccess invokes a method by name: a niladic single-result method for
// reads, a single-parameter method for writes.
type MethodAccess struct {
	Name string
}

// FuncAccess wraps caller-supplied accessor closures; used for synthesized
// attributes such as the name and ordinal of a fixed-instance domain.
type FuncAccess struct {
	Get func(instance any) (any, error)
	Set func(instance, value any) error
}

func (*DirectAccess) accessMethod() {}
func (*MethodAccess) accessMethod() {}
func (*FuncAccess) accessMethod()   {}

// Access pairs the getter of an attribute with its optional setter.
type Access struct {
	Getter AccessMethod
	Setter AccessMethod // nil when the attribute is read-only
}

// Attribute is one named, typed, gettable (optionally settable) property of a
// modeled type. Names are unique within a schema.
type Attribute struct {
	Source   reflect.Type // the type declaring the attribute
	Name     string
	Type     reflect.Type
	Desc     TypeDesc // declared type with annotations
	Kind     Kind
	Nullable bool
	Access   Access
}

// ReadOnly reports whether the attribute has no setter.
func (a Attribute) ReadOnly() bool { return a.Access.Setter == nil }

// Schema is the derived, ordered attribute list plus construction strategy
// for one type. Schemas are immutable after derivation.
type Schema struct {
	Source       reflect.Type
	Strategy     ModelingStrategy
	Attributes   []Attribute
	Construction Construction
}

// Attribute looks up an attribute by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Equal reports whether two schemas agree on attribute order, attribute shape
// and construction strategy. Construction closures compare by variant only.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Source != other.Source || s.Strategy != other.Strategy ||
		len(s.Attributes) != len(other.Attributes) {
		return false
	}
	if fmt.Sprintf("%T", s.Construction) != fmt.Sprintf("%T", other.Construction) {
		return false
	}
	for i, a := range s.Attributes {
		b := other.Attributes[i]
		if a.Name != b.Name || a.Source != b.Source || a.Type != b.Type ||
			a.Kind != b.Kind || a.ReadOnly() != b.ReadOnly() {
			return false
		}
	}
	return true
}

type schemaKey struct {
	source   reflect.Type
	strategy ModelingStrategy
}

var schemaCache = xsync.NewMap[schemaKey, *Schema]()

// SchemaFor returns the memoized default-construction schema for a type.
// Derivation runs at most until the first success; a failed derivation is not
// cached and is retried on the next call. Losers of a concurrent first use
// discard their work and adopt the winner's schema.
func SchemaFor(t reflect.Type, strategy ModelingStrategy) (*Schema, error) {
	key := schemaKey{source: t, strategy: strategy}
	if s, ok := schemaCache.Load(key); ok {
		return s, nil
	}
	s, err := DeriveSchema(t, strategy, nil)
	if err != nil {
		return nil, err
	}
	actual, _ := schemaCache.LoadOrStore(key, s)
	return actual, nil
}

// DeriveSchema inspects a type and produces its schema. A nil construction
// defaults to NoArgFactory. Interface types require Exposed modeling and a
// CustomFactory; a DiscriminatedFactory marks the type as a fixed-instance
// domain whose attributes are read-only. All failures surface here, once per
// type, never per instance.
func DeriveSchema(t reflect.Type, strategy ModelingStrategy, construction Construction) (*Schema, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}

	if t.Kind() == reflect.Interface {
		return deriveInterface(t, strategy, construction)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if df, ok := construction.(*DiscriminatedFactory); ok {
		return deriveDiscriminated(t, strategy, df)
	}

	if construction == nil {
		construction = &NoArgFactory{}
	}

	if cf, ok := construction.(*CustomFactory); ok && cf.New == nil {
		return nil, fmt.Errorf("%w: custom construction for %s needs a factory", ErrBadConstruction, t)
	}

	switch construction.(type) {
	case *NoArgFactory, *CustomFactory:
		attrs, err := attributesFor(t, strategy)
		if err != nil {
			return nil, err
		}
		if err := requireSetters(t, attrs); err != nil {
			return nil, err
		}
		return &Schema{Source: t, Strategy: strategy, Attributes: attrs, Construction: construction}, nil

	case *AllArgsFactory:
		if strategy != Structural || t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: all-args construction requires structural modeling of a struct, got %s %s",
				ErrBadConstruction, strategy, t)
		}
		attrs, err := structuralAttributes(t)
		if err != nil {
			return nil, err
		}
		// Construction is positional; a separate setter phase is forbidden.
		for i := range attrs {
			attrs[i].Access.Setter = nil
		}
		return &Schema{Source: t, Strategy: strategy, Attributes: attrs, Construction: construction}, nil
	}

	return nil, fmt.Errorf("%w: unknown construction %T for %s", ErrBadConstruction, construction, t)
}

func deriveInterface(t reflect.Type, strategy ModelingStrategy, construction Construction) (*Schema, error) {
	cf, ok := construction.(*CustomFactory)
	if !ok || cf.New == nil || strategy != Exposed {
		return nil, fmt.Errorf("%w: %s", ErrAbstractType, t)
	}
	attrs, err := exposedAttributes(t)
	if err != nil {
		return nil, err
	}
	if err := requireSetters(t, attrs); err != nil {
		return nil, err
	}
	return &Schema{Source: t, Strategy: Exposed, Attributes: attrs, Construction: cf}, nil
}

func deriveDiscriminated(t reflect.Type, strategy ModelingStrategy, df *DiscriminatedFactory) (*Schema, error) {
	if df.Resolve == nil || df.NameOf == nil || df.OrdinalOf == nil {
		return nil, fmt.Errorf("%w: discriminated construction for %s needs Resolve, NameOf and OrdinalOf",
			ErrBadConstruction, t)
	}

	var attrs []Attribute
	if t.Kind() == reflect.Struct {
		var err error
		attrs, err = attributesFor(t, strategy)
		if err != nil {
			return nil, err
		}
	}
	// Instances of a fixed domain are constants resolved by name.
	for i := range attrs {
		attrs[i].Access.Setter = nil
	}

	synthesized := []Attribute{
		{
			Source: t, Name: "name", Type: reflect.TypeOf(""), Desc: TypeOf[string](), Kind: KindObject,
			Access: Access{Getter: &FuncAccess{Get: func(instance any) (any, error) {
				return df.NameOf(instance)
			}}},
		},
		{
			Source: t, Name: "ordinal", Type: reflect.TypeOf(0), Desc: TypeOf[int](), Kind: KindInt,
			Access: Access{Getter: &FuncAccess{Get: func(instance any) (any, error) {
				return df.OrdinalOf(instance)
			}}},
		},
	}

	return &Schema{
		Source:       t,
		Strategy:     strategy,
		Attributes:   append(synthesized, attrs...),
		Construction: df,
	}, nil
}

func attributesFor(t reflect.Type, strategy ModelingStrategy) ([]Attribute, error) {
	if strategy == Exposed {
		return exposedAttributes(t)
	}
	return structuralAttributes(t)
}

func requireSetters(t reflect.Type, attrs []Attribute) error {
	for _, a := range attrs {
		if a.ReadOnly() {
			return fmt.Errorf("%w: attribute %q of %s", ErrMissingSetter, a.Name, t)
		}
	}
	return nil
}

// structuralAttributes maps the template of a struct to attributes with
// direct storage access, honoring accessor overrides from the foundry tag.
func structuralAttributes(t reflect.Type) ([]Attribute, error) {
	tpl, err := TemplateOf(t)
	if err != nil {
		return nil, err
	}

	claimed := map[string]string{} // override method -> attribute name
	attrs := make([]Attribute, 0, tpl.Len())

	for _, f := range tpl.Fields() {
		access := Access{
			Getter: &DirectAccess{Index: f.Index},
			Setter: &DirectAccess{Index: f.Index},
		}

		if f.directive.getter != "" {
			if err := claim(claimed, f.directive.getter, f.Name); err != nil {
				return nil, err
			}
			if err := checkGetterMethod(t, f.directive.getter, f.Type); err != nil {
				return nil, err
			}
			access.Getter = &MethodAccess{Name: f.directive.getter}
		}
		if f.directive.setter != "" {
			if err := claim(claimed, f.directive.setter, f.Name); err != nil {
				return nil, err
			}
			if err := checkSetterMethod(t, f.directive.setter, f.Type); err != nil {
				return nil, err
			}
			access.Setter = &MethodAccess{Name: f.directive.setter}
		}

		attrs = append(attrs, Attribute{
			Source:   f.Source,
			Name:     f.Name,
			Type:     f.Type,
			Desc:     f.Desc,
			Kind:     KindOf(f.Type),
			Nullable: f.directive.nullable,
			Access:   access,
		})
	}
	return attrs, nil
}

func claim(claimed map[string]string, method, attribute string) error {
	if prev, ok := claimed[method]; ok && prev != attribute {
		return fmt.Errorf("%w: method %q claimed by attributes %q and %q",
			ErrAmbiguousAccessor, method, prev, attribute)
	}
	claimed[method] = attribute
	return nil
}

func checkGetterMethod(t reflect.Type, name string, want reflect.Type) error {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != want {
		return fmt.Errorf("%w: getter %q on %s", ErrMissingAccessor, name, t)
	}
	return nil
}

func checkSetterMethod(t reflect.Type, name string, want reflect.Type) error {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok || m.Type.NumIn() != 2 || m.Type.In(1) != want {
		return fmt.Errorf("%w: setter %q on %s", ErrMissingAccessor, name, t)
	}
	return nil
}

// exposedAttributes pairs public accessor methods by naming convention. For
// struct types the pointer method set is scanned so value and pointer
// receivers both contribute; for interface types the declared method set is
// used as-is.
func exposedAttributes(t reflect.Type) ([]Attribute, error) {
	mt := t
	if t.Kind() != reflect.Interface {
		mt = reflect.PointerTo(t)
	}

	type accessor struct {
		method reflect.Method
		typ    reflect.Type
	}
	getters := map[string]accessor{}
	setters := map[string]accessor{}
	var order []string

	for i := 0; i < mt.NumMethod(); i++ {
		m := mt.Method(i)
		if m.PkgPath != "" {
			continue
		}
		sig := m.Type
		in, out := sig.NumIn(), sig.NumOut()
		if mt.Kind() != reflect.Interface {
			in-- // receiver
		}

		switch {
		case in == 0 && out == 1:
			if sig.Out(0) == errType {
				// Close() error and friends are not getters.
				continue
			}
			name, ok := getterProperty(m.Name, sig.Out(sig.NumOut()-1))
			if !ok {
				continue
			}
			if _, dup := getters[name]; !dup {
				getters[name] = accessor{method: m, typ: sig.Out(0)}
				order = append(order, name)
			}
		case in == 1 && out <= 1:
			name, ok := setterProperty(m.Name)
			if !ok {
				continue
			}
			if _, dup := setters[name]; !dup {
				setters[name] = accessor{method: m, typ: sig.In(sig.NumIn() - 1)}
			}
		}
	}
	sort.Strings(order)

	attrs := make([]Attribute, 0, len(order))
	for _, name := range order {
		g := getters[name]
		access := Access{Getter: &MethodAccess{Name: g.method.Name}}
		if s, ok := setters[name]; ok && s.typ == g.typ {
			access.Setter = &MethodAccess{Name: s.method.Name}
		}
		attrs = append(attrs, Attribute{
			Source: t,
			Name:   name,
			Type:   g.typ,
			Desc:   Of(g.typ),
			Kind:   KindOf(g.typ),
			Access: access,
		})
	}
	return attrs, nil
}

// getterProperty derives the property name for a getter method: GetX and
// boolean IsX strip their prefix, anything else is taken as a fluent getter.
func getterProperty(method string, ret reflect.Type) (string, bool) {
	if p, ok := stripPrefix("Get", method); ok {
		return p, true
	}
	if p, ok := stripPrefix("Is", method); ok && ret.Kind() == reflect.Bool {
		return p, true
	}
	if _, ok := stripPrefix("Set", method); ok {
		// A niladic Set* method is not an accessor of anything.
		return "", false
	}
	return method, true
}

func setterProperty(method string) (string, bool) {
	return stripPrefix("Set", method)
}

func stripPrefix(prefix, method string) (string, bool) {
	if !strings.HasPrefix(method, prefix) || len(method) == len(prefix) {
		return "", false
	}
	rest := method[len(prefix):]
	if rest[0] >= 'a' && rest[0] <= 'z' {
		return "", false
	}
	return rest, true
}
