package foundry

import (
	"fmt"
	"reflect"
	"strconv"
)

// TemplateField is one entry of a Template: a named, typed storage location
// within a struct, addressed by its index path from the root.
type TemplateField struct {
	Name   string
	Type   reflect.Type
	Source reflect.Type // the type that declares the field
	Index  []int        // field index path from the root struct
	Desc   TypeDesc     // declared type with tag annotations

	directive directive
}

// Template is the ordered structural representation of a struct type: every
// non-omitted field, embedded types first (most-base first), then the type's
// own fields, with re-declared names shadowing the embedded entry at its
// original position.
type Template struct {
	source reflect.Type
	fields []TemplateField
}

// TemplateOf reflects over the given struct type (or pointer to struct) and
// returns its template.
func TemplateOf(t reflect.Type) (*Template, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupportedType, t)
	}

	tpl := &Template{source: t}
	pos := map[string]int{}
	tpl.collect(t, nil, pos)
	return tpl, nil
}

func (t *Template) collect(st reflect.Type, prefix []int, pos map[string]int) {
	// Embedded types contribute their fields before the declaring type's own.
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.Anonymous {
			continue
		}
		et := f.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct {
			continue
		}
		t.collect(et, appendIndex(prefix, i), pos)
	}

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous || f.Name == "_" {
			continue
		}
		d := parseDirective(f.Tag)
		if d.omit {
			continue
		}

		name := f.Name
		if d.name != "" {
			name = d.name
		}

		desc := Of(f.Type)
		if ann := tagAnnotations(f.Tag); len(ann) > 0 {
			desc = Annotate(desc, ann...)
		}

		entry := TemplateField{
			Name:      name,
			Type:      f.Type,
			Source:    st,
			Index:     appendIndex(prefix, i),
			Desc:      desc,
			directive: d,
		}

		if at, ok := pos[name]; ok {
			t.fields[at] = entry // shadow keeps the base position
		} else {
			pos[name] = len(t.fields)
			t.fields = append(t.fields, entry)
		}
	}
}

func appendIndex(prefix []int, i int) []int {
	out := make([]int, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = i
	return out
}

// Source returns the struct type this template was created from.
func (t *Template) Source() reflect.Type { return t.source }

// Fields returns the ordered field entries.
func (t *Template) Fields() []TemplateField {
	out := make([]TemplateField, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a field entry by name.
func (t *Template) Field(name string) (TemplateField, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemplateField{}, false
}

// Len returns the number of fields in this template.
func (t *Template) Len() int { return len(t.fields) }

// IsEmpty reports whether the template has no fields.
func (t *Template) IsEmpty() bool { return len(t.fields) == 0 }

// directive is the parsed per-attribute configuration from the foundry tag.
type directive struct {
	omit     bool
	nullable bool
	name     string
	getter   string
	setter   string
}

func parseDirective(tag reflect.StructTag) directive {
	var d directive
	raw, ok := tag.Lookup("foundry")
	if !ok {
		return d
	}
	for part := range splitTagParts(raw) {
		switch {
		case part == "omit":
			d.omit = true
		case part == "nullable":
			d.nullable = true
		case len(part) > 5 && part[:5] == "name=":
			d.name = part[5:]
		case len(part) > 7 && part[:7] == "getter=":
			d.getter = part[7:]
		case len(part) > 7 && part[:7] == "setter=":
			d.setter = part[7:]
		}
	}
	return d
}

func splitTagParts(raw string) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for len(raw) > 0 {
			i := 0
			for i < len(raw) && raw[i] != ',' {
				i++
			}
			part := raw[:i]
			if i < len(raw) {
				raw = raw[i+1:]
			} else {
				raw = ""
			}
			if part != "" && !yield(part) {
				return
			}
		}
	}
}

// tagAnnotations exposes every tag key except the foundry directive as an
// annotation in key:"value" form, preserving declaration order.
func tagAnnotations(tag reflect.StructTag) []string {
	var out []string
	raw := string(tag)
	for raw != "" {
		// Skip leading spaces between tag pairs.
		i := 0
		for i < len(raw) && raw[i] == ' ' {
			i++
		}
		raw = raw[i:]
		if raw == "" {
			break
		}

		// Key runs up to the colon.
		i = 0
		for i < len(raw) && raw[i] > ' ' && raw[i] != ':' && raw[i] != '"' && raw[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(raw) || raw[i] != ':' || raw[i+1] != '"' {
			break
		}
		key := raw[:i]
		raw = raw[i+1:]

		// Quoted value, including the quotes.
		i = 1
		for i < len(raw) && raw[i] != '"' {
			if raw[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(raw) {
			break
		}
		quoted := raw[:i+1]
		raw = raw[i+1:]

		if key == "foundry" {
			continue
		}
		if _, err := strconv.Unquote(quoted); err != nil {
			continue
		}
		out = append(out, key+":"+quoted)
	}
	return out
}
