package foundry

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Enumeration is an ordered, immutable registry of named constants backing a
// fixed-instance domain. It supplies the DiscriminatedFactory closures a
// schema for such a domain needs: resolution by name, and the name and
// ordinal of any registered value.
type Enumeration[T comparable] struct {
	names  []string
	values []T
	index  map[string]int
	byVal  map[T]int
}

// NewEnumeration builds a registry from parallel name and value slices.
// Panics on length mismatch or duplicate names or values, which are always
// programming errors at registration time.
func NewEnumeration[T comparable](names []string, values []T) *Enumeration[T] {
	if len(names) != len(values) {
		panic(fmt.Sprintf("foundry: enumeration has %d names for %d values", len(names), len(values)))
	}
	e := &Enumeration[T]{
		names:  append([]string(nil), names...),
		values: append([]T(nil), values...),
		index:  make(map[string]int, len(names)),
		byVal:  make(map[T]int, len(values)),
	}
	for i, n := range names {
		if _, dup := e.index[n]; dup {
			panic("foundry: duplicate enumeration name " + n)
		}
		if _, dup := e.byVal[values[i]]; dup {
			panic(fmt.Sprintf("foundry: duplicate enumeration value %v", values[i]))
		}
		e.index[n] = i
		e.byVal[values[i]] = i
	}
	return e
}

// Sequence builds an integer-valued enumeration whose values count up from
// zero in declaration order, the common shape of iota-style constant blocks.
func Sequence[T constraints.Integer](names ...string) *Enumeration[T] {
	values := make([]T, len(names))
	for i := range names {
		values[i] = T(i)
	}
	return NewEnumeration(names, values)
}

// Len returns the number of registered constants.
func (e *Enumeration[T]) Len() int { return len(e.names) }

// Name returns the name at the given ordinal.
func (e *Enumeration[T]) Name(ordinal int) string { return e.names[ordinal] }

// Value returns the value at the given ordinal.
func (e *Enumeration[T]) Value(ordinal int) T { return e.values[ordinal] }

// Names returns the registered names in declaration order.
func (e *Enumeration[T]) Names() []string {
	return append([]string(nil), e.names...)
}

// Resolve returns the value registered under the given name.
func (e *Enumeration[T]) Resolve(name string) (T, error) {
	i, ok := e.index[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return e.values[i], nil
}

// NameOf returns the name a value was registered under.
func (e *Enumeration[T]) NameOf(value T) (string, error) {
	i, ok := e.byVal[value]
	if !ok {
		return "", fmt.Errorf("%w: value %v is not registered", ErrUnknownName, value)
	}
	return e.names[i], nil
}

// OrdinalOf returns the declaration position of a value.
func (e *Enumeration[T]) OrdinalOf(value T) (int, error) {
	i, ok := e.byVal[value]
	if !ok {
		return 0, fmt.Errorf("%w: value %v is not registered", ErrUnknownName, value)
	}
	return i, nil
}

// Construction adapts the registry into the discriminated construction
// strategy consumed by DeriveSchema.
func (e *Enumeration[T]) Construction() *DiscriminatedFactory {
	return &DiscriminatedFactory{
		Resolve: func(name string) (any, error) {
			return e.Resolve(name)
		},
		NameOf: func(instance any) (string, error) {
			v, ok := instance.(T)
			if !ok {
				return "", fmt.Errorf("%w: %T is not a member of this domain", ErrFieldMismatch, instance)
			}
			return e.NameOf(v)
		},
		OrdinalOf: func(instance any) (int, error) {
			v, ok := instance.(T)
			if !ok {
				return 0, fmt.Errorf("%w: %T is not a member of this domain", ErrFieldMismatch, instance)
			}
			return e.OrdinalOf(v)
		},
	}
}
