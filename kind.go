package foundry

import "reflect"

// Kind identifies the container channel an attribute value travels through.
// There is one channel per primitive kind plus a single channel for everything
// else. The mapping from Go kinds is fixed and lossless: signed integers go to
// the narrowest channel that holds them exactly, uint8 keeps its bit pattern in
// the byte channel, uint16/uint32 widen into the long channel, and all
// remaining shapes (strings, uint64, slices, maps, structs, pointers,
// interfaces) are boxed in the object channel.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject

	numKinds = int(KindObject) + 1
)

var kindNames = [numKinds]string{
	"bool", "char", "byte", "short", "int", "long", "float", "double", "object",
}

func (k Kind) String() string {
	if int(k) < numKinds {
		return kindNames[k]
	}
	return "invalid"
}

// KindOf returns the channel kind for values of the given type.
func KindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int32:
		return KindChar
	case reflect.Int8, reflect.Uint8:
		return KindByte
	case reflect.Int16:
		return KindShort
	case reflect.Int:
		return KindInt
	case reflect.Int64, reflect.Uint16, reflect.Uint32:
		return KindLong
	case reflect.Float32:
		return KindFloat
	case reflect.Float64:
		return KindDouble
	default:
		return KindObject
	}
}
