package foundry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType indicates that a schema was requested for a type shape
	// the modeling strategy can not describe (e.g. Structural modeling of a
	// non-struct type).
	ErrUnsupportedType = errors.New("foundry: type can not be modeled with the requested strategy")

	// ErrAbstractType indicates that an interface type was modeled without a
	// custom factory, or with a strategy other than Exposed. Interfaces have no
	// storage to scan and no way to produce instances on their own.
	ErrAbstractType = errors.New("foundry: interface types require Exposed modeling and a custom factory")

	// ErrBadConstruction indicates that a construction strategy was combined
	// with a type shape it is not defined for (e.g. AllArgs on a non-struct,
	// or a discriminated factory without a name resolver).
	ErrBadConstruction = errors.New("foundry: illegal construction strategy for type")

	// ErrMissingSetter indicates that an attribute ended up without a setter
	// under a construction strategy that populates attributes after creation.
	ErrMissingSetter = errors.New("foundry: attribute is missing a setter")

	// ErrAmbiguousAccessor indicates that more than one attribute claimed the
	// same accessor method through a tag override.
	ErrAmbiguousAccessor = errors.New("foundry: ambiguous accessor override")

	// ErrMissingAccessor indicates that an accessor override named a method
	// that does not exist or does not match the attribute's type.
	ErrMissingAccessor = errors.New("foundry: accessor override does not resolve to a usable method")

	// ErrChannelOverrun indicates that a container channel was read or written
	// more times than the owning schema permits. Containers are strictly
	// sequential; an overrun is always a schema/caller mismatch.
	ErrChannelOverrun = errors.New("foundry: container channel overrun")

	// ErrNilEmbedded indicates that a nil embedded pointer was encountered
	// while reading attribute data from an instance.
	ErrNilEmbedded = errors.New("foundry: nil embedded pointer")

	// ErrFieldMismatch indicates that a deconstructed field does not match the
	// attribute at the same schema position (wrong variant or wrong value type).
	ErrFieldMismatch = errors.New("foundry: field does not match schema attribute")

	// ErrUnknownField indicates a field lookup or replacement by a name the
	// owning schema does not contain.
	ErrUnknownField = errors.New("foundry: no field with given name")

	// ErrUnknownName indicates a discriminated construction received a name
	// that resolves to no registered instance.
	ErrUnknownName = errors.New("foundry: name resolves to no registered instance")

	// ErrBadVisitMethod indicates a module method with the Visit prefix that
	// does not follow the required visitor signature.
	ErrBadVisitMethod = errors.New("foundry: method does not follow the visit method format")

	// ErrNoVisitor indicates that no registered visitor accepts the declared
	// type of a visited value.
	ErrNoVisitor = errors.New("foundry: no visitor for type")
)

// OverrunError is the panic value raised by container channel accessors when a
// read or write exceeds the channel length computed from the schema. It wraps
// ErrChannelOverrun so deferred handlers can match it with errors.Is.
type OverrunError struct {
	Kind Kind   // channel kind
	Op   string // "read" or "write"
	Len  int    // channel length
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("foundry: %s overrun on %s channel of length %d", e.Op, e.Kind, e.Len)
}

func (e *OverrunError) Unwrap() error { return ErrChannelOverrun }

// AmbiguousDispatchError is returned by visitor resolution when several
// handlers remain tied after the distance and annotation-overlap ranking.
type AmbiguousDispatchError struct {
	Declared   string   // declared type of the visited value
	Candidates []string // declared types of the tied handlers
}

func (e *AmbiguousDispatchError) Error() string {
	return fmt.Sprintf("foundry: ambiguous dispatch for %s, tied candidates: %s",
		e.Declared, strings.Join(e.Candidates, ", "))
}
