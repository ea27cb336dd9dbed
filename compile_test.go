package foundry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

// --- Mocks and Helpers ---

type point struct {
	X     int
	Y     int
	Label string
}

type widget struct {
	serial int
	Name   string
}

type wrapped struct {
	*baseEntity
	Note string
}

type namedScalars struct {
	Dist meters
	Mass grams
}

type sealedVault struct {
	secret string
}

func (v *sealedVault) Secret() string { return v.secret }

func (v *sealedVault) SetSecret(s string) error { return errors.New("vault is sealed") }

type severity int

var severities = Sequence[severity]("low", "medium", "high")

// --- Accessor Test Suite ---

type AccessorTestSuite struct {
	suite.Suite
}

func (s *AccessorTestSuite) roundTrip(acc *Accessor, in any) any {
	c, err := acc.Write(in)
	s.Require().NoError(err)
	out, err := acc.Read(c)
	s.Require().NoError(err)
	return out
}

func (s *AccessorTestSuite) TestRoundTripAllKinds() {
	acc, err := AccessorFor(reflect.TypeOf(mixedKinds{}), Structural)
	s.Require().NoError(err)

	in := mixedKinds{
		Active: true,
		Code:   'Ω',
		Level:  -7,
		Depth:  -3000,
		Count:  123456,
		Total:  -1 << 40,
		Ratio:  0.5,
		Mean:   3.25,
		Label:  "sample",
	}
	s.Equal(in, s.roundTrip(acc, in))
}

func (s *AccessorTestSuite) TestRoundTripEmbeddedUnexported() {
	acc, err := AccessorFor(reflect.TypeOf(leafEntity{}), Structural)
	s.Require().NoError(err)

	in := leafEntity{midEntity: midEntity{baseEntity: baseEntity{id: 7}, name: "deep"}, flag: true}
	s.Equal(in, s.roundTrip(acc, in))

	// Pointer instances deconstruct the same way.
	s.Equal(in, s.roundTrip(acc, &in))
}

func (s *AccessorTestSuite) TestRoundTripNamedScalars() {
	acc, err := AccessorFor(reflect.TypeOf(namedScalars{}), Structural)
	s.Require().NoError(err)

	in := namedScalars{Dist: meters(42), Mass: grams(1.5)}
	s.Equal(in, s.roundTrip(acc, in))
}

func (s *AccessorTestSuite) TestRoundTripAllArgs() {
	schema, err := DeriveSchema(reflect.TypeOf(point{}), Structural, &AllArgsFactory{})
	s.Require().NoError(err)
	acc, err := Compile(schema)
	s.Require().NoError(err)

	in := point{X: 3, Y: -4, Label: "origin-ish"}
	s.Equal(in, s.roundTrip(acc, in))
}

func (s *AccessorTestSuite) TestCustomFactoryKeepsIdentity() {
	var made *widget
	schema, err := DeriveSchema(reflect.TypeOf(widget{}), Structural, &CustomFactory{
		New: func() any { made = &widget{}; return made },
	})
	s.Require().NoError(err)
	acc, err := Compile(schema)
	s.Require().NoError(err)

	in := widget{serial: 99, Name: "gizmo"}
	out := s.roundTrip(acc, in)

	s.Same(made, out)
	s.Equal(in, *out.(*widget))
}

func (s *AccessorTestSuite) TestRoundTripExposed() {
	acc, err := AccessorFor(reflect.TypeOf(account{}), Exposed)
	s.Require().NoError(err)

	in := account{balance: 1200, owner: "ada", closed: true}
	s.Equal(in, s.roundTrip(acc, in))
}

func (s *AccessorTestSuite) TestExposedSetterErrorPropagates() {
	acc, err := AccessorFor(reflect.TypeOf(sealedVault{}), Exposed)
	s.Require().NoError(err)

	c, err := acc.Write(sealedVault{secret: "k"})
	s.Require().NoError(err)

	_, err = acc.Read(c)
	s.EqualError(err, "vault is sealed")
}

func (s *AccessorTestSuite) TestRoundTripInterface() {
	ifaceType := reflect.TypeOf((*shape)(nil)).Elem()
	schema, err := DeriveSchema(ifaceType, Exposed, &CustomFactory{New: func() any { return &rectangle{} }})
	s.Require().NoError(err)
	acc, err := Compile(schema)
	s.Require().NoError(err)

	in := &rectangle{name: "r1", area: 12.5}
	out := s.roundTrip(acc, in)
	s.Equal(in, out)
}

func (s *AccessorTestSuite) TestRoundTripDiscriminated() {
	schema, err := DeriveSchema(reflect.TypeOf(severity(0)), Structural, severities.Construction())
	s.Require().NoError(err)
	acc, err := Compile(schema)
	s.Require().NoError(err)

	c, err := acc.Write(severity(1))
	s.Require().NoError(err)
	s.Equal("medium", c.ReadObject())
	s.Equal(1, c.ReadInt())

	c.ResetReader()
	out, err := acc.Read(c)
	s.Require().NoError(err)
	s.Equal(severity(1), out)
}

func (s *AccessorTestSuite) TestDiscriminatedUnknownName() {
	schema, err := DeriveSchema(reflect.TypeOf(severity(0)), Structural, severities.Construction())
	s.Require().NoError(err)
	acc, err := Compile(schema)
	s.Require().NoError(err)

	c := acc.NewContainer()
	c.WriteObject("critical")
	c.WriteInt(9)
	_, err = acc.Read(c)
	s.ErrorIs(err, ErrUnknownName)
}

func (s *AccessorTestSuite) TestNilEmbeddedPointer() {
	acc, err := AccessorFor(reflect.TypeOf(wrapped{}), Structural)
	s.Require().NoError(err)

	_, err = acc.Write(wrapped{Note: "no base"})
	s.ErrorIs(err, ErrNilEmbedded)

	in := wrapped{baseEntity: &baseEntity{id: 11}, Note: "ok"}
	out := s.roundTrip(acc, in).(wrapped)
	s.Equal(in.Note, out.Note)
	s.Require().NotNil(out.baseEntity)
	s.Equal(int64(11), out.baseEntity.id)
}

func (s *AccessorTestSuite) TestInstanceTypeMismatch() {
	acc, err := AccessorFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)

	_, err = acc.Write("not a point")
	s.ErrorIs(err, ErrFieldMismatch)
	_, err = acc.Write(nil)
	s.ErrorIs(err, ErrFieldMismatch)
	_, err = acc.Write((*point)(nil))
	s.ErrorIs(err, ErrFieldMismatch)
}

func (s *AccessorTestSuite) TestContainerReuse() {
	acc, err := AccessorFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)

	c := acc.NewContainer()
	s.Require().NoError(acc.WriteInto(point{X: 1, Y: 2, Label: "a"}, c))

	c.ResetWriter()
	s.Require().NoError(acc.WriteInto(point{X: 9, Y: 8, Label: "b"}, c))

	out, err := acc.Read(c)
	s.Require().NoError(err)
	s.Equal(point{X: 9, Y: 8, Label: "b"}, out)
}

func (s *AccessorTestSuite) TestAccessorMemoization() {
	first, err := AccessorFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)
	second, err := AccessorFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)
	s.Same(first, second)
}

func TestAccessor(t *testing.T) {
	suite.Run(t, new(AccessorTestSuite))
}
