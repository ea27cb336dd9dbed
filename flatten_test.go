package foundry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

// --- Flattener Test Suite ---

type FlattenerTestSuite struct {
	suite.Suite
}

func (s *FlattenerTestSuite) TestFlattenMatchesSchemaOrder() {
	fl, err := FlattenerFor(reflect.TypeOf(leafEntity{}), Structural)
	s.Require().NoError(err)

	obj, err := fl.Flatten(leafEntity{midEntity: midEntity{baseEntity: baseEntity{id: 4}, name: "n"}, flag: true})
	s.Require().NoError(err)

	s.Require().Equal(3, obj.Len())
	fields := obj.Fields()
	s.Equal("id", fields[0].Name())
	s.Equal("name", fields[1].Name())
	s.Equal("flag", fields[2].Name())

	s.IsType(LongField{}, fields[0])
	s.IsType(ObjectField{}, fields[1])
	s.IsType(BoolField{}, fields[2])
	s.Equal(int64(4), fields[0].(LongField).Long())
}

func (s *FlattenerTestSuite) TestUnflattenInvertsFlatten() {
	s.T().Run("NoArg", func(t *testing.T) {
		fl, err := FlattenerFor(reflect.TypeOf(mixedKinds{}), Structural)
		s.Require().NoError(err)

		in := mixedKinds{Active: true, Code: 'x', Level: 1, Depth: 2, Count: 3, Total: 4, Ratio: 5, Mean: 6, Label: "seven"}
		obj, err := fl.Flatten(in)
		s.Require().NoError(err)
		out, err := fl.Unflatten(obj)
		s.Require().NoError(err)
		s.Equal(in, out)
	})

	s.T().Run("AllArgs", func(t *testing.T) {
		schema, err := DeriveSchema(reflect.TypeOf(point{}), Structural, &AllArgsFactory{})
		s.Require().NoError(err)
		fl, err := NewFlattener(schema)
		s.Require().NoError(err)

		in := point{X: 1, Y: 2, Label: "p"}
		obj, err := fl.Flatten(in)
		s.Require().NoError(err)
		out, err := fl.Unflatten(obj)
		s.Require().NoError(err)
		s.Equal(in, out)
	})

	s.T().Run("Discriminated", func(t *testing.T) {
		schema, err := DeriveSchema(reflect.TypeOf(severity(0)), Structural, severities.Construction())
		s.Require().NoError(err)
		fl, err := NewFlattener(schema)
		s.Require().NoError(err)

		obj, err := fl.Flatten(severity(2))
		s.Require().NoError(err)
		nameField, ok := obj.Field("name")
		s.Require().True(ok)
		s.Equal("high", nameField.Value())

		out, err := fl.Unflatten(obj)
		s.Require().NoError(err)
		s.Equal(severity(2), out)
	})
}

func (s *FlattenerTestSuite) TestSurgicalMutation() {
	fl, err := FlattenerFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)

	obj, err := fl.Flatten(point{X: 1, Y: 2, Label: "before"})
	s.Require().NoError(err)

	mutated, err := obj.WithField(NewObjectField("Label", TypeOf[string](), "after"))
	s.Require().NoError(err)

	out, err := fl.Unflatten(mutated)
	s.Require().NoError(err)
	s.Equal(point{X: 1, Y: 2, Label: "after"}, out)

	// The original view is untouched.
	label, _ := obj.Field("Label")
	s.Equal("before", label.Value())
}

func (s *FlattenerTestSuite) TestWithFieldErrors() {
	obj := NewDeconstructedObject(
		NewIntField("count", TypeOf[int](), 1),
	)

	_, err := obj.WithField(NewIntField("missing", TypeOf[int](), 2))
	s.ErrorIs(err, ErrUnknownField)

	_, err = obj.WithField(NewLongField("count", TypeOf[int64](), 2))
	s.ErrorIs(err, ErrFieldMismatch)
}

func (s *FlattenerTestSuite) TestEquality() {
	a := NewDeconstructedObject(
		NewIntField("n", TypeOf[int](), 1),
		NewObjectField("s", TypeOf[string](), "x"),
	)
	b := NewDeconstructedObject(
		NewIntField("n", TypeOf[int](), 1),
		NewObjectField("s", TypeOf[string](), "x"),
	)
	c := NewDeconstructedObject(
		NewIntField("n", TypeOf[int](), 2),
		NewObjectField("s", TypeOf[string](), "x"),
	)

	s.True(a.Equal(b))
	s.False(a.Equal(c))
	s.False(a.Equal(NewDeconstructedObject()))
}

func (s *FlattenerTestSuite) TestUnflattenShapeMismatch() {
	fl, err := FlattenerFor(reflect.TypeOf(point{}), Structural)
	s.Require().NoError(err)

	_, err = fl.Unflatten(NewDeconstructedObject(NewIntField("X", TypeOf[int](), 1)))
	s.ErrorIs(err, ErrFieldMismatch)
}

func (s *FlattenerTestSuite) TestTypedConstructors() {
	dec, err := NewDeconstructor[point]()
	s.Require().NoError(err)
	con, err := NewConstructor[point]()
	s.Require().NoError(err)

	in := point{X: 5, Y: 6, Label: "typed"}
	obj, err := dec(in)
	s.Require().NoError(err)
	out, err := con(obj)
	s.Require().NoError(err)
	s.Equal(in, out)
}

func TestFlattener(t *testing.T) {
	suite.Run(t, new(FlattenerTestSuite))
}
