package foundry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

// --- Mocks and Helpers ---

type triple struct{ A, B, C int }

func catchPanic(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = r.(error)
		}
	}()
	f()
	return nil
}

// --- Container Test Suite ---

type ContainerTestSuite struct {
	suite.Suite
	factory *ContainerFactory
}

func (s *ContainerTestSuite) SetupTest() {
	schema, err := SchemaFor(reflect.TypeOf(triple{}), Structural)
	s.Require().NoError(err)
	s.factory = NewContainerFactory(schema)
}

func (s *ContainerTestSuite) TestChannelOrdering() {
	c := s.factory.New()
	c.WriteInt(1)
	c.WriteInt(2)
	c.WriteInt(3)

	s.Equal(1, c.ReadInt())
	s.Equal(2, c.ReadInt())
	s.Equal(3, c.ReadInt())
}

func (s *ContainerTestSuite) TestIndependentCursors() {
	schema, err := SchemaFor(reflect.TypeOf(mixedKinds{}), Structural)
	s.Require().NoError(err)
	c := NewContainerFactory(schema).New()

	c.WriteBool(true)
	c.WriteLong(42)
	c.WriteObject("tail")

	// Reads of one channel never consume another.
	s.Equal(int64(42), c.ReadLong())
	s.True(c.ReadBool())
	s.Equal("tail", c.ReadObject())
}

func (s *ContainerTestSuite) TestWriteOverrun() {
	c := s.factory.New()
	c.WriteInt(1)
	c.WriteInt(2)
	c.WriteInt(3)

	err := catchPanic(func() { c.WriteInt(4) })
	s.Require().Error(err)
	s.ErrorIs(err, ErrChannelOverrun)

	var overrun *OverrunError
	s.Require().True(errors.As(err, &overrun))
	s.Equal(KindInt, overrun.Kind)
	s.Equal("write", overrun.Op)
	s.Equal(3, overrun.Len)
}

func (s *ContainerTestSuite) TestReadOverrun() {
	c := s.factory.New()
	err := catchPanic(func() {
		for i := 0; i < 4; i++ {
			c.ReadInt()
		}
	})
	s.Require().Error(err)
	s.ErrorIs(err, ErrChannelOverrun)
}

func (s *ContainerTestSuite) TestEmptyChannelOverrunsImmediately() {
	c := s.factory.New()
	err := catchPanic(func() { c.ReadDouble() })
	s.ErrorIs(err, ErrChannelOverrun)
}

func (s *ContainerTestSuite) TestResets() {
	c := s.factory.New()
	c.WriteInt(7)
	c.WriteInt(8)
	c.WriteInt(9)
	s.Equal(7, c.ReadInt())

	c.ResetReader()
	s.Equal(7, c.ReadInt())
	s.Equal(8, c.ReadInt())

	c.ResetWriter()
	c.WriteInt(70)
	c.ResetReader()
	s.Equal(70, c.ReadInt())
}

func TestContainer(t *testing.T) {
	suite.Run(t, new(ContainerTestSuite))
}
