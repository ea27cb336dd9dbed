package foundry

// Container is the flat hand-off buffer between compiled accessors and the
// rest of the system. Values live in per-kind channels sized once from the
// owning schema; each channel has independent, monotonically advancing read
// and write cursors. Containers are strictly sequential: the number and kind
// sequence of reads must mirror the writes exactly, and exceeding a channel
// length panics with an *OverrunError.
//
// A container is owned by a single (de)construction call and must not be
// shared across goroutines.
type Container struct {
	bools   []bool
	chars   []rune
	bytes   []byte
	shorts  []int16
	ints    []int
	longs   []int64
	floats  []float32
	doubles []float64
	objects []any

	read  [numKinds]int
	write [numKinds]int
}

// ContainerFactory produces empty containers pre-sized for one schema.
type ContainerFactory struct {
	counts [numKinds]int
}

// NewContainerFactory counts the attributes of each kind in the schema and
// returns a factory producing containers of exactly that shape.
func NewContainerFactory(schema *Schema) *ContainerFactory {
	f := &ContainerFactory{}
	for _, attr := range schema.Attributes {
		f.counts[attr.Kind]++
	}
	return f
}

// New returns an empty container sized for the factory's schema.
func (f *ContainerFactory) New() *Container {
	return &Container{
		bools:   make([]bool, f.counts[KindBool]),
		chars:   make([]rune, f.counts[KindChar]),
		bytes:   make([]byte, f.counts[KindByte]),
		shorts:  make([]int16, f.counts[KindShort]),
		ints:    make([]int, f.counts[KindInt]),
		longs:   make([]int64, f.counts[KindLong]),
		floats:  make([]float32, f.counts[KindFloat]),
		doubles: make([]float64, f.counts[KindDouble]),
		objects: make([]any, f.counts[KindObject]),
	}
}

func (c *Container) next(k Kind, op string, length int) int {
	var cursor *int
	if op == "read" {
		cursor = &c.read[k]
	} else {
		cursor = &c.write[k]
	}
	if *cursor >= length {
		panic(&OverrunError{Kind: k, Op: op, Len: length})
	}
	i := *cursor
	*cursor++
	return i
}

func (c *Container) ReadBool() bool      { return c.bools[c.next(KindBool, "read", len(c.bools))] }
func (c *Container) ReadChar() rune      { return c.chars[c.next(KindChar, "read", len(c.chars))] }
func (c *Container) ReadByte() byte      { return c.bytes[c.next(KindByte, "read", len(c.bytes))] }
func (c *Container) ReadShort() int16    { return c.shorts[c.next(KindShort, "read", len(c.shorts))] }
func (c *Container) ReadInt() int        { return c.ints[c.next(KindInt, "read", len(c.ints))] }
func (c *Container) ReadLong() int64     { return c.longs[c.next(KindLong, "read", len(c.longs))] }
func (c *Container) ReadFloat() float32  { return c.floats[c.next(KindFloat, "read", len(c.floats))] }
func (c *Container) ReadDouble() float64 { return c.doubles[c.next(KindDouble, "read", len(c.doubles))] }
func (c *Container) ReadObject() any     { return c.objects[c.next(KindObject, "read", len(c.objects))] }

func (c *Container) WriteBool(v bool) { c.bools[c.next(KindBool, "write", len(c.bools))] = v }
func (c *Container) WriteChar(v rune) { c.chars[c.next(KindChar, "write", len(c.chars))] = v }
func (c *Container) WriteByte(v byte) { c.bytes[c.next(KindByte, "write", len(c.bytes))] = v }
func (c *Container) WriteShort(v int16) {
	c.shorts[c.next(KindShort, "write", len(c.shorts))] = v
}
func (c *Container) WriteInt(v int)    { c.ints[c.next(KindInt, "write", len(c.ints))] = v }
func (c *Container) WriteLong(v int64) { c.longs[c.next(KindLong, "write", len(c.longs))] = v }
func (c *Container) WriteFloat(v float32) {
	c.floats[c.next(KindFloat, "write", len(c.floats))] = v
}
func (c *Container) WriteDouble(v float64) {
	c.doubles[c.next(KindDouble, "write", len(c.doubles))] = v
}
func (c *Container) WriteObject(v any) {
	c.objects[c.next(KindObject, "write", len(c.objects))] = v
}

// ResetReader rewinds all read cursors to zero without reallocating, so the
// written data can be read again within the same call.
func (c *Container) ResetReader() {
	for i := range c.read {
		c.read[i] = 0
	}
}

// ResetWriter rewinds all write cursors to zero without reallocating.
func (c *Container) ResetWriter() {
	for i := range c.write {
		c.write[i] = 0
	}
}
