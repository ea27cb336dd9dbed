package foundry

import (
	"reflect"
	"testing"
)

type BenchmarkRecord struct {
	ID     int64
	Name   string
	Active bool
	Score  float64
	Rank   int
}

func benchmarkAccessor(b *testing.B) *Accessor {
	acc, err := AccessorFor(reflect.TypeOf(BenchmarkRecord{}), Structural)
	if err != nil {
		b.Fatal(err)
	}
	return acc
}

func BenchmarkAccessorWrite(b *testing.B) {
	acc := benchmarkAccessor(b)
	rec := BenchmarkRecord{ID: 1, Name: "bench", Active: true, Score: 9.5, Rank: 3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = acc.Write(rec)
	}
}

func BenchmarkAccessorWriteReused(b *testing.B) {
	acc := benchmarkAccessor(b)
	rec := BenchmarkRecord{ID: 1, Name: "bench", Active: true, Score: 9.5, Rank: 3}
	c := acc.NewContainer()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.ResetWriter()
		_ = acc.WriteInto(rec, c)
	}
}

func BenchmarkAccessorRoundTrip(b *testing.B) {
	acc := benchmarkAccessor(b)
	rec := BenchmarkRecord{ID: 1, Name: "bench", Active: true, Score: 9.5, Rank: 3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, _ := acc.Write(rec)
		_, _ = acc.Read(c)
	}
}

func BenchmarkFlatten(b *testing.B) {
	fl, err := FlattenerFor(reflect.TypeOf(BenchmarkRecord{}), Structural)
	if err != nil {
		b.Fatal(err)
	}
	rec := BenchmarkRecord{ID: 1, Name: "bench", Active: true, Score: 9.5, Rank: 3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fl.Flatten(rec)
	}
}

func BenchmarkSchemaLookup(b *testing.B) {
	t := reflect.TypeOf(BenchmarkRecord{})
	if _, err := SchemaFor(t, Structural); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = SchemaFor(t, Structural)
	}
}

// Baseline comparison deconstructing the same record by hand with plain
// reflection, to see the overhead the compiled path avoids.
func BenchmarkReflectBaseline(b *testing.B) {
	rec := BenchmarkRecord{ID: 1, Name: "bench", Active: true, Score: 9.5, Rank: 3}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v := reflect.ValueOf(rec)
		for f := 0; f < v.NumField(); f++ {
			_ = v.Field(f).Interface()
		}
	}
}
