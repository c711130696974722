package shuffle

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

func benchOccurrences(n int) []index.Occurrence {
	out := make([]index.Occurrence, n)
	for i := range out {
		out[i] = index.Occurrence{Term: fmt.Sprintf("term%04d", (i*7919)%1000), RecordID: int64(i)}
	}
	return out
}

func benchDrain(b *testing.B, s Sorter, occs []index.Occurrence) {
	for _, o := range occs {
		if err := s.Add(o); err != nil {
			b.Fatal(err)
		}
	}
	if err := s.Drain(context.Background(), func(index.Occurrence) error { return nil }); err != nil {
		b.Fatal(err)
	}
	s.Close()
}

func BenchmarkMemorySorter(b *testing.B) {
	occs := benchOccurrences(100_000)
	b.ReportAllocs()
	for b.Loop() {
		benchDrain(b, NewMemorySorter(), occs)
	}
}

func BenchmarkExternalSorter(b *testing.B) {
	occs := benchOccurrences(100_000)
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		b.Run(string(codec), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				s, err := NewExternalSorter(b.TempDir(), 10_000, codec)
				if err != nil {
					b.Fatal(err)
				}
				benchDrain(b, s, occs)
			}
		})
	}
}
