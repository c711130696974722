// Package shuffle provides the sort stage between tokenizing and
// aggregation. Sorters accept occurrences in any order and replay them
// ordered by term (byte-lexicographic, stable for equal terms).
package shuffle

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

// Sorter collects occurrences and drains them in term order. Add is safe for
// concurrent use; Drain must be called once, after the last Add.
type Sorter interface {
	Add(o index.Occurrence) error
	Drain(ctx context.Context, fn func(index.Occurrence) error) error
	Close() error
}

func byTerm(a, b index.Occurrence) int {
	return cmp.Compare(a.Term, b.Term)
}

// MemorySorter holds every occurrence in memory. Suitable when the
// intermediate stream fits comfortably in RAM.
type MemorySorter struct {
	mu  sync.Mutex
	buf []index.Occurrence
}

// NewMemorySorter returns an empty MemorySorter.
func NewMemorySorter() *MemorySorter {
	return &MemorySorter{}
}

func (s *MemorySorter) Add(o index.Occurrence) error {
	s.mu.Lock()
	s.buf = append(s.buf, o)
	s.mu.Unlock()
	return nil
}

func (s *MemorySorter) Drain(ctx context.Context, fn func(index.Occurrence) error) error {
	s.mu.Lock()
	buf := s.buf
	s.buf = nil
	s.mu.Unlock()

	slices.SortStableFunc(buf, byTerm)
	return replay(ctx, buf, fn)
}

func (s *MemorySorter) Close() error {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
	return nil
}

func replay(ctx context.Context, buf []index.Occurrence, fn func(index.Occurrence) error) error {
	for i, o := range buf {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}
