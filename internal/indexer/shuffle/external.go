package shuffle

import (
	"bufio"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

// ExternalSorter bounds memory to runSize occurrences. Full buffers are
// sorted and spilled to run files, which Drain k-way merges.
type ExternalSorter struct {
	mu      sync.Mutex
	tempDir string
	dir     string
	runSize int
	codec   Codec
	buf     []index.Occurrence
	runs    []string
	fanIn   int
	merged  int
	onSpill func(n int)
	logger  *slog.Logger
}

// DefaultMaxFanIn is the number of runs merged at once. More runs are first
// merged in passes into larger intermediate runs, which bounds open files.
const DefaultMaxFanIn = 64

// ExternalOption configures an ExternalSorter.
type ExternalOption func(*ExternalSorter)

// WithSpillHook registers fn to be called with the size of every spilled run.
func WithSpillHook(fn func(n int)) ExternalOption {
	return func(s *ExternalSorter) { s.onSpill = fn }
}

// WithMaxFanIn caps the runs open during one merge pass. Values below 2 are
// ignored.
func WithMaxFanIn(n int) ExternalOption {
	return func(s *ExternalSorter) {
		if n >= 2 {
			s.fanIn = n
		}
	}
}

// NewExternalSorter creates a sorter spilling under tempDir ("" means the OS
// temp directory).
func NewExternalSorter(tempDir string, runSize int, codec Codec, opts ...ExternalOption) (*ExternalSorter, error) {
	if runSize <= 0 {
		return nil, fmt.Errorf("run size must be positive, got %d", runSize)
	}
	s := &ExternalSorter{
		tempDir: tempDir,
		runSize: runSize,
		codec:   codec,
		fanIn:   DefaultMaxFanIn,
		buf:     make([]index.Occurrence, 0, min(runSize, 1<<16)),
		logger:  slog.Default().With("component", "external-sorter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ExternalSorter) Add(o index.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, o)
	if len(s.buf) >= s.runSize {
		return s.spillLocked()
	}
	return nil
}

// Runs returns the number of runs spilled so far.
func (s *ExternalSorter) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *ExternalSorter) spillLocked() error {
	if len(s.buf) == 0 {
		return nil
	}
	if s.dir == "" {
		dir, err := os.MkdirTemp(s.tempDir, "forum-index-shuffle-")
		if err != nil {
			return fmt.Errorf("creating spill directory: %w", err)
		}
		s.dir = dir
	}
	slices.SortStableFunc(s.buf, byTerm)

	path, err := s.writeRun(fmt.Sprintf("run-%05d-*.tsv%s", len(s.runs), s.codec.Ext()), func(emit func(index.Occurrence) error) error {
		for _, o := range s.buf {
			if err := emit(o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.runs = append(s.runs, path)
	n := len(s.buf)
	s.buf = s.buf[:0]
	s.logger.Debug("run spilled", "run", len(s.runs), "occurrences", n, "codec", string(s.codec))
	if s.onSpill != nil {
		s.onSpill(n)
	}
	return nil
}

// writeRun creates a run file in the spill directory and fills it with the
// occurrences handed to emit, which must already be in term order.
func (s *ExternalSorter) writeRun(pattern string, fill func(emit func(index.Occurrence) error) error) (string, error) {
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating run file: %w", err)
	}
	defer f.Close()
	cw, err := s.codec.wrapWriter(f)
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(cw, 256<<10)
	line := make([]byte, 0, 64)
	err = fill(func(o index.Occurrence) error {
		line = index.AppendOccurrence(line[:0], o)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("writing run %s: %w", f.Name(), err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing run %s: %w", f.Name(), err)
	}
	if err := cw.Close(); err != nil {
		return "", fmt.Errorf("closing run encoder %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing run %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// compact merges consecutive groups of at most fanIn runs until no more
// than fanIn remain. Groups keep their spill order, so equal terms stay
// stable across passes.
func (s *ExternalSorter) compact(ctx context.Context, runs []string) ([]string, error) {
	for pass := 1; len(runs) > s.fanIn; pass++ {
		next := make([]string, 0, (len(runs)+s.fanIn-1)/s.fanIn)
		for start := 0; start < len(runs); start += s.fanIn {
			group := runs[start:min(start+s.fanIn, len(runs))]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			pattern := fmt.Sprintf("merge-%02d-%05d-*.tsv%s", pass, len(next), s.codec.Ext())
			path, err := s.writeRun(pattern, func(emit func(index.Occurrence) error) error {
				return mergeRuns(ctx, group, s.codec, emit)
			})
			if err != nil {
				return nil, err
			}
			for _, r := range group {
				os.Remove(r)
			}
			next = append(next, path)
			s.mu.Lock()
			s.merged++
			s.mu.Unlock()
		}
		s.logger.Debug("merge pass complete", "pass", pass, "runs_in", len(runs), "runs_out", len(next))
		runs = next
	}
	return runs, nil
}

// MergedRuns returns the number of intermediate runs written by merge passes.
func (s *ExternalSorter) MergedRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged
}

func (s *ExternalSorter) Drain(ctx context.Context, fn func(index.Occurrence) error) error {
	s.mu.Lock()
	if len(s.runs) == 0 {
		buf := s.buf
		s.buf = nil
		s.mu.Unlock()
		slices.SortStableFunc(buf, byTerm)
		return replay(ctx, buf, fn)
	}
	if err := s.spillLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	runs := slices.Clone(s.runs)
	s.mu.Unlock()

	runs, err := s.compact(ctx, runs)
	if err != nil {
		return err
	}

	s.logger.Info("merging spilled runs", "runs", len(runs))
	return mergeRuns(ctx, runs, s.codec, fn)
}

// Close removes every spilled run.
func (s *ExternalSorter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	s.runs = nil
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing spill directory: %w", err)
	}
	return nil
}

type runCursor struct {
	rank int
	file *os.File
	dec  io.ReadCloser
	r    *bufio.Reader
	line int
	head index.Occurrence
	path string
}

func (c *runCursor) advance() (bool, error) {
	raw, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && raw == "" {
			return false, nil
		}
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading run %s: %w", c.path, err)
		}
	}
	c.line++
	o, perr := index.ParseOccurrence(raw, c.line)
	if perr != nil {
		return false, fmt.Errorf("corrupt run %s: %w", c.path, perr)
	}
	c.head = o
	return true, nil
}

func (c *runCursor) close() {
	c.dec.Close()
	c.file.Close()
}

// cursorHeap orders cursors by head term, then by run rank so equal terms
// replay in spill order.
type cursorHeap []*runCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].head.Term != h[j].head.Term {
		return h[i].head.Term < h[j].head.Term
	}
	return h[i].rank < h[j].rank
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*runCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

func mergeRuns(ctx context.Context, runs []string, codec Codec, fn func(index.Occurrence) error) error {
	cursors := make([]*runCursor, 0, len(runs))
	defer func() {
		for _, c := range cursors {
			c.close()
		}
	}()

	h := make(cursorHeap, 0, len(runs))
	for rank, path := range runs {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening run: %w", err)
		}
		dec, err := codec.wrapReader(f)
		if err != nil {
			f.Close()
			return err
		}
		c := &runCursor{rank: rank, file: f, dec: dec, r: bufio.NewReaderSize(dec, 256<<10), path: path}
		cursors = append(cursors, c)
		ok, err := c.advance()
		if err != nil {
			return err
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	n := 0
	for h.Len() > 0 {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n++
		c := h[0]
		if err := fn(c.head); err != nil {
			return err
		}
		ok, err := c.advance()
		if err != nil {
			return err
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return nil
}
