// Package source reads forum records from files, stdin or a Kafka topic.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/forum"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// RecordFunc receives each record, or a *MalformedRecordError in place of a
// record that failed to parse. Returning an error stops the source.
type RecordFunc func(rec forum.Record, malformed error) error

// Source is one input shard of the map stage.
type Source interface {
	Name() string
	Read(ctx context.Context, fn RecordFunc) error
}

// Committer is a Source that tracks a consumed position. Commit marks
// everything read so far as done; Close releases it without committing.
type Committer interface {
	Source
	Commit(ctx context.Context) error
	Close() error
}

// CommitAll commits every Committer in sources, stopping at the first error.
func CommitAll(ctx context.Context, sources []Source) error {
	for _, src := range sources {
		if c, ok := src.(Committer); ok {
			if err := c.Commit(ctx); err != nil {
				return fmt.Errorf("committing %s: %w", src.Name(), err)
			}
		}
	}
	return nil
}

// CloseAll closes every Committer in sources and joins their errors.
func CloseAll(sources []Source) error {
	var errs []error
	for _, src := range sources {
		if c, ok := src.(Committer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", src.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Stream reads records from an already open reader.
type Stream struct {
	name       string
	r          io.Reader
	skipHeader bool
}

// NewStream wraps r. name is used in logs only.
func NewStream(name string, r io.Reader, skipHeader bool) *Stream {
	return &Stream{name: name, r: r, skipHeader: skipHeader}
}

func (s *Stream) Name() string { return s.name }

func (s *Stream) Read(ctx context.Context, fn RecordFunc) error {
	return readRecords(ctx, forum.NewReader(bufio.NewReaderSize(s.r, 256<<10), s.skipHeader), fn)
}

// File reads a forum dump from disk. Names ending in .gz or .zst are
// decompressed on the fly.
type File struct {
	path       string
	skipHeader bool
}

// NewFile returns a source for path.
func NewFile(path string, skipHeader bool) *File {
	return &File{path: path, skipHeader: skipHeader}
}

func (f *File) Name() string { return f.path }

func (f *File) Read(ctx context.Context, fn RecordFunc) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer file.Close()
	r, closeFn, err := decompress(f.path, file)
	if err != nil {
		return err
	}
	defer closeFn()
	return NewStream(f.path, r, f.skipHeader).Read(ctx, fn)
}

func decompress(path string, r io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening gzip input %s: %w", path, err)
		}
		return zr, func() { zr.Close() }, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("opening zstd input %s: %w", path, err)
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

func readRecords(ctx context.Context, r *forum.Reader, fn RecordFunc) error {
	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if !errors.Is(err, apperrors.ErrMalformedRecord) {
				return err
			}
			if err := fn(forum.Record{}, err); err != nil {
				return err
			}
			continue
		}
		if err := fn(rec, nil); err != nil {
			return err
		}
	}
}
