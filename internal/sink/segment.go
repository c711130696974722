package sink

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/segment"
)

// Segment writes all entries of a run into one new segment file.
type Segment struct {
	builder *segment.Builder
	dir     string
	logger  *slog.Logger
	name    string
}

// NewSegment starts a segment under dir.
func NewSegment(dir string) (*Segment, error) {
	b, err := segment.NewWriter(dir).Create()
	if err != nil {
		return nil, err
	}
	return &Segment{
		builder: b,
		dir:     dir,
		logger:  slog.Default().With("component", "segment-sink"),
	}, nil
}

func (s *Segment) Write(_ context.Context, e index.Entry) error {
	return s.builder.Add(e)
}

// Close commits the segment. A run without entries leaves no file behind.
func (s *Segment) Close(context.Context) error {
	if s.builder.Terms() == 0 {
		s.builder.Abort()
		s.logger.Info("no entries, segment discarded", "dir", s.dir)
		return nil
	}
	name, err := s.builder.Commit()
	if err != nil {
		return err
	}
	s.name = name
	s.logger.Info("segment committed", "segment", name, "dir", s.dir)
	return nil
}

// Abort removes the partially written segment.
func (s *Segment) Abort() {
	s.builder.Abort()
	s.logger.Info("segment aborted", "dir", s.dir)
}

// Name returns the committed segment file name, or "" before Close.
func (s *Segment) Name() string {
	return s.name
}
