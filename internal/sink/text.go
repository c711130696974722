package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

// Text writes "term\tid1,id2,..." lines, the reducer output format.
type Text struct {
	w      *bufio.Writer
	closer io.Closer
	line   []byte
}

// NewText writes to w. closer, if non-nil, is closed by Close.
func NewText(w io.Writer, closer io.Closer) *Text {
	return &Text{w: bufio.NewWriterSize(w, 64<<10), closer: closer}
}

func (t *Text) Write(_ context.Context, e index.Entry) error {
	t.line = index.AppendEntry(t.line[:0], e)
	t.line = append(t.line, '\n')
	if _, err := t.w.Write(t.line); err != nil {
		return fmt.Errorf("writing entry %q: %w", e.Term, err)
	}
	return nil
}

func (t *Text) Close(context.Context) error {
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flushing text output: %w", err)
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
