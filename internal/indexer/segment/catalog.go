package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

// Catalog is the set of segments committed to one directory, typically one
// per index run. Lookups merge postings across all of them.
type Catalog struct {
	dir     string
	readers []*Reader
	logger  *slog.Logger
}

// OpenCatalog opens every segment file in dir, oldest first. Corrupted
// segments are logged and skipped.
func OpenCatalog(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir, logger: slog.Default().With("component", "segment-catalog")}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading segment directory: %w", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), Extension) {
			names = append(names, f.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		r, err := OpenReader(filepath.Join(dir, name))
		if err != nil {
			c.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		c.readers = append(c.readers, r)
		c.logger.Debug("loaded segment", "segment", name, "terms", r.Terms(), "docs", r.DocCount())
	}
	c.logger.Info("segment catalog loaded", "dir", dir, "segments", len(c.readers))
	return c, nil
}

// Segments returns the number of open segments.
func (c *Catalog) Segments() int {
	return len(c.readers)
}

// Lookup returns the union of term's postings over all segments, ascending
// and without duplicates.
func (c *Catalog) Lookup(term string) ([]int64, error) {
	var ids []int64
	for _, r := range c.readers {
		got, err := r.Lookup(term)
		if err != nil {
			return nil, fmt.Errorf("looking up %q in %s: %w", term, filepath.Base(r.Path()), err)
		}
		ids = append(ids, got...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Entry is Lookup packaged as an index entry.
func (c *Catalog) Entry(term string) (index.Entry, error) {
	ids, err := c.Lookup(term)
	return index.Entry{Term: term, RecordIDs: ids}, err
}

// Close closes every segment.
func (c *Catalog) Close() error {
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.readers = nil
	return firstErr
}
