package segment

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

func TestCatalogMergesSegments(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, []index.Entry{
		{Term: "fox", RecordIDs: []int64{3, 7}},
		{Term: "quick", RecordIDs: []int64{3}},
	})
	writeSegment(t, dir, []index.Entry{
		{Term: "fox", RecordIDs: []int64{1, 7, 9}},
	})
	if err := os.WriteFile(filepath.Join(dir, "seg_broken"+Extension), []byte("not a segment"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := OpenCatalog(dir)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer c.Close()
	if c.Segments() != 2 {
		t.Errorf("Segments() = %d, want 2 (corrupted file skipped)", c.Segments())
	}
	ids, err := c.Lookup("fox")
	if err != nil || !slices.Equal(ids, []int64{1, 3, 7, 9}) {
		t.Errorf("Lookup(fox) = %v, %v", ids, err)
	}
	e, err := c.Entry("missing")
	if err != nil || len(e.RecordIDs) != 0 {
		t.Errorf("Entry(missing) = %+v, %v", e, err)
	}
}

func TestCatalogMissingDir(t *testing.T) {
	if _, err := OpenCatalog(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
