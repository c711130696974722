package segment

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

func writeSegment(t *testing.T, dir string, entries []index.Entry) string {
	t.Helper()
	b, err := NewWriter(dir).Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, e := range entries {
		if err := b.Add(e); err != nil {
			t.Fatalf("Add(%q): %v", e.Term, err)
		}
	}
	name, err := b.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return filepath.Join(dir, name)
}

func TestWriteAndLookup(t *testing.T) {
	dir := t.TempDir()
	entries := []index.Entry{
		{Term: "fox", RecordIDs: []int64{3, 7}},
		{Term: "python", RecordIDs: []int64{1, 2, 1000000, 5000000000}},
		{Term: "quick", RecordIDs: []int64{3}},
	}
	path := writeSegment(t, dir, entries)

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if r.Terms() != 3 || r.DocCount() != 6 {
		t.Errorf("Terms=%d DocCount=%d", r.Terms(), r.DocCount())
	}
	for _, e := range entries {
		ids, err := r.Lookup(e.Term)
		if err != nil || !slices.Equal(ids, e.RecordIDs) {
			t.Errorf("Lookup(%q) = %v, %v; want %v", e.Term, ids, err, e.RecordIDs)
		}
	}
	if ids, err := r.Lookup("zebra"); ids != nil || err != nil {
		t.Errorf("Lookup(missing) = %v, %v", ids, err)
	}

	var terms []string
	for e, err := range r.Entries() {
		if err != nil {
			t.Fatal(err)
		}
		terms = append(terms, e.Term)
	}
	if !slices.Equal(terms, []string{"fox", "python", "quick"}) {
		t.Errorf("Entries terms = %v", terms)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left: %v", leftovers)
	}
}

func TestBuilderRejectsUnsortedTerms(t *testing.T) {
	b, err := NewWriter(t.TempDir()).Create()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Abort()
	if err := b.Add(index.Entry{Term: "b", RecordIDs: []int64{1}}); err != nil {
		t.Fatal(err)
	}
	err = b.Add(index.Entry{Term: "a", RecordIDs: []int64{1}})
	if !errors.Is(err, apperrors.ErrUnsortedInput) {
		t.Errorf("err = %v, want ErrUnsortedInput", err)
	}
}

func TestCommitEmptySegment(t *testing.T) {
	dir := t.TempDir()
	b, err := NewWriter(dir).Create()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Commit(); err == nil {
		t.Fatal("expected error committing empty segment")
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Errorf("files left after empty commit: %v", files)
	}
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	path := writeSegment(t, t.TempDir(), []index.Entry{{Term: "fox", RecordIDs: []int64{1}}})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a byte inside the JSON dictionary, just before the footer.
	data[len(data)-FooterSize-3] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); !errors.Is(err, apperrors.ErrSegmentCorrupted) {
		t.Errorf("OpenReader err = %v, want ErrSegmentCorrupted", err)
	}
}

func TestOpenReaderRejectsBadHeaderBounds(t *testing.T) {
	cases := map[string]struct {
		offset int
		value  int64
	}{
		"huge dict size":      {24, 1 << 50},
		"negative dict size":  {24, -1},
		"dict past end":       {16, 1 << 40},
		"dict inside header":  {16, 8},
		"huge postings size":  {40, 1 << 50},
		"postings before hdr": {32, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeSegment(t, t.TempDir(), []index.Entry{{Term: "fox", RecordIDs: []int64{1, 2}}})
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			binary.LittleEndian.PutUint64(data[tc.offset:tc.offset+8], uint64(tc.value))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := OpenReader(path); !errors.Is(err, apperrors.ErrSegmentCorrupted) {
				t.Errorf("OpenReader err = %v, want ErrSegmentCorrupted", err)
			}
		})
	}
}

func TestOpenReaderTruncated(t *testing.T) {
	path := writeSegment(t, t.TempDir(), []index.Entry{{Term: "fox", RecordIDs: []int64{1}}})
	if err := os.Truncate(path, int64(HeaderSize)/2); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); !errors.Is(err, apperrors.ErrSegmentCorrupted) {
		t.Errorf("OpenReader err = %v, want ErrSegmentCorrupted", err)
	}
}

func TestPostingsRoundTrip(t *testing.T) {
	ids := []int64{-5, 0, 1, 9, 1 << 40}
	got, err := decodePostings(appendPostings(nil, ids))
	if err != nil || !slices.Equal(got, ids) {
		t.Errorf("decodePostings = %v, %v", got, err)
	}
	if _, err := decodePostings([]byte{5, 2}); err == nil {
		t.Error("expected truncated postings error")
	}
}
