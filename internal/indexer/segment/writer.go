// Package segment stores finished index entries in immutable .spdx segment
// files: a fixed header, delta-varint postings, a JSON term dictionary
// sorted by term, and a checksummed footer.
package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	Extension            = ".spdx"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer creates new segment files in a directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Builder streams entries into one segment. Entries must arrive in strictly
// ascending term order, which the aggregator guarantees for sorted input.
type Builder struct {
	f         *os.File
	bw        *bufio.Writer
	tmpPath   string
	finalPath string
	name      string
	dict      []DictEntry
	docIDs    map[int64]struct{}
	written   int64
	scratch   []byte
	createdAt time.Time
}

// Create opens a temporary segment file. Commit renames it into place;
// Abort removes it.
func (w *Writer) Create() (*Builder, error) {
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating segment directory: %w", err)
	}
	now := time.Now()
	name := fmt.Sprintf("seg_%d%s", now.UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating temp segment file: %w", err)
	}
	b := &Builder{
		f:         f,
		bw:        bufio.NewWriterSize(f, 256<<10),
		tmpPath:   tmpPath,
		finalPath: finalPath,
		name:      name,
		docIDs:    make(map[int64]struct{}),
		createdAt: now,
	}
	if _, err := b.bw.Write(make([]byte, HeaderSize)); err != nil {
		b.Abort()
		return nil, fmt.Errorf("reserving header: %w", err)
	}
	return b, nil
}

// Add appends the postings of one entry.
func (b *Builder) Add(entry index.Entry) error {
	if n := len(b.dict); n > 0 && entry.Term <= b.dict[n-1].Term {
		return fmt.Errorf("%w: segment term %q after %q", apperrors.ErrUnsortedInput, entry.Term, b.dict[n-1].Term)
	}
	b.scratch = appendPostings(b.scratch[:0], entry.RecordIDs)
	if _, err := b.bw.Write(b.scratch); err != nil {
		return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
	}
	b.dict = append(b.dict, DictEntry{
		Term:       entry.Term,
		PostOffset: b.written,
		PostLen:    len(b.scratch),
		DocFreq:    len(entry.RecordIDs),
	})
	b.written += int64(len(b.scratch))
	for _, id := range entry.RecordIDs {
		b.docIDs[id] = struct{}{}
	}
	return nil
}

// Terms returns the number of entries added so far.
func (b *Builder) Terms() int {
	return len(b.dict)
}

// Commit writes the dictionary, footer and header, syncs, and atomically
// renames the segment into place. It returns the segment file name.
func (b *Builder) Commit() (string, error) {
	if len(b.dict) == 0 {
		b.Abort()
		return "", fmt.Errorf("cannot write empty segment")
	}
	postingsStart := int64(HeaderSize)
	postingsSize := b.written
	dictStart := postingsStart + postingsSize
	dictData, err := json.Marshal(b.dict)
	if err != nil {
		b.Abort()
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := b.bw.Write(dictData); err != nil {
		b.Abort()
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	dictSize := int64(len(dictData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(b.docIDs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := b.bw.Write(footer); err != nil {
		b.Abort()
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := b.bw.Flush(); err != nil {
		b.Abort()
		return "", fmt.Errorf("flushing segment: %w", err)
	}

	header := SegmentHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(b.dict)),
		DocCount:   uint32(len(b.docIDs)),
		CreatedAt:  b.createdAt.Unix(),
		DictOffset: dictStart,
		DictSize:   dictSize,
		PostOffset: postingsStart,
		PostSize:   postingsSize,
	}
	if _, err := b.f.WriteAt(encodeHeader(header), 0); err != nil {
		b.Abort()
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := b.f.Sync(); err != nil {
		b.Abort()
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := b.f.Close(); err != nil {
		os.Remove(b.tmpPath)
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(b.tmpPath, b.finalPath); err != nil {
		os.Remove(b.tmpPath)
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return b.name, nil
}

// Abort discards the partially written segment.
func (b *Builder) Abort() {
	b.f.Close()
	os.Remove(b.tmpPath)
}

func encodeHeader(h SegmentHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.CreatedAt))
	return buf
}

// appendPostings encodes ascending ids as a count followed by zig-zag
// varint deltas.
func appendPostings(dst []byte, ids []int64) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(ids)))
	var prev int64
	for _, id := range ids {
		dst = binary.AppendVarint(dst, id-prev)
		prev = id
	}
	return dst
}
