package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	postBase int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file shorter than header", apperrors.ErrSegmentCorrupted)
		}
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrSegmentCorrupted, magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	if err := header.checkBounds(info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if binary.LittleEndian.Uint32(footer[0:4]) != crc32.ChecksumIEEE(dictBytes) {
		f.Close()
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", apperrors.ErrSegmentCorrupted)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	for _, d := range dict {
		if d.PostOffset < 0 || d.PostLen < 0 || int64(d.PostLen) > header.PostSize-d.PostOffset {
			f.Close()
			return nil, fmt.Errorf("%w: postings of %q outside postings block", apperrors.ErrSegmentCorrupted, d.Term)
		}
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// checkBounds verifies that the postings block, dictionary and footer lie
// inside a file of size bytes, in that order after the header.
func (h SegmentHeader) checkBounds(size int64) error {
	header, footer := int64(HeaderSize), int64(FooterSize)
	switch {
	case h.PostOffset < header || h.PostSize < 0 || h.PostSize > size-h.PostOffset:
		return fmt.Errorf("%w: postings block [%d,+%d) outside file of %d bytes",
			apperrors.ErrSegmentCorrupted, h.PostOffset, h.PostSize, size)
	case h.DictOffset < h.PostOffset+h.PostSize || h.DictSize < 0 || h.DictSize > size-footer-h.DictOffset:
		return fmt.Errorf("%w: dictionary [%d,+%d) outside file of %d bytes",
			apperrors.ErrSegmentCorrupted, h.DictOffset, h.DictSize, size)
	}
	return nil
}

// Lookup returns the ascending record ids of term, or nil if the segment
// does not contain it.
func (r *Reader) Lookup(term string) ([]int64, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.postings(r.dict[idx])
}

// Entries iterates every entry in term order.
func (r *Reader) Entries() iter.Seq2[index.Entry, error] {
	return func(yield func(index.Entry, error) bool) {
		for _, d := range r.dict {
			ids, err := r.postings(d)
			if !yield(index.Entry{Term: d.Term, RecordIDs: ids}, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) postings(entry DictEntry) ([]int64, error) {
	buf := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(buf, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	ids, err := decodePostings(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: postings for %q: %v", apperrors.ErrSegmentCorrupted, entry.Term, err)
	}
	return ids, nil
}

func decodePostings(buf []byte) ([]int64, error) {
	n, k := binary.Uvarint(buf)
	if k <= 0 {
		return nil, fmt.Errorf("bad postings count")
	}
	buf = buf[k:]
	ids := make([]int64, 0, min(n, uint64(len(buf))))
	var prev int64
	for i := uint64(0); i < n; i++ {
		delta, k := binary.Varint(buf)
		if k <= 0 {
			return nil, fmt.Errorf("truncated postings at %d of %d", i, n)
		}
		buf = buf[k:]
		prev += delta
		ids = append(ids, prev)
	}
	return ids, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
