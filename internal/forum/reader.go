package forum

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

// Reader yields records from a tab-delimited forum dump. Quoted fields may
// span tabs and newlines, as they do in the exported body column.
type Reader struct {
	csv        *csv.Reader
	skipHeader bool
	started    bool
}

// NewReader wraps r. When skipHeader is set the first row is discarded.
func NewReader(r io.Reader, skipHeader bool) *Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return &Reader{csv: cr, skipHeader: skipHeader}
}

// Next returns the next record, io.EOF at the end of input, or a
// *MalformedRecordError carrying the line the record started on. After a
// malformed record the reader is still positioned on the following row.
func (r *Reader) Next() (Record, error) {
	if !r.started {
		r.started = true
		if r.skipHeader {
			if _, err := r.csv.Read(); err != nil {
				if errors.Is(err, io.EOF) {
					return Record{}, io.EOF
				}
				return Record{}, fmt.Errorf("reading header: %w", err)
			}
		}
	}
	fields, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading record: %w", err)
	}
	line, _ := r.csv.FieldPos(0)
	rec, err := ParseFields(fields)
	if err != nil {
		var mre *apperrors.MalformedRecordError
		if errors.As(err, &mre) {
			mre.Line = line
		}
		return Record{}, err
	}
	return rec, nil
}
