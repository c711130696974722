// Package index defines the units that flow between the map and reduce
// stages and their tab-delimited line encoding.
package index

import (
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

// Occurrence is one surviving token instance: a normalized, non-empty term
// and the id of the record it was found in.
type Occurrence struct {
	Term     string
	RecordID int64
}

// Entry is the final posting for a term. RecordIDs is non-empty, strictly
// ascending and free of duplicates.
type Entry struct {
	Term      string  `json:"term"`
	RecordIDs []int64 `json:"record_ids"`
}

// DocFreq returns the number of distinct records containing the term.
func (e Entry) DocFreq() int {
	return len(e.RecordIDs)
}

// FormatOccurrence renders o as "term\tid".
func FormatOccurrence(o Occurrence) string {
	return o.Term + "\t" + strconv.FormatInt(o.RecordID, 10)
}

// AppendOccurrence appends the line form of o (without newline) to dst.
func AppendOccurrence(dst []byte, o Occurrence) []byte {
	dst = append(dst, o.Term...)
	dst = append(dst, '\t')
	return strconv.AppendInt(dst, o.RecordID, 10)
}

// ParseOccurrence decodes a "term\tid" line. Surrounding whitespace is
// ignored. Anything other than exactly two fields with a non-empty term and
// an integer id is a *MalformedPairError; lineNum is recorded in it.
func ParseOccurrence(line string, lineNum int) (Occurrence, error) {
	line = strings.TrimSpace(line)
	term, rest, ok := strings.Cut(line, "\t")
	if !ok {
		return Occurrence{}, &apperrors.MalformedPairError{Line: lineNum, Raw: line, Reason: "missing tab separator"}
	}
	if strings.Contains(rest, "\t") {
		return Occurrence{}, &apperrors.MalformedPairError{Line: lineNum, Raw: line, Reason: "more than two fields"}
	}
	if term == "" {
		return Occurrence{}, &apperrors.MalformedPairError{Line: lineNum, Raw: line, Reason: "empty term"}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil {
		return Occurrence{}, &apperrors.MalformedPairError{Line: lineNum, Raw: line, Reason: "record id is not an integer"}
	}
	return Occurrence{Term: term, RecordID: id}, nil
}

// FormatEntry renders e as "term\tid1,id2,...".
func FormatEntry(e Entry) string {
	return string(AppendEntry(nil, e))
}

// AppendEntry appends the line form of e (without newline) to dst.
func AppendEntry(dst []byte, e Entry) []byte {
	dst = append(dst, e.Term...)
	dst = append(dst, '\t')
	dst = AppendIDs(dst, e.RecordIDs)
	return dst
}

// AppendIDs appends ids comma-joined.
func AppendIDs(dst []byte, ids []int64) []byte {
	for i, id := range ids {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendInt(dst, id, 10)
	}
	return dst
}

// ParseEntry decodes a "term\tid1,id2" line produced by FormatEntry.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	term, list, ok := strings.Cut(line, "\t")
	if !ok || term == "" || list == "" {
		return Entry{}, &apperrors.MalformedPairError{Raw: line, Reason: "not a term<TAB>ids line"}
	}
	ids, err := ParseIDs(list)
	if err != nil {
		return Entry{}, &apperrors.MalformedPairError{Raw: line, Reason: err.Error()}
	}
	return Entry{Term: term, RecordIDs: ids}, nil
}

// ParseIDs decodes a comma-joined id list.
func ParseIDs(list string) ([]int64, error) {
	parts := strings.Split(list, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
