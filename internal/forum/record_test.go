package forum

import (
	"errors"
	"io"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

func sampleFields() []string {
	return []string{
		"6336", "Sample title", "cs101 python  ", "100000458", "<p>Hello world</p>", "question",
		"", "", "2012-02-25 08:09:06.787181+00", "1", "", "", "100000921",
		"2012-02-25 08:11:01.623548+00", "166", "", "", "0", "f",
	}
}

func TestParseFieldsAppliesCorrections(t *testing.T) {
	rec, err := ParseFields(sampleFields())
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	if rec.AddedAt != "2012-02-25 08:09:06.787181" {
		t.Errorf("AddedAt = %q", rec.AddedAt)
	}
	if rec.TagNames != "cs101 python" {
		t.Errorf("TagNames = %q", rec.TagNames)
	}
	if rec.LastActivityAt != "2012-02-25 08:11:01.623548+00" {
		t.Errorf("LastActivityAt must be left untouched, got %q", rec.LastActivityAt)
	}
	if rec.Body != "<p>Hello world</p>" || rec.NodeType != "question" || rec.Marked != "f" {
		t.Errorf("positional mapping wrong: %+v", rec)
	}
	if got := rec.Fields(); len(got) != NumFields || got[8] != rec.AddedAt {
		t.Errorf("Fields() = %v", got)
	}
}

func TestParseFieldsShortAddedAt(t *testing.T) {
	fields := sampleFields()
	fields[8] = "+0"
	rec, err := ParseFields(fields)
	if err != nil {
		t.Fatal(err)
	}
	if rec.AddedAt != "" {
		t.Errorf("AddedAt = %q, want empty", rec.AddedAt)
	}
}

func TestParseFieldsWrongCount(t *testing.T) {
	for _, n := range []int{0, 5, NumFields - 1, NumFields + 1} {
		fields := make([]string, n)
		_, err := ParseFields(fields)
		if !errors.Is(err, apperrors.ErrMalformedRecord) {
			t.Errorf("%d fields: err = %v, want ErrMalformedRecord", n, err)
		}
	}
}

func TestNumericID(t *testing.T) {
	rec, _ := ParseFields(sampleFields())
	id, err := rec.NumericID()
	if err != nil || id != 6336 {
		t.Fatalf("NumericID() = %d, %v", id, err)
	}
	rec.ID = "id"
	if _, err := rec.NumericID(); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Errorf("non-integer id: err = %v", err)
	}
}

func TestReaderQuotedBodyAndHeader(t *testing.T) {
	header := strings.Join(Schema[:], "\t")
	row := sampleFields()
	row[4] = "\"multi\tline\nbody\""
	input := header + "\n" + strings.Join(row, "\t") + "\n"

	r := NewReader(strings.NewReader(input), true)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Body != "multi\tline\nbody" {
		t.Errorf("Body = %q", rec.Body)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("second Next() err = %v, want io.EOF", err)
	}
}

func TestReaderReportsMalformedLineAndContinues(t *testing.T) {
	good := strings.Join(sampleFields(), "\t")
	input := good + "\nonly\tthree\tfields\n" + good + "\n"
	r := NewReader(strings.NewReader(input), false)

	if _, err := r.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err := r.Next()
	var mre *apperrors.MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("second record: err = %v, want *MalformedRecordError", err)
	}
	if mre.Line != 2 || mre.Fields != 3 {
		t.Errorf("MalformedRecordError = %+v", mre)
	}
	if _, err := r.Next(); err != nil {
		t.Errorf("third record: %v", err)
	}
}
