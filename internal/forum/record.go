// Package forum describes the forum node export: its fixed 19-column schema,
// the field corrections applied on parse, and a reader for tab-delimited dumps.
package forum

import (
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

// Schema lists the record columns in positional order.
var Schema = [...]string{
	"id",
	"title",
	"tagNames",
	"authorId",
	"body",
	"nodeType",
	"parentId",
	"absParentId",
	"addedAt",
	"score",
	"stateString",
	"lastEditedId",
	"lastActivityById",
	"lastActivityAt",
	"activeRevisionId",
	"extra",
	"extraRefId",
	"extraCount",
	"marked",
}

// NumFields is the exact column count of a well-formed record.
const NumFields = len(Schema)

// addedAtSuffix is the fixed-width timezone fragment dropped from addedAt.
const addedAtSuffix = 3

// Record is one forum node. Only ID and Body take part in indexing; the
// remaining fields are carried so the full record shape is reproduced.
type Record struct {
	ID               string
	Title            string
	TagNames         string
	AuthorID         string
	Body             string
	NodeType         string
	ParentID         string
	AbsParentID      string
	AddedAt          string
	Score            string
	StateString      string
	LastEditedID     string
	LastActivityByID string
	LastActivityAt   string
	ActiveRevisionID string
	Extra            string
	ExtraRefID       string
	ExtraCount       string
	Marked           string
}

// ParseFields maps a positional field list onto a Record. A field count
// other than NumFields is a *MalformedRecordError.
func ParseFields(fields []string) (Record, error) {
	if len(fields) != NumFields {
		return Record{}, apperrors.NewMalformedRecord(len(fields), NumFields, "wrong field count")
	}
	r := Record{
		ID:               fields[0],
		Title:            fields[1],
		TagNames:         fields[2],
		AuthorID:         fields[3],
		Body:             fields[4],
		NodeType:         fields[5],
		ParentID:         fields[6],
		AbsParentID:      fields[7],
		AddedAt:          fields[8],
		Score:            fields[9],
		StateString:      fields[10],
		LastEditedID:     fields[11],
		LastActivityByID: fields[12],
		LastActivityAt:   fields[13],
		ActiveRevisionID: fields[14],
		Extra:            fields[15],
		ExtraRefID:       fields[16],
		ExtraCount:       fields[17],
		Marked:           fields[18],
	}
	r.AddedAt = truncateAddedAt(r.AddedAt)
	r.TagNames = strings.TrimRight(r.TagNames, " \t\n\r\v\f")
	return r, nil
}

// Fields returns the record back in schema order.
func (r Record) Fields() []string {
	return []string{
		r.ID, r.Title, r.TagNames, r.AuthorID, r.Body, r.NodeType, r.ParentID,
		r.AbsParentID, r.AddedAt, r.Score, r.StateString, r.LastEditedID,
		r.LastActivityByID, r.LastActivityAt, r.ActiveRevisionID, r.Extra,
		r.ExtraRefID, r.ExtraCount, r.Marked,
	}
}

// NumericID parses the record id. Index entries carry integer ids, so a
// non-integer id makes the record malformed.
func (r Record) NumericID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.ID), 10, 64)
	if err != nil {
		return 0, apperrors.NewMalformedRecord(NumFields, NumFields, "id "+strconv.Quote(r.ID)+" is not an integer")
	}
	return id, nil
}

func truncateAddedAt(s string) string {
	if len(s) <= addedAtSuffix {
		return ""
	}
	return s[:len(s)-addedAtSuffix]
}
