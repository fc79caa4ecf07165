package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/utils"
)

const maxChangeTypeLength = 32

// RawEdit is a recentchange event as published by the upstream feed.
type RawEdit struct {
	ID            int64         `json:"id"`
	Type          string        `json:"type"`
	Namespace     int           `json:"namespace"`
	Title         string        `json:"title"`
	Comment       string        `json:"comment"`
	ParsedComment string        `json:"parsedcomment"`
	Timestamp     int64         `json:"timestamp"`
	User          string        `json:"user"`
	Bot           bool          `json:"bot"`
	Minor         bool          `json:"minor"`
	Patrolled     bool          `json:"patrolled"`
	Wiki          string        `json:"wiki"`
	ServerName    string        `json:"server_name"`
	Meta          RawMeta       `json:"meta"`
	Length        *RawRevisions `json:"length"`
	Revision      *RawRevisions `json:"revision"`
}

// RawMeta holds the event metadata.
type RawMeta struct {
	URI string `json:"uri"`
	ID  string `json:"id"`
}

// RawRevisions is an old/new pair. Old is absent on page creations.
type RawRevisions struct {
	Old int64 `json:"old"`
	New int64 `json:"new"`
}

// ParseRecord decodes one JSON record. Empty input, invalid JSON and
// events without a revision (log entries) are reported as ErrParse.
func ParseRecord(data []byte) (*RawEdit, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrParse)
	}

	var rec RawEdit
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if rec.ID == 0 {
		return nil, fmt.Errorf("%w: missing id", ErrParse)
	}
	if rec.Revision == nil {
		return nil, fmt.Errorf("%w: edit %d has no revision", ErrParse, rec.ID)
	}
	return &rec, nil
}

// Time returns the record timestamp in UTC.
func (r *RawEdit) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// ToEdit builds the edit stored for this record, truncating the short text
// fields to maxLen characters.
func (r *RawEdit) ToEdit(batchID uint, maxLen int) database.Edit {
	e := database.Edit{
		ID:            r.ID,
		Timestamp:     r.Time(),
		Title:         utils.TruncateRunes(r.Title, maxLen),
		Namespace:     r.Namespace,
		URI:           utils.TruncateRunes(r.Meta.URI, maxLen),
		Comment:       r.Comment,
		ParsedComment: r.ParsedComment,
		Bot:           r.Bot,
		Minor:         r.Minor,
		Patrolled:     r.Patrolled,
		ChangeType:    utils.TruncateRunes(r.Type, maxChangeTypeLength),
		User:          utils.TruncateRunes(r.User, maxLen),
		BatchID:       batchID,
	}
	if r.Revision != nil {
		e.OldRevID = r.Revision.Old
		e.NewRevID = r.Revision.New
	}
	if r.Length != nil {
		e.OldLength = int(r.Length.Old)
		e.NewLength = int(r.Length.New)
	}
	return e
}
