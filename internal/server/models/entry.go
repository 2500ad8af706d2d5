// Package models holds the row shapes of the server database.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Entry is one stored record version. Data holds the full record JSON; the
// remaining columns duplicate the fields queries filter or order on.
type Entry struct {
	UserID          string
	Collection      records.Collection
	ID              string
	UpdatedAt       time.Time
	ServerUpdatedAt time.Time
	DeviceID        string
	Deleted         bool
	Seq             int64
	Data            []byte
}

// NewEntry flattens rec into a row with sequence seq.
func NewEntry(userID string, rec records.Record, seq int64) (*Entry, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", rec.Header().ID, err)
	}
	h := rec.Header()
	e := &Entry{
		UserID:     userID,
		Collection: rec.Collection(),
		ID:         h.ID,
		UpdatedAt:  h.UpdatedAt,
		DeviceID:   h.DeviceID,
		Deleted:    h.Deleted,
		Seq:        seq,
		Data:       data,
	}
	if h.ServerUpdatedAt != nil {
		e.ServerUpdatedAt = *h.ServerUpdatedAt
	}
	return e, nil
}

// Record decodes the stored JSON back into a typed record. Stored rows
// were validated on the way in, so only the JSON shape is checked here.
func (e *Entry) Record() (records.Record, error) {
	rec, err := e.Collection.New()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(e.Data, rec); err != nil {
		return nil, fmt.Errorf("decode stored %s %s: %w", e.Collection, e.ID, err)
	}
	return rec, nil
}
