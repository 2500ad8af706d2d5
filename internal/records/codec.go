package records

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/common"
)

// Decode parses one record of collection c. Unknown fields, trailing data
// and payload validation failures are reported as common.ErrInvalidRecord.
func Decode(c Collection, raw []byte) (Record, error) {
	rec, err := Parse(c, raw)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Parse is Decode without validation, for drafts whose sync metadata is
// filled in by the caller.
func Parse(c Collection, raw []byte) (Record, error) {
	rec, err := c.New()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRecord, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", common.ErrInvalidRecord)
	}
	return rec, nil
}

// DecodeMeta reads only the sync metadata of a record payload. Delete
// mutations carry no more than that, so other fields are ignored.
func DecodeMeta(raw []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", common.ErrInvalidRecord, err)
	}
	if err := m.validate(); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Encode marshals records into raw messages, preserving order.
func Encode[R Record](recs []R) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.Collection(), r.Header().ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Split sorts records into per-collection typed slices.
func Split(recs []Record) Collections {
	var out Collections
	for _, r := range recs {
		switch v := r.(type) {
		case *Trade:
			out.Trades = append(out.Trades, v)
		case *Strategy:
			out.Strategies = append(out.Strategies, v)
		}
	}
	return out
}
