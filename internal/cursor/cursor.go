// Package cursor encodes the opaque sync tokens handed to clients.
//
// A token records, per collection, the highest server sequence the holder
// has seen, plus the time it was issued. Clients never look inside; the
// server only compares sequences.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Token is the decoded form of a sync token.
type Token struct {
	Trades     int64     `json:"t"`
	Strategies int64     `json:"s"`
	IssuedAt   time.Time `json:"at"`
}

// Seq returns the sequence stored for collection c.
func (t Token) Seq(c records.Collection) int64 {
	if c == records.Strategies {
		return t.Strategies
	}
	return t.Trades
}

// With returns a copy of t with the sequence of c replaced.
func (t Token) With(c records.Collection, seq int64) Token {
	if c == records.Strategies {
		t.Strategies = seq
	} else {
		t.Trades = seq
	}
	return t
}

// Encode renders t as an unpadded base64url string.
func (t Token) Encode() string {
	b, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token produced by Encode. The empty string decodes to the
// zero token (full pull).
func Decode(s string) (Token, error) {
	if s == "" {
		return Token{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", common.ErrInvalidCursor, err)
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, fmt.Errorf("%w: %v", common.ErrInvalidCursor, err)
	}
	if t.Trades < 0 || t.Strategies < 0 {
		return Token{}, fmt.Errorf("%w: negative sequence", common.ErrInvalidCursor)
	}
	return t, nil
}
