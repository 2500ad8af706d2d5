// Package records defines the synchronized entities (trades and strategies),
// their closed JSON schema and the wire messages exchanged by the sync
// client and server.
package records

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/shopspring/decimal"
)

func init() {
	// Money and quantities travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// ValidID reports whether id is a canonical RFC 4122 UUID (versions 1-5).
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Meta holds the sync bookkeeping shared by every record type.
type Meta struct {
	ID        string     `json:"id"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	// UpdatedAt is the last local modification time and decides conflicts.
	UpdatedAt time.Time `json:"updatedAt"`
	// ServerUpdatedAt is stamped by the server on merge. Values sent by
	// clients are overwritten.
	ServerUpdatedAt *time.Time `json:"serverUpdatedAt,omitempty"`
	DeviceID        string     `json:"deviceId,omitempty"`
	// IsDirty is client-local state and never trusted from the wire.
	IsDirty bool `json:"isDirty,omitempty"`
	Deleted bool `json:"deleted,omitempty"`
}

// Header returns the sync metadata of the record embedding m.
func (m *Meta) Header() *Meta { return m }

func (m *Meta) validate() error {
	if m.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: updatedAt is required", common.ErrInvalidRecord)
	}
	return nil
}

func (m Meta) clone() Meta {
	c := m
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		c.CreatedAt = &t
	}
	if m.ServerUpdatedAt != nil {
		t := *m.ServerUpdatedAt
		c.ServerUpdatedAt = &t
	}
	return c
}

// Record is a Trade or a Strategy.
type Record interface {
	Header() *Meta
	Collection() Collection
	// Validate checks the payload fields. Identifier format is checked by
	// the merge step, not here.
	Validate() error
	Clone() Record
}

// Collection names a record set. Trades and strategies are merged independently.
type Collection string

const (
	Trades     Collection = "trades"
	Strategies Collection = "strategies"
)

// AllCollections lists every collection in a stable order.
var AllCollections = []Collection{Trades, Strategies}

// New returns an empty record of the collection's type.
func (c Collection) New() (Record, error) {
	switch c {
	case Trades:
		return &Trade{}, nil
	case Strategies:
		return &Strategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCollection, c)
	}
}

// RecordType is the singular form used by outbox entries.
type RecordType string

const (
	TypeTrade    RecordType = "trade"
	TypeStrategy RecordType = "strategy"
)

// Collection maps the record type to its collection.
func (t RecordType) Collection() (Collection, error) {
	switch t {
	case TypeTrade:
		return Trades, nil
	case TypeStrategy:
		return Strategies, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownCollection, t)
	}
}

// Type is the inverse of RecordType.Collection.
func (c Collection) Type() RecordType {
	if c == Strategies {
		return TypeStrategy
	}
	return TypeTrade
}

// Action is the kind of a queued mutation.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates s as an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAdd, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownAction, s)
	}
}
