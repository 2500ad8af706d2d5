// Package synclog records the outcome of sync cycles for the "log" command.
package synclog

import (
	"context"
	"time"
)

// Levels used by the sync engine.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// DefaultKeep is how many entries are retained.
const DefaultKeep = 100

type Entry struct {
	ID        int64
	CreatedAt time.Time
	Level     string
	Message   string
	Details   string
}

type Repository interface {
	// Append stores e and drops everything but the newest keep entries.
	Append(ctx context.Context, e Entry, keep int) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
}
