// Package services contains the application services of the tradesync
// client. RecordService applies local edits and queues them for the sync
// engine; AuthService manages the stored bearer token and the device id.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/client/repositories"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/google/uuid"
)

// Storage is the local database as seen by the services.
type Storage interface {
	Repos() *repositories.Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, r *repositories.Repositories) error) error
}

// RecordService performs local mutations. Every mutation updates the local
// copy and appends an outbox entry in the same transaction.
type RecordService struct {
	db       Storage
	deviceID string
	nudge    func()
	logger   logging.Logger
	now      func() time.Time
}

// NewRecordService returns a RecordService. nudge, if not nil, is called
// after each committed mutation.
func NewRecordService(db Storage, deviceID string, nudge func(), logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RecordService{
		db:       db,
		deviceID: deviceID,
		nudge:    nudge,
		logger:   logger.With("module", "records"),
		now:      time.Now,
	}
}

// Enqueue applies one mutation locally and queues it for the server. It
// returns the outbox entry id.
//
// For add the payload is a record draft; a missing id is generated. For
// update the payload replaces the stored record. For delete only the id of
// the payload is read. updatedAt, deviceId and the dirty flag are always set
// here, whatever the payload says.
//
// Failures of the local database are wrapped with common.ErrStorage.
func (s *RecordService) Enqueue(ctx context.Context, action records.Action, rt records.RecordType, payload []byte) (string, error) {
	c, err := rt.Collection()
	if err != nil {
		return "", err
	}
	if _, err := records.ParseAction(string(action)); err != nil {
		return "", err
	}

	now := s.now().UTC()
	entry := &outbox.Entry{
		Mutation: records.Mutation{
			EntryID:        uuid.NewString(),
			IdempotencyKey: uuid.NewString(),
			Action:         action,
			RecordType:     rt,
			EnqueuedAt:     now,
		},
	}

	var draft records.Record
	if action == records.ActionDelete {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &ref); err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrInvalidRecord, err)
		}
		entry.RecordID = ref.ID
	} else {
		if draft, err = records.Parse(c, payload); err != nil {
			return "", err
		}
		h := draft.Header()
		if h.ID == "" && action == records.ActionAdd {
			h.ID = uuid.NewString()
		}
		entry.RecordID = h.ID
	}
	if !records.ValidID(entry.RecordID) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidID, entry.RecordID)
	}

	err = s.db.InTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		existing, err := r.Entries.Get(ctx, c, entry.RecordID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storageErr(err)
		}
		if existing != nil && existing.Header().Deleted {
			existing = nil
		}

		var rec records.Record
		switch action {
		case records.ActionDelete:
			if existing == nil {
				return fmt.Errorf("%s %s: %w", rt, entry.RecordID, common.ErrorNotFound)
			}
			rec = existing.Clone()
			rec.Header().Deleted = true
		case records.ActionUpdate:
			if existing == nil {
				return fmt.Errorf("%s %s: %w", rt, entry.RecordID, common.ErrorNotFound)
			}
			rec = draft
			prev := existing.Header()
			rec.Header().CreatedAt = prev.CreatedAt
			rec.Header().ServerUpdatedAt = prev.ServerUpdatedAt
		default:
			rec = draft
			if rec.Header().CreatedAt == nil {
				rec.Header().CreatedAt = &now
			}
		}

		h := rec.Header()
		h.UpdatedAt = now
		h.DeviceID = s.deviceID
		h.IsDirty = false
		if action != records.ActionDelete {
			h.Deleted = false
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		if entry.Payload, err = json.Marshal(rec); err != nil {
			return fmt.Errorf("encode %s %s: %w", rt, h.ID, err)
		}
		if err := r.Entries.Upsert(ctx, rec, true); err != nil {
			return storageErr(err)
		}
		if _, err := r.Outbox.Append(ctx, entry); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return "", classify(err)
	}

	s.logger.Debug(ctx, "mutation queued", "action", action, "type", rt, "id", entry.RecordID, "seq", entry.Seq)
	if s.nudge != nil {
		s.nudge()
	}
	return entry.EntryID, nil
}

// Get returns one live record.
func (s *RecordService) Get(ctx context.Context, rt records.RecordType, id string) (records.Record, error) {
	c, err := rt.Collection()
	if err != nil {
		return nil, err
	}
	rec, err := s.db.Repos().Entries.Get(ctx, c, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if rec.Header().Deleted {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

// List returns the live records of one type, newest first.
func (s *RecordService) List(ctx context.Context, rt records.RecordType) ([]records.Record, error) {
	c, err := rt.Collection()
	if err != nil {
		return nil, err
	}
	recs, err := s.db.Repos().Entries.List(ctx, c)
	if err != nil {
		return nil, storageErr(err)
	}
	return recs, nil
}

// Pending returns the number of queued mutations.
func (s *RecordService) Pending(ctx context.Context) (int, error) {
	n, err := s.db.Repos().Outbox.Count(ctx)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// classify leaves validation and lookup errors alone and reports anything
// else from the transaction as a storage failure.
func classify(err error) error {
	switch {
	case errors.Is(err, common.ErrStorage),
		errors.Is(err, common.ErrInvalidRecord),
		errors.Is(err, common.ErrorNotFound):
		return err
	default:
		return storageErr(err)
	}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}
