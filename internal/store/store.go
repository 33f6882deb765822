// Package store holds the clinic repositories: users, rooms, appointments
// and sessions, each kept as a primary record plus index entries in a kv.Store.
//
// Every multi-key change goes through one kv commit guarded by the version of
// the record it was computed from, so a failed or concurrent write never
// leaves the indices disagreeing with the primary record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clinic-scheduler/internal/kv"
)

var (
	// ErrConflict means a commit precondition failed: a concurrent edit of
	// the same record, a duplicate unique key or an already booked slot.
	// Retry with fresh data.
	ErrConflict = errors.New("conflict")

	// ErrSlotTaken is the booking flavour of ErrConflict: a live appointment
	// already holds the room at that date and time.
	ErrSlotTaken = fmt.Errorf("%w: room slot already booked", ErrConflict)
)

type Store struct {
	db  kv.Store
	now func() time.Time
	log *slog.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New takes ownership of nothing: the caller opens and closes db.
func New(db kv.Store, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// commit maps a failed check to ErrConflict, keeping the kv cause.
func (s *Store) commit(ctx context.Context, op *kv.Atomic, what string) error {
	err := s.db.Commit(ctx, op)
	if errors.Is(err, kv.ErrCheckFailed) {
		return fmt.Errorf("%s: %w: %w", what, ErrConflict, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// getJSON loads and decodes key. A nil record means absent. A key that
// cannot be encoded names nothing that could have been stored, so it reads as
// absent too.
func getJSON[T any](ctx context.Context, db kv.Store, key kv.Key) (*T, string, error) {
	e, err := db.Get(ctx, key)
	if errors.Is(err, kv.ErrInvalidKey) {
		return nil, "", nil
	}
	if err != nil || e == nil {
		return nil, "", err
	}
	v, err := decode[T](*e)
	if err != nil {
		return nil, "", err
	}
	return v, e.Version, nil
}

func decode[T any](e kv.Entry) (*T, error) {
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Key, err)
	}
	return &v, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// only plain data types are stored
		panic(fmt.Sprintf("store: encode %T: %v", v, err))
	}
	return b
}
