package store

import (
	"context"
	"fmt"

	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/model"
)

func (s *Store) CreateRoom(ctx context.Context, r *model.Room) error {
	if err := check(r); err != nil {
		return err
	}
	if r.Equipment == nil {
		r.Equipment = []string{}
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now

	op := kv.NewAtomic().
		Check(roomKey(r.ID), "").
		Set(roomKey(r.ID), mustJSON(r))
	return s.commit(ctx, op, "create room")
}

func (s *Store) Room(ctx context.Context, id string) (*model.Room, error) {
	r, _, err := getJSON[model.Room](ctx, s.db, roomKey(id))
	return r, err
}

// ListRooms returns every room ordered by id. This order is the one
// AvailableRooms reports in.
func (s *Store) ListRooms(ctx context.Context) ([]model.Room, error) {
	out := []model.Room{}
	for e, err := range s.db.Scan(ctx, kv.Key{roomsRoot}) {
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		r, err := decode[model.Room](e)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// UpdateRoom applies the non-nil fields of p. The id never changes.
func (s *Store) UpdateRoom(ctx context.Context, id string, p model.RoomPatch) (*model.Room, error) {
	if err := check(&p); err != nil {
		return nil, err
	}
	r, version, err := getJSON[model.Room](ctx, s.db, roomKey(id))
	if err != nil || r == nil {
		return nil, err
	}

	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.IsAvailable != nil {
		r.IsAvailable = *p.IsAvailable
	}
	if p.Equipment != nil {
		r.Equipment = append([]string{}, (*p.Equipment)...)
	}
	if p.Capacity != nil {
		c := *p.Capacity
		r.Capacity = &c
	}
	if p.RoomType != nil {
		r.RoomType = *p.RoomType
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	r.UpdatedAt = s.now()

	op := kv.NewAtomic().
		Check(roomKey(id), version).
		Set(roomKey(id), mustJSON(r))
	if err := s.commit(ctx, op, "update room"); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) SetRoomAvailability(ctx context.Context, id string, available bool) (*model.Room, error) {
	return s.UpdateRoom(ctx, id, model.RoomPatch{IsAvailable: &available})
}

// DeleteRoom refuses with ErrConflict while any live appointment holds a
// slot in the room. Reports false when the room does not exist.
func (s *Store) DeleteRoom(ctx context.Context, id string) (bool, error) {
	r, version, err := getJSON[model.Room](ctx, s.db, roomKey(id))
	if err != nil || r == nil {
		return false, err
	}
	for e, err := range s.db.Scan(ctx, kv.Key{slotsRoot, id}) {
		if err != nil {
			return false, fmt.Errorf("scan room slots: %w", err)
		}
		return false, fmt.Errorf("delete room %s: %w: slot %s is booked", id, ErrConflict, e.Key)
	}

	op := kv.NewAtomic().
		Check(roomKey(id), version).
		Delete(roomKey(id))
	if err := s.commit(ctx, op, "delete room"); err != nil {
		return false, err
	}
	return true, nil
}
