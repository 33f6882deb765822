package store

import (
	"context"

	"clinic-scheduler/internal/model"
)

// AvailableRooms lists, in ListRooms order, the rooms that are switched on
// and not held by a live appointment at date and tm. The appointment with
// id excludeID is ignored, so a reschedule does not conflict with itself.
//
// Both rooms and appointments are scanned in full.
func (s *Store) AvailableRooms(ctx context.Context, date, tm, excludeID string) ([]model.Room, error) {
	if !ValidDate(date) {
		return nil, invalid("appointmentDate", "isodate")
	}
	if !ValidTime(tm) {
		return nil, invalid("appointmentTime", "isotime")
	}
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	busy, err := s.occupiedRooms(ctx, date, tm, excludeID)
	if err != nil {
		return nil, err
	}
	out := []model.Room{}
	for _, r := range rooms {
		if r.IsAvailable && !busy[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) occupiedRooms(ctx context.Context, date, tm, excludeID string) (map[string]bool, error) {
	as, err := s.scanAppointments(ctx)
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool)
	for _, a := range as {
		if a.AppointmentDate == date && a.AppointmentTime == tm && a.Occupies() && a.ID != excludeID {
			busy[a.RoomID] = true
		}
	}
	return busy, nil
}
