package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/model"
)

// CreateAppointment books a new pending appointment. The primary record, the
// psychologist index copy and the room slot reservation are written together;
// the reservation is guarded by an absent check so two concurrent bookings of
// one slot cannot both commit.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	a.PsychologistEmail = NormalizeEmail(a.PsychologistEmail)
	if err := check(a); err != nil {
		return err
	}
	room, err := s.checkRoom(ctx, a.RoomID)
	if err != nil {
		return err
	}
	if err := s.checkPsychologist(ctx, a.PsychologistEmail); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := s.now()
	a.Status = model.StatusPending
	a.StatusHistory = []model.StatusChange{}
	a.CreatedAt, a.UpdatedAt = now, now

	if err := s.ensureFree(ctx, a, ""); err != nil {
		return err
	}

	op := kv.NewAtomic().
		Check(appointmentKey(a.ID), "").
		Check(slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime), "").
		Set(appointmentKey(a.ID), mustJSON(a)).
		Set(psychologistKey(a.PsychologistEmail, a.ID), mustJSON(a)).
		Set(slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime), mustJSON(a.ID))
	room.hold(op)
	if err := s.commit(ctx, op, "create appointment"); err != nil {
		return err
	}
	s.log.Info("appointment booked", "id", a.ID, "room", a.RoomID, "date", a.AppointmentDate, "time", a.AppointmentTime)
	return nil
}

func (s *Store) Appointment(ctx context.Context, id string) (*model.Appointment, error) {
	if !validID(id) {
		return nil, nil
	}
	a, _, err := getJSON[model.Appointment](ctx, s.db, appointmentKey(id))
	return a, err
}

// ListAppointments returns primary records only, ordered by date, time and id.
func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	out, err := s.scanAppointments(ctx)
	if err != nil {
		return nil, err
	}
	sortAppointments(out)
	return out, nil
}

// ListAppointmentsByPsychologist reads the denormalized index, so no primary
// lookups are needed.
func (s *Store) ListAppointmentsByPsychologist(ctx context.Context, email string) ([]model.Appointment, error) {
	out := []model.Appointment{}
	for e, err := range s.db.Scan(ctx, psychologistPrefix(NormalizeEmail(email))) {
		if errors.Is(err, kv.ErrInvalidKey) {
			// no user can have that email
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan psychologist index: %w", err)
		}
		a, err := decode[model.Appointment](e)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sortAppointments(out)
	return out, nil
}

// UpdateAppointment applies the non-nil fields of p in one commit guarded by
// the version it read. A psychologist change moves the index entry; a room,
// date or time change moves the slot reservation.
func (s *Store) UpdateAppointment(ctx context.Context, id string, p model.AppointmentPatch) (*model.Appointment, error) {
	if p.PsychologistEmail != nil {
		e := NormalizeEmail(*p.PsychologistEmail)
		p.PsychologistEmail = &e
	}
	if err := check(&p); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, nil
	}
	a, version, err := getJSON[model.Appointment](ctx, s.db, appointmentKey(id))
	if err != nil || a == nil {
		return nil, err
	}
	old := *a

	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.PsychologistEmail != nil {
		a.PsychologistEmail = *p.PsychologistEmail
	}
	if p.RoomID != nil {
		a.RoomID = *p.RoomID
	}
	if p.AppointmentDate != nil {
		a.AppointmentDate = *p.AppointmentDate
	}
	if p.AppointmentTime != nil {
		a.AppointmentTime = *p.AppointmentTime
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}

	if a.PsychologistEmail != old.PsychologistEmail {
		if err := s.checkPsychologist(ctx, a.PsychologistEmail); err != nil {
			return nil, err
		}
	}
	moved := a.RoomID != old.RoomID || a.AppointmentDate != old.AppointmentDate || a.AppointmentTime != old.AppointmentTime
	claim := moved && a.Occupies()
	var room *roomHold
	if claim || (moved && a.RoomID != old.RoomID) {
		if room, err = s.checkRoom(ctx, a.RoomID); err != nil {
			return nil, err
		}
	}
	if claim {
		if err := s.ensureFree(ctx, a, a.ID); err != nil {
			return nil, err
		}
	}
	a.UpdatedAt = s.now()

	op := kv.NewAtomic().
		Check(appointmentKey(id), version).
		Set(appointmentKey(id), mustJSON(a))
	if a.PsychologistEmail != old.PsychologistEmail {
		op.Delete(psychologistKey(old.PsychologistEmail, id))
	}
	op.Set(psychologistKey(a.PsychologistEmail, id), mustJSON(a))
	if claim {
		op.Delete(slotKey(old.RoomID, old.AppointmentDate, old.AppointmentTime)).
			Check(slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime), "").
			Set(slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime), mustJSON(a.ID))
		room.hold(op)
	}
	if err := s.commit(ctx, op, "update appointment"); err != nil {
		return nil, err
	}
	return a, nil
}

// TransitionAppointment moves the appointment to status `to` and appends one
// history entry. Illegal moves fail with a *model.TransitionError and write
// nothing. Cancelling releases the slot; re-scheduling a cancelled
// appointment claims it again.
func (s *Store) TransitionAppointment(ctx context.Context, id string, to model.Status, notes string) (*model.Appointment, error) {
	if !validID(id) {
		return nil, nil
	}
	a, version, err := getJSON[model.Appointment](ctx, s.db, appointmentKey(id))
	if err != nil || a == nil {
		return nil, err
	}
	from := a.Status
	if err := model.CheckTransition(from, to); err != nil {
		return nil, err
	}

	slot := slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime)
	rebook := from == model.StatusCancelled && to == model.StatusScheduled
	var room *roomHold
	if rebook {
		if room, err = s.checkRoom(ctx, a.RoomID); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, a, a.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	a.Status = to
	a.StatusHistory = append(a.StatusHistory, model.StatusChange{Status: to, ChangedAt: now, Notes: notes})
	a.UpdatedAt = now

	op := kv.NewAtomic().
		Check(appointmentKey(id), version).
		Set(appointmentKey(id), mustJSON(a)).
		Set(psychologistKey(a.PsychologistEmail, id), mustJSON(a))
	switch {
	case to == model.StatusCancelled:
		op.Delete(slot)
	case rebook:
		op.Check(slot, "").Set(slot, mustJSON(a.ID))
		room.hold(op)
	}
	if err := s.commit(ctx, op, "transition appointment"); err != nil {
		return nil, err
	}
	s.log.Info("appointment status changed", "id", id, "from", from, "to", to)
	return a, nil
}

// DeleteAppointment removes the primary record, its index copy and any slot
// it holds. Reports false when the appointment does not exist.
func (s *Store) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	a, version, err := getJSON[model.Appointment](ctx, s.db, appointmentKey(id))
	if err != nil || a == nil {
		return false, err
	}
	op := kv.NewAtomic().
		Check(appointmentKey(id), version).
		Delete(appointmentKey(id)).
		Delete(psychologistKey(a.PsychologistEmail, id))
	if a.Occupies() {
		op.Delete(slotKey(a.RoomID, a.AppointmentDate, a.AppointmentTime))
	}
	if err := s.commit(ctx, op, "delete appointment"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) scanAppointments(ctx context.Context) ([]model.Appointment, error) {
	out := []model.Appointment{}
	for e, err := range s.db.Scan(ctx, kv.Key{appointmentsRoot}) {
		if err != nil {
			return nil, fmt.Errorf("scan appointments: %w", err)
		}
		if !isPrimary(e.Key, appointmentsRoot) {
			continue
		}
		a, err := decode[model.Appointment](e)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func sortAppointments(as []model.Appointment) {
	slices.SortFunc(as, func(a, b model.Appointment) int {
		return cmp.Or(
			cmp.Compare(a.AppointmentDate, b.AppointmentDate),
			cmp.Compare(a.AppointmentTime, b.AppointmentTime),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// ensureFree runs the conflict checker for a's slot before a commit claims
// the reservation key.
func (s *Store) ensureFree(ctx context.Context, a *model.Appointment, excludeID string) error {
	busy, err := s.occupiedRooms(ctx, a.AppointmentDate, a.AppointmentTime, excludeID)
	if err != nil {
		return err
	}
	if busy[a.RoomID] {
		return fmt.Errorf("room %s at %s %s: %w", a.RoomID, a.AppointmentDate, a.AppointmentTime, ErrSlotTaken)
	}
	return nil
}

// roomHold is a bookable room together with the version it was read at.
type roomHold struct {
	room    *model.Room
	version string
}

// hold adds the room to a commit that claims one of its slots. The record is
// rewritten unchanged under the version read, so the booking fails if the
// room was deleted or switched off meanwhile, and a DeleteRoom that scanned
// the slots before the booking fails on the new version.
func (h *roomHold) hold(op *kv.Atomic) {
	op.Check(roomKey(h.room.ID), h.version).Set(roomKey(h.room.ID), mustJSON(h.room))
}

func (s *Store) checkRoom(ctx context.Context, id string) (*roomHold, error) {
	r, version, err := getJSON[model.Room](ctx, s.db, roomKey(id))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, invalid("roomId", "room does not exist")
	}
	if !r.IsAvailable {
		return nil, invalid("roomId", "room is not available")
	}
	return &roomHold{room: r, version: version}, nil
}

func (s *Store) checkPsychologist(ctx context.Context, email string) error {
	u, err := s.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil || u.Role != model.RolePsychologist {
		return invalid("psychologistEmail", "no psychologist with that email")
	}
	return nil
}
