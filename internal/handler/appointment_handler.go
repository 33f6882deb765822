package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/store"
)

// not found rather than permission denied, to hide existence
var errAppointmentNotFound = status.Error(codes.NotFound, "appointment not found")

func canSee(p middleware.Principal, a *model.Appointment) bool {
	return p.IsAdmin() || a.PsychologistEmail == p.Email
}

// loadOwned fetches id and checks the caller may act on it.
func (h *Handler) loadOwned(ctx context.Context, id string) (middleware.Principal, *model.Appointment, error) {
	p, err := caller(ctx)
	if err != nil {
		return p, nil, err
	}
	if id == "" {
		return p, nil, status.Error(codes.InvalidArgument, "id required")
	}
	a, err := h.store.Appointment(ctx, id)
	if err != nil {
		return p, nil, h.fail(ctx, "get appointment", err)
	}
	if a == nil || !canSee(p, a) {
		return p, nil, errAppointmentNotFound
	}
	return p, a, nil
}

// CreateAppointment books a slot. Psychologists book for themselves; admins
// must name the psychologist.
func (h *Handler) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	psych := store.NormalizeEmail(req.PsychologistEmail)
	if !p.IsAdmin() {
		if psych != "" && psych != p.Email {
			return nil, status.Error(codes.PermissionDenied, "psychologists book only for themselves")
		}
		psych = p.Email
	}

	a := &model.Appointment{
		PatientName:       req.PatientName,
		PsychologistEmail: psych,
		RoomID:            req.RoomID,
		AppointmentDate:   req.Date,
		AppointmentTime:   req.Time,
		Notes:             req.Notes,
	}
	if err := h.store.CreateAppointment(ctx, a); err != nil {
		return nil, h.fail(ctx, "create appointment", err)
	}

	e := events.NewAppointmentEvent(events.AppointmentCreated, a, a.CreatedAt)
	e.Actor = p.Email
	h.publish(ctx, e)
	return appointmentView(a), nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *AppointmentRequest) (*Appointment, error) {
	_, a, err := h.loadOwned(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return appointmentView(a), nil
}

// ListAppointments returns the caller's own appointments, or for admins all
// of them, optionally narrowed to one psychologist.
func (h *Handler) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*AppointmentsResponse, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	var as []model.Appointment
	switch {
	case !p.IsAdmin():
		as, err = h.store.ListAppointmentsByPsychologist(ctx, p.Email)
	case req.PsychologistEmail != "":
		as, err = h.store.ListAppointmentsByPsychologist(ctx, req.PsychologistEmail)
	default:
		as, err = h.store.ListAppointments(ctx)
	}
	if err != nil {
		return nil, h.fail(ctx, "list appointments", err)
	}

	out := &AppointmentsResponse{Appointments: make([]Appointment, 0, len(as))}
	for i := range as {
		out.Appointments = append(out.Appointments, *appointmentView(&as[i]))
	}
	return out, nil
}

func (h *Handler) UpdateAppointment(ctx context.Context, req *UpdateAppointmentRequest) (*Appointment, error) {
	p, _, err := h.loadOwned(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if e := req.Patch.PsychologistEmail; e != nil && !p.IsAdmin() && store.NormalizeEmail(*e) != p.Email {
		return nil, status.Error(codes.PermissionDenied, "only admins reassign appointments")
	}

	a, err := h.store.UpdateAppointment(ctx, req.ID, req.Patch)
	if err != nil {
		return nil, h.fail(ctx, "update appointment", err)
	}
	if a == nil {
		return nil, errAppointmentNotFound
	}

	e := events.NewAppointmentEvent(events.AppointmentUpdated, a, a.UpdatedAt)
	e.Actor = p.Email
	h.publish(ctx, e)
	return appointmentView(a), nil
}

func (h *Handler) TransitionAppointment(ctx context.Context, req *TransitionRequest) (*Appointment, error) {
	p, _, err := h.loadOwned(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	a, err := h.store.TransitionAppointment(ctx, req.ID, req.Status, req.Notes)
	if err != nil {
		return nil, h.fail(ctx, "transition appointment", err)
	}
	if a == nil {
		return nil, errAppointmentNotFound
	}

	e := events.NewAppointmentEvent(events.AppointmentStatusChanged, a, a.UpdatedAt)
	e.PreviousStatus = a.PreviousStatus()
	e.Actor = p.Email
	h.publish(ctx, e)
	return appointmentView(a), nil
}

func (h *Handler) DeleteAppointment(ctx context.Context, req *AppointmentRequest) (*DeleteResponse, error) {
	p, a, err := h.loadOwned(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	ok, err := h.store.DeleteAppointment(ctx, req.ID)
	if err != nil {
		return nil, h.fail(ctx, "delete appointment", err)
	}
	if ok {
		e := events.NewAppointmentEvent(events.AppointmentDeleted, a, h.now())
		e.Actor = p.Email
		h.publish(ctx, e)
	}
	return &DeleteResponse{Deleted: ok}, nil
}
