// Package handler exposes the clinic repositories as a gRPC service. Messages
// are plain Go structs carried by a JSON codec.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/store"
)

type Handler struct {
	store      *store.Store
	verify     auth.Verifier
	events     events.Publisher
	log        *slog.Logger
	sessionTTL time.Duration
	now        func() time.Time
}

type Option func(*Handler)

// WithVerifier replaces the bcrypt password check.
func WithVerifier(v auth.Verifier) Option {
	return func(h *Handler) { h.verify = v }
}

func WithPublisher(p events.Publisher) Option {
	return func(h *Handler) { h.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func WithSessionTTL(d time.Duration) Option {
	return func(h *Handler) { h.sessionTTL = d }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func New(st *store.Store, opts ...Option) *Handler {
	h := &Handler{
		store:      st,
		verify:     auth.CheckPassword,
		events:     events.Noop{},
		log:        slog.Default(),
		sessionTTL: 12 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func caller(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFrom(ctx)
	if !ok {
		return middleware.Principal{}, status.Error(codes.Unauthenticated, "not signed in")
	}
	return p, nil
}

func admin(ctx context.Context) (middleware.Principal, error) {
	p, err := caller(ctx)
	if err != nil {
		return p, err
	}
	if !p.IsAdmin() {
		return p, status.Error(codes.PermissionDenied, "superadmin only")
	}
	return p, nil
}

// fail maps repository errors to gRPC statuses. Unexpected errors are logged
// and hidden behind codes.Internal.
func (h *Handler) fail(ctx context.Context, op string, err error) error {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrSlotTaken):
		return status.Error(codes.AlreadyExists, "room already booked at that time")
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.Aborted, "record changed concurrently, retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	h.log.ErrorContext(ctx, op+" failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// publish never fails the request; delivery problems are only logged.
func (h *Handler) publish(ctx context.Context, e events.AppointmentEvent) {
	if err := h.events.Publish(ctx, e); err != nil {
		h.log.WarnContext(ctx, "event not published", "type", e.EventType, "appointment", e.AppointmentID, "error", err)
	}
}
