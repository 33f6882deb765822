// Package events publishes appointment changes for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"clinic-scheduler/internal/model"
)

const (
	AppointmentCreated       = "appointment.created"
	AppointmentUpdated       = "appointment.updated"
	AppointmentStatusChanged = "appointment.status_changed"
	AppointmentDeleted       = "appointment.deleted"
)

type AppointmentEvent struct {
	EventType         string       `json:"event_type"`
	AppointmentID     string       `json:"appointment_id"`
	PsychologistEmail string       `json:"psychologist_email"`
	RoomID            string       `json:"room_id"`
	Date              string       `json:"appointment_date"`
	Time              string       `json:"appointment_time"`
	Status            model.Status `json:"status"`
	PreviousStatus    model.Status `json:"previous_status,omitempty"`
	Actor             string       `json:"actor,omitempty"`
	OccurredAt        time.Time    `json:"occurred_at"`
}

// NewAppointmentEvent snapshots a. Callers fill PreviousStatus and Actor.
func NewAppointmentEvent(eventType string, a *model.Appointment, at time.Time) AppointmentEvent {
	return AppointmentEvent{
		EventType:         eventType,
		AppointmentID:     a.ID,
		PsychologistEmail: a.PsychologistEmail,
		RoomID:            a.RoomID,
		Date:              a.AppointmentDate,
		Time:              a.AppointmentTime,
		Status:            a.Status,
		OccurredAt:        at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e AppointmentEvent) error
	Close()
}

// NatsPublisher sends each event as JSON on a subject equal to its type.
type NatsPublisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNatsPublisher(url string, log *slog.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("clinic-scheduler"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &NatsPublisher{conn: nc, log: log}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, e AppointmentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(e.EventType, b); err != nil {
		return fmt.Errorf("publish %s: %w", e.EventType, err)
	}
	p.log.Debug("event published", "subject", e.EventType, "appointment", e.AppointmentID)
	return nil
}

// Close flushes pending messages before disconnecting.
func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Noop drops every event. Used when NATS_URL is unset.
type Noop struct{}

func (Noop) Publish(context.Context, AppointmentEvent) error { return nil }
func (Noop) Close()                                          {}
