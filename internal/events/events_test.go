package events_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/model"
)

func appointment() *model.Appointment {
	return &model.Appointment{
		ID:                "0b6f1f0e-8a5c-4a53-9d7e-3f1c2f4b5a6d",
		PsychologistEmail: "p@clinic.test",
		RoomID:            "A",
		AppointmentDate:   "2024-03-15",
		AppointmentTime:   "10:00",
		Status:            model.StatusScheduled,
	}
}

func TestEventEncoding(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := events.NewAppointmentEvent(events.AppointmentStatusChanged, appointment(), at)
	e.PreviousStatus = model.StatusPending

	b, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"event_type": "appointment.status_changed",
		"appointment_id": "0b6f1f0e-8a5c-4a53-9d7e-3f1c2f4b5a6d",
		"psychologist_email": "p@clinic.test",
		"room_id": "A",
		"appointment_date": "2024-03-15",
		"appointment_time": "10:00",
		"status": "scheduled",
		"previous_status": "pending",
		"occurred_at": "2024-03-01T12:00:00Z"
	}`, string(b))
}

func TestNoop(t *testing.T) {
	var p events.Publisher = events.Noop{}
	require.NoError(t, p.Publish(context.Background(), events.AppointmentEvent{}))
	p.Close()
}

func TestNatsPublisher(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	sub, err := nc.SubscribeSync(events.AppointmentCreated)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	p, err := events.NewNatsPublisher(url, nil)
	require.NoError(t, err)
	defer p.Close()

	e := events.NewAppointmentEvent(events.AppointmentCreated, appointment(), time.Now().UTC())
	require.NoError(t, p.Publish(context.Background(), e))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got events.AppointmentEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.Equal(t, e.AppointmentID, got.AppointmentID)
}
