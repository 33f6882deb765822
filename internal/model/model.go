package model

import "time"

type Role string

const (
	RoleSuperadmin   Role = "superadmin"
	RolePsychologist Role = "psychologist"
)

func (r Role) Valid() bool {
	return r == RoleSuperadmin || r == RolePsychologist
}

type User struct {
	ID           string    `json:"id" validate:"omitempty,uuid"`
	Email        string    `json:"email" validate:"required,email,max=254"`
	PasswordHash string    `json:"passwordHash" validate:"required"`
	Role         Role      `json:"role" validate:"required,oneof=superadmin psychologist"`
	Name         string    `json:"name,omitempty" validate:"max=120"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserPatch holds the profile fields UpdateUser may change. Nil fields are
// left untouched. Role is changed through ChangeUserRole only.
type UserPatch struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=120"`
	PasswordHash *string `json:"passwordHash,omitempty" validate:"omitempty,min=1"`
	IsActive     *bool   `json:"isActive,omitempty"`
}

type RoomType string

const (
	RoomIndividual RoomType = "individual"
	RoomCouple     RoomType = "couple"
	RoomFamily     RoomType = "family"
	RoomGroup      RoomType = "group"
)

type Room struct {
	ID          string    `json:"id" validate:"required,max=32,printascii,excludes=/"`
	Name        string    `json:"name" validate:"required,max=120"`
	IsAvailable bool      `json:"isAvailable"`
	Equipment   []string  `json:"equipment"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1"`
	RoomType    RoomType  `json:"roomType,omitempty" validate:"omitempty,oneof=individual couple family group"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type RoomPatch struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	IsAvailable *bool     `json:"isAvailable,omitempty"`
	Equipment   *[]string `json:"equipment,omitempty"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1"`
	RoomType    *RoomType `json:"roomType,omitempty" validate:"omitempty,oneof=individual couple family group"`
	Description *string   `json:"description,omitempty"`
}

type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
	Notes     string    `json:"notes,omitempty"`
}

type Appointment struct {
	ID                string         `json:"id" validate:"omitempty,uuid"`
	PatientName       string         `json:"patientName" validate:"required,max=120"`
	PsychologistEmail string         `json:"psychologistEmail" validate:"required,email"`
	RoomID            string         `json:"roomId" validate:"required,max=32,printascii"`
	AppointmentDate   string         `json:"appointmentDate" validate:"required,isodate"`
	AppointmentTime   string         `json:"appointmentTime" validate:"required,isotime"`
	Status            Status         `json:"status"`
	Notes             string         `json:"notes,omitempty"`
	StatusHistory     []StatusChange `json:"statusHistory"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Timeline returns the status history with the creation entry first. Stored
// history omits it, so it is synthesized from CreatedAt.
func (a *Appointment) Timeline() []StatusChange {
	out := make([]StatusChange, 0, len(a.StatusHistory)+1)
	if len(a.StatusHistory) == 0 || a.StatusHistory[0].Status != StatusPending || !a.StatusHistory[0].ChangedAt.Equal(a.CreatedAt) {
		out = append(out, StatusChange{Status: StatusPending, ChangedAt: a.CreatedAt})
	}
	return append(out, a.StatusHistory...)
}

// PreviousStatus is the status held before the latest change, or pending when
// the appointment never changed.
func (a *Appointment) PreviousStatus() Status {
	tl := a.Timeline()
	if len(tl) < 2 {
		return StatusPending
	}
	return tl[len(tl)-2].Status
}

// Occupies reports whether the appointment holds its room slot.
func (a *Appointment) Occupies() bool { return a.Status != StatusCancelled }

type AppointmentPatch struct {
	PatientName       *string `json:"patientName,omitempty" validate:"omitempty,min=1,max=120"`
	PsychologistEmail *string `json:"psychologistEmail,omitempty" validate:"omitempty,email"`
	RoomID            *string `json:"roomId,omitempty" validate:"omitempty,max=32,printascii"`
	AppointmentDate   *string `json:"appointmentDate,omitempty" validate:"omitempty,isodate"`
	AppointmentTime   *string `json:"appointmentTime,omitempty" validate:"omitempty,isotime"`
	Notes             *string `json:"notes,omitempty"`
}

type Session struct {
	ID        string    `json:"-"`
	UserEmail string    `json:"userEmail"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired uses a strict comparison: a session is still valid at ExpiresAt.
func (s *Session) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }
