package handler

import (
	"time"

	"clinic-scheduler/internal/model"
)

type Empty struct{}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// User is the wire form of model.User, without the password hash.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Name      string     `json:"name,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func userView(u *model.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Name:      u.Name,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type CreateUserRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

type UpdateUserRequest struct {
	Email    string  `json:"email"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type ChangeRoleRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type UserRequest struct {
	Email string `json:"email"`
}

type ListUsersRequest struct {
	Role model.Role `json:"role"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type RoomRequest struct {
	ID string `json:"id"`
}

type UpdateRoomRequest struct {
	ID    string          `json:"id"`
	Patch model.RoomPatch `json:"patch"`
}

type SetAvailabilityRequest struct {
	ID          string `json:"id"`
	IsAvailable bool   `json:"isAvailable"`
}

type RoomsResponse struct {
	Rooms []model.Room `json:"rooms"`
}

type AvailableRoomsRequest struct {
	Date                 string `json:"appointmentDate"`
	Time                 string `json:"appointmentTime"`
	ExcludeAppointmentID string `json:"excludeAppointmentId,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientName       string `json:"patientName"`
	PsychologistEmail string `json:"psychologistEmail,omitempty"`
	RoomID            string `json:"roomId"`
	Date              string `json:"appointmentDate"`
	Time              string `json:"appointmentTime"`
	Notes             string `json:"notes,omitempty"`
}

type AppointmentRequest struct {
	ID string `json:"id"`
}

type ListAppointmentsRequest struct {
	PsychologistEmail string `json:"psychologistEmail,omitempty"`
}

type UpdateAppointmentRequest struct {
	ID    string                 `json:"id"`
	Patch model.AppointmentPatch `json:"patch"`
}

type TransitionRequest struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
	Notes  string       `json:"notes,omitempty"`
}

// Appointment adds the reconstructed timeline, creation entry included.
type Appointment struct {
	model.Appointment
	Timeline []model.StatusChange `json:"timeline"`
}

func appointmentView(a *model.Appointment) *Appointment {
	return &Appointment{Appointment: *a, Timeline: a.Timeline()}
}

type AppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
