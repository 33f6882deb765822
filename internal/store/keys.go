package store

import (
	"github.com/google/uuid"

	"clinic-scheduler/internal/kv"
)

// Key layout. Index kinds:
//
//	users/<id>                                  primary
//	users/by_email/<email>                      pointer -> id
//	users/by_role/<role>/<email>                pointer -> email
//	rooms/<id>                                  primary
//	appointments/<id>                           primary
//	appointments/by_psychologist/<email>/<id>   denormalized copy, written with the primary
//	room_slots/<room>/<date>/<time>             reservation -> appointment id
//	sessions/<sha256(token)>                    primary
const (
	usersRoot        = "users"
	roomsRoot        = "rooms"
	appointmentsRoot = "appointments"
	slotsRoot        = "room_slots"
	sessionsRoot     = "sessions"

	byEmail        = "by_email"
	byRole         = "by_role"
	byPsychologist = "by_psychologist"
)

func userKey(id string) kv.Key          { return kv.Key{usersRoot, id} }
func userEmailKey(email string) kv.Key  { return kv.Key{usersRoot, byEmail, email} }
func userRolePrefix(role string) kv.Key { return kv.Key{usersRoot, byRole, role} }
func userRoleKey(role, email string) kv.Key {
	return kv.Key{usersRoot, byRole, role, email}
}

func roomKey(id string) kv.Key { return kv.Key{roomsRoot, id} }

func appointmentKey(id string) kv.Key { return kv.Key{appointmentsRoot, id} }
func psychologistPrefix(email string) kv.Key {
	return kv.Key{appointmentsRoot, byPsychologist, email}
}
func psychologistKey(email, id string) kv.Key {
	return kv.Key{appointmentsRoot, byPsychologist, email, id}
}

func slotKey(room, date, tm string) kv.Key { return kv.Key{slotsRoot, room, date, tm} }

func sessionKey(hash string) kv.Key { return kv.Key{sessionsRoot, hash} }

// validID reports whether id has the shape of a generated record id. Other
// strings cannot name a user or appointment and are never used in a key.
func validID(id string) bool { return uuid.Validate(id) == nil && len(id) == 36 }

// isPrimary tells primary records apart from index entries sharing a root.
func isPrimary(k kv.Key, root string) bool {
	return len(k) == 2 && k[0] == root
}
