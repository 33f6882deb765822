package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/handler"
	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recorder struct {
	mu     sync.Mutex
	events []events.AppointmentEvent
}

func (r *recorder) Publish(_ context.Context, e events.AppointmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recorder) last() events.AppointmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// hookedKV runs a hook once, right after the next read of an appointment
// record, so another writer can slip in between a handler's reads.
type hookedKV struct {
	kv.Store
	mu        sync.Mutex
	afterRead func()
}

func (h *hookedKV) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	e, err := h.Store.Get(ctx, key)
	h.mu.Lock()
	var hook func()
	if len(key) == 2 && key[0] == "appointments" {
		hook, h.afterRead = h.afterRead, nil
	}
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return e, err
}

func (h *hookedKV) AfterAppointmentRead(fn func()) {
	h.mu.Lock()
	h.afterRead = fn
	h.mu.Unlock()
}

type testEnv struct {
	db   *hookedKV
	st   *store.Store
	h    *handler.Handler
	conn *grpc.ClientConn
	pub  *recorder
}

// plainVerify pairs with users seeded with "plain:<password>" hashes, so
// tests skip bcrypt.
func plainVerify(hash, pw string) bool { return hash == "plain:"+pw }

func setup(t *testing.T) *testEnv {
	t.Helper()
	db := &hookedKV{Store: kv.NewMemory()}
	st := store.New(db, store.WithLogger(quiet))
	pub := &recorder{}
	h := handler.New(st,
		handler.WithVerifier(plainVerify),
		handler.WithPublisher(pub),
		handler.WithLogger(quiet),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(handler.Codec{}),
		grpc.ChainUnaryInterceptor(middleware.Auth(st, quiet, handler.FullMethod("Login"))),
	)
	handler.Register(srv, h)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(handler.Codec{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testEnv{db: db, st: st, h: h, conn: conn, pub: pub}
}

func call[Resp any](ctx context.Context, e *testEnv, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := e.conn.Invoke(ctx, handler.FullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *testEnv) seedUser(t *testing.T, email string, role model.Role) {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "plain:secret-pw", Role: role, IsActive: true}
	require.NoError(t, e.st.CreateUser(context.Background(), u))
}

// login signs email in and returns a context carrying its session token.
func (e *testEnv) login(t *testing.T, email string) context.Context {
	t.Helper()
	resp, err := call[handler.LoginResponse](context.Background(), e, "Login", &handler.LoginRequest{Email: email, Password: "secret-pw"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+resp.Token)
}

func requireCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, status.Code(err), "%v", err)
}

// ----- auth -----

func TestLogin(t *testing.T) {
	e := setup(t)
	e.seedUser(t, "admin@clinic.test", model.RoleSuperadmin)
	e.seedUser(t, "off@clinic.test", model.RolePsychologist)
	off := false
	_, err := e.st.UpdateUser(context.Background(), "off@clinic.test", model.UserPatch{IsActive: &off})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  handler.LoginRequest
		code codes.Code
	}{
		{"missing password", handler.LoginRequest{Email: "admin@clinic.test"}, codes.InvalidArgument},
		{"wrong password", handler.LoginRequest{Email: "admin@clinic.test", Password: "nope"}, codes.Unauthenticated},
		{"unknown user", handler.LoginRequest{Email: "ghost@clinic.test", Password: "secret-pw"}, codes.Unauthenticated},
		{"inactive user", handler.LoginRequest{Email: "off@clinic.test", Password: "secret-pw"}, codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[handler.LoginResponse](context.Background(), e, "Login", &tt.req)
			requireCode(t, tt.code, err)
		})
	}

	resp, err := call[handler.LoginResponse](context.Background(), e, "Login", &handler.LoginRequest{Email: "ADMIN@clinic.test", Password: "secret-pw"})
	require.NoError(t, err)
	require.Len(t, resp.Token, 64)
	require.Equal(t, model.RoleSuperadmin, resp.User.Role)
	require.Equal(t, "admin@clinic.test", resp.User.Email)
}

func TestSessionRequiredAndLogout(t *testing.T) {
	e := setup(t)
	e.seedUser(t, "p@clinic.test", model.RolePsychologist)

	_, err := call[handler.RoomsResponse](context.Background(), e, "ListRooms", &handler.Empty{})
	requireCode(t, codes.Unauthenticated, err)

	bogus := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer forged")
	_, err = call[handler.RoomsResponse](bogus, e, "ListRooms", &handler.Empty{})
	requireCode(t, codes.Unauthenticated, err)

	ctx := e.login(t, "p@clinic.test")
	rooms, err := call[handler.RoomsResponse](ctx, e, "ListRooms", &handler.Empty{})
	require.NoError(t, err)
	require.Empty(t, rooms.Rooms)

	_, err = call[handler.Empty](ctx, e, "Logout", &handler.Empty{})
	require.NoError(t, err)
	_, err = call[handler.RoomsResponse](ctx, e, "ListRooms", &handler.Empty{})
	requireCode(t, codes.Unauthenticated, err)
}

// ----- users -----

func TestUserManagementIsAdminOnly(t *testing.T) {
	e := setup(t)
	e.seedUser(t, "admin@clinic.test", model.RoleSuperadmin)
	e.seedUser(t, "p@clinic.test", model.RolePsychologist)
	psych := e.login(t, "p@clinic.test")
	adm := e.login(t, "admin@clinic.test")

	req := &handler.CreateUserRequest{Email: "new@clinic.test", Password: "long-enough", Role: model.RolePsychologist}
	_, err := call[handler.User](psych, e, "CreateUser", req)
	requireCode(t, codes.PermissionDenied, err)
	_, err = call[handler.ListUsersResponse](psych, e, "ListUsers", &handler.ListUsersRequest{})
	requireCode(t, codes.PermissionDenied, err)

	created, err := call[handler.User](adm, e, "CreateUser", req)
	require.NoError(t, err)
	require.True(t, created.IsActive)
	_, err = call[handler.User](adm, e, "CreateUser", req)
	requireCode(t, codes.AlreadyExists, err)

	short := *req
	short.Email, short.Password = "short@clinic.test", "pw"
	_, err = call[handler.User](adm, e, "CreateUser", &short)
	requireCode(t, codes.InvalidArgument, err)

	list, err := call[handler.ListUsersResponse](adm, e, "ListUsers", &handler.ListUsersRequest{})
	require.NoError(t, err)
	require.Len(t, list.Users, 3)

	psychs, err := call[handler.ListUsersResponse](adm, e, "ListUsers", &handler.ListUsersRequest{Role: model.RolePsychologist})
	require.NoError(t, err)
	require.Len(t, psychs.Users, 2)

	// users may rename themselves but not deactivate
	name := "Dr P"
	u, err := call[handler.User](psych, e, "UpdateUser", &handler.UpdateUserRequest{Email: "p@clinic.test", Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Dr P", u.Name)
	off := false
	_, err = call[handler.User](psych, e, "UpdateUser", &handler.UpdateUserRequest{Email: "p@clinic.test", IsActive: &off})
	requireCode(t, codes.PermissionDenied, err)
	_, err = call[handler.User](psych, e, "UpdateUser", &handler.UpdateUserRequest{Email: "new@clinic.test", Name: &name})
	requireCode(t, codes.PermissionDenied, err)
}

func TestLastSuperadminIsProtected(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.seedUser(t, "admin@clinic.test", model.RoleSuperadmin)
	adm := e.login(t, "admin@clinic.test")

	n, err := e.st.CountUsersByRole(ctx, model.RoleSuperadmin)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = call[handler.User](adm, e, "ChangeUserRole", &handler.ChangeRoleRequest{Email: "admin@clinic.test", Role: model.RolePsychologist})
	requireCode(t, codes.FailedPrecondition, err)
	_, err = call[handler.DeleteResponse](adm, e, "DeleteUser", &handler.UserRequest{Email: "admin@clinic.test"})
	requireCode(t, codes.FailedPrecondition, err)
	off := false
	_, err = call[handler.User](adm, e, "UpdateUser", &handler.UpdateUserRequest{Email: "admin@clinic.test", IsActive: &off})
	requireCode(t, codes.FailedPrecondition, err)

	u, err := e.st.UserByEmail(ctx, "admin@clinic.test")
	require.NoError(t, err)
	require.Equal(t, model.RoleSuperadmin, u.Role)
	require.True(t, u.IsActive)

	// an inactive second admin does not count
	e.seedUser(t, "idle@clinic.test", model.RoleSuperadmin)
	_, err = e.st.UpdateUser(ctx, "idle@clinic.test", model.UserPatch{IsActive: &off})
	require.NoError(t, err)
	_, err = call[handler.User](adm, e, "ChangeUserRole", &handler.ChangeRoleRequest{Email: "admin@clinic.test", Role: model.RolePsychologist})
	requireCode(t, codes.FailedPrecondition, err)

	on := true
	_, err = e.st.UpdateUser(ctx, "idle@clinic.test", model.UserPatch{IsActive: &on})
	require.NoError(t, err)
	changed, err := call[handler.User](adm, e, "ChangeUserRole", &handler.ChangeRoleRequest{Email: "admin@clinic.test", Role: model.RolePsychologist})
	require.NoError(t, err)
	require.Equal(t, model.RolePsychologist, changed.Role)
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	e := setup(t)
	e.seedUser(t, "admin@clinic.test", model.RoleSuperadmin)
	e.seedUser(t, "p@clinic.test", model.RolePsychologist)
	adm := e.login(t, "admin@clinic.test")
	psych := e.login(t, "p@clinic.test")

	resp, err := call[handler.DeleteResponse](adm, e, "DeleteUser", &handler.UserRequest{Email: "p@clinic.test"})
	require.NoError(t, err)
	require.True(t, resp.Deleted)

	_, err = call[handler.RoomsResponse](psych, e, "ListRooms", &handler.Empty{})
	requireCode(t, codes.Unauthenticated, err)

	resp, err = call[handler.DeleteResponse](adm, e, "DeleteUser", &handler.UserRequest{Email: "p@clinic.test"})
	require.NoError(t, err)
	require.False(t, resp.Deleted)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	ok, err := e.h.SeedAdmin(ctx, "root@clinic.test", "bootstrap-pw", "Root")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.h.SeedAdmin(ctx, "other@clinic.test", "bootstrap-pw", "Other")
	require.NoError(t, err)
	require.False(t, ok)

	admins, err := e.st.ListUsersByRole(ctx, model.RoleSuperadmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, "root@clinic.test", admins[0].Email)
}

// ----- rooms and appointments -----

func bookingEnv(t *testing.T) (*testEnv, context.Context, context.Context) {
	t.Helper()
	e := setup(t)
	e.seedUser(t, "admin@clinic.test", model.RoleSuperadmin)
	e.seedUser(t, "p@clinic.test", model.RolePsychologist)
	e.seedUser(t, "q@clinic.test", model.RolePsychologist)
	adm := e.login(t, "admin@clinic.test")
	psych := e.login(t, "p@clinic.test")

	for _, id := range []string{"A", "B"} {
		_, err := call[model.Room](adm, e, "CreateRoom", &model.Room{ID: id, Name: "Room " + id, IsAvailable: true})
		require.NoError(t, err)
	}
	return e, adm, psych
}

func TestRoomManagement(t *testing.T) {
	e, adm, psych := bookingEnv(t)

	_, err := call[model.Room](psych, e, "CreateRoom", &model.Room{ID: "C", Name: "C"})
	requireCode(t, codes.PermissionDenied, err)
	_, err = call[model.Room](adm, e, "CreateRoom", &model.Room{ID: "A", Name: "again"})
	requireCode(t, codes.AlreadyExists, err)
	_, err = call[model.Room](adm, e, "CreateRoom", &model.Room{ID: "bad/id", Name: "x"})
	requireCode(t, codes.InvalidArgument, err)

	off, err := call[model.Room](adm, e, "SetRoomAvailability", &handler.SetAvailabilityRequest{ID: "B", IsAvailable: false})
	require.NoError(t, err)
	require.False(t, off.IsAvailable)

	capacity := 2
	r, err := call[model.Room](adm, e, "UpdateRoom", &handler.UpdateRoomRequest{ID: "A", Patch: model.RoomPatch{Capacity: &capacity}})
	require.NoError(t, err)
	require.Equal(t, 2, *r.Capacity)

	got, err := call[model.Room](psych, e, "GetRoom", &handler.RoomRequest{ID: "A"})
	require.NoError(t, err)
	require.Equal(t, "Room A", got.Name)
	_, err = call[model.Room](psych, e, "GetRoom", &handler.RoomRequest{ID: "Z"})
	requireCode(t, codes.NotFound, err)

	free, err := call[handler.RoomsResponse](psych, e, "AvailableRooms", &handler.AvailableRoomsRequest{Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)
	require.Len(t, free.Rooms, 1)
	require.Equal(t, "A", free.Rooms[0].ID)
}

func TestBookingFlow(t *testing.T) {
	e, adm, psych := bookingEnv(t)

	booking := &handler.CreateAppointmentRequest{PatientName: "Jane", RoomID: "A", Date: "2024-03-15", Time: "10:00"}
	a, err := call[handler.Appointment](psych, e, "CreateAppointment", booking)
	require.NoError(t, err)
	require.Equal(t, "p@clinic.test", a.PsychologistEmail)
	require.Equal(t, model.StatusPending, a.Status)
	require.Len(t, a.Timeline, 1)

	// the slot is gone for everyone else
	free, err := call[handler.RoomsResponse](adm, e, "AvailableRooms", &handler.AvailableRoomsRequest{Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)
	require.Len(t, free.Rooms, 1)
	require.Equal(t, "B", free.Rooms[0].ID)

	free, err = call[handler.RoomsResponse](adm, e, "AvailableRooms", &handler.AvailableRoomsRequest{Date: "2024-03-15", Time: "10:00", ExcludeAppointmentID: a.ID})
	require.NoError(t, err)
	require.Len(t, free.Rooms, 2)

	other := &handler.CreateAppointmentRequest{PatientName: "John", PsychologistEmail: "q@clinic.test", RoomID: "A", Date: "2024-03-15", Time: "10:00"}
	_, err = call[handler.Appointment](adm, e, "CreateAppointment", other)
	requireCode(t, codes.AlreadyExists, err)
	_, err = call[handler.Appointment](psych, e, "CreateAppointment", other)
	requireCode(t, codes.PermissionDenied, err)

	bad := *booking
	bad.Date = "2024-13-01"
	_, err = call[handler.Appointment](psych, e, "CreateAppointment", &bad)
	requireCode(t, codes.InvalidArgument, err)

	_, err = call[handler.Appointment](psych, e, "TransitionAppointment", &handler.TransitionRequest{ID: a.ID, Status: model.StatusCompleted})
	requireCode(t, codes.FailedPrecondition, err)

	for _, s := range []model.Status{model.StatusScheduled, model.StatusInProgress, model.StatusCompleted} {
		a, err = call[handler.Appointment](psych, e, "TransitionAppointment", &handler.TransitionRequest{ID: a.ID, Status: s, Notes: "ok"})
		require.NoError(t, err)
		require.Equal(t, s, a.Status)
	}
	require.Len(t, a.StatusHistory, 3)
	require.Len(t, a.Timeline, 4)

	_, err = call[handler.Appointment](psych, e, "TransitionAppointment", &handler.TransitionRequest{ID: a.ID, Status: model.StatusCancelled})
	requireCode(t, codes.FailedPrecondition, err)

	require.Equal(t, []string{
		events.AppointmentCreated,
		events.AppointmentStatusChanged,
		events.AppointmentStatusChanged,
		events.AppointmentStatusChanged,
	}, e.pub.types())
}

func TestAppointmentsAreScopedToTheirPsychologist(t *testing.T) {
	e, adm, psych := bookingEnv(t)
	mine, err := call[handler.Appointment](psych, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "Jane", RoomID: "A", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)
	theirs, err := call[handler.Appointment](adm, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "John", PsychologistEmail: "q@clinic.test", RoomID: "B", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)

	list, err := call[handler.AppointmentsResponse](psych, e, "ListAppointments", &handler.ListAppointmentsRequest{PsychologistEmail: "q@clinic.test"})
	require.NoError(t, err)
	require.Len(t, list.Appointments, 1)
	require.Equal(t, mine.ID, list.Appointments[0].ID)

	all, err := call[handler.AppointmentsResponse](adm, e, "ListAppointments", &handler.ListAppointmentsRequest{})
	require.NoError(t, err)
	require.Len(t, all.Appointments, 2)

	_, err = call[handler.Appointment](psych, e, "GetAppointment", &handler.AppointmentRequest{ID: theirs.ID})
	requireCode(t, codes.NotFound, err)
	_, err = call[handler.DeleteResponse](psych, e, "DeleteAppointment", &handler.AppointmentRequest{ID: theirs.ID})
	requireCode(t, codes.NotFound, err)

	q := "q@clinic.test"
	_, err = call[handler.Appointment](psych, e, "UpdateAppointment",
		&handler.UpdateAppointmentRequest{ID: mine.ID, Patch: model.AppointmentPatch{PsychologistEmail: &q}})
	requireCode(t, codes.PermissionDenied, err)

	moved, err := call[handler.Appointment](adm, e, "UpdateAppointment",
		&handler.UpdateAppointmentRequest{ID: mine.ID, Patch: model.AppointmentPatch{PsychologistEmail: &q}})
	require.NoError(t, err)
	require.Equal(t, "q@clinic.test", moved.PsychologistEmail)

	list, err = call[handler.AppointmentsResponse](psych, e, "ListAppointments", &handler.ListAppointmentsRequest{})
	require.NoError(t, err)
	require.Empty(t, list.Appointments)

	del, err := call[handler.DeleteResponse](adm, e, "DeleteAppointment", &handler.AppointmentRequest{ID: theirs.ID})
	require.NoError(t, err)
	require.True(t, del.Deleted)
	require.Contains(t, e.pub.types(), events.AppointmentDeleted)
}

func TestRescheduleIntoTakenSlot(t *testing.T) {
	e, adm, psych := bookingEnv(t)
	a, err := call[handler.Appointment](psych, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "Jane", RoomID: "A", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)
	_, err = call[handler.Appointment](adm, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "John", PsychologistEmail: "q@clinic.test", RoomID: "B", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)

	room := "B"
	_, err = call[handler.Appointment](psych, e, "UpdateAppointment",
		&handler.UpdateAppointmentRequest{ID: a.ID, Patch: model.AppointmentPatch{RoomID: &room}})
	requireCode(t, codes.AlreadyExists, err)

	_, err = call[handler.DeleteResponse](adm, e, "DeleteRoom", &handler.RoomRequest{ID: "B"})
	requireCode(t, codes.FailedPrecondition, err)
}

func TestStatusEventCarriesCommittedPreviousStatus(t *testing.T) {
	e, _, psych := bookingEnv(t)
	a, err := call[handler.Appointment](psych, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "Jane", RoomID: "A", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)

	// another client schedules it after the ownership check read it as pending
	var raced error
	e.db.AfterAppointmentRead(func() {
		_, raced = e.st.TransitionAppointment(context.Background(), a.ID, model.StatusScheduled, "")
	})
	got, err := call[handler.Appointment](psych, e, "TransitionAppointment",
		&handler.TransitionRequest{ID: a.ID, Status: model.StatusCancelled})
	require.NoError(t, err)
	require.NoError(t, raced)
	require.Equal(t, model.StatusCancelled, got.Status)

	last := e.pub.last()
	require.Equal(t, events.AppointmentStatusChanged, last.EventType)
	require.Equal(t, model.StatusScheduled, last.PreviousStatus)
}

func TestForgedAppointmentIDIsNotFound(t *testing.T) {
	e, _, psych := bookingEnv(t)
	a, err := call[handler.Appointment](psych, e, "CreateAppointment",
		&handler.CreateAppointmentRequest{PatientName: "Jane", RoomID: "A", Date: "2024-03-15", Time: "10:00"})
	require.NoError(t, err)

	// names the psychologist index entry once the parts are joined
	forged := "by_psychologist\x00p@clinic.test\x00" + a.ID
	_, err = call[handler.Appointment](psych, e, "GetAppointment", &handler.AppointmentRequest{ID: forged})
	requireCode(t, codes.NotFound, err)
	_, err = call[handler.Appointment](psych, e, "TransitionAppointment",
		&handler.TransitionRequest{ID: forged, Status: model.StatusScheduled})
	requireCode(t, codes.NotFound, err)
	_, err = call[handler.DeleteResponse](psych, e, "DeleteAppointment", &handler.AppointmentRequest{ID: forged})
	requireCode(t, codes.NotFound, err)

	got, err := call[handler.Appointment](psych, e, "GetAppointment", &handler.AppointmentRequest{ID: a.ID})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)
	list, err := call[handler.AppointmentsResponse](psych, e, "ListAppointments", &handler.ListAppointmentsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Appointments, 1)
}
