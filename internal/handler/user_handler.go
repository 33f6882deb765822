package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/store"
)

// bcrypt ignores input past 72 bytes
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

var errLastAdmin = status.Error(codes.FailedPrecondition, "cannot remove the last active superadmin")

func hashPassword(pw string) (string, error) {
	if len(pw) < minPasswordLen {
		return "", &store.ValidationError{Field: "password", Reason: "min=8"}
	}
	if len(pw) > maxPasswordLen {
		return "", &store.ValidationError{Field: "password", Reason: "max=72"}
	}
	return auth.HashPassword(pw)
}

func (h *Handler) createUser(ctx context.Context, req *CreateUserRequest) (*model.User, error) {
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Email: req.Email, PasswordHash: hash, Role: req.Role, Name: req.Name, IsActive: true}
	if err := h.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (h *Handler) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	u, err := h.createUser(ctx, req)
	if errors.Is(err, store.ErrConflict) {
		return nil, status.Error(codes.AlreadyExists, "user already exists")
	}
	if err != nil {
		return nil, h.fail(ctx, "create user", err)
	}
	v := userView(u)
	return &v, nil
}

// UpdateUser lets admins edit anyone and users edit their own name and
// password. Only admins may toggle the active flag.
func (h *Handler) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*User, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	self := store.NormalizeEmail(req.Email) == p.Email
	if !p.IsAdmin() && (!self || req.IsActive != nil) {
		return nil, status.Error(codes.PermissionDenied, "cannot edit this user")
	}

	patch := model.UserPatch{Name: req.Name, IsActive: req.IsActive}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, h.fail(ctx, "update user", err)
		}
		patch.PasswordHash = &hash
	}

	deactivate := req.IsActive != nil && !*req.IsActive
	if deactivate {
		target, err := h.store.UserByEmail(ctx, req.Email)
		if err != nil {
			return nil, h.fail(ctx, "update user", err)
		}
		if target == nil {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		if err := h.keepAnAdmin(ctx, target); err != nil {
			return nil, err
		}
	}

	u, err := h.store.UpdateUser(ctx, req.Email, patch)
	if err != nil {
		return nil, h.fail(ctx, "update user", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if deactivate {
		h.revokeSessions(ctx, u.Email)
	}
	v := userView(u)
	return &v, nil
}

func (h *Handler) ChangeUserRole(ctx context.Context, req *ChangeRoleRequest) (*User, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, status.Error(codes.InvalidArgument, "unknown role")
	}
	target, err := h.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, h.fail(ctx, "change role", err)
	}
	if target == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if req.Role != model.RoleSuperadmin {
		if err := h.keepAnAdmin(ctx, target); err != nil {
			return nil, err
		}
	}

	u, err := h.store.ChangeUserRole(ctx, req.Email, req.Role)
	if err != nil {
		return nil, h.fail(ctx, "change role", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	v := userView(u)
	return &v, nil
}

func (h *Handler) DeleteUser(ctx context.Context, req *UserRequest) (*DeleteResponse, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	target, err := h.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, h.fail(ctx, "delete user", err)
	}
	if target == nil {
		return &DeleteResponse{}, nil
	}
	if err := h.keepAnAdmin(ctx, target); err != nil {
		return nil, err
	}

	ok, err := h.store.DeleteUser(ctx, req.Email)
	if err != nil {
		return nil, h.fail(ctx, "delete user", err)
	}
	h.revokeSessions(ctx, target.Email)
	return &DeleteResponse{Deleted: ok}, nil
}

// ListUsers lists one role, or every user when the role is empty.
func (h *Handler) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	roles := []model.Role{req.Role}
	if req.Role == "" {
		roles = []model.Role{model.RoleSuperadmin, model.RolePsychologist}
	}

	out := &ListUsersResponse{Users: []User{}}
	for _, r := range roles {
		us, err := h.store.ListUsersByRole(ctx, r)
		if err != nil {
			return nil, h.fail(ctx, "list users", err)
		}
		for i := range us {
			out.Users = append(out.Users, userView(&us[i]))
		}
	}
	return out, nil
}

// keepAnAdmin refuses to demote, disable or delete target when it is the
// last active superadmin. The role count is checked first; only when other
// superadmins exist are they loaded to see if any is active.
func (h *Handler) keepAnAdmin(ctx context.Context, target *model.User) error {
	if target.Role != model.RoleSuperadmin || !target.IsActive {
		return nil
	}
	n, err := h.store.CountUsersByRole(ctx, model.RoleSuperadmin)
	if err != nil {
		return h.fail(ctx, "count admins", err)
	}
	if n <= 1 {
		return errLastAdmin
	}
	admins, err := h.store.ListUsersByRole(ctx, model.RoleSuperadmin)
	if err != nil {
		return h.fail(ctx, "list admins", err)
	}
	for _, a := range admins {
		if a.IsActive && a.ID != target.ID {
			return nil
		}
	}
	return errLastAdmin
}

func (h *Handler) revokeSessions(ctx context.Context, email string) {
	n, err := h.store.DeleteUserSessions(ctx, email)
	if err != nil {
		h.log.WarnContext(ctx, "sessions not revoked", "email", email, "error", err)
		return
	}
	if n > 0 {
		h.log.InfoContext(ctx, "sessions revoked", "email", email, "count", n)
	}
}
