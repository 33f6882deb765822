package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/model"
)

func (h *Handler) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	u, err := h.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, h.fail(ctx, "login", err)
	}
	// same answer for unknown, disabled and wrong password
	if u == nil || !u.IsActive || !h.verify(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	tok, err := auth.NewSessionToken()
	if err != nil {
		return nil, h.fail(ctx, "login", err)
	}
	sess, err := h.store.CreateSession(ctx, tok, u.Email, h.sessionTTL)
	if err != nil {
		return nil, h.fail(ctx, "login", err)
	}
	h.log.InfoContext(ctx, "user signed in", "email", u.Email)
	return &LoginResponse{Token: tok, ExpiresAt: sess.ExpiresAt, User: userView(u)}, nil
}

func (h *Handler) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteSession(ctx, p.SessionID); err != nil {
		return nil, h.fail(ctx, "logout", err)
	}
	return &Empty{}, nil
}

// SeedAdmin creates a superadmin when none exists yet. It reports whether a
// user was created.
func (h *Handler) SeedAdmin(ctx context.Context, email, password, name string) (bool, error) {
	n, err := h.store.CountUsersByRole(ctx, model.RoleSuperadmin)
	if err != nil || n > 0 {
		return false, err
	}
	if _, err := h.createUser(ctx, &CreateUserRequest{Email: email, Password: password, Name: name, Role: model.RoleSuperadmin}); err != nil {
		return false, err
	}
	h.log.InfoContext(ctx, "seeded superadmin", "email", email)
	return true, nil
}
