package middleware

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/model"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Email     string
	Role      model.Role
	SessionID string
}

func (p Principal) IsAdmin() bool { return p.Role == model.RoleSuperadmin }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Sessions resolves session tokens and their users.
type Sessions interface {
	Session(ctx context.Context, id string) (*model.Session, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Auth resolves "authorization: Bearer <session>" to a Principal. Methods in
// open skip the check.
func Auth(s Sessions, log *slog.Logger, open ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = strings.TrimPrefix(vals[0], "Bearer ")
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		sess, err := s.Session(ctx, raw)
		if err != nil {
			log.ErrorContext(ctx, "session lookup failed", "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
		if sess == nil {
			return nil, status.Error(codes.Unauthenticated, "session expired")
		}
		u, err := s.UserByEmail(ctx, sess.UserEmail)
		if err != nil {
			log.ErrorContext(ctx, "user lookup failed", "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
		if u == nil || !u.IsActive {
			return nil, status.Error(codes.Unauthenticated, "account disabled")
		}

		ctx = WithPrincipal(ctx, Principal{Email: u.Email, Role: u.Role, SessionID: raw})
		return next(ctx, req)
	}
}
