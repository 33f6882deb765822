package handler

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "clinic.v1.SchedulingService"

// FullMethod is the gRPC method path for name, as seen by interceptors.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// ServiceDesc describes the service for grpc.Server.RegisterService. It is
// written by hand since messages are plain structs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", (*Handler).Login),
		unary("Logout", (*Handler).Logout),

		unary("CreateUser", (*Handler).CreateUser),
		unary("UpdateUser", (*Handler).UpdateUser),
		unary("ChangeUserRole", (*Handler).ChangeUserRole),
		unary("DeleteUser", (*Handler).DeleteUser),
		unary("ListUsers", (*Handler).ListUsers),

		unary("CreateRoom", (*Handler).CreateRoom),
		unary("GetRoom", (*Handler).GetRoom),
		unary("UpdateRoom", (*Handler).UpdateRoom),
		unary("SetRoomAvailability", (*Handler).SetRoomAvailability),
		unary("DeleteRoom", (*Handler).DeleteRoom),
		unary("ListRooms", (*Handler).ListRooms),
		unary("AvailableRooms", (*Handler).AvailableRooms),

		unary("CreateAppointment", (*Handler).CreateAppointment),
		unary("GetAppointment", (*Handler).GetAppointment),
		unary("ListAppointments", (*Handler).ListAppointments),
		unary("UpdateAppointment", (*Handler).UpdateAppointment),
		unary("TransitionAppointment", (*Handler).TransitionAppointment),
		unary("DeleteAppointment", (*Handler).DeleteAppointment),
	},
	Streams: []grpc.StreamDesc{},
}

func Register(s grpc.ServiceRegistrar, h *Handler) {
	s.RegisterService(&ServiceDesc, h)
}

func unary[Req, Resp any](name string, call func(*Handler, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			h := srv.(*Handler)
			if interceptor == nil {
				return call(h, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(h, ctx, req.(*Req))
			})
		},
	}
}
