package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/store"
)

var errRoomNotFound = status.Error(codes.NotFound, "room not found")

func (h *Handler) CreateRoom(ctx context.Context, req *model.Room) (*model.Room, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	if err := h.store.CreateRoom(ctx, req); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, status.Error(codes.AlreadyExists, "room already exists")
		}
		return nil, h.fail(ctx, "create room", err)
	}
	return req, nil
}

func (h *Handler) GetRoom(ctx context.Context, req *RoomRequest) (*model.Room, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	r, err := h.store.Room(ctx, req.ID)
	if err != nil {
		return nil, h.fail(ctx, "get room", err)
	}
	if r == nil {
		return nil, errRoomNotFound
	}
	return r, nil
}

func (h *Handler) UpdateRoom(ctx context.Context, req *UpdateRoomRequest) (*model.Room, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	r, err := h.store.UpdateRoom(ctx, req.ID, req.Patch)
	if err != nil {
		return nil, h.fail(ctx, "update room", err)
	}
	if r == nil {
		return nil, errRoomNotFound
	}
	return r, nil
}

func (h *Handler) SetRoomAvailability(ctx context.Context, req *SetAvailabilityRequest) (*model.Room, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	r, err := h.store.SetRoomAvailability(ctx, req.ID, req.IsAvailable)
	if err != nil {
		return nil, h.fail(ctx, "set availability", err)
	}
	if r == nil {
		return nil, errRoomNotFound
	}
	return r, nil
}

func (h *Handler) DeleteRoom(ctx context.Context, req *RoomRequest) (*DeleteResponse, error) {
	if _, err := admin(ctx); err != nil {
		return nil, err
	}
	ok, err := h.store.DeleteRoom(ctx, req.ID)
	if errors.Is(err, store.ErrConflict) {
		return nil, status.Error(codes.FailedPrecondition, "room has live appointments")
	}
	if err != nil {
		return nil, h.fail(ctx, "delete room", err)
	}
	return &DeleteResponse{Deleted: ok}, nil
}

func (h *Handler) ListRooms(ctx context.Context, _ *Empty) (*RoomsResponse, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return nil, h.fail(ctx, "list rooms", err)
	}
	return &RoomsResponse{Rooms: rooms}, nil
}

func (h *Handler) AvailableRooms(ctx context.Context, req *AvailableRoomsRequest) (*RoomsResponse, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	rooms, err := h.store.AvailableRooms(ctx, req.Date, req.Time, req.ExcludeAppointmentID)
	if err != nil {
		return nil, h.fail(ctx, "available rooms", err)
	}
	return &RoomsResponse{Rooms: rooms}, nil
}
