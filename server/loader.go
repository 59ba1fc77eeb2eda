package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/daemon"
	"github.com/frobware/go-bpfd/manager"
	pb "github.com/frobware/go-bpfd/server/pb"
)

// Load admits a program to an interface's chain.
func (s *Server) Load(ctx context.Context, req *pb.LoadRequest) (*pb.LoadResponse, error) {
	if req.GetIface() == "" {
		return nil, status.Error(codes.InvalidArgument, "iface is required")
	}
	if req.GetPath() == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}
	if req.GetSectionName() == "" {
		return nil, status.Error(codes.InvalidArgument, "section_name is required")
	}

	cmd := daemon.NewLoad(manager.AddSpec{
		Iface:       req.GetIface(),
		ObjectPath:  req.GetPath(),
		SectionName: req.GetSectionName(),
		Priority:    req.GetPriority(),
	})
	if err := s.daemon.Enqueue(ctx, cmd); err != nil {
		return nil, statusFromError(err)
	}

	select {
	case res := <-cmd.Resp:
		if res.Err != nil {
			return nil, statusFromError(res.Err)
		}
		return &pb.LoadResponse{
			Id:       string(res.Summary.ID),
			Position: int32(res.Summary.Position),
		}, nil
	case <-ctx.Done():
		return nil, statusFromError(ctx.Err())
	}
}

// Unload retires a program from an interface's chain.
func (s *Server) Unload(ctx context.Context, req *pb.UnloadRequest) (*pb.UnloadResponse, error) {
	if req.GetId() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	cmd := daemon.NewUnload(bpfd.ProgramID(req.GetId()), req.GetIface())
	if err := s.daemon.Enqueue(ctx, cmd); err != nil {
		return nil, statusFromError(err)
	}

	select {
	case err := <-cmd.Resp:
		if err != nil {
			return nil, statusFromError(err)
		}
		return &pb.UnloadResponse{}, nil
	case <-ctx.Done():
		return nil, statusFromError(ctx.Err())
	}
}

// List reports an interface's chain in dispatch order.
func (s *Server) List(ctx context.Context, req *pb.ListRequest) (*pb.ListResponse, error) {
	// An empty iface lists every interface.
	cmd := daemon.NewList(req.GetIface())
	if err := s.daemon.Enqueue(ctx, cmd); err != nil {
		return nil, statusFromError(err)
	}

	select {
	case res := <-cmd.Resp:
		if res.Err != nil {
			return nil, statusFromError(res.Err)
		}
		resp := &pb.ListResponse{}
		for _, p := range res.Programs {
			resp.Programs = append(resp.Programs, &pb.ListResponse_ProgramInfo{
				Id:          string(p.ID),
				SectionName: p.SectionName,
				Priority:    p.Priority,
				Position:    int32(p.Position),
				Iface:       p.Iface,
			})
		}
		return resp, nil
	case <-ctx.Done():
		return nil, statusFromError(ctx.Err())
	}
}

// GetMap sends one of a program's pinned maps to the unix socket named
// in the request.
func (s *Server) GetMap(ctx context.Context, req *pb.GetMapRequest) (*pb.GetMapResponse, error) {
	if req.GetId() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if req.GetMapName() == "" {
		return nil, status.Error(codes.InvalidArgument, "map_name is required")
	}
	if req.GetSocketPath() == "" {
		return nil, status.Error(codes.InvalidArgument, "socket_path is required")
	}

	cmd := daemon.NewGetMap(bpfd.ProgramID(req.GetId()), req.GetIface(), req.GetMapName(), req.GetSocketPath())
	if err := s.daemon.Enqueue(ctx, cmd); err != nil {
		return nil, statusFromError(err)
	}

	select {
	case err := <-cmd.Resp:
		if err != nil {
			return nil, statusFromError(err)
		}
		return &pb.GetMapResponse{}, nil
	case <-ctx.Done():
		return nil, statusFromError(ctx.Err())
	}
}
