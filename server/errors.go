package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/daemon"
)

// statusFromError maps domain errors to gRPC status codes. Verifier
// output carried by a load failure survives into the status message so
// callers can see why their program was rejected.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}

	var (
		invalidIface bpfd.InvalidInterfaceError
		notFound     bpfd.NotFoundError
		mapNotFound  bpfd.MapNotFoundError
		capacity     bpfd.CapacityError
		load         bpfd.LoadError
		mount        bpfd.MountError
	)

	switch {
	case errors.As(err, &invalidIface):
		return status.Error(codes.InvalidArgument, invalidIface.Error())
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.As(err, &mapNotFound):
		return status.Error(codes.NotFound, mapNotFound.Error())
	case errors.As(err, &capacity):
		return status.Error(codes.ResourceExhausted, capacity.Error())
	case errors.As(err, &load):
		return status.Error(codes.Internal, load.Error())
	case errors.As(err, &mount):
		return status.Error(codes.Internal, mount.Error())
	case errors.Is(err, daemon.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
