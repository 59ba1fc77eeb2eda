// Package server implements the bpfd gRPC server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/frobware/go-bpfd/config"
	driver "github.com/frobware/go-bpfd/csi"
	"github.com/frobware/go-bpfd/daemon"
	"github.com/frobware/go-bpfd/interpreter/ebpf"
	"github.com/frobware/go-bpfd/interpreter/store/sqlite"
	"github.com/frobware/go-bpfd/manager"
	pb "github.com/frobware/go-bpfd/server/pb"
)

const (
	// DefaultCSIDriverName is the default CSI driver name.
	DefaultCSIDriverName = "csi.bpfd.io"
	// DefaultCSIVersion is the default CSI driver version.
	DefaultCSIVersion = "0.1.0"

	// socketMode lets group members talk to the daemon without
	// being root.
	socketMode = 0o660
)

// RunConfig configures the server daemon.
type RunConfig struct {
	Dirs   config.RuntimeDirs
	Config config.Config
	Logger *slog.Logger
}

// Run starts the bpfd daemon with the given configuration.
// This is the main entry point for the serve command.
// The context is used for cancellation - when cancelled, the server shuts down gracefully.
func Run(ctx context.Context, cfg RunConfig) error {
	dirs := cfg.Dirs

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if err := dirs.EnsureDirectories(); err != nil {
		return fmt.Errorf("runtime directory setup failed: %w", err)
	}

	template, err := os.ReadFile(cfg.Config.Dispatcher.BytecodePath)
	if err != nil {
		return fmt.Errorf("read dispatcher bytecode: %w", err)
	}

	st, err := sqlite.New(ctx, dirs.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", dirs.DBPath(), err)
	}
	defer st.Close()

	kernel := ebpf.New(ebpf.WithLogger(logger))
	mgr := manager.New(dirs, template, st, kernel, logger)

	// Reconcile persisted state before accepting requests.
	if err := mgr.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	d := daemon.New(mgr, logger)
	actorDone := make(chan struct{})
	go func() {
		defer close(actorDone)
		d.Run(ctx)
	}()
	defer func() { <-actorDone }()

	// Start CSI driver if enabled
	var csiDriver *driver.Driver
	if cfg.Config.CSI.Enabled {
		if err := dirs.EnsureCSIDirectories(); err != nil {
			return fmt.Errorf("CSI directory setup failed: %w", err)
		}

		nodeID, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname for node ID: %w", err)
		}

		csiSocketPath := dirs.CSISocketPath()
		csiDriver = driver.New(
			DefaultCSIDriverName,
			DefaultCSIVersion,
			nodeID,
			"unix://"+csiSocketPath,
			dirs,
			logger,
			driver.WithPathResolver(mgr),
			driver.WithKernel(kernel),
		)

		go func() {
			logger.Info("starting CSI driver",
				"socket", csiSocketPath,
				"driver", DefaultCSIDriverName,
			)
			if err := csiDriver.Run(); err != nil {
				logger.Error("CSI driver failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info("context cancelled, shutting down")
		if csiDriver != nil {
			csiDriver.Stop()
		}
	}()

	srv := New(d, logger)
	return srv.serve(ctx, dirs.SocketPath(), cfg.Config.GRPC.Address)
}

// Server implements the bpfd Loader gRPC service. Every request
// becomes a command on the daemon's queue; the gRPC layer only
// translates between the wire and the actor.
type Server struct {
	pb.UnimplementedLoaderServer

	daemon    *daemon.Daemon
	logger    *slog.Logger
	opCounter atomic.Uint64
}

// New creates a server around a running daemon.
func New(d *daemon.Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		daemon: d,
		logger: logger.With("component", "server"),
	}
}

// serve starts the gRPC server on the given unix socket path and,
// when tcpAddr is non-empty, on TCP as well.
func (s *Server) serve(ctx context.Context, socketPath, tcpAddr string) error {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove a socket left behind by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	defer unixListener.Close()

	if err := os.Chmod(socketPath, socketMode); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(s.loggingInterceptor()),
	)
	pb.RegisterLoaderServer(grpcServer, s)

	errChan := make(chan error, 2)

	go func() {
		s.logger.InfoContext(ctx, "bpfd gRPC server listening", "socket", socketPath)
		if err := grpcServer.Serve(unixListener); err != nil {
			errChan <- fmt.Errorf("unix socket server: %w", err)
		}
	}()

	if tcpAddr != "" {
		tcpListener, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			grpcServer.GracefulStop()
			return fmt.Errorf("failed to listen on TCP %s: %w", tcpAddr, err)
		}

		go func() {
			s.logger.InfoContext(ctx, "bpfd gRPC server listening", "tcp", tcpAddr)
			if err := grpcServer.Serve(tcpListener); err != nil {
				errChan <- fmt.Errorf("tcp server: %w", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		s.logger.InfoContext(ctx, "shutting down gRPC server")
		grpcServer.GracefulStop()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// loggingInterceptor returns a gRPC unary interceptor that assigns a
// monotonic operation ID to each request and logs errors.
func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		opID := s.opCounter.Add(1)
		resp, err := handler(ctx, req)
		if err != nil {
			s.logger.ErrorContext(ctx, "grpc error", "op_id", opID, "method", info.FullMethod, "error", err)
		}
		return resp, err
	}
}
