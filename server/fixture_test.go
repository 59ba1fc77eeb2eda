package server_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/config"
	"github.com/frobware/go-bpfd/daemon"
	"github.com/frobware/go-bpfd/interpreter"
	"github.com/frobware/go-bpfd/interpreter/store/sqlite"
	"github.com/frobware/go-bpfd/manager"
	"github.com/frobware/go-bpfd/server"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set BPFD_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("BPFD_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeKernel implements interpreter.KernelOperations without syscalls.
type fakeKernel struct {
	nextID atomic.Uint32

	mu       sync.Mutex
	attached map[string]string

	// failBuildOnSection injects a build failure when the chain
	// contains the section.
	failBuildOnSection map[string]error
}

func newFakeKernel() *fakeKernel {
	fk := &fakeKernel{
		attached:           make(map[string]string),
		failBuildOnSection: make(map[string]error),
	}
	fk.nextID.Store(100)
	return fk
}

func (f *fakeKernel) BuildDispatcher(ctx context.Context, spec interpreter.DispatcherSpec) (interpreter.BuiltDispatcher, error) {
	mapPins := make(map[bpfd.ProgramID][]string)
	for _, e := range spec.Chain {
		if err, ok := f.failBuildOnSection[e.SectionName]; ok {
			return interpreter.BuiltDispatcher{}, err
		}
		mapPins[e.ID] = []string{"stats"}
	}
	return interpreter.BuiltDispatcher{
		KernelID:    f.nextID.Add(1),
		ProgPinPath: spec.RevisionDir + "/dispatcher",
		MapPins:     mapPins,
	}, nil
}

func (f *fakeKernel) AttachDispatcher(ctx context.Context, ifindex int, progPinPath, linkPinPath string) (uint32, error) {
	f.mu.Lock()
	f.attached[linkPinPath] = progPinPath
	f.mu.Unlock()
	return f.nextID.Add(1), nil
}

func (f *fakeKernel) ReplaceDispatcher(ctx context.Context, linkPinPath, progPinPath string) error {
	f.mu.Lock()
	f.attached[linkPinPath] = progPinPath
	f.mu.Unlock()
	return nil
}

func (f *fakeKernel) DetachDispatcher(ctx context.Context, linkPinPath string) error {
	f.mu.Lock()
	delete(f.attached, linkPinPath)
	f.mu.Unlock()
	return nil
}

func (f *fakeKernel) RemovePin(ctx context.Context, path string) error     { return nil }
func (f *fakeKernel) RemovePinTree(ctx context.Context, path string) error { return nil }
func (f *fakeKernel) RepinMap(ctx context.Context, src, dst string) error  { return nil }

type nopMounter struct{}

func (nopMounter) EnsureMounted(string) error { return nil }
func (nopMounter) Unmount(string) error       { return nil }

// testFixture provides access to all components for verification.
type testFixture struct {
	Server *server.Server
	Kernel *fakeKernel
	Store  interpreter.Store
	Dirs   config.RuntimeDirs

	sent struct {
		sync.Mutex
		pins  []string
		socks []string
	}
}

// newTestFixture creates a complete test fixture with a running actor.
func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	st, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { st.Close() })

	dirs, err := config.NewRuntimeDirs(t.TempDir())
	require.NoError(t, err)

	resolver := manager.NetIfaceResolverFunc(func(name string) (int, error) {
		switch name {
		case "lo":
			return 1, nil
		case "eth0":
			return 2, nil
		}
		return 0, bpfd.InvalidInterfaceError{Name: name}
	})

	fx := &testFixture{
		Kernel: newFakeKernel(),
		Store:  st,
		Dirs:   dirs,
	}

	mgr := manager.New(dirs, []byte("template"), st, fx.Kernel, testLogger(),
		manager.WithResolver(resolver),
		manager.WithMounter(nopMounter{}))

	d := daemon.New(mgr, testLogger(), daemon.WithMapSender(func(pinPath, socketPath string) error {
		fx.sent.Lock()
		defer fx.sent.Unlock()
		fx.sent.pins = append(fx.sent.pins, pinPath)
		fx.sent.socks = append(fx.sent.socks, socketPath)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	fx.Server = server.New(d, testLogger())
	return fx
}
