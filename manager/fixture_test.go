package manager_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/bpffs"
	"github.com/frobware/go-bpfd/config"
	"github.com/frobware/go-bpfd/interpreter"
	"github.com/frobware/go-bpfd/interpreter/store/sqlite"
	"github.com/frobware/go-bpfd/manager"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set BPFD_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("BPFD_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// kernelOp records an operation performed on the fake kernel.
type kernelOp struct {
	Op    string // "build", "attach", "replace", "detach", "remove-pin", "remove-pin-tree", "repin-map"
	Iface string
	Path  string
	Chain []bpfd.ProgramID // for builds, the chain in slot order
}

// fakeKernel implements interpreter.KernelOperations for testing.
// It simulates dispatcher builds and swaps without syscalls.
type fakeKernel struct {
	nextID atomic.Uint32

	mu  sync.Mutex
	ops []kernelOp

	// attached maps link pin path to the dispatcher prog pin the
	// hook currently runs.
	attached map[string]string

	// Error injection - set these to control behaviour
	failBuildOnSection map[string]error // fail BuildDispatcher if the chain contains this section
	failReplace        error
	failAttach         error
}

func newFakeKernel() *fakeKernel {
	fk := &fakeKernel{
		attached:           make(map[string]string),
		failBuildOnSection: make(map[string]error),
	}
	fk.nextID.Store(100)
	return fk
}

func (f *fakeKernel) recordOp(op kernelOp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

// Operations returns a copy of recorded operations for verification.
func (f *fakeKernel) Operations() []kernelOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]kernelOp, len(f.ops))
	copy(ops, f.ops)
	return ops
}

// LastBuild returns the chain of the most recent build, or nil.
func (f *fakeKernel) LastBuild() []bpfd.ProgramID {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.ops) - 1; i >= 0; i-- {
		if f.ops[i].Op == "build" {
			return f.ops[i].Chain
		}
	}
	return nil
}

// Attached returns the dispatcher prog pin live at a link pin, or "".
func (f *fakeKernel) Attached(linkPinPath string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached[linkPinPath]
}

func (f *fakeKernel) BuildDispatcher(ctx context.Context, spec interpreter.DispatcherSpec) (interpreter.BuiltDispatcher, error) {
	chain := make([]bpfd.ProgramID, len(spec.Chain))
	mapPins := make(map[bpfd.ProgramID][]string, len(spec.Chain))
	for i, e := range spec.Chain {
		chain[i] = e.ID
		if err, ok := f.failBuildOnSection[e.SectionName]; ok {
			return interpreter.BuiltDispatcher{}, err
		}
		// Pin one map per object, named after the object's base
		// name the way real objects name their maps. Internal
		// sections are never pinned.
		name := path.Base(e.ObjectPath) + "_map"
		if bpffs.ShouldPinMap(name) {
			mapPins[e.ID] = []string{name}
		}
	}
	f.recordOp(kernelOp{Op: "build", Iface: spec.Iface, Path: spec.RevisionDir, Chain: chain})
	return interpreter.BuiltDispatcher{
		KernelID:    f.nextID.Add(1),
		ProgPinPath: spec.RevisionDir + "/dispatcher",
		MapPins:     mapPins,
	}, nil
}

func (f *fakeKernel) AttachDispatcher(ctx context.Context, ifindex int, progPinPath, linkPinPath string) (uint32, error) {
	if f.failAttach != nil {
		return 0, f.failAttach
	}
	f.recordOp(kernelOp{Op: "attach", Path: linkPinPath})
	f.mu.Lock()
	f.attached[linkPinPath] = progPinPath
	f.mu.Unlock()
	return f.nextID.Add(1), nil
}

func (f *fakeKernel) ReplaceDispatcher(ctx context.Context, linkPinPath, progPinPath string) error {
	if f.failReplace != nil {
		return f.failReplace
	}
	f.recordOp(kernelOp{Op: "replace", Path: linkPinPath})
	f.mu.Lock()
	f.attached[linkPinPath] = progPinPath
	f.mu.Unlock()
	return nil
}

func (f *fakeKernel) DetachDispatcher(ctx context.Context, linkPinPath string) error {
	f.recordOp(kernelOp{Op: "detach", Path: linkPinPath})
	f.mu.Lock()
	delete(f.attached, linkPinPath)
	f.mu.Unlock()
	return nil
}

func (f *fakeKernel) RemovePin(ctx context.Context, path string) error {
	f.recordOp(kernelOp{Op: "remove-pin", Path: path})
	return nil
}

func (f *fakeKernel) RemovePinTree(ctx context.Context, path string) error {
	f.recordOp(kernelOp{Op: "remove-pin-tree", Path: path})
	return nil
}

func (f *fakeKernel) RepinMap(ctx context.Context, srcPath, dstPath string) error {
	f.recordOp(kernelOp{Op: "repin-map", Path: dstPath})
	return nil
}

// fakeMounter implements manager.Mounter without mount syscalls.
type fakeMounter struct {
	mu      sync.Mutex
	mounted map[string]bool
}

func newFakeMounter() *fakeMounter {
	return &fakeMounter{mounted: make(map[string]bool)}
}

func (f *fakeMounter) EnsureMounted(directory string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounted[directory] = true
	return nil
}

func (f *fakeMounter) Unmount(directory string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mounted, directory)
	return nil
}

// fakeResolver resolves a fixed set of interface names.
type fakeResolver struct {
	ifaces map[string]int
}

func (f fakeResolver) InterfaceIndex(name string) (int, error) {
	if idx, ok := f.ifaces[name]; ok {
		return idx, nil
	}
	return 0, bpfd.InvalidInterfaceError{Name: name}
}

// fixture bundles a Manager with its fakes for a test.
type fixture struct {
	manager  *manager.Manager
	store    interpreter.Store
	kernel   *fakeKernel
	mounter  *fakeMounter
	resolver fakeResolver
	dirs     config.RuntimeDirs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dirs, err := config.NewRuntimeDirs(t.TempDir())
	require.NoError(t, err)
	fk := newFakeKernel()
	fm := newFakeMounter()
	fr := fakeResolver{ifaces: map[string]int{"eth0": 2, "eth1": 3, "lo": 1}}

	m := manager.New(dirs, []byte("dispatcher-template"), st, fk, testLogger(),
		manager.WithResolver(fr),
		manager.WithMounter(fm))

	return &fixture{
		manager:  m,
		store:    st,
		kernel:   fk,
		mounter:  fm,
		resolver: fr,
		dirs:     dirs,
	}
}
