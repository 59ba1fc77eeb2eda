package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter"
	"github.com/frobware/go-bpfd/interpreter/store"
	"github.com/frobware/go-bpfd/interpreter/store/sqlite"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set BPFD_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("BPFD_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEntry returns a valid ProgramEntry for testing.
func testEntry(seq uint64) bpfd.ProgramEntry {
	return bpfd.ProgramEntry{
		ID:          bpfd.NewProgramID(),
		Iface:       "eth0",
		Priority:    50,
		Seq:         seq,
		SectionName: "xdp/firewall",
		ObjectPath:  "/test/path/firewall.o",
		Maps:        []string{"blocklist", "counters"},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testState(iface string) dispatcher.State {
	return dispatcher.State{
		Iface:       iface,
		Ifindex:     4,
		Revision:    1,
		KernelID:    1234,
		LinkID:      77,
		LinkPinPath: "/run/bpfd/fs/" + iface + "/dispatcher_link",
		RevisionDir: "/run/bpfd/fs/" + iface + "/dispatcher_1",
		NumPrograms: 1,
	}
}

func TestProgram_SaveGetRoundTrip(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	defer s.Close()

	ctx := context.Background()
	entry := testEntry(1)

	require.NoError(t, s.SaveProgram(ctx, entry))

	got, err := s.GetProgram(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Iface, got.Iface)
	assert.Equal(t, entry.Priority, got.Priority)
	assert.Equal(t, entry.Seq, got.Seq)
	assert.Equal(t, entry.SectionName, got.SectionName)
	assert.Equal(t, entry.ObjectPath, got.ObjectPath)
	assert.ElementsMatch(t, entry.Maps, got.Maps)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt), "created_at mismatch: %v vs %v", entry.CreatedAt, got.CreatedAt)
}

func TestProgram_GetMissingReturnsNotFound(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetProgram(context.Background(), bpfd.NewProgramID())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProgram_SaveReplacesMapNames(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	entry := testEntry(1)
	require.NoError(t, s.SaveProgram(ctx, entry))

	entry.Maps = []string{"counters"}
	require.NoError(t, s.SaveProgram(ctx, entry))

	got, err := s.GetProgram(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"counters"}, got.Maps)
}

func TestProgram_DeleteCascadesMapNames(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	entry := testEntry(1)
	require.NoError(t, s.SaveProgram(ctx, entry))
	require.NoError(t, s.DeleteProgram(ctx, entry.ID))

	_, err = s.GetProgram(ctx, entry.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Re-saving the same ID with no maps must not resurrect the
	// old map rows.
	entry.Maps = nil
	require.NoError(t, s.SaveProgram(ctx, entry))
	got, err := s.GetProgram(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Maps)
}

func TestProgram_ListOrderedBySeq(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	e3 := testEntry(3)
	e1 := testEntry(1)
	e2 := testEntry(2)
	for _, e := range []bpfd.ProgramEntry{e3, e1, e2} {
		require.NoError(t, s.SaveProgram(ctx, e))
	}

	entries, err := s.ListPrograms(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{entries[0].Seq, entries[1].Seq, entries[2].Seq})
}

func TestDispatcher_SaveGetRoundTrip(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	state := testState("eth0")
	require.NoError(t, s.SaveDispatcher(ctx, state))

	got, err := s.GetDispatcher(ctx, "eth0")
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestDispatcher_SaveUpserts(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	state := testState("eth0")
	require.NoError(t, s.SaveDispatcher(ctx, state))

	state.Revision = 2
	state.KernelID = 5678
	state.RevisionDir = "/run/bpfd/fs/eth0/dispatcher_2"
	require.NoError(t, s.SaveDispatcher(ctx, state))

	got, err := s.GetDispatcher(ctx, "eth0")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Revision)
	assert.Equal(t, uint32(5678), got.KernelID)

	all, err := s.ListDispatchers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not create a second row")
}

func TestDispatcher_DeleteThenGetReturnsNotFound(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveDispatcher(ctx, testState("eth0")))
	require.NoError(t, s.DeleteDispatcher(ctx, "eth0"))

	_, err = s.GetDispatcher(ctx, "eth0")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunInTransaction_RollbackDiscardsWrites(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	entry := testEntry(1)
	boom := errors.New("boom")

	err = s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		if err := tx.SaveProgram(ctx, entry); err != nil {
			return err
		}
		if err := tx.SaveDispatcher(ctx, testState("eth0")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetProgram(ctx, entry.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "program write must roll back")
	_, err = s.GetDispatcher(ctx, "eth0")
	assert.ErrorIs(t, err, store.ErrNotFound, "dispatcher write must roll back")
}

func TestRunInTransaction_CommitPersistsWrites(t *testing.T) {
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	entry := testEntry(1)

	err = s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		if err := tx.SaveProgram(ctx, entry); err != nil {
			return err
		}
		return tx.SaveDispatcher(ctx, testState("eth0"))
	})
	require.NoError(t, err)

	_, err = s.GetProgram(ctx, entry.ID)
	assert.NoError(t, err)
	_, err = s.GetDispatcher(ctx, "eth0")
	assert.NoError(t, err)
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	dbPath := t.TempDir() + "/bpfd.db"
	ctx := context.Background()

	s, err := sqlite.New(ctx, dbPath, testLogger())
	require.NoError(t, err)

	entry := testEntry(1)
	require.NoError(t, s.SaveProgram(ctx, entry))
	require.NoError(t, s.Close())

	s2, err := sqlite.New(ctx, dbPath, testLogger())
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetProgram(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
}
