package fdpass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvFile(t *testing.T) {
	parent, child, err := Socketpair()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	path := filepath.Join(t.TempDir(), "pinned_map")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, SendFile(parent, f))

	received, err := RecvFile(child)
	require.NoError(t, err)
	defer received.Close()

	assert.Equal(t, path, received.Name())

	buf := make([]byte, 7)
	n, err := received.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}

func TestSendFdRejectsOversizedName(t *testing.T) {
	parent, child, err := Socketpair()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	name := make([]byte, MaxNameLen)
	for i := range name {
		name[i] = 'x'
	}
	err = SendFd(parent, string(name), int(parent.Fd()))
	require.Error(t, err)
}
