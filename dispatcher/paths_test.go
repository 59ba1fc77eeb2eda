package dispatcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frobware/go-bpfd/dispatcher"
)

func TestPinPaths(t *testing.T) {
	const root = "/run/bpfd/fs"

	assert.Equal(t, "/run/bpfd/fs/eth0", dispatcher.IfaceDir(root, "eth0"))
	assert.Equal(t, "/run/bpfd/fs/eth0/dispatcher_link", dispatcher.LinkPinPath(root, "eth0"))

	rev := dispatcher.RevisionDir(root, "eth0", 3)
	assert.Equal(t, "/run/bpfd/fs/eth0/dispatcher_3", rev)
	assert.Equal(t, "/run/bpfd/fs/eth0/dispatcher_3/dispatcher", dispatcher.ProgPinPath(rev))
	assert.Equal(t, "/run/bpfd/fs/eth0/dispatcher_3/link_0", dispatcher.ExtensionLinkPath(rev, 0))

	assert.Equal(t, "/run/bpfd/fs/eth0/maps", dispatcher.MapsDir(root, "eth0"))
	assert.Equal(t, "/run/bpfd/fs/eth0/maps/counters", dispatcher.MapPinPath(dispatcher.MapsDir(root, "eth0"), "counters"))
}
