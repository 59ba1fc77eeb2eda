package server_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/dispatcher"
	pb "github.com/frobware/go-bpfd/server/pb"
)

func loadReq(iface, section string, priority int32) *pb.LoadRequest {
	return &pb.LoadRequest{
		Path:        "/usr/share/bpf/" + section + ".o",
		Iface:       iface,
		Priority:    priority,
		SectionName: "xdp/" + section,
	}
}

func TestLoader_LoadListUnload(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	loaded, err := fx.Server.Load(ctx, loadReq("eth0", "firewall", 50))
	require.NoError(t, err)
	assert.NotEmpty(t, loaded.GetId())
	assert.Equal(t, int32(0), loaded.GetPosition())

	list, err := fx.Server.List(ctx, &pb.ListRequest{Iface: "eth0"})
	require.NoError(t, err)
	require.Len(t, list.GetPrograms(), 1)
	assert.Equal(t, loaded.GetId(), list.GetPrograms()[0].GetId())
	assert.Equal(t, "xdp/firewall", list.GetPrograms()[0].GetSectionName())

	_, err = fx.Server.Unload(ctx, &pb.UnloadRequest{Iface: "eth0", Id: loaded.GetId()})
	require.NoError(t, err)

	list, err = fx.Server.List(ctx, &pb.ListRequest{Iface: "eth0"})
	require.NoError(t, err)
	assert.Empty(t, list.GetPrograms())
}

func TestLoader_ListOrderedByPriority(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	low, err := fx.Server.Load(ctx, loadReq("eth0", "low", 90))
	require.NoError(t, err)
	high, err := fx.Server.Load(ctx, loadReq("eth0", "high", 10))
	require.NoError(t, err)

	list, err := fx.Server.List(ctx, &pb.ListRequest{Iface: "eth0"})
	require.NoError(t, err)
	require.Len(t, list.GetPrograms(), 2)
	assert.Equal(t, high.GetId(), list.GetPrograms()[0].GetId())
	assert.Equal(t, int32(0), list.GetPrograms()[0].GetPosition())
	assert.Equal(t, low.GetId(), list.GetPrograms()[1].GetId())
	assert.Equal(t, int32(1), list.GetPrograms()[1].GetPosition())
}

func TestLoader_ListAllInterfaces(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	_, err := fx.Server.Load(ctx, loadReq("eth0", "firewall", 50))
	require.NoError(t, err)
	_, err = fx.Server.Load(ctx, loadReq("lo", "sampler", 50))
	require.NoError(t, err)

	list, err := fx.Server.List(ctx, &pb.ListRequest{})
	require.NoError(t, err)
	require.Len(t, list.GetPrograms(), 2)

	ifaces := []string{list.GetPrograms()[0].GetIface(), list.GetPrograms()[1].GetIface()}
	assert.ElementsMatch(t, []string{"eth0", "lo"}, ifaces)
	for _, p := range list.GetPrograms() {
		assert.Equal(t, int32(0), p.GetPosition())
	}
}

func TestLoader_InvalidInterface(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.Server.Load(context.Background(), loadReq("nosuch0", "firewall", 50))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLoader_MissingFields(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	_, err := fx.Server.Load(ctx, &pb.LoadRequest{Iface: "eth0"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = fx.Server.Unload(ctx, &pb.UnloadRequest{Iface: "eth0"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = fx.Server.GetMap(ctx, &pb.GetMapRequest{Iface: "eth0", Id: "x", MapName: "stats"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "socket_path is required")
}

func TestLoader_UnloadUnknownID(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.Server.Unload(context.Background(), &pb.UnloadRequest{
		Iface: "eth0",
		Id:    string(bpfd.NewProgramID()),
	})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestLoader_CapacityExhausted(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	for i := 0; i < dispatcher.MaxPrograms; i++ {
		_, err := fx.Server.Load(ctx, loadReq("eth0", string(rune('a'+i)), 50))
		require.NoError(t, err)
	}

	_, err := fx.Server.Load(ctx, loadReq("eth0", "overflow", 50))
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLoader_LoadFailurePreservesVerifierText(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	fx.Kernel.failBuildOnSection["xdp/broken"] = bpfd.LoadError{
		ObjectPath:  "/usr/share/bpf/broken.o",
		SectionName: "xdp/broken",
		Err:         assert.AnError,
	}

	_, err := fx.Server.Load(ctx, loadReq("eth0", "broken", 50))
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "xdp/broken")
	assert.Contains(t, st.Message(), assert.AnError.Error())
}

func TestLoader_GetMapSendsDescriptor(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	loaded, err := fx.Server.Load(ctx, loadReq("eth0", "firewall", 50))
	require.NoError(t, err)

	_, err = fx.Server.GetMap(ctx, &pb.GetMapRequest{
		Iface:      "eth0",
		Id:         loaded.GetId(),
		MapName:    "stats",
		SocketPath: "/tmp/consumer.sock",
	})
	require.NoError(t, err)

	fx.sent.Lock()
	defer fx.sent.Unlock()
	require.Len(t, fx.sent.pins, 1)
	assert.Contains(t, fx.sent.pins[0], "/eth0/maps/stats")
	assert.Equal(t, "/tmp/consumer.sock", fx.sent.socks[0])
}

func TestLoader_GetMapUnknownMap(t *testing.T) {
	fx := newTestFixture(t)
	ctx := context.Background()

	loaded, err := fx.Server.Load(ctx, loadReq("eth0", "firewall", 50))
	require.NoError(t, err)

	_, err = fx.Server.GetMap(ctx, &pb.GetMapRequest{
		Iface:      "eth0",
		Id:         loaded.GetId(),
		MapName:    "nosuchmap",
		SocketPath: "/tmp/consumer.sock",
	})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
