package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/container-storage-interface/spec/lib/go/csi"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bpfd "github.com/frobware/go-bpfd"
)

// mapsMode is the permission mode for CSI-exposed maps (owner+group read/write).
const mapsMode = 0o0660

// CSI volume attribute keys.
const (
	// VolumeAttrInterface names the interface whose chain owns the
	// program.
	VolumeAttrInterface = "csi.bpfd.io/interface"

	// VolumeAttrProgramID is the UUID assigned to the program at
	// load time.
	VolumeAttrProgramID = "csi.bpfd.io/program-id"

	// VolumeAttrMaps is a comma-separated list of map names to expose.
	VolumeAttrMaps = "csi.bpfd.io/maps"
)

// NodeGetInfo returns information about this node.
func (d *Driver) NodeGetInfo(ctx context.Context, req *csi.NodeGetInfoRequest) (*csi.NodeGetInfoResponse, error) {
	d.logger.Debug("NodeGetInfo",
		"method", "Node.NodeGetInfo",
	)

	return &csi.NodeGetInfoResponse{
		NodeId: d.nodeID,
	}, nil
}

// NodeGetCapabilities returns the capabilities of this node plugin.
func (d *Driver) NodeGetCapabilities(ctx context.Context, req *csi.NodeGetCapabilitiesRequest) (*csi.NodeGetCapabilitiesResponse, error) {
	d.logger.Debug("NodeGetCapabilities",
		"method", "Node.NodeGetCapabilities",
	)

	return &csi.NodeGetCapabilitiesResponse{
		Capabilities: []*csi.NodeServiceCapability{
			{
				Type: &csi.NodeServiceCapability_Rpc{
					Rpc: &csi.NodeServiceCapability_RPC{
						Type: csi.NodeServiceCapability_RPC_VOLUME_MOUNT_GROUP,
					},
				},
			},
		},
	}, nil
}

// NodePublishVolume mounts a program's maps at the target path.
//
// The driver resolves each requested map through the path resolver,
// re-pins it into a per-pod bpffs, and bind-mounts that bpffs to the
// container.
func (d *Driver) NodePublishVolume(ctx context.Context, req *csi.NodePublishVolumeRequest) (*csi.NodePublishVolumeResponse, error) {
	volumeID := req.GetVolumeId()
	targetPath := req.GetTargetPath()
	volumeContext := req.GetVolumeContext()
	readonly := req.GetReadonly()

	// Extract fsGroup from the volume capability if present. This
	// allows unprivileged containers to access the maps.
	var fsGroup int = -1
	if volCap := req.GetVolumeCapability(); volCap != nil {
		if mount := volCap.GetMount(); mount != nil {
			if groupStr := mount.GetVolumeMountGroup(); groupStr != "" {
				if gid, err := strconv.Atoi(groupStr); err == nil {
					fsGroup = gid
				}
			}
		}
	}

	d.logger.Info("NodePublishVolume request",
		"method", "Node.NodePublishVolume",
		"volumeID", volumeID,
		"targetPath", targetPath,
		"volumeContext", volumeContext,
		"readonly", readonly,
		"fsGroup", fsGroup,
	)

	if volumeID == "" {
		return nil, status.Error(codes.InvalidArgument, "volume ID is required")
	}
	if targetPath == "" {
		return nil, status.Error(codes.InvalidArgument, "target path is required")
	}

	iface := volumeContext[VolumeAttrInterface]
	programID := volumeContext[VolumeAttrProgramID]
	mapsStr := volumeContext[VolumeAttrMaps]

	if iface == "" || programID == "" || mapsStr == "" {
		return nil, status.Errorf(codes.InvalidArgument,
			"%s, %s and %s are required",
			VolumeAttrInterface, VolumeAttrProgramID, VolumeAttrMaps)
	}

	if d.resolver == nil || d.kernel == nil {
		return nil, status.Error(codes.FailedPrecondition,
			"map export not configured; path resolver and kernel required")
	}

	// Resolve every map before touching the filesystem so a bad
	// request leaves no half-built pod mount behind.
	var srcPaths []string
	var mapNames []string
	for _, mapName := range strings.Split(mapsStr, ",") {
		mapName = strings.TrimSpace(mapName)
		if mapName == "" {
			continue
		}

		srcPath, err := d.resolver.GetMapPath(ctx, bpfd.ProgramID(programID), iface, mapName)
		if err != nil {
			var notFound bpfd.NotFoundError
			var mapNotFound bpfd.MapNotFoundError
			switch {
			case errors.As(err, &notFound), errors.As(err, &mapNotFound):
				// NotFound is expected during reconciliation;
				// the kubelet may ask before the program is
				// loaded.
				d.logger.Warn("map not yet available",
					"programID", programID,
					"iface", iface,
					"map", mapName,
					"error", err,
				)
				return nil, status.Errorf(codes.NotFound, "%v", err)
			default:
				d.logger.Error("failed to resolve map",
					"programID", programID,
					"iface", iface,
					"map", mapName,
					"error", err,
				)
				return nil, status.Errorf(codes.Internal, "failed to resolve map %q: %v", mapName, err)
			}
		}

		srcPaths = append(srcPaths, srcPath)
		mapNames = append(mapNames, mapName)
	}

	if len(mapNames) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "%s names no maps", VolumeAttrMaps)
	}

	podBpffs := filepath.Join(d.csiFsRoot, volumeID)
	if err := os.MkdirAll(podBpffs, 0750); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create bpffs dir %q: %v", podBpffs, err)
	}

	if err := mountBpffs(podBpffs); err != nil {
		if rmErr := os.RemoveAll(podBpffs); rmErr != nil {
			d.logger.Warn("failed to remove pod bpffs directory during cleanup", "path", podBpffs, "error", rmErr)
		}
		return nil, status.Errorf(codes.Internal, "failed to mount bpffs at %q: %v", podBpffs, err)
	}

	if fsGroup >= 0 {
		if err := unix.Chown(podBpffs, -1, fsGroup); err != nil {
			d.logger.Warn("failed to chown bpffs directory",
				"path", podBpffs,
				"gid", fsGroup,
				"error", err,
			)
		}
	}

	for i, mapName := range mapNames {
		srcPath := srcPaths[i]
		dstPath := filepath.Join(podBpffs, mapName)

		d.logger.Debug("re-pinning map",
			"map", mapName,
			"src", srcPath,
			"dst", dstPath,
		)

		if err := d.kernel.RepinMap(ctx, srcPath, dstPath); err != nil {
			d.cleanupPodBpffs(podBpffs)
			return nil, status.Errorf(codes.Internal, "failed to re-pin map %q: %v", mapName, err)
		}

		if fsGroup >= 0 {
			if err := unix.Chown(dstPath, -1, fsGroup); err != nil {
				d.logger.Warn("failed to chown map",
					"path", dstPath,
					"gid", fsGroup,
					"error", err,
				)
			}
			if err := os.Chmod(dstPath, mapsMode); err != nil {
				d.logger.Warn("failed to chmod map",
					"path", dstPath,
					"mode", mapsMode,
					"error", err,
				)
			}
		}
	}

	if err := os.MkdirAll(targetPath, 0755); err != nil {
		d.cleanupPodBpffs(podBpffs)
		return nil, status.Errorf(codes.Internal, "failed to create target path: %v", err)
	}

	flags := uintptr(unix.MS_BIND)
	if readonly {
		flags |= unix.MS_RDONLY
	}

	if err := unix.Mount(podBpffs, targetPath, "", flags, ""); err != nil {
		d.cleanupPodBpffs(podBpffs)
		return nil, status.Errorf(codes.Internal, "failed to bind-mount %q to %q: %v", podBpffs, targetPath, err)
	}

	d.logger.Info("NodePublishVolume succeeded",
		"method", "Node.NodePublishVolume",
		"volumeID", volumeID,
		"programID", programID,
		"iface", iface,
		"maps", mapsStr,
		"podBpffs", podBpffs,
		"targetPath", targetPath,
		"readonly", readonly,
		"fsGroup", fsGroup,
	)

	return &csi.NodePublishVolumeResponse{}, nil
}

func (d *Driver) cleanupPodBpffs(podBpffs string) {
	unix.Unmount(podBpffs, 0)
	if err := os.RemoveAll(podBpffs); err != nil {
		d.logger.Warn("failed to remove pod bpffs directory during cleanup", "path", podBpffs, "error", err)
	}
}

// bpffsMagic is the magic number for bpffs (from statfs).
const bpffsMagic = 0xcafe4a11

// mountBpffs mounts a bpffs filesystem at the given path.
func mountBpffs(path string) error {
	if err := unix.Mount("bpf", path, "bpf", 0, ""); err != nil {
		return err
	}

	// Verify the mount is actually bpffs - catches misconfiguration early
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		unix.Unmount(path, 0)
		return err
	}
	if stat.Type != bpffsMagic {
		unix.Unmount(path, 0)
		return unix.EINVAL
	}

	return nil
}

// NodeUnpublishVolume unmounts the volume from the target path.
// It also cleans up the per-pod bpffs.
func (d *Driver) NodeUnpublishVolume(ctx context.Context, req *csi.NodeUnpublishVolumeRequest) (*csi.NodeUnpublishVolumeResponse, error) {
	volumeID := req.GetVolumeId()
	targetPath := req.GetTargetPath()

	d.logger.Info("NodeUnpublishVolume request",
		"method", "Node.NodeUnpublishVolume",
		"volumeID", volumeID,
		"targetPath", targetPath,
	)

	if volumeID == "" {
		return nil, status.Error(codes.InvalidArgument, "volume ID is required")
	}
	if targetPath == "" {
		return nil, status.Error(codes.InvalidArgument, "target path is required")
	}

	// Unmount the bind-mount from the container. "Not mounted"
	// errors are ignored for idempotency.
	if err := unix.Unmount(targetPath, 0); err != nil {
		if err != unix.EINVAL && err != unix.ENOENT {
			return nil, status.Errorf(codes.Internal, "failed to unmount %q: %v", targetPath, err)
		}
	}

	if err := os.RemoveAll(targetPath); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to remove target path: %v", err)
	}

	podBpffs := filepath.Join(d.csiFsRoot, volumeID)
	if _, err := os.Stat(podBpffs); err == nil {
		if err := unix.Unmount(podBpffs, 0); err != nil {
			if err != unix.EINVAL && err != unix.ENOENT {
				d.logger.Warn("failed to unmount per-pod bpffs",
					"path", podBpffs,
					"error", err,
				)
			}
		}

		if err := os.RemoveAll(podBpffs); err != nil {
			d.logger.Warn("failed to remove per-pod bpffs directory",
				"path", podBpffs,
				"error", err,
			)
		}
	}

	d.logger.Info("NodeUnpublishVolume succeeded",
		"method", "Node.NodeUnpublishVolume",
		"volumeID", volumeID,
		"targetPath", targetPath,
	)

	return &csi.NodeUnpublishVolumeResponse{}, nil
}

// NodeStageVolume is called before NodePublishVolume if staging is advertised.
func (d *Driver) NodeStageVolume(ctx context.Context, req *csi.NodeStageVolumeRequest) (*csi.NodeStageVolumeResponse, error) {
	d.logger.Warn("NodeStageVolume called but not implemented",
		"method", "Node.NodeStageVolume",
		"volumeID", req.GetVolumeId(),
	)
	return nil, status.Error(codes.Unimplemented, "NodeStageVolume not supported")
}

// NodeUnstageVolume is the counterpart to NodeStageVolume.
func (d *Driver) NodeUnstageVolume(ctx context.Context, req *csi.NodeUnstageVolumeRequest) (*csi.NodeUnstageVolumeResponse, error) {
	d.logger.Warn("NodeUnstageVolume called but not implemented",
		"method", "Node.NodeUnstageVolume",
		"volumeID", req.GetVolumeId(),
	)
	return nil, status.Error(codes.Unimplemented, "NodeUnstageVolume not supported")
}

// NodeGetVolumeStats returns statistics about a volume.
func (d *Driver) NodeGetVolumeStats(ctx context.Context, req *csi.NodeGetVolumeStatsRequest) (*csi.NodeGetVolumeStatsResponse, error) {
	d.logger.Warn("NodeGetVolumeStats called but not implemented",
		"method", "Node.NodeGetVolumeStats",
		"volumeID", req.GetVolumeId(),
	)
	return nil, status.Error(codes.Unimplemented, "NodeGetVolumeStats not supported")
}

// NodeExpandVolume expands a volume on the node.
func (d *Driver) NodeExpandVolume(ctx context.Context, req *csi.NodeExpandVolumeRequest) (*csi.NodeExpandVolumeResponse, error) {
	d.logger.Warn("NodeExpandVolume called but not implemented",
		"method", "Node.NodeExpandVolume",
		"volumeID", req.GetVolumeId(),
	)
	return nil, status.Error(codes.Unimplemented, "NodeExpandVolume not supported")
}
