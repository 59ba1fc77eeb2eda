// Package bpffs manages BPF filesystem mounts and the map-pinning
// eligibility rule.
package bpffs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// DefaultMountInfoPath is the path to the mountinfo file.
	DefaultMountInfoPath = "/proc/self/mountinfo"

	// maxScanLineLen bounds mountinfo line length. Some runtimes
	// produce very long lines; this prevents ErrTooLong.
	maxScanLineLen = 1024 * 1024
)

// IsMounted reports whether a bpffs is mounted at mountPoint according
// to mountInfoPath (e.g. /proc/self/mountinfo).
//
// Each mountinfo line has the form
//
//	mount_id parent_id major:minor root mount_point options [optional...] - fstype source super_options
//
// The separator " - " must be located by string search rather than by
// field position, because a variable number of optional fields (mount
// propagation tags like "shared:N") may precede it.
func IsMounted(mountInfoPath, mountPoint string) (bool, error) {
	file, err := os.Open(mountInfoPath)
	if err != nil {
		return false, fmt.Errorf("opening mountinfo: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLineLen)

	for scanner.Scan() {
		line := scanner.Text()

		sepIdx := strings.Index(line, " - ")
		if sepIdx == -1 {
			continue
		}

		fields := strings.Fields(line[:sepIdx])
		if len(fields) < 5 {
			continue
		}
		mntPoint := fields[4]

		suffixFields := strings.Fields(line[sepIdx+3:])
		if len(suffixFields) < 1 {
			continue
		}
		fsType := suffixFields[0]

		if mntPoint == mountPoint && fsType == "bpf" {
			return true, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading mountinfo: %w", err)
	}

	return false, nil
}

// Mount mounts a bpffs at directory, creating it if needed. The mount
// carries nosuid, nodev, noexec and relatime, matching what the rest
// of the daemon expects of its pinning filesystems.
func Mount(directory string) error {
	fi, err := os.Stat(directory)
	switch {
	case err == nil:
		if !fi.IsDir() {
			return fmt.Errorf("mount point %s exists but is not a directory", directory)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating mount point directory: %w", err)
		}
	default:
		return fmt.Errorf("stat mount point: %w", err)
	}

	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_RELATIME)
	if err := unix.Mount("bpf", directory, "bpf", flags, ""); err != nil {
		return fmt.Errorf("mount syscall: %w", err)
	}

	return nil
}

// Unmount unmounts the bpffs at directory.
func Unmount(directory string) error {
	if err := unix.Unmount(directory, 0); err != nil {
		return fmt.Errorf("unmount syscall: %w", err)
	}
	return nil
}

// EnsureMounted mounts a bpffs at directory unless mountInfoPath
// already records one there.
func EnsureMounted(mountInfoPath, directory string) error {
	mounted, err := IsMounted(mountInfoPath, directory)
	if err != nil {
		return err
	}
	if mounted {
		return nil
	}
	return Mount(directory)
}

// ShouldPinMap reports whether a map is a candidate for persistent
// pinning. Maps backing the .rodata, .bss and .data sections are
// initialised by the kernel on every load; pinning them would share
// state that is not meaningfully shareable, so they are excluded.
func ShouldPinMap(name string) bool {
	return !strings.Contains(name, ".rodata") &&
		!strings.Contains(name, ".bss") &&
		!strings.Contains(name, ".data")
}
