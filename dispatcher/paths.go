package dispatcher

import (
	"fmt"
	"path/filepath"
)

// Pin layout per interface, under the daemon's bpffs root:
//
//	{fs}/{iface}/                        per-interface bpffs
//	{fs}/{iface}/dispatcher_link         stable XDP link pin
//	{fs}/{iface}/dispatcher_{rev}/       one revision's objects
//	{fs}/{iface}/dispatcher_{rev}/dispatcher
//	{fs}/{iface}/dispatcher_{rev}/link_{pos}
//	{fs}/{iface}/maps/{map_name}         shared map pins

// IfaceDir returns the per-interface pin directory.
func IfaceDir(bpffsRoot, iface string) string {
	return filepath.Join(bpffsRoot, iface)
}

// LinkPinPath returns the stable path of the interface's XDP link pin.
// It is constant across revisions, enabling in-place link updates.
func LinkPinPath(bpffsRoot, iface string) string {
	return filepath.Join(bpffsRoot, iface, "dispatcher_link")
}

// RevisionDir returns the directory holding one revision's dispatcher
// program and extension link pins.
func RevisionDir(bpffsRoot, iface string, revision uint32) string {
	return filepath.Join(bpffsRoot, iface, fmt.Sprintf("dispatcher_%d", revision))
}

// ProgPinPath returns the dispatcher program pin within a revision
// directory.
func ProgPinPath(revisionDir string) string {
	return filepath.Join(revisionDir, "dispatcher")
}

// ExtensionLinkPath returns the pin of the extension link occupying
// the given slot within a revision directory.
func ExtensionLinkPath(revisionDir string, position int) string {
	return filepath.Join(revisionDir, fmt.Sprintf("link_%d", position))
}

// MapsDir returns the shared map pin directory for an interface. Maps
// are pinned here by name, so a map reused across loads of the same
// object is pinned exactly once.
func MapsDir(bpffsRoot, iface string) string {
	return filepath.Join(bpffsRoot, iface, "maps")
}

// MapPinPath returns the pin path of a named map within a maps
// directory.
func MapPinPath(mapsDir, mapName string) string {
	return filepath.Join(mapsDir, mapName)
}
