package bpfd

import "fmt"

// InvalidInterfaceError is returned when an interface name does not
// resolve to a kernel interface index.
type InvalidInterfaceError struct {
	Name string
}

func (e InvalidInterfaceError) Error() string {
	return fmt.Sprintf("invalid interface %q", e.Name)
}

// LoadError is returned when the kernel rejected a program object. The
// verifier's reason is wrapped, not rewritten, so it reaches the caller
// verbatim.
type LoadError struct {
	ObjectPath  string
	SectionName string
	Err         error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.SectionName, e.ObjectPath, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// CapacityError is returned when a mutation would grow an interface's
// chain beyond the dispatcher's slot limit. The mutation is rejected
// before any kernel state changes.
type CapacityError struct {
	Iface string
	Chain int
	Max   int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("interface %s: chain of %d programs exceeds dispatcher capacity of %d", e.Iface, e.Chain, e.Max)
}

// NotFoundError is returned when a program id does not exist on the
// given interface.
type NotFoundError struct {
	ID    ProgramID
	Iface string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("program %s not found on interface %s", e.ID, e.Iface)
}

// MapNotFoundError is returned when a map name does not resolve to a
// pinned map for the given program.
type MapNotFoundError struct {
	ID      ProgramID
	Iface   string
	MapName string
}

func (e MapNotFoundError) Error() string {
	return fmt.Sprintf("map %q not found for program %s on interface %s", e.MapName, e.ID, e.Iface)
}

// MountError is returned when the pinning filesystem for an interface
// could not be created. This is a hard failure; the triggering add is
// rejected.
type MountError struct {
	Directory string
	Err       error
}

func (e MountError) Error() string {
	return fmt.Sprintf("mount bpffs at %s: %v", e.Directory, e.Err)
}

func (e MountError) Unwrap() error { return e.Err }
