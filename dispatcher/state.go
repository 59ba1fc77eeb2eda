package dispatcher

// State is the persistent record of the dispatcher installed on one
// interface.
//
// A State exists exactly while the interface's chain is non-empty, and
// the kernel-resident dispatcher it names always implements precisely
// the current chain; the two are only ever updated together.
type State struct {
	// Iface is the interface name. One dispatcher per interface.
	Iface string `json:"iface"`

	// Ifindex is the resolved kernel interface index.
	Ifindex int `json:"ifindex"`

	// Revision counts rebuilds. Each mutation loads a new
	// dispatcher instance into a new revision directory; the
	// previous revision's pins are removed only after the swap
	// succeeds.
	Revision uint32 `json:"revision"`

	// KernelID is the kernel program ID of the live dispatcher.
	KernelID uint32 `json:"kernel_id"`

	// LinkID is the kernel link ID of the XDP attachment.
	LinkID uint32 `json:"link_id"`

	// LinkPinPath is the stable pin of the XDP link. It survives
	// revisions, which is what makes the swap atomic: the link is
	// updated in place rather than detached and re-attached.
	LinkPinPath string `json:"link_pin_path"`

	// RevisionDir holds the current revision's dispatcher program
	// and extension link pins.
	RevisionDir string `json:"revision_dir"`

	// NumPrograms is the chain length the live dispatcher encodes.
	NumPrograms int `json:"num_programs"`
}
