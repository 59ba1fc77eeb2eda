// Package bpfd contains the domain types shared across the daemon:
// program entries, list summaries, and the error kinds surfaced to
// RPC callers.
package bpfd

import (
	"time"

	"github.com/google/uuid"
)

// ProgramID uniquely identifies a program managed by the daemon.
//
// IDs are daemon-assigned UUIDs, stable for the program's lifetime and
// never reused while any reference to the program (including pinned
// map paths) survives.
type ProgramID string

// NewProgramID returns a freshly assigned program identifier.
func NewProgramID() ProgramID {
	return ProgramID(uuid.NewString())
}

// String returns the identifier as a string.
func (id ProgramID) String() string { return string(id) }

// ProgramEntry describes one user program attached to an interface via
// the dispatcher.
//
// An entry belongs to exactly one interface's chain; it never appears
// in two chains.
type ProgramEntry struct {
	// ID is the daemon-assigned identifier.
	ID ProgramID `json:"id"`

	// Iface is the network interface the program is attached to.
	Iface string `json:"iface"`

	// Priority determines dispatch order: lower priorities execute
	// earlier in the chain.
	Priority int32 `json:"priority"`

	// Seq is a monotonic insertion counter assigned when the entry
	// is created. It is the tie-break key for equal priorities, so
	// that chain order is a total order and reproducible across
	// daemon restarts. Never rely on container iteration order.
	Seq uint64 `json:"seq"`

	// SectionName selects the program section inside the object
	// file at ObjectPath.
	SectionName string `json:"section_name"`

	// ObjectPath is the filesystem path of the loaded object.
	ObjectPath string `json:"object_path"`

	// Maps lists the names of this program's maps that were pinned
	// under the interface maps directory. Maps excluded by the
	// pinning rule (per-load-initialised sections) never appear
	// here.
	Maps []string `json:"maps,omitempty"`

	// CreatedAt records when the entry was committed.
	CreatedAt time.Time `json:"created_at"`
}

// ProgramSummary is the list view of a chain member.
type ProgramSummary struct {
	// ID is the daemon-assigned identifier.
	ID ProgramID `json:"id"`

	// Iface is the interface the program is attached to.
	Iface string `json:"iface"`

	// Priority is the configured dispatch priority.
	Priority int32 `json:"priority"`

	// SectionName is the loaded program section.
	SectionName string `json:"section_name"`

	// Position is the program's 0-based slot in the dispatcher
	// chain. List output always reflects actual dispatch order.
	Position int `json:"position"`
}
