package ebpf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	bpfd "github.com/frobware/go-bpfd"
	"github.com/frobware/go-bpfd/bpffs"
	"github.com/frobware/go-bpfd/dispatcher"
	"github.com/frobware/go-bpfd/interpreter"
)

// BuildDispatcher instantiates a dispatcher revision: it loads the
// dispatcher template with the chain encoded into its config, pins the
// dispatcher program under spec.RevisionDir, then loads every chain
// member as an Extension program and attaches it to its slot via
// freplace, pinning the extension links alongside.
//
// Eligible maps pin by name under spec.MapsDir. An existing pin with
// the same name is reused, so chain members loaded from the same object
// share maps across rebuilds.
//
// On failure the revision directory and any map pins created by this
// build are removed; nothing of the new revision survives.
func (k *kernelAdapter) BuildDispatcher(ctx context.Context, spec interpreter.DispatcherSpec) (interpreter.BuiltDispatcher, error) {
	if err := os.MkdirAll(spec.RevisionDir, 0o755); err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("create revision dir %s: %w", spec.RevisionDir, err)
	}
	if err := os.MkdirAll(spec.MapsDir, 0o755); err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("create maps dir %s: %w", spec.MapsDir, err)
	}

	build := &dispatcherBuild{spec: spec}
	built, err := k.buildDispatcher(ctx, build)
	if err != nil {
		build.cleanup(k)
		return interpreter.BuiltDispatcher{}, err
	}
	return built, nil
}

// dispatcherBuild tracks what a build has created so a failed build can
// undo itself. Map pins that predate the build are reused so they are
// never removed here.
type dispatcherBuild struct {
	spec       interpreter.DispatcherSpec
	newMapPins []string
}

func (b *dispatcherBuild) cleanup(k *kernelAdapter) {
	if err := os.RemoveAll(b.spec.RevisionDir); err != nil {
		k.logger.Warn("failed to remove revision dir after failed build",
			"dir", b.spec.RevisionDir, "error", err)
	}
	for _, path := range b.newMapPins {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			k.logger.Warn("failed to remove map pin after failed build",
				"path", path, "error", err)
		}
	}
}

func (k *kernelAdapter) buildDispatcher(ctx context.Context, build *dispatcherBuild) (interpreter.BuiltDispatcher, error) {
	spec := build.spec

	cfg, err := dispatcher.NewConfig(spec.Chain)
	if err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("dispatcher config: %w", err)
	}
	collSpec, err := dispatcher.LoadSpec(spec.Template, cfg)
	if err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("load dispatcher spec: %w", err)
	}

	coll, err := ebpf.NewCollection(collSpec)
	if err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("create dispatcher collection: %w", err)
	}
	defer coll.Close()

	dispatcherProg := coll.Programs[dispatcher.ProgramName]
	if dispatcherProg == nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("%s program not found in dispatcher collection", dispatcher.ProgramName)
	}

	progPinPath := dispatcher.ProgPinPath(spec.RevisionDir)
	if err := pinWithRetry(dispatcherProg, progPinPath); err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("pin dispatcher to %s: %w", progPinPath, err)
	}

	mapPins := make(map[bpfd.ProgramID][]string, len(spec.Chain))
	for position, entry := range spec.Chain {
		mapNames, err := k.attachExtension(ctx, build, dispatcherProg, entry, position)
		if err != nil {
			return interpreter.BuiltDispatcher{}, err
		}
		mapPins[entry.ID] = mapNames
	}

	info, err := dispatcherProg.Info()
	if err != nil {
		return interpreter.BuiltDispatcher{}, fmt.Errorf("get dispatcher program info: %w", err)
	}
	kernelID, ok := info.ID()
	if !ok {
		return interpreter.BuiltDispatcher{}, errors.New("failed to get dispatcher program ID from kernel")
	}

	return interpreter.BuiltDispatcher{
		KernelID:    uint32(kernelID),
		ProgPinPath: progPinPath,
		MapPins:     mapPins,
	}, nil
}

// attachExtension loads one chain member from its ELF as an Extension
// program targeting the dispatcher slot for its position, attaches it
// via freplace and pins the link in the revision directory. Returns the
// names of the member's maps now pinned under the maps directory.
func (k *kernelAdapter) attachExtension(ctx context.Context, build *dispatcherBuild, dispatcherProg *ebpf.Program, entry bpfd.ProgramEntry, position int) ([]string, error) {
	spec := build.spec

	collSpec, err := ebpf.LoadCollectionSpec(entry.ObjectPath)
	if err != nil {
		return nil, bpfd.LoadError{
			ObjectPath:  entry.ObjectPath,
			SectionName: entry.SectionName,
			Err:         err,
		}
	}

	progSpec := findProgramBySection(collSpec, entry.SectionName)
	if progSpec == nil {
		return nil, bpfd.LoadError{
			ObjectPath:  entry.ObjectPath,
			SectionName: entry.SectionName,
			Err:         fmt.Errorf("no program in section %q", entry.SectionName),
		}
	}

	// The same ELF used for direct XDP attachment is reloaded as
	// BPF_PROG_TYPE_EXT with the dispatcher slot as attach target.
	progSpec.Type = ebpf.Extension
	progSpec.AttachTarget = dispatcherProg
	progSpec.AttachTo = dispatcher.SlotName(position)

	// Eligible maps pin by name under the interface's maps
	// directory. cilium/ebpf reuses a compatible existing pin, which
	// is how chain members share maps across rebuilds. Internal
	// sections never pin.
	var mapNames []string
	for name, mapSpec := range collSpec.Maps {
		if strings.HasPrefix(name, ".") || !bpffs.ShouldPinMap(name) {
			mapSpec.Pinning = ebpf.PinNone
			continue
		}
		mapSpec.Pinning = ebpf.PinByName
		mapNames = append(mapNames, name)

		pinPath := dispatcher.MapPinPath(spec.MapsDir, name)
		if _, err := os.Stat(pinPath); os.IsNotExist(err) {
			build.newMapPins = append(build.newMapPins, pinPath)
		}
	}

	coll, err := ebpf.NewCollectionWithOptions(collSpec, ebpf.CollectionOptions{
		Maps: ebpf.MapOptions{PinPath: spec.MapsDir},
	})
	if err != nil {
		var verr *ebpf.VerifierError
		if errors.As(err, &verr) {
			k.logger.Debug("verifier rejected extension program",
				"object", entry.ObjectPath, "section", entry.SectionName, "log", verr.Error())
		}
		return nil, bpfd.LoadError{
			ObjectPath:  entry.ObjectPath,
			SectionName: entry.SectionName,
			Err:         err,
		}
	}
	defer coll.Close()

	extensionProg := coll.Programs[progSpec.Name]
	if extensionProg == nil {
		return nil, bpfd.LoadError{
			ObjectPath:  entry.ObjectPath,
			SectionName: entry.SectionName,
			Err:         fmt.Errorf("program %q not in loaded collection", progSpec.Name),
		}
	}

	lnk, err := link.AttachFreplace(dispatcherProg, progSpec.AttachTo, extensionProg)
	if err != nil {
		return nil, bpfd.LoadError{
			ObjectPath:  entry.ObjectPath,
			SectionName: entry.SectionName,
			Err:         fmt.Errorf("attach freplace to %s: %w", progSpec.AttachTo, err),
		}
	}
	defer lnk.Close()

	linkPinPath := dispatcher.ExtensionLinkPath(spec.RevisionDir, position)
	if err := pinWithRetry(lnk, linkPinPath); err != nil {
		return nil, fmt.Errorf("pin extension link to %s: %w", linkPinPath, err)
	}

	k.logger.Debug("attached extension",
		"id", entry.ID, "section", entry.SectionName, "slot", progSpec.AttachTo)

	return mapNames, nil
}

// findProgramBySection returns the program spec occupying the named ELF
// section, or nil. Chain members are identified by section name, which
// is how XDP objects conventionally label their entry points.
func findProgramBySection(collSpec *ebpf.CollectionSpec, sectionName string) *ebpf.ProgramSpec {
	for _, ps := range collSpec.Programs {
		if ps.SectionName == sectionName {
			return ps
		}
	}
	return nil
}
