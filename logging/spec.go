package logging

import (
	"fmt"
	"strings"
)

// Spec is a parsed log specification: a base level plus optional
// per-component overrides.
//
// Format: "<base-level>[,<component>=<level>]..."
//
//	"info"                      base level info
//	"warn,manager=debug"        base warn, manager at debug
//	"info,daemon=trace,store=debug"
type Spec struct {
	// BaseLevel applies to components without an override.
	BaseLevel Level
	// Components maps component names to their levels.
	Components map[string]Level
}

// ParseSpec parses a log specification string. The empty string yields
// base level info with no overrides.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{
		BaseLevel:  LevelInfo,
		Components: make(map[string]Level),
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return spec, nil
	}

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.Index(part, "=")
		if idx == -1 {
			// A bare level is the base level; it must come first.
			if i != 0 {
				return spec, fmt.Errorf("base level %q must be first in spec", part)
			}
			level, err := ParseLevel(part)
			if err != nil {
				return spec, err
			}
			spec.BaseLevel = level
			continue
		}

		component := strings.TrimSpace(part[:idx])
		if component == "" {
			return spec, fmt.Errorf("empty component name in %q", part)
		}
		level, err := ParseLevel(part[idx+1:])
		if err != nil {
			return spec, fmt.Errorf("invalid level for component %q: %w", component, err)
		}
		spec.Components[component] = level
	}

	return spec, nil
}

// LevelFor returns the effective level for a component: its override
// if one exists, the base level otherwise.
func (s *Spec) LevelFor(component string) Level {
	if level, ok := s.Components[component]; ok {
		return level
	}
	return s.BaseLevel
}
