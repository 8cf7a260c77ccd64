package designspace

import (
	"fmt"
	"strings"

	"galleries/internal/domain"
)

// Reconcile merges a design space returned by the backend into the current
// one. Axes named in revised replace their current counterparts and take
// revised's order; current axes the backend did not mention are kept and
// appended in their original order. A nil revised collection leaves the
// axes untouched. At most one axis stays exploring: the first one wins.
func Reconcile(current domain.DesignSpace, revised *domain.DesignSpace) domain.DesignSpace {
	out := current.Clone()
	if revised == nil {
		return out
	}
	if revised.Concept != "" {
		out.Concept = revised.Concept
	}
	if revised.Domain != "" {
		out.Domain = revised.Domain
	}
	if revised.Axes == nil {
		return out
	}

	seen := make(map[string]bool, len(revised.Axes))
	axes := make([]domain.Axis, 0, len(revised.Axes)+len(current.Axes))
	for _, a := range revised.Axes {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		axes = append(axes, a)
	}
	for _, a := range current.Axes {
		if !seen[a.Name] {
			axes = append(axes, a)
		}
	}
	out.Axes = normalizeExploring(axes)
	return out
}

func normalizeExploring(axes []domain.Axis) []domain.Axis {
	found := false
	for i := range axes {
		if axes[i].Status != domain.AxisExploring {
			continue
		}
		if found {
			axes[i].Status = domain.AxisUnconstrained
		}
		found = true
	}
	return axes
}

// ValidateState checks the shape of a backend response before any of it is
// applied.
func ValidateState(state *domain.GenerationState) error {
	if state == nil {
		return &PayloadError{Field: "response", Reason: "empty body"}
	}
	if state.DesignSpace != nil {
		if err := validateAxes(state.DesignSpace.Axes); err != nil {
			return err
		}
	}
	for i, g := range state.Generations {
		c := strings.TrimSpace(string(g.Content))
		if c == "" || c == "null" {
			return &PayloadError{Field: fmt.Sprintf("generations[%d].content", i), Reason: "missing"}
		}
		for j, t := range g.Tags {
			if t.Dimension == "" {
				return &PayloadError{Field: fmt.Sprintf("generations[%d].tags[%d].dimension", i, j), Reason: "empty"}
			}
		}
	}
	return nil
}

func validateAxes(axes []domain.Axis) error {
	seen := make(map[string]bool, len(axes))
	for i, a := range axes {
		field := fmt.Sprintf("design_space.axes[%d]", i)
		if strings.TrimSpace(a.Name) == "" {
			return &PayloadError{Field: field + ".name", Reason: "empty"}
		}
		if !a.Status.Valid() {
			return &PayloadError{Field: field + ".status", Reason: fmt.Sprintf("unknown status %q", a.Status)}
		}
		if seen[a.Name] {
			return &PayloadError{Field: field + ".name", Reason: fmt.Sprintf("duplicate axis %q", a.Name)}
		}
		seen[a.Name] = true
	}
	return nil
}
