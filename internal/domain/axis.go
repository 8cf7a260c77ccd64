package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type AxisStatus string

const (
	AxisExploring     AxisStatus = "exploring"
	AxisConstrained   AxisStatus = "constrained"
	AxisUnconstrained AxisStatus = "unconstrained"
)

// Valid reports whether s is one of the three known statuses.
func (s AxisStatus) Valid() bool {
	switch s {
	case AxisExploring, AxisConstrained, AxisUnconstrained:
		return true
	}
	return false
}

// Axis is one named dimension of a design space.
type Axis struct {
	Name   string     `json:"name"`
	Status AxisStatus `json:"status"`
	Value  string     `json:"value"`
}

// DesignSpace is the ordered axis collection of a session.
// Concept and Domain are carried along because the backend expects them
// in the regenerate body.
type DesignSpace struct {
	Concept string `json:"concept,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Axes    []Axis `json:"axes"`
}

// Axis returns a pointer into Axes for the named axis, or nil.
func (d *DesignSpace) Axis(name string) *Axis {
	for i := range d.Axes {
		if d.Axes[i].Name == name {
			return &d.Axes[i]
		}
	}
	return nil
}

// Exploring returns the names of all axes currently exploring.
func (d DesignSpace) Exploring() []string {
	var names []string
	for _, a := range d.Axes {
		if a.Status == AxisExploring {
			names = append(names, a.Name)
		}
	}
	return names
}

// Clone returns a deep copy.
func (d DesignSpace) Clone() DesignSpace {
	out := d
	if d.Axes != nil {
		out.Axes = make([]Axis, len(d.Axes))
		copy(out.Axes, d.Axes)
	}
	return out
}

// UnmarshalJSON accepts both the object form {concept, domain, axes} and a
// bare axis array.
func (d *DesignSpace) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = DesignSpace{}
		return nil
	}
	if trimmed[0] == '[' {
		var axes []Axis
		if err := json.Unmarshal(trimmed, &axes); err != nil {
			return fmt.Errorf("design space axes: %w", err)
		}
		*d = DesignSpace{Axes: axes}
		return nil
	}
	type plain DesignSpace
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("design space: %w", err)
	}
	*d = DesignSpace(p)
	return nil
}
