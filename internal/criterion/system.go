package criterion

import (
	"fmt"
	"sort"
)

// ProgramKey is the iterate entry holding program-scoped custom iterators.
const ProgramKey = "program"

// System is the profile-level catalog of criteria, already expanded.
type System struct {
	criteria map[string]*Criterion
}

// NewSystem merges the runtime declarations (option, type, subtitle...) with
// the criterion catalog (values). Catalog entries the runtime does not declare,
// and entries whose values are null, are dropped and reported as warnings.
func NewSystem(runtime, catalog map[string]map[string]any) (*System, []string, error) {
	s := &System{criteria: make(map[string]*Criterion)}
	var warnings []string

	for _, name := range sortedKeys(catalog) {
		decl, declared := runtime[name]
		if !declared {
			warnings = append(warnings, fmt.Sprintf("criterion %q is not declared by the runtime, removing it", name))
			continue
		}
		desc := make(map[string]any, len(decl)+len(catalog[name]))
		for k, v := range decl {
			desc[k] = v
		}
		for k, v := range catalog[name] {
			desc[k] = v
		}
		c, err := New(name, desc)
		if err != nil {
			return nil, warnings, err
		}
		if c.Disabled {
			warnings = append(warnings, fmt.Sprintf("criterion %q has no values, removing it", name))
			continue
		}
		if err := c.Expand(nil); err != nil {
			return nil, warnings, err
		}
		s.criteria[name] = c
	}
	return s, warnings, nil
}

// Get returns the system criterion called name.
func (s *System) Get(name string) (*Criterion, bool) {
	c, ok := s.criteria[name]
	return c, ok
}

// Names returns the system criterion names in sorted order.
func (s *System) Names() []string {
	return sortedKeys(s.criteria)
}

// Resolve computes the active criteria of one phase of a test expression.
//
// iterate is the phase's `iterate` node: entries named after system criteria
// narrow them, the `program` entry declares local iterators. withSystem
// selects whether untouched system criteria take part (run phase) or not
// (build phase).
func (s *System) Resolve(iterate map[string]any, withSystem bool) (*Matrix, []string, error) {
	var warnings []string
	active := make(map[string]*Criterion)

	if withSystem {
		for name, c := range s.criteria {
			active[name] = c
		}
	}

	for _, name := range sortedKeys(iterate) {
		if name == ProgramKey {
			continue
		}
		sys, known := s.criteria[name]
		if !known {
			warnings = append(warnings, fmt.Sprintf("criterion %q is not declared by the runtime, ignoring override", name))
			continue
		}
		override := sys.Clone()
		override.expanded = false
		if err := override.apply(asDescription(iterate[name])); err != nil {
			return nil, warnings, fmt.Errorf("criterion %q: %w", name, err)
		}
		if override.Disabled {
			delete(active, name)
			continue
		}
		if err := override.Expand(sys); err != nil {
			return nil, warnings, err
		}
		override.Intersect(sys)
		if len(override.Values) == 0 {
			warnings = append(warnings, fmt.Sprintf("criterion %q has no value in common with the system", name))
		}
		active[name] = override
	}

	if program, ok := iterate[ProgramKey].(map[string]any); ok {
		for _, name := range sortedKeys(program) {
			desc := asDescription(program[name])
			c, err := New(name, desc)
			if err != nil {
				return nil, warnings, err
			}
			c.Local = true
			if c.Disabled {
				delete(active, name)
				continue
			}
			if err := c.Expand(nil); err != nil {
				return nil, warnings, err
			}
			active[name] = c
		}
	}

	m := &Matrix{}
	for _, name := range sortedKeys(active) {
		m.Criteria = append(m.Criteria, active[name])
	}
	return m, warnings, nil
}

// asDescription accepts both `{values: [...]}` and the bare list shorthand.
func asDescription(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		if _, hasValues := m["values"]; hasValues {
			return m
		}
		if isSequence(m) {
			return map[string]any{"values": m}
		}
		return m
	}
	return map[string]any{"values": v}
}

func isSequence(m map[string]any) bool {
	for k := range m {
		switch k {
		case "from", "to", "of", "op":
		default:
			return false
		}
	}
	return len(m) > 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
