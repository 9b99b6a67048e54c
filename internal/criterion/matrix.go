package criterion

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Filter may veto a combination. A vetoed combination is silently skipped; a
// filter error admits the combination and attaches a warning to it.
type Filter interface {
	Admit(ctx context.Context, c Combination) (bool, error)
}

// Matrix is the set of active criteria of one phase, sorted by name.
type Matrix struct {
	Criteria []*Criterion
}

// Size is the number of combinations before filtering.
func (m *Matrix) Size() int {
	n := 1
	for _, c := range m.Criteria {
		n *= len(c.Values)
	}
	return n
}

// Product enumerates every combination in a stable order: criteria sorted by
// name, values in their resolved order, last criterion varying fastest.
func (m *Matrix) Product(ctx context.Context, f Filter) []Combination {
	if m.Size() == 0 {
		return nil
	}
	var out []Combination
	idx := make([]int, len(m.Criteria))
	for {
		comb := Combination{entries: make([]entry, len(m.Criteria))}
		for i, c := range m.Criteria {
			comb.entries[i] = entry{criterion: c, value: c.Values[idx[i]]}
		}
		if f == nil {
			out = append(out, comb)
		} else {
			ok, err := f.Admit(ctx, comb)
			switch {
			case err != nil:
				comb.Warnings = append(comb.Warnings, fmt.Sprintf("filter failed, combination kept: %v", err))
				out = append(out, comb)
			case ok:
				out = append(out, comb)
			}
		}

		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(m.Criteria[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

type entry struct {
	criterion *Criterion
	value     Value
}

// Combination is one point of a matrix.
type Combination struct {
	entries  []entry
	Warnings []string
}

// Len returns the number of criteria in the combination.
func (c Combination) Len() int { return len(c.entries) }

// Get returns the value of the named criterion.
func (c Combination) Get(name string) (Value, bool) {
	for _, e := range c.entries {
		if e.criterion.Name == name {
			return e.value, true
		}
	}
	return Value{}, false
}

// Names lists the criteria in the combination, sorted.
func (c Combination) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.criterion.Name
	}
	return names
}

// Map exposes the combination as criterion name to raw value string.
func (c Combination) Map() map[string]string {
	m := make(map[string]string, len(c.entries))
	for _, e := range c.entries {
		m[e.criterion.Name] = e.value.String()
	}
	return m
}

// Label builds the name fragment: `subtitle+value` per criterion, sorted by
// criterion name, joined with `_`.
func (c Combination) Label() string {
	parts := make([]string, len(c.entries))
	for i, e := range c.entries {
		parts[i] = e.criterion.Subtitle + strings.ReplaceAll(e.value.String(), " ", "-")
	}
	return strings.Join(parts, "_")
}

// Render splits the combination into exported variables, launcher arguments
// and program-scoped parameters.
func (c Combination) Render() (env, args, params []string) {
	for _, e := range c.entries {
		token := e.criterion.Concretize(e.value)
		switch {
		case e.criterion.Env:
			env = append(env, token)
		case e.criterion.Local:
			params = append(params, token)
		default:
			args = append(args, token)
		}
	}
	return env, args, params
}

// Merge returns the union of two combinations over disjoint criteria.
func (c Combination) Merge(o Combination) Combination {
	out := Combination{
		entries:  append(append([]entry(nil), c.entries...), o.entries...),
		Warnings: append(append([]string(nil), c.Warnings...), o.Warnings...),
	}
	sort.SliceStable(out.entries, func(i, j int) bool {
		return out.entries[i].criterion.Name < out.entries[j].criterion.Name
	})
	return out
}
