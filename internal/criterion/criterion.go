package criterion

import (
	"fmt"
	"sort"
)

// Criterion is a named axis of variation.
type Criterion struct {
	Name     string
	Subtitle string
	// Option is the prefix (or suffix when After is false) glued to a value.
	Option  string
	After   bool
	Env     bool
	Local   bool
	Numeric bool
	Aliases map[string]string
	// Disabled is set by `values: null`: the axis is excluded entirely.
	Disabled bool
	Values   []Value

	input    []any
	expanded bool
}

// New builds a criterion from its decoded description. Keys that are absent
// keep their defaults; an explicit `values: null` disables the criterion.
func New(name string, desc map[string]any) (*Criterion, error) {
	c := &Criterion{
		Name:     name,
		Subtitle: name,
		After:    true,
		Aliases:  map[string]string{},
	}
	if err := c.apply(desc); err != nil {
		return nil, fmt.Errorf("criterion %q: %w", name, err)
	}
	return c, nil
}

func (c *Criterion) apply(desc map[string]any) error {
	for k, v := range desc {
		switch k {
		case "subtitle":
			c.Subtitle = fmt.Sprint(v)
		case "option":
			c.Option = fmt.Sprint(v)
		case "position":
			switch v {
			case "after", nil:
				c.After = true
			case "before":
				c.After = false
			default:
				return fmt.Errorf("position must be 'before' or 'after', got %v", v)
			}
		case "type":
			switch v {
			case "argument", nil:
				c.Env = false
			case "environment":
				c.Env = true
			default:
				return fmt.Errorf("type must be 'argument' or 'environment', got %v", v)
			}
		case "local":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("local must be a boolean")
			}
			c.Local = b
		case "numeric":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("numeric must be a boolean")
			}
			c.Numeric = b
		case "aliases":
			m, ok := v.(map[string]any)
			if !ok && v != nil {
				return fmt.Errorf("aliases must be a mapping")
			}
			for from, to := range m {
				c.Aliases[from] = fmt.Sprint(to)
			}
		case "values":
			if err := c.setInput(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Criterion) setInput(v any) error {
	c.expanded = false
	c.Values = nil
	switch x := v.(type) {
	case nil:
		c.Disabled = true
		c.input = nil
	case []any:
		c.Disabled = false
		c.input = x
	case map[string]any, int, int64, uint64, float64, string, bool:
		c.Disabled = false
		c.input = []any{x}
	default:
		return fmt.Errorf("values must be a scalar, a list or a sequence, got %T", v)
	}
	return nil
}

// Clone returns a deep copy safe to override per test expression.
func (c *Criterion) Clone() *Criterion {
	cp := *c
	cp.Aliases = make(map[string]string, len(c.Aliases))
	for k, v := range c.Aliases {
		cp.Aliases[k] = v
	}
	cp.Values = append([]Value(nil), c.Values...)
	cp.input = append([]any(nil), c.input...)
	return &cp
}

// Expand turns the input list into concrete values. Sequences without bounds
// take them from ref (min/max of the system criterion), else 0..100.
func (c *Criterion) Expand(ref *Criterion) error {
	if c.expanded {
		return nil
	}
	c.expanded = true
	if c.Disabled {
		return nil
	}

	start, end := 0.0, 100.0
	if ref != nil && !ref.Disabled {
		if err := ref.Expand(nil); err != nil {
			return err
		}
		if lo, hi, ok := ref.bounds(); ok {
			start, end = lo, hi
		}
	}

	var values []Value
	for _, in := range c.input {
		if seq, ok := in.(map[string]any); ok {
			if !c.Numeric {
				return fmt.Errorf("criterion %q: sequences are only allowed on numeric criteria", c.Name)
			}
			s, err := parseSequence(seq, start, end)
			if err != nil {
				return fmt.Errorf("criterion %q: %w", c.Name, err)
			}
			generated, err := s.values()
			if err != nil {
				return fmt.Errorf("criterion %q: %w", c.Name, err)
			}
			values = append(values, generated...)
			continue
		}
		v, err := valueOf(in)
		if err != nil {
			return fmt.Errorf("criterion %q: %w", c.Name, err)
		}
		if c.Numeric && !v.IsNumeric() {
			return fmt.Errorf("criterion %q: numeric criterion got %q", c.Name, v.String())
		}
		values = append(values, v)
	}
	c.Values = dedupe(values)
	if c.Numeric {
		sort.SliceStable(c.Values, func(i, j int) bool {
			a, _ := c.Values[i].Number()
			b, _ := c.Values[j].Number()
			return a < b
		})
	}
	return nil
}

func (c *Criterion) bounds() (float64, float64, bool) {
	var lo, hi float64
	found := false
	for _, v := range c.Values {
		f, ok := v.Number()
		if !ok {
			continue
		}
		if !found || f < lo {
			lo = f
		}
		if !found || f > hi {
			hi = f
		}
		found = true
	}
	return lo, hi, found
}

// Intersect keeps only the values also present in other, in c's order.
func (c *Criterion) Intersect(other *Criterion) {
	if c.Disabled || other.Disabled {
		c.Disabled = true
		c.Values = nil
		return
	}
	kept := c.Values[:0]
	for _, v := range c.Values {
		for _, o := range other.Values {
			if v.equal(o) {
				kept = append(kept, v)
				break
			}
		}
	}
	c.Values = kept
}

// Alias returns the runtime spelling of a value.
func (c *Criterion) Alias(v Value) string {
	s := v.String()
	if a, ok := c.Aliases[s]; ok {
		return a
	}
	return s
}

// Concretize renders the option/value token as given to the command line or
// the environment.
func (c *Criterion) Concretize(v Value) string {
	val := c.Alias(v)
	if c.After {
		return c.Option + val
	}
	return val + c.Option
}

func dedupe(values []Value) []Value {
	out := make([]Value, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v.String()]; ok {
			continue
		}
		seen[v.String()] = struct{}{}
		out = append(out, v)
	}
	return out
}
