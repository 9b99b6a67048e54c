package criterion

import (
	"fmt"
	"math"
	"strings"
)

// sequence is the `{from, to, of, op}` generator form of a value list entry.
type sequence struct {
	from, to, of float64
	op           string
}

func parseSequence(raw map[string]any, start, end float64) (sequence, error) {
	seq := sequence{from: start, to: end, of: 1, op: "seq"}
	for k, v := range raw {
		switch k {
		case "from", "to", "of":
			f, ok := toFloat(v)
			if !ok {
				return seq, fmt.Errorf("sequence field %q must be numeric, got %v", k, v)
			}
			switch k {
			case "from":
				seq.from = f
			case "to":
				seq.to = f
			case "of":
				seq.of = f
			}
		case "op":
			s, ok := v.(string)
			if !ok {
				return seq, fmt.Errorf("sequence op must be a string, got %v", v)
			}
			seq.op = strings.ToLower(s)
		default:
			return seq, fmt.Errorf("invalid sequence field %q", k)
		}
	}
	return seq, nil
}

func (s sequence) values() ([]Value, error) {
	var out []Value
	switch s.op {
	case "seq", "arithmetic", "ari":
		if s.of <= 0 {
			return nil, fmt.Errorf("arithmetic sequence step must be positive, got %v", s.of)
		}
		for v := s.from; v <= s.to; v += s.of {
			out = append(out, numberValue(v))
		}
	case "mul", "geometric", "geo":
		switch {
		case s.from == 0:
			out = append(out, IntValue(0))
		case s.of == -1 || s.of == 0 || s.of == 1:
			out = append(out, numberValue(math.Pow(s.from, s.of)))
		default:
			for v := s.from; v <= s.to; v *= s.of {
				out = append(out, numberValue(v))
			}
		}
	case "pow", "powerof":
		if s.of == 0 {
			return []Value{IntValue(0)}, nil
		}
		lo := math.Ceil(math.Pow(s.from, 1/s.of) - 1e-9)
		hi := math.Floor(math.Pow(s.to, 1/s.of) + 1e-9)
		for i := lo; i <= hi; i++ {
			out = append(out, numberValue(math.Pow(i, s.of)))
		}
	default:
		return nil, fmt.Errorf("unknown sequence op %q", s.op)
	}
	return out, nil
}

func numberValue(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
