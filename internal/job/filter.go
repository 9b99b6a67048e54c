package job

import (
	"fmt"
	"strings"
)

// TagFilter selects jobs by tag, from a `a,b,!c` expression: a job carrying
// a denied tag is rejected; when allowed tags are listed, a job must carry
// at least one of them.
type TagFilter struct {
	Allow []string
	Deny  []string
}

// ParseTagFilter parses a comma separated list of tags, `!` marking denials.
// The empty expression accepts every job.
func ParseTagFilter(expr string) (TagFilter, error) {
	var f TagFilter
	for _, term := range strings.Split(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if deny, ok := strings.CutPrefix(term, "!"); ok {
			if deny == "" {
				return TagFilter{}, fmt.Errorf("empty negated tag in %q", expr)
			}
			f.Deny = append(f.Deny, deny)
			continue
		}
		f.Allow = append(f.Allow, term)
	}
	return f, nil
}

// Empty reports whether the filter accepts everything.
func (f TagFilter) Empty() bool {
	return len(f.Allow) == 0 && len(f.Deny) == 0
}

// Match applies the filter to j.
func (f TagFilter) Match(j *Job) bool {
	for _, t := range f.Deny {
		if j.HasTag(t) {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, t := range f.Allow {
		if j.HasTag(t) {
			return true
		}
	}
	return false
}

func (f TagFilter) String() string {
	terms := append([]string(nil), f.Allow...)
	for _, d := range f.Deny {
		terms = append(terms, "!"+d)
	}
	return strings.Join(terms, ",")
}
