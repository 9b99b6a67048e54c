package jobid

import (
	"fmt"
	"strings"
	"unicode"
)

// BuildSuffix restricts a test expression reference to its build jobs.
const BuildSuffix = "@build"

// Ref is a parsed `depends_on` entry. A qualified reference contains a path
// separator and is resolved as is; a bare one is first tried relative to the
// referencing job's file.
type Ref struct {
	Raw       string
	Qualified bool
	// BuildOnly is set by the `@build` suffix used for `build.reuse`.
	BuildOnly bool
}

// BuildRef renders a reference to the build jobs of te.
func BuildRef(te string) string {
	return te + BuildSuffix
}

// ParseRef validates a dependency reference.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("dependency reference cannot be empty")
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return Ref{}, fmt.Errorf("dependency reference %q contains whitespace", raw)
	}
	buildOnly := strings.HasSuffix(raw, BuildSuffix)
	raw = strings.TrimSuffix(raw, BuildSuffix)
	if raw == "" || strings.Contains(raw, "@") {
		return Ref{}, fmt.Errorf("dependency reference %q is malformed", raw)
	}
	if strings.HasPrefix(raw, "/") {
		return Ref{}, fmt.Errorf("dependency reference %q must be relative to a label", raw)
	}
	for _, segment := range strings.Split(raw, "/") {
		switch segment {
		case "":
			return Ref{}, fmt.Errorf("dependency reference %q contains an empty segment", raw)
		case "..":
			return Ref{}, fmt.Errorf("dependency reference %q escapes its label", raw)
		}
	}
	return Ref{Raw: raw, Qualified: strings.Contains(raw, "/"), BuildOnly: buildOnly}, nil
}

// Candidates lists the names a reference may denote, most specific first.
func (r Ref) Candidates(from Name) []string {
	if r.Qualified {
		return []string{cleanPath(r.Raw)}
	}
	local := from.Qualify(r.Raw)
	if local == r.Raw {
		return []string{r.Raw}
	}
	return []string{local, r.Raw}
}
