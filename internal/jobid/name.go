package jobid

import (
	"crypto/md5"
	"encoding/hex"
	"path"
	"strings"
)

// Name is the structured representation of a unique job identifier.
type Name struct {
	Label   string `json:"label"`
	Subtree string `json:"subtree"`
	TE      string `json:"te_name"`
	Suffix  string `json:"suffix,omitempty"`
	Comb    string `json:"comb,omitempty"`
}

// Base returns the normalized `label/subtree/te` path shared by every job
// expanded from the same test expression.
func (n Name) Base() string {
	return cleanPath(n.Label, n.Subtree, n.TE)
}

// String serializes the Name into its canonical form.
func (n Name) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Base(), n.Suffix, n.Comb} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// JID returns the md5 digest of the canonical name.
func (n Name) JID() string {
	return JIDOf(n.String())
}

// JIDOf computes the job id of an already rendered name.
func JIDOf(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// Qualify anchors a bare reference on the directory of n, so that `other`
// written inside a descriptor means `<label>/<subtree>/other`.
func (n Name) Qualify(ref string) string {
	return cleanPath(n.Label, n.Subtree, ref)
}

func cleanPath(elems ...string) string {
	nonEmpty := make([]string, 0, len(elems))
	for _, e := range elems {
		if e != "" {
			nonEmpty = append(nonEmpty, e)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return strings.TrimPrefix(path.Clean(path.Join(nonEmpty...)), "./")
}
