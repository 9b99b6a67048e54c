package descriptor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/fsutil"
)

// FileName is the descriptor file looked up under every root.
const FileName = "benchgrid.yml"

// Source is one descriptor file found under a labelled root directory.
type Source struct {
	Label string
	// Root is the absolute path of the labelled directory.
	Root string
	// Subtree is the slash-separated directory of the file relative to Root,
	// empty for a descriptor at the root.
	Subtree string
	Path    string
}

// Dir is the directory holding the descriptor.
func (s Source) Dir() string {
	return filepath.Join(s.Root, filepath.FromSlash(s.Subtree))
}

// ParseRoot splits a `label:path` argument. A bare path is labelled with its
// base name.
func ParseRoot(arg string) (label, dir string, err error) {
	dir = arg
	if i := strings.Index(arg, ":"); i > 0 {
		label, dir = arg[:i], arg[i+1:]
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", "", errdefs.Config(err)
	}
	if label == "" {
		label = filepath.Base(dir)
	}
	if strings.ContainsAny(label, "/@ \t") {
		return "", "", errdefs.Configf("invalid label %q", label)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", "", errdefs.Configf("test directory %s: %v", dir, err)
	}
	if !info.IsDir() {
		return "", "", errdefs.Configf("test directory %s is not a directory", dir)
	}
	return label, dir, nil
}

// Discover finds every descriptor under the given roots. Two roots cannot
// share a label.
func Discover(roots []string) ([]Source, error) {
	var sources []Source
	labels := map[string]string{}
	for _, arg := range roots {
		label, dir, err := ParseRoot(arg)
		if err != nil {
			return nil, err
		}
		if prev, dup := labels[label]; dup {
			return nil, errdefs.Configf("label %q used by both %s and %s", label, prev, dir)
		}
		labels[label] = dir

		files, err := fsutil.FindFiles(dir, "**/"+FileName)
		if err != nil {
			return nil, errdefs.Config(err)
		}
		for _, f := range files {
			rel, err := filepath.Rel(dir, filepath.Dir(f))
			if err != nil {
				return nil, errdefs.Config(err)
			}
			if rel == "." {
				rel = ""
			}
			sources = append(sources, Source{
				Label:   label,
				Root:    dir,
				Subtree: filepath.ToSlash(rel),
				Path:    f,
			})
		}
	}
	return sources, nil
}
