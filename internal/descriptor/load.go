package descriptor

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/schema"
)

// File is a loaded and validated descriptor.
type File struct {
	Source Source
	// Nodes maps each test expression name to its raw subtree. Template
	// nodes (leading `.`) and empty nodes are not included.
	Nodes map[string]map[string]any
}

// Names returns the test expression names in lexical order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Nodes))
	for n := range f.Nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads the descriptor of src.
func Load(ctx context.Context, src Source, tokens Tokens, buildRoot string) (*File, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, errdefs.Config(errors.Wrapf(err, "read descriptor"))
	}
	return Parse(ctx, src, data, tokens, buildRoot)
}

// Parse is Load on an in-memory document.
func Parse(ctx context.Context, src Source, data []byte, tokens Tokens, buildRoot string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Descriptor: parsing.", "path", src.Path, "label", src.Label, "subtree", src.Subtree)

	content, err := tokens.Replace(string(data), src, buildRoot)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, errdefs.Config(errors.Wrapf(err, "%s: invalid YAML", src.Path))
	}
	f := &File{Source: src, Nodes: map[string]map[string]any{}}
	if raw == nil {
		return f, nil
	}
	doc := schema.Normalize(raw)
	if err := schema.Validate(schema.Descriptor, src.Path, doc); err != nil {
		return nil, errdefs.Config(errors.WithHint(err, "see internal/schema/descriptor.json for the accepted keys"))
	}

	for name, node := range doc.(map[string]any) {
		if strings.HasPrefix(name, ".") {
			logger.Debug("Descriptor: skipping template node.", "node", name)
			continue
		}
		m, ok := node.(map[string]any)
		if !ok || len(m) == 0 {
			continue
		}
		f.Nodes[name] = m
	}
	return f, nil
}
