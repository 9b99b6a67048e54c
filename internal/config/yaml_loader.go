package config

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/schema"
	"gopkg.in/yaml.v3"
)

// YAMLLoader reads profiles written in YAML.
type YAMLLoader struct{}

// NewLoader returns the default profile loader.
func NewLoader() *YAMLLoader {
	return &YAMLLoader{}
}

// Load implements Loader.
func (l *YAMLLoader) Load(ctx context.Context, path string) (*Profile, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading profile.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Config(errors.Wrap(err, "reading profile"))
	}
	return Parse(ctx, path, data)
}

// Parse decodes and validates a profile document.
func Parse(ctx context.Context, source string, data []byte) (*Profile, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errdefs.Config(errors.Wrapf(err, "parsing profile %s", source))
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := schema.Validate(schema.Profile, source, raw); err != nil {
		return nil, errdefs.Config(errors.WithHint(err, "fix the profile so it matches the documented layout"))
	}

	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errdefs.Config(errors.Wrapf(err, "decoding profile %s", source))
	}
	p.Criterion = normalizeNested(p.Criterion)
	p.Group = normalizeNested(p.Group)
	p.Runtime.Criterions = normalizeNested(p.Runtime.Criterions)

	if err := p.Machine.Normalize(ctx); err != nil {
		return nil, errdefs.Config(err)
	}
	ctxlog.FromContext(ctx).Debug("Profile loaded.",
		"source", source,
		"criteria", len(p.Criterion),
		"groups", len(p.Group),
		"machine", p.Machine,
	)
	return p, nil
}

func normalizeNested(m map[string]map[string]any) map[string]map[string]any {
	for k, v := range m {
		if v == nil {
			m[k] = map[string]any{}
			continue
		}
		if norm, ok := schema.Normalize(v).(map[string]any); ok {
			m[k] = norm
		}
	}
	return m
}
