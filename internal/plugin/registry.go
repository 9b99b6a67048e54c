package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/errdefs"
)

// Module is implemented by bundles of plugins and analyses.
type Module interface {
	Register(r *Registry)
}

// Registry holds the plugins and analyses of a single run.
type Registry struct {
	plugins  map[string]Plugin
	analyses map[string]Analysis
}

// New creates an empty registry populated by the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{
		plugins:  make(map[string]Plugin),
		analyses: make(map[string]Analysis),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Default returns a registry holding every built-in.
func Default() *Registry {
	return New(Builtins{})
}

// Register adds or replaces a plugin.
func (r *Registry) Register(p Plugin) {
	r.plugins[p.Name()] = p
}

// RegisterAnalysis adds or replaces an analysis function.
func (r *Registry) RegisterAnalysis(name string, fn Analysis) {
	r.analyses[name] = fn
}

// Get looks a plugin up by name.
func (r *Registry) Get(name string) (Plugin, error) {
	p, ok := r.plugins[name]
	if !ok {
		return nil, errdefs.Configf("unknown plugin %q (available: %v)", name, r.Names())
	}
	return p, nil
}

// Analysis looks an analysis function up by name.
func (r *Registry) Analysis(name string) (Analysis, bool) {
	fn, ok := r.analyses[name]
	return fn, ok
}

// Names lists the registered plugins, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Select picks the plugin configured by the runtime section: an inline
// filter expression wins, then `plugin`, then `defaultplugin`, then the
// admit-all default.
func (r *Registry) Select(rt config.Runtime) (Plugin, error) {
	if rt.Filter != "" {
		return NewExpr(rt.Filter)
	}
	for _, name := range []string{rt.Plugin, rt.DefaultPlugin} {
		if name != "" {
			return r.Get(name)
		}
	}
	return r.Get(DefaultName)
}

// Bound ties a plugin to a machine so it can act as a criterion filter.
type Bound struct {
	Plugin  Plugin
	Machine config.Machine
}

// Admit implements criterion.Filter.
func (b Bound) Admit(ctx context.Context, c criterion.Combination) (bool, error) {
	ok, err := b.Plugin.Admit(ctx, c, b.Machine)
	if err != nil {
		return true, errdefs.Plugin(b.Plugin.Name(), err)
	}
	return ok, nil
}

// Resources asks the plugin for the job request of c. It reports false when
// the plugin does not size jobs; errors are plugin errors.
func (b Bound) Resources(c criterion.Combination) (nodes, cores int, ok bool, err error) {
	rs, isResourcer := b.Plugin.(Resourcer)
	if !isResourcer {
		return 0, 0, false, nil
	}
	req, ok, err := rs.Resources(c, b.Machine)
	if err != nil {
		return 0, 0, false, errdefs.Plugin(b.Plugin.Name(), err)
	}
	return req.Nodes, req.Cores, ok, nil
}

func (b Bound) String() string {
	return fmt.Sprintf("%s@%dx%d", b.Plugin.Name(), b.Machine.Nodes, b.Machine.CoresPerNode)
}
