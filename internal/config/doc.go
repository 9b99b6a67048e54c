// Package config defines the profile model (compilers, criteria, groups,
// machine, runtime) consumed by the expander and the scheduler, along with
// the Loader interface used to read it.
//
// The profile is the single source of truth for the machine description
// during a run. Concrete loaders live next to the interface; the YAML one is
// the only format supported today.
package config
