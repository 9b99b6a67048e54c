// Package dag builds the dependency graph of a run.
//
// The graph is an arena: jobs live in a slice and edges are index lists in
// both directions, so the scheduler can walk dependencies and dependents
// without maps or pointers between vertices. Build resolves every
// `depends_on` reference, fanning test expression references out to all the
// jobs they expanded to, and rejects duplicate names, dangling references and
// cycles before anything runs.
package dag
