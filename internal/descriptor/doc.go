// Package descriptor turns `benchgrid.yml` test descriptors into jobs.
//
// Loading a descriptor substitutes the `@TOKEN@` placeholders, decodes the
// YAML (anchors and merge keys included) and validates it against the
// descriptor schema. Expanding a test expression then merges its groups,
// resolves the build and run criterion matrices, and emits one build job per
// build combination and one run job per (build, run) combination pair.
package descriptor
