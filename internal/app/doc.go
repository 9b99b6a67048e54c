// Package app contains the core application logic. It wires the profile,
// the descriptor expander, the dependency graph, the scheduler and the
// publishers into a single run, decoupled from any specific entrypoint like a
// CLI.
package app
