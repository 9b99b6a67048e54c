// Package criterion resolves the named iterators of a run (MPI ranks, thread
// counts, program-scoped custom iterators) into concrete, ordered value lists
// and enumerates their Cartesian product.
//
// System criteria are declared by the runtime section of a profile and given
// values by its criterion catalog. Test expressions may narrow them (the
// override is intersected with the system values), disable them with
// `values: null`, or declare their own program-scoped iterators.
package criterion
