// Package validation decides whether a proposed change-set may be applied.
//
// A Validator inspects one graph's share of a change-set and reports zero or
// more Violations through a callback. A Chain runs its validators in order
// and never stops at the first violation, so a rejected commit lists every
// problem at once. An error returned by a validator is an infrastructure
// failure (for example, the permission store is unreachable), not a
// violation, and aborts the chain.
//
// Validators see the store as it was before the change through a Reader.
package validation
