// Package lifecycle keeps creation and modification bookkeeping for
// entities and materializes inverse-property facts before validation.
//
// Inverse inference is bounded: each resource-valued fact whose predicate
// has a registered inverse yields exactly one counterpart fact, and the
// counterparts are not inferred from again. Inverse lookups are memoised in
// an InverseCache that lives for a single commit.
//
// Lifecycle records are kept in the primary store's metadata keyspace so
// they are written in the same transaction as the facts they describe.
package lifecycle
