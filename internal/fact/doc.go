// Package fact defines the data model shared by every metastore component.
//
// A Fact is an ordered (graph, subject, predicate, object) tuple. Facts are
// values: two facts are the same fact when every component is equal, and the
// canonical Key of a fact is its identity everywhere (sets, store keys, index
// documents, log entries).
//
// A ChangeSet pairs the facts to remove with the facts to add for one
// mutation. Normalize enforces the two change-set invariants before any other
// processing:
//   - a fact present in both sets is dropped from both
//   - no added fact carries the Nil sentinel object
//
// # Canonical Encoding
//
// Log entries and store values are serialized with MarshalCanonical, an
// RFC 8785 canonical JSON encoder with NFC string normalization. Entry
// checksums use SHA-256 with domain separation (see hash.go).
package fact
