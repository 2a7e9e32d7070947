// Package search mirrors committed facts into a secondary full-text index.
//
// The Synchronizer buffers field operations derived from each change-set and
// submits them to an Engine in fixed-size batches when Flush is called.
// Documents are per-entity bags of multi-valued fields: Add appends a value,
// Remove deletes one occurrence, and documents themselves are never deleted.
//
// Two engines are provided: SQLiteEngine (embedded, the default) and
// WeaviateEngine (a remote Weaviate class).
package search
