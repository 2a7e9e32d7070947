// Package quadstore is the primary store: the current state of every graph,
// kept in an embedded BadgerDB.
//
// Each fact is written under four keys so that any single bound component
// of a pattern selects a key range:
//
//	f/<fact key>                     all facts
//	s/<subject key> 0x00 <fact key>  by subject
//	p/<predicate> 0x00 <fact key>    by predicate
//	o/<object key> 0x00 <fact key>   by object
//
// Every key carries the fact's canonical JSON as its value. A separate m/
// keyspace holds store-managed metadata, such as lifecycle records, written
// in the same transaction as the facts it describes.
//
// All mutation goes through Update, which commits or discards as a unit.
package quadstore
