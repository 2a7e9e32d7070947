// Package harness runs conformance scenarios against a complete metastore.
//
// Each scenario opens a fresh store in a temporary data directory, applies
// setup steps, runs the flow steps while recording every outcome and every
// outbound event, and finally evaluates assertions against the resulting
// state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: patch_replaces_label
//	description: "A patch replaces the stored label"
//	config:
//	  validation:
//	    machine_only_predicates: ["https://example.org/harvestedAt"]
//	setup:
//	  - op: put
//	    actor: alice
//	    facts:
//	      - {s: "ex:a", p: "rdfs:label", o: "old"}
//	flow:
//	  - op: patch
//	    actor: alice
//	    facts:
//	      - {s: "ex:a", p: "rdfs:label", o: "new"}
//	    expect:
//	      outcome: committed
//	assertions:
//	  - type: facts_equal
//	    pattern: {s: "ex:a", p: "rdfs:label"}
//	    facts:
//	      - {s: "ex:a", p: "rdfs:label", o: "new"}
//
// Terms may use the prefixes rdf, rdfs, owl, xsd, ms and ex. A fact names
// its object with o (plain literal), iri or blank. An empty graph means the
// metadata graph.
//
// # Operations
//
//   - put, patch: commit the listed facts
//   - delete: remove every fact matching pattern
//   - authorize: set subject's level on resource on behalf of actor
//
// # Assertion Types
//
//   - facts_equal: the facts matching pattern are exactly the listed facts
//   - fact_count: count facts match pattern
//   - permission: actor holds level on resource
//   - event: some flow event matches the given fields
//   - log_length: the transaction log holds count entries
//
// # Deterministic Testing
//
// Commit timestamps come from testutil.StepClock and event IDs from
// testutil.SequentialIDs, so identical scenarios produce identical traces.
// Golden snapshots leave timestamps out entirely.
package harness
