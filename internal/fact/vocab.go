package fact

// Namespace is the base IRI for terms the store itself defines.
const Namespace = "https://w3id.org/metastore/ns#"

// Well-known IRIs.
const (
	RDFType      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFSLabel    = "http://www.w3.org/2000/01/rdf-schema#label"
	RDFSComment  = "http://www.w3.org/2000/01/rdf-schema#comment"
	OWLInverseOf = "http://www.w3.org/2002/07/owl#inverseOf"

	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"

	// MachineOnly marks a predicate or class in the vocabulary graph as
	// system-derived: `<p> ms:machineOnly true`.
	MachineOnly = Namespace + "machineOnly"

	// Nil is the sentinel object callers use to clear a field in a patch
	// without naming a replacement value. It is never stored.
	Nil = Namespace + "nil"
)

// NilNode is the Nil sentinel as an object node.
var NilNode = IRI(Nil)

// True is the boolean literal used by vocabulary flags.
var True = TypedLiteral("true", XSDBoolean)
