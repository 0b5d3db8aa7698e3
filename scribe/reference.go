package scribe

import (
	"strconv"

	"github.com/hesusruiz/scribe/biblio"
)

// A RefKind tells which shorthand syntax produced a reference expression.
type RefKind uint32

const (
	// TermRef is an autolink to a defined term: [=term=].
	TermRef RefKind = iota
	// AnchorRef is a link to a local anchor or section: [[#anchor]].
	AnchorRef
	// CitationRef is a bibliographic reference: [[KEY]] or [[!KEY]].
	CitationRef
	// ExplicitRef is an explicit cross-reference with a target override:
	// <x-ref "id">.
	ExplicitRef
)

func (k RefKind) String() string {
	switch k {
	case TermRef:
		return "term"
	case AnchorRef:
		return "anchor"
	case CitationRef:
		return "citation"
	case ExplicitRef:
		return "xref"
	}
	return "Invalid(" + strconv.Itoa(int(k)) + ")"
}

// A ResolutionState is the terminal (or initial) state of a reference
// expression. The Parser creates all references Unresolved; the Resolver must
// move every one of them to a terminal state, which the Validator verifies.
type ResolutionState uint32

const (
	Unresolved ResolutionState = iota
	Resolved
	Ambiguous
	ExternalResolved
	Failed
)

func (s ResolutionState) String() string {
	switch s {
	case Unresolved:
		return "Unresolved"
	case Resolved:
		return "Resolved"
	case Ambiguous:
		return "Ambiguous"
	case ExternalResolved:
		return "ExternalResolved"
	case Failed:
		return "Failed"
	}
	return "Invalid(" + strconv.Itoa(int(s)) + ")"
}

// A Reference is the payload of a ReferenceNode: the literal text the author
// used, the optional display override, and the resolution state filled in by
// the Resolver.
type Reference struct {
	Kind RefKind

	// Key is the literal target text the author wrote, before normalization.
	Key string

	// Display is the optional '|display text' override; empty means the
	// rendered label is derived from the key or the resolved target.
	Display []byte

	// Normative marks [[!KEY]] citations. Informative and normative
	// citations resolve identically.
	Normative bool

	State ResolutionState

	// Target is the resolved local node, set when State is Resolved.
	Target *Node

	// Citation is the external record, set when State is ExternalResolved.
	Citation *biblio.CitationRecord

	// Candidates lists the normalized keys of all close matches when State
	// is Ambiguous.
	Candidates []string
}

func (r *Reference) String() string {
	return r.Kind.String() + "[" + r.Key + "]:" + r.State.String()
}

// Terminal reports whether the reference reached a final resolution state.
func (r *Reference) Terminal() bool {
	return r.State != Unresolved
}
