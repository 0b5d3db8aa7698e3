package scribe

import (
	"fmt"

	"github.com/hesusruiz/scribe/biblio"
	"github.com/hesusruiz/vcutils/yaml"
)

// A SyntaxError is an unrecoverable parsing failure, carrying the position
// where parsing had to stop. Recoverable problems become Diagnostics instead.
type SyntaxError struct {
	Filename string
	Line     int
	Column   int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Column, e.Msg)
}

// A Document is the result of parsing one source file, owning the node tree,
// the registry, the accumulated diagnostics and the front-matter metadata.
//
// Lifecycle: created by the Parser, the Registry Builder populates Registry,
// the Resolver mutates the reference expressions in place, then the document
// is frozen before emission. The Emitter only reads.
type Document struct {
	FileName string
	Root     *Node
	Config   *yaml.YAML
	Registry *Registry
	Diags    *DiagnosticList

	// RawMeta is the unparsed front matter text, kept so collaborators can
	// decode typed sections of it (e.g. the inline bibliography).
	RawMeta []byte

	// Citations collects the external records actually used by resolved
	// citation references, keyed by the author's citation key. The Emitter
	// renders them, sorted, as the References section.
	Citations map[string]*biblio.CitationRecord

	frozen bool
}

// Freeze marks the document read-only. Called after validation, before
// emission.
func (doc *Document) Freeze() {
	doc.frozen = true
}

// Frozen reports whether the document has been frozen.
func (doc *Document) Frozen() bool {
	return doc.frozen
}

// Title returns the document title from the metadata, or the file name when
// no title was declared.
func (doc *Document) Title() string {
	return doc.Config.String("title", doc.FileName)
}
