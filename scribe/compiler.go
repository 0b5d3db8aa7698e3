package scribe

import (
	"context"
	"os"
	"time"

	"github.com/hesusruiz/scribe/biblio"
	"go.uber.org/zap"
)

// A Compiler runs the full pipeline over one source document: lexing,
// parsing, registry building, resolution, validation and emission. The
// zero value is usable; fields customize individual stages.
type Compiler struct {
	// Biblio resolves citation keys. nil makes every citation fail.
	Biblio biblio.Resolver

	// Normalize overrides the registry key normalization.
	Normalize Normalizer

	// LookupTimeout bounds each individual bibliographic lookup.
	LookupTimeout time.Duration

	// Log receives progress messages. nil disables them.
	Log *zap.SugaredLogger
}

// A Result is the outcome of one compilation: the rendered output plus
// everything the pipeline learned about the document.
type Result struct {
	Doc   *Document
	HTML  []byte
	Diags []Diagnostic
}

// Failed reports whether the compilation produced any error-severity
// diagnostic. Output is still produced for a failed compilation; Failed
// tells CI to reject it.
func (r *Result) Failed() bool {
	return r.Doc.Diags.HasErrors()
}

// Compile runs the pipeline over src. The returned error is non-nil only
// when the pipeline could not run to completion; diagnosable problems in
// the document itself never abort compilation and are reported through
// the Result instead.
func (c *Compiler) Compile(ctx context.Context, fileName string, src []byte) (*Result, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	doc, err := Parse(fileName, src)
	if err != nil {
		return nil, err
	}
	log.Debugw("parsed", "file", fileName, "diagnostics", doc.Diags.Len())

	reg := NewRegistry(c.Normalize)
	reg.Build(doc)
	log.Debugw("registry built", "file", fileName, "entries", reg.Len())

	// A localBiblio mapping in the front matter shadows the configured
	// backend, so a document can pin its own citation records
	backend := c.Biblio
	if local, err := biblio.FrontMatter(doc.RawMeta); err == nil && len(local) > 0 {
		log.Debugw("local bibliography", "file", fileName, "entries", len(local))
		if backend != nil {
			backend = biblio.Chain{local, backend}
		} else {
			backend = local
		}
	}

	NewResolver(reg, backend, c.LookupTimeout).Resolve(ctx, doc)
	NewValidator(doc).Validate()
	log.Debugw("resolved", "file", fileName, "diagnostics", doc.Diags.Len())

	doc.Freeze()

	em, err := NewEmitter(doc)
	if err != nil {
		return nil, err
	}
	html, err := em.Emit()
	if err != nil {
		return nil, err
	}
	log.Debugw("emitted", "file", fileName, "bytes", len(html))

	return &Result{
		Doc:   doc,
		HTML:  html,
		Diags: doc.Diags.Items(),
	}, nil
}

// CompileFile reads fileName and compiles its contents.
func (c *Compiler) CompileFile(ctx context.Context, fileName string) (*Result, error) {
	src, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return c.Compile(ctx, fileName, src)
}
