package scribe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hesusruiz/scribe/biblio"
)

// DefaultLookupTimeout bounds each external bibliographic lookup.
const DefaultLookupTimeout = 5 * time.Second

// A Resolver walks the parsed tree and moves every reference from
// Unresolved to one of its terminal states, consulting the Registry for
// internal targets and the bibliographic backend for citation keys.
//
// Resolution never aborts the compilation: a reference that cannot be
// resolved is marked Failed or Ambiguous and reported as a diagnostic, and
// the walk continues.
type Resolver struct {
	reg     *Registry
	biblio  biblio.Resolver
	timeout time.Duration

	// missSeverity controls how a lookup transport failure is reported.
	// Lookup misses (key not found) are always errors.
	missSeverity Severity
}

// NewResolver returns a resolver over reg. backend may be nil, in which
// case every citation reference fails with a dangling-reference error.
func NewResolver(reg *Registry, backend biblio.Resolver, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{
		reg:          reg,
		biblio:       backend,
		timeout:      timeout,
		missSeverity: SeverityError,
	}
}

// Resolve performs the second pass over doc: every ReferenceNode in the
// tree is resolved against the now-complete Registry, and citation keys
// are looked up in the bibliographic backend. ctx bounds the external
// lookups as a whole; each individual lookup is additionally bounded by
// the resolver's timeout.
func (r *Resolver) Resolve(ctx context.Context, doc *Document) {
	doc.Root.Walk(func(n *Node) bool {
		if n.Type != ReferenceNode || n.Ref == nil {
			return true
		}
		r.resolveOne(ctx, doc, n)
		return true
	})
}

func (r *Resolver) resolveOne(ctx context.Context, doc *Document, n *Node) {
	ref := n.Ref

	switch ref.Kind {
	case CitationRef:
		r.resolveCitation(ctx, doc, n)
		return
	case AnchorRef, ExplicitRef:
		r.resolveExact(doc, n)
		return
	case TermRef:
		r.resolveTerm(doc, n)
		return
	}
}

// resolveExact handles the reference kinds that name their target id
// literally: no variant matching applies.
func (r *Resolver) resolveExact(doc *Document, n *Node) {
	ref := n.Ref
	if e, found := r.reg.Lookup(ref.Key); found {
		ref.State = Resolved
		ref.Target = e.Node
		return
	}
	ref.State = Failed
	doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
		"reference to %q does not match any anchor or heading", ref.Key)
}

// resolveTerm matches a term reference against the registry, trying the
// exact key first and then close morphological variants. A single variant
// match resolves; more than one is ambiguous.
func (r *Resolver) resolveTerm(doc *Document, n *Node) {
	ref := n.Ref

	if e, found := r.reg.Lookup(ref.Key); found {
		ref.State = Resolved
		ref.Target = e.Node
		return
	}

	candidates := r.reg.Variants(ref.Key)
	switch len(candidates) {
	case 0:
		ref.State = Failed
		doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
			"reference to %q does not match any definition", ref.Key)
	case 1:
		ref.State = Resolved
		ref.Target = candidates[0].Node
	default:
		ref.State = Ambiguous
		for _, c := range candidates {
			ref.Candidates = append(ref.Candidates, c.Key)
		}
		doc.Diags.Errorf(AmbiguousReference, n.LineNumber, n.Indentation,
			"reference to %q matches multiple definitions: %s",
			ref.Key, strings.Join(ref.Candidates, ", "))
	}
}

// resolveCitation resolves the key locally when an anchor or definition
// declares it, and otherwise looks it up in the bibliographic backend with
// a per-lookup deadline. A successful lookup also records the citation in
// the document for the bibliography section.
func (r *Resolver) resolveCitation(ctx context.Context, doc *Document, n *Node) {
	ref := n.Ref

	// A local declaration of the key shadows the bibliographic database
	if e, found := r.reg.Lookup(ref.Key); found {
		ref.State = Resolved
		ref.Target = e.Node
		return
	}

	// The same key may be cited many times, look it up once
	if rec, cited := doc.Citations[strings.ToLower(ref.Key)]; cited {
		if rec != nil {
			ref.State = ExternalResolved
			ref.Citation = rec
		} else {
			ref.State = Failed
		}
		return
	}

	if r.biblio == nil {
		ref.State = Failed
		doc.Citations[strings.ToLower(ref.Key)] = nil
		doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
			"citation %q cannot be resolved, no bibliographic backend configured", ref.Key)
		return
	}

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	rec, err := r.biblio.Lookup(lctx, ref.Key)
	cancel()

	switch {
	case err == nil:
		ref.State = ExternalResolved
		ref.Citation = rec
		rec.Key = ref.Key
		doc.Citations[strings.ToLower(ref.Key)] = rec

	case errors.Is(err, biblio.ErrNotFound):
		ref.State = Failed
		doc.Citations[strings.ToLower(ref.Key)] = nil
		doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
			"citation %q not found in the bibliographic database", ref.Key)

	default:
		// Transport and deadline failures are distinct from a miss: the key
		// may well exist, we just could not reach the backend.
		ref.State = Failed
		doc.Citations[strings.ToLower(ref.Key)] = nil
		doc.Diags.Add(Diagnostic{
			Severity: r.missSeverity,
			Category: ExternalLookupFailure,
			Line:     n.LineNumber,
			Column:   n.Indentation,
			Message:  "lookup of citation \"" + ref.Key + "\" failed: " + err.Error(),
		})
	}
}
