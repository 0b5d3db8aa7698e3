package scribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hesusruiz/scribe/biblio"
)

// failingBiblio simulates a backend with a broken transport.
type failingBiblio struct {
	err error
}

func (f failingBiblio) Lookup(ctx context.Context, key string) (*biblio.CitationRecord, error) {
	return nil, f.err
}

func resolveDoc(t *testing.T, src string, backend biblio.Resolver) *Document {
	t.Helper()
	doc := mustParse(t, src)
	reg := NewRegistry(nil)
	reg.Build(doc)
	NewResolver(reg, backend, time.Second).Resolve(context.Background(), doc)
	return doc
}

func TestResolveForwardReference(t *testing.T) {
	// The reference appears before the definition
	src := `uses a [=widget=] early

<dfn #widget>widget
`
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if len(refs) != 1 {
		t.Fatalf("got %d references, want 1", len(refs))
	}
	if refs[0].State != Resolved {
		t.Errorf("state = %v, want Resolved", refs[0].State)
	}
	if refs[0].Target == nil || string(refs[0].Target.Term) != "widget" {
		t.Error("reference does not point at the definition")
	}
	if doc.Diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", doc.Diags.Items())
	}
}

func TestResolveVariantMatch(t *testing.T) {
	src := `talks about [=widgets=] in plural

<dfn>widget
`
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if refs[0].State != Resolved {
		t.Errorf("state = %v, want Resolved via singular variant", refs[0].State)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	// 'axes' matches both declared terms through variant folding
	src := `chopping with [=axes=] now

<dfn>ax

<dfn>axe
`
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if refs[0].State != Ambiguous {
		t.Fatalf("state = %v, want Ambiguous", refs[0].State)
	}
	if len(refs[0].Candidates) != 2 {
		t.Errorf("candidates = %v, want 2", refs[0].Candidates)
	}
	if doc.Diags.CountCategory(AmbiguousReference) != 1 {
		t.Errorf("want one ambiguous-reference diagnostic, got %v", doc.Diags.Items())
	}
}

func TestResolveDangling(t *testing.T) {
	src := "refers to [=missing term=] here\n"
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if refs[0].State != Failed {
		t.Errorf("state = %v, want Failed", refs[0].State)
	}
	if doc.Diags.CountCategory(DanglingReference) != 1 {
		t.Errorf("want one dangling-reference diagnostic, got %v", doc.Diags.Items())
	}
}

func TestResolveAnchor(t *testing.T) {
	src := `# Intro {#intro}

see [[#intro]] and [[#nowhere]]
`
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	if refs[0].State != Resolved {
		t.Errorf("existing anchor: state = %v, want Resolved", refs[0].State)
	}
	if refs[1].State != Failed {
		t.Errorf("missing anchor: state = %v, want Failed", refs[1].State)
	}
}

func TestResolveCitationHit(t *testing.T) {
	backend := biblio.Map{}
	backend.Add("RFC2119", biblio.CitationRecord{
		Title: "Key words for use in RFCs",
		Href:  "https://www.rfc-editor.org/rfc/rfc2119",
		Date:  "March 1997",
	})

	src := "per [[!RFC2119]] the key words\n"
	doc := resolveDoc(t, src, backend)

	refs := references(doc.Root)
	if refs[0].State != ExternalResolved {
		t.Fatalf("state = %v, want ExternalResolved", refs[0].State)
	}
	if refs[0].Citation == nil || refs[0].Citation.Title != "Key words for use in RFCs" {
		t.Error("citation record not attached")
	}
	if rec := doc.Citations["rfc2119"]; rec == nil {
		t.Error("citation not collected for the bibliography")
	}
}

func TestResolveCitationLocalPrecedence(t *testing.T) {
	// A key declared in the document resolves locally, the backend is
	// never consulted for it
	backend := &countingBiblio{m: biblio.Map{}}

	src := `<dfn #widget>widget

see [[widget]] for details
`
	doc := resolveDoc(t, src, backend)

	refs := references(doc.Root)
	if refs[0].State != Resolved {
		t.Fatalf("state = %v, want Resolved", refs[0].State)
	}
	if refs[0].Target == nil || string(refs[0].Target.Term) != "widget" {
		t.Error("reference does not point at the local definition")
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times, want 0", backend.calls)
	}
	if doc.Diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", doc.Diags.Items())
	}
}

func TestResolveCitationMiss(t *testing.T) {
	src := "per [[RFC9999]] which does not exist\n"
	doc := resolveDoc(t, src, biblio.Map{})

	refs := references(doc.Root)
	if refs[0].State != Failed {
		t.Errorf("state = %v, want Failed", refs[0].State)
	}
	if doc.Diags.CountCategory(DanglingReference) != 1 {
		t.Errorf("want one dangling-reference diagnostic, got %v", doc.Diags.Items())
	}
}

func TestResolveCitationTransportFailure(t *testing.T) {
	backend := failingBiblio{err: errors.New("connection refused")}

	src := "per [[RFC2119]] unreachable\n"
	doc := resolveDoc(t, src, backend)

	refs := references(doc.Root)
	if refs[0].State != Failed {
		t.Errorf("state = %v, want Failed", refs[0].State)
	}
	if doc.Diags.CountCategory(ExternalLookupFailure) != 1 {
		t.Errorf("want one external-lookup-failure diagnostic, got %v", doc.Diags.Items())
	}
	// A transport failure is not reported as a dangling reference
	if doc.Diags.CountCategory(DanglingReference) != 0 {
		t.Errorf("unexpected dangling-reference diagnostics: %v", doc.Diags.Items())
	}
}

func TestResolveCitationCached(t *testing.T) {
	backend := &countingBiblio{m: biblio.Map{}}
	backend.m.Add("RFC2119", biblio.CitationRecord{Title: "Key words"})

	src := "first [[RFC2119]] and again [[rfc2119]]\n"
	doc := resolveDoc(t, src, backend)

	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}
	refs := references(doc.Root)
	for i, ref := range refs {
		if ref.State != ExternalResolved {
			t.Errorf("reference %d: state = %v, want ExternalResolved", i, ref.State)
		}
	}
}

type countingBiblio struct {
	m     biblio.Map
	calls int
}

func (c *countingBiblio) Lookup(ctx context.Context, key string) (*biblio.CitationRecord, error) {
	c.calls++
	return c.m.Lookup(ctx, key)
}

func TestResolveNoBackend(t *testing.T) {
	src := "per [[RFC2119]] with no backend\n"
	doc := resolveDoc(t, src, nil)

	refs := references(doc.Root)
	if refs[0].State != Failed {
		t.Errorf("state = %v, want Failed", refs[0].State)
	}
	if doc.Diags.CountCategory(DanglingReference) != 1 {
		t.Errorf("want one dangling-reference diagnostic, got %v", doc.Diags.Items())
	}
}
