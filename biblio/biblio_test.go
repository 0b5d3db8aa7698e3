package biblio

import (
	"context"
	"errors"
	"testing"
)

var testDB = []byte(`
RFC2119:
  title: Key words for use in RFCs to Indicate Requirement Levels
  href: https://www.rfc-editor.org/rfc/rfc2119
  date: March 1997
ISO.8601:
  title: Data elements and interchange formats
`)

func TestParse(t *testing.T) {
	m, err := Parse(testDB)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("got %d entries, want 2", len(m))
	}

	rec, err := m.Lookup(context.Background(), "RFC2119")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "Key words for use in RFCs to Indicate Requirement Levels" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Date != "March 1997" {
		t.Errorf("date = %q", rec.Date)
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	m, _ := Parse(testDB)

	for _, key := range []string{"rfc2119", "RFC2119", "Rfc2119"} {
		if _, err := m.Lookup(context.Background(), key); err != nil {
			t.Errorf("Lookup(%q) error = %v", key, err)
		}
	}
}

func TestLookupNotFound(t *testing.T) {
	m, _ := Parse(testDB)

	_, err := m.Lookup(context.Background(), "RFC9999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLookupCancelledContext(t *testing.T) {
	m, _ := Parse(testDB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Lookup(ctx, "RFC2119")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("not: [valid")); err == nil {
		t.Error("want an error for invalid YAML")
	}
}

func TestFrontMatter(t *testing.T) {
	meta := []byte(`title: Some Document
localBiblio:
  MYREF:
    title: A local reference
    href: https://example.org/myref
`)
	m, err := FrontMatter(meta)
	if err != nil {
		t.Fatalf("FrontMatter() error = %v", err)
	}
	rec, err := m.Lookup(context.Background(), "MyRef")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "A local reference" {
		t.Errorf("title = %q", rec.Title)
	}
}

func TestFrontMatterWithoutBiblio(t *testing.T) {
	m, err := FrontMatter([]byte("title: Plain Document\n"))
	if err != nil {
		t.Fatalf("FrontMatter() error = %v", err)
	}
	if len(m) != 0 {
		t.Errorf("got %d entries, want 0", len(m))
	}
}

func TestChainPrecedence(t *testing.T) {
	local := Map{}
	local.Add("RFC2119", CitationRecord{Title: "Local copy"})
	shared, _ := Parse(testDB)

	chain := Chain{local, shared}

	rec, err := chain.Lookup(context.Background(), "RFC2119")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "Local copy" {
		t.Errorf("title = %q, the first resolver must win", rec.Title)
	}

	// A key only the second resolver knows falls through
	if _, err := chain.Lookup(context.Background(), "ISO.8601"); err != nil {
		t.Errorf("fall-through Lookup() error = %v", err)
	}

	if _, err := chain.Lookup(context.Background(), "RFC9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMerge(t *testing.T) {
	base, _ := Parse(testDB)
	local := Map{}
	local.Add("RFC2119", CitationRecord{Title: "Overridden"})

	base.Merge(local)

	rec, err := base.Lookup(context.Background(), "RFC2119")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "Overridden" {
		t.Errorf("title = %q, local entries must win", rec.Title)
	}
}
