package scribe

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse("test", []byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

// findNode returns the first node of the given type in document order.
func findNode(root *Node, typ NodeType) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if n.Type == typ {
			found = n
			return false
		}
		return true
	})
	return found
}

// findNamed returns the first block node with the given tag name.
func findNamed(root *Node, name string) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if n.Type == BlockNode && n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// inlineText concatenates the raw text children of a node.
func inlineText(n *Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == RawTextNode {
			sb.Write(c.InnerText)
		}
	}
	return sb.String()
}

// references returns all reference nodes under n in document order.
func references(n *Node) []*Reference {
	var refs []*Reference
	n.Walk(func(c *Node) bool {
		if c.Type == ReferenceNode {
			refs = append(refs, c.Ref)
		}
		return true
	})
	return refs
}

func TestParseDocumentStructure(t *testing.T) {
	src := `---
title: The Compiler
---

# Introduction {#intro}

Text with **bold** and ` + "`code`" + `.

## Details

- first
- second
`
	doc := mustParse(t, src)

	if got := doc.Config.String("title", ""); got != "The Compiler" {
		t.Errorf("title = %q, want %q", got, "The Compiler")
	}

	intro := doc.Root.FirstChild
	if intro == nil || intro.Type != SectionNode {
		t.Fatalf("first child is %v, want a section", intro)
	}
	if intro.Level != 1 {
		t.Errorf("section level = %d, want 1", intro.Level)
	}
	if string(intro.Id) != "intro" {
		t.Errorf("section id = %q, want %q", intro.Id, "intro")
	}
	if got := inlineText(intro); got != "Introduction" {
		t.Errorf("heading text = %q, want %q", got, "Introduction")
	}

	para := findNamed(doc.Root, "p")
	if para == nil {
		t.Fatal("no paragraph found")
	}
	if got := inlineText(para); got != "Text with <b>bold</b> and <code>code</code>." {
		t.Errorf("paragraph text = %q", got)
	}

	// The level-2 section nests inside the level-1 one
	var details *Node
	intro.Walk(func(n *Node) bool {
		if n != intro && n.Type == SectionNode {
			details = n
			return false
		}
		return true
	})
	if details == nil {
		t.Fatal("nested section not found under the level-1 section")
	}
	if details.Level != 2 {
		t.Errorf("nested section level = %d, want 2", details.Level)
	}

	list := findNamed(doc.Root, "ul")
	if list == nil {
		t.Fatal("no list found")
	}
	items := 0
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Name == "li" {
			items++
		}
	}
	if items != 2 {
		t.Errorf("list has %d items, want 2", items)
	}
}

func TestParseSectionSiblings(t *testing.T) {
	src := "# One\n\ncontent\n\n# Two\n"
	doc := mustParse(t, src)

	var levels []int
	for c := doc.Root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == SectionNode {
			levels = append(levels, c.Level)
		}
	}
	if len(levels) != 2 {
		t.Fatalf("root has %d sections, want 2", len(levels))
	}
}

func TestParseTagShortcuts(t *testing.T) {
	src := `<section #anchor1 .note .warning @img.png -https://example.com :figure>rest text`
	doc := mustParse(t, src)

	n := findNamed(doc.Root, "section")
	if n == nil {
		t.Fatal("no section block found")
	}
	if string(n.Id) != "anchor1" {
		t.Errorf("id = %q", n.Id)
	}
	if string(n.Class) != "note warning" {
		t.Errorf("class = %q", n.Class)
	}
	if string(n.Src) != "img.png" {
		t.Errorf("src = %q", n.Src)
	}
	if string(n.Href) != "https://example.com" {
		t.Errorf("href = %q", n.Href)
	}
	if string(n.Bucket) != "figure" {
		t.Errorf("bucket = %q", n.Bucket)
	}
	if got := inlineText(n); got != "rest text" {
		t.Errorf("rest = %q", got)
	}
}

func TestParseDefinition(t *testing.T) {
	src := `<dfn #widget>widget`
	doc := mustParse(t, src)

	dfn := findNode(doc.Root, DefinitionNode)
	if dfn == nil {
		t.Fatal("no definition found")
	}
	if string(dfn.Term) != "widget" {
		t.Errorf("term = %q", dfn.Term)
	}
	if string(dfn.Id) != "widget" {
		t.Errorf("id = %q", dfn.Id)
	}
}

func TestParseVerbatimContent(t *testing.T) {
	src := "<pre .go>\n    func main() {\n        return\n    }\nafter\n"
	doc := mustParse(t, src)

	pre := findNode(doc.Root, VerbatimNode)
	if pre == nil {
		t.Fatal("no verbatim block found")
	}
	want := "func main() {\n    return\n}\n"
	if string(pre.InnerText) != want {
		t.Errorf("verbatim content = %q, want %q", pre.InnerText, want)
	}

	after := findNamed(doc.Root, "p")
	if after == nil || inlineText(after) != "after" {
		t.Error("content after the verbatim block was lost")
	}
}

func TestParseTable(t *testing.T) {
	src := "| Name | Value |\n| a | 1 |\n| b | 2 |\n"
	doc := mustParse(t, src)

	table := findNode(doc.Root, TableNode)
	if table == nil {
		t.Fatal("no table found")
	}
	if len(table.Rows) != 3 {
		t.Fatalf("table has %d rows, want 3", len(table.Rows))
	}
	if table.Rows[0][0] != "Name" || table.Rows[2][1] != "2" {
		t.Errorf("unexpected cells: %v", table.Rows)
	}
}

func TestParseRaggedTableDegrades(t *testing.T) {
	src := "| a | b |\n| only one |\n"
	doc := mustParse(t, src)

	if tn := findNode(doc.Root, TableNode); tn != nil {
		t.Error("ragged table should not produce a table node")
	}
	block := findNode(doc.Root, BlockNode)
	if block == nil || block.Name != "pre" {
		t.Fatalf("ragged table should degrade to a pre block, got %v", block)
	}
	raw := findNode(block, RawTextNode)
	if raw == nil {
		t.Fatal("the degraded block should hold the rows as raw text")
	}
	if want := "| a | b |\n| only one |\n"; string(raw.InnerText) != want {
		t.Errorf("raw content = %q, want %q", raw.InnerText, want)
	}
	if doc.Diags.CountCategory(MalformedMarkup) != 1 {
		t.Errorf("want one malformed-markup diagnostic, got %v", doc.Diags.Items())
	}
}

func TestParseInlineReferences(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		wantKind      RefKind
		wantKey       string
		wantDisplay   string
		wantNormative bool
	}{
		{
			name:     "term reference",
			src:      "uses a [=widget=] here",
			wantKind: TermRef,
			wantKey:  "widget",
		},
		{
			name:        "term reference with display",
			src:         "uses [=widget|the widget=] here",
			wantKind:    TermRef,
			wantKey:     "widget",
			wantDisplay: "the widget",
		},
		{
			name:     "citation",
			src:      "see [[RFC2119]] for details",
			wantKind: CitationRef,
			wantKey:  "RFC2119",
		},
		{
			name:          "normative citation",
			src:           "see [[!RFC2119]] for details",
			wantKind:      CitationRef,
			wantKey:       "RFC2119",
			wantNormative: true,
		},
		{
			name:        "citation with display",
			src:         "see [[ISO.8601|the date format]] please",
			wantKind:    CitationRef,
			wantKey:     "ISO.8601",
			wantDisplay: "the date format",
		},
		{
			name:     "anchor reference",
			src:      "back to [[#intro]] now",
			wantKind: AnchorRef,
			wantKey:  "intro",
		},
		{
			name:     "explicit reference",
			src:      `see <x-ref "req-1"> here`,
			wantKind: ExplicitRef,
			wantKey:  "req-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.src)
			refs := references(doc.Root)
			if len(refs) != 1 {
				t.Fatalf("got %d references, want 1", len(refs))
			}
			ref := refs[0]
			if ref.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", ref.Kind, tt.wantKind)
			}
			if ref.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", ref.Key, tt.wantKey)
			}
			if string(ref.Display) != tt.wantDisplay {
				t.Errorf("display = %q, want %q", ref.Display, tt.wantDisplay)
			}
			if ref.Normative != tt.wantNormative {
				t.Errorf("normative = %v, want %v", ref.Normative, tt.wantNormative)
			}
			if ref.State != Unresolved {
				t.Errorf("state = %v, want Unresolved", ref.State)
			}
		})
	}
}

func TestParseEscapedShorthand(t *testing.T) {
	src := `the literal \[[RFC2119]] text`
	doc := mustParse(t, src)

	if refs := references(doc.Root); len(refs) != 0 {
		t.Fatalf("escaped shorthand produced references: %v", refs)
	}
	para := findNamed(doc.Root, "p")
	if got := inlineText(para); got != "the literal [[RFC2119]] text" {
		t.Errorf("text = %q", got)
	}
}

func TestParseTagWithoutClosingBracket(t *testing.T) {
	src := "<section #broken\n"
	doc := mustParse(t, src)

	if doc.Diags.CountCategory(MalformedMarkup) != 1 {
		t.Errorf("want one malformed-markup diagnostic, got %v", doc.Diags.Items())
	}
	para := findNamed(doc.Root, "p")
	if para == nil {
		t.Fatal("broken tag should degrade to a paragraph")
	}
}

func TestParseMalformedFrontMatter(t *testing.T) {
	src := "---\ntitle: [unclosed\n---\nbody\n"
	doc := mustParse(t, src)

	if doc.Diags.CountCategory(MalformedMarkup) != 1 {
		t.Errorf("want one malformed-markup diagnostic, got %v", doc.Diags.Items())
	}
	// The document is still parsed
	if findNamed(doc.Root, "p") == nil {
		t.Error("body content was lost after the malformed header")
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse("test", nil); err == nil {
		t.Error("want an error for empty input")
	}
}
