package scribe

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	hlhtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/hesusruiz/scribe/sliceedit"
	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	"oss.terrastruct.com/d2/lib/textmeasure"
)

// DefaultCodeStyle is the chroma style used for code blocks when the
// document metadata does not select one.
const DefaultCodeStyle = "github"

// DefaultAssetsDir is where generated diagram images are cached.
const DefaultAssetsDir = "builtassets"

// An Emitter renders a frozen Document to HTML. Emission is a pure
// function of the document: compiling the same input twice produces
// byte-identical output.
type Emitter struct {
	doc *Document
	reg *Registry

	codeStyle string
	assetsDir string
}

// NewEmitter returns an emitter for doc, which must be frozen.
func NewEmitter(doc *Document) (*Emitter, error) {
	if !doc.Frozen() {
		return nil, fmt.Errorf("emitting %s: document is not frozen", doc.FileName)
	}
	if doc.Registry == nil {
		return nil, fmt.Errorf("emitting %s: document has no registry", doc.FileName)
	}
	return &Emitter{
		doc:       doc,
		reg:       doc.Registry,
		codeStyle: doc.Config.String("scribe.codeStyle", DefaultCodeStyle),
		assetsDir: doc.Config.String("scribe.assetsDir", DefaultAssetsDir),
	}, nil
}

// Emit renders the whole document: head, title block, table of contents,
// body, bibliography. A final substitution pass expands the '{#id.num}'
// and '{#title}' placeholders, which can only be computed once the whole
// body has been rendered.
func (e *Emitter) Emit() ([]byte, error) {
	br := &ByteRenderer{}

	e.renderHead(br)
	e.renderTitleBlock(br)
	e.renderTOC(br)

	br.Renderln("<main>")
	for n := e.doc.Root.FirstChild; n != nil; n = n.NextSibling {
		if err := e.renderNode(br, n); err != nil {
			return nil, err
		}
	}
	br.Renderln("</main>")

	e.renderBibliography(br)

	br.Renderln("</body>")
	br.Renderln("</html>")

	return e.expandPlaceholders(br.Bytes()), nil
}

func (e *Emitter) renderHead(br *ByteRenderer) {
	br.Renderln("<!DOCTYPE html>")
	br.Renderln("<html lang='", e.doc.Config.String("language", "en"), "'>")
	br.Renderln("<head>")
	br.Renderln("<meta charset='utf-8'>")
	br.Renderln("<title>", e.doc.Title(), "</title>")
	if css := e.doc.Config.String("css", ""); css != "" {
		br.Renderln("<link rel='stylesheet' href='", css, "'>")
	}
	br.Renderln("</head>")
	br.Renderln("<body>")
}

func (e *Emitter) renderTitleBlock(br *ByteRenderer) {
	br.Renderln("<header>")
	br.Renderln("<h1 id='title'>", e.doc.Title(), "</h1>")
	if sub := e.doc.Config.String("subtitle", ""); sub != "" {
		br.Renderln("<p class='subtitle'>", sub, "</p>")
	}
	if date := e.doc.Config.String("date", ""); date != "" {
		br.Renderln("<p class='docdate'>", date, "</p>")
	}
	if ed := e.doc.Config.String("editor", ""); ed != "" {
		br.Renderln("<p class='editor'>", ed, "</p>")
	}
	br.Renderln("</header>")
}

// renderTOC writes the table of contents from the section tree, one list
// entry per section, linked to the section anchors.
func (e *Emitter) renderTOC(br *ByteRenderer) {
	var sections []*Node
	e.doc.Root.Walk(func(n *Node) bool {
		if n.Type == SectionNode {
			sections = append(sections, n)
		}
		return true
	})
	if len(sections) == 0 {
		return
	}

	br.Renderln("<nav id='toc'>")
	br.Renderln("<h2>Table of Contents</h2>")
	br.Renderln("<ul>")
	for _, sec := range sections {
		br.Renderln("<li class='toclevel", strconv.Itoa(sec.Level), "'>",
			"<a href='#", e.anchorFor(sec), "'>",
			"<span class='secno'>", e.reg.OutlineOf(sec), "</span> ",
			headingText(sec), "</a></li>")
	}
	br.Renderln("</ul>")
	br.Renderln("</nav>")
}

func (e *Emitter) renderNode(br *ByteRenderer, n *Node) error {
	switch n.Type {

	case SectionNode:
		return e.renderSection(br, n)

	case BlockNode:
		return e.renderBlock(br, n)

	case DefinitionNode:
		e.renderDefinition(br, n)
		return nil

	case TableNode:
		e.renderTable(br, n)
		return nil

	case VerbatimNode:
		return e.renderCode(br, n)

	case DiagramNode:
		return e.renderDiagram(br, n)

	case RawTextNode:
		br.Render(n.InnerText)
		return nil

	case ReferenceNode:
		e.renderReference(br, n)
		return nil
	}

	return nil
}

func (e *Emitter) renderSection(br *ByteRenderer, n *Node) error {
	br.Renderln()
	br.Renderln("<section id='", e.anchorFor(n), "'>")

	hnum := byte('0' + min(n.Level, 6))
	br.Render("<h", hnum, "><span class='secno'>", e.reg.OutlineOf(n), "</span> ")
	if err := e.renderInlines(br, n); err != nil {
		return err
	}
	br.Renderln("</h", hnum, ">")

	if err := e.renderBlockChildren(br, n); err != nil {
		return err
	}

	br.Renderln("</section>")
	return nil
}

func (e *Emitter) renderBlock(br *ByteRenderer, n *Node) error {
	indentStr := indent(n.Indentation)

	startTag := fmt.Appendf(nil, "<%s", n.Name)
	startTag = e.addAttributes(n, startTag)
	startTag = append(startTag, '>')

	br.Render(indentStr, startTag)
	if num := e.reg.BucketNumberOf(n); num > 0 {
		br.Render("<span class='bucketnum'>", capitalize(string(n.Bucket)), " ", strconv.Itoa(num), ".</span> ")
	}
	if err := e.renderInlines(br, n); err != nil {
		return err
	}

	if hasBlockChildren(n) {
		br.Renderln()
		if err := e.renderBlockChildren(br, n); err != nil {
			return err
		}
		br.Renderln(indentStr, "</", n.Name, ">")
	} else {
		br.Renderln("</", n.Name, ">")
	}
	return nil
}

func (e *Emitter) renderDefinition(br *ByteRenderer, n *Node) {
	br.Renderln(indent(n.Indentation), "<dfn id='", e.anchorFor(n), "'>", n.Term, "</dfn>")
}

func (e *Emitter) renderTable(br *ByteRenderer, n *Node) {
	indentStr := indent(n.Indentation)

	br.Renderln(indentStr, "<table>")
	for i, row := range n.Rows {
		cellTag := "td"
		if i == 0 {
			cellTag = "th"
		}
		br.Render(indentStr, "<tr>")
		for _, cell := range row {
			br.Render("<", cellTag, ">", cell, "</", cellTag, ">")
		}
		br.Renderln("</tr>")
	}
	br.Renderln(indentStr, "</table>")
}

// renderCode highlights a verbatim block with chroma. The lexer is
// selected from the block's class, falling back to content analysis.
func (e *Emitter) renderCode(br *ByteRenderer, n *Node) error {
	contentLines := string(n.InnerText)
	if len(contentLines) == 0 {
		return nil
	}

	l := lexers.Get(string(bytes.TrimSpace(n.Class)))
	if l == nil {
		l = lexers.Analyse(contentLines)
	}
	if l == nil {
		l = lexers.Fallback
	}
	l = chroma.Coalesce(l)

	s := styles.Get(e.codeStyle)

	f := hlhtml.New(hlhtml.Standalone(false), hlhtml.PreventSurroundingPre(true))

	it, err := l.Tokenise(nil, contentLines)
	if err != nil {
		return fmt.Errorf("highlighting code block at line %d: %w", n.LineNumber, err)
	}

	br.Renderln()
	br.Renderln(`<table style="width:100%;"><tr><td class="codecolor">`)
	br.Renderln("<pre class='nohighlight precolor'>")
	rb := &bytes.Buffer{}
	if err := f.Format(rb, s, it); err != nil {
		return fmt.Errorf("highlighting code block at line %d: %w", n.LineNumber, err)
	}
	br.Render(rb.Bytes())
	br.Render("</pre>")
	br.Renderln(`</td></tr></table>`)
	br.Renderln()
	return nil
}

// renderDiagram generates an SVG with the embedded D2 engine and caches it
// under the assets directory, keyed by the hash of the diagram source so
// an unchanged diagram is never regenerated.
func (e *Emitter) renderDiagram(br *ByteRenderer, n *Node) error {
	diagType := strings.ToLower(string(bytes.TrimSpace(n.Class)))
	if diagType != "d2" {
		// Unknown diagram languages degrade to a plain code block
		return e.renderCode(br, n)
	}

	hh := md5.Sum(n.InnerText)
	fileName := filepath.Join(e.assetsDir, fmt.Sprintf("d2_%x.svg", hh))

	if _, err := os.Stat(fileName); err != nil {
		ruler, err := textmeasure.NewRuler()
		if err != nil {
			return fmt.Errorf("rendering diagram at line %d: %w", n.LineNumber, err)
		}

		defaultLayout := func(ctx context.Context, g *d2graph.Graph) error {
			return d2dagrelayout.Layout(ctx, g, nil)
		}
		diagram, _, err := d2lib.Compile(context.Background(), string(n.InnerText), &d2lib.CompileOptions{
			Layout: defaultLayout,
			Ruler:  ruler,
		})
		if err != nil {
			return fmt.Errorf("rendering diagram at line %d: %w", n.LineNumber, err)
		}
		body, err := d2svg.Render(diagram, &d2svg.RenderOpts{
			Pad:     d2svg.DEFAULT_PADDING,
			ThemeID: d2themescatalog.NeutralDefault.ID,
		})
		if err != nil {
			return fmt.Errorf("rendering diagram at line %d: %w", n.LineNumber, err)
		}

		if err := os.MkdirAll(e.assetsDir, 0755); err != nil {
			return fmt.Errorf("rendering diagram at line %d: %w", n.LineNumber, err)
		}
		if err := os.WriteFile(fileName, body, 0644); err != nil {
			return fmt.Errorf("rendering diagram at line %d: %w", n.LineNumber, err)
		}
	}

	br.Renderln(indent(n.Indentation), "<figure><img src='", fileName, "' alt='diagram'></figure>")
	return nil
}

// renderReference writes the link for a reference expression, according to
// the terminal state the resolver left it in. Unresolvable references are
// rendered as visible markers so the broken spot is findable in the output.
func (e *Emitter) renderReference(br *ByteRenderer, n *Node) {
	ref := n.Ref

	switch ref.State {
	case Resolved:
		label := string(ref.Display)
		if label == "" {
			label = e.labelFor(ref.Target, ref.Key)
		}
		br.Render(`<a href="#`, e.anchorFor(ref.Target), `" class="xref">`, label, `</a>`)

	case ExternalResolved:
		label := string(ref.Display)
		if label == "" {
			label = "[" + ref.Key + "]"
		}
		br.Render(`<a href="#bib_`, strings.ToLower(ref.Key), `" class="xref">`, label, `</a>`)

	default:
		br.Render(`<span class="xref-unresolved" title="unresolved reference">[`, ref.Key, `]</span>`)
	}
}

// labelFor chooses the visible text of a resolved reference without an
// explicit display override.
func (e *Emitter) labelFor(target *Node, key string) string {
	switch target.Type {
	case SectionNode:
		return e.reg.OutlineOf(target) + " " + headingText(target)
	case DefinitionNode:
		return key
	default:
		return key
	}
}

// renderBibliography writes the references section from the citations the
// resolver collected, sorted by key. Keys that failed to resolve are
// skipped here; they were already reported as diagnostics.
func (e *Emitter) renderBibliography(br *ByteRenderer) {
	keys := make([]string, 0, len(e.doc.Citations))
	for k, rec := range e.doc.Citations {
		if rec != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)

	br.Renderln()
	br.Renderln("<section id='references'><h2>References</h2>")
	br.Renderln("<dl>")

	for _, key := range keys {
		rec := e.doc.Citations[key]

		br.Renderln("<dt id='bib_", key, "'>[", rec.Key, "]</dt>")
		br.Renderln("<dd>")

		if len(rec.Href) > 0 {
			br.Render("<a href='", rec.Href, "'>", rec.Title, "</a>. ")
		} else {
			br.Render(rec.Title, ". ")
		}
		if len(rec.Date) > 0 {
			br.Render("Date: ", rec.Date, ". ")
		}
		if len(rec.Href) > 0 {
			br.Render("URL: <a href='", rec.Href, "'>", rec.Href, "</a>. ")
		}
		br.Renderln("</dd>")
	}

	br.Renderln("</dl>")
	br.Renderln("</section>")
}

// renderInlines writes the inline children of a node (raw text segments
// and references) in source order.
func (e *Emitter) renderInlines(br *ByteRenderer, n *Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != RawTextNode && c.Type != ReferenceNode {
			continue
		}
		if err := e.renderNode(br, c); err != nil {
			return err
		}
	}
	return nil
}

// renderBlockChildren writes the non-inline children of a node.
func (e *Emitter) renderBlockChildren(br *ByteRenderer, n *Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == RawTextNode || c.Type == ReferenceNode {
			continue
		}
		if err := e.renderNode(br, c); err != nil {
			return err
		}
	}
	return nil
}

func hasBlockChildren(n *Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != RawTextNode && c.Type != ReferenceNode {
			return true
		}
	}
	return false
}

func (e *Emitter) addAttributes(n *Node, startTag []byte) []byte {
	if len(n.Id) > 0 {
		startTag = fmt.Appendf(startTag, " id='%s'", n.Id)
	}
	if len(n.Class) > 0 {
		startTag = fmt.Appendf(startTag, " class='%s'", n.Class)
	}
	if len(n.Src) > 0 {
		startTag = fmt.Appendf(startTag, " src='%s'", n.Src)
	}
	if len(n.Href) > 0 {
		startTag = fmt.Appendf(startTag, " href='%s'", n.Href)
	}
	for _, a := range n.Attr {
		startTag = fmt.Appendf(startTag, " %s='%s'", a.Key, a.Val)
	}
	return startTag
}

// anchorFor returns the fragment identifier a node is reachable at: the
// declared id when there is one, otherwise a slug derived from the heading
// text or the defined term.
func (e *Emitter) anchorFor(n *Node) string {
	if n == nil {
		return ""
	}
	if len(n.Id) > 0 {
		return string(n.Id)
	}
	switch n.Type {
	case SectionNode:
		return slugify(string(n.RestLine))
	case DefinitionNode:
		return slugify(string(n.Term))
	}
	return ""
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify folds arbitrary text to a stable fragment identifier.
func slugify(text string) string {
	s := reNonSlug.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(s, "-")
}

// headingText returns the plain text of a section heading, with the inline
// markup stripped.
func headingText(sec *Node) string {
	return string(sec.RestLine)
}

var rePlaceholder = regexp.MustCompile(`\{#([\w.+-]+)\}`)

// expandPlaceholders performs the final substitution pass over the
// rendered output: '{#title}' becomes the document title and '{#id.num}'
// becomes the bucket ordinal of the block declared with that id.
func (e *Emitter) expandPlaceholders(html []byte) []byte {
	matches := rePlaceholder.FindAllSubmatch(html, -1)
	if len(matches) == 0 {
		return html
	}

	var pairs []string
	done := map[string]bool{}

	for _, m := range matches {
		whole := string(m[0])
		if done[whole] {
			continue
		}
		done[whole] = true

		name := string(m[1])
		if name == "title" {
			pairs = append(pairs, whole, e.doc.Title())
			continue
		}
		if id, found := strings.CutSuffix(name, ".num"); found {
			if entry, ok := e.reg.Lookup(id); ok {
				if num := e.reg.BucketNumberOf(entry.Node); num > 0 {
					pairs = append(pairs, whole, strconv.Itoa(num))
				}
			}
		}
	}
	if len(pairs) == 0 {
		return html
	}

	buf := sliceedit.NewBuffer(html)
	buf.ReplaceAllPairs(pairs...)
	return buf.Bytes()
}

// capitalize uppercases the first byte of a bucket name for captions like
// "Figure 3.".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func indent(n int) []byte {
	return bytes.Repeat([]byte(" "), n)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
