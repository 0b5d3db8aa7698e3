package scribe

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/hesusruiz/scribe/biblio"
	"github.com/hesusruiz/vcutils/yaml"
)

// A Parser consumes the token stream produced by the Lexer and builds the
// Document tree. Parsing is a pure syntax-to-tree transform: definitions and
// anchors are recognized but not registered (that is the Registry Builder's
// job), and reference expressions are created Unresolved.
type Parser struct {
	fileName string
	tokens   []Token
	pos      int

	doc   *Document
	diags *DiagnosticList
}

// Parse lexes and parses src into a Document. The returned error is non-nil
// only for unrecoverable problems (input I/O, empty input); everything else
// is accumulated in the document's diagnostics.
func Parse(fileName string, src []byte) (*Document, error) {
	if len(src) == 0 {
		return nil, &SyntaxError{Filename: fileName, Msg: "no content"}
	}

	diags := NewDiagnosticList(fileName)
	tokens := NewLexer(fileName, src, diags).Tokens()

	p := &Parser{
		fileName: fileName,
		tokens:   tokens,
		diags:    diags,
	}

	return p.parseDocument()
}

// peek returns the next token without consuming it.
func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// peekContent returns the next token that is not blank or a comment.
func (p *Parser) peekContent() (Token, bool) {
	for i := p.pos; i < len(p.tokens); i++ {
		t := p.tokens[i]
		if t.Type == BlankToken || t.Type == CommentToken {
			continue
		}
		p.pos = i
		return t, true
	}
	p.pos = len(p.tokens)
	return Token{}, false
}

func (p *Parser) next() (Token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *Parser) parseDocument() (*Document, error) {
	root := &Node{Type: DocumentNode, Indentation: -1}

	doc := &Document{
		FileName:  p.fileName,
		Root:      root,
		Diags:     p.diags,
		Citations: map[string]*biblio.CitationRecord{},
	}
	// An empty config stands in when there is no front matter
	doc.Config, _ = yaml.ParseYaml("")
	p.doc = doc

	// The metadata header, if present, is always the first token
	if t, ok := p.peek(); ok && t.Type == FrontMatterToken {
		p.next()
		doc.RawMeta = t.Content
		cfg, err := yaml.ParseYaml(string(t.Content))
		if err != nil {
			p.diags.Errorf(MalformedMarkup, t.Line, 0, "malformed YAML metadata: %v", err)
		} else {
			doc.Config = cfg
		}
	}

	// The section stack implements the heading nesting rule: a heading of
	// level L closes all open sections of level >= L and opens a new section
	// under the nearest open section of level < L. The document root acts as
	// the level-0 section.
	stack := []*Node{root}

	for {
		t, ok := p.peekContent()
		if !ok {
			break
		}

		if t.Type == ErrorToken {
			p.next()
			return doc, &SyntaxError{Filename: p.fileName, Line: t.Line, Msg: string(t.Content)}
		}

		if t.Type == HeadingToken {
			sec := p.parseHeading(t)
			for len(stack) > 1 && stack[len(stack)-1].Level >= sec.Level {
				stack = stack[:len(stack)-1]
			}
			stack[len(stack)-1].AppendChild(sec)
			stack = append(stack, sec)
			continue
		}

		// Everything else is body content of the innermost open section
		p.parseBlocks(stack[len(stack)-1], 0)
	}

	return doc, nil
}

// parseHeading consumes a HeadingToken and returns the new Section node.
// A trailing '{#anchor-id}' declares an explicit anchor for the heading.
func (p *Parser) parseHeading(t Token) *Node {
	p.next()

	level, text := TrimLeft(t.Content, '#')
	_, text = TrimLeft(text, ' ')

	sec := &Node{
		Type:        SectionNode,
		Level:       level,
		LineNumber:  t.Line,
		Indentation: t.Indentation,
	}

	if m := reHeadingAnchor.FindSubmatch(text); m != nil {
		sec.Id = bytes.Clone(m[1])
		text = bytes.TrimRight(text[:len(text)-len(m[0])], " ")
	}

	sec.RestLine = bytes.Clone(text)
	p.parseInlines(sec, text, t.Line, t.Indentation)
	return sec
}

var reHeadingAnchor = regexp.MustCompile(`\{#([\w.+-]+)\}\s*$`)

// parseBlocks parses the run of constructs indented at least minIndent and
// appends them as children of parent. It returns when the next content token
// is a heading or is indented less than minIndent.
func (p *Parser) parseBlocks(parent *Node, minIndent int) {
	for {
		t, ok := p.peekContent()
		if !ok || t.Type == HeadingToken || t.Type == ErrorToken {
			return
		}
		if t.Indentation < minIndent {
			return
		}

		child := p.parseOne(t)
		if child == nil {
			continue
		}
		parent.AppendChild(child)

		// More-indented content following a construct belongs inside it
		p.parseBlocks(child, t.Indentation+1)
	}
}

// parseOne consumes exactly one block construct starting at token t.
func (p *Parser) parseOne(t Token) *Node {
	switch t.Type {
	case TagToken:
		return p.parseTagLine(t)
	case ListItemToken:
		return p.parseList(t)
	case TableRowToken:
		return p.parseTable(t)
	case TextToken:
		return p.parseParagraph(t)
	default:
		// Blank and comment tokens never reach here (peekContent skips
		// them), front matter only appears at the start of the file.
		p.next()
		return nil
	}
}

// parseParagraph accumulates consecutive text lines at the same indentation
// into one paragraph node.
func (p *Parser) parseParagraph(t Token) *Node {
	n := &Node{
		Type:        BlockNode,
		Name:        "p",
		LineNumber:  t.Line,
		Indentation: t.Indentation,
	}

	var para ByteRenderer
	for {
		tok, ok := p.peek()
		if !ok || tok.Type != TextToken || tok.Indentation != t.Indentation {
			break
		}
		p.next()
		if para.Len() > 0 {
			para.Render(" ")
		}
		para.Render(tok.Content)
	}

	text := para.CloneBytes()
	n.RestLine = text
	p.parseInlines(n, text, t.Line, t.Indentation)
	return n
}

// parseTagLine consumes a tag line and builds the corresponding node,
// decoding the shortcut attributes: '#id', '.class', '@src', '-href' and
// ':bucket'.
func (p *Parser) parseTagLine(t Token) *Node {
	p.next()

	n := &Node{
		Type:        BlockNode,
		LineNumber:  t.Line,
		Indentation: t.Indentation,
	}

	indexRightBracket := bytes.IndexByte(t.Content, endHTMLTag)
	if indexRightBracket == -1 {
		// No closing bracket: degrade the whole line to a paragraph
		p.diags.Warnf(MalformedMarkup, t.Line, t.Indentation,
			"tag without closing '>', treating the line as plain text")
		n.Name = "p"
		n.RestLine = t.Content
		p.parseInlines(n, t.Content, t.Line, t.Indentation)
		return n
	}

	tagString := t.Content[1:indexRightBracket]
	restLine := t.Content[indexRightBracket+1:]

	name, restOfTag := ReadTagName(tagString)
	if len(name) == 0 {
		p.diags.Warnf(MalformedMarkup, t.Line, t.Indentation,
			"no tag name found, treating the line as plain text")
		n.Name = "p"
		n.RestLine = t.Content
		p.parseInlines(n, t.Content, t.Line, t.Indentation)
		return n
	}

	n.Name = string(name)

	// Inline-only and void elements do not open blocks, wrap in a paragraph
	if contains(NoBlockElements, name) || contains(VoidElements, name) {
		n.Name = "p"
		n.RestLine = t.Content
		p.parseInlines(n, t.Content, t.Line, t.Indentation)
		return n
	}

	// Process all the attributes in the tag
	for {
		restOfTag = SkipWhiteSpace(restOfTag)
		if len(restOfTag) == 0 {
			break
		}

		var attrVal []byte

		switch restOfTag[0] {
		case '#':
			// Shortcut for id="xxxx". Only the first one is used.
			attrVal, restOfTag = ReadQuotedWords(restOfTag[1:])
			if len(n.Id) == 0 {
				n.Id = attrVal
			}
		case '.':
			// Shortcut for class="xxxx". Classes accumulate.
			attrVal, restOfTag = ReadWord(restOfTag[1:])
			n.AddClass(attrVal)
		case '@':
			// Shortcut for src="xxxx"
			attrVal, restOfTag = ReadQuotedWords(restOfTag[1:])
			if len(n.Src) == 0 {
				n.Src = attrVal
			}
		case '-':
			// Shortcut for href="xxxx"
			attrVal, restOfTag = ReadQuotedWords(restOfTag[1:])
			if len(n.Href) == 0 {
				n.Href = attrVal
			}
		case ':':
			// Classification bucket for per-class numbering
			attrVal, restOfTag = ReadWord(restOfTag[1:])
			if len(n.Bucket) == 0 {
				n.Bucket = attrVal
			}
		default:
			var attr Attribute
			attr, restOfTag = ReadTagAttrKey(restOfTag)
			if len(attr.Key) == 0 {
				restOfTag = nil
				break
			}
			switch attr.Key {
			case "id":
				if len(n.Id) == 0 {
					n.Id = bytes.Clone(attr.Val)
				}
			case "class":
				n.AddClass(attr.Val)
			case "src":
				if len(n.Src) == 0 {
					n.Src = bytes.Clone(attr.Val)
				}
			case "href":
				if len(n.Href) == 0 {
					n.Href = bytes.Clone(attr.Val)
				}
			default:
				n.Attr = append(n.Attr, Attribute{Key: attr.Key, Val: bytes.Clone(attr.Val)})
			}
		}
	}

	switch n.Name {
	case "dfn":
		n.Type = DefinitionNode
		n.Term = bytes.TrimSpace(bytes.Clone(restLine))
		n.RestLine = bytes.Clone(restLine)
		if len(n.Term) == 0 && len(n.Id) > 0 {
			n.Term = bytes.Clone(n.Id)
		}
		if len(n.Term) == 0 {
			p.diags.Warnf(MalformedMarkup, t.Line, t.Indentation,
				"definition without a term or an id")
		}
		return n

	case "pre", "x-code", "x-example":
		n.Type = VerbatimNode
		n.RestLine = bytes.Clone(restLine)
		p.parseVerbatim(n)
		return n

	case "x-diagram":
		n.Type = DiagramNode
		n.RestLine = bytes.Clone(restLine)
		p.parseVerbatim(n)
		return n

	default:
		n.RestLine = bytes.Clone(restLine)
		p.parseInlines(n, restLine, t.Line, t.Indentation)
		return n
	}
}

// parseVerbatim consumes the byte-exact content of a verbatim or diagram
// block: every following line indented more than the opening tag, blank lines
// included. The content keeps the relative indentation of its lines.
func (p *Parser) parseVerbatim(parent *Node) {
	var contentLines []Token
	minimumIndentation := -1
	lastNonBlankLine := 0

	for {
		t, ok := p.peek()
		if !ok {
			break
		}
		if t.Type == BlankToken {
			p.next()
			contentLines = append(contentLines, t)
			continue
		}
		if t.Indentation <= parent.Indentation {
			break
		}
		p.next()

		if minimumIndentation == -1 || t.Indentation < minimumIndentation {
			minimumIndentation = t.Indentation
		}
		contentLines = append(contentLines, t)
		lastNonBlankLine = len(contentLines)
	}

	// Spurious blank lines at the end belong to the next block, not here
	var br ByteRenderer
	for _, line := range contentLines[:lastNonBlankLine] {
		if line.Type == BlankToken {
			br.Renderln()
			continue
		}
		br.Renderln(bytes.Repeat([]byte(" "), line.Indentation-minimumIndentation), line.Content)
	}

	parent.InnerText = br.CloneBytes()
}

// parseList groups the run of list items at the same indentation into a
// single list node.
func (p *Parser) parseList(t Token) *Node {
	list := &Node{
		Type:        BlockNode,
		Name:        "ul",
		LineNumber:  t.Line,
		Indentation: t.Indentation,
	}

	for {
		tok, ok := p.peekContent()
		if !ok || tok.Type != ListItemToken || tok.Indentation != t.Indentation {
			break
		}
		p.next()

		item := &Node{
			Type:        BlockNode,
			Name:        "li",
			LineNumber:  tok.Line,
			Indentation: tok.Indentation,
		}
		text := tok.Content[len("- "):]
		item.RestLine = bytes.Clone(text)
		p.parseInlines(item, text, tok.Line, tok.Indentation)
		list.AppendChild(item)

		// Nested content of the item is more indented than the marker
		p.parseBlocks(item, tok.Indentation+1)
	}

	return list
}

// parseTable consumes the run of table row lines at the same indentation.
// Rows must all have the same number of cells; a ragged table degrades to a
// raw text block with a malformed-markup warning instead of aborting.
func (p *Parser) parseTable(t Token) *Node {
	var rawLines []Token
	var rows [][]string

	for {
		tok, ok := p.peek()
		if !ok || tok.Type != TableRowToken || tok.Indentation != t.Indentation {
			break
		}
		p.next()
		rawLines = append(rawLines, tok)
		rows = append(rows, splitTableRow(tok.Content))
	}

	// Separator rows like |---|---| are decoration, drop them
	filtered := rows[:0]
	for _, row := range rows {
		if !isSeparatorRow(row) {
			filtered = append(filtered, row)
		}
	}
	rows = filtered

	columns := -1
	for _, row := range rows {
		if columns == -1 {
			columns = len(row)
			continue
		}
		if len(row) != columns {
			p.diags.Warnf(MalformedMarkup, t.Line, t.Indentation,
				"table rows have inconsistent column counts, emitting the block as plain text")
			var br ByteRenderer
			for _, line := range rawLines {
				br.Renderln(line.Content)
			}
			// The raw text must stay a block of its own; wrapping it keeps it
			// out of the inline stream of the enclosing section heading.
			degraded := &Node{
				Type:        BlockNode,
				Name:        "pre",
				LineNumber:  t.Line,
				Indentation: t.Indentation,
			}
			degraded.AppendChild(&Node{
				Type:        RawTextNode,
				InnerText:   br.CloneBytes(),
				LineNumber:  t.Line,
				Indentation: t.Indentation,
			})
			return degraded
		}
	}

	return &Node{
		Type:        TableNode,
		Rows:        rows,
		LineNumber:  t.Line,
		Indentation: t.Indentation,
	}
}

func splitTableRow(line []byte) []string {
	s := strings.TrimSpace(string(line))
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	parts := strings.Split(s, "|")
	cells := make([]string, len(parts))
	for i, c := range parts {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return len(cells) > 0
}

// Inline shorthand syntaxes. The optional leading backslash escapes the
// shorthand, rendering it literally.
var reTermRef = regexp.MustCompile(`(\\)?\[=([^=|\]]+?)(?:\|([^=\]]+))?=\]`)
var reAnchorRef = regexp.MustCompile(`(\\)?\[\[#([\w.+-]+)(?:\|([^\]]+))?\]\]`)
var reCitationRef = regexp.MustCompile(`(\\)?\[\[(!)?([\w.+-]+)(?:\|([^\]]+))?\]\]`)
var reExplicitRef = regexp.MustCompile(`<x-ref +"([^"]+)" *>`)

// Local markdown conversions applied to the text around the shorthands
var reCodeBackticks = regexp.MustCompile("\x60(.+?)\x60")
var reMarkdownBold = regexp.MustCompile(`\*\*(.+?)\*\*`)
var reMarkdownItalics = regexp.MustCompile(`__(.+?)__`)

// parseInlines splits text into RawText and Reference children of n,
// preserving source order. References are created Unresolved; the Resolver
// fills in their state after the Registry is complete.
func (p *Parser) parseInlines(n *Node, text []byte, line, indentation int) {
	appendRaw := func(b []byte) {
		if len(b) == 0 {
			return
		}
		n.AppendChild(&Node{
			Type:        RawTextNode,
			InnerText:   preprocessMarkdown(b),
			LineNumber:  line,
			Indentation: indentation,
		})
	}

	for len(text) > 0 {
		loc, build := findLeftmostShorthand(text)
		if loc == nil {
			appendRaw(text)
			return
		}

		appendRaw(text[:loc[0]])
		match := text[loc[0]:loc[1]]

		ref, escaped := build(match)
		if escaped {
			// Render the shorthand literally, without the backslash
			appendRaw(match[1:])
		} else {
			n.AppendChild(&Node{
				Type:        ReferenceNode,
				Ref:         ref,
				LineNumber:  line,
				Indentation: indentation,
			})
		}

		text = text[loc[1]:]
	}
}

// A shorthandBuilder turns a regex match into a Reference, or reports that
// the shorthand was escaped.
type shorthandBuilder func(match []byte) (*Reference, bool)

// findLeftmostShorthand locates the earliest shorthand in text. The anchor
// syntax is probed before the citation syntax; they cannot both match at the
// same offset because a citation key cannot start with '#'.
func findLeftmostShorthand(text []byte) ([]int, shorthandBuilder) {
	var bestLoc []int
	var bestBuild shorthandBuilder

	consider := func(loc []int, build shorthandBuilder) {
		if loc == nil {
			return
		}
		if bestLoc == nil || loc[0] < bestLoc[0] {
			bestLoc = loc
			bestBuild = build
		}
	}

	consider(reTermRef.FindIndex(text), buildTermRef)
	consider(reAnchorRef.FindIndex(text), buildAnchorRef)
	consider(reCitationRef.FindIndex(text), buildCitationRef)
	consider(reExplicitRef.FindIndex(text), buildExplicitRef)

	return bestLoc, bestBuild
}

func buildTermRef(match []byte) (*Reference, bool) {
	m := reTermRef.FindSubmatch(match)
	if len(m[1]) > 0 {
		return nil, true
	}
	return &Reference{
		Kind:    TermRef,
		Key:     string(bytes.TrimSpace(m[2])),
		Display: bytes.Clone(m[3]),
	}, false
}

func buildAnchorRef(match []byte) (*Reference, bool) {
	m := reAnchorRef.FindSubmatch(match)
	if len(m[1]) > 0 {
		return nil, true
	}
	return &Reference{
		Kind:    AnchorRef,
		Key:     string(m[2]),
		Display: bytes.Clone(m[3]),
	}, false
}

func buildCitationRef(match []byte) (*Reference, bool) {
	m := reCitationRef.FindSubmatch(match)
	if len(m[1]) > 0 {
		return nil, true
	}
	return &Reference{
		Kind:      CitationRef,
		Key:       string(m[3]),
		Display:   bytes.Clone(m[4]),
		Normative: len(m[2]) > 0,
	}, false
}

func buildExplicitRef(match []byte) (*Reference, bool) {
	m := reExplicitRef.FindSubmatch(match)
	return &Reference{
		Kind: ExplicitRef,
		Key:  string(m[1]),
	}, false
}

// preprocessMarkdown converts the local markdown spans (backticks, bold,
// italics) of a raw text segment to their markup form.
func preprocessMarkdown(text []byte) []byte {
	out := bytes.Clone(text)
	if bytes.Contains(out, []byte("`")) {
		out = reCodeBackticks.ReplaceAll(out, []byte("<code>${1}</code>"))
	}
	if bytes.Contains(out, []byte("*")) {
		out = reMarkdownBold.ReplaceAll(out, []byte("<b>${1}</b>"))
	}
	if bytes.Contains(out, []byte("_")) {
		out = reMarkdownItalics.ReplaceAll(out, []byte("<i>${1}</i>"))
	}
	return out
}
