package scribe

import (
	"bufio"
	"bytes"
)

const blank byte = ' '
const commentPrefix = "//"

const startHTMLTag = '<'
const endHTMLTag = '>'

// A Lexer converts the raw source text into a finite sequence of classified
// line tokens. It never aborts on malformed markup: anything it cannot
// classify degrades to a TextToken, with a diagnostic when appropriate, so the
// rest of the pipeline always receives the full document.
type Lexer struct {
	fileName string
	s        *bufio.Scanner
	diags    *DiagnosticList

	lineCounter int
}

// NewLexer creates a Lexer over the given source. The fileName is only used
// in diagnostics.
func NewLexer(fileName string, src []byte, diags *DiagnosticList) *Lexer {
	return &Lexer{
		fileName: fileName,
		s:        bufio.NewScanner(bytes.NewReader(src)),
		diags:    diags,
	}
}

// Tokens lexes the whole input and returns the token sequence. The sequence
// is finite and the Lexer is not restartable; create a new one to re-lex.
func (lx *Lexer) Tokens() []Token {
	var tokens []Token

	// The front matter can only appear before any other content
	startOfFile := true

	for lx.s.Scan() {
		rawLine := bytes.Clone(lx.s.Bytes())
		lx.lineCounter++

		// Strip blanks at the beginning of the line and calculate indentation
		// by the difference in lengths. We do not support tabs for indentation.
		indentation, line := TrimLeft(rawLine, blank)
		line = bytes.TrimRight(line, " \t\r")

		if len(line) == 0 {
			tokens = append(tokens, Token{Type: BlankToken, Line: lx.lineCounter})
			continue
		}

		if startOfFile && indentation == 0 && bytes.HasPrefix(line, []byte("---")) {
			tokens = append(tokens, lx.lexFrontMatter())
			startOfFile = false
			continue
		}
		startOfFile = false

		tokens = append(tokens, lx.classifyLine(line, indentation))
	}
	if err := lx.s.Err(); err != nil {
		// Unrecoverable input I/O is the one case that does abort, but the
		// already-lexed tokens are kept for the caller.
		tokens = append(tokens, Token{Type: ErrorToken, Content: []byte(lx.fileName + ": " + err.Error()), Line: lx.lineCounter})
	}

	return tokens
}

// lexFrontMatter consumes the YAML metadata block after the opening '---'
// line and returns it as a single token. Reaching end-of-input without the
// closing delimiter is a structural error, but the collected content is kept.
func (lx *Lexer) lexFrontMatter() Token {
	startLine := lx.lineCounter
	var yamlContent ByteRenderer
	endFound := false

	for lx.s.Scan() {
		rawLine := bytes.Clone(lx.s.Bytes())
		lx.lineCounter++

		if bytes.HasPrefix(rawLine, []byte("---")) {
			endFound = true
			break
		}

		yamlContent.Renderln(rawLine)
	}

	if !endFound {
		lx.diags.Errorf(StructuralViolation, startLine, 0,
			"end of input reached without the closing '---' of the metadata header")
	}

	return Token{
		Type:    FrontMatterToken,
		Content: yamlContent.CloneBytes(),
		Line:    startLine,
	}
}

// classifyLine decides the token type from the first characters of the line.
func (lx *Lexer) classifyLine(line []byte, indentation int) Token {
	t := Token{
		Content:     line,
		Line:        lx.lineCounter,
		Indentation: indentation,
	}

	switch {
	case bytes.HasPrefix(line, []byte(commentPrefix)):
		t.Type = CommentToken

	case line[0] == '#':
		t.Type = HeadingToken

	case bytes.HasPrefix(line, []byte("- ")):
		t.Type = ListItemToken

	case line[0] == '|':
		t.Type = TableRowToken

	case line[0] == startHTMLTag:
		// A tag line needs at least '<x'. A lone '<' or '< ' is almost
		// certainly a typo, flag it and fall back to text.
		if len(line) < 3 || line[1] == ' ' {
			lx.diags.Warnf(MalformedMarkup, lx.lineCounter, indentation,
				"'<' does not start a valid tag, treating the line as plain text")
			t.Type = TextToken
			break
		}
		if bytes.HasPrefix(line, []byte("</")) {
			// Explicit end tags are redundant in this syntax (blocks close by
			// indentation), tolerate and ignore them.
			t.Type = CommentToken
			break
		}
		t.Type = TagToken

	default:
		t.Type = TextToken
	}

	return t
}
