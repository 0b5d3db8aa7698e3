package scribe

import (
	"strconv"
)

// A TokenType is the type of a Token.
type TokenType uint32

const (
	// ErrorToken means that an error occurred during tokenization.
	ErrorToken TokenType = iota
	// TextToken is a plain text line without any markup at the start.
	TextToken
	// BlankToken is an empty line (after trimming whitespace).
	BlankToken
	// CommentToken is a source comment line, starting with '//'.
	CommentToken
	// FrontMatterToken holds the whole YAML metadata header of the document.
	FrontMatterToken
	// HeadingToken is a Markdown-style heading line: '#', '##', ...
	HeadingToken
	// TagToken is a line starting with a tag spec like <section #id .class>.
	TagToken
	// ListItemToken is a Markdown-style list item line: '- item'.
	ListItemToken
	// TableRowToken is a table row line: '| a | b |'.
	TableRowToken
)

// String returns a string representation of the TokenType.
func (t TokenType) String() string {
	switch t {
	case ErrorToken:
		return "Error"
	case TextToken:
		return "Text"
	case BlankToken:
		return "Blank"
	case CommentToken:
		return "Comment"
	case FrontMatterToken:
		return "FrontMatter"
	case HeadingToken:
		return "Heading"
	case TagToken:
		return "Tag"
	case ListItemToken:
		return "ListItem"
	case TableRowToken:
		return "TableRow"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

// A Token is one classified line of the source document. Content is the line
// with the leading indentation stripped; Indentation is the number of stripped
// blanks, which doubles as the column for diagnostics. Tokens are immutable
// once produced by the Lexer.
type Token struct {
	Type        TokenType
	Content     []byte
	Line        int
	Indentation int
}

// String returns a short representation of the Token for debugging.
func (t Token) String() string {
	switch t.Type {
	case BlankToken:
		return "<blank>"
	case ErrorToken:
		return "<error>"
	}
	return t.Type.String() + "(" + strconv.Itoa(t.Line) + "): " + string(t.Content)
}
