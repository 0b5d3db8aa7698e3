package scribe

import (
	"bytes"
	"fmt"
	"strconv"
)

// A ByteRenderer accumulates rendered output. It accepts heterogeneous
// fragments (strings, byte slices, integers) to keep rendering call sites
// short.
type ByteRenderer struct {
	bytes.Buffer
}

// Render writes all fragments to the buffer, in order.
func (r *ByteRenderer) Render(inputs ...any) {
	for _, s := range inputs {
		switch v := s.(type) {
		case string:
			r.WriteString(v)
		case []byte:
			r.Write(v)
		case int:
			r.WriteString(strconv.Itoa(v))
		case byte:
			r.WriteByte(v)
		case rune:
			r.WriteRune(v)
		default:
			panic(fmt.Errorf("rendering invalid type: %T", v))
		}
	}
}

// Renderln is like Render but terminates the line.
func (r *ByteRenderer) Renderln(inputs ...any) {
	r.Render(inputs...)
	r.Render("\n")
}

// CloneBytes returns a copy of the accumulated bytes, safe to retain after
// the renderer is reused.
func (r *ByteRenderer) CloneBytes() []byte {
	return bytes.Clone(r.Bytes())
}

// TrimLeft strips leading occurrences of c and returns how many were
// stripped together with the remaining slice.
func TrimLeft(line []byte, c byte) (int, []byte) {
	for i := 0; i < len(line); i++ {
		if line[i] != c {
			return i, line[i:]
		}
	}
	return len(line), nil
}

// SkipWhiteSpace returns the slice starting at the first non-blank character.
func SkipWhiteSpace(line []byte) []byte {
	for i, c := range line {
		if c != ' ' && c != '\t' {
			return line[i:]
		}
	}
	return nil
}

// ReadWord returns the first blank-delimited word and the rest of the line,
// with leading whitespace of the rest already skipped.
func ReadWord(line []byte) (word []byte, rest []byte) {
	indexSpace := bytes.IndexByte(line, ' ')
	if indexSpace == -1 {
		return line, nil
	}

	word = line[:indexSpace]
	rest = SkipWhiteSpace(line[indexSpace+1:])
	return word, rest
}

// ReadTagName reads the tag name at the beginning of a tag spec.
func ReadTagName(tagSpec []byte) (tagName []byte, rest []byte) {
	return ReadWord(tagSpec)
}

// ReadQuotedWords reads a word, or a quoted group of words if the input
// starts with a single or double quotation mark. Used for attribute values
// that may contain embedded blanks.
func ReadQuotedWords(workingTagSpec []byte) (word []byte, rest []byte) {
	if len(workingTagSpec) == 0 {
		return nil, nil
	}

	quote := workingTagSpec[0]
	if quote != '"' && quote != '\'' {
		return ReadWord(workingTagSpec)
	}

	workingTagSpec = workingTagSpec[1:]
	for i, c := range workingTagSpec {
		if c == quote {
			return workingTagSpec[:i], SkipWhiteSpace(workingTagSpec[i+1:])
		}
	}

	// Unterminated quote: take everything to the end of the line. The caller
	// reports the malformed-markup diagnostic, we just keep going.
	return workingTagSpec, nil
}

// ReadTagAttrKey reads a standard 'key=value' HTML attribute from the tag
// spec. The value may be enclosed in single or double quotes. Returns a
// zero-value Attribute if nothing readable remains.
func ReadTagAttrKey(tagSpec []byte) (Attribute, []byte) {
	attr := Attribute{}

	if len(tagSpec) == 0 {
		return attr, nil
	}

	workingTagSpec := tagSpec

	// Select the first word, ending on whitespace, '=' or the end tag char
	for i, c := range workingTagSpec {
		if c == ' ' || c == '\t' || c == '/' || c == '=' {
			attr.Key = string(workingTagSpec[:i])
			workingTagSpec = workingTagSpec[i:]
			break
		}
		if i == len(workingTagSpec)-1 {
			attr.Key = string(workingTagSpec)
			return attr, nil
		}
	}

	// A bare attribute without a value
	workingTagSpec = SkipWhiteSpace(workingTagSpec)
	if len(workingTagSpec) == 0 || workingTagSpec[0] != '=' {
		return attr, workingTagSpec
	}

	// Skip whitespace after the '=' sign
	workingTagSpec = SkipWhiteSpace(workingTagSpec[1:])
	if len(workingTagSpec) == 0 {
		return attr, nil
	}

	quote := workingTagSpec[0]
	switch quote {
	case '\'', '"':
		workingTagSpec = workingTagSpec[1:]
		for i, c := range workingTagSpec {
			if c == quote {
				attr.Val = workingTagSpec[:i]
				return attr, workingTagSpec[i+1:]
			}
		}
		// Unterminated quote, take the remainder as the value
		attr.Val = workingTagSpec
		return attr, nil
	default:
		attr.Val, workingTagSpec = ReadWord(workingTagSpec)
		return attr, workingTagSpec
	}
}

func contains(set []string, name []byte) bool {
	for _, el := range set {
		if bytes.Equal([]byte(el), name) {
			return true
		}
	}
	return false
}
