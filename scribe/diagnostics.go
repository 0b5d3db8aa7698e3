package scribe

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// A Severity classifies how serious a Diagnostic is.
// Errors make the overall compilation fail (after emission completes),
// warnings never do.
type Severity uint32

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "Invalid(" + strconv.Itoa(int(s)) + ")"
}

// MarshalYAML renders the severity as its lowercase name in reports.
func (s Severity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// A Category identifies the class of problem a Diagnostic reports.
type Category string

const (
	MalformedMarkup       Category = "malformed-markup"
	StructuralViolation   Category = "structural-violation"
	DuplicateAnchor       Category = "duplicate-anchor"
	DanglingReference     Category = "dangling-reference"
	AmbiguousReference    Category = "ambiguous-reference"
	ExternalLookupFailure Category = "external-lookup-failure"
)

// A Diagnostic is a structured report of a parse, structural or resolution
// issue, carrying enough position information to be useful in an editor or CI.
type Diagnostic struct {
	Severity Severity `yaml:"severity"`
	Category Category `yaml:"category"`
	Message  string   `yaml:"message"`
	File     string   `yaml:"file"`
	Line     int      `yaml:"line"`
	Column   int      `yaml:"column"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: [%s] %s", d.File, d.Line, d.Column, d.Severity, d.Category, d.Message)
}

// A DiagnosticList accumulates diagnostics in source order. Every pipeline
// stage appends to the same list owned by the Document; there is no global
// diagnostics state.
type DiagnosticList struct {
	fileName string
	items    []Diagnostic
}

func NewDiagnosticList(fileName string) *DiagnosticList {
	return &DiagnosticList{fileName: fileName}
}

func (l *DiagnosticList) Add(d Diagnostic) {
	if d.File == "" {
		d.File = l.fileName
	}
	l.items = append(l.items, d)
}

// Warnf records a warning-severity diagnostic at the given position.
func (l *DiagnosticList) Warnf(cat Category, line, col int, format string, args ...any) {
	l.Add(Diagnostic{
		Severity: SeverityWarning,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
	})
}

// Errorf records an error-severity diagnostic at the given position.
func (l *DiagnosticList) Errorf(cat Category, line, col int, format string, args ...any) {
	l.Add(Diagnostic{
		Severity: SeverityError,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
	})
}

// Items returns the accumulated diagnostics in the order they were reported.
func (l *DiagnosticList) Items() []Diagnostic {
	return l.items
}

func (l *DiagnosticList) Len() int {
	return len(l.items)
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (l *DiagnosticList) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountCategory returns how many diagnostics of the given category were recorded.
func (l *DiagnosticList) CountCategory(cat Category) int {
	n := 0
	for _, d := range l.items {
		if d.Category == cat {
			n++
		}
	}
	return n
}

// Report serializes the list as YAML for machine consumption in CI.
// An empty list serializes as an empty sequence, not as null.
func (l *DiagnosticList) Report() ([]byte, error) {
	items := l.items
	if items == nil {
		items = []Diagnostic{}
	}
	return yaml.Marshal(items)
}
