package scribe

import (
	"bytes"
	"strconv"
)

// A NodeType is the type of a Node.
type NodeType uint32

const (
	ErrorNode NodeType = iota
	DocumentNode
	SectionNode
	BlockNode
	DefinitionNode
	TableNode
	VerbatimNode
	DiagramNode
	ReferenceNode
	RawTextNode
)

// String returns a string representation of the NodeType.
func (n NodeType) String() string {
	switch n {
	case ErrorNode:
		return "Error"
	case DocumentNode:
		return "Document"
	case SectionNode:
		return "Section"
	case BlockNode:
		return "Block"
	case DefinitionNode:
		return "Definition"
	case TableNode:
		return "Table"
	case VerbatimNode:
		return "Verbatim"
	case DiagramNode:
		return "Diagram"
	case ReferenceNode:
		return "Reference"
	case RawTextNode:
		return "RawText"
	}
	return "Invalid(" + strconv.Itoa(int(n)) + ")"
}

// An Attribute is an attribute key-value pair from a tag spec.
type Attribute struct {
	Key string
	Val []byte
}

// A Node is an element of the document tree. The tree uses the linked
// representation (parent, first/last child, prev/next sibling) so nodes can
// be visited in source order in both directions.
//
// A node exclusively owns its children. Cross references never own their
// target: a ReferenceNode carries a Reference whose resolved target is a
// non-owning pointer found through the Registry.
type Node struct {
	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node

	Type  NodeType
	Name  string // tag name for Block nodes, e.g. "div", "x-note"
	Level int    // heading level for Section nodes

	Id    []byte
	Class []byte
	Src   []byte
	Href  []byte
	Attr  []Attribute

	// Bucket classifies numbered elements (figures, tables...) for the
	// per-class counters, from the ':type' shortcut attribute.
	Bucket []byte

	// RestLine is the inline text of the line after the tag, with inline
	// shorthands already split off into Reference/RawText children.
	RestLine []byte

	// Term is the definition key for Definition nodes.
	Term []byte

	// InnerText holds the byte-exact content of Verbatim and Diagram nodes
	// and the text of RawText nodes.
	InnerText []byte

	// Rows holds the cell grid for Table nodes.
	Rows [][]string

	// Ref is the reference expression payload for Reference nodes.
	Ref *Reference

	Indentation int
	LineNumber  int
}

// tagString returns a string representation of the node's tag and attributes.
func (n Node) tagString() string {
	buf := bytes.NewBufferString(n.Name)
	if n.Id != nil {
		buf.WriteString(` id="`)
		buf.Write(n.Id)
		buf.WriteString(`"`)
	}
	if n.Class != nil {
		buf.WriteString(` class="`)
		buf.Write(n.Class)
		buf.WriteString(`"`)
	}
	for _, a := range n.Attr {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		buf.Write(a.Val)
		buf.WriteByte('"')
	}
	return buf.String()
}

// String returns a string representation of the Node.
func (n Node) String() string {
	switch n.Type {
	case DocumentNode:
		return "TopLevelDocument"
	case SectionNode:
		return "<h" + strconv.Itoa(n.Level) + "> " + string(n.RestLine)
	case ReferenceNode:
		return n.Ref.String()
	case RawTextNode:
		return string(n.InnerText)
	case BlockNode, DefinitionNode, TableNode, VerbatimNode, DiagramNode:
		return "<" + n.tagString() + ">"
	}
	return "Invalid(" + strconv.Itoa(int(n.Type)) + ")"
}

// AppendChild adds child as the last child of parent.
//
// It panics if child already has a parent or siblings.
func (parent *Node) AppendChild(child *Node) {
	if child.Parent != nil || child.PrevSibling != nil || child.NextSibling != nil {
		panic("AppendChild called for an already attached child Node")
	}
	last := parent.LastChild
	if last != nil {
		last.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
	child.Parent = parent
	child.PrevSibling = last
}

// InsertBefore inserts newChild as a child of n, immediately before oldChild.
// oldChild may be nil, in which case newChild is appended at the end.
//
// It panics if newChild already has a parent or siblings.
func (n *Node) InsertBefore(newChild, oldChild *Node) {
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		panic("InsertBefore called for an attached child Node")
	}
	var prev, next *Node
	if oldChild != nil {
		prev, next = oldChild.PrevSibling, oldChild
	} else {
		prev = n.LastChild
	}
	if prev != nil {
		prev.NextSibling = newChild
	} else {
		n.FirstChild = newChild
	}
	if next != nil {
		next.PrevSibling = newChild
	} else {
		n.LastChild = newChild
	}
	newChild.Parent = n
	newChild.PrevSibling = prev
	newChild.NextSibling = next
}

// RemoveChild removes child from n. Afterwards child has no parent and no
// siblings.
//
// It panics if child's parent is not n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("RemoveChild called for a non-child Node")
	}
	if n.FirstChild == child {
		n.FirstChild = child.NextSibling
	}
	if child.NextSibling != nil {
		child.NextSibling.PrevSibling = child.PrevSibling
	}
	if n.LastChild == child {
		n.LastChild = child.PrevSibling
	}
	if child.PrevSibling != nil {
		child.PrevSibling.NextSibling = child.NextSibling
	}
	child.Parent = nil
	child.PrevSibling = nil
	child.NextSibling = nil
}

// ReparentChildren moves all of src's children to dst, keeping their order.
func ReparentChildren(dst, src *Node) {
	for {
		child := src.FirstChild
		if child == nil {
			break
		}
		src.RemoveChild(child)
		dst.AppendChild(child)
	}
}

// Walk visits n and all its descendants depth-first in source order. If fn
// returns false the walk stops.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// AddClass accumulates another class name, separated by a space.
func (n *Node) AddClass(newClass []byte) {
	if len(n.Class) > 0 {
		n.Class = append(n.Class, ' ')
	}
	n.Class = append(n.Class, newClass...)
}

var VoidElements = []string{
	"area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "source", "track", "wbr",
}
var NoBlockElements = []string{
	"p", "code", "b", "i", "hr", "em", "strong", "small", "s",
}
