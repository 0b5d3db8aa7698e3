package scribe

import (
	"fmt"
	"sort"
	"strings"
)

// EntryKind classifies what a registry key points at.
type EntryKind int

const (
	TermEntry EntryKind = iota
	AnchorEntry
	HeadingEntry
)

func (k EntryKind) String() string {
	switch k {
	case TermEntry:
		return "term"
	case AnchorEntry:
		return "anchor"
	case HeadingEntry:
		return "heading"
	}
	return fmt.Sprintf("EntryKind(%d)", int(k))
}

// An Entry is one resolvable target in the document: a defined term, an
// explicit anchor, or a heading. The first declaration of a key wins;
// later declarations are kept in Dups for reporting.
type Entry struct {
	Key  string
	Kind EntryKind
	Node *Node
	Dups []*Node
}

// A Normalizer folds a reference key or declaration key into canonical
// form before registry lookup.
type Normalizer func(string) string

// DefaultNormalizer lowercases the key and collapses internal whitespace
// runs into single spaces.
func DefaultNormalizer(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(key)), " ")
}

// The Registry maps normalized keys to their targets. It is built in a
// single pass over the finished tree, before any reference is resolved,
// which is what makes forward references work.
//
// The Registry also owns the outline numbering of the sections and the
// per-bucket counters of classified blocks. Numbering is derived data
// about the tree, so it lives here instead of being written into nodes.
type Registry struct {
	entries   map[string]*Entry
	normalize Normalizer

	outline    map[*Node]string
	bucketNums map[*Node]int
	bucketMax  map[string]int
}

// NewRegistry returns an empty registry. A nil normalize selects
// DefaultNormalizer.
func NewRegistry(normalize Normalizer) *Registry {
	if normalize == nil {
		normalize = DefaultNormalizer
	}
	return &Registry{
		entries:    map[string]*Entry{},
		normalize:  normalize,
		outline:    map[*Node]string{},
		bucketNums: map[*Node]int{},
		bucketMax:  map[string]int{},
	}
}

// Build walks the document tree and registers every definition, anchor and
// heading it finds. Duplicate keys produce a duplicate-anchor error
// diagnostic and keep the first declaration.
func (reg *Registry) Build(doc *Document) {
	// counters[i] is the running ordinal of heading level i+1
	var counters [8]int

	doc.Root.Walk(func(n *Node) bool {
		switch n.Type {

		case SectionNode:
			reg.numberSection(n, counters[:])
			key := string(n.Id)
			if key == "" {
				key = string(n.RestLine)
			}
			reg.add(key, HeadingEntry, n, doc.Diags)
			// The outline label is an alternate key for the same section
			reg.addAlias(reg.outline[n], n)

		case DefinitionNode:
			key := string(n.Id)
			if key == "" {
				key = string(n.Term)
			}
			if key != "" {
				reg.add(key, TermEntry, n, doc.Diags)
			}

		case BlockNode, VerbatimNode, DiagramNode, TableNode:
			if len(n.Bucket) > 0 {
				reg.bucketMax[string(n.Bucket)]++
				reg.bucketNums[n] = reg.bucketMax[string(n.Bucket)]
			}
			if len(n.Id) > 0 {
				reg.add(string(n.Id), AnchorEntry, n, doc.Diags)
			}
		}
		return true
	})

	doc.Registry = reg
}

// numberSection assigns the outline label of a section, like "2.3.".
func (reg *Registry) numberSection(n *Node, counters []int) {
	level := n.Level
	if level < 1 {
		level = 1
	}
	if level > len(counters) {
		level = len(counters)
	}

	counters[level-1]++
	for i := level; i < len(counters); i++ {
		counters[i] = 0
	}

	var label strings.Builder
	for i := 0; i < level; i++ {
		fmt.Fprintf(&label, "%d.", counters[i])
	}
	reg.outline[n] = label.String()
}

func (reg *Registry) add(key string, kind EntryKind, n *Node, diags *DiagnosticList) {
	norm := reg.normalize(key)
	if norm == "" {
		return
	}
	if e, found := reg.entries[norm]; found {
		e.Dups = append(e.Dups, n)
		diags.Errorf(DuplicateAnchor, n.LineNumber, n.Indentation,
			"duplicate declaration of %q, first declared at line %d", key, e.Node.LineNumber)
		return
	}
	reg.entries[norm] = &Entry{Key: key, Kind: kind, Node: n}
}

// addAlias registers an extra key for an already registered node, without
// duplicate reporting. Used for outline labels, which are synthetic.
func (reg *Registry) addAlias(key string, n *Node) {
	norm := reg.normalize(key)
	if norm == "" {
		return
	}
	if _, found := reg.entries[norm]; found {
		return
	}
	reg.entries[norm] = &Entry{Key: key, Kind: HeadingEntry, Node: n}
}

// Lookup returns the entry for key after normalization.
func (reg *Registry) Lookup(key string) (*Entry, bool) {
	e, found := reg.entries[reg.normalize(key)]
	return e, found
}

// Variants returns the entries matching close morphological variants of
// key: plural and singular foldings. The result is sorted by key so that
// callers see candidates in a stable order.
func (reg *Registry) Variants(key string) []*Entry {
	norm := reg.normalize(key)

	seen := map[string]bool{norm: true}
	var found []*Entry
	for _, v := range keyVariations(norm) {
		if seen[v] {
			continue
		}
		seen[v] = true
		if e, ok := reg.entries[v]; ok {
			found = append(found, e)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return reg.normalize(found[i].Key) < reg.normalize(found[j].Key)
	})
	return found
}

// keyVariations generates the plural and singular foldings of a normalized
// key: "widget" matches a declared "widgets" and vice versa.
func keyVariations(key string) []string {
	var vars []string

	// singular -> plural
	vars = append(vars, key+"s", key+"es")
	if strings.HasSuffix(key, "y") {
		vars = append(vars, key[:len(key)-1]+"ies")
	}

	// plural -> singular
	if strings.HasSuffix(key, "ies") {
		vars = append(vars, key[:len(key)-3]+"y")
	}
	if strings.HasSuffix(key, "es") {
		vars = append(vars, key[:len(key)-2])
	}
	if strings.HasSuffix(key, "s") {
		vars = append(vars, key[:len(key)-1])
	}

	return vars
}

// OutlineOf returns the outline label of a section node, like "2.3.", or
// the empty string for nodes that are not numbered sections.
func (reg *Registry) OutlineOf(n *Node) string {
	return reg.outline[n]
}

// BucketNumberOf returns the 1-based ordinal of a classified block within
// its bucket, or 0 if the node has no bucket.
func (reg *Registry) BucketNumberOf(n *Node) int {
	return reg.bucketNums[n]
}

// Keys returns all registered keys in sorted normalized order.
func (reg *Registry) Keys() []string {
	keys := make([]string, 0, len(reg.entries))
	for k := range reg.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered entries.
func (reg *Registry) Len() int {
	return len(reg.entries)
}
