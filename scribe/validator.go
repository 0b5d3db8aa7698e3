package scribe

// The Validator runs after resolution and checks cross-cutting properties
// of the finished document that no single pipeline stage can see on its
// own. It only appends diagnostics, it never modifies the tree.
type Validator struct {
	doc *Document
}

func NewValidator(doc *Document) *Validator {
	return &Validator{doc: doc}
}

// Validate performs all the checks. It is safe to emit the document
// afterwards regardless of what was found; errors surface in the
// diagnostics list.
func (v *Validator) Validate() {
	v.checkHeadingLevels()
	v.checkRegistry()
	v.checkReferences()
}

// checkHeadingLevels reports sections that skip more than one level with
// respect to their predecessor in document order, like a level-4 heading
// directly following a level-2 one.
func (v *Validator) checkHeadingLevels() {
	prev := 0
	v.doc.Root.Walk(func(n *Node) bool {
		if n.Type != SectionNode {
			return true
		}
		if prev > 0 && n.Level > prev+1 {
			v.doc.Diags.Warnf(StructuralViolation, n.LineNumber, n.Indentation,
				"heading level jumps from %d to %d", prev, n.Level)
		}
		prev = n.Level
		return true
	})
}

// checkRegistry verifies that every registered anchor still points at a
// node of this document's tree. Key uniqueness needs no check of its own:
// the registry keeps exactly one entry per normalized key and reported
// every duplicate when it was built.
func (v *Validator) checkRegistry() {
	reg := v.doc.Registry
	if reg == nil {
		return
	}
	inTree := v.treeNodes()
	for _, key := range reg.Keys() {
		e, ok := reg.Lookup(key)
		if !ok || e.Node == nil {
			continue
		}
		if !inTree[e.Node] {
			v.doc.Diags.Errorf(StructuralViolation, e.Node.LineNumber, e.Node.Indentation,
				"anchor %q points to a node outside the document", key)
		}
	}
}

// checkReferences verifies that no reference survived resolution in a
// non-terminal state, and that every resolved target is still a node of
// this document's tree.
func (v *Validator) checkReferences() {
	inTree := v.treeNodes()

	v.doc.Root.Walk(func(n *Node) bool {
		if n.Type != ReferenceNode || n.Ref == nil {
			return true
		}
		ref := n.Ref

		if !ref.Terminal() {
			v.doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
				"reference to %q was never resolved", ref.Key)
			return true
		}

		if ref.State == Resolved && !inTree[ref.Target] {
			v.doc.Diags.Errorf(DanglingReference, n.LineNumber, n.Indentation,
				"reference to %q points to a node outside the document", ref.Key)
		}
		return true
	})
}

func (v *Validator) treeNodes() map[*Node]bool {
	inTree := map[*Node]bool{}
	v.doc.Root.Walk(func(n *Node) bool {
		inTree[n] = true
		return true
	})
	return inTree
}
