// Package tree implements the per-view command tree and the view tree
// itself, described in spec.md §3/§4.F. Nodes are arena-allocated and
// addressed by uint32 id (spec.md §9's strategy for the source's cyclic
// parent/child pointers): edges are indices into the arena, not
// pointers, so the whole structure is trivially shareable read-only
// across goroutines once built.
package tree

import (
	"strings"

	"github.com/netnexus/controlplane/internal/domain/paramtype"
)

// NodeKind distinguishes a literal keyword token from a typed argument.
type NodeKind int

const (
	Keyword NodeKind = iota
	Argument
)

// Node is one command-tree node: either a keyword along a path, or a
// bound argument. is_end marks a node where the root-to-here path is a
// complete, dispatchable command.
type Node struct {
	ID          uint32
	ParentID    uint32
	CfgID       uint32
	ModuleID    uint32
	GroupID     uint32
	ViewID      uint32
	Name        string
	Description string
	Kind        NodeKind
	ParamType   *paramtype.Type
	IsEnd       bool
	ChildIDs    []uint32
}

// Tree is one view's command trie, arena-allocated.
type Tree struct {
	nodes  map[uint32]*Node
	nextID uint32
	rootID uint32
}

// NewTree creates a tree with an empty root keyword node.
func NewTree() *Tree {
	t := &Tree{nodes: make(map[uint32]*Node), nextID: 1}
	t.rootID = t.NewNode(0, 0, 0, 0, "", "", Keyword)
	return t
}

// Root returns the id of the tree's root node.
func (t *Tree) Root() uint32 { return t.rootID }

// Node returns the node for id.
func (t *Tree) Node(id uint32) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// NewNode allocates a detached node (no parent yet) and returns its id.
func (t *Tree) NewNode(cfgID, moduleID, groupID, viewID uint32, name, description string, kind NodeKind) uint32 {
	id := t.nextID
	t.nextID++
	t.nodes[id] = &Node{
		ID: id, CfgID: cfgID, ModuleID: moduleID, GroupID: groupID,
		ViewID: viewID, Name: name, Description: description, Kind: kind,
	}
	return id
}

// SetParamType attaches a parameter-type descriptor to an argument node.
func (t *Tree) SetParamType(id uint32, pt paramtype.Type) {
	if n, ok := t.nodes[id]; ok {
		n.ParamType = &pt
	}
}

// SetEnd marks id as a complete, dispatchable command.
func (t *Tree) SetEnd(id uint32, isEnd bool) {
	if n, ok := t.nodes[id]; ok {
		n.IsEnd = isEnd
	}
}

// AddChild attaches childID under parentID. If parentID already has a
// keyword child with the same name (for Keyword children) or already
// has an argument child (for Argument children, which are unique per
// parent), the two merge: childID's own children are re-parented onto
// the pre-existing node, and if childID is itself an end-node the
// pre-existing node's module/group/view binding is overwritten with
// childID's — "duplicate end-nodes prefer the later module/group
// binding" (spec.md §4.F). This gives additive, order-independent tree
// assembly from separately-loaded XML fragments.
//
// AddChild returns the id the child now lives at: childID itself if no
// merge occurred, or the pre-existing node's id otherwise.
func (t *Tree) AddChild(parentID, childID uint32) uint32 {
	parent, ok := t.nodes[parentID]
	if !ok {
		return childID
	}
	child, ok := t.nodes[childID]
	if !ok {
		return childID
	}

	existingID, found := uint32(0), false
	for _, cid := range parent.ChildIDs {
		c := t.nodes[cid]
		if c == nil {
			continue
		}
		if child.Kind == Keyword && c.Kind == Keyword && c.Name == child.Name {
			existingID, found = cid, true
			break
		}
		if child.Kind == Argument && c.Kind == Argument {
			existingID, found = cid, true
			break
		}
	}

	if !found {
		child.ParentID = parentID
		parent.ChildIDs = append(parent.ChildIDs, childID)
		return childID
	}

	existing := t.nodes[existingID]
	if child.IsEnd {
		existing.IsEnd = true
		existing.ModuleID = child.ModuleID
		existing.GroupID = child.GroupID
		existing.ViewID = child.ViewID
		existing.CfgID = child.CfgID
	}
	if child.Description != "" {
		existing.Description = child.Description
	}
	if child.ParamType != nil {
		existing.ParamType = child.ParamType
	}

	grandchildren := append([]uint32(nil), child.ChildIDs...)
	child.ChildIDs = nil
	for _, gc := range grandchildren {
		t.AddChild(existingID, gc)
	}
	return existingID
}

// FindKeywordChild returns the exact-match keyword child of parentID
// named token.
func (t *Tree) FindKeywordChild(parentID uint32, token string) (uint32, bool) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return 0, false
	}
	for _, cid := range parent.ChildIDs {
		if c := t.nodes[cid]; c != nil && c.Kind == Keyword && c.Name == token {
			return cid, true
		}
	}
	return 0, false
}

// ArgumentChild returns the single argument child of parentID, if any.
func (t *Tree) ArgumentChild(parentID uint32) (uint32, bool) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return 0, false
	}
	for _, cid := range parent.ChildIDs {
		if c := t.nodes[cid]; c != nil && c.Kind == Argument {
			return cid, true
		}
	}
	return 0, false
}

// PartialMatches returns the ids of keyword children of parentID whose
// name starts with prefix, in insertion order.
func (t *Tree) PartialMatches(parentID uint32, prefix string) []uint32 {
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil
	}
	var out []uint32
	for _, cid := range parent.ChildIDs {
		c := t.nodes[cid]
		if c != nil && c.Kind == Keyword && strings.HasPrefix(c.Name, prefix) {
			out = append(out, cid)
		}
	}
	return out
}

// Clone deep-copies the subtree rooted at srcID (from src) into dst,
// attached under dstParentID. It supports the XML loader's "all-views"
// sentinel: a command marked for every view is built once and cloned
// into each view's tree.
func Clone(src *Tree, srcID uint32, dst *Tree, dstParentID uint32) uint32 {
	n, ok := src.Node(srcID)
	if !ok {
		return 0
	}
	newID := dst.NewNode(n.CfgID, n.ModuleID, n.GroupID, n.ViewID, n.Name, n.Description, n.Kind)
	if n.ParamType != nil {
		pt := *n.ParamType
		dst.SetParamType(newID, pt)
	}
	dst.SetEnd(newID, n.IsEnd)
	attachedID := dst.AddChild(dstParentID, newID)
	for _, cid := range n.ChildIDs {
		Clone(src, cid, dst, attachedID)
	}
	return attachedID
}
