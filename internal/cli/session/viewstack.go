package session

import (
	"strings"

	"github.com/netnexus/controlplane/internal/domain/tree"
)

// MaxViewDepth bounds the prompt stack so a runaway chain of view
// changes (a misbehaving module replying CLIViewChg forever) can't grow
// memory unbounded.
const MaxViewDepth = 8

// viewFrame is one entry on a session's view stack: which view it's in,
// the command-tree node the matcher should start walking from (usually
// that view's tree root), and the opaque context blob the view's owning
// module handed back on entry (e.g. which interface is being
// configured), echoed back verbatim on every subsequent command.
type viewFrame struct {
	viewID  uint32
	nodeID  uint32
	context []byte
}

// ViewStack tracks a session's nested CLI views (user -> config ->
// config-if -> ...), replacing the source's single mutable
// g_current_view/g_current_interface globals (spec.md §9) with a
// per-session, push/pop stack.
type ViewStack struct {
	views *tree.ViewTree
	stack []viewFrame
}

// NewViewStack starts a stack at the view tree's root view.
func NewViewStack(views *tree.ViewTree) *ViewStack {
	root, _ := views.FindByID(tree.RootViewID)
	vs := &ViewStack{views: views}
	vs.stack = []viewFrame{{viewID: tree.RootViewID, nodeID: root.CmdTree.Root()}}
	return vs
}

// Current returns the view and tree-walk start node on top of the stack.
func (vs *ViewStack) Current() (*tree.View, uint32) {
	top := vs.stack[len(vs.stack)-1]
	v, _ := vs.views.FindByID(top.viewID)
	return v, top.nodeID
}

// Push enters viewID with the given context blob, unless the stack is
// already at MaxViewDepth, in which case it is a no-op (the caller
// should report that views are nested too deep).
func (vs *ViewStack) Push(viewID uint32, context []byte) bool {
	if len(vs.stack) >= MaxViewDepth {
		return false
	}
	v, ok := vs.views.FindByID(viewID)
	if !ok {
		return false
	}
	vs.stack = append(vs.stack, viewFrame{viewID: viewID, nodeID: v.CmdTree.Root(), context: context})
	return true
}

// Pop leaves the current view, unless already at the root (the user
// view), in which case it is a no-op and the caller should treat "exit"
// at the root as a request to close the connection instead.
func (vs *ViewStack) Pop() bool {
	if len(vs.stack) <= 1 {
		return false
	}
	vs.stack = vs.stack[:len(vs.stack)-1]
	return true
}

// AtRoot reports whether the stack holds only the root user view.
func (vs *ViewStack) AtRoot() bool { return len(vs.stack) <= 1 }

// Context returns the current frame's opaque context blob, nil if none
// was set when this view was entered.
func (vs *ViewStack) Context() []byte {
	return vs.stack[len(vs.stack)-1].context
}

// Prompt renders the current view's prompt template, substituting
// "{hostname}" with hostname and, if present, "{ctx}" with the current
// frame's context blob.
func (vs *ViewStack) Prompt(hostname string) string {
	top := vs.stack[len(vs.stack)-1]
	v, ok := vs.views.FindByID(top.viewID)
	if !ok {
		return hostname + "> "
	}
	p := strings.ReplaceAll(v.PromptTemplate, "{hostname}", hostname)
	p = strings.ReplaceAll(p, "{ctx}", string(top.context))
	return p
}
