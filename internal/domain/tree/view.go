package tree

// View is one node of the view tree: a named CLI mode with its own
// prompt template and command tree. view_id 0 is reserved for "no view
// change" (spec.md §9 open question, resolved); the root user view is
// assigned id 1.
type View struct {
	ViewID         uint32
	Name           string
	PromptTemplate string
	CmdTree        *Tree
	ParentID       uint32
	ChildIDs       []uint32
}

// RootViewID is the id of the user view, the root of the view tree.
const RootViewID uint32 = 1

// ViewTree holds every view, addressed by id, built once during init
// and shared read-only across sessions thereafter.
type ViewTree struct {
	views map[uint32]*View
}

// NewViewTree creates a view tree with the root "user" view.
func NewViewTree() *ViewTree {
	vt := &ViewTree{views: make(map[uint32]*View)}
	vt.CreateView(RootViewID, "user", "<{hostname}>")
	return vt
}

// CreateView registers a new view.
func (vt *ViewTree) CreateView(viewID uint32, name, promptTemplate string) *View {
	v := &View{ViewID: viewID, Name: name, PromptTemplate: promptTemplate, CmdTree: NewTree()}
	vt.views[viewID] = v
	return v
}

// AddChildView attaches childID under parentID in the view tree.
func (vt *ViewTree) AddChildView(parentID, childID uint32) {
	parent, ok := vt.views[parentID]
	if !ok {
		return
	}
	child, ok := vt.views[childID]
	if !ok {
		return
	}
	child.ParentID = parentID
	parent.ChildIDs = append(parent.ChildIDs, childID)
}

// FindByID returns the view registered under id.
func (vt *ViewTree) FindByID(id uint32) (*View, bool) {
	v, ok := vt.views[id]
	return v, ok
}

// InjectIntoAll clones the subtree rooted at srcID (from src) into
// every registered view's command tree, attached at that view's root —
// the "all-views" sentinel from spec.md §6.
func (vt *ViewTree) InjectIntoAll(src *Tree, srcID uint32) {
	for _, v := range vt.views {
		Clone(src, srcID, v.CmdTree, v.CmdTree.Root())
	}
}
