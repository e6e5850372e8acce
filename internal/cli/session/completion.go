package session

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/netnexus/controlplane/internal/domain/tree"
)

// completionKey identifies one memoized lookup: a given view's command
// tree, the node the cursor is sitting under, and the partial word
// typed so far.
type completionKey struct {
	viewID uint32
	nodeID uint32
	prefix string
}

// Completer answers tab-completion queries against a view's command
// tree, backed by an LRU cache of recent (view, node, prefix) lookups
// (spec.md §4's component Q) — repeated tabbing on the same partial
// word, the single most common completion pattern, never re-walks the
// tree.
type Completer struct {
	cache *lru.Cache[completionKey, []string]
}

// NewCompleter builds a completer with room for size recent lookups.
func NewCompleter(size int) *Completer {
	c, err := lru.New[completionKey, []string](size)
	if err != nil {
		// only returns an error for size <= 0
		c, _ = lru.New[completionKey, []string](128)
	}
	return &Completer{cache: c}
}

// Complete returns the names of t's keyword children of nodeID whose
// name starts with prefix, in tree insertion order.
func (c *Completer) Complete(t *tree.Tree, viewID, nodeID uint32, prefix string) []string {
	key := completionKey{viewID: viewID, nodeID: nodeID, prefix: prefix}
	if names, ok := c.cache.Get(key); ok {
		return names
	}

	var names []string
	for _, id := range t.PartialMatches(nodeID, prefix) {
		if n, ok := t.Node(id); ok {
			names = append(names, n.Name)
		}
	}
	c.cache.Add(key, names)
	return names
}

// Invalidate drops every cached lookup for viewID. Mutating a view's
// tree does not call it; cached entries for that view stay until
// Invalidate runs or the LRU evicts them.
func (c *Completer) Invalidate(viewID uint32) {
	for _, key := range c.cache.Keys() {
		if key.viewID == viewID {
			c.cache.Remove(key)
		}
	}
}

// HelpLines renders the "?" context help for nodeID's children: one
// "name  description" line per child, in insertion order.
func HelpLines(t *tree.Tree, nodeID uint32) []string {
	n, ok := t.Node(nodeID)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		c, ok := t.Node(cid)
		if !ok {
			continue
		}
		if c.Kind == tree.Argument {
			out = append(out, fmt.Sprintf("  <%s>  %s", paramName(c), c.Description))
			continue
		}
		out = append(out, fmt.Sprintf("  %-16s %s", c.Name, c.Description))
	}
	return out
}

func paramName(n *tree.Node) string {
	if n.ParamType != nil {
		return n.ParamType.Source
	}
	return "value"
}
