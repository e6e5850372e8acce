package session

import (
	"testing"

	"github.com/netnexus/controlplane/internal/domain/tree"
)

func buildCompletionTree() *tree.Tree {
	t := tree.NewTree()
	root := t.Root()
	for _, kw := range []string{"show", "shutdown", "ssh", "interface"} {
		id := t.NewNode(0, 1, 1, 0, kw, kw+" command", tree.Keyword)
		t.AddChild(root, id)
	}
	return t
}

func TestCompleterReturnsMatchesAndCaches(t *testing.T) {
	tr := buildCompletionTree()
	c := NewCompleter(16)

	got := c.Complete(tr, 1, tr.Root(), "sh")
	if len(got) != 2 || got[0] != "show" || got[1] != "shutdown" {
		t.Fatalf("got %v", got)
	}

	// second call should hit the cache and return the same slice
	got2 := c.Complete(tr, 1, tr.Root(), "sh")
	if len(got2) != 2 {
		t.Fatalf("got %v", got2)
	}
}

func TestCompleterInvalidateDropsCachedView(t *testing.T) {
	tr := buildCompletionTree()
	c := NewCompleter(16)
	c.Complete(tr, 1, tr.Root(), "s")
	c.Invalidate(1)

	newID := tr.NewNode(0, 1, 1, 0, "snmp", "snmp command", tree.Keyword)
	tr.AddChild(tr.Root(), newID)

	got := c.Complete(tr, 1, tr.Root(), "s")
	found := false
	for _, m := range got {
		if m == "snmp" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected freshly-added 'snmp' to appear after invalidation, got %v", got)
	}
}

func TestHelpLinesRendersChildren(t *testing.T) {
	tr := buildCompletionTree()
	lines := HelpLines(tr, tr.Root())
	if len(lines) != 4 {
		t.Fatalf("expected 4 help lines, got %d: %v", len(lines), lines)
	}
}
