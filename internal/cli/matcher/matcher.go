// Package matcher walks a view's command tree against a tokenized user
// line, per the algorithm in spec.md §4.G.
package matcher

import (
	"fmt"
	"strings"

	"github.com/netnexus/controlplane/internal/domain/tree"
)

// Element is one bound step along the matched path.
type Element struct {
	CfgID     uint32
	Kind      tree.NodeKind
	Name      string // set for Keyword elements
	Value     string // set for Argument elements (the raw token)
	ParamType string // descriptor source; the dispatcher picks the argument's wire encoding from it
}

// Result is a completed match: the dispatch target plus the bound
// elements along the path.
type Result struct {
	ModuleID    uint32
	GroupID     uint32
	Elements    []Element
	FinalNodeID uint32
}

// UnknownTokenError reports a token that matches neither a keyword
// child nor a validating argument child at the current node.
type UnknownTokenError struct {
	Token  string
	NodeID uint32
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown command token %q", e.Token)
}

// IncompleteCommandError reports a line that ended on a non-terminal
// node; Options lists that node's children as the next valid input.
type IncompleteCommandError struct {
	NodeID  uint32
	Options []uint32
}

func (e *IncompleteCommandError) Error() string {
	return "incomplete command"
}

// ValidationError reports an argument token that matched the shape of
// an argument node but failed its declared parameter-type validation
// (spec.md §8 scenario 2: e.g. "Invalid IPv4 address format").
type ValidationError struct {
	Token  string
	NodeID uint32
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Tokenize splits line on ASCII whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Match walks t starting at rootID following the tokens of line.
// Keyword matches take precedence over argument matches at every step.
func Match(t *tree.Tree, rootID uint32, line string) (*Result, error) {
	tokens := Tokenize(line)
	node := rootID
	var elements []Element

	for _, tok := range tokens {
		if kid, ok := t.FindKeywordChild(node, tok); ok {
			n, _ := t.Node(kid)
			elements = append(elements, Element{CfgID: n.CfgID, Kind: tree.Keyword, Name: n.Name})
			node = kid
			continue
		}

		if aid, ok := t.ArgumentChild(node); ok {
			n, _ := t.Node(aid)
			if n.ParamType == nil {
				node = aid
				elements = append(elements, Element{CfgID: n.CfgID, Kind: tree.Argument, Value: tok})
				continue
			}
			valid, reason := n.ParamType.Validate(tok)
			if valid {
				elements = append(elements, Element{
					CfgID: n.CfgID, Kind: tree.Argument, Value: tok, ParamType: n.ParamType.Source,
				})
				node = aid
				continue
			}
			return nil, &ValidationError{Token: tok, NodeID: node, Reason: reason}
		}

		return nil, &UnknownTokenError{Token: tok, NodeID: node}
	}

	final, ok := t.Node(node)
	if !ok || !final.IsEnd {
		var opts []uint32
		if n, ok := t.Node(node); ok {
			opts = n.ChildIDs
		}
		return nil, &IncompleteCommandError{NodeID: node, Options: opts}
	}

	return &Result{
		ModuleID:    final.ModuleID,
		GroupID:     final.GroupID,
		Elements:    elements,
		FinalNodeID: node,
	}, nil
}
