package cfg

import (
	"testing"
	"time"

	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
	"github.com/netnexus/controlplane/internal/viewids"
)

func newHarness(t *testing.T) (*bus.Bus, *registry.Registry, *tree.ViewTree) {
	t.Helper()
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)
	views := tree.NewViewTree()
	if err := Register(reg, b, views, nil); err != nil {
		t.Fatal(err)
	}
	return b, reg, views
}

func TestRegisterAttachesConfigureTerminal(t *testing.T) {
	_, _, views := newHarness(t)

	config, ok := views.FindByID(viewids.Config)
	if !ok {
		t.Fatal("expected the config view to exist")
	}
	if config.PromptTemplate == "" {
		t.Fatal("expected a prompt template on the config view")
	}

	user, _ := views.FindByID(viewids.User)
	kw, ok := user.CmdTree.FindKeywordChild(user.CmdTree.Root(), "configure")
	if !ok {
		t.Fatal("expected a \"configure\" keyword under the user view")
	}
	term, ok := user.CmdTree.FindKeywordChild(kw, "terminal")
	if !ok {
		t.Fatal("expected a \"terminal\" keyword under \"configure\"")
	}
	n, _ := user.CmdTree.Node(term)
	if !n.IsEnd || n.ModuleID != registry.ModuleCFG || n.GroupID != GroupEnterConfig {
		t.Fatalf("unexpected end-node binding: %+v", n)
	}

	// "configure" alone (without the optional "terminal") must also
	// dispatch: it is its own end node, not just a waypoint to one.
	cn, _ := user.CmdTree.Node(kw)
	if !cn.IsEnd || cn.ModuleID != registry.ModuleCFG || cn.GroupID != GroupEnterConfig {
		t.Fatalf("expected \"configure\" itself to be an end node: %+v", cn)
	}
}

func TestEnterConfigRepliesViewChange(t *testing.T) {
	b, _, _ := newHarness(t)

	req := tlv.Encode(GroupEnterConfig, nil)
	reply := b.Query(99, registry.EventCFG, registry.ModuleCFG, mq.Message{Type: mq.CLI, Payload: mq.Owned(req)}, time.Second)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	if reply.Type != mq.CLIViewChg {
		t.Fatalf("expected CLIViewChg, got %v", reply.Type)
	}

	viewID, elems, err := tlv.Decode(reply.Payload.Bytes())
	_ = viewID
	if err != nil {
		t.Fatal(err)
	}
	got, err := tlv.ReadUint32(elems[0].Value)
	if err != nil || got != viewids.Config {
		t.Fatalf("expected view id %d, got %d (err=%v)", viewids.Config, got, err)
	}
}

func TestUnknownGroupRepliesError(t *testing.T) {
	b, _, _ := newHarness(t)

	req := tlv.Encode(99, nil)
	reply := b.Query(1, registry.EventCFG, registry.ModuleCFG, mq.Message{Type: mq.CLI, Payload: mq.Owned(req)}, time.Second)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	if reply.Type != mq.CLIResp {
		t.Fatalf("expected CLIResp, got %v", reply.Type)
	}
	if got := string(reply.Payload.Bytes()); got != "% cfg: unrecognized group 99" {
		t.Fatalf("got %q", got)
	}
}
