package ifmgr

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
	"github.com/netnexus/controlplane/internal/viewids"
)

func newHarness(t *testing.T) (*bus.Bus, *tree.ViewTree, *NameMap) {
	t.Helper()
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)
	views := tree.NewViewTree()
	views.CreateView(viewids.Config, "config", "<{hostname}(config)>")
	views.AddChildView(viewids.User, viewids.Config)

	mapPath := filepath.Join(t.TempDir(), "ifnames.conf")
	if err := os.WriteFile(mapPath, []byte("wan0 = eth0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := NewNameMap(mapPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(names.Close)

	if err := Register(reg, b, views, names, nil); err != nil {
		t.Fatal(err)
	}
	return b, views, names
}

func TestShowInterfaceBeforeConfigReportsDown(t *testing.T) {
	b, _, _ := newHarness(t)

	req := tlv.Encode(GroupShowInterface, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindStr, Str: "wan0"}},
	})
	reply := b.Query(1, registry.EventCFG, registry.ModuleIF, mq.Message{Type: mq.CLI, Payload: mq.Owned(req)}, time.Second)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	body := string(reply.Payload.Bytes())
	if !strings.Contains(body, "wan0 (eth0)") || !strings.Contains(body, "administratively down") {
		t.Fatalf("got %q", body)
	}
}

func TestEnterInterfaceThenSetAddress(t *testing.T) {
	b, _, _ := newHarness(t)

	enter := tlv.Encode(GroupEnterInterface, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindStr, Str: "wan0"}},
	})
	reply := b.Query(1, registry.EventCFG, registry.ModuleIF, mq.Message{Type: mq.CLI, Payload: mq.Owned(enter)}, time.Second)
	if reply == nil || reply.Type != mq.CLIViewChg {
		t.Fatalf("expected CLIViewChg, got %+v", reply)
	}
	_, elems, err := tlv.Decode(reply.Payload.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	viewID, err := tlv.ReadUint32(elems[0].Value)
	if err != nil || viewID != viewids.ConfigIf {
		t.Fatalf("expected view id %d, got %d", viewids.ConfigIf, viewID)
	}
	ctx := elems[1].Value

	setAddr := tlv.Encode(GroupSetIPAddress, []tlv.Element{
		{ElementID: dispatcher.ContextElementID, Value: tlv.ElementValue{Kind: tlv.KindRaw, Raw: ctx}},
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindIPv4, IP: mustIP("10.0.0.1")}},
		{ElementID: 2, Value: tlv.ElementValue{Kind: tlv.KindIPv4, IP: mustIP("255.255.255.0")}},
	})
	reply = b.Query(1, registry.EventCFG, registry.ModuleIF, mq.Message{Type: mq.CLI, Payload: mq.Owned(setAddr)}, time.Second)
	if reply == nil || reply.Type != mq.CLIResp {
		t.Fatalf("expected CLIResp, got %+v", reply)
	}

	showReq := tlv.Encode(GroupShowInterface, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindStr, Str: "wan0"}},
	})
	reply = b.Query(1, registry.EventCFG, registry.ModuleIF, mq.Message{Type: mq.CLI, Payload: mq.Owned(showReq)}, time.Second)
	body := string(reply.Payload.Bytes())
	if !strings.Contains(body, "10.0.0.1/255.255.255.0") {
		t.Fatalf("got %q", body)
	}
}

func TestSetIPAddressWithoutContextFails(t *testing.T) {
	b, _, _ := newHarness(t)

	req := tlv.Encode(GroupSetIPAddress, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindIPv4, IP: mustIP("10.0.0.1")}},
		{ElementID: 2, Value: tlv.ElementValue{Kind: tlv.KindIPv4, IP: mustIP("255.255.255.0")}},
	})
	reply := b.Query(1, registry.EventCFG, registry.ModuleIF, mq.Message{Type: mq.CLI, Payload: mq.Owned(req)}, time.Second)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	if got := string(reply.Payload.Bytes()); got != "% no interface selected" {
		t.Fatalf("got %q", got)
	}
}

func mustIP(s string) net.IP {
	return net.ParseIP(s).To4()
}
