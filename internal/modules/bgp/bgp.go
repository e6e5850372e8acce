// Package bgp implements a minimal router-bgp module: entering a
// per-AS config view ("router bgp <asn>"), adding neighbors from
// within it ("neighbor <ipv4> remote-as <asn>"), and a top-level
// summary ("show ip bgp summary").
package bgp

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/paramtype"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
	"github.com/netnexus/controlplane/internal/viewids"
)

// Group ids bgp owns within ModuleBGP's id space.
const (
	GroupEnterRouter uint32 = 1
	GroupAddNeighbor uint32 = 2
	GroupShowSummary uint32 = 3
)

type neighbor struct {
	remoteAS uint32
}

// Module holds bgp's runtime state: the configured local AS (0 until
// "router bgp" has run once) and its neighbor table.
type Module struct {
	mu        sync.Mutex
	localAS   uint32
	hasLocal  bool
	neighbors map[string]*neighbor
}

// Register attaches bgp's commands to the user and config views,
// registers the module, and starts its message loop on b.
func Register(reg *registry.Registry, b *bus.Bus, views *tree.ViewTree, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mod := &Module{neighbors: make(map[string]*neighbor)}

	if err := reg.Register(registry.ModuleBGP, "bgp", nil, nil); err != nil {
		return err
	}

	asType := paramtype.Parse("uint(1-4294967295)")
	ipType := paramtype.Parse("ipv4")

	config, _ := views.FindByID(viewids.Config)
	if config != nil {
		router := config.CmdTree.NewNode(0, 0, 0, 0, "router", "routing protocol commands", tree.Keyword)
		routerNode := config.CmdTree.AddChild(config.CmdTree.Root(), router)
		bgpKw := config.CmdTree.NewNode(0, registry.ModuleBGP, GroupEnterRouter, viewids.RouterBGP, "bgp", "configure BGP", tree.Keyword)
		bgpNode := config.CmdTree.AddChild(routerNode, bgpKw)
		asArg := config.CmdTree.NewNode(0, registry.ModuleBGP, GroupEnterRouter, viewids.RouterBGP, "", "autonomous system number", tree.Argument)
		config.CmdTree.SetParamType(asArg, asType)
		config.CmdTree.SetEnd(asArg, true)
		config.CmdTree.AddChild(bgpNode, asArg)
	}

	views.CreateView(viewids.RouterBGP, "router-bgp", "<{hostname}(config-router)>")
	views.AddChildView(viewids.Config, viewids.RouterBGP)

	routerBGP, _ := views.FindByID(viewids.RouterBGP)
	if routerBGP != nil {
		nbr := routerBGP.CmdTree.NewNode(0, 0, 0, 0, "neighbor", "specify a BGP neighbor", tree.Keyword)
		nbrNode := routerBGP.CmdTree.AddChild(routerBGP.CmdTree.Root(), nbr)
		nbrIP := routerBGP.CmdTree.NewNode(0, registry.ModuleBGP, GroupAddNeighbor, 0, "", "neighbor address", tree.Argument)
		routerBGP.CmdTree.SetParamType(nbrIP, ipType)
		nbrIPNode := routerBGP.CmdTree.AddChild(nbrNode, nbrIP)
		remoteAs := routerBGP.CmdTree.NewNode(0, registry.ModuleBGP, GroupAddNeighbor, 0, "remote-as", "specify a BGP neighbor's AS", tree.Keyword)
		remoteAsNode := routerBGP.CmdTree.AddChild(nbrIPNode, remoteAs)
		remoteAsArg := routerBGP.CmdTree.NewNode(0, registry.ModuleBGP, GroupAddNeighbor, 0, "", "neighbor autonomous system number", tree.Argument)
		routerBGP.CmdTree.SetParamType(remoteAsArg, asType)
		routerBGP.CmdTree.SetEnd(remoteAsArg, true)
		routerBGP.CmdTree.AddChild(remoteAsNode, remoteAsArg)
	}

	user, _ := views.FindByID(viewids.User)
	show := findOrAddShow(user.CmdTree)
	ip := user.CmdTree.NewNode(0, 0, 0, 0, "ip", "IP information", tree.Keyword)
	ipNode := user.CmdTree.AddChild(show, ip)
	bgpShow := user.CmdTree.NewNode(0, registry.ModuleBGP, GroupShowSummary, 0, "bgp", "BGP information", tree.Keyword)
	bgpShowNode := user.CmdTree.AddChild(ipNode, bgpShow)
	summary := user.CmdTree.NewNode(0, registry.ModuleBGP, GroupShowSummary, 0, "summary", "summary of BGP neighbor status", tree.Keyword)
	user.CmdTree.SetEnd(summary, true)
	user.CmdTree.AddChild(bgpShowNode, summary)

	d, _ := reg.Get(registry.ModuleBGP)
	go mod.run(d.Mailbox, b, logger)
	return nil
}

// findOrAddShow returns the "show" node under the tree's root, creating
// it if another module hasn't already.
func findOrAddShow(t *tree.Tree) uint32 {
	if id, ok := t.FindKeywordChild(t.Root(), "show"); ok {
		return id
	}
	n := t.NewNode(0, 0, 0, 0, "show", "show commands", tree.Keyword)
	return t.AddChild(t.Root(), n)
}

func (m *Module) run(mb *mq.Mailbox, b *bus.Bus, logger *slog.Logger) {
	for {
		if mb.Closed() {
			return
		}
		if mb.Wait(2*time.Second) == mq.Timeout {
			continue
		}
		for {
			req, ok := mb.Receive()
			if !ok {
				break
			}
			m.handle(req, b, logger)
		}
	}
}

func (m *Module) handle(req mq.Message, b *bus.Bus, logger *slog.Logger) {
	groupID, elems, err := tlv.Decode(req.Payload.Bytes())
	if err != nil {
		logger.Warn("bgp: corrupt request frame", "error", err)
		return
	}

	if len(elems) > 0 && elems[0].ElementID == dispatcher.ContextElementID {
		elems = elems[1:]
	}
	// Keyword elements arrive with an empty value; the handlers below
	// read only the bound arguments.
	args := elems[:0]
	for _, e := range elems {
		if len(e.Value) > 0 {
			args = append(args, e)
		}
	}
	elems = args

	switch groupID {
	case GroupEnterRouter:
		m.handleEnterRouter(req, elems, b)
	case GroupAddNeighbor:
		m.handleAddNeighbor(req, elems, b)
	case GroupShowSummary:
		m.handleShowSummary(req, b)
	default:
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% bgp: unrecognized group " + strconv.FormatUint(uint64(groupID), 10)), RequestID: req.RequestID})
	}
}

func (m *Module) handleEnterRouter(req mq.Message, elems []tlv.RawElement, b *bus.Bus) {
	if len(elems) == 0 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% missing AS number"), RequestID: req.RequestID})
		return
	}
	asn, err := tlv.ReadUint32(elems[0].Value)
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% malformed AS number"), RequestID: req.RequestID})
		return
	}

	m.mu.Lock()
	if m.hasLocal && m.localAS != asn {
		m.mu.Unlock()
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% BGP is already running; see show running-config"), RequestID: req.RequestID})
		return
	}
	m.localAS = asn
	m.hasLocal = true
	m.mu.Unlock()

	payload := tlv.Encode(0, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindU32, U32: viewids.RouterBGP}},
	})
	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIViewChg, Payload: mq.Owned(payload), RequestID: req.RequestID})
}

func (m *Module) handleAddNeighbor(req mq.Message, elems []tlv.RawElement, b *bus.Bus) {
	if len(elems) < 2 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% missing neighbor address or AS"), RequestID: req.RequestID})
		return
	}
	addr, err := tlv.ReadIPv4(elems[0].Value)
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% malformed neighbor address"), RequestID: req.RequestID})
		return
	}
	asn, err := tlv.ReadUint32(elems[1].Value)
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% malformed remote AS"), RequestID: req.RequestID})
		return
	}

	m.mu.Lock()
	m.neighbors[addr.String()] = &neighbor{remoteAS: asn}
	m.mu.Unlock()

	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned(""), RequestID: req.RequestID})
}

func (m *Module) handleShowSummary(req mq.Message, b *bus.Bus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasLocal {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% BGP not configured"), RequestID: req.RequestID})
		return
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("BGP router identifier, local AS number %d", m.localAS))
	lines = append(lines, fmt.Sprintf("Neighbor        AS    State"))

	addrs := make([]string, 0, len(m.neighbors))
	for addr := range m.neighbors {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		nb := m.neighbors[addr]
		lines = append(lines, fmt.Sprintf("%-15s %-5d Idle", addr, nb.remoteAS))
	}

	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned(strings.Join(lines, "\r\n")), RequestID: req.RequestID})
}
