// Package ifmgr implements the interface-management module: "show
// interface <name>", entering a per-interface config view ("interface
// <name>"), and setting an address from within it ("ip address <ipv4>
// <ipv4>").
package ifmgr

import (
	"fmt"
	"log/slog"
	"strconv"
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

// Group ids ifmgr owns within ModuleIF's id space.
const (
	GroupShowInterface  uint32 = 1
	GroupEnterInterface uint32 = 2
	GroupSetIPAddress   uint32 = 3
)

type ifaceState struct {
	address string
	mask    string
}

// Module holds ifmgr's runtime state: the persisted name map and each
// configured interface's address.
type Module struct {
	names *NameMap

	mu    sync.Mutex
	state map[string]*ifaceState
}

// Register attaches ifmgr's commands to the user and config views,
// registers the module, and starts its message loop on b. names is the
// already-loaded, fsnotify-watched name map (component M); the caller
// owns its lifetime.
func Register(reg *registry.Registry, b *bus.Bus, views *tree.ViewTree, names *NameMap, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mod := &Module{names: names, state: make(map[string]*ifaceState)}

	if err := reg.Register(registry.ModuleIF, "ifmgr", nil, nil); err != nil {
		return err
	}

	ifaceType := paramtype.Parse("string(1-15)")

	user, _ := views.FindByID(viewids.User)
	show := user.CmdTree.NewNode(0, 0, 0, 0, "show", "show commands", tree.Keyword)
	showNode := user.CmdTree.AddChild(user.CmdTree.Root(), show)
	showIface := user.CmdTree.NewNode(0, registry.ModuleIF, GroupShowInterface, 0, "interface", "show interface status", tree.Keyword)
	showIfaceNode := user.CmdTree.AddChild(showNode, showIface)
	showIfaceArg := user.CmdTree.NewNode(0, registry.ModuleIF, GroupShowInterface, 0, "", "interface name", tree.Argument)
	user.CmdTree.SetParamType(showIfaceArg, ifaceType)
	user.CmdTree.SetEnd(showIfaceArg, true)
	user.CmdTree.AddChild(showIfaceNode, showIfaceArg)

	views.CreateView(viewids.ConfigIf, "config-if", "<{hostname}(config-if-{ctx})>")

	config, _ := views.FindByID(viewids.Config)
	if config != nil {
		views.AddChildView(viewids.Config, viewids.ConfigIf)
		iface := config.CmdTree.NewNode(0, registry.ModuleIF, GroupEnterInterface, viewids.ConfigIf, "interface", "configure an interface", tree.Keyword)
		ifaceNode := config.CmdTree.AddChild(config.CmdTree.Root(), iface)
		ifaceArg := config.CmdTree.NewNode(0, registry.ModuleIF, GroupEnterInterface, viewids.ConfigIf, "", "interface name", tree.Argument)
		config.CmdTree.SetParamType(ifaceArg, ifaceType)
		config.CmdTree.SetEnd(ifaceArg, true)
		config.CmdTree.AddChild(ifaceNode, ifaceArg)
	}

	configIf, _ := views.FindByID(viewids.ConfigIf)
	if configIf != nil {
		ip := configIf.CmdTree.NewNode(0, registry.ModuleIF, GroupSetIPAddress, 0, "ip", "ip commands", tree.Keyword)
		ipNode := configIf.CmdTree.AddChild(configIf.CmdTree.Root(), ip)
		addr := configIf.CmdTree.NewNode(0, registry.ModuleIF, GroupSetIPAddress, 0, "address", "set address", tree.Keyword)
		addrNode := configIf.CmdTree.AddChild(ipNode, addr)
		addrArg := configIf.CmdTree.NewNode(0, registry.ModuleIF, GroupSetIPAddress, 0, "", "ip address", tree.Argument)
		configIf.CmdTree.SetParamType(addrArg, paramtype.Parse("ipv4"))
		addrArgNode := configIf.CmdTree.AddChild(addrNode, addrArg)
		maskArg := configIf.CmdTree.NewNode(0, registry.ModuleIF, GroupSetIPAddress, 0, "", "subnet mask", tree.Argument)
		configIf.CmdTree.SetParamType(maskArg, paramtype.Parse("ipv4"))
		configIf.CmdTree.SetEnd(maskArg, true)
		configIf.CmdTree.AddChild(addrArgNode, maskArg)
	}

	d, _ := reg.Get(registry.ModuleIF)
	go mod.run(d.Mailbox, b, logger)
	return nil
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
		logger.Warn("ifmgr: corrupt request frame", "error", err)
		return
	}

	var ctx []byte
	if len(elems) > 0 && elems[0].ElementID == dispatcher.ContextElementID {
		ctx = elems[0].Value
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
	case GroupShowInterface:
		m.handleShowInterface(req, elems, b)
	case GroupEnterInterface:
		m.handleEnterInterface(req, elems, b)
	case GroupSetIPAddress:
		m.handleSetIPAddress(req, ctx, elems, b)
	default:
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% ifmgr: unrecognized group " + strconv.FormatUint(uint64(groupID), 10)), RequestID: req.RequestID})
	}
}

func (m *Module) handleShowInterface(req mq.Message, elems []tlv.RawElement, b *bus.Bus) {
	if len(elems) == 0 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% missing interface name"), RequestID: req.RequestID})
		return
	}
	logical := tlv.ReadString(elems[0].Value)
	physical := m.names.Physical(logical)

	m.mu.Lock()
	st := m.state[logical]
	m.mu.Unlock()

	var body string
	if st == nil {
		body = fmt.Sprintf("%s (%s) is administratively down, line protocol is down", logical, physical)
	} else {
		body = fmt.Sprintf("%s (%s) is up, line protocol is up\r\n  Internet address is %s/%s", logical, physical, st.address, st.mask)
	}
	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned(body), RequestID: req.RequestID})
}

func (m *Module) handleEnterInterface(req mq.Message, elems []tlv.RawElement, b *bus.Bus) {
	if len(elems) == 0 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% missing interface name"), RequestID: req.RequestID})
		return
	}
	logical := tlv.ReadString(elems[0].Value)

	m.mu.Lock()
	if _, ok := m.state[logical]; !ok {
		m.state[logical] = &ifaceState{}
	}
	m.mu.Unlock()

	payload := tlv.Encode(0, []tlv.Element{
		{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindU32, U32: viewids.ConfigIf}},
		{ElementID: 2, Value: tlv.ElementValue{Kind: tlv.KindStr, Str: logical}},
	})
	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIViewChg, Payload: mq.Owned(payload), RequestID: req.RequestID})
}

func (m *Module) handleSetIPAddress(req mq.Message, ctx []byte, elems []tlv.RawElement, b *bus.Bus) {
	if len(ctx) == 0 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% no interface selected"), RequestID: req.RequestID})
		return
	}
	if len(elems) < 2 {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% missing address or mask"), RequestID: req.RequestID})
		return
	}
	logical := string(ctx)
	addr, err := tlv.ReadIPv4(elems[0].Value)
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% malformed address"), RequestID: req.RequestID})
		return
	}
	mask, err := tlv.ReadIPv4(elems[1].Value)
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% malformed mask"), RequestID: req.RequestID})
		return
	}

	m.mu.Lock()
	st, ok := m.state[logical]
	if !ok {
		st = &ifaceState{}
		m.state[logical] = st
	}
	st.address = addr.String()
	st.mask = mask.String()
	m.mu.Unlock()

	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned(""), RequestID: req.RequestID})
}
