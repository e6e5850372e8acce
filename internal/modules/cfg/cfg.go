// Package cfg implements the configuration-dispatch module: it owns
// the transition from the user view into the config view ("configure
// terminal"), the entry point every other configurable module's
// subtree hangs off of.
package cfg

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
	"github.com/netnexus/controlplane/internal/viewids"
)

// GroupEnterConfig is the group id bound to "configure terminal".
const GroupEnterConfig uint32 = 1

// Register attaches the config module's commands to the user view,
// creates the config view, registers the module, and starts its
// message loop on b.
func Register(reg *registry.Registry, b *bus.Bus, views *tree.ViewTree, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := reg.Register(registry.ModuleCFG, "cfg", nil, nil); err != nil {
		return err
	}

	views.CreateView(viewids.Config, "config", "<{hostname}(config)>")
	views.AddChildView(viewids.User, viewids.Config)

	user, _ := views.FindByID(viewids.User)
	configure := user.CmdTree.NewNode(0, registry.ModuleCFG, GroupEnterConfig, viewids.Config, "configure", "enter configuration mode", tree.Keyword)
	user.CmdTree.SetEnd(configure, true)
	configureNode := user.CmdTree.AddChild(user.CmdTree.Root(), configure)
	terminal := user.CmdTree.NewNode(0, registry.ModuleCFG, GroupEnterConfig, viewids.Config, "terminal", "configure from this terminal", tree.Keyword)
	user.CmdTree.SetEnd(terminal, true)
	user.CmdTree.AddChild(configureNode, terminal)

	d, _ := reg.Get(registry.ModuleCFG)
	go run(reg, d.Mailbox, b, logger)
	return nil
}

func run(reg *registry.Registry, mb *mq.Mailbox, b *bus.Bus, logger *slog.Logger) {
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
			handle(req, b, logger)
		}
	}
}

func handle(req mq.Message, b *bus.Bus, logger *slog.Logger) {
	groupID, _, err := tlv.Decode(req.Payload.Bytes())
	if err != nil {
		logger.Warn("cfg: corrupt request frame", "error", err)
		return
	}

	switch groupID {
	case GroupEnterConfig:
		payload := tlv.Encode(0, []tlv.Element{
			{ElementID: 1, Value: tlv.ElementValue{Kind: tlv.KindU32, U32: viewids.Config}},
		})
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIViewChg, Payload: mq.Owned(payload), RequestID: req.RequestID})
	default:
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% cfg: unrecognized group " + strconv.FormatUint(uint64(groupID), 10)), RequestID: req.RequestID})
	}
}
