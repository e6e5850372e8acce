// Package db implements the persistence module: the running
// configuration snapshot a CLI operator inspects with "show
// running-config" and "show startup-config", and commits to disk with
// "write memory".
package db

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

// Group ids db owns within ModuleDB's id space.
const (
	GroupShowRunning uint32 = 1
	GroupShowStartup uint32 = 2
	GroupWriteMemory uint32 = 3
)

// Snapshot is the JSON shape persisted to disk by "write memory".
type Snapshot struct {
	Hostname string            `json:"hostname"`
	Lines    []string          `json:"lines"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Module holds db's runtime state: the in-memory running config (seeded
// from the startup config, extended only through Append) and the
// on-disk startup config loaded at boot.
type Module struct {
	path string

	mu       sync.Mutex
	running  []string
	startup  Snapshot
}

// Register registers the module, loads any existing startup config
// from path, and starts its message loop on b. path is where "write
// memory" persists a snapshot; it need not exist yet.
func Register(reg *registry.Registry, b *bus.Bus, views *tree.ViewTree, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mod := &Module{path: path}
	mod.loadStartup(logger)

	if err := reg.Register(registry.ModuleDB, "db", nil, nil); err != nil {
		return err
	}

	user, _ := views.FindByID(tree.RootViewID)
	show := findOrAddShow(user.CmdTree)

	running := user.CmdTree.NewNode(0, registry.ModuleDB, GroupShowRunning, 0, "running-config", "show the running configuration", tree.Keyword)
	user.CmdTree.SetEnd(running, true)
	user.CmdTree.AddChild(show, running)

	startup := user.CmdTree.NewNode(0, registry.ModuleDB, GroupShowStartup, 0, "startup-config", "show the startup configuration", tree.Keyword)
	user.CmdTree.SetEnd(startup, true)
	user.CmdTree.AddChild(show, startup)

	write := user.CmdTree.NewNode(0, 0, 0, 0, "write", "write configuration", tree.Keyword)
	writeNode := user.CmdTree.AddChild(user.CmdTree.Root(), write)
	memory := user.CmdTree.NewNode(0, registry.ModuleDB, GroupWriteMemory, 0, "memory", "write to NVRAM", tree.Keyword)
	user.CmdTree.SetEnd(memory, true)
	user.CmdTree.AddChild(writeNode, memory)

	d, _ := reg.Get(registry.ModuleDB)
	go mod.run(d.Mailbox, b, logger)
	return nil
}

func findOrAddShow(t *tree.Tree) uint32 {
	if id, ok := t.FindKeywordChild(t.Root(), "show"); ok {
		return id
	}
	n := t.NewNode(0, 0, 0, 0, "show", "show commands", tree.Keyword)
	return t.AddChild(t.Root(), n)
}

func (m *Module) loadStartup(logger *slog.Logger) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("db: corrupt startup config, ignoring", "path", m.path, "error", err)
		return
	}
	m.mu.Lock()
	m.startup = snap
	m.running = append([]string(nil), snap.Lines...)
	m.mu.Unlock()
}

// Append records a configuration line in the running config. The other
// modules in this repository do not call it, so changes they apply do
// not appear in "show running-config".
func (m *Module) Append(line string) {
	m.mu.Lock()
	m.running = append(m.running, line)
	m.mu.Unlock()
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
	groupID, _, err := tlv.Decode(req.Payload.Bytes())
	if err != nil {
		logger.Warn("db: corrupt request frame", "error", err)
		return
	}

	switch groupID {
	case GroupShowRunning:
		m.handleShow(req, b, m.snapshotLines())
	case GroupShowStartup:
		m.mu.Lock()
		lines := append([]string(nil), m.startup.Lines...)
		m.mu.Unlock()
		m.handleShow(req, b, lines)
	case GroupWriteMemory:
		m.handleWriteMemory(req, b, logger)
	default:
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% db: unrecognized group " + strconv.FormatUint(uint64(groupID), 10)), RequestID: req.RequestID})
	}
}

func (m *Module) snapshotLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.running...)
}

func (m *Module) handleShow(req mq.Message, b *bus.Bus, lines []string) {
	body := "!\r\n" + strings.Join(lines, "\r\n") + "\r\n!"
	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned(body), RequestID: req.RequestID})
}

func (m *Module) handleWriteMemory(req mq.Message, b *bus.Bus, logger *slog.Logger) {
	m.mu.Lock()
	snap := Snapshot{Lines: append([]string(nil), m.running...)}
	m.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% write failed: " + err.Error()), RequestID: req.RequestID})
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		logger.Warn("db: failed to write startup config", "path", m.path, "error", err)
		b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("% write failed: " + err.Error()), RequestID: req.RequestID})
		return
	}

	m.mu.Lock()
	m.startup = snap
	m.mu.Unlock()

	b.SendResponse(req.SenderID, mq.Message{Type: mq.CLIResp, Payload: mq.Owned("Building configuration...\r\n[OK]"), RequestID: req.RequestID})
}
