package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

func newHarness(t *testing.T) (*bus.Bus, string) {
	t.Helper()
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)
	views := tree.NewViewTree()

	path := filepath.Join(t.TempDir(), "startup-config.json")
	if err := Register(reg, b, views, path, nil); err != nil {
		t.Fatal(err)
	}
	return b, path
}

func query(t *testing.T, b *bus.Bus, groupID uint32) *mq.Message {
	t.Helper()
	req := tlv.Encode(groupID, nil)
	reply := b.Query(1, registry.EventCFG, registry.ModuleDB, mq.Message{Type: mq.CLI, Payload: mq.Owned(req)}, time.Second)
	if reply == nil {
		t.Fatal("expected a reply")
	}
	return reply
}

func TestShowRunningConfigEmptyByDefault(t *testing.T) {
	b, _ := newHarness(t)
	reply := query(t, b, GroupShowRunning)
	body := string(reply.Payload.Bytes())
	if !strings.HasPrefix(body, "!\r\n") || !strings.HasSuffix(body, "\r\n!") {
		t.Fatalf("got %q", body)
	}
}

func TestWriteMemoryPersistsAndReloadsAsStartup(t *testing.T) {
	b, path := newHarness(t)

	reply := query(t, b, GroupWriteMemory)
	if !strings.Contains(string(reply.Payload.Bytes()), "[OK]") {
		t.Fatalf("got %q", reply.Payload.Bytes())
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}

	startup := query(t, b, GroupShowStartup)
	if got := string(startup.Payload.Bytes()); got != "!\r\n\r\n!" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadStartupFromExistingFile(t *testing.T) {
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)
	views := tree.NewViewTree()

	path := filepath.Join(t.TempDir(), "startup-config.json")
	if err := os.WriteFile(path, []byte(`{"lines":["hostname router1"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Register(reg, b, views, path, nil); err != nil {
		t.Fatal(err)
	}

	reply := query(t, b, GroupShowStartup)
	body := string(reply.Payload.Bytes())
	if !strings.Contains(body, "hostname router1") {
		t.Fatalf("got %q", body)
	}
}
