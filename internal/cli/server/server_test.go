package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

func TestServerAcceptsAndClosesOnContextCancel(t *testing.T) {
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)
	disp := dispatcher.New(b)
	vt := tree.NewViewTree()

	srv := New(Config{Addr: "127.0.0.1:0", Hostname: "router1", Views: vt, Dispatcher: disp})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// wait for the listener to come up
	var addr string
	for i := 0; i < 100; i++ {
		if srv.ln != nil {
			addr = srv.ln.Addr().String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never started listening")
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	r := bufio.NewReader(conn)
	buf := make([]byte, 256)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("expected to read the negotiation/banner burst: %v", err)
	}

	if srv.SessionCount() != 1 {
		t.Fatalf("expected 1 open session, got %d", srv.SessionCount())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}

	_ = conn.Close()
}

func TestServerDefaultAddrUsesDefaultPort(t *testing.T) {
	srv := New(Config{Hostname: "router1", Views: tree.NewViewTree()})
	if !strings.HasSuffix(srv.Addr, ":3788") {
		t.Fatalf("got addr %q", srv.Addr)
	}
}
