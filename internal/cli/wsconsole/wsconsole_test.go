package wsconsole

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/cli/session"
	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

func TestServeHTTPDeliversBannerOverWebsocket(t *testing.T) {
	views := tree.NewViewTree()
	reg := registry.New()
	b := bus.New(reg, nil)
	t.Cleanup(b.Cleanup)

	h := NewHandler(Config{
		Hostname:   "netnexus",
		Views:      views,
		Dispatcher: dispatcher.New(b),
		GlobalHist: session.NewHistory(50),
		Completer:  session.NewCompleter(64),
	})

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/console/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var received []byte
	for !strings.Contains(string(received), "netnexus>") {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (got so far %q)", err, received)
		}
		received = append(received, data...)
	}
}
