package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netnexus/controlplane/internal/domain/registry"
)

type fakeSessions struct{ n int }

func (f fakeSessions) SessionCount() int { return f.n }

func TestHealthzReportsOK(t *testing.T) {
	reg := registry.New()
	h := New(reg, fakeSessions{n: 2})

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
}

func TestHealthzReportsShuttingDown(t *testing.T) {
	reg := registry.New()
	reg.RequestShutdown()
	h := New(reg, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "shutting_down" {
		t.Fatalf("status = %q", body.Status)
	}
}

func TestModulesListsRegisteredDescriptors(t *testing.T) {
	reg := registry.New()
	if err := reg.Register(5, "bgp", nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(2, "cfg", nil, nil); err != nil {
		t.Fatal(err)
	}
	h := New(reg, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/modules")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var mods []moduleInfo
	if err := json.NewDecoder(resp.Body).Decode(&mods); err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 || mods[0].ModuleID != 2 || mods[1].ModuleID != 5 {
		t.Fatalf("unexpected modules: %+v", mods)
	}
}

func TestSessionsReportsCount(t *testing.T) {
	reg := registry.New()
	h := New(reg, fakeSessions{n: 7})

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body sessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 7 {
		t.Fatalf("count = %d", body.Count)
	}
}

func TestSessionsNilCounterReportsZero(t *testing.T) {
	reg := registry.New()
	h := New(reg, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body sessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 0 {
		t.Fatalf("count = %d", body.Count)
	}
}
