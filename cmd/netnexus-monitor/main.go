// Command netnexus-monitor is a standalone terminal dashboard for an
// operator watching a running netnexus daemon: it polls the admin HTTP
// surface (internal/adminapi, component N) on an interval and renders
// health, the module table, and the live session count as termui
// widgets. It never talks to the daemon over anything but that HTTP
// surface — it has no access to the CLI engine itself.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

func main() {
	addr := flag.String("admin-addr", "http://127.0.0.1:8788", "base URL of the netnexus admin HTTP surface")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	flag.Parse()

	if err := ui.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "netnexus-monitor: termui init:", err)
		os.Exit(1)
	}
	defer ui.Close()

	client := &client{base: *addr, hc: &http.Client{Timeout: 3 * time.Second}}
	dash := newDashboard()
	dash.render(client.poll())
	ui.Render(dash.grid)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	events := ui.PollEvents()
	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				dash.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Render(dash.grid)
			}
		case <-ticker.C:
			dash.render(client.poll())
			ui.Render(dash.grid)
		}
	}
}

// client polls the three admin endpoints the dashboard cares about. A
// failed request renders as a visible error state rather than crashing
// the monitor — the daemon restarting or a network blip shouldn't kill
// the operator's terminal.
type client struct {
	base string
	hc   *http.Client
}

type snapshot struct {
	health   healthResponse
	modules  []moduleInfo
	sessions sessionsResponse
	err      error
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type moduleInfo struct {
	ModuleID uint32 `json:"module_id"`
	Name     string `json:"name"`
}

type sessionsResponse struct {
	Count int `json:"count"`
}

func (c *client) poll() snapshot {
	var snap snapshot
	if err := c.get("/healthz", &snap.health); err != nil {
		snap.err = err
		return snap
	}
	if err := c.get("/modules", &snap.modules); err != nil {
		snap.err = err
		return snap
	}
	if err := c.get("/sessions", &snap.sessions); err != nil {
		snap.err = err
		return snap
	}
	return snap
}

func (c *client) get(path string, out any) error {
	resp, err := c.hc.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// dashboard owns the termui widgets and lays them out in a grid.
type dashboard struct {
	grid     *ui.Grid
	status   *widgets.Paragraph
	sessions *widgets.Gauge
	modules  *widgets.Table
}

func newDashboard() *dashboard {
	status := widgets.NewParagraph()
	status.Title = "Daemon"

	sessions := widgets.NewGauge()
	sessions.Title = "Open CLI sessions"
	sessions.Percent = 0

	modules := widgets.NewTable()
	modules.Title = "Registered modules"
	modules.Rows = [][]string{{"id", "name"}}

	grid := ui.NewGrid()
	w, h := ui.TerminalDimensions()
	grid.SetRect(0, 0, w, h)
	grid.Set(
		ui.NewRow(0.2, ui.NewCol(1.0, status)),
		ui.NewRow(0.2, ui.NewCol(1.0, sessions)),
		ui.NewRow(0.6, ui.NewCol(1.0, modules)),
	)

	return &dashboard{grid: grid, status: status, sessions: sessions, modules: modules}
}

// render updates widget contents in place. termui clamps a gauge's
// percent to [0,100] itself; sessions are shown out of an assumed
// capacity of 50 purely to give the bar something to fill against.
func (d *dashboard) render(snap snapshot) {
	if snap.err != nil {
		d.status.Text = "unreachable: " + snap.err.Error()
		d.status.BorderStyle.Fg = ui.ColorRed
		return
	}

	d.status.BorderStyle.Fg = ui.ColorGreen
	d.status.Text = fmt.Sprintf("status: %s\nuptime: %s", snap.health.Status, time.Duration(snap.health.UptimeSeconds)*time.Second)

	d.sessions.Percent = clampPercent(snap.sessions.Count, 50)
	d.sessions.Label = fmt.Sprintf("%d open", snap.sessions.Count)

	rows := [][]string{{"id", "name"}}
	for _, m := range snap.modules {
		rows = append(rows, []string{fmt.Sprintf("%d", m.ModuleID), m.Name})
	}
	d.modules.Rows = rows
}

func clampPercent(count, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	pct := count * 100 / capacity
	if pct > 100 {
		return 100
	}
	return pct
}
