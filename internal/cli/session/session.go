// Package session implements the per-connection CLI engine: a
// character-mode line editor driven by a small Normal/Esc/CSI byte
// state machine (spec.md §4.I), sitting on top of a view stack, a
// matcher, and a dispatcher. One Session exists per TCP or websocket
// connection; the CLI front-end server (component J) and the web
// console bridge (component O) both just hand it bytes in and take
// rendered output back out.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/netnexus/controlplane/internal/cli/dispatcher"
	"github.com/netnexus/controlplane/internal/cli/matcher"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

type parserState int

const (
	stNormal parserState = iota
	stEsc
	stCSI
)

// Session is one CLI connection's state: everything that would
// otherwise have lived in the source's global g_current_view /
// g_current_interface / g_cmd_history, scoped instead to this
// connection (spec.md §9).
type Session struct {
	ID     uuid.UUID
	busID  uint32 // this session's sender identity on the bus
	logger *slog.Logger

	hostname   string
	views      *tree.ViewTree
	dispatcher *dispatcher.Dispatcher
	completer  *Completer

	stack      *ViewStack
	editor     LineEditor
	localHist  *History
	globalHist *History
	clientIP   string

	w     io.Writer
	state parserState
	csi   strings.Builder

	pager *Pager
	tab   tabCycleState
}

// tabCycleState is the session's tab-cycling state (spec §3's
// tab-cycling: {active, index, snapshot}): once a completion lists more
// than one match, repeated \t with the buffer otherwise unchanged walks
// through them; any other key restores the line to how it read before
// cycling began.
type tabCycleState struct {
	active   bool
	index    int
	snapshot string   // editor line as it read before cycling began
	word     string   // the partial word matches were computed against
	matches  []string // candidates, in completion order
	lastLine string   // editor line right after our last tab action
}

// New constructs a Session. globalHist and completer are shared across
// every session the server is holding open; localHist is private to
// this one.
func New(id uuid.UUID, busID uint32, hostname string, views *tree.ViewTree, disp *dispatcher.Dispatcher, globalHist *History, completer *Completer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:         id,
		busID:      busID,
		logger:     logger,
		hostname:   hostname,
		views:      views,
		dispatcher: disp,
		completer:  completer,
		stack:      NewViewStack(views),
		localHist:  NewHistory(20),
		globalHist: globalHist,
	}
}

// Run drives conn until the client disconnects, the session closes
// itself (an "exit" at the root view), or ctx is cancelled.
func (s *Session) Run(ctx context.Context, conn net.Conn) error {
	s.w = conn
	if addr := conn.RemoteAddr(); addr != nil {
		s.clientIP = addr.String()
	}
	if _, err := conn.Write(NegotiationPreamble()); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	br := bufio.NewReader(conn)
	filter := newTelnetFilter(br)

	s.writeString(s.bannerAndPrompt())

	for {
		b, err := filter.ReadByte()
		if err != nil {
			return nil
		}
		if closeReq := s.handleByte(b); closeReq {
			return nil
		}
	}
}

func (s *Session) bannerAndPrompt() string {
	return fmt.Sprintf("\r\n%s\r\n", s.stack.Prompt(s.hostname))
}

func (s *Session) writeString(str string) {
	_, _ = io.WriteString(s.w, str)
}

// handleByte feeds one raw (already telnet-unwrapped) byte through the
// key state machine. It returns true when the session should close.
func (s *Session) handleByte(b byte) bool {
	if s.pager != nil {
		return s.handlePagerByte(b)
	}
	if b != 0x09 {
		s.exitTabCycle()
	}

	switch s.state {
	case stEsc:
		if b == '[' {
			s.state = stCSI
			s.csi.Reset()
			return false
		}
		s.state = stNormal
		return false

	case stCSI:
		if b >= '0' && b <= '9' || b == ';' {
			s.csi.WriteByte(b)
			return false
		}
		s.applyCSI(b)
		s.state = stNormal
		return false
	}

	switch {
	case b == '\r':
		return s.submitLine()
	case b == '\n':
		return false // already submitted on the preceding \r
	case b == 0x1b:
		s.state = stEsc
		return false
	case b == 0x7f || b == 0x08:
		s.editor.Backspace()
		s.redrawLine()
	case b == 0x09:
		s.handleTab()
	case b == 0x03: // Ctrl-C: abandon the current line
		s.editor.Clear()
		s.writeString("^C\r\n" + s.stack.Prompt(s.hostname))
	case b == 0x04 && s.editor.String() == "": // Ctrl-D on an empty line
		return true
	case b == '?':
		s.handleHelp()
	case b >= 0x20 && b < 0x7f:
		s.editor.Insert(rune(b))
		s.redrawLine()
	}
	return false
}

func (s *Session) applyCSI(final byte) {
	switch final {
	case 'A': // up
		if line, ok := s.localHist.Prev(); ok {
			s.editor.SetLine(line)
			s.redrawLine()
		}
	case 'B': // down
		if line, ok := s.localHist.Next(); ok {
			s.editor.SetLine(line)
			s.redrawLine()
		}
	case 'C':
		s.editor.MoveRight()
		s.redrawLine()
	case 'D':
		s.editor.MoveLeft()
		s.redrawLine()
	case 'H':
		s.editor.Home()
		s.redrawLine()
	case 'F':
		s.editor.End()
		s.redrawLine()
	case '~':
		if s.csi.String() == "3" { // ESC [ 3 ~ : DEL
			s.editor.Delete()
			s.redrawLine()
		}
	}
}

func (s *Session) redrawLine() {
	prompt := s.stack.Prompt(s.hostname)
	line := s.editor.String()
	fmt.Fprintf(s.w, "\r\x1b[K%s%s", prompt, line)
	if back := len([]rune(line)) - s.editor.Cursor(); back > 0 {
		fmt.Fprintf(s.w, "\x1b[%dD", back)
	}
}

func (s *Session) handleTab() {
	if s.tab.active && s.editor.String() == s.tab.lastLine {
		s.cycleTab()
		return
	}
	s.startTabCompletion()
}

// startTabCompletion runs a fresh completion lookup against the word
// under the cursor. Zero matches bell; exactly one completes in place;
// more than one lists the candidates (buffer left unchanged, per spec
// scenario 4) and arms cycling so a repeated \t walks through them.
func (s *Session) startTabCompletion() {
	word := s.editor.WordAtCursor()
	view, node := s.stack.Current()
	matches := s.completer.Complete(view.CmdTree, view.ViewID, node, word)
	switch len(matches) {
	case 0:
		s.resetTabCycle()
		s.writeString("\a")
	case 1:
		s.resetTabCycle()
		s.editor.SetLine(strings.TrimSuffix(s.editor.String(), word) + matches[0] + " ")
		s.redrawLine()
	default:
		s.tab = tabCycleState{
			active:   true,
			snapshot: s.editor.String(),
			word:     word,
			matches:  matches,
		}
		s.writeString("\r\n" + strings.Join(matches, "  ") + "\r\n")
		s.redrawLine()
		s.tab.lastLine = s.editor.String()
	}
}

// cycleTab advances to the next candidate and previews it in place of
// the word cycling started on. The preview is never committed to
// s.tab.snapshot, so exitTabCycle still restores the original line.
func (s *Session) cycleTab() {
	candidate := s.tab.matches[s.tab.index]
	s.tab.index = (s.tab.index + 1) % len(s.tab.matches)
	s.editor.SetLine(strings.TrimSuffix(s.tab.snapshot, s.tab.word) + candidate)
	s.redrawLine()
	s.tab.lastLine = s.editor.String()
}

// exitTabCycle restores the pre-cycle buffer snapshot when any input
// other than a repeated, unchanged \t arrives while cycling is active.
func (s *Session) exitTabCycle() {
	if !s.tab.active {
		return
	}
	s.editor.SetLine(s.tab.snapshot)
	s.resetTabCycle()
	s.redrawLine()
}

func (s *Session) resetTabCycle() {
	s.tab = tabCycleState{}
}

func (s *Session) handleHelp() {
	t, node := s.helpNode()
	lines := HelpLines(t, node)
	s.writeString("?\r\n" + strings.Join(lines, "\r\n") + "\r\n")
	s.redrawLine()
}

// helpNode walks as far into the current view's tree as the
// already-typed tokens unambiguously reach, stopping short of the
// partial word still being composed (mirroring matcher.Match's walk,
// but tolerant of an incomplete or unknown trailing token instead of
// erroring on one).
func (s *Session) helpNode() (*tree.Tree, uint32) {
	view, node := s.stack.Current()
	line := s.editor.String()
	tokens := matcher.Tokenize(line)
	if !strings.HasSuffix(line, " ") && len(tokens) > 0 {
		tokens = tokens[:len(tokens)-1]
	}
	cur := node
	for _, tok := range tokens {
		if kid, ok := view.CmdTree.FindKeywordChild(cur, tok); ok {
			cur = kid
			continue
		}
		if aid, ok := view.CmdTree.ArgumentChild(cur); ok {
			cur = aid
			continue
		}
		break
	}
	return view.CmdTree, cur
}

// submitLine processes the completed line on Enter. It returns true
// when the session should close (an "exit" typed at the root view).
func (s *Session) submitLine() bool {
	line := s.editor.String()
	s.editor.Clear()
	s.writeString("\r\n")

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		s.writeString(s.stack.Prompt(s.hostname))
		return false
	}

	s.localHist.Push(trimmed, s.clientIP)
	s.localHist.ResetCursor()
	if s.globalHist != nil {
		s.globalHist.Push(trimmed, s.clientIP)
	}

	view, node := s.stack.Current()
	res, err := matcher.Match(view.CmdTree, node, trimmed)
	if err != nil {
		s.writeString(renderMatchError(err) + "\r\n" + s.stack.Prompt(s.hostname))
		return false
	}

	if res.ModuleID == 0 {
		return s.runBuiltin(res)
	}

	outcome := s.dispatcher.Dispatch(context.Background(), res, s.busID, s.stack.Context())
	switch outcome.Kind {
	case dispatcher.OutcomeViewChange:
		if outcome.NewViewID != 0 {
			if !s.stack.Push(outcome.NewViewID, outcome.ContextBlob) {
				s.writeString("Error: views nested too deep\r\n")
			}
		}
		s.writeString(s.stack.Prompt(s.hostname))
	case dispatcher.OutcomeError:
		s.writeString(outcome.Body + "\r\n" + s.stack.Prompt(s.hostname))
	default:
		s.beginPaging(outcome.Body)
	}
	return false
}

// runBuiltin handles a module_id==0 command entirely within the
// session: the final tree node's own name names the builtin.
func (s *Session) runBuiltin(res *matcher.Result) bool {
	name := res.Elements[len(res.Elements)-1].Name
	switch name {
	case "exit", "quit":
		if s.stack.AtRoot() {
			s.writeString("Connection closed.\r\n")
			return true
		}
		s.stack.Pop()
		s.writeString(s.stack.Prompt(s.hostname))
	case "history":
		s.beginPaging(renderHistory(s.localHist.Snapshot()))
	default:
		s.writeString(s.stack.Prompt(s.hostname))
	}
	return false
}

// renderHistory formats a session's command entries the way the
// "history" built-in lists them: one line per entry, oldest first,
// timestamped.
func renderHistory(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("  %s  %s", e.Timestamp.Format("15:04:05"), e.Command)
	}
	return strings.Join(lines, "\n")
}

func renderMatchError(err error) string {
	switch e := err.(type) {
	case *matcher.ValidationError:
		return "% " + e.Reason
	case *matcher.IncompleteCommandError:
		return "% Incomplete command."
	case *matcher.UnknownTokenError:
		return fmt.Sprintf("%% Unrecognized command: %q", e.Token)
	default:
		return "% " + err.Error()
	}
}

// beginPaging splits body into screen pages and shows the first one,
// entering paging mode if more than one page remains.
func (s *Session) beginPaging(body string) {
	p := NewPager(body, DefaultPageSize)
	page, more := p.Next()
	s.writeString(strings.Join(page, "\r\n") + "\r\n")
	if !more {
		s.writeString(s.stack.Prompt(s.hostname))
		return
	}
	s.pager = p
	s.writeString("--More--")
}

func (s *Session) handlePagerByte(b byte) bool {
	switch b {
	case ' ', '\r':
		page, more := s.pager.Next()
		s.writeString("\r\x1b[K" + strings.Join(page, "\r\n"))
		if len(page) > 0 {
			s.writeString("\r\n")
		}
		if !more {
			s.pager = nil
			s.writeString(s.stack.Prompt(s.hostname))
			return false
		}
		s.writeString("--More--")
	case 'q', 'Q':
		s.pager = nil
		s.writeString("\r\x1b[K" + s.stack.Prompt(s.hostname))
	}
	return false
}
