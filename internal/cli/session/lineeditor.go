package session

import "strings"

// LineEditor is an in-place editable line buffer addressed by a rune
// cursor, the way every hierarchical-CLI line editor works: insert,
// backspace, delete, and cursor motion, with no undo history — a
// session's History ring is the only thing that remembers past lines.
type LineEditor struct {
	buf    []rune
	cursor int
}

// Insert places r at the cursor and advances it.
func (e *LineEditor) Insert(r rune) {
	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = r
	e.cursor++
}

// Backspace removes the rune left of the cursor, if any.
func (e *LineEditor) Backspace() {
	if e.cursor == 0 {
		return
	}
	e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
	e.cursor--
}

// Delete removes the rune under the cursor, if any (the DEL key).
func (e *LineEditor) Delete() {
	if e.cursor >= len(e.buf) {
		return
	}
	e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)
}

// MoveLeft/MoveRight/Home/End reposition the cursor within bounds.
func (e *LineEditor) MoveLeft() {
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *LineEditor) MoveRight() {
	if e.cursor < len(e.buf) {
		e.cursor++
	}
}

func (e *LineEditor) Home() { e.cursor = 0 }
func (e *LineEditor) End()  { e.cursor = len(e.buf) }

// Clear empties the buffer.
func (e *LineEditor) Clear() {
	e.buf = e.buf[:0]
	e.cursor = 0
}

// SetLine replaces the buffer wholesale (used when cycling history or
// completing the word at the cursor) and puts the cursor at the end.
func (e *LineEditor) SetLine(s string) {
	e.buf = []rune(s)
	e.cursor = len(e.buf)
}

// String returns the current buffer contents.
func (e *LineEditor) String() string { return string(e.buf) }

// Cursor returns the current cursor position, in runes.
func (e *LineEditor) Cursor() int { return e.cursor }

// WordAtCursor returns the token immediately left of the cursor, for
// tab-completion: the partial word being typed.
func (e *LineEditor) WordAtCursor() string {
	s := string(e.buf[:e.cursor])
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	if strings.HasSuffix(s, " ") {
		return ""
	}
	return fields[len(fields)-1]
}
