package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ternchat/tern/internal/textbuf"
)

// promptWindow is the editable input pane. It owns a text buffer and a
// scroll offset; the cursor always stays inside the visible rows.
type promptWindow struct {
	buf    *textbuf.Buffer
	width  int
	height int
	scroll int
}

func newPromptWindow() *promptWindow {
	return &promptWindow{buf: textbuf.NewBuffer()}
}

func (w *promptWindow) setSize(width, height int) {
	w.width = width
	w.height = height
	w.clampScroll()
}

func (w *promptWindow) handleKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "left":
		w.buf.MoveCursor(textbuf.Back, textbuf.UnitChar)
	case "right":
		w.buf.MoveCursor(textbuf.Forward, textbuf.UnitChar)
	case "up":
		w.buf.MoveCursor(textbuf.Up, textbuf.UnitLine)
	case "down":
		w.buf.MoveCursor(textbuf.Down, textbuf.UnitLine)
	case "ctrl+left", "alt+b":
		w.buf.MoveCursor(textbuf.Back, textbuf.UnitWord)
	case "ctrl+right", "alt+f":
		w.buf.MoveCursor(textbuf.Forward, textbuf.UnitWord)
	case "home", "ctrl+a":
		w.buf.MoveLineStart()
	case "end", "ctrl+e":
		w.buf.MoveLineEnd()
	case "backspace":
		w.buf.DeleteBack()
	case "delete":
		w.buf.DeleteForward()
	case "insert":
		if w.buf.Mode() == textbuf.ModeInsert {
			w.buf.SetMode(textbuf.ModeReplace)
		} else {
			w.buf.SetMode(textbuf.ModeInsert)
		}
	case "alt+enter", "ctrl+j":
		w.buf.InsertAtCursor("\n")
	default:
		if msg.Type == tea.KeyRunes {
			w.buf.InsertAtCursor(string(msg.Runes))
		} else if msg.Type == tea.KeySpace {
			w.buf.InsertAtCursor(" ")
		}
	}
	w.scrollToCursor()
}

// Write places text at the cursor, as when a prompt template is expanded.
func (w *promptWindow) Write(text string) {
	w.buf.InsertAtCursor(text)
	w.scrollToCursor()
}

func (w *promptWindow) Clear() {
	w.buf.Clear()
	w.scroll = 0
}

func (w *promptWindow) Text() string { return w.buf.Text() }
func (w *promptWindow) Empty() bool  { return w.buf.Empty() }

func (w *promptWindow) replaceMode() bool { return w.buf.Mode() == textbuf.ModeReplace }

func (w *promptWindow) scrollToCursor() {
	if w.width <= 0 || w.height <= 0 {
		return
	}
	row := cursorRow(w.buf, w.width)
	if row < w.scroll {
		w.scroll = row
	}
	if row >= w.scroll+w.height {
		w.scroll = row - w.height + 1
	}
}

func (w *promptWindow) clampScroll() {
	if w.width <= 0 {
		return
	}
	max := w.buf.DisplayRowCount(w.width) - w.height
	if max < 0 {
		max = 0
	}
	if w.scroll > max {
		w.scroll = max
	}
}

func (w *promptWindow) view(focused bool) string {
	rows := w.buf.DisplaySegments(textbuf.Viewport{
		Width:  w.width,
		Height: w.height,
		Scroll: w.scroll,
	})
	return renderRows(rows, focused)
}

// cursorRow finds which display row holds the cursor cell.
func cursorRow(buf *textbuf.Buffer, width int) int {
	rows := buf.DisplaySegments(textbuf.Viewport{
		Width:  width,
		Height: buf.DisplayRowCount(width) + 1,
	})
	for i, row := range rows {
		for _, seg := range row {
			if seg.Cursor {
				return i
			}
		}
	}
	return 0
}

// renderRows styles buffer rows, highlighting the cursor cell only when the
// owning window has focus.
func renderRows(rows []textbuf.Row, focused bool) string {
	var lines []string
	for _, row := range rows {
		var b strings.Builder
		for _, seg := range row {
			if seg.Cursor && focused {
				b.WriteString(CursorStyle.Render(seg.Text))
			} else {
				b.WriteString(NormalStyle.Render(seg.Text))
			}
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// responseWindow shows the conversation transcript. It is read only; keys
// scroll it. While a stream is running the window follows the tail unless
// the user has scrolled away.
type responseWindow struct {
	buf    *textbuf.Buffer
	width  int
	height int
	scroll int
	follow bool
}

func newResponseWindow() *responseWindow {
	return &responseWindow{buf: textbuf.NewBuffer(), follow: true}
}

func (w *responseWindow) setSize(width, height int) {
	w.width = width
	w.height = height
	w.clampScroll()
}

func (w *responseWindow) handleKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		w.scrollBy(-1)
	case "down", "j":
		w.scrollBy(1)
	case "pgup", "b":
		w.scrollBy(-w.height)
	case "pgdown", "f":
		w.scrollBy(w.height)
	case "g", "home":
		w.scroll = 0
		w.follow = false
	case "G", "end":
		w.scrollToEnd()
	}
}

func (w *responseWindow) scrollBy(n int) {
	w.scroll += n
	w.follow = false
	w.clampScroll()
	if w.scroll == w.maxScroll() {
		w.follow = true
	}
}

func (w *responseWindow) scrollToEnd() {
	w.scroll = w.maxScroll()
	w.follow = true
}

func (w *responseWindow) maxScroll() int {
	if w.width <= 0 {
		return 0
	}
	max := w.buf.DisplayRowCount(w.width) - w.height
	if max < 0 {
		max = 0
	}
	return max
}

func (w *responseWindow) clampScroll() {
	if w.scroll < 0 {
		w.scroll = 0
	}
	if max := w.maxScroll(); w.scroll > max {
		w.scroll = max
	}
}

// Append adds streamed or transcript text at the end, keeping the view
// pinned to the tail when following.
func (w *responseWindow) Append(text string) {
	w.buf.Append(text)
	if w.follow {
		w.scroll = w.maxScroll()
	}
}

// SetText replaces the transcript wholesale, e.g. after switching
// conversations, and snaps to the tail.
func (w *responseWindow) SetText(text string) {
	w.buf.SetText(text)
	w.follow = true
	w.scroll = w.maxScroll()
}

func (w *responseWindow) view() string {
	rows := w.buf.DisplaySegments(textbuf.Viewport{
		Width:  w.width,
		Height: w.height,
		Scroll: w.scroll,
	})
	// The response cursor cell is noise; render without it.
	return renderRows(rows, false)
}

// commandLine is the single-line ':' input at the bottom of the screen.
type commandLine struct {
	buf   *textbuf.Buffer
	width int
}

func newCommandLine() *commandLine {
	return &commandLine{buf: textbuf.NewBuffer()}
}

func (c *commandLine) setWidth(width int) { c.width = width }

// handleKey edits the line. On enter it returns the entered command and
// true; the caller resets focus and dispatches the command.
func (c *commandLine) handleKey(msg tea.KeyMsg) (string, bool) {
	switch msg.String() {
	case "enter":
		cmd := strings.TrimSpace(c.buf.Text())
		c.buf.Clear()
		return cmd, true
	case "left":
		c.buf.MoveCursor(textbuf.Back, textbuf.UnitChar)
	case "right":
		c.buf.MoveCursor(textbuf.Forward, textbuf.UnitChar)
	case "ctrl+left", "alt+b":
		c.buf.MoveCursor(textbuf.Back, textbuf.UnitWord)
	case "ctrl+right", "alt+f":
		c.buf.MoveCursor(textbuf.Forward, textbuf.UnitWord)
	case "home", "ctrl+a":
		c.buf.MoveLineStart()
	case "end", "ctrl+e":
		c.buf.MoveLineEnd()
	case "backspace":
		c.buf.DeleteBack()
	case "delete":
		c.buf.DeleteForward()
	default:
		if msg.Type == tea.KeyRunes {
			c.buf.InsertAtCursor(string(msg.Runes))
		} else if msg.Type == tea.KeySpace {
			c.buf.InsertAtCursor(" ")
		}
	}
	return "", false
}

func (c *commandLine) Clear() { c.buf.Clear() }

// Write pre-fills the line, e.g. ":fork " seeded from a navigation event.
func (c *commandLine) Write(text string) {
	c.buf.InsertAtCursor(text)
}

func (c *commandLine) view(focused bool) string {
	if !focused {
		return ""
	}
	w := c.width - 1
	if w < 1 {
		w = 1
	}
	rows := c.buf.DisplaySegments(textbuf.Viewport{Width: w, Height: 1, Scroll: 0})
	return TitleStyle.Render(":") + renderRows(rows, true)
}
