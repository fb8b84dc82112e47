package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyNamed(t *testing.T, name string) tea.KeyMsg {
	t.Helper()
	switch name {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "insert":
		return tea.KeyMsg{Type: tea.KeyInsert}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	}
	t.Fatalf("unknown key %q", name)
	return tea.KeyMsg{}
}

func TestPromptWindow_TypeAndEdit(t *testing.T) {
	w := newPromptWindow()
	w.setSize(20, 3)

	w.handleKey(keyRunes("hi"))
	w.handleKey(keyNamed(t, "space"))
	w.handleKey(keyRunes("there"))
	if got := w.Text(); got != "hi there" {
		t.Fatalf("Text = %q, want %q", got, "hi there")
	}

	w.handleKey(keyNamed(t, "backspace"))
	w.handleKey(keyRunes("m"))
	if got := w.Text(); got != "hi therm" {
		t.Fatalf("Text = %q, want %q", got, "hi therm")
	}
}

func TestPromptWindow_ReplaceModeToggle(t *testing.T) {
	w := newPromptWindow()
	w.setSize(20, 3)
	w.handleKey(keyRunes("abc"))
	w.handleKey(keyNamed(t, "home"))

	w.handleKey(keyNamed(t, "insert"))
	if !w.replaceMode() {
		t.Fatal("insert key did not enter replace mode")
	}
	w.handleKey(keyRunes("X"))
	if got := w.Text(); got != "Xbc" {
		t.Fatalf("Text = %q, want %q", got, "Xbc")
	}

	w.handleKey(keyNamed(t, "insert"))
	if w.replaceMode() {
		t.Fatal("insert key did not leave replace mode")
	}
}

func TestPromptWindow_WriteAndClear(t *testing.T) {
	w := newPromptWindow()
	w.setSize(20, 3)
	w.Write("from template")
	if got := w.Text(); got != "from template" {
		t.Fatalf("Text = %q", got)
	}
	w.Clear()
	if !w.Empty() {
		t.Fatal("Clear left text behind")
	}
}

func TestPromptWindow_ScrollFollowsCursor(t *testing.T) {
	w := newPromptWindow()
	w.setSize(5, 2)
	// Six display rows of text; the cursor ends on the last one.
	w.handleKey(keyRunes(strings.Repeat("abcde", 6)))
	if w.scroll != 4 {
		t.Fatalf("scroll = %d, want 4", w.scroll)
	}
}

func TestResponseWindow_FollowsTailUntilScrolled(t *testing.T) {
	w := newResponseWindow()
	w.setSize(10, 2)

	for i := 0; i < 5; i++ {
		w.Append("line\n")
	}
	if !w.follow {
		t.Fatal("window stopped following without user input")
	}
	if w.scroll != w.maxScroll() {
		t.Fatalf("scroll = %d, want tail %d", w.scroll, w.maxScroll())
	}

	w.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	if w.follow {
		t.Fatal("scrolling up should stop following")
	}
	before := w.scroll
	w.Append("more\n")
	if w.scroll != before {
		t.Fatal("append moved a detached viewport")
	}

	w.handleKey(tea.KeyMsg{Type: tea.KeyEnd})
	if !w.follow || w.scroll != w.maxScroll() {
		t.Fatal("end key should snap back to the tail")
	}
}

func TestCommandLine_EnterReturnsCommand(t *testing.T) {
	c := newCommandLine()
	c.setWidth(40)

	c.handleKey(keyRunes("pin"))
	cmd, done := c.handleKey(keyNamed(t, "enter"))
	if !done || cmd != "pin" {
		t.Fatalf("enter = (%q, %v), want (\"pin\", true)", cmd, done)
	}
	// The line resets for the next command.
	cmd, done = c.handleKey(keyNamed(t, "enter"))
	if !done || cmd != "" {
		t.Fatalf("second enter = (%q, %v), want empty", cmd, done)
	}
}

func TestPromptWindow_ViewShowsText(t *testing.T) {
	w := newPromptWindow()
	w.setSize(10, 2)
	w.handleKey(keyRunes("ab"))

	// Focus changes styling only, never the text itself.
	focused := stripAnsi(w.view(true))
	unfocused := stripAnsi(w.view(false))
	if focused != unfocused {
		t.Fatalf("focus changed content: %q vs %q", focused, unfocused)
	}
	if !strings.HasPrefix(focused, "ab") {
		t.Fatalf("view = %q, want it to show the typed text", focused)
	}
}
