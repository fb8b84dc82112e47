package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	ColorCyan    = lipgloss.Color("#5a9ab5")
	ColorCyanDim = lipgloss.Color("#3a6678")
	ColorAccent  = lipgloss.Color("#7fcfdf")
	ColorGreen   = lipgloss.Color("#5aaa7a")
	ColorRed     = lipgloss.Color("#b56a6a")
	ColorYellow  = lipgloss.Color("#b5a05a")
	ColorDim     = lipgloss.Color("#3a5565")
	ColorMuted   = lipgloss.Color("#1a2a35")
	ColorBarBg   = lipgloss.Color("#0f1e28")
	ColorBarText = lipgloss.Color("#d0dde5")
	ColorWhite   = lipgloss.Color("#8899a5")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	UserMsgStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	AssistantMsgStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	SystemMsgStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	CursorStyle = lipgloss.NewStyle().
			Reverse(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Background(ColorBarBg).
			Padding(0, 1)
)

// RenderPanel draws a panel with an inline title in the top border. Focused
// panels switch to a double-line border.
func RenderPanel(title string, content string, w, h int, focused bool) string {
	borderColor := ColorCyanDim
	titleColor := ColorCyan
	if focused {
		borderColor = lipgloss.Color("#70cc90")
		titleColor = lipgloss.Color("#a0ffbb")
	}

	bc := lipgloss.NewStyle().Foreground(borderColor)
	tc := lipgloss.NewStyle().Foreground(titleColor).Bold(true)

	innerW := w - 2 // subtract left+right border chars

	var topBorder, bottomBorder, side string

	titleText := " " + title + " "
	titleVisLen := utf8.RuneCountInString(titleText)
	fillLen := w - 5 - titleVisLen
	if fillLen < 0 {
		fillLen = 0
	}

	if focused {
		topBorder = bc.Render("╔═╸") + tc.Render(titleText) + bc.Render("╺"+strings.Repeat("═", fillLen)+"╗")
		bottomBorder = bc.Render("╚" + strings.Repeat("═", innerW) + "╝")
		side = bc.Render("║")
	} else {
		topBorder = bc.Render("┏━╸") + tc.Render(titleText) + bc.Render("╺"+strings.Repeat("━", fillLen)+"┓")
		bottomBorder = bc.Render("┗" + strings.Repeat("━", innerW) + "┛")
		side = bc.Render("┃")
	}

	lines := strings.Split(content, "\n")
	for len(lines) < h {
		lines = append(lines, "")
	}
	if len(lines) > h {
		lines = lines[:h]
	}

	var rows []string
	rows = append(rows, topBorder)
	for _, line := range lines {
		visible := visibleLen(line)
		if visible > innerW {
			line = truncateToWidth(line, innerW)
			visible = innerW
		}
		pad := ""
		if visible < innerW {
			pad = strings.Repeat(" ", innerW-visible)
		}
		rows = append(rows, side+line+pad+side)
	}
	rows = append(rows, bottomBorder)

	return strings.Join(rows, "\n")
}

// RenderScrollbar returns one scrollbar character per visible row.
func RenderScrollbar(height, totalLines, offset int) []string {
	track := make([]string, height)

	if totalLines <= height || height < 1 {
		for i := range track {
			track[i] = " "
		}
		return track
	}

	thumbSize := (height * height) / totalLines
	if thumbSize < 1 {
		thumbSize = 1
	}

	maxOffset := totalLines - height
	if maxOffset < 1 {
		maxOffset = 1
	}
	thumbPos := (offset * (height - thumbSize)) / maxOffset

	thumbChar := lipgloss.NewStyle().Foreground(ColorAccent).Render("┃")
	trackChar := lipgloss.NewStyle().Foreground(ColorMuted).Render("╎")

	for i := range track {
		if i >= thumbPos && i < thumbPos+thumbSize {
			track[i] = thumbChar
		} else {
			track[i] = trackChar
		}
	}

	return track
}

func visibleLen(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

func truncateToWidth(s string, w int) string {
	// Cheap path: no escapes, just truncate by display width.
	if !strings.ContainsRune(s, '\x1b') {
		return runewidth.Truncate(s, w, "")
	}
	var b strings.Builder
	width := 0
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			b.WriteRune(r)
			continue
		}
		if inEsc {
			b.WriteRune(r)
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
			continue
		}
		rw := runewidth.RuneWidth(r)
		if width+rw > w {
			break
		}
		b.WriteRune(r)
		width += rw
	}
	return b.String()
}

func stripAnsi(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			continue
		}
		if inEsc {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
