package textbuf

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Viewport describes the visible region a renderer wants segments for.
type Viewport struct {
	Width  int // display columns per line
	Height int // visible rows
	Scroll int // first visible display row
}

// Segment is a styled fragment of one display row. The buffer does not draw;
// it only tags fragments so the renderer can.
type Segment struct {
	Text   string
	Cursor bool // segment is the single cell under the cursor
}

// Row is the segments making up one display row.
type Row []Segment

// String joins a row's text, ignoring styling.
func (r Row) String() string {
	var b strings.Builder
	for _, s := range r {
		b.WriteString(s.Text)
	}
	return b.String()
}

// DisplaySegments wraps the buffer text to the viewport width and returns the
// visible rows. The result is recomputed on every call; nothing is retained
// between renders. A zero-width viewport yields no rows.
func (b *Buffer) DisplaySegments(vp Viewport) []Row {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil
	}
	all := b.wrapRows(vp.Width)
	lo := clamp(vp.Scroll, len(all))
	hi := clamp(vp.Scroll+vp.Height, len(all))
	return all[lo:hi]
}

// DisplayRowCount returns how many display rows the buffer occupies at the
// given width, for scroll clamping by the owning window.
func (b *Buffer) DisplayRowCount(width int) int {
	if width <= 0 {
		return 0
	}
	return len(b.wrapRows(width))
}

// wrapRows splits the text on newlines, then hard-wraps each logical line to
// width columns, marking the cursor cell. The cursor at end of text is shown
// on a trailing space cell.
func (b *Buffer) wrapRows(width int) []Row {
	text := []rune(b.pt.Text())
	var rows []Row
	var cur Row
	var curText strings.Builder
	col := 0

	flushSeg := func(cursor bool) {
		if curText.Len() == 0 && !cursor {
			return
		}
		cur = append(cur, Segment{Text: curText.String(), Cursor: cursor})
		curText.Reset()
	}
	flushRow := func() {
		flushSeg(false)
		rows = append(rows, cur)
		cur = nil
		col = 0
	}

	for i, r := range text {
		if i == b.cursor {
			if r != '\n' && col+runewidth.RuneWidth(r) > width {
				flushRow()
			}
			flushSeg(false)
			curText.WriteRune(r)
			if r == '\n' {
				curText.Reset()
				curText.WriteString(" ")
			}
			flushSeg(true)
			if r == '\n' {
				flushRow()
			} else {
				col += runewidth.RuneWidth(r)
			}
			continue
		}
		if r == '\n' {
			flushRow()
			continue
		}
		w := runewidth.RuneWidth(r)
		if col+w > width {
			flushRow()
		}
		curText.WriteRune(r)
		col += w
	}
	if b.cursor == len(text) {
		flushSeg(false)
		curText.WriteString(" ")
		flushSeg(true)
	}
	flushRow()
	return rows
}
