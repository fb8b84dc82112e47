package textbuf

// Mode controls how typed text lands in the buffer.
type Mode int

const (
	// ModeInsert shifts existing text right of the cursor.
	ModeInsert Mode = iota
	// ModeReplace overwrites characters under the cursor.
	ModeReplace
)

// Buffer is a piece-table-backed editable text with a cursor. All positions
// are rune offsets into the current materialized text, valid in [0, Len()].
// A Buffer belongs to exactly one window and is never shared across
// goroutines.
type Buffer struct {
	pt      *PieceTable
	cursor  int
	prefCol int
	mode    Mode
}

// NewBuffer returns an empty buffer in insert mode.
func NewBuffer() *Buffer {
	return &Buffer{pt: NewPieceTable("")}
}

// NewBufferText returns a buffer initialized with text, cursor at the end.
func NewBufferText(text string) *Buffer {
	b := &Buffer{pt: NewPieceTable(text)}
	b.cursor = b.pt.Len()
	b.syncPrefCol()
	return b
}

func (b *Buffer) Len() int      { return b.pt.Len() }
func (b *Buffer) Text() string  { return b.pt.Text() }
func (b *Buffer) Cursor() int   { return b.cursor }
func (b *Buffer) Mode() Mode    { return b.mode }
func (b *Buffer) SetMode(m Mode) { b.mode = m }

// Empty reports whether the buffer holds no text.
func (b *Buffer) Empty() bool { return b.pt.Len() == 0 }

// ReadRange returns the text in [from, to).
func (b *Buffer) ReadRange(from, to int) (string, error) {
	return b.pt.ReadRange(from, to)
}

// LineCount returns the number of display lines; an empty buffer has one.
func (b *Buffer) LineCount() int {
	return len(lineStarts([]rune(b.pt.Text())))
}

// Insert places text at pos without moving the cursor unless the insertion
// happens at or before it.
func (b *Buffer) Insert(pos int, text string) error {
	if err := b.pt.Insert(pos, text); err != nil {
		return err
	}
	if pos <= b.cursor {
		b.cursor += len([]rune(text))
	}
	b.syncPrefCol()
	return nil
}

// Delete removes [from, to) and pulls the cursor back if it sat inside or
// after the range.
func (b *Buffer) Delete(from, to int) error {
	if err := b.pt.Delete(from, to); err != nil {
		return err
	}
	switch {
	case b.cursor >= to:
		b.cursor -= to - from
	case b.cursor > from:
		b.cursor = from
	}
	b.syncPrefCol()
	return nil
}

// InsertAtCursor types text at the cursor, honoring the buffer mode. In
// replace mode the characters under the cursor are consumed first; overwrite
// past the end of the buffer degrades to plain insertion.
func (b *Buffer) InsertAtCursor(text string) error {
	if b.mode == ModeReplace {
		over := len([]rune(text))
		if rest := b.pt.Len() - b.cursor; over > rest {
			over = rest
		}
		if over > 0 {
			if err := b.pt.Delete(b.cursor, b.cursor+over); err != nil {
				return err
			}
		}
	}
	return b.Insert(b.cursor, text)
}

// DeleteBack removes the character before the cursor, if any.
func (b *Buffer) DeleteBack() error {
	if b.cursor == 0 {
		return nil
	}
	return b.Delete(b.cursor-1, b.cursor)
}

// DeleteForward removes the character under the cursor, if any.
func (b *Buffer) DeleteForward() error {
	if b.cursor >= b.pt.Len() {
		return nil
	}
	return b.Delete(b.cursor, b.cursor+1)
}

// Clear empties the buffer and resets the cursor.
func (b *Buffer) Clear() {
	b.pt = NewPieceTable("")
	b.cursor = 0
	b.prefCol = 0
}

// SetText replaces the whole content, cursor at the end.
func (b *Buffer) SetText(text string) {
	b.pt = NewPieceTable(text)
	b.cursor = b.pt.Len()
	b.syncPrefCol()
}

// Append adds text at the end of the buffer without touching the cursor
// unless it sat at the end. Used for streamed output.
func (b *Buffer) Append(text string) {
	// Appending at Len() cannot be out of range.
	_ = b.pt.Insert(b.pt.Len(), text)
	if b.cursor == b.pt.Len()-len([]rune(text)) {
		b.cursor = b.pt.Len()
		b.syncPrefCol()
	}
}

// MoveCursor shifts the cursor one unit in the given direction. Movement past
// the buffer boundaries clamps rather than failing.
func (b *Buffer) MoveCursor(dir Direction, unit Unit) {
	text := []rune(b.pt.Text())
	switch unit {
	case UnitChar:
		if dir == Back {
			b.cursor = clamp(b.cursor-1, len(text))
		} else {
			b.cursor = clamp(b.cursor+1, len(text))
		}
		b.syncPrefCol()
	case UnitWord:
		if dir == Back {
			b.cursor = wordBack(text, b.cursor)
		} else {
			b.cursor = wordForward(text, b.cursor)
		}
		b.syncPrefCol()
	case UnitLine:
		b.cursor = verticalMove(text, b.cursor, b.prefCol, dir)
	}
}

// MoveCursorTo places the cursor at pos, clamped into [0, Len()].
func (b *Buffer) MoveCursorTo(pos int) {
	b.cursor = clamp(pos, b.pt.Len())
	b.syncPrefCol()
}

// MoveLineStart and MoveLineEnd jump within the current line.
func (b *Buffer) MoveLineStart() {
	text := []rune(b.pt.Text())
	starts := lineStarts(text)
	b.cursor = starts[lineAt(starts, b.cursor)]
	b.syncPrefCol()
}

func (b *Buffer) MoveLineEnd() {
	text := []rune(b.pt.Text())
	starts := lineStarts(text)
	b.cursor = lineEnd(text, starts, lineAt(starts, b.cursor))
	b.syncPrefCol()
}

func (b *Buffer) syncPrefCol() {
	text := []rune(b.pt.Text())
	starts := lineStarts(text)
	b.prefCol = b.cursor - starts[lineAt(starts, b.cursor)]
}
