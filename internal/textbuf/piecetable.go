package textbuf

import (
	"errors"
	"strings"
)

// ErrOutOfBounds reports a position or range outside [0, Len()].
var ErrOutOfBounds = errors.New("textbuf: position out of bounds")

type source int

const (
	srcOriginal source = iota
	srcAdded
)

// piece references a run of characters in either the original text or the
// append-only add buffer. Offsets and lengths are in runes.
type piece struct {
	src    source
	off    int
	length int
}

// PieceTable stores editable text as an ordered list of pieces over two
// immutable-in-place buffers: the original text and an add buffer that only
// ever grows. Edits re-splice pieces and never move existing characters, so
// insert and delete cost is proportional to the piece count, not the text
// length.
type PieceTable struct {
	original []rune
	added    []rune
	pieces   []piece
	length   int
}

// NewPieceTable returns a table whose initial content is text.
func NewPieceTable(text string) *PieceTable {
	pt := &PieceTable{original: []rune(text)}
	if len(pt.original) > 0 {
		pt.pieces = []piece{{src: srcOriginal, off: 0, length: len(pt.original)}}
		pt.length = len(pt.original)
	}
	return pt
}

// Len returns the text length in runes.
func (pt *PieceTable) Len() int { return pt.length }

func (pt *PieceTable) runes(p piece) []rune {
	if p.src == srcOriginal {
		return pt.original[p.off : p.off+p.length]
	}
	return pt.added[p.off : p.off+p.length]
}

// Text materializes the full logical text.
func (pt *PieceTable) Text() string {
	var b strings.Builder
	for _, p := range pt.pieces {
		b.WriteString(string(pt.runes(p)))
	}
	return b.String()
}

// ReadRange returns the text in [from, to). from must not exceed to and both
// must lie in [0, Len()].
func (pt *PieceTable) ReadRange(from, to int) (string, error) {
	if from < 0 || to > pt.length || from > to {
		return "", ErrOutOfBounds
	}
	var b strings.Builder
	pos := 0
	for _, p := range pt.pieces {
		if pos >= to {
			break
		}
		start, end := pos, pos+p.length
		if end <= from {
			pos = end
			continue
		}
		lo, hi := 0, p.length
		if from > start {
			lo = from - start
		}
		if to < end {
			hi = to - start
		}
		b.WriteString(string(pt.runes(p)[lo:hi]))
		pos = end
	}
	return b.String(), nil
}

// split ensures a piece boundary exists at pos and returns the index of the
// first piece at or after it.
func (pt *PieceTable) split(pos int) int {
	at := 0
	for i, p := range pt.pieces {
		if at == pos {
			return i
		}
		if pos < at+p.length {
			left := piece{src: p.src, off: p.off, length: pos - at}
			right := piece{src: p.src, off: p.off + left.length, length: p.length - left.length}
			pt.pieces[i] = left
			pt.pieces = append(pt.pieces[:i+1], append([]piece{right}, pt.pieces[i+1:]...)...)
			return i + 1
		}
		at += p.length
	}
	return len(pt.pieces)
}

// Insert places text at pos, shifting everything after it.
func (pt *PieceTable) Insert(pos int, text string) error {
	if pos < 0 || pos > pt.length {
		return ErrOutOfBounds
	}
	r := []rune(text)
	if len(r) == 0 {
		return nil
	}
	off := len(pt.added)
	pt.added = append(pt.added, r...)

	i := pt.split(pos)
	// Consecutive inserts at the same spot extend the preceding piece when it
	// already ends at the tail of the add buffer. Reads are identical either
	// way; this only keeps the piece list short under sequential typing.
	if i > 0 {
		prev := &pt.pieces[i-1]
		if prev.src == srcAdded && prev.off+prev.length == off {
			prev.length += len(r)
			pt.length += len(r)
			return nil
		}
	}
	np := piece{src: srcAdded, off: off, length: len(r)}
	pt.pieces = append(pt.pieces[:i], append([]piece{np}, pt.pieces[i:]...)...)
	pt.length += len(r)
	return nil
}

// Delete removes the text in [from, to).
func (pt *PieceTable) Delete(from, to int) error {
	if from < 0 || to > pt.length || from > to {
		return ErrOutOfBounds
	}
	if from == to {
		return nil
	}
	i := pt.split(from)
	j := pt.split(to)
	pt.pieces = append(pt.pieces[:i], pt.pieces[j:]...)
	pt.length -= to - from
	return nil
}
