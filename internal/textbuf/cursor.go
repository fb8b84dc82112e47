package textbuf

import "unicode"

// Direction selects where cursor movement goes.
type Direction int

const (
	Back Direction = iota
	Forward
	Up
	Down
)

// Unit selects how far one movement step reaches.
type Unit int

const (
	UnitChar Unit = iota
	UnitWord
	UnitLine
)

func clamp(pos, max int) int {
	if pos < 0 {
		return 0
	}
	if pos > max {
		return max
	}
	return pos
}

func isSpace(r rune) bool { return unicode.IsSpace(r) }

// wordBack returns the start of the run of same-class characters immediately
// left of pos. Runs of whitespace and runs of non-whitespace both count as
// words. At position 0 the cursor stays put.
func wordBack(text []rune, pos int) int {
	if pos <= 0 {
		return 0
	}
	pos--
	class := isSpace(text[pos])
	for pos > 0 && isSpace(text[pos-1]) == class {
		pos--
	}
	return pos
}

// wordForward returns the position just past the run containing pos. At the
// end of the text the cursor stays put.
func wordForward(text []rune, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	class := isSpace(text[pos])
	for pos < len(text) && isSpace(text[pos]) == class {
		pos++
	}
	return pos
}

// lineStarts returns the position of the first character of every line.
// A trailing newline opens one final empty line.
func lineStarts(text []rune) []int {
	starts := []int{0}
	for i, r := range text {
		if r == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the index of the line containing pos.
func lineAt(starts []int, pos int) int {
	line := 0
	for line+1 < len(starts) && starts[line+1] <= pos {
		line++
	}
	return line
}

func lineEnd(text []rune, starts []int, line int) int {
	if line+1 < len(starts) {
		return starts[line+1] - 1 // exclude the newline itself
	}
	return len(text)
}

// verticalMove shifts pos one line up or down, keeping prefCol as the target
// column. Past the first or last line the cursor clamps in place.
func verticalMove(text []rune, pos, prefCol int, dir Direction) int {
	starts := lineStarts(text)
	line := lineAt(starts, pos)
	switch dir {
	case Up:
		if line == 0 {
			return pos
		}
		line--
	case Down:
		if line == len(starts)-1 {
			return pos
		}
		line++
	}
	start, end := starts[line], lineEnd(text, starts, line)
	target := start + prefCol
	if target > end {
		target = end
	}
	return target
}
