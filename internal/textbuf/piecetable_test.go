package textbuf

import (
	"math/rand"
	"strings"
	"testing"
)

func TestPieceTable_Empty(t *testing.T) {
	pt := NewPieceTable("")
	if pt.Len() != 0 {
		t.Errorf("Len = %d, want 0", pt.Len())
	}
	if pt.Text() != "" {
		t.Errorf("Text = %q, want empty", pt.Text())
	}
}

func TestPieceTable_InsertMiddle(t *testing.T) {
	pt := NewPieceTable("hello world")
	if err := pt.Insert(5, ", cruel"); err != nil {
		t.Fatal(err)
	}
	if got := pt.Text(); got != "hello, cruel world" {
		t.Errorf("Text = %q", got)
	}
	if pt.Len() != len("hello, cruel world") {
		t.Errorf("Len = %d", pt.Len())
	}
}

func TestPieceTable_InsertThenDeleteSplice(t *testing.T) {
	// 10-char buffer, insert at 5, delete chars 5..8: length must be
	// 10 + len(inserted) - 3 and content must match plain string splicing.
	pt := NewPieceTable("0123456789")
	ins := "ABCD"
	if err := pt.Insert(5, ins); err != nil {
		t.Fatal(err)
	}
	if err := pt.Delete(5, 8); err != nil {
		t.Fatal(err)
	}
	want := "01234" + ins + "56789"
	want = want[:5] + want[8:]
	if got := pt.Text(); got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if pt.Len() != 10+len(ins)-3 {
		t.Errorf("Len = %d, want %d", pt.Len(), 10+len(ins)-3)
	}
}

func TestPieceTable_OutOfBounds(t *testing.T) {
	pt := NewPieceTable("abc")
	cases := []struct {
		name string
		op   func() error
	}{
		{"insert negative", func() error { return pt.Insert(-1, "x") }},
		{"insert past end", func() error { return pt.Insert(4, "x") }},
		{"delete past end", func() error { return pt.Delete(0, 4) }},
		{"delete inverted", func() error { return pt.Delete(2, 1) }},
	}
	for _, tc := range cases {
		if err := tc.op(); err != ErrOutOfBounds {
			t.Errorf("%s: err = %v, want ErrOutOfBounds", tc.name, err)
		}
		// Failed ops must leave the buffer untouched.
		if got := pt.Text(); got != "abc" {
			t.Fatalf("%s: buffer mutated to %q", tc.name, got)
		}
	}
}

func TestPieceTable_ReadRange(t *testing.T) {
	pt := NewPieceTable("hello world")
	pt.Insert(5, "!")
	got, err := pt.ReadRange(3, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got != "lo! w" {
		t.Errorf("ReadRange = %q, want %q", got, "lo! w")
	}
	if _, err := pt.ReadRange(0, pt.Len()+1); err != ErrOutOfBounds {
		t.Errorf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestPieceTable_CoalescedInsertsReadIdentically(t *testing.T) {
	// Sequential typing coalesces into one piece; a second table built with
	// scattered inserts must still read byte-for-byte the same.
	a := NewPieceTable("")
	for i, r := range "stream" {
		if err := a.Insert(i, string(r)); err != nil {
			t.Fatal(err)
		}
	}
	b := NewPieceTable("stream")
	if a.Text() != b.Text() {
		t.Errorf("coalesced %q != flat %q", a.Text(), b.Text())
	}
	if len(a.pieces) != 1 {
		t.Errorf("sequential typing made %d pieces, want 1", len(a.pieces))
	}
}

func TestPieceTable_NoZeroLengthPieces(t *testing.T) {
	pt := NewPieceTable("abcdef")
	pt.Insert(3, "xyz")
	pt.Delete(2, 5)
	pt.Insert(0, "q")
	pt.Delete(0, 1)
	for i, p := range pt.pieces {
		if p.length == 0 {
			t.Errorf("piece %d has zero length", i)
		}
	}
}

// TestPieceTable_FlatStringEquivalence replays random edit sequences against
// both the piece table and a plain string and requires identical results.
func TestPieceTable_FlatStringEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := "abcdefgh \n"
	for trial := 0; trial < 50; trial++ {
		pt := NewPieceTable("")
		flat := ""
		for step := 0; step < 200; step++ {
			if rng.Intn(3) < 2 || len(flat) == 0 {
				pos := rng.Intn(len(flat) + 1)
				n := 1 + rng.Intn(4)
				var b strings.Builder
				for i := 0; i < n; i++ {
					b.WriteByte(alphabet[rng.Intn(len(alphabet))])
				}
				text := b.String()
				if err := pt.Insert(pos, text); err != nil {
					t.Fatalf("trial %d step %d: insert: %v", trial, step, err)
				}
				flat = flat[:pos] + text + flat[pos:]
			} else {
				from := rng.Intn(len(flat) + 1)
				to := from + rng.Intn(len(flat)-from+1)
				if err := pt.Delete(from, to); err != nil {
					t.Fatalf("trial %d step %d: delete: %v", trial, step, err)
				}
				flat = flat[:from] + flat[to:]
			}
			if pt.Text() != flat {
				t.Fatalf("trial %d step %d: diverged:\n pt   %q\n flat %q", trial, step, pt.Text(), flat)
			}
			if pt.Len() != len(flat) {
				t.Fatalf("trial %d step %d: Len = %d, want %d", trial, step, pt.Len(), len(flat))
			}
		}
	}
}
