package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	if c.Size != DefaultChunkSize {
		t.Errorf("expected Size %d, got %d", DefaultChunkSize, c.Size)
	}
	if c.Overlap != DefaultOverlap {
		t.Errorf("expected Overlap %d, got %d", DefaultOverlap, c.Overlap)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	c := &Chunker{Size: 10, Overlap: 3}
	pieces, err := c.Chunk("")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) != 0 {
		t.Errorf("expected 0 pieces for empty text, got %d", len(pieces))
	}
}

func TestChunk_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -100} {
		c := &Chunker{Size: size, Overlap: 3}
		if _, err := c.Chunk("some text"); !errors.Is(err, ErrInvalidChunkSize) {
			t.Errorf("Size=%d: expected ErrInvalidChunkSize, got %v", size, err)
		}
	}
}

func TestChunk_TextShorterThanSize(t *testing.T) {
	c := &Chunker{Size: 50, Overlap: 10}
	pieces, err := c.Chunk("short text")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	if pieces[0].Text != "short text" {
		t.Errorf("expected piece text 'short text', got %q", pieces[0].Text)
	}
	if pieces[0].ID != 1 {
		t.Errorf("expected id 1, got %d", pieces[0].ID)
	}
}

func TestChunk_TextEqualToSize(t *testing.T) {
	c := &Chunker{Size: 20, Overlap: 5}
	text := strings.Repeat("x", 20)
	pieces, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	if pieces[0].Text != text {
		t.Errorf("expected full text back, got %q", pieces[0].Text)
	}
}

func TestChunk_AlphabetWindows(t *testing.T) {
	c := &Chunker{Size: 10, Overlap: 3}
	// step = 10-3 = 7, windows at 0, 7, 14, 21
	pieces, err := c.Chunk("abcdefghijklmnopqrstuvwxyz")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	expected := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}
	if len(pieces) != len(expected) {
		t.Fatalf("expected %d pieces, got %d", len(expected), len(pieces))
	}
	for i, exp := range expected {
		if pieces[i].Text != exp {
			t.Errorf("piece %d: expected %q, got %q", i, exp, pieces[i].Text)
		}
		if pieces[i].ID != i+1 {
			t.Errorf("piece %d: expected id %d, got %d", i, i+1, pieces[i].ID)
		}
	}

	// Adjacent pieces share exactly Overlap characters at the boundary.
	for i := 0; i < len(pieces)-1; i++ {
		curr := pieces[i].Text
		next := pieces[i+1].Text
		if curr[len(curr)-c.Overlap:] != next[:c.Overlap] {
			t.Errorf("overlap mismatch between piece %d and %d: %q vs %q",
				i, i+1, curr[len(curr)-c.Overlap:], next[:c.Overlap])
		}
	}
}

func TestChunk_DefaultSettingsLongText(t *testing.T) {
	c := New()
	// 1300 chars, step = 400: windows start at 0, 400, 800;
	// the window at 800 reaches the end of the text and stops the loop.
	pieces, err := c.Chunk(strings.Repeat("A", 1300))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	if len(pieces[0].Text) != 500 || len(pieces[1].Text) != 500 || len(pieces[2].Text) != 500 {
		t.Errorf("unexpected piece lengths: %d, %d, %d",
			len(pieces[0].Text), len(pieces[1].Text), len(pieces[2].Text))
	}
}

func TestChunk_SequentialIDs(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("word ")
	}
	c := &Chunker{Size: 50, Overlap: 10}
	pieces, err := c.Chunk(sb.String())
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i, p := range pieces {
		if p.ID != i+1 {
			t.Fatalf("piece %d: expected id %d, got %d", i, i+1, p.ID)
		}
	}
}

func TestChunk_WhitespaceWindowsDropped(t *testing.T) {
	// Windows that trim to nothing must be skipped without consuming an id.
	text := "abc       " + strings.Repeat(" ", 20) + "xyz"
	c := &Chunker{Size: 10, Overlap: 0}
	pieces, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i, p := range pieces {
		if strings.TrimSpace(p.Text) == "" {
			t.Errorf("piece %d is all whitespace", i)
		}
		if p.ID != i+1 {
			t.Errorf("piece %d: expected id %d, got %d", i, i+1, p.ID)
		}
	}
}

func TestChunk_AllWhitespaceText(t *testing.T) {
	c := &Chunker{Size: 10, Overlap: 3}
	pieces, err := c.Chunk(strings.Repeat(" \n\t", 20))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) != 0 {
		t.Errorf("expected 0 pieces for whitespace-only text, got %d", len(pieces))
	}
}

func TestChunk_OverlapGreaterOrEqualSize(t *testing.T) {
	text := strings.Repeat("abcdefghij", 5)
	// overlap >= size forces the step down to 1; the loop must still finish.
	c := &Chunker{Size: 3, Overlap: 3}
	pieces, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(pieces) <= 1 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for i, p := range pieces {
		if p.ID != i+1 {
			t.Fatalf("piece %d: expected id %d, got %d", i, i+1, p.ID)
		}
	}
}

func TestChunk_MultibyteText(t *testing.T) {
	// Size, Overlap and step count characters, so multibyte text must
	// yield the same windows as an ASCII text of the same length and
	// every piece must stay valid UTF-8.
	c := &Chunker{Size: 10, Overlap: 3}
	pieces, err := c.Chunk(strings.Repeat("é", 20))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	// step = 7, windows at 0, 7, 14; the window at 14 reaches the end.
	expected := []string{
		strings.Repeat("é", 10),
		strings.Repeat("é", 10),
		strings.Repeat("é", 6),
	}
	if len(pieces) != len(expected) {
		t.Fatalf("expected %d pieces, got %d", len(expected), len(pieces))
	}
	for i, exp := range expected {
		if !utf8.ValidString(pieces[i].Text) {
			t.Errorf("piece %d is not valid UTF-8: %q", i, pieces[i].Text)
		}
		if pieces[i].Text != exp {
			t.Errorf("piece %d: expected %q, got %q", i, exp, pieces[i].Text)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		strings.Repeat("Pack my box with five dozen liquor jugs. ", 10)
	c := &Chunker{Size: 40, Overlap: 8}

	first, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.Chunk(text)
		if err != nil {
			t.Fatalf("Chunk failed on repeat %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("repeat %d produced different output", i)
		}
	}
}
