package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

// assemblerVocab puts [PAD] at a non-zero id so padding is distinguishable.
func assemblerVocab(t *testing.T) []string {
	t.Helper()

	return []string{"[UNK]", "[CLS]", "[SEP]", "x", "hello", "world", "[PAD]", "a"}
}

func TestAssemble_EmptyTexts(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...))

	p := a.Assemble("", "")
	if p.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", p.Len())
	}

	want := []int64{1, 2}
	if !reflect.DeepEqual(p.IDsA, want) || !reflect.DeepEqual(p.IDsB, want) {
		t.Errorf("ids = %v / %v; want %v", p.IDsA, p.IDsB, want)
	}

	if !reflect.DeepEqual(p.MaskA, []int64{1, 1}) || !reflect.DeepEqual(p.MaskB, []int64{1, 1}) {
		t.Errorf("masks = %v / %v; want [1 1]", p.MaskA, p.MaskB)
	}
}

func TestAssemble_PadsShorterText(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...))

	p := a.Assemble("hello world", "hello")

	wantA := []int64{1, 4, 5, 2}
	wantB := []int64{1, 4, 2, 6}

	if !reflect.DeepEqual(p.IDsA, wantA) {
		t.Errorf("IDsA = %v; want %v", p.IDsA, wantA)
	}

	if !reflect.DeepEqual(p.IDsB, wantB) {
		t.Errorf("IDsB = %v; want %v", p.IDsB, wantB)
	}

	if !reflect.DeepEqual(p.MaskB, []int64{1, 1, 1, 0}) {
		t.Errorf("MaskB = %v; want [1 1 1 0]", p.MaskB)
	}

	if !reflect.DeepEqual(p.SegmentIDs, []int64{0, 0, 0, 0}) {
		t.Errorf("SegmentIDs = %v; want zeros", p.SegmentIDs)
	}
}

func TestAssemble_MaskMatchesPadding(t *testing.T) {
	v := newVocab(t, assemblerVocab(t)...)
	a := NewAssembler(v)
	pad := v.PaddingID()

	inputs := [][2]string{
		{"", "hello"},
		{"hello world x x x", ""},
		{"a a a", "world world"},
		{"我", "hello"},
	}

	for _, in := range inputs {
		p := a.Assemble(in[0], in[1])

		n := len(p.IDsA)
		if len(p.MaskA) != n || len(p.IDsB) != n || len(p.MaskB) != n || len(p.SegmentIDs) != n {
			t.Fatalf("Assemble(%q, %q): lengths differ: %d %d %d %d %d",
				in[0], in[1], len(p.IDsA), len(p.MaskA), len(p.IDsB), len(p.MaskB), len(p.SegmentIDs))
		}

		for _, seq := range []struct{ ids, mask []int64 }{{p.IDsA, p.MaskA}, {p.IDsB, p.MaskB}} {
			for i := range seq.ids {
				if (seq.mask[i] == 0) != (seq.ids[i] == pad) {
					t.Errorf("Assemble(%q, %q): position %d id=%d mask=%d", in[0], in[1], i, seq.ids[i], seq.mask[i])
				}
			}
		}
	}
}

func TestAssemble_TruncatesTo128(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...))

	long := strings.Repeat("a ", 300)
	p := a.Assemble(long, "x")

	if p.Len() != DefaultMaxLen {
		t.Fatalf("Len() = %d; want %d", p.Len(), DefaultMaxLen)
	}

	if p.IDsA[0] != 1 {
		t.Errorf("IDsA[0] = %d; want [CLS]=1", p.IDsA[0])
	}

	// The separator is not protected from truncation.
	if last := p.IDsA[DefaultMaxLen-1]; last != 7 {
		t.Errorf("IDsA[last] = %d; want id of \"a\" (7)", last)
	}

	for i, m := range p.MaskA {
		if m != 1 {
			t.Fatalf("MaskA[%d] = %d; want 1", i, m)
		}
	}
}

func TestAssemble_ExactlyMaxLenKeepsSeparator(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...))

	p := a.Assemble(strings.Repeat("a ", DefaultMaxLen-2), "")
	if p.Len() != DefaultMaxLen {
		t.Fatalf("Len() = %d; want %d", p.Len(), DefaultMaxLen)
	}

	if p.IDsA[DefaultMaxLen-1] != 2 {
		t.Errorf("IDsA[last] = %d; want [SEP]=2", p.IDsA[DefaultMaxLen-1])
	}
}

func TestAssembler_WithMaxLen(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...), WithMaxLen(3))
	if a.MaxLen() != 3 {
		t.Fatalf("MaxLen() = %d; want 3", a.MaxLen())
	}

	enc := a.Encode("hello world x")
	if !reflect.DeepEqual(enc.IDs, []int64{1, 4, 5}) {
		t.Errorf("IDs = %v; want [1 4 5]", enc.IDs)
	}

	if !reflect.DeepEqual(enc.Tokens, []string{"[CLS]", "hello", "world"}) {
		t.Errorf("Tokens = %q", enc.Tokens)
	}

	if NewAssembler(newVocab(t, "[UNK]"), WithMaxLen(0)).MaxLen() != DefaultMaxLen {
		t.Error("WithMaxLen(0) should keep the default")
	}
}

func TestEncode_UnknownWordBecomesUnknownID(t *testing.T) {
	a := NewAssembler(newVocab(t, assemblerVocab(t)...))

	enc := a.Encode("hello zebra")
	if !reflect.DeepEqual(enc.IDs, []int64{1, 4, 0, 2}) {
		t.Errorf("IDs = %v; want [1 4 0 2]", enc.IDs)
	}

	if !reflect.DeepEqual(enc.Mask, []int64{1, 1, 1, 1}) {
		t.Errorf("Mask = %v; want all ones", enc.Mask)
	}
}
