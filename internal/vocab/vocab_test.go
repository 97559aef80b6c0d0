package vocab

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeVocab(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vocab.txt")

	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
	if err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	return path
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_IDsFollowLineOrder(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "hello", "##lo")

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		token string
		want  int64
	}{
		{"[PAD]", 0},
		{"[UNK]", 1},
		{"[CLS]", 2},
		{"[SEP]", 3},
		{"hello", 4},
		{"##lo", 5},
	}
	for _, tt := range tests {
		got, ok := v.Lookup(tt.token)
		if !ok || got != tt.want {
			t.Errorf("Lookup(%q) = %d, %v; want %d, true", tt.token, got, ok, tt.want)
		}
	}

	if v.Size() != 6 {
		t.Errorf("Size() = %d; want 6", v.Size())
	}

	if v.Source() != path {
		t.Errorf("Source() = %q; want %q", v.Source(), path)
	}
}

func TestLoad_StripsTrailingWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")

	err := os.WriteFile(path, []byte("[UNK]\r\nfoo  \n\tbar\n"), 0o600)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if id, ok := v.Lookup("foo"); !ok || id != 1 {
		t.Errorf("Lookup(foo) = %d, %v; want 1, true", id, ok)
	}

	// Only trailing whitespace is stripped.
	if id, ok := v.Lookup("\tbar"); !ok || id != 2 {
		t.Errorf("Lookup(\\tbar) = %d, %v; want 2, true", id, ok)
	}
}

func TestLoad_DuplicateFirstOccurrenceWins(t *testing.T) {
	path := writeVocab(t, "[UNK]", "dup", "x", "dup", "y")

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if id, _ := v.Lookup("dup"); id != 1 {
		t.Errorf("Lookup(dup) = %d; want 1", id)
	}

	// The duplicate line still consumes id 3.
	if id, _ := v.Lookup("y"); id != 4 {
		t.Errorf("Lookup(y) = %d; want 4", id)
	}
}

func TestLoad_LookupIsCaseSensitive(t *testing.T) {
	v, err := Load(writeVocab(t, "[UNK]", "Hello"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if v.Contains("hello") {
		t.Error("Contains(hello) = true; want false")
	}

	if !v.Contains("Hello") {
		t.Error("Contains(Hello) = false; want true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	if !errors.Is(err, ErrLoad) {
		t.Errorf("expected ErrLoad, got %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	if !errors.Is(err, ErrLoad) {
		t.Errorf("expected ErrLoad, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// LoadOrDefault / Builtin
// ---------------------------------------------------------------------------

func TestLoadOrDefault_FallsBackToBuiltin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	v := LoadOrDefault(filepath.Join(t.TempDir(), "nope.txt"), logger)
	if v == nil {
		t.Fatal("LoadOrDefault returned nil")
	}

	if v.Source() != "builtin" {
		t.Errorf("Source() = %q; want builtin", v.Source())
	}

	want := map[string]int64{"[UNK]": 0, "[CLS]": 1, "[SEP]": 2, "[PAD]": 3}
	for tok, id := range want {
		got, ok := v.Lookup(tok)
		if !ok || got != id {
			t.Errorf("Lookup(%q) = %d, %v; want %d", tok, got, ok, id)
		}
	}

	if v.Size() != 4 {
		t.Errorf("Size() = %d; want 4", v.Size())
	}
}

func TestLoadOrDefault_UsesFileWhenPresent(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]")

	v := LoadOrDefault(path, nil)
	if v.PaddingID() != 0 || v.UnknownID() != 1 || v.StartID() != 2 || v.SeparatorID() != 3 {
		t.Errorf("sentinel ids = pad %d unk %d cls %d sep %d; want 0 1 2 3",
			v.PaddingID(), v.UnknownID(), v.StartID(), v.SeparatorID())
	}
}

func TestUnknownID_DefaultsToZero(t *testing.T) {
	v, err := Parse(strings.NewReader("a\nb\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if v.UnknownID() != 0 {
		t.Errorf("UnknownID() = %d; want 0", v.UnknownID())
	}

	missing := v.MissingSentinels()
	if len(missing) != 4 {
		t.Errorf("MissingSentinels() = %v; want all four", missing)
	}
}
