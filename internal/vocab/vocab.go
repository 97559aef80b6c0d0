// Package vocab loads WordPiece vocabularies (one token per line, id = line index).
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"
)

// Sentinel token strings.
const (
	UnknownToken   = "[UNK]"
	StartToken     = "[CLS]"
	SeparatorToken = "[SEP]"
	PaddingToken   = "[PAD]"
)

// ErrLoad is returned by Load when the vocabulary file cannot be read.
var ErrLoad = errors.New("vocabulary load failed")

// maxLineBytes bounds a single vocabulary line.
const maxLineBytes = 1 << 20

// Vocabulary is an immutable token -> id mapping. It is safe for concurrent use.
type Vocabulary struct {
	ids    map[string]int64
	tokens []string
	source string
}

// Builtin returns the minimal fallback vocabulary used when no file is available.
func Builtin() *Vocabulary {
	v, _ := Parse(strings.NewReader(strings.Join([]string{
		UnknownToken, StartToken, SeparatorToken, PaddingToken,
	}, "\n")))
	v.source = "builtin"

	return v
}

// Load reads a vocabulary file. The id of each entry is its zero-based line index.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrLoad)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() { _ = f.Close() }()

	v, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	v.source = path

	return v, nil
}

// LoadOrDefault loads path and falls back to Builtin on any failure.
// The failure is logged, never returned.
func LoadOrDefault(path string, logger *slog.Logger) *Vocabulary {
	if logger == nil {
		logger = slog.Default()
	}

	v, err := Load(path)
	if err != nil {
		logger.Warn("vocabulary unavailable, using builtin fallback",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return Builtin()
	}

	logger.Info("vocabulary loaded",
		slog.String("path", path),
		slog.Int("size", v.Size()),
	)

	return v
}

// Parse reads a vocabulary from r. Trailing whitespace is stripped from every
// line. When a token repeats, the first occurrence keeps its id; later lines
// still consume an id position.
func Parse(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{ids: make(map[string]int64)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var id int64
	for scanner.Scan() {
		token := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if _, dup := v.ids[token]; !dup {
			v.ids[token] = id
		}

		v.tokens = append(v.tokens, token)
		id++
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return v, nil
}

// Lookup returns the id of token. Matching is exact and case-sensitive.
func (v *Vocabulary) Lookup(token string) (int64, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Contains reports whether token is present.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// UnknownID returns the id bound to [UNK], or 0 when it is absent.
func (v *Vocabulary) UnknownID() int64 { return v.idOr(UnknownToken, 0) }

// StartID returns the id bound to [CLS], or the unknown id when it is absent.
func (v *Vocabulary) StartID() int64 { return v.idOr(StartToken, v.UnknownID()) }

// SeparatorID returns the id bound to [SEP], or the unknown id when it is absent.
func (v *Vocabulary) SeparatorID() int64 { return v.idOr(SeparatorToken, v.UnknownID()) }

// PaddingID returns the id bound to [PAD], or 0 when it is absent.
func (v *Vocabulary) PaddingID() int64 { return v.idOr(PaddingToken, 0) }

// Size returns the number of lines read, including duplicates.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Source returns the path the vocabulary was read from, or "builtin".
func (v *Vocabulary) Source() string { return v.source }

// MissingSentinels lists the sentinel tokens absent from the vocabulary.
func (v *Vocabulary) MissingSentinels() []string {
	var missing []string

	for _, tok := range []string{UnknownToken, StartToken, SeparatorToken, PaddingToken} {
		if !v.Contains(tok) {
			missing = append(missing, tok)
		}
	}

	return missing
}

func (v *Vocabulary) idOr(token string, fallback int64) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}

	return fallback
}
