package tokenizer

import (
	"strings"

	"github.com/example/go-textsim/internal/vocab"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ContinuationPrefix marks a subword that does not start a word.
const ContinuationPrefix = "##"

// WordPiece applies greedy longest-match-first subword segmentation against a
// read-only vocabulary. It is safe for concurrent use.
type WordPiece struct {
	vocab *vocab.Vocabulary
}

// NewWordPiece returns a WordPiece tokenizer over v.
func NewWordPiece(v *vocab.Vocabulary) *WordPiece {
	return &WordPiece{vocab: v}
}

// Vocabulary returns the vocabulary the tokenizer reads from.
func (w *WordPiece) Vocabulary() *vocab.Vocabulary {
	return w.vocab
}

// Clean trims surrounding whitespace and lowercases token unless it contains
// a CJK code point. Mixed-script tokens with any CJK character keep their case.
func Clean(token string) string {
	token = strings.TrimSpace(token)
	if ContainsCJK(token) {
		return token
	}

	// cases.Caser carries state and must not be shared across goroutines.
	return cases.Lower(language.Und).String(token)
}

// TokenizePiece segments one coarse token into subwords. A token present in
// the vocabulary verbatim is returned whole. When no vocabulary entry matches
// at some cursor the whole token becomes a single [UNK].
func (w *WordPiece) TokenizePiece(token string) []string {
	t := Clean(token)
	if t == "" {
		return []string{}
	}

	if w.vocab.Contains(t) {
		return []string{t}
	}

	runes := []rune(t)
	out := make([]string, 0, 4)

	for start := 0; start < len(runes); {
		match := ""
		end := len(runes)

		for ; end > start; end-- {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = ContinuationPrefix + candidate
			}

			if w.vocab.Contains(candidate) {
				match = candidate
				break
			}
		}

		if match == "" {
			return []string{vocab.UnknownToken}
		}

		out = append(out, match)
		start = end
	}

	return out
}

// Tokenize segments text and concatenates the subwords of every coarse token.
func (w *WordPiece) Tokenize(text string) []string {
	pieces := Segment(text)
	out := make([]string, 0, len(pieces))

	for _, p := range pieces {
		out = append(out, w.TokenizePiece(p)...)
	}

	return out
}

// ConvertToIDs maps tokens to ids, substituting the unknown id on a miss.
func (w *WordPiece) ConvertToIDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	unk := w.vocab.UnknownID()

	for i, tok := range tokens {
		id, ok := w.vocab.Lookup(tok)
		if !ok {
			id = unk
		}

		ids[i] = id
	}

	return ids
}

func (w *WordPiece) wrap(tokens []string) []string {
	wrapped := make([]string, 0, len(tokens)+2)
	wrapped = append(wrapped, vocab.StartToken)
	wrapped = append(wrapped, tokens...)
	wrapped = append(wrapped, vocab.SeparatorToken)

	return wrapped
}
